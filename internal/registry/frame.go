package registry

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	apperrors "npastat/internal/errors"
)

// Column is one registry field. Values holds the numeric reading of every
// cell (NaN when empty or not a number); Text holds the raw cell strings
// and is nil for columns derived in memory.
type Column struct {
	Name   string
	Values []float64
	Text   []string
}

// NewColumn returns a numeric column
func NewColumn(name string, values []float64) *Column {
	return &Column{Name: name, Values: values}
}

// NewTextColumn returns a column from raw cells, parsing numbers where it can
func NewTextColumn(name string, text []string) *Column {
	values := make([]float64, len(text))
	for i, s := range text {
		values[i] = ParseFloat(s)
	}
	return &Column{Name: name, Values: values, Text: text}
}

// ParseFloat reads a registry cell. Empty, "nan" and unparsable cells are NaN.
func ParseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func nanColumn(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Len returns the number of cells
func (c *Column) Len() int {
	return len(c.Values)
}

// Missing reports whether cell i has no value
func (c *Column) Missing(i int) bool {
	if c.Text != nil {
		return strings.TrimSpace(c.Text[i]) == "" && math.IsNaN(c.Values[i])
	}
	return math.IsNaN(c.Values[i])
}

// Cell renders cell i for output
func (c *Column) Cell(i int) string {
	if c.Text != nil {
		return c.Text[i]
	}
	return FormatFloat(c.Values[i])
}

// FormatFloat renders v the shortest way; NaN is an empty cell
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Frame is an in-memory registry table with ordered, uniquely named columns
type Frame struct {
	rows  int
	cols  []*Column
	index map[string]int
}

// NewFrame builds a frame from columns of equal length.
func NewFrame(cols ...*Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(cols))}
	for _, c := range cols {
		if err := f.add(len(f.cols), c); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *Frame) add(pos int, c *Column) error {
	if c.Len() != f.rows && len(f.cols) > 0 {
		return apperrors.NewInvalidInputError("column %q has %d rows, frame has %d", c.Name, c.Len(), f.rows)
	}
	if _, dup := f.index[c.Name]; dup {
		return apperrors.NewInvalidInputError("duplicate column %q", c.Name)
	}
	if len(f.cols) == 0 {
		f.rows = c.Len()
	}
	if pos < 0 || pos > len(f.cols) {
		pos = len(f.cols)
	}

	f.cols = append(f.cols, nil)
	copy(f.cols[pos+1:], f.cols[pos:])
	f.cols[pos] = c
	f.reindex()
	return nil
}

func (f *Frame) reindex() {
	for i, c := range f.cols {
		f.index[c.Name] = i
	}
}

// Len returns the number of rows
func (f *Frame) Len() int {
	return f.rows
}

// Names returns the column names in order
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether a column exists
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the named column
func (f *Frame) Column(name string) (*Column, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, apperrors.NewNotFoundError("column " + strconv.Quote(name))
	}
	return f.cols[i], nil
}

// Values returns the numeric cells of the named column
func (f *Frame) Values(name string) ([]float64, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	return c.Values, nil
}

// SetColumn replaces the named column in place or appends it.
func (f *Frame) SetColumn(c *Column) error {
	if i, ok := f.index[c.Name]; ok {
		if c.Len() != f.rows {
			return apperrors.NewInvalidInputError("column %q has %d rows, frame has %d", c.Name, c.Len(), f.rows)
		}
		f.cols[i] = c
		return nil
	}
	return f.add(len(f.cols), c)
}

// InsertColumn adds c at position pos; out of range positions append.
func (f *Frame) InsertColumn(pos int, c *Column) error {
	return f.add(pos, c)
}

// ColumnsMatching returns the names matching re, in frame order
func (f *Frame) ColumnsMatching(re *regexp.Regexp) []string {
	var out []string
	for _, c := range f.cols {
		if re.MatchString(c.Name) {
			out = append(out, c.Name)
		}
	}
	return out
}

// Filter returns a new frame holding the rows for which keep is true
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	var rows []int
	for i := 0; i < f.rows; i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return f.take(rows)
}

func (f *Frame) take(rows []int) *Frame {
	out := &Frame{rows: len(rows), index: make(map[string]int, len(f.cols))}
	for _, c := range f.cols {
		nc := &Column{Name: c.Name, Values: make([]float64, len(rows))}
		if c.Text != nil {
			nc.Text = make([]string, len(rows))
		}
		for k, r := range rows {
			nc.Values[k] = c.Values[r]
			if c.Text != nil {
				nc.Text[k] = c.Text[r]
			}
		}
		out.cols = append(out.cols, nc)
	}
	out.reindex()
	return out
}

// Select returns a frame with only the named columns, in the given order.
// Names that do not exist are skipped.
func (f *Frame) Select(names ...string) *Frame {
	out := &Frame{rows: f.rows, index: make(map[string]int)}
	for _, n := range names {
		if c, err := f.Column(n); err == nil {
			if _, dup := out.index[n]; !dup {
				out.cols = append(out.cols, c)
				out.index[n] = len(out.cols) - 1
			}
		}
	}
	return out
}

// Records renders the frame as string rows, header first
func (f *Frame) Records() (header []string, records [][]string) {
	header = f.Names()
	records = make([][]string, f.rows)
	for r := range records {
		row := make([]string, len(f.cols))
		for i, c := range f.cols {
			row[i] = c.Cell(r)
		}
		records[r] = row
	}
	return header, records
}
