package analysis

import (
	"math"
	"regexp"
	"slices"
	"strconv"

	"npastat/internal/codebook"
	"npastat/internal/registry"
)

// Category is one level of a variable with enough complete rows to compare
type Category struct {
	// Column is the indicator column for one-hot variables, else the
	// variable's own column.
	Column string `json:"column"`
	Code   int    `json:"code"`
	Label  string `json:"label"`
	// Rows are the frame rows in the category, complete or not.
	Rows []int `json:"-"`
}

// samples returns the non-missing values of output over the category rows
func (c Category) samples(values []float64) []float64 {
	out := make([]float64, 0, len(c.Rows))
	for _, r := range c.Rows {
		if !math.IsNaN(values[r]) {
			out = append(out, values[r])
		}
	}
	return out
}

// SelectCategories finds the categories of v that have more than MinSize
// rows with every output present.
//
// One-hot variables take indicator columns <name>___<code> (any run of
// underscores) in frame order; a row belongs to the category when the
// indicator is 1. Single-valued variables take the distinct codes of the
// column in ascending order, first requiring more than MinSize rows with
// the code at all.
func (a *Analyzer) SelectCategories(f *registry.Frame, v *codebook.Variable, outputs []string) ([]Category, error) {
	outs := make([][]float64, len(outputs))
	for i, name := range outputs {
		vals, err := f.Values(name)
		if err != nil {
			return nil, err
		}
		outs[i] = vals
	}

	complete := func(rows []int) int {
		n := 0
		for _, r := range rows {
			ok := true
			for _, vals := range outs {
				if math.IsNaN(vals[r]) {
					ok = false
					break
				}
			}
			if ok {
				n++
			}
		}
		return n
	}

	candidates := oneHotCategories(f, v)
	if !v.OneHot {
		cs, err := valueCategories(f, v, a.opts.MinSize)
		if err != nil {
			return nil, err
		}
		candidates = cs
	}

	var selected []Category
	for _, c := range candidates {
		if complete(c.Rows) > a.opts.MinSize {
			selected = append(selected, c)
		}
	}
	return selected, nil
}

func oneHotPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(name) + `_+(\d+)$`)
}

func oneHotCategories(f *registry.Frame, v *codebook.Variable) []Category {
	if !v.OneHot {
		return nil
	}
	re := oneHotPattern(v.Name)

	var out []Category
	for _, col := range f.ColumnsMatching(re) {
		code, err := strconv.Atoi(re.FindStringSubmatch(col)[1])
		if err != nil {
			continue
		}
		vals, _ := f.Values(col)

		var rows []int
		for r, x := range vals {
			if x == 1 {
				rows = append(rows, r)
			}
		}
		out = append(out, Category{Column: col, Code: code, Label: v.Label(code), Rows: rows})
	}
	return out
}

func valueCategories(f *registry.Frame, v *codebook.Variable, minSize int) ([]Category, error) {
	vals, err := f.Values(v.Name)
	if err != nil {
		return nil, err
	}

	byValue := make(map[float64][]int)
	for r, x := range vals {
		if !math.IsNaN(x) {
			byValue[x] = append(byValue[x], r)
		}
	}

	levels := make([]float64, 0, len(byValue))
	for x := range byValue {
		levels = append(levels, x)
	}
	slices.Sort(levels)

	var out []Category
	for _, x := range levels {
		rows := byValue[x]
		if len(rows) <= minSize {
			continue
		}
		code := int(x)
		out = append(out, Category{Column: v.Name, Code: code, Label: v.Label(code), Rows: rows})
	}
	return out, nil
}
