package plot

import (
	"fmt"
	"image/color"
	"math"
	"slices"
	"strings"

	"npastat/internal/analysis"
)

// Palette colours distinct group label sets, in sorted label order
var Palette = hexColors(
	"#393b79", "#8ca252", "#e7ba52", "#e7969c", "#3182bd", "#fd8d3c", "#a1d99b", "#dadaeb",
	"#6b6ecf", "#cedb9c", "#843c39", "#a55194", "#9ecae1", "#fdd0a2", "#756bb1", "#969696",
	"#5254a3", "#b5cf6b", "#e7cb94", "#7b4173", "#6baed6", "#fdae6b", "#c7e9c0", "#636363",
	"#9c9ede", "#8c6d31", "#ad494a", "#ce6dbd", "#c6dbef", "#31a354", "#9e9ac8", "#bdbdbd",
)

// Silver fills every bar when all categories share one label set
var Silver = color.RGBA{R: 0xc0, G: 0xc0, B: 0xc0, A: 0xff}

// labelWidth is the number of group letters per line above a bar
const labelWidth = 3

// Bar is one category in a chart
type Bar struct {
	// Key is the chart-local letter, A for the highest mean.
	Key      string
	Category int
	Label    string
	Groups   string
	N        int
	Mean     float64
	CILow    float64
	CIHigh   float64
	Color    color.Color
}

// Chart is the bar chart of one output, bars ordered by descending mean
type Chart struct {
	Variable string
	Output   string
	Bars     []Bar
	Min      float64
	Max      float64
}

// NewChart lays out the chart of out
func NewChart(res *analysis.VariableResult, out *analysis.OutputResult) *Chart {
	c := &Chart{
		Variable: res.Variable,
		Output:   out.Output,
		Min:      out.Min,
		Max:      out.Max,
	}
	for k, i := range out.ByMean() {
		s := out.Summaries[i]
		c.Bars = append(c.Bars, Bar{
			Key:      Key(k),
			Category: i,
			Label:    res.Categories[i].Label,
			Groups:   out.Labels[i],
			N:        s.N,
			Mean:     s.Mean,
			CILow:    s.CILow,
			CIHigh:   s.CIHigh,
		})
	}

	colors := groupColors(c.Bars)
	for k := range c.Bars {
		c.Bars[k].Color = colors[c.Bars[k].Groups]
	}
	return c
}

// Title is "<output> by <variable>"
func (c *Chart) Title() string {
	return fmt.Sprintf("%s by %s", c.Output, c.Variable)
}

// Legend returns one "Group A: label" line per bar
func (c *Chart) Legend() []string {
	lines := make([]string, len(c.Bars))
	for k, b := range c.Bars {
		lines[k] = fmt.Sprintf("Group %s: %s", b.Key, b.Label)
	}
	return lines
}

// TextHeight is where a bar's group letters are drawn
func (c *Chart) TextHeight(b Bar) float64 {
	return b.Mean + c.Max/10
}

// Key returns the k-th chart letter: A..Z, then AA, AB, ...
func Key(k int) string {
	var buf []byte
	for k++; k > 0; k = (k - 1) / 26 {
		buf = append([]byte{byte('A' + (k-1)%26)}, buf...)
	}
	return string(buf)
}

// Wrap splits a group label into lines of labelWidth characters
func Wrap(groups string) string {
	if len(groups) <= labelWidth {
		return groups
	}
	var lines []string
	for len(groups) > labelWidth {
		lines = append(lines, groups[:labelWidth])
		groups = groups[labelWidth:]
	}
	if groups != "" {
		lines = append(lines, groups)
	}
	return strings.Join(lines, "\n")
}

func groupColors(bars []Bar) map[string]color.Color {
	var unique []string
	for _, b := range bars {
		if !slices.Contains(unique, b.Groups) {
			unique = append(unique, b.Groups)
		}
	}
	slices.Sort(unique)

	colors := make(map[string]color.Color, len(unique))
	for k, g := range unique {
		if len(unique) == 1 {
			colors[g] = Silver
			continue
		}
		colors[g] = Palette[k%len(Palette)]
	}
	return colors
}

// errorBar returns the distances from the mean to the CI bounds, zero when
// the interval is undefined.
func (b Bar) errorBar() (low, high float64) {
	if math.IsNaN(b.CILow) || math.IsNaN(b.CIHigh) {
		return 0, 0
	}
	return b.Mean - b.CILow, b.CIHigh - b.Mean
}

func hexColors(hex ...string) []color.Color {
	out := make([]color.Color, len(hex))
	for i, h := range hex {
		var r, g, b uint8
		if _, err := fmt.Sscanf(h, "#%02x%02x%02x", &r, &g, &b); err != nil {
			panic(fmt.Sprintf("bad palette colour %q", h))
		}
		out[i] = color.RGBA{R: r, G: g, B: b, A: 0xff}
	}
	return out
}
