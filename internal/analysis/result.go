package analysis

import (
	"cmp"
	"slices"

	"npastat/internal/grouping"
	"npastat/internal/stats"
)

// VariableResult is the comparison of one variable's categories over a
// battery of outputs.
type VariableResult struct {
	Variable   string         `json:"variable"`
	Battery    string         `json:"battery"`
	ResultDir  string         `json:"-"`
	Categories []Category     `json:"categories"`
	Outputs    []OutputResult `json:"outputs"`
	Alpha      float64        `json:"alpha"`
	Confidence float64        `json:"confidence"`
}

// CategoryLabels returns the display label of every category
func (r *VariableResult) CategoryLabels() []string {
	labels := make([]string, len(r.Categories))
	for k, c := range r.Categories {
		labels[k] = c.Label
	}
	return labels
}

// OutputResult holds the tests for one output. Tukey and Partition are nil
// when the ANOVA was not significant.
type OutputResult struct {
	Output    string             `json:"output"`
	ANOVA     stats.ANOVAResult  `json:"anova"`
	Tukey     *stats.TukeyResult `json:"-"`
	Partition *grouping.Result   `json:"-"`
	Labels    []string           `json:"group_labels"`
	Summaries []stats.Summary    `json:"summaries"`
	Samples   [][]float64        `json:"-"`
	Min       float64            `json:"axis_min"`
	Max       float64            `json:"axis_max"`
}

// Significant reports whether the ANOVA passed the threshold and Tukey ran
func (o *OutputResult) Significant() bool {
	return o.Tukey != nil
}

// ByMean returns category indexes ordered by descending mean, ties by
// index.
func (o *OutputResult) ByMean() []int {
	order := make([]int, len(o.Summaries))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(o.Summaries[b].Mean, o.Summaries[a].Mean)
	})
	return order
}
