package testutil

import (
	"fmt"
	"math"
	"testing"

	"npastat/internal/registry"
)

// OneHotFrame builds a registry frame where patient rows are split into
// categories <variable>___1, <variable>___2, ... Category k holds
// samples[k] in the output column; an extra row per category has the
// indicator set but the output missing.
func OneHotFrame(t testing.TB, variable, output string, samples ...[]float64) *registry.Frame {
	t.Helper()

	total := len(samples)
	for _, s := range samples {
		total += len(s)
	}

	ids := make([]float64, total)
	values := make([]float64, total)
	indicators := make([][]float64, len(samples))
	for k := range indicators {
		indicators[k] = make([]float64, total)
	}

	r := 0
	for k, s := range samples {
		for _, x := range append(append([]float64(nil), s...), math.NaN()) {
			ids[r] = float64(r + 1)
			values[r] = x
			indicators[k][r] = 1
			r++
		}
	}

	cols := []*registry.Column{registry.NewColumn(registry.PatientKey, ids)}
	for k, ind := range indicators {
		cols = append(cols, registry.NewColumn(fmt.Sprintf("%s___%d", variable, k+1), ind))
	}
	cols = append(cols, registry.NewColumn(output, values))

	f, err := registry.NewFrame(cols...)
	if err != nil {
		t.Fatalf("build frame: %v", err)
	}
	return f
}

// ThreeGroups are samples whose Tukey HSD separates the third group from
// the first two, giving group labels a, a, b at alpha 0.05.
var ThreeGroups = [][]float64{
	{1, 2, 3},
	{2, 3, 4},
	{7, 8, 9},
}

// FlatGroups have equal means; their ANOVA is not significant.
var FlatGroups = [][]float64{
	{1, 2, 3},
	{3, 2, 1},
	{2, 1, 3},
}
