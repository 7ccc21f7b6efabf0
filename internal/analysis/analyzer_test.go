package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"npastat/internal/codebook"
	apperrors "npastat/internal/errors"
	"npastat/internal/infrastructure"
	"npastat/internal/registry"
	"npastat/internal/shared/testutil"
)

const testOutput = "p29_pf_t_score"

func testOptions() Options {
	return Options{MinSize: 2, PThreshold: 0.05, Confidence: 0.95}
}

func newTestAnalyzer(t *testing.T) (*Analyzer, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	a, err := NewAnalyzer(testOptions(), logger, nil)
	require.NoError(t, err)
	return a, logs
}

func oneHot(name string) *codebook.Variable {
	return &codebook.Variable{
		Name:   name,
		OneHot: true,
		Labels: map[int]string{1: "Frontal", 2: "Parietal", 3: "Occipital"},
	}
}

func battery(outputs ...string) *codebook.Battery {
	hi := make([]float64, len(outputs))
	for i := range hi {
		hi[i] = 100
	}
	return &codebook.Battery{
		Name:      "t",
		ResultDir: "results_t_outputs",
		Outputs:   outputs,
		Max:       hi,
		Min:       make([]float64, len(outputs)),
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{"defaults", DefaultOptions(), ""},
		{"zero min size", Options{MinSize: 0, PThreshold: 0.01, Confidence: 0.99}, ""},
		{"negative min size", Options{MinSize: -1, PThreshold: 0.05, Confidence: 0.95}, "MinSize must be greater than or equal to 0"},
		{"zero threshold", Options{MinSize: 15, PThreshold: 0, Confidence: 0.95}, "PThreshold must be greater than 0"},
		{"threshold of one", Options{MinSize: 15, PThreshold: 1, Confidence: 0.95}, "PThreshold must be less than 1"},
		{"confidence of one", Options{MinSize: 15, PThreshold: 0.05, Confidence: 1}, "Confidence must be less than 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewAnalyzer_InvalidOptions(t *testing.T) {
	a, err := NewAnalyzer(Options{PThreshold: 2, Confidence: 0.95}, nil, nil)
	assert.Nil(t, a)
	assert.Error(t, err)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 15, opts.MinSize)
	assert.Equal(t, 0.05, opts.PThreshold)
	assert.Equal(t, 0.95, opts.Confidence)
}

func TestSelectCategories_OneHot(t *testing.T) {
	a, _ := newTestAnalyzer(t)

	// Group 3 has only two complete rows, which does not exceed MinSize.
	f := testutil.OneHotFrame(t, "tumor_loc", testOutput,
		[]float64{1, 2, 3},
		[]float64{4, 5, 6, 7},
		[]float64{8, 9},
	)

	cats, err := a.SelectCategories(f, oneHot("tumor_loc"), []string{testOutput})
	require.NoError(t, err)
	require.Len(t, cats, 2)

	assert.Equal(t, "tumor_loc___1", cats[0].Column)
	assert.Equal(t, 1, cats[0].Code)
	assert.Equal(t, "Frontal", cats[0].Label)
	assert.Len(t, cats[0].Rows, 4)

	assert.Equal(t, 2, cats[1].Code)
	assert.Equal(t, "Parietal", cats[1].Label)
	assert.Len(t, cats[1].Rows, 5)
}

func TestSelectCategories_OneHotPattern(t *testing.T) {
	f, err := registry.NewFrame(
		registry.NewColumn("side_1", []float64{1, 0}),
		registry.NewColumn("side__2", []float64{0, 1}),
		registry.NewColumn("side___x", []float64{1, 1}),
		registry.NewColumn("inside___3", []float64{1, 1}),
		registry.NewColumn("side___4_other", []float64{1, 1}),
	)
	require.NoError(t, err)

	cats := oneHotCategories(f, &codebook.Variable{Name: "side", OneHot: true})
	require.Len(t, cats, 2)
	assert.Equal(t, "side_1", cats[0].Column)
	assert.Equal(t, []int{0}, cats[0].Rows)
	assert.Equal(t, "side__2", cats[1].Column)
	assert.Equal(t, "2", cats[1].Label)

	assert.Nil(t, oneHotCategories(f, &codebook.Variable{Name: "side"}))
}

func TestSelectCategories_SingleValued(t *testing.T) {
	nan := math.NaN()
	f, err := registry.NewFrame(
		registry.NewColumn("discharge_disp", []float64{2, 1, 2, 1, 2, 1, 3, 3, 3, nan, 1}),
		registry.NewColumn(testOutput, []float64{5, 1, 6, 2, 7, 3, 9, nan, 8, 4, nan}),
	)
	require.NoError(t, err)

	v := &codebook.Variable{Name: "discharge_disp", Labels: map[int]string{1: "Home", 3: "Inpatient rehab"}}
	logger, _ := testutil.NewTestLogger(t)
	a, err := NewAnalyzer(Options{MinSize: 2, PThreshold: 0.05, Confidence: 0.95}, logger, nil)
	require.NoError(t, err)

	cats, err := a.SelectCategories(f, v, []string{testOutput})
	require.NoError(t, err)

	// Code 3 has three rows but only two complete ones.
	require.Len(t, cats, 2)
	assert.Equal(t, 1, cats[0].Code)
	assert.Equal(t, "Home", cats[0].Label)
	assert.Equal(t, []int{1, 3, 5, 10}, cats[0].Rows)
	assert.Equal(t, 2, cats[1].Code)
	assert.Equal(t, "2", cats[1].Label)
	assert.Equal(t, "discharge_disp", cats[1].Column)

	assert.Equal(t, []float64{1, 2, 3}, cats[0].samples(mustValues(t, f, testOutput)))
}

func TestSelectCategories_MissingColumn(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	f := testutil.OneHotFrame(t, "tumor_loc", testOutput, testutil.ThreeGroups...)

	_, err := a.SelectCategories(f, oneHot("tumor_loc"), []string{"missing_output"})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = a.SelectCategories(f, &codebook.Variable{Name: "absent"}, []string{testOutput})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func mustValues(t *testing.T, f *registry.Frame, name string) []float64 {
	t.Helper()
	v, err := f.Values(name)
	require.NoError(t, err)
	return v
}

func TestRun_Significant(t *testing.T) {
	a, logs := newTestAnalyzer(t)
	f := testutil.OneHotFrame(t, "tumor_loc", testOutput, testutil.ThreeGroups...)

	res, err := a.Run(context.Background(), f, oneHot("tumor_loc"), battery(testOutput))
	require.NoError(t, err)

	assert.Equal(t, "tumor_loc", res.Variable)
	assert.Equal(t, "t", res.Battery)
	assert.Equal(t, "results_t_outputs", res.ResultDir)
	assert.Equal(t, []string{"Frontal", "Parietal", "Occipital"}, res.CategoryLabels())
	assert.Equal(t, 0.05, res.Alpha)
	require.Len(t, res.Outputs, 1)

	out := res.Outputs[0]
	assert.Equal(t, testOutput, out.Output)
	assert.True(t, out.Significant())
	assert.InDelta(t, 31.0, out.ANOVA.F, 1e-9)
	assert.Less(t, out.ANOVA.P, 0.001)
	assert.Equal(t, []string{"a", "a", "b"}, out.Labels)
	require.NotNil(t, out.Partition)
	assert.Equal(t, 3, out.Partition.Size())

	assert.Equal(t, [][]float64{{1, 2, 3}, {2, 3, 4}, {7, 8, 9}}, out.Samples)
	assert.Equal(t, 3, out.Summaries[2].N)
	assert.InDelta(t, 8.0, out.Summaries[2].Mean, 1e-12)
	assert.Equal(t, []int{2, 1, 0}, out.ByMean())
	assert.Equal(t, 0.0, out.Min)
	assert.Equal(t, 100.0, out.Max)

	testutil.AssertLogContains(t, logs, slog.LevelDebug, "significant difference")
	testutil.AssertLogAttr(t, logs, "component", "analysis")
	testutil.AssertNoErrors(t, logs)
}

func TestRun_NotSignificant(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	f := testutil.OneHotFrame(t, "tumor_loc", testOutput, testutil.FlatGroups...)

	res, err := a.Run(context.Background(), f, oneHot("tumor_loc"), battery(testOutput))
	require.NoError(t, err)
	require.Len(t, res.Outputs, 1)

	out := res.Outputs[0]
	assert.False(t, out.Significant())
	assert.Nil(t, out.Tukey)
	assert.Nil(t, out.Partition)
	assert.Equal(t, []string{"a", "a", "a"}, out.Labels)
	assert.InDelta(t, 1.0, out.ANOVA.P, 1e-9)
}

func TestRun_InsufficientCategories(t *testing.T) {
	a, logs := newTestAnalyzer(t)
	f := testutil.OneHotFrame(t, "tumor_loc", testOutput,
		[]float64{1, 2, 3},
		[]float64{4, 5},
	)

	res, err := a.Run(context.Background(), f, oneHot("tumor_loc"), battery(testOutput))
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientCategories))
	assert.True(t, apperrors.IsInsufficientData(err))

	testutil.AssertLogContains(t, logs, slog.LevelWarn, "ANOVA not performed")
	testutil.AssertLogAttr(t, logs, "variable", "tumor_loc")
}

func TestRun_MultipleOutputs(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	f := testutil.OneHotFrame(t, "tumor_loc", testOutput, testutil.ThreeGroups...)

	flat, err := registry.NewFrame(registry.NewColumn("flat", []float64{
		1, 2, 3, math.NaN(),
		3, 2, 1, math.NaN(),
		2, 1, 3, math.NaN(),
	}))
	require.NoError(t, err)
	col, err := flat.Column("flat")
	require.NoError(t, err)
	require.NoError(t, f.SetColumn(col))

	b := battery(testOutput, "flat")
	b.Max[1] = 20
	res, err := a.Run(context.Background(), f, oneHot("tumor_loc"), b)
	require.NoError(t, err)
	require.Len(t, res.Outputs, 2)

	assert.True(t, res.Outputs[0].Significant())
	assert.False(t, res.Outputs[1].Significant())
	assert.Equal(t, 20.0, res.Outputs[1].Max)
}

func TestRun_Cancelled(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	f := testutil.OneHotFrame(t, "tumor_loc", testOutput, testutil.ThreeGroups...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Run(ctx, f, oneHot("tumor_loc"), battery(testOutput))
	assert.ErrorIs(t, err, context.Canceled)
}

func testCodebook(t *testing.T) *codebook.Codebook {
	t.Helper()
	cb, err := codebook.Parse([]byte(`
variables:
  - name: tumor_loc
    one_hot: true
    labels: {1: Frontal, 2: Parietal, 3: Occipital}
  - name: approach
    one_hot: true
  - name: missing_var
batteries:
  - name: t
    outputs: [p29_pf_t_score]
    max: [100]
summary_weights:
  mental: [0, 0, 0, 0, 0, 1]
  physical: [1, 0, 0, 0, 0, 0]
`))
	require.NoError(t, err)
	return cb
}

func TestRunAll(t *testing.T) {
	a, logs := newTestAnalyzer(t)
	f := testutil.OneHotFrame(t, "tumor_loc", testOutput, testutil.ThreeGroups...)
	cb := testCodebook(t)

	b, err := cb.Battery("t")
	require.NoError(t, err)

	results, err := a.RunAll(context.Background(), f, cb, []*codebook.Battery{b})
	require.NoError(t, err)

	// approach has no indicator columns; missing_var has no column at all.
	require.Len(t, results, 1)
	assert.Equal(t, "tumor_loc", results[0].Variable)

	testutil.AssertLogContains(t, logs, slog.LevelWarn, "ANOVA not performed")
	testutil.AssertLogContains(t, logs, slog.LevelError, "analysis failed")
	testutil.AssertLogAttr(t, logs, "variable", "missing_var")
	testutil.AssertLogContains(t, logs, slog.LevelInfo, "analysis complete")
	testutil.AssertLogAttr(t, logs, "results", int64(1))
}

func TestRunAll_Cancelled(t *testing.T) {
	a, logs := newTestAnalyzer(t)
	f := testutil.OneHotFrame(t, "tumor_loc", testOutput, testutil.ThreeGroups...)
	cb := testCodebook(t)
	b, err := cb.Battery("t")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := a.RunAll(ctx, f, cb, []*codebook.Battery{b})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
	assert.False(t, logs.ContainsMessage("analysis complete"))
}

func TestRun_RecordsMetrics(t *testing.T) {
	providers, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := infrastructure.CreateAnalysisMetrics(providers.Meter)
	require.NoError(t, err)

	logger, _ := testutil.NewTestLogger(t)
	a, err := NewAnalyzer(testOptions(), logger, metrics)
	require.NoError(t, err)

	f := testutil.OneHotFrame(t, "tumor_loc", testOutput, testutil.ThreeGroups...)
	_, err = a.Run(context.Background(), f, oneHot("tumor_loc"), battery(testOutput))
	require.NoError(t, err)

	families, err := providers.Registry.Gather()
	require.NoError(t, err)
	var names []string
	for _, fam := range families {
		names = append(names, fam.GetName())
	}
	joined := strings.Join(names, "\n")

	assert.Contains(t, joined, "analysis_runs")
	assert.Contains(t, joined, "anova_tests")
	assert.Contains(t, joined, "tukey_pairs")
}
