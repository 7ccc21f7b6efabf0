package report

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"npastat/internal/analysis"
	"npastat/internal/codebook"
	"npastat/internal/config"
	apperrors "npastat/internal/errors"
	"npastat/internal/shared/testutil"
)

const testOutput = "p29_pf_t_score"

func analyze(t *testing.T, variable, battery string, minSize int, samples ...[]float64) *analysis.VariableResult {
	t.Helper()

	logger, _ := testutil.NewTestLogger(t)
	a, err := analysis.NewAnalyzer(analysis.Options{MinSize: minSize, PThreshold: 0.05, Confidence: 0.95}, logger, nil)
	require.NoError(t, err)

	f := testutil.OneHotFrame(t, variable, testOutput, samples...)
	v := &codebook.Variable{
		Name:   variable,
		OneHot: true,
		Labels: map[int]string{1: "Frontal", 2: "Parietal", 3: "Occipital"},
	}
	b := &codebook.Battery{
		Name:      battery,
		ResultDir: "results_" + battery,
		Outputs:   []string{testOutput},
		Max:       []float64{100},
		Min:       []float64{0},
	}

	res, err := a.Run(context.Background(), f, v, b)
	require.NoError(t, err)
	return res
}

func TestWriteText_Significant(t *testing.T) {
	res := analyze(t, "tumor_loc", "t", 2, testutil.ThreeGroups...)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, res))
	text := buf.String()

	assert.True(t, strings.HasPrefix(text, "tumor_loc\n=========== Key ===========\n"))
	assert.Contains(t, text, "Group 0: \t  Frontal\nGroup 1: \t  Parietal\nGroup 2: \t  Occipital\n\n")
	assert.Contains(t, text, "\n\n##################################################\np29_pf_t_score\n\np = ")
	assert.Contains(t, text, "f = 31")

	assert.Contains(t, text, "=========== P Values Tukey HSD ===========\n_________________ All ____________________\n(0, 1): ")
	assert.Contains(t, text, "(0, 2): ")
	assert.Contains(t, text, "_____________ Significant ________________\n(0, 2)\np: ")
	assert.Contains(t, text, "(1, 2)\np: ")
	assert.NotContains(t, text, "(0, 1)\np: ")
	assert.Contains(t, text, "t: -6\n")

	assert.Contains(t, text, "Frontal^(a)\nN = 3\nParietal^(a)\nN = 3\nOccipital^(b)\nN = 3\n\n")
	assert.Contains(t, text, "=========== Summary ===========\nGroup: 0\nMean: 2\nStd: 0.816")
	assert.Contains(t, text, "Group: 2\nMean: 8\n")
	assert.True(t, strings.HasSuffix(text, "N: 3\n\n"))
}

func TestWriteText_NotSignificant(t *testing.T) {
	res := analyze(t, "tumor_loc", "t", 2, testutil.FlatGroups...)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, res))
	text := buf.String()

	assert.NotContains(t, text, "Tukey")
	assert.NotContains(t, text, "^(")
	assert.Contains(t, text, "p = 1\nf = 0\n\n=========== Summary ===========\n")
}

func TestTSVRecords(t *testing.T) {
	tests := []struct {
		name    string
		samples [][]float64
		cells   []string
	}{
		{
			name:    "significant",
			samples: testutil.ThreeGroups,
			cells:   []string{testOutput, "2.0 (a) N=3", "3.0 (a) N=3", "8.0 (b) N=3", "p=0.0007 f=31.0"},
		},
		{
			name:    "not significant",
			samples: testutil.FlatGroups,
			cells:   []string{testOutput, "2.0 (a) N=3", "2.0 (a) N=3", "2.0 (a) N=3", "p>0.05"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := analyze(t, "tumor_loc", "t", 2, tt.samples...)
			header, records := TSVRecords(res)

			assert.Equal(t, []string{"", "Frontal", "Parietal", "Occipital", "ANOVA"}, header)
			require.Len(t, records, 1)
			assert.Equal(t, tt.cells, records[0])
		})
	}
}

func TestNumber_MarshalJSON(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1.5, "1.5"},
		{0, "0"},
		{2.1e-12, "2.1e-12"},
		{math.NaN(), "null"},
		{math.Inf(1), "null"},
		{math.Inf(-1), "null"},
	}
	for _, tt := range tests {
		got, err := json.Marshal(Number(tt.in))
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(got))
	}
}

func TestManifest(t *testing.T) {
	// A single-sample category has no confidence interval
	res := analyze(t, "tumor_loc", "t", 0, []float64{5}, []float64{1, 2, 3})
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, NewManifest(res, "run-1", now).Encode(&buf))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	meta := decoded["metadata"].(map[string]interface{})
	assert.Equal(t, "2024-03-01T12:00:00Z", meta["generated_at"])
	assert.Equal(t, "run-1", meta["run_id"])
	assert.Equal(t, config.AppVersion, meta["version"])
	assert.Equal(t, "tumor_loc", decoded["variable"])

	outputs := decoded["outputs"].([]interface{})
	require.Len(t, outputs, 1)
	out := outputs[0].(map[string]interface{})
	assert.Equal(t, testOutput, out["output"])

	summaries := out["summaries"].([]interface{})
	first := summaries[0].(map[string]interface{})
	assert.Equal(t, float64(5), first["mean"])
	assert.Nil(t, first["ci_low"])

	cats := decoded["categories"].([]interface{})
	assert.Equal(t, "Frontal", cats[0].(map[string]interface{})["label"])
}

func TestManifest_TukeyPairs(t *testing.T) {
	sig := NewManifest(analyze(t, "tumor_loc", "t", 2, testutil.ThreeGroups...), "", time.Now())
	require.Len(t, sig.Outputs, 1)
	assert.True(t, sig.Outputs[0].Significant)
	assert.Len(t, sig.Outputs[0].Pairs, 3)
	assert.Equal(t, []string{"a", "a", "b"}, sig.Outputs[0].Labels)

	flat := NewManifest(analyze(t, "tumor_loc", "t", 2, testutil.FlatGroups...), "", time.Now())
	assert.False(t, flat.Outputs[0].Significant)
	assert.Empty(t, flat.Outputs[0].Pairs)
}

func TestBuildWorkbook(t *testing.T) {
	results := []*analysis.VariableResult{
		analyze(t, "tumor_loc", "t", 2, testutil.ThreeGroups...),
		analyze(t, "approach", "t", 2, testutil.FlatGroups...),
	}

	book, err := BuildWorkbook(results)
	require.NoError(t, err)
	defer book.Close()

	assert.Equal(t, []string{"tumor_loc", "approach"}, book.GetSheetList())

	rows, err := book.GetRows("tumor_loc")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 7)
	assert.Equal(t, []string{"", "Frontal", "Parietal", "Occipital", "ANOVA"}, rows[0])
	assert.Equal(t, "8.0 (b) N=3", rows[1][3])
	assert.Equal(t, "Output", rows[3][0])
	assert.Equal(t, []string{testOutput, "2", "Occipital", "3"}, rows[6][:4])
	assert.Equal(t, "b", rows[6][8])
}

func TestBuildWorkbook_Errors(t *testing.T) {
	_, err := BuildWorkbook(nil)
	assert.Equal(t, apperrors.ErrTypeInsufficientData, apperrors.TypeOf(err))

	res := analyze(t, "tumor_loc", "t", 2, testutil.ThreeGroups...)
	_, err = BuildWorkbook([]*analysis.VariableResult{res, res})
	assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "approach", sheetName("approach"))
	assert.Len(t, sheetName(strings.Repeat("x", 40)), maxSheetName)
}

func TestWriter_WriteVariable(t *testing.T) {
	dir := t.TempDir()
	logger, logs := testutil.NewTestLogger(t)
	w := NewWriter(&config.Paths{ResultsDir: dir}, logger, nil).WithRunID("run-42")

	res := analyze(t, "tumor_loc", "t", 2, testutil.ThreeGroups...)
	paths, err := w.WriteVariable(context.Background(), res)
	require.NoError(t, err)

	want := []string{
		filepath.Join(dir, "results_t", "tumor_loc_anova_tHSD.txt"),
		filepath.Join(dir, "results_t", "tumor_loc_anova_tHSD.tsv"),
		filepath.Join(dir, "results_t", "tumor_loc_anova_tHSD.json"),
	}
	assert.Equal(t, want, paths)
	assert.Equal(t, want[0], w.TextPath(res))

	tsv, err := os.ReadFile(want[1])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(tsv), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "\tFrontal\tParietal\tOccipital\tANOVA", lines[0])
	assert.Equal(t, testOutput+"\t2.0 (a) N=3\t3.0 (a) N=3\t8.0 (b) N=3\tp=0.0007 f=31.0", lines[1])

	text, err := os.ReadFile(want[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(text), "tumor_loc\n"))

	js, err := os.ReadFile(want[2])
	require.NoError(t, err)
	assert.Contains(t, string(js), `"run_id": "run-42"`)

	testutil.AssertLogContains(t, logs, slog.LevelInfo, "reports written")
	testutil.AssertLogAttr(t, logs, "component", "report")
}

func TestWriter_WriteWorkbooks(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(&config.Paths{ResultsDir: dir}, nil, nil)

	results := []*analysis.VariableResult{
		analyze(t, "tumor_loc", "t", 2, testutil.ThreeGroups...),
		analyze(t, "tumor_loc", "raw", 2, testutil.FlatGroups...),
		analyze(t, "approach", "t", 2, testutil.FlatGroups...),
	}

	paths, err := w.WriteWorkbooks(context.Background(), results)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "results_t", "t_anova.xlsx"),
		filepath.Join(dir, "results_raw", "raw_anova.xlsx"),
	}, paths)

	book, err := excelize.OpenFile(paths[0])
	require.NoError(t, err)
	defer book.Close()
	assert.Equal(t, []string{"tumor_loc", "approach"}, book.GetSheetList())
}

func TestWriter_UnwritableDirectory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "results_t")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0644))

	w := NewWriter(&config.Paths{ResultsDir: dir}, nil, nil)
	_, err := w.WriteVariable(context.Background(), analyze(t, "tumor_loc", "t", 2, testutil.ThreeGroups...))
	assert.Equal(t, apperrors.ErrTypeStorage, apperrors.TypeOf(err))
}
