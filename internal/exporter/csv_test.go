package exporter

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"npastat/internal/config"
)

// Setup test environment
func setupTestEnv(t *testing.T) (*CSVWriter, *config.Paths) {
	t.Helper()

	paths, err := config.NewPaths(config.PathsConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)

	return NewCSVWriter(paths, nil), paths
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	content = bytes.TrimPrefix(content, utf8BOM)
	return strings.Split(strings.TrimRight(string(content), "\n"), "\n")
}

func TestNewCSVWriter(t *testing.T) {
	paths := &config.Paths{}
	writer := NewCSVWriter(paths, nil)

	assert.NotNil(t, writer)
	assert.Equal(t, paths, writer.paths)
	assert.NotNil(t, writer.logger)
}

func TestCSVWriter_LogsThroughInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	paths, err := config.NewPaths(config.PathsConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)
	writer := NewCSVWriter(paths, logger)

	s, err := writer.CreateStreamWriter("data/npa_tumor_data.csv", []string{"pt_study_id", "tvol"}, false)
	require.NoError(t, err)
	require.NoError(t, s.WriteRecord([]string{"1", "6000"}))
	require.NoError(t, s.Close())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "CSV stream written", entry["msg"])
	assert.Equal(t, "exporter", entry["component"])
	assert.Equal(t, paths.GetDataPath("npa_tumor_data.csv"), entry["full_path"])
	assert.Equal(t, 1.0, entry["rows"])
}

func TestCSVWriter_WriteCSV(t *testing.T) {
	writer, paths := setupTestEnv(t)

	tests := []struct {
		name     string
		filePath string
		options  WriteOptions
		validate func(t *testing.T, fullPath string)
	}{
		{
			name:     "basic write with headers",
			filePath: "basic.csv",
			options: WriteOptions{
				Headers: []string{"pt_study_id", "tvol", "dmax"},
				Records: [][]string{
					{"101", "24", "4"},
					{"102", "", ""},
				},
			},
			validate: func(t *testing.T, fullPath string) {
				lines := readLines(t, fullPath)
				assert.Equal(t, []string{"pt_study_id,tvol,dmax", "101,24,4", "102,,"}, lines)
			},
		},
		{
			name:     "write with BOM prefix",
			filePath: "bom.csv",
			options: WriteOptions{
				Headers:   []string{"prace"},
				Records:   [][]string{{"Asian, White"}},
				BOMPrefix: true,
			},
			validate: func(t *testing.T, fullPath string) {
				content, err := os.ReadFile(fullPath)
				require.NoError(t, err)
				assert.True(t, bytes.HasPrefix(content, utf8BOM))
				assert.Equal(t, []string{"prace", `"Asian, White"`}, readLines(t, fullPath))
			},
		},
		{
			name:     "tab delimited",
			filePath: "nested/dir/out.tsv",
			options: WriteOptions{
				Headers: []string{"", "Right", "Left", "ANOVA"},
				Records: [][]string{{"p29_pf_t_score", "45.1 (a) N=20", "40.0 (b) N=18", "p=0.0123 f=6.5"}},
				Comma:   '\t',
			},
			validate: func(t *testing.T, fullPath string) {
				lines := readLines(t, fullPath)
				require.Len(t, lines, 2)
				assert.Equal(t, "\tRight\tLeft\tANOVA", lines[0])
				assert.Equal(t, "p29_pf_t_score\t45.1 (a) N=20\t40.0 (b) N=18\tp=0.0123 f=6.5", lines[1])
			},
		},
		{
			name:     "empty records",
			filePath: "empty.csv",
			options: WriteOptions{
				Headers: []string{"Col1", "Col2"},
				Records: [][]string{},
			},
			validate: func(t *testing.T, fullPath string) {
				assert.Equal(t, []string{"Col1,Col2"}, readLines(t, fullPath))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := writer.WriteCSV(tt.filePath, tt.options)
			require.NoError(t, err)
			tt.validate(t, filepath.Join(paths.ResultsDir, tt.filePath))
		})
	}
}

func TestCSVWriter_AppendToCSV(t *testing.T) {
	writer, paths := setupTestEnv(t)

	require.NoError(t, writer.WriteCSV("append.csv", WriteOptions{
		Headers: []string{"a", "b"},
		Records: [][]string{{"1", "2"}},
	}))
	require.NoError(t, writer.AppendToCSV("append.csv", [][]string{{"3", "4"}}))

	lines := readLines(t, filepath.Join(paths.ResultsDir, "append.csv"))
	assert.Equal(t, []string{"a,b", "1,2", "3,4"}, lines)
}

func TestCSVWriter_WriteTSV(t *testing.T) {
	writer, paths := setupTestEnv(t)

	require.NoError(t, writer.WriteTSV("x.tsv", []string{"a", "b"}, [][]string{{"1", "2"}}))

	content, err := os.ReadFile(filepath.Join(paths.ResultsDir, "x.tsv"))
	require.NoError(t, err)
	assert.Equal(t, "a\tb\n1\t2\n", string(content))
}

func TestCSVWriter_ResolvePath(t *testing.T) {
	writer, paths := setupTestEnv(t)
	abs := filepath.Join(t.TempDir(), "abs.csv")

	assert.Equal(t, abs, writer.ResolvePath(abs))
	assert.Equal(t, filepath.Join(paths.DataDir, "npa_expanded.csv"), writer.ResolvePath("data/npa_expanded.csv"))
	assert.Equal(t, filepath.Join(paths.ResultsDir, "results_summary", "a.tsv"),
		writer.ResolvePath(filepath.Join("results_summary", "a.tsv")))
	assert.Equal(t, "rel.csv", NewCSVWriter(nil, nil).ResolvePath("rel.csv"))
}

func TestStreamWriter(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		records [][]string
		bom     bool
		want    []string
	}{
		{
			name:    "headers and records with bom",
			headers: []string{"pt_study_id", "fup_total"},
			records: [][]string{{"1", "3"}, {"2", ""}},
			bom:     true,
			want:    []string{"pt_study_id,fup_total", "1,3", "2,"},
		},
		{
			name:    "records only",
			records: [][]string{{"x"}},
			want:    []string{"x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer, paths := setupTestEnv(t)

			s, err := writer.CreateStreamWriter("data/stream.csv", tt.headers, tt.bom)
			require.NoError(t, err)
			for _, r := range tt.records {
				require.NoError(t, s.WriteRecord(r))
			}
			assert.Equal(t, len(tt.records), s.Rows())
			require.NoError(t, s.Close())

			full := filepath.Join(paths.DataDir, "stream.csv")
			content, err := os.ReadFile(full)
			require.NoError(t, err)
			assert.Equal(t, tt.bom, bytes.HasPrefix(content, utf8BOM))
			assert.Equal(t, tt.want, readLines(t, full))
		})
	}
}

func TestCSVWriter_WriteCSV_UnwritableDirectory(t *testing.T) {
	writer, paths := setupTestEnv(t)

	// a file where a directory is expected
	blocker := filepath.Join(paths.ResultsDir, "blocked")
	require.NoError(t, os.MkdirAll(paths.ResultsDir, 0755))
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	err := writer.WriteCSV(filepath.Join("blocked", "out.csv"), WriteOptions{Headers: []string{"a"}})
	assert.Error(t, err)
}
