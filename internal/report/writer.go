package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"npastat/internal/analysis"
	"npastat/internal/config"
	apperrors "npastat/internal/errors"
	"npastat/internal/exporter"
	"npastat/internal/infrastructure"
)

// Writer saves analysis results under the results directory
type Writer struct {
	files   *exporter.CSVWriter
	logger  *slog.Logger
	metrics *infrastructure.AnalysisMetrics
	runID   string
	now     func() time.Time
}

// NewWriter creates a report writer. Relative result directories resolve
// against paths.ResultsDir; nil paths keep them relative to the working
// directory.
func NewWriter(paths *config.Paths, logger *slog.Logger, metrics *infrastructure.AnalysisMetrics) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		files:   exporter.NewCSVWriter(paths, logger),
		logger:  infrastructure.WithComponent(logger, "report"),
		metrics: metrics,
		now:     time.Now,
	}
}

// WithRunID stamps manifests with the run identifier
func (w *Writer) WithRunID(runID string) *Writer {
	w.runID = runID
	return w
}

// TextPath returns where the text report of res is written
func (w *Writer) TextPath(res *analysis.VariableResult) string {
	return w.files.ResolvePath(filepath.Join(res.ResultDir, res.Variable+"_anova_tHSD.txt"))
}

// WriteVariable writes the text report, TSV summary and JSON manifest of
// res and returns their paths.
func (w *Writer) WriteVariable(ctx context.Context, res *analysis.VariableResult) ([]string, error) {
	base := filepath.Join(res.ResultDir, res.Variable+"_anova_tHSD")

	txt := w.files.ResolvePath(base + ".txt")
	if err := writeFile(txt, func(f io.Writer) error { return WriteText(f, res) }); err != nil {
		return nil, err
	}
	infrastructure.RecordReportWritten(ctx, w.metrics, "txt")

	header, records := TSVRecords(res)
	if err := w.files.WriteTSV(base+".tsv", header, records); err != nil {
		return nil, apperrors.NewStorageError("failed to write TSV report", err)
	}
	tsv := w.files.ResolvePath(base + ".tsv")
	infrastructure.RecordReportWritten(ctx, w.metrics, "tsv")

	manifest := NewManifest(res, w.runID, w.now())
	js := w.files.ResolvePath(base + ".json")
	if err := writeFile(js, manifest.Encode); err != nil {
		return nil, err
	}
	infrastructure.RecordReportWritten(ctx, w.metrics, "json")

	w.logger.InfoContext(ctx, "reports written",
		slog.String("variable", res.Variable),
		slog.String("battery", res.Battery),
		slog.String("text", txt))
	return []string{txt, tsv, js}, nil
}

// WriteWorkbooks writes one <battery>_anova.xlsx per battery in results,
// each with a sheet per variable, in result order.
func (w *Writer) WriteWorkbooks(ctx context.Context, results []*analysis.VariableResult) ([]string, error) {
	var order []string
	byBattery := make(map[string][]*analysis.VariableResult)
	for _, res := range results {
		if _, ok := byBattery[res.Battery]; !ok {
			order = append(order, res.Battery)
		}
		byBattery[res.Battery] = append(byBattery[res.Battery], res)
	}

	paths := make([]string, 0, len(order))
	for _, battery := range order {
		group := byBattery[battery]
		path := w.files.ResolvePath(filepath.Join(group[0].ResultDir, battery+"_anova.xlsx"))
		if err := w.writeWorkbook(path, group); err != nil {
			return paths, err
		}
		infrastructure.RecordReportWritten(ctx, w.metrics, "xlsx")
		w.logger.InfoContext(ctx, "workbook written",
			slog.String("battery", battery),
			slog.Int("sheets", len(group)),
			slog.String("path", path))
		paths = append(paths, path)
	}
	return paths, nil
}

func (w *Writer) writeWorkbook(path string, results []*analysis.VariableResult) error {
	book, err := BuildWorkbook(results)
	if err != nil {
		return err
	}
	defer book.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewStorageError("failed to create report directory", err)
	}
	if err := book.SaveAs(path); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to save workbook %s", path), err)
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewStorageError("failed to create report directory", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return apperrors.NewStorageError("failed to create report", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return apperrors.NewStorageError(fmt.Sprintf("failed to write %s", path), err)
	}
	return f.Close()
}
