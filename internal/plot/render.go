package plot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	gonumplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"npastat/internal/analysis"
	"npastat/internal/config"
	apperrors "npastat/internal/errors"
	"npastat/internal/infrastructure"
)

const (
	barWidth   = vg.Length(28)
	plotWidth  = 5 * vg.Inch
	plotHeight = 6 * vg.Inch
)

// meanCI pairs bar means with their confidence interval distances
type meanCI struct {
	plotter.XYs
	plotter.YErrors
}

// Plot draws the chart: one coloured bar per category with its 95% CI,
// the wrapped group letters above it and a "Group A: label" legend.
func (c *Chart) Plot() (*gonumplot.Plot, error) {
	p := gonumplot.New()
	p.Title.Text = c.Title()
	p.Y.Label.Text = c.Output

	keys := make([]string, len(c.Bars))
	points := meanCI{
		XYs:     make(plotter.XYs, len(c.Bars)),
		YErrors: make(plotter.YErrors, len(c.Bars)),
	}
	labels := plotter.XYLabels{
		XYs:    make(plotter.XYs, len(c.Bars)),
		Labels: make([]string, len(c.Bars)),
	}

	for k, b := range c.Bars {
		keys[k] = b.Key

		bar, err := plotter.NewBarChart(plotter.Values{b.Mean}, barWidth)
		if err != nil {
			return nil, fmt.Errorf("bar %s: %w", b.Key, err)
		}
		bar.XMin = float64(k)
		bar.Color = b.Color
		bar.LineStyle.Width = 0
		p.Add(bar)
		p.Legend.Add(fmt.Sprintf("Group %s: %s", b.Key, b.Label), bar)

		low, high := b.errorBar()
		points.XYs[k] = plotter.XY{X: float64(k), Y: b.Mean}
		points.YErrors[k].Low, points.YErrors[k].High = low, high

		labels.XYs[k] = plotter.XY{X: float64(k), Y: c.TextHeight(b)}
		labels.Labels[k] = Wrap(b.Groups)
	}

	if len(c.Bars) > 0 {
		errBars, err := plotter.NewYErrorBars(points)
		if err != nil {
			return nil, fmt.Errorf("error bars: %w", err)
		}
		errBars.LineStyle.Width = vg.Points(0.6)
		p.Add(errBars)

		letters, err := plotter.NewLabels(labels)
		if err != nil {
			return nil, fmt.Errorf("group labels: %w", err)
		}
		for i := range letters.TextStyle {
			letters.TextStyle[i].XAlign = text.XCenter
		}
		p.Add(letters)
	}

	p.NominalX(keys...)
	p.Legend.Top = true
	p.Y.Min, p.Y.Max = c.Min, c.Max
	return p, nil
}

// Renderer saves the charts of analysis results as PNG files
type Renderer struct {
	paths   *config.Paths
	logger  *slog.Logger
	metrics *infrastructure.AnalysisMetrics
	Width   vg.Length
	Height  vg.Length
}

// NewRenderer creates a chart renderer. Relative result directories resolve
// against paths.ResultsDir; nil paths keep them relative to the working
// directory.
func NewRenderer(paths *config.Paths, logger *slog.Logger, metrics *infrastructure.AnalysisMetrics) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		paths:   paths,
		logger:  infrastructure.WithComponent(logger, "plot"),
		metrics: metrics,
		Width:   plotWidth,
		Height:  plotHeight,
	}
}

func (r *Renderer) resolve(elem ...string) string {
	path := filepath.Join(elem...)
	if r.paths == nil || filepath.IsAbs(path) {
		return path
	}
	return r.paths.GetResultPath(path)
}

// RenderVariable saves <dir>/<var>/<output>.png for every output of res and
// the combined <dir>/<var>.png with every chart in two columns.
func (r *Renderer) RenderVariable(ctx context.Context, res *analysis.VariableResult) ([]string, error) {
	dir := r.resolve(res.ResultDir, res.Variable)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apperrors.NewStorageError("failed to create plot directory", err)
	}

	var (
		paths []string
		plots []*gonumplot.Plot
	)
	for i := range res.Outputs {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		out := &res.Outputs[i]
		p, err := NewChart(res, out).Plot()
		if err != nil {
			return paths, fmt.Errorf("plot %s by %s: %w", out.Output, res.Variable, err)
		}

		path := filepath.Join(dir, out.Output+".png")
		if err := p.Save(r.Width, r.Height, path); err != nil {
			return paths, apperrors.NewStorageError(fmt.Sprintf("failed to save %s", path), err)
		}
		infrastructure.RecordReportWritten(ctx, r.metrics, "png")
		paths = append(paths, path)
		plots = append(plots, p)
	}

	combined := r.resolve(res.ResultDir, res.Variable+".png")
	if err := r.saveGrid(plots, combined); err != nil {
		return paths, err
	}
	infrastructure.RecordReportWritten(ctx, r.metrics, "png")
	paths = append(paths, combined)

	r.logger.InfoContext(ctx, "plots written",
		slog.String("variable", res.Variable),
		slog.String("battery", res.Battery),
		slog.Int("files", len(paths)))
	return paths, nil
}

// saveGrid tiles plots two per row into one image
func (r *Renderer) saveGrid(plots []*gonumplot.Plot, path string) error {
	if len(plots) == 0 {
		return apperrors.NewInsufficientDataError("no plots to combine")
	}

	const cols = 2
	rows := (len(plots) + cols - 1) / cols

	grid := make([][]*gonumplot.Plot, rows)
	for j := range grid {
		grid[j] = make([]*gonumplot.Plot, cols)
		for i := range grid[j] {
			if k := j*cols + i; k < len(plots) {
				grid[j][i] = plots[k]
				continue
			}
			blank := gonumplot.New()
			blank.HideAxes()
			grid[j][i] = blank
		}
	}

	img := vgimg.New(r.Width*cols, r.Height*vg.Length(rows))
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: rows,
		Cols: cols,
		PadX: vg.Millimeter,
		PadY: vg.Millimeter,
	}

	canvases := gonumplot.Align(grid, tiles, dc)
	for j := range grid {
		for i := range grid[j] {
			grid[j][i].Draw(canvases[j][i])
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return apperrors.NewStorageError("failed to create combined plot", err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return apperrors.NewStorageError("failed to write combined plot", err)
	}
	return f.Close()
}
