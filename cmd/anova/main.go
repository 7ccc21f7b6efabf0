package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"npastat/internal/analysis"
	"npastat/internal/codebook"
	"npastat/internal/config"
	"npastat/internal/infrastructure"
	"npastat/internal/plot"
	"npastat/internal/registry"
	"npastat/internal/report"
	"npastat/internal/validation"
)

// options are the parsed command line flags. Plots and workbook are nil
// when the flag was not given, so the config value applies.
type options struct {
	in         string
	out        string
	batteries  []string
	variables  []string
	plots      *bool
	workbook   *bool
	configFile string
	codebook   string
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("anova", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	var batteries, variables string
	fs.StringVar(&opts.in, "in", "", "prepared registry CSV (defaults to npa_expanded.csv in the data directory)")
	fs.StringVar(&opts.out, "out", "", "results directory (defaults to the configured one)")
	fs.StringVar(&batteries, "battery", "", "comma separated batteries to run (default all)")
	fs.StringVar(&variables, "var", "", "comma separated variables to run (default all)")
	fs.Func("plots", "write PNG charts (true/false)", boolFlag(&opts.plots))
	fs.Func("workbook", "write one xlsx workbook per battery (true/false)", boolFlag(&opts.workbook))
	fs.StringVar(&opts.configFile, "config", "", "config file (defaults to npastat.yaml lookup)")
	fs.StringVar(&opts.codebook, "codebook", "", "codebook YAML overriding the embedded one")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	opts.batteries = splitList(batteries)
	opts.variables = splitList(variables)
	return opts, nil
}

func boolFlag(dst **bool) func(string) error {
	return func(s string) error {
		switch strings.ToLower(s) {
		case "1", "t", "true", "yes":
			v := true
			*dst = &v
		case "0", "f", "false", "no":
			v := false
			*dst = &v
		default:
			return fmt.Errorf("invalid boolean %q", s)
		}
		return nil
	}
}

// apply merges the flags over the loaded configuration
func (o *options) apply(cfg *config.Config) {
	if o.out != "" {
		cfg.Paths.ResultsDir = o.out
	}
	if o.plots != nil {
		cfg.Analysis.Plots = *o.plots
	}
	if o.workbook != nil {
		cfg.Analysis.Workbook = *o.workbook
	}
	if o.codebook != "" {
		cfg.Analysis.CodebookFile = o.codebook
	}
}

func loadConfig(file string) (*config.Config, error) {
	if file != "" {
		return config.LoadFile(file)
	}
	return config.Load()
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(2)
	}

	cfg, err := loadConfig(opts.configFile)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	opts.apply(cfg)

	paths, err := cfg.ResolvePaths()
	if err != nil {
		slog.Error("Failed to initialize paths", "error", err)
		os.Exit(1)
	}
	if err := paths.EnsureDirectories(); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	if !filepath.IsAbs(cfg.Logging.FilePath) {
		cfg.Logging.FilePath = filepath.Join(paths.BaseDir, cfg.Logging.FilePath)
	}
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()
	paths.LogPathResolution()

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		logger.Error("Failed to initialize OpenTelemetry", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, runID := infrastructure.StartRun(context.Background())
	logger = logger.With(slog.String("run_id", runID))

	code := 0
	if err := run(ctx, opts, cfg, paths, providers, runID, logger); err != nil {
		logger.ErrorContext(ctx, "Analysis failed", slog.String("error", err.Error()))
		code = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.PushMetrics(shutdownCtx, cfg.Telemetry.PushgatewayURL, cfg.Telemetry.PushJob); err != nil {
		logger.Warn("Failed to push metrics", slog.String("error", err.Error()))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Failed to shut down telemetry", slog.String("error", err.Error()))
	}
	if code != 0 {
		infrastructure.CloseLogFile()
		os.Exit(code)
	}
}

// run loads the prepared registry table, analyses the selected variables
// and writes every report.
func run(ctx context.Context, opts *options, cfg *config.Config, paths *config.Paths,
	providers *infrastructure.OTelProviders, runID string, logger *slog.Logger) error {
	start := time.Now()

	var (
		metrics *infrastructure.AnalysisMetrics
		system  *infrastructure.SystemMetrics
	)
	if providers != nil && providers.Meter != nil {
		var err error
		if metrics, err = infrastructure.CreateAnalysisMetrics(providers.Meter); err != nil {
			return fmt.Errorf("create metrics: %w", err)
		}
		if system, err = infrastructure.NewSystemMetrics(providers.Meter); err != nil {
			return fmt.Errorf("create system metrics: %w", err)
		}
	}

	cb, err := codebook.Load(cfg.Analysis.CodebookFile)
	if err != nil {
		return err
	}
	if cb, err = cb.Select(opts.variables...); err != nil {
		return err
	}
	batteries, err := cb.SelectBatteries(opts.batteries...)
	if err != nil {
		return err
	}

	in := opts.in
	if in == "" {
		in = paths.GetDataPath(config.ExpandedFileName)
	}
	validator := validation.NewFileValidator(logger)
	if err := validator.ValidateRegistryFile(in, registry.PatientKey); err != nil {
		return err
	}
	if err := validator.ValidateOutputDirectory(paths.ResultsDir); err != nil {
		return err
	}

	f, err := registry.LoadCSV(ctx, in)
	if err != nil {
		return err
	}
	infrastructure.RecordRowsLoaded(ctx, metrics, filepath.Base(in), f.Len())
	logger.InfoContext(ctx, "Registry loaded",
		slog.String("path", in),
		slog.Int("rows", f.Len()),
		slog.Int("columns", len(f.Names())))

	analyzer, err := analysis.NewAnalyzer(analysis.OptionsFrom(cfg.Analysis), logger, metrics)
	if err != nil {
		return err
	}
	results, err := analyzer.RunAll(ctx, f, cb, batteries)
	if err != nil {
		return err
	}

	files, err := writeResults(ctx, cfg.Analysis, paths, results, metrics, runID, logger)
	if err != nil {
		return err
	}

	stats := system.Collect(ctx, start)
	logger.InfoContext(ctx, "Analysis run complete",
		append([]any{
			slog.String("input", in),
			slog.Int("results", len(results)),
			slog.Int("files", files),
		}, stats.LogAttrs()...)...)
	return nil
}

// writeResults writes the reports and charts of every result in parallel,
// then the battery workbooks, and returns how many files were written.
func writeResults(ctx context.Context, cfg config.AnalysisConfig, paths *config.Paths,
	results []*analysis.VariableResult, metrics *infrastructure.AnalysisMetrics,
	runID string, logger *slog.Logger) (int, error) {

	writer := report.NewWriter(paths, logger, metrics).WithRunID(runID)
	renderer := plot.NewRenderer(paths, logger, metrics)

	written := make([]int, len(results))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, res := range results {
		g.Go(func() error {
			files, err := writer.WriteVariable(gctx, res)
			if err != nil {
				return fmt.Errorf("report %s/%s: %w", res.Battery, res.Variable, err)
			}
			written[i] = len(files)

			if !cfg.Plots {
				return nil
			}
			charts, err := renderer.RenderVariable(gctx, res)
			if err != nil {
				return fmt.Errorf("plots %s/%s: %w", res.Battery, res.Variable, err)
			}
			written[i] += len(charts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, n := range written {
		total += n
	}

	if cfg.Workbook && len(results) > 0 {
		books, err := writer.WriteWorkbooks(ctx, results)
		if err != nil {
			return total, err
		}
		total += len(books)
	}
	return total, nil
}
