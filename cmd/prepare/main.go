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
	"slices"
	"time"

	"npastat/internal/codebook"
	"npastat/internal/config"
	"npastat/internal/exporter"
	"npastat/internal/infrastructure"
	"npastat/internal/registry"
	"npastat/internal/validation"
)

// Preparation modes
const (
	modeRace   = "race"
	modeTumor  = "tumor"
	modeExpand = "expand"
)

var modes = []string{modeRace, modeTumor, modeExpand}

// options are the parsed command line flags
type options struct {
	mode       string
	in         string
	out        string
	configFile string
	codebook   string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("prepare", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.mode, "mode", modeExpand, "preparation step: race, tumor or expand")
	fs.StringVar(&opts.in, "in", "", "registry CSV export (required)")
	fs.StringVar(&opts.out, "out", "", "output CSV (defaults to the mode's file in the data directory)")
	fs.StringVar(&opts.configFile, "config", "", "config file (defaults to npastat.yaml lookup)")
	fs.StringVar(&opts.codebook, "codebook", "", "codebook YAML overriding the embedded one")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if !slices.Contains(modes, opts.mode) {
		return nil, fmt.Errorf("unknown mode %q (want one of %v)", opts.mode, modes)
	}
	if opts.in == "" {
		return nil, fmt.Errorf("-in is required")
	}
	return opts, nil
}

func loadConfig(file string) (*config.Config, error) {
	if file != "" {
		return config.LoadFile(file)
	}
	return config.Load()
}

// defaultOutput is where each mode writes when -out is not given
func defaultOutput(paths *config.Paths, mode string) string {
	switch mode {
	case modeRace:
		return paths.GetDataPath(config.RaceFileName)
	case modeTumor:
		return paths.GetDataPath(config.TumorFileName)
	default:
		return paths.GetDataPath(config.ExpandedFileName)
	}
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

	if opts.codebook == "" {
		opts.codebook = cfg.Analysis.CodebookFile
	}

	ctx, runID := infrastructure.StartRun(context.Background())
	logger = logger.With(slog.String("run_id", runID), slog.String("mode", opts.mode))

	if err := run(ctx, opts, paths, logger); err != nil {
		logger.ErrorContext(ctx, "Preparation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run executes one preparation step
func run(ctx context.Context, opts *options, paths *config.Paths, logger *slog.Logger) error {
	start := time.Now()
	validator := validation.NewFileValidator(logger)

	if err := validator.ValidateRegistryFile(opts.in, registry.PatientKey); err != nil {
		return err
	}
	out := opts.out
	if out == "" {
		out = defaultOutput(paths, opts.mode)
	}
	out, err := filepath.Abs(out)
	if err != nil {
		return err
	}
	if err := validator.ValidateOutputDirectory(filepath.Dir(out)); err != nil {
		return err
	}

	logger.InfoContext(ctx, "Loading registry export", slog.String("path", opts.in))
	f, err := registry.LoadCSV(ctx, opts.in)
	if err != nil {
		return fmt.Errorf("load %s: %w", opts.in, err)
	}
	logger.InfoContext(ctx, "Registry loaded",
		slog.Int("rows", f.Len()),
		slog.Int("columns", len(f.Names())))

	var result *registry.Frame
	switch opts.mode {
	case modeRace:
		result, err = prepareRace(ctx, f, logger)
	case modeTumor:
		result, err = registry.TumorSize(f, registry.PatientKey)
	default:
		result, err = prepareExpanded(f, opts.codebook)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", opts.mode, err)
	}

	if err := result.Save(exporter.NewCSVWriter(paths, logger), out); err != nil {
		return err
	}

	logger.InfoContext(ctx, "Preparation complete",
		slog.String("output", out),
		slog.Int("rows", result.Len()),
		slog.Int("columns", len(result.Names())),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func prepareRace(ctx context.Context, f *registry.Frame, logger *slog.Logger) (*registry.Frame, error) {
	if err := registry.ClassifyRace(f); err != nil {
		return nil, err
	}
	counts, err := registry.RaceCounts(f)
	if err != nil {
		return nil, err
	}
	attrs := make([]any, 0, len(counts))
	for _, race := range append(slices.Clone(registry.Races), "NA") {
		if n, ok := counts[race]; ok {
			attrs = append(attrs, slog.Int(race, n))
		}
	}
	logger.InfoContext(ctx, "Race classified", slog.Group("counts", attrs...))
	return f, nil
}

// prepareExpanded derives symptom totals and PROMIS scores per encounter,
// then collapses to one row per patient.
func prepareExpanded(f *registry.Frame, codebookFile string) (*registry.Frame, error) {
	cb, err := codebook.Load(codebookFile)
	if err != nil {
		return nil, err
	}
	if err := registry.AddSymptomTotals(f); err != nil {
		return nil, err
	}
	if err := registry.AddPROMISScores(f, cb.SummaryWeights.Mental, cb.SummaryWeights.Physical); err != nil {
		return nil, err
	}
	return registry.CollapsePatients(f, registry.PatientKey)
}
