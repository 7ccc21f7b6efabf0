package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"npastat/internal/codebook"
	apperrors "npastat/internal/errors"
	"npastat/internal/grouping"
	"npastat/internal/infrastructure"
	"npastat/internal/registry"
	"npastat/internal/stats"
)

// ErrInsufficientCategories means fewer than two categories of a variable
// had enough complete rows to compare.
var ErrInsufficientCategories = &apperrors.AppError{
	Type:    apperrors.ErrTypeInsufficientData,
	Message: "insufficient categories",
}

// Analyzer runs the ANOVA and Tukey HSD comparisons of a variable's
// categories over an outcome battery.
type Analyzer struct {
	opts    Options
	logger  *slog.Logger
	metrics *infrastructure.AnalysisMetrics
	tracer  trace.Tracer
}

// NewAnalyzer validates opts. A nil logger uses slog.Default; nil metrics
// are not recorded.
func NewAnalyzer(opts Options, logger *slog.Logger, metrics *infrastructure.AnalysisMetrics) (*Analyzer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		opts:    opts,
		logger:  infrastructure.WithComponent(logger, "analysis"),
		metrics: metrics,
		tracer:  otel.Tracer("npastat/analysis"),
	}, nil
}

// Options returns the analyzer's options
func (a *Analyzer) Options() Options {
	return a.opts
}

// Run compares the categories of v on every output of b.
//
// For each output the category samples (missing values dropped) go through
// a one-way ANOVA. When p < PThreshold a Tukey HSD follows and the pairs
// with p < PThreshold are partitioned into lettered equivalence groups;
// otherwise every category is labelled "a".
func (a *Analyzer) Run(ctx context.Context, f *registry.Frame, v *codebook.Variable, b *codebook.Battery) (*VariableResult, error) {
	ctx, span := a.tracer.Start(ctx, "analysis.Run", trace.WithAttributes(
		attribute.String("variable", v.Name),
		attribute.String("battery", b.Name),
	))
	defer span.End()

	start := time.Now()
	res, err := a.run(ctx, f, v, b)

	switch {
	case errors.Is(err, ErrInsufficientCategories):
		a.logger.WarnContext(ctx, "ANOVA not performed",
			slog.String("variable", v.Name),
			slog.String("battery", b.Name),
			slog.String("reason", "insufficient categories"))
		infrastructure.RecordSkippedAnalysis(ctx, a.metrics, v.Name, b.Name, "insufficient_categories")
	case err != nil:
		infrastructure.RecordError(ctx, err)
		infrastructure.RecordAnalysisMetrics(ctx, a.metrics, v.Name, b.Name, time.Since(start), err)
	default:
		infrastructure.RecordAnalysisMetrics(ctx, a.metrics, v.Name, b.Name, time.Since(start), nil)
	}
	return res, err
}

func (a *Analyzer) run(ctx context.Context, f *registry.Frame, v *codebook.Variable, b *codebook.Battery) (*VariableResult, error) {
	cats, err := a.SelectCategories(f, v, b.Outputs)
	if err != nil {
		return nil, fmt.Errorf("select categories of %s: %w", v.Name, err)
	}
	if len(cats) < 2 {
		return nil, fmt.Errorf("%s on %s battery (%d categories): %w", v.Name, b.Name, len(cats), ErrInsufficientCategories)
	}

	infrastructure.SetSpanAttributes(ctx, map[string]interface{}{"categories": len(cats)})
	a.logger.DebugContext(ctx, "categories selected",
		slog.String("variable", v.Name),
		slog.String("battery", b.Name),
		slog.Int("count", len(cats)))

	res := &VariableResult{
		Variable:   v.Name,
		Battery:    b.Name,
		ResultDir:  b.ResultDir,
		Categories: cats,
		Alpha:      a.opts.PThreshold,
		Confidence: a.opts.Confidence,
	}

	for i, name := range b.Outputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		values, err := f.Values(name)
		if err != nil {
			return nil, err
		}
		out, err := a.compare(ctx, name, cats, values)
		if err != nil {
			return nil, fmt.Errorf("compare %s by %s: %w", name, v.Name, err)
		}
		out.Min, out.Max = b.Range(i)
		res.Outputs = append(res.Outputs, *out)
	}
	return res, nil
}

// compare runs the tests for one output
func (a *Analyzer) compare(ctx context.Context, output string, cats []Category, values []float64) (*OutputResult, error) {
	_, span := a.tracer.Start(ctx, "analysis.compare", trace.WithAttributes(attribute.String("output", output)))
	defer span.End()

	samples := make([][]float64, len(cats))
	summaries := make([]stats.Summary, len(cats))
	for k, c := range cats {
		samples[k] = c.samples(values)
		summaries[k] = stats.Describe(samples[k])
	}

	anova, err := stats.OneWayANOVA(samples...)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Float64("anova.f", anova.F), attribute.Float64("anova.p", anova.P))

	out := &OutputResult{
		Output:    output,
		ANOVA:     anova,
		Samples:   samples,
		Summaries: summaries,
		Labels:    grouping.UniformLabels(len(cats)),
	}

	if !anova.Significant(a.opts.PThreshold) {
		infrastructure.RecordComparison(ctx, a.metrics, output, false, 0, 0)
		return out, nil
	}

	tukey, err := stats.TukeyHSDConfidence(a.opts.Confidence, samples...)
	if err != nil {
		return nil, err
	}
	diff, err := grouping.DifferenceMatrixFromPValues(tukey.PValue, a.opts.PThreshold)
	if err != nil {
		return nil, err
	}
	part, err := grouping.Partition(diff)
	if err != nil {
		return nil, err
	}

	out.Tukey = tukey
	out.Partition = part
	out.Labels = part.Labels()

	sig := len(tukey.Significant(a.opts.PThreshold))
	infrastructure.RecordComparison(ctx, a.metrics, output, true, len(tukey.Pairs()), sig)
	a.logger.DebugContext(ctx, "significant difference",
		slog.String("output", output),
		slog.Float64("p", anova.P),
		slog.Float64("f", anova.F),
		slog.Int("significant_pairs", sig),
		slog.Any("labels", out.Labels))

	return out, nil
}

// RunAll analyses every codebook variable against each battery, in
// variable order. Variables that cannot be analysed are logged and
// skipped; only cancellation stops the run.
func (a *Analyzer) RunAll(ctx context.Context, f *registry.Frame, cb *codebook.Codebook, batteries []*codebook.Battery) ([]*VariableResult, error) {
	ctx, span := a.tracer.Start(ctx, "analysis.RunAll")
	defer span.End()

	var results []*VariableResult
	for i := range cb.Variables {
		v := &cb.Variables[i]
		for _, b := range batteries {
			if err := ctx.Err(); err != nil {
				return results, err
			}

			res, err := a.Run(ctx, f, v, b)
			switch {
			case errors.Is(err, ErrInsufficientCategories):
				continue
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return results, err
			case err != nil:
				a.logger.ErrorContext(ctx, "analysis failed",
					slog.String("variable", v.Name),
					slog.String("battery", b.Name),
					slog.String("error", err.Error()))
				continue
			}
			results = append(results, res)
		}
	}

	a.logger.InfoContext(ctx, "analysis complete",
		slog.Int("variables", len(cb.Variables)),
		slog.Int("batteries", len(batteries)),
		slog.Int("results", len(results)))
	return results, nil
}
