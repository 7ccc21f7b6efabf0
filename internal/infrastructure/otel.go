package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"npastat/internal/config"
)

const (
	ServiceName    = config.AppName
	ServiceVersion = config.AppVersion
	MeterName      = "npastat"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
}

// OTelProviders holds the OpenTelemetry providers. Registry is the
// Prometheus registry the metric exporter writes to; it is what gets pushed.
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Registry       *promclient.Registry
	Logger         *slog.Logger
}

// DefaultOTelConfig returns a default OpenTelemetry configuration
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    env,
		TraceExporter:  "none",
		MetricExporter: "prometheus",
		EnableMetrics:  true,
		EnableTracing:  true,
		SampleRatio:    1.0,
	}
}

// OTelConfigFrom maps the telemetry section of the app config
func OTelConfigFrom(cfg config.TelemetryConfig) *OTelConfig {
	oc := DefaultOTelConfig()
	if cfg.ServiceName != "" {
		oc.ServiceName = cfg.ServiceName
	}
	if cfg.TraceStdout {
		oc.TraceExporter = "stdout"
	}
	return oc
}

// InitializeOTel initializes tracing and metrics providers
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}

	ctx := context.Background()

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	res, err := createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providers := &OTelProviders{
		Logger: logger,
	}

	if cfg.EnableTracing {
		if err := initializeTracing(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if cfg.EnableMetrics {
		if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return providers, nil
}

func createResource(cfg *OTelConfig) (*resource.Resource, error) {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	), nil
}

func initializeTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	}

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	case "none":
		// spans are still created so trace ids reach the logs
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	tp := sdktrace.NewTracerProvider(opts...)
	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)

	providers.Logger.DebugContext(ctx, "Tracing initialized",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))
	return nil
}

func initializeMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		reg := promclient.NewRegistry()
		exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)

		providers.Registry = reg
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
		otel.SetMeterProvider(mp)

	case "none":
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	providers.Logger.DebugContext(ctx, "Metrics initialized",
		slog.String("exporter", cfg.MetricExporter))
	return nil
}

// PushMetrics sends the collected metrics to a Prometheus Pushgateway.
// An empty url is a no-op.
func (p *OTelProviders) PushMetrics(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if p.Registry == nil {
		return fmt.Errorf("metrics are not enabled")
	}
	if err := push.New(url, job).Gatherer(p.Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	p.Logger.InfoContext(ctx, "Metrics pushed", slog.String("url", url), slog.String("job", job))
	return nil
}

// Shutdown flushes and stops the providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}
	return nil
}

func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// AnalysisMetrics are the counters and histograms of an analysis run
type AnalysisMetrics struct {
	RowsLoaded       metric.Int64Counter
	AnalysesTotal    metric.Int64Counter
	AnalysisDuration metric.Float64Histogram
	AnalysesSkipped  metric.Int64Counter
	ComparisonsTotal metric.Int64Counter
	TukeyPairsTotal  metric.Int64Counter
	ReportsWritten   metric.Int64Counter
	AnalysisErrors   metric.Int64Counter
}

// CreateAnalysisMetrics registers the analysis instruments on meter
func CreateAnalysisMetrics(meter metric.Meter) (*AnalysisMetrics, error) {
	rowsLoaded, err := meter.Int64Counter(
		"registry_rows_loaded_total",
		metric.WithDescription("Registry rows loaded for analysis"),
	)
	if err != nil {
		return nil, err
	}

	analysesTotal, err := meter.Int64Counter(
		"analysis_runs_total",
		metric.WithDescription("Variable and battery analyses completed"),
	)
	if err != nil {
		return nil, err
	}

	analysisDuration, err := meter.Float64Histogram(
		"analysis_duration_seconds",
		metric.WithDescription("Duration of one variable and battery analysis"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	analysesSkipped, err := meter.Int64Counter(
		"analysis_skipped_total",
		metric.WithDescription("Analyses skipped for lack of categories"),
	)
	if err != nil {
		return nil, err
	}

	comparisonsTotal, err := meter.Int64Counter(
		"anova_tests_total",
		metric.WithDescription("One-way ANOVA tests run, by significance"),
	)
	if err != nil {
		return nil, err
	}

	tukeyPairs, err := meter.Int64Counter(
		"tukey_pairs_total",
		metric.WithDescription("Tukey HSD pairwise comparisons, by significance"),
	)
	if err != nil {
		return nil, err
	}

	reportsWritten, err := meter.Int64Counter(
		"reports_written_total",
		metric.WithDescription("Report files written, by format"),
	)
	if err != nil {
		return nil, err
	}

	analysisErrors, err := meter.Int64Counter(
		"analysis_errors_total",
		metric.WithDescription("Analyses that failed"),
	)
	if err != nil {
		return nil, err
	}

	return &AnalysisMetrics{
		RowsLoaded:       rowsLoaded,
		AnalysesTotal:    analysesTotal,
		AnalysisDuration: analysisDuration,
		AnalysesSkipped:  analysesSkipped,
		ComparisonsTotal: comparisonsTotal,
		TukeyPairsTotal:  tukeyPairs,
		ReportsWritten:   reportsWritten,
		AnalysisErrors:   analysisErrors,
	}, nil
}

// TraceIDFromContext extracts trace ID from context for logging correlation
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

// AddSpanEvent adds an event to the current span with structured attributes
func AddSpanEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(toAttributes(attributes)...))
}

// SetSpanAttributes sets attributes on the current span
func SetSpanAttributes(ctx context.Context, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(toAttributes(attributes)...)
}

func toAttributes(attributes map[string]interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
	return attrs
}

// RecordAnalysisMetrics records one variable and battery analysis
func RecordAnalysisMetrics(ctx context.Context, m *AnalysisMetrics, variable, battery string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("variable", variable),
		attribute.String("battery", battery),
	}

	status := "success"
	if err != nil {
		status = "failure"
		m.AnalysisErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	withStatus := append(attrs, attribute.String("status", status))
	m.AnalysesTotal.Add(ctx, 1, metric.WithAttributes(withStatus...))
	m.AnalysisDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(withStatus...))
}

// RecordSkippedAnalysis counts an analysis that could not run
func RecordSkippedAnalysis(ctx context.Context, m *AnalysisMetrics, variable, battery, reason string) {
	if m == nil {
		return
	}
	m.AnalysesSkipped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("variable", variable),
		attribute.String("battery", battery),
		attribute.String("reason", reason),
	))
}

// RecordComparison counts one ANOVA and the Tukey pairs that followed it
func RecordComparison(ctx context.Context, m *AnalysisMetrics, output string, significant bool, pairs, significantPairs int) {
	if m == nil {
		return
	}
	m.ComparisonsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("output", output),
		attribute.Bool("significant", significant),
	))
	if pairs == 0 {
		return
	}
	m.TukeyPairsTotal.Add(ctx, int64(significantPairs), metric.WithAttributes(attribute.Bool("significant", true)))
	m.TukeyPairsTotal.Add(ctx, int64(pairs-significantPairs), metric.WithAttributes(attribute.Bool("significant", false)))
}

// RecordRowsLoaded counts registry rows read for a run
func RecordRowsLoaded(ctx context.Context, m *AnalysisMetrics, source string, rows int) {
	if m == nil {
		return
	}
	m.RowsLoaded.Add(ctx, int64(rows), metric.WithAttributes(attribute.String("source", source)))
}

// RecordReportWritten counts a written report file
func RecordReportWritten(ctx context.Context, m *AnalysisMetrics, format string) {
	if m == nil {
		return
	}
	m.ReportsWritten.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format)))
}
