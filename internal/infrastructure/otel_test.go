package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"npastat/internal/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOTelInitialization(t *testing.T) {
	providers, err := InitializeOTel(nil, quietLogger())
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Registry)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestOTelConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		config  *OTelConfig
		wantErr bool
	}{
		{
			name: "stdout traces",
			config: &OTelConfig{
				ServiceName: "npastat-test", ServiceVersion: "v0", Environment: "test",
				TraceExporter: "stdout", MetricExporter: "prometheus",
				EnableMetrics: true, EnableTracing: true, SampleRatio: 1,
			},
		},
		{
			name: "metrics disabled",
			config: &OTelConfig{
				ServiceName: "npastat-test", Environment: "test",
				TraceExporter: "none", MetricExporter: "none",
				EnableTracing: true, SampleRatio: 1,
			},
		},
		{
			name: "unknown trace exporter",
			config: &OTelConfig{
				ServiceName: "npastat-test", TraceExporter: "otlp",
				EnableTracing: true,
			},
			wantErr: true,
		},
		{
			name: "unknown metric exporter",
			config: &OTelConfig{
				ServiceName: "npastat-test", MetricExporter: "statsd",
				EnableMetrics: true,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers, err := InitializeOTel(tt.config, quietLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			if tt.config.EnableTracing {
				assert.NotNil(t, providers.Tracer)
			}
			if tt.config.EnableMetrics {
				assert.NotNil(t, providers.Meter)
			} else {
				assert.Nil(t, providers.Registry)
			}
			assert.NoError(t, providers.Shutdown(context.Background()))
		})
	}
}

func TestOTelConfigFrom(t *testing.T) {
	oc := OTelConfigFrom(config.TelemetryConfig{ServiceName: "registry", TraceStdout: true})
	assert.Equal(t, "registry", oc.ServiceName)
	assert.Equal(t, "stdout", oc.TraceExporter)

	oc = OTelConfigFrom(config.TelemetryConfig{})
	assert.Equal(t, ServiceName, oc.ServiceName)
	assert.Equal(t, "none", oc.TraceExporter)
}

func TestTraceCorrelation(t *testing.T) {
	providers, err := InitializeOTel(DefaultOTelConfig(), quietLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, span := otel.Tracer("test").Start(context.Background(), "run")
	defer span.End()

	traceID := TraceIDFromContext(ctx)
	assert.Equal(t, span.SpanContext().TraceID().String(), traceID)
	assert.Equal(t, traceID, GetTraceID(ctx))

	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestSpanHelpers(t *testing.T) {
	providers, err := InitializeOTel(DefaultOTelConfig(), quietLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, span := otel.Tracer("test").Start(context.Background(), "analysis")
	defer span.End()

	SetSpanAttributes(ctx, map[string]interface{}{
		"variable":   "tumor_loc",
		"categories": 4,
		"p":          0.012,
		"tukey":      true,
		"rows":       int64(120),
		"outputs":    []string{"a"},
	})
	AddSpanEvent(ctx, "category.skipped", map[string]interface{}{"code": 7})
	RecordError(ctx, assert.AnError)

	assert.True(t, span.IsRecording())

	// helpers are no-ops without a recording span
	SetSpanAttributes(context.Background(), map[string]interface{}{"x": 1})
	RecordError(context.Background(), assert.AnError)
}

func gather(t *testing.T, providers *OTelProviders) string {
	t.Helper()
	families, err := providers.Registry.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	return strings.Join(names, "\n")
}

func TestAnalysisMetrics(t *testing.T) {
	providers, err := InitializeOTel(DefaultOTelConfig(), quietLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	m, err := CreateAnalysisMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	RecordRowsLoaded(ctx, m, "npa_expanded.csv", 250)
	RecordAnalysisMetrics(ctx, m, "tumor_loc", "t", 40*time.Millisecond, nil)
	RecordAnalysisMetrics(ctx, m, "approach", "t", time.Millisecond, assert.AnError)
	RecordSkippedAnalysis(ctx, m, "reason_readmit", "raw", "insufficient_categories")
	RecordComparison(ctx, m, "p29_pf_t_score", true, 6, 2)
	RecordComparison(ctx, m, "p29_sd_t_score", false, 0, 0)
	RecordReportWritten(ctx, m, "tsv")

	names := gather(t, providers)
	for _, want := range []string{
		"registry_rows_loaded_total",
		"analysis_runs_total",
		"analysis_duration_seconds",
		"analysis_skipped_total",
		"anova_tests_total",
		"tukey_pairs_total",
		"reports_written_total",
		"analysis_errors_total",
	} {
		assert.Contains(t, names, want)
	}

	// nil metrics are ignored
	RecordAnalysisMetrics(ctx, nil, "x", "y", 0, nil)
	RecordComparison(ctx, nil, "x", true, 1, 1)
}

func TestPushMetrics(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		body string
	)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		path, body = r.URL.Path, string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	providers, err := InitializeOTel(DefaultOTelConfig(), quietLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	m, err := CreateAnalysisMetrics(providers.Meter)
	require.NoError(t, err)
	RecordRowsLoaded(context.Background(), m, "npa_expanded.csv", 10)

	require.NoError(t, providers.PushMetrics(context.Background(), gateway.URL, "npastat_test"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/metrics/job/npastat_test", path)
	assert.NotEmpty(t, body)
}

func TestPushMetrics_NoGateway(t *testing.T) {
	providers := &OTelProviders{Logger: quietLogger()}
	assert.NoError(t, providers.PushMetrics(context.Background(), "", "job"))
	assert.Error(t, providers.PushMetrics(context.Background(), "http://localhost:9091", "job"))
}

func TestSystemMetrics(t *testing.T) {
	providers, err := InitializeOTel(DefaultOTelConfig(), quietLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	sm, err := NewSystemMetrics(providers.Meter)
	require.NoError(t, err)

	stats := sm.Collect(context.Background(), time.Now().Add(-time.Second))
	assert.Positive(t, stats.GoRoutines)
	assert.Positive(t, stats.MemorySystem)
	assert.GreaterOrEqual(t, stats.RunDuration, time.Second)
	assert.Len(t, stats.LogAttrs(), 12)

	assert.Contains(t, gather(t, providers), "system_memory_usage_bytes")

	var none *SystemMetrics
	assert.NotNil(t, none.Collect(context.Background(), time.Now()))
}
