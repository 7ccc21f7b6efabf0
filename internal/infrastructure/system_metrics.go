package infrastructure

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// SystemMetrics records the process footprint of a batch run
type SystemMetrics struct {
	goRoutines      metric.Int64Gauge
	memoryUsage     metric.Int64Gauge
	memoryAllocated metric.Int64Gauge
	memorySystem    metric.Int64Gauge
	gcCount         metric.Int64Gauge
	runDuration     metric.Float64Gauge
}

// NewSystemMetrics registers the runtime gauges on meter
func NewSystemMetrics(meter metric.Meter) (*SystemMetrics, error) {
	goRoutines, err := meter.Int64Gauge(
		"system_goroutines",
		metric.WithDescription("Number of active goroutines"),
	)
	if err != nil {
		return nil, err
	}

	memoryUsage, err := meter.Int64Gauge(
		"system_memory_usage_bytes",
		metric.WithDescription("Heap bytes in use"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	memoryAllocated, err := meter.Int64Gauge(
		"system_memory_allocated_bytes",
		metric.WithDescription("Cumulative bytes allocated"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	memorySystem, err := meter.Int64Gauge(
		"system_memory_system_bytes",
		metric.WithDescription("Memory obtained from the OS in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	gcCount, err := meter.Int64Gauge(
		"system_gc_count",
		metric.WithDescription("Completed garbage collection cycles"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Gauge(
		"system_run_duration_seconds",
		metric.WithDescription("Wall time of the batch run"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &SystemMetrics{
		goRoutines:      goRoutines,
		memoryUsage:     memoryUsage,
		memoryAllocated: memoryAllocated,
		memorySystem:    memorySystem,
		gcCount:         gcCount,
		runDuration:     runDuration,
	}, nil
}

// SystemStats is a snapshot of the runtime
type SystemStats struct {
	GoRoutines      int64
	MemoryUsage     int64
	MemoryAllocated int64
	MemorySystem    int64
	GCCount         uint32
	RunDuration     time.Duration
}

// Collect snapshots the runtime and records it. A nil receiver only
// snapshots.
func (sm *SystemMetrics) Collect(ctx context.Context, startTime time.Time) *SystemStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := &SystemStats{
		GoRoutines:      int64(runtime.NumGoroutine()),
		MemoryUsage:     int64(mem.Alloc),
		MemoryAllocated: int64(mem.TotalAlloc),
		MemorySystem:    int64(mem.Sys),
		GCCount:         mem.NumGC,
		RunDuration:     time.Since(startTime),
	}
	if sm == nil {
		return stats
	}

	sm.goRoutines.Record(ctx, stats.GoRoutines)
	sm.memoryUsage.Record(ctx, stats.MemoryUsage)
	sm.memoryAllocated.Record(ctx, stats.MemoryAllocated)
	sm.memorySystem.Record(ctx, stats.MemorySystem)
	sm.gcCount.Record(ctx, int64(stats.GCCount))
	sm.runDuration.Record(ctx, stats.RunDuration.Seconds())
	return stats
}

// LogAttrs renders the snapshot for the end-of-run log line
func (stats *SystemStats) LogAttrs() []any {
	return []any{
		"goroutines", stats.GoRoutines,
		"memory_usage_mb", stats.MemoryUsage / 1024 / 1024,
		"memory_alloc_mb", stats.MemoryAllocated / 1024 / 1024,
		"memory_system_mb", stats.MemorySystem / 1024 / 1024,
		"gc_count", stats.GCCount,
		"duration_seconds", stats.RunDuration.Seconds(),
	}
}
