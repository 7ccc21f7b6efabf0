package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// StartRun tags ctx with a new run ID (UUID v4). Every log line written
// with the returned context carries it as trace_id, so one batch run can
// be pulled out of a shared log file.
func StartRun(ctx context.Context) (context.Context, string) {
	id := uuid.New().String()
	return WithTraceID(ctx, id), id
}

// WithComponent creates a logger with a component field
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}
