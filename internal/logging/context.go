package logging

import (
	"context"
	"log/slog"

	"clipspace/internal/extern"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldItemID is the standardized structured logging key for item identifiers.
	FieldItemID = "item_id"
	// FieldJob is the standardized structured logging key for derivation job kinds.
	FieldJob = "job"
	// FieldPool is the standardized structured logging key for worker pool names.
	FieldPool = "pool"
	// FieldSpaceID is the standardized structured logging key for space identifiers.
	FieldSpaceID = "space_id"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType tags log lines with a machine-readable event name.
	FieldEventType = "event_type"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := extern.ItemIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldItemID, id))
	}
	if job, ok := extern.JobFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJob, job))
	}
	if pool, ok := extern.PoolFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPool, pool))
	}
	if rid, ok := extern.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
