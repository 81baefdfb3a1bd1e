package extern

import "context"

type contextKey string

const (
	itemIDKey    contextKey = "item_id"
	jobKey       contextKey = "job"
	poolKey      contextKey = "pool"
	requestIDKey contextKey = "request_id"
)

// WithItemID annotates context with the item identifier.
func WithItemID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, itemIDKey, id)
}

// ItemIDFromContext extracts the item identifier if present.
func ItemIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(itemIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithJob annotates context with the derivation job kind.
func WithJob(ctx context.Context, job string) context.Context {
	if job == "" {
		return ctx
	}
	return context.WithValue(ctx, jobKey, job)
}

// JobFromContext returns the job kind if present.
func JobFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(jobKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithPool annotates context with the worker pool name (media/network).
func WithPool(ctx context.Context, pool string) context.Context {
	if pool == "" {
		return ctx
	}
	return context.WithValue(ctx, poolKey, pool)
}

// PoolFromContext returns the pool name if present.
func PoolFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(poolKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
