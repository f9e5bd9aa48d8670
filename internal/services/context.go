package services

import "context"

type contextKey string

const (
	batchKey      contextKey = "batch"
	sourceFileKey contextKey = "source_file"
	runIDKey      contextKey = "run_id"
)

// WithBatch annotates context with the yymmdd batch folder name.
func WithBatch(ctx context.Context, batch string) context.Context {
	if batch == "" {
		return ctx
	}
	return context.WithValue(ctx, batchKey, batch)
}

// BatchFromContext returns the batch name if present.
func BatchFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, batchKey)
}

// WithSourceFile annotates context with the recording being processed.
func WithSourceFile(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, sourceFileKey, name)
}

// SourceFileFromContext returns the recording name if present.
func SourceFileFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, sourceFileKey)
}

// WithRunID annotates context with the invocation's correlation identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the correlation identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, runIDKey)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
