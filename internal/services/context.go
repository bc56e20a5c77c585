package services

import "context"

type contextKey string

const (
	stageKey contextKey = "stage"
	pathKey  contextKey = "path"
	runIDKey contextKey = "run_id"
)

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithPath annotates context with the file or subpath a run operates on.
func WithPath(ctx context.Context, path string) context.Context {
	if path == "" {
		return ctx
	}
	return context.WithValue(ctx, pathKey, path)
}

// PathFromContext returns the operated-on path if present.
func PathFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(pathKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRunID annotates context with a run correlation identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run correlation identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
