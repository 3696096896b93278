package services

import "context"

type contextKey string

const (
	runIDKey contextKey = "run_id"
	phaseKey contextKey = "phase"
	rootKey  contextKey = "root"
)

// WithRunID annotates context with the reconcile run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithPhase annotates context with the current run phase.
func WithPhase(ctx context.Context, phase string) context.Context {
	if phase == "" {
		return ctx
	}
	return context.WithValue(ctx, phaseKey, phase)
}

// PhaseFromContext returns the phase name if present.
func PhaseFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(phaseKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRoot annotates context with the video root being reconciled.
func WithRoot(ctx context.Context, root string) context.Context {
	if root == "" {
		return ctx
	}
	return context.WithValue(ctx, rootKey, root)
}

// RootFromContext returns the video root if present.
func RootFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(rootKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
