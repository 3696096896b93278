package logging

import (
	"context"
	"log/slog"

	"mvsync/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized structured logging key for reconcile run identifiers.
	FieldRunID = "run_id"
	// FieldPhase is the standardized structured logging key for run phases.
	FieldPhase = "phase"
	// FieldRoot is the standardized structured logging key for the video root.
	FieldRoot = "video_root"
	// FieldEventType is a machine-friendly name for the logged event.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to an operator reading a warning or error.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if phase, ok := services.PhaseFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPhase, phase))
	}
	if root, ok := services.RootFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRoot, root))
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
