package logging

import (
	"context"
	"log/slog"
)

// teeHandler forwards each record to every sink whose level accepts it.
type teeHandler struct {
	sinks []slog.Handler
}

func newTeeHandler(handlers ...slog.Handler) slog.Handler {
	sinks := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			sinks = append(sinks, h)
		}
	}
	switch len(sinks) {
	case 0:
		return NoopHandler{}
	case 1:
		return sinks[0]
	}
	return &teeHandler{sinks: sinks}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sink := range h.sinks {
		if sink.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	last := len(h.sinks) - 1
	for idx, sink := range h.sinks {
		if !sink.Enabled(ctx, record.Level) {
			continue
		}
		rec := record
		if idx < last {
			rec = record.Clone()
		}
		if err := sink.Handle(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(sink slog.Handler) slog.Handler { return sink.WithAttrs(attrs) })
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(sink slog.Handler) slog.Handler { return sink.WithGroup(name) })
}

func (h *teeHandler) derive(fn func(slog.Handler) slog.Handler) slog.Handler {
	next := make([]slog.Handler, len(h.sinks))
	for i, sink := range h.sinks {
		next[i] = fn(sink)
	}
	return &teeHandler{sinks: next}
}

// TeeLogger duplicates log output from base into the provided handlers.
func TeeLogger(base *slog.Logger, handlers ...slog.Handler) *slog.Logger {
	if base == nil {
		return slog.New(newTeeHandler(handlers...))
	}
	all := append([]slog.Handler{base.Handler()}, handlers...)
	return slog.New(newTeeHandler(all...))
}
