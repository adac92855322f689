// Package log lets call sites attach structured attributes to a
// context.Context so that every subsequent slog call made against that
// context carries them, without threading a logger value explicitly.
package log

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// New wraps base so that records logged through it pick up any
// attributes previously attached to the record's context via
// ContextAttrs.
func New(base slog.Handler) slog.Handler {
	return &handler{base: base}
}

// ContextAttrs returns a context carrying attrs in addition to any
// already attached to ctx. Attributes accumulate across nested calls.
func ContextAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	existing, _ := ctx.Value(ctxKey{}).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(existing)+len(attrs))
	merged = append(merged, existing...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, ctxKey{}, merged)
}

type handler struct {
	base slog.Handler
}

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(ctxKey{}).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}
	return h.base.Handle(ctx, r)
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &handler{base: h.base.WithAttrs(attrs)}
}

func (h *handler) WithGroup(name string) slog.Handler {
	return &handler{base: h.base.WithGroup(name)}
}
