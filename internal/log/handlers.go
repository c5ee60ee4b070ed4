package log

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// otelHandler stamps trace_id/span_id from the active span onto each record.
type otelHandler struct{ next slog.Handler }

func (h otelHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

func (h otelHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, r)
}

func (h otelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return otelHandler{next: h.next.WithAttrs(attrs)}
}

func (h otelHandler) WithGroup(name string) slog.Handler {
	return otelHandler{next: h.next.WithGroup(name)}
}

// stackHandler adds a "stack" attr to records at or above level, preferring
// the stack captured on an "err" attr over the logging call site.
type stackHandler struct {
	next  slog.Handler
	level slog.Level
}

func (h stackHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

func (h stackHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < h.level {
		return h.next.Handle(ctx, r)
	}

	var pcs []uintptr
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != "err" {
			return true
		}
		if hs, ok := a.Value.Any().(hasStack); ok && hs != nil {
			pcs = hs.StackPCs()
			return false
		}
		return true
	})
	if len(pcs) == 0 {
		pcs = callerStack(4)
	}
	r.AddAttrs(slog.String("stack", renderPCs(pcs)))
	return h.next.Handle(ctx, r)
}

func (h stackHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return stackHandler{next: h.next.WithAttrs(attrs), level: h.level}
}

func (h stackHandler) WithGroup(name string) slog.Handler {
	return stackHandler{next: h.next.WithGroup(name), level: h.level}
}
