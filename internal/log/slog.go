package log

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"
)

type slogLogger struct {
	h                 slog.Handler
	attrs             []slog.Attr
	includeErrorLinks bool
	maxErrorLinks     int
}

func newSlog(opts Options) (Logger, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	if opts.StacktraceLevel == 0 {
		opts.StacktraceLevel = slog.LevelError
	}
	if opts.MaxErrorLinks <= 0 {
		opts.MaxErrorLinks = 8
	}

	hopts := &slog.HandlerOptions{Level: opts.Level, AddSource: true}
	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}
	// innermost first: trace ids, then stacks on records at/above StacktraceLevel
	h = otelHandler{next: h}
	h = stackHandler{next: h, level: opts.StacktraceLevel}

	base := []slog.Attr{slog.String("app", opts.App)}
	if opts.Env != "" {
		base = append(base, slog.String("env", opts.Env))
	}
	if opts.Version != "" {
		base = append(base, slog.String("version", opts.Version))
	}

	return &slogLogger{
		h:                 h,
		attrs:             base,
		includeErrorLinks: opts.IncludeErrorLinks,
		maxErrorLinks:     opts.MaxErrorLinks,
	}, nil
}

func (s *slogLogger) With(kv ...any) Logger {
	add := kvAttrs(kv)
	// copy-on-write so loggers are safe to share concurrently
	next := make([]slog.Attr, 0, len(s.attrs)+len(add))
	next = append(next, s.attrs...)
	next = append(next, add...)
	return &slogLogger{
		h:                 s.h,
		attrs:             next,
		includeErrorLinks: s.includeErrorLinks,
		maxErrorLinks:     s.maxErrorLinks,
	}
}

func (s *slogLogger) Debug(ctx context.Context, msg string, kv ...any) {
	s.log(ctx, slog.LevelDebug, msg, kv)
}

func (s *slogLogger) Info(ctx context.Context, msg string, kv ...any) {
	s.log(ctx, slog.LevelInfo, msg, kv)
}

func (s *slogLogger) Warn(ctx context.Context, msg string, kv ...any) {
	s.log(ctx, slog.LevelWarn, msg, kv)
}

func (s *slogLogger) Error(ctx context.Context, err error, msg string, kv ...any) {
	if err != nil {
		surface, root := classifyTypes(err)
		kv = append(kv,
			"err", err,
			"error_type", surface,
			"cause_type", root,
		)
		if chain := errorChain(err); len(chain) > 0 {
			kv = append(kv, "error_chain", chain)
		}
		if s.includeErrorLinks {
			kv = append(kv, "error_links", chainLinks(err, s.maxErrorLinks))
		}
	}
	s.log(ctx, slog.LevelError, msg, kv)
}

func (s *slogLogger) Sync() error { return nil }

func (s *slogLogger) log(ctx context.Context, lvl slog.Level, msg string, kv []any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.h.Enabled(ctx, lvl) {
		return
	}
	// skip runtime.Callers, log, and the exported level method
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])

	r := slog.NewRecord(time.Now(), lvl, msg, pcs[0])
	r.AddAttrs(s.attrs...)
	r.AddAttrs(kvAttrs(kv)...)
	_ = s.h.Handle(ctx, r)
}

// kvAttrs converts alternating key/value pairs, dropping non-string keys and orphans.
func kvAttrs(kv []any) []slog.Attr {
	out := make([]slog.Attr, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			out = append(out, slog.Any(k, kv[i+1]))
		}
	}
	return out
}
