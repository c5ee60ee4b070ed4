package httpmw

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/linnemanlabs-starter/internal/log"
)

// responseWriter captures status and bytes written for the access log.
type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// WithLogger stores a request-scoped logger in the context, pre-populated with
// the request ID and client address. It also tags the active span with them.
func WithLogger(base log.Logger) Middleware {
	if base == nil {
		base = log.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reqID := RequestIDFromContext(ctx)
			clientAddr := ClientIPFromContext(ctx)

			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(
					attribute.String("request_id", reqID),
					attribute.String("client.address", clientAddr),
				)
			}

			L := base.With(
				"request_id", reqID,
				"client.address", clientAddr,
				"http.request.method", r.Method,
				"url.path", r.URL.Path,
			)
			next.ServeHTTP(w, r.WithContext(log.WithContext(ctx, L)))
		})
	}
}

// AccessLog emits one line per request after the response is written.
// Health probes are skipped.
func AccessLog() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w}

			next.ServeHTTP(rw, r)

			if r.URL.Path == "/-/ready" || r.URL.Path == "/-/healthy" {
				return
			}

			status := rw.status
			if status == 0 {
				status = http.StatusOK
			}

			ctx := r.Context()
			log.FromContext(ctx).Info(ctx, "http request",
				"http.response.status_code", status,
				"http.server.request.duration", time.Since(start).Seconds(),
				"http.response.body.size", rw.bytes,
				"http.request.body.size", max(r.ContentLength, 0),
			)
		})
	}
}
