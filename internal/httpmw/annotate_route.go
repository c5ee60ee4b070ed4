package httpmw

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RoutePattern returns the matched chi pattern, or "" before routing or when
// nothing matched.
func RoutePattern(ctx context.Context) string {
	if rc := chi.RouteContext(ctx); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

// AnnotateHTTPRoute sets the http.route attribute and renames the server span
// to "METHOD pattern" once the router has run. It must sit inside the router
// (chi Use) so the route context is populated.
func AnnotateHTTPRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)

		span := trace.SpanFromContext(r.Context())
		if !span.IsRecording() {
			return
		}
		route := RoutePattern(r.Context())
		if route == "" {
			return
		}
		span.SetAttributes(attribute.String("http.route", route))
		span.SetName(r.Method + " " + route)
	})
}
