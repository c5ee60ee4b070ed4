package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// UnmatchedRoute labels requests that no route pattern matched, so probing
// arbitrary paths cannot grow label cardinality.
const UnmatchedRoute = "unmatched"

type statusWriter struct {
	http.ResponseWriter
	status int
	n      int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.n += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Middleware measures inflight, total, duration, and size (safe labels).
func (m *ServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// the router fills an existing route context in place, which lets us
		// read the matched pattern after it returns
		if chi.RouteContext(r.Context()) == nil {
			rctx := chi.NewRouteContext()
			r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
		}

		m.inflight.Inc()
		defer m.inflight.Dec()

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		statusCode := sw.status
		if statusCode == 0 {
			statusCode = http.StatusOK
		}

		method := r.Method
		ctx := r.Context()
		route := routeLabel(ctx)

		m.reqTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
		if statusCode >= 500 {
			m.errTotal.WithLabelValues(method, route).Inc()
		}

		lat := time.Since(start).Seconds()
		obs := m.reqDur.WithLabelValues(method, route)
		if ex := traceExemplar(ctx); ex != nil {
			if eo, ok := obs.(prometheus.ExemplarObserver); ok {
				eo.ObserveWithExemplar(lat, ex)
			} else {
				obs.Observe(lat)
			}
		} else {
			obs.Observe(lat)
		}

		m.respBytes.WithLabelValues(method, route).Observe(float64(sw.n))
	})
}

func routeLabel(ctx context.Context) string {
	if rc := chi.RouteContext(ctx); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return UnmatchedRoute
}

// if a sampled trace is present attach its trace_id as an exemplar
func traceExemplar(ctx context.Context) prometheus.Labels {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() || !sc.IsSampled() {
		return nil
	}
	return prometheus.Labels{"trace_id": sc.TraceID().String()}
}
