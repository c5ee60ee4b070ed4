package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/keithlinneman/linnemanlabs-starter/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-starter/internal/log"
	"github.com/keithlinneman/linnemanlabs-starter/internal/metrics"
	"github.com/keithlinneman/linnemanlabs-starter/internal/ratelimit"
	"github.com/keithlinneman/linnemanlabs-starter/internal/xerrors"
)

// NewHandler builds the router and wraps it in the request pipeline.
// opts is filled with defaults in place.
func NewHandler(opts *Options) http.Handler {
	opts.withDefaults()
	m := opts.Metrics
	conf := opts.Config

	// chi router
	r := chi.NewRouter()

	// Annotate tracer with http.route from chi route pattern if trace is recording
	r.Use(httpmw.AnnotateHTTPRoute)

	r.Method(http.MethodGet, "/metrics", m.Handler())
	opts.API.RegisterRoutes(r)

	admission := ratelimit.NewAdmission(
		conf.RateBuffer,
		ratelimit.NewFixedWindow(conf.RateLimit, conf.RateWindow),
		ratelimit.WithOnShed(func() { m.IncShed(metrics.ShedBufferFull) }),
		ratelimit.WithOnDepth(m.SetAdmissionQueueDepth),
		ratelimit.WithOnAdmit(m.ObserveAdmissionWait),
	)

	var clientLimit httpmw.Middleware
	if opts.ClientLimiter != nil {
		clientLimit = opts.ClientLimiter.Middleware
	}

	return httpmw.Chain(r,
		// panics outside the boundary still get the 500 body
		httpmw.Recover(opts.Logger, m.IncHttpPanic),
		// security headers outermost so every response carries them
		httpmw.SecurityHeaders,
		httpmw.RequestID("X-Request-Id"),
		httpmw.ClientIP(conf.TrustedHops),
		otelhttp.NewMiddleware("http.server",
			otelhttp.WithFilter(func(r *http.Request) bool {
				// scrapes would drown out real traffic
				return r.URL.Path != "/metrics"
			}),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				// AnnotateHTTPRoute renames the span to the route pattern later
				return r.Method + " " + r.URL.Path
			}),
			otelhttp.WithPublicEndpointFn(func(*http.Request) bool { return true }),
		),
		httpmw.TraceResponseHeaders("X-Trace-Id", "X-Span-Id"),
		httpmw.WithLogger(opts.Logger),
		httpmw.AccessLog(),
		httpmw.Boundary(errorHandler(m)),
		httpmw.Deadline(conf.RequestTimeout),
		clientLimit,
		admission.Middleware,
		m.Middleware,
	)
}

// errorHandler counts and logs faults before writing the JSON error body.
func errorHandler(m *metrics.ServerMetrics) httpmw.ErrorHandler {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		ctx := r.Context()
		L := log.FromContext(ctx)

		var te *httpmw.TimeoutError
		if errors.As(err, &te) {
			m.IncTimeout()
			L.Warn(ctx, "request deadline exceeded", "timeout", te.Timeout.String())
		} else {
			m.IncFault()
			var pe *xerrors.PanicError
			if errors.As(err, &pe) {
				m.IncHttpPanic()
			}
			L.Error(ctx, err, "unhandled error serving request")
		}
		httpmw.WriteError(w, r, err)
	}
}

// Server timeout defaults, shared with opshttp.
const (
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultReadTimeout       = 10 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20 // 1 MB
)

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		MaxHeaderBytes:    DefaultMaxHeaderBytes,
	}
}

// newPublicServer is NewServer with a write deadline that outlasts the
// request deadline, otherwise the 408 could never be written.
func newPublicServer(addr string, handler http.Handler, requestTimeout time.Duration) *http.Server {
	srv := NewServer(addr, handler)
	srv.WriteTimeout = requestTimeout + DefaultWriteTimeout
	return srv
}

// Start resolves and binds the public listener, then serves in the background.
// Returns stop(ctx) for graceful shutdown.
func Start(ctx context.Context, opts *Options) (func(context.Context) error, error) {
	handler := NewHandler(opts)
	L := opts.Logger

	addr, err := net.ResolveTCPAddr("tcp", opts.Config.Addr())
	if err != nil {
		return nil, xerrors.Wrapf(err, "resolve listen address %q", opts.Config.Addr())
	}

	srv := newPublicServer(addr.String(), handler, opts.Config.RequestTimeout)

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr.String())
	if err != nil {
		return nil, xerrors.Wrapf(err, "listen on %s", addr)
	}

	L.Info(ctx, "Server started and listening", "addr", ln.Addr().String())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			L.Error(ctx, err, "http server error")
		}
	}()

	var once sync.Once
	stop := func(sctx context.Context) (retErr error) {
		once.Do(func() {
			L.Info(sctx, "http server shutting down")
			retErr = srv.Shutdown(sctx)
		})
		return retErr
	}
	return stop, nil
}
