package opshttp

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-starter/internal/health"
	"github.com/keithlinneman/linnemanlabs-starter/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-starter/internal/httpserver"
	"github.com/keithlinneman/linnemanlabs-starter/internal/log"
	"github.com/keithlinneman/linnemanlabs-starter/internal/xerrors"
)

// NewHandler builds the admin router: health probes, metrics and, when
// enabled, pprof. Admin traffic skips the public pipeline so probes keep
// answering while the public side is saturated.
func NewHandler(L log.Logger, opts *Options) http.Handler {
	r := chi.NewRouter()
	r.Use(httpmw.Recover(L, opts.OnPanic))

	health.RegisterRoutes(r, opts.Health, opts.Readiness)

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	// pprof (or shadow with 404s)
	if opts.EnablePprof {
		RegisterPprof(r)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmw.WriteJSON(w, http.StatusNotFound, httpmw.ErrorBody{Error: "not found"})
	})
	return r
}

// Start admin HTTP server with /metrics, /-/healthy, /-/ready, pprof debug endpoints
// Returns stop(ctx) for graceful shutdown
func Start(ctx context.Context, L log.Logger, opts *Options) (func(context.Context) error, error) {
	if L == nil {
		L = log.Nop()
	}
	port := opts.Port
	if port == 0 {
		port = 9000
	}
	addr := net.JoinHostPort(opts.Host, strconv.Itoa(port))

	srv := httpserver.NewServer(addr, requireNonPublicNetwork(L, NewHandler(L, opts)))
	if opts.EnablePprof {
		// /debug/pprof/profile streams for 30s by default
		srv.WriteTimeout = 0
	}

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, xerrors.Wrapf(err, "could not listen for admin port on addr=%v", addr)
	}

	go func() {
		L.Info(ctx, "ops http server listening", "addr", ln.Addr().String(), "pprof", opts.EnablePprof)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			L.Error(ctx, err, "ops http server error")
		}
	}()

	var once sync.Once
	stop := func(sctx context.Context) (retErr error) {
		once.Do(func() {
			L.Info(sctx, "ops http server shutting down")
			retErr = srv.Shutdown(sctx)
		})
		return retErr
	}
	return stop, nil
}
