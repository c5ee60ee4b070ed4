package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keithlinneman/linnemanlabs-starter/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-starter/internal/health"
	"github.com/keithlinneman/linnemanlabs-starter/internal/httpserver"
	"github.com/keithlinneman/linnemanlabs-starter/internal/log"
	"github.com/keithlinneman/linnemanlabs-starter/internal/metrics"
	"github.com/keithlinneman/linnemanlabs-starter/internal/opshttp"
	"github.com/keithlinneman/linnemanlabs-starter/internal/otelx"
	"github.com/keithlinneman/linnemanlabs-starter/internal/prof"
	"github.com/keithlinneman/linnemanlabs-starter/internal/ratelimit"
	v "github.com/keithlinneman/linnemanlabs-starter/internal/version"
)

const (
	component = "server"

	// time for load balancers to observe the failing readiness probe
	drainDelay      = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	// Parse config from flags and env
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(vi.String())
		os.Exit(0)
	}

	// Fill in config from unprefixed environment variables (PORT, HOST, APP_ENV, ...)
	cfg.FillFromEnv(flag.CommandLine, "", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	if err := run(conf, vi); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

// run owns the process lifecycle once config is valid. Any returned error is
// a startup failure; shutdown problems are logged.
func run(conf cfg.App, vi v.Info) error {
	// Setup logging
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		return err
	}
	stackLvl, err := log.ParseLevel(cmp.Or(conf.StacktraceLevel, "error"))
	if err != nil {
		return err
	}
	lg, err := log.New(log.Options{
		App:               vi.App,
		Env:               string(conf.Env),
		Version:           vi.Version,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JSON:              conf.JSONLogs(),
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
	if err != nil {
		return err
	}
	// no-op for slog, here so a buffered backend gets flushed on exit
	defer lg.Sync()
	L := lg.With("component", component)
	ctx := log.WithContext(context.Background(), L)

	// secret and storage locator are never logged
	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"vcs_dirty", vi.VCSDirty,
		"addr", conf.Addr(),
		"admin_port", conf.AdminPort,
		"request_timeout", conf.RequestTimeout.String(),
		"rate_limit", conf.RateLimit,
		"rate_window", conf.RateWindow.String(),
		"rate_buffer", conf.RateBuffer,
		"client_rate_limit", conf.ClientRateLimit,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"otlp_endpoint", conf.OTLPEndpoint,
		"trace_sample", conf.TraceSample,
	)

	m := metrics.New()
	m.SetBuildInfoFromVersion(component, &vi)

	// Setup pyroscope profiling, failure is not fatal
	stopProf, err := prof.Start(ctx, prof.OptionsFromConfig(conf, vi))
	if err != nil {
		L.Warn(ctx, "continuing without continuous profiling", "pyro_server", conf.PyroServer)
	}
	defer stopProf()
	m.SetProfilingActive(conf.EnablePyroscope && err == nil)

	// Setup otel for tracing
	shutdownOTEL, err := otelx.Init(ctx, otelx.OptionsFromConfig(conf, component, vi))
	if err != nil {
		return err
	}
	defer func() {
		fctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTEL(fctx); err != nil {
			L.Error(fctx, err, "otel shutdown")
		}
	}()

	sigCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// optional per-client abuse limiter, its eviction loop ends with the process
	var limiter *ratelimit.ClientLimiter
	if conf.ClientRateLimit {
		limiter = ratelimit.NewClientLimiter(sigCtx,
			ratelimit.WithRate(conf.ClientRate, conf.ClientBurst),
			ratelimit.WithOnDenied(func(string) {
				m.IncShed(metrics.ShedClientLimit)
			}),
			// only log the first denial until the client is evicted
			ratelimit.WithOnFirstDenied(func(ip string) {
				L.Warn(ctx, "client rate limit triggered", "client.address", ip)
			}),
			ratelimit.WithOnCapacity(func() {
				m.IncShed(metrics.ShedVisitorCap)
				L.Warn(ctx, "client limiter capacity reached, rejecting new clients until some are evicted")
			}),
		)
	}

	// readiness stays closed until the public listener is bound
	var gate health.ShutdownGate
	gate.Drain("starting")

	httpStop, err := httpserver.Start(ctx, &httpserver.Options{
		Logger:        L,
		Config:        conf,
		Metrics:       m,
		ClientLimiter: limiter,
	})
	if err != nil {
		return err
	}
	defer func() { _ = httpStop(context.Background()) }()

	// admin/ops listener for metrics, health checks and pprof
	// public peers are refused in middleware in case it is ever exposed
	opsStop := func(context.Context) error { return nil }
	if conf.AdminPort != 0 {
		opsStop, err = opshttp.Start(ctx, L, &opshttp.Options{
			Port:        conf.AdminPort,
			Metrics:     m.Handler(),
			EnablePprof: conf.EnablePprof,
			Health:      health.Fixed(true, ""),
			Readiness:   gate.Probe(),
			OnPanic:     m.IncHttpPanic,
		})
		if err != nil {
			return err
		}
		defer func() { _ = opsStop(context.Background()) }()
	}
	gate.Open()

	// notify systemd that we started successfully if started under systemd
	if err := notifySystemd(); err != nil {
		L.Debug(ctx, "systemd notify skipped", "reason", err.Error())
	}

	// wait for ctrl+c / sigterm
	<-sigCtx.Done()
	stopSignals()
	L.Info(ctx, "shutdown signal received")

	// fail readiness so load balancers stop sending new requests
	gate.Drain("shutting down")
	L.Info(ctx, "shutdown gate closed")

	if conf.AdminPort != 0 {
		forceCh := make(chan os.Signal, 1)
		signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
		select {
		case <-time.After(drainDelay):
		case <-forceCh:
			L.Warn(ctx, "second signal received, skipping drain")
		}
		signal.Stop(forceCh)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpStop(shutdownCtx); err != nil {
		L.Error(ctx, err, "http server shutdown")
	}
	if err := opsStop(shutdownCtx); err != nil {
		L.Error(ctx, err, "ops http server shutdown")
	}

	L.Info(ctx, "shutdown complete")
	return nil
}
