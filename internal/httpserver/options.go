package httpserver

import (
	"time"

	"github.com/keithlinneman/linnemanlabs-starter/internal/apihttp"
	"github.com/keithlinneman/linnemanlabs-starter/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-starter/internal/log"
	"github.com/keithlinneman/linnemanlabs-starter/internal/metrics"
	"github.com/keithlinneman/linnemanlabs-starter/internal/ratelimit"
)

type Options struct {
	Logger log.Logger
	Config cfg.App

	// API serves the JSON routes. Built from Config and Logger when nil.
	API *apihttp.API

	// Metrics instruments the pipeline and backs GET /metrics. A private
	// registry is created when nil.
	Metrics *metrics.ServerMetrics

	// ClientLimiter is the optional per-client-ip abuse limiter. It needs a
	// lifetime context for eviction so the caller owns it.
	ClientLimiter *ratelimit.ClientLimiter
}

// Pipeline defaults, used for zero values in Config.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultRateLimit      = 5
	DefaultRateWindow     = time.Second
	DefaultRateBuffer     = 1024
)

func (o *Options) withDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	if o.Config.RequestTimeout <= 0 {
		o.Config.RequestTimeout = DefaultRequestTimeout
	}
	if o.Config.RateLimit < 1 {
		o.Config.RateLimit = DefaultRateLimit
	}
	if o.Config.RateWindow <= 0 {
		o.Config.RateWindow = DefaultRateWindow
	}
	if o.Config.RateBuffer < 1 {
		o.Config.RateBuffer = DefaultRateBuffer
	}
	if o.Metrics == nil {
		o.Metrics = metrics.New()
	}
	if o.API == nil {
		o.API = apihttp.NewAPI(o.Config, o.Logger)
	}
}
