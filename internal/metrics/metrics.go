package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keithlinneman/linnemanlabs-starter/internal/version"
)

// Shed reasons used as the http_requests_shed_total label.
const (
	ShedBufferFull  = "buffer_full"
	ShedClientLimit = "client_limit"
	ShedVisitorCap  = "visitor_capacity"
)

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

type ServerMetrics struct {
	reg       *prometheus.Registry
	handler   http.Handler
	inflight  prometheus.Gauge
	reqTotal  *prometheus.CounterVec
	reqDur    *prometheus.HistogramVec
	respBytes *prometheus.HistogramVec
	errTotal  *prometheus.CounterVec
	buildInfo *prometheus.GaugeVec

	// pipeline
	shedTotal      *prometheus.CounterVec
	timeoutsTotal  prometheus.Counter
	faultsTotal    prometheus.Counter
	panicTotal     prometheus.Counter
	admissionQueue prometheus.Gauge
	admissionWait  prometheus.Histogram

	profilingActive prometheus.Gauge
}

// New returns a fresh registry + standard collectors + HTTP metrics
// safe labels only (method, route, code) to avoid path/cardinality explosions
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: latencyBuckets,
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{64, 256, 1024, 4096, 16384, 65536},
		}, []string{"method", "route"}),
		errTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route (SLI)",
		}, []string{"method", "route"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		shedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_shed_total",
			Help: "Total requests rejected before reaching a handler, by reason",
		}, []string{"reason"}),
		timeoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_request_timeouts_total",
			Help: "Total requests answered with 408 after exceeding the request deadline",
		}),
		faultsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_faults_total",
			Help: "Total handler errors and panics normalized to 500",
		}),
		panicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered httpserver panics",
		}),
		admissionQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_admission_queue_depth",
			Help: "Requests currently holding an admission buffer slot",
		}),
		admissionWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "http_admission_wait_seconds",
			Help:    "Time spent waiting for a rate limit window before admission",
			Buckets: latencyBuckets,
		}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.errTotal,
		m.buildInfo,
		m.shedTotal,
		m.timeoutsTotal,
		m.faultsTotal,
		m.panicTotal,
		m.admissionQueue,
		m.admissionWait,
		m.profilingActive,
	)

	// pre-create the shed series so dashboards see zeros before the first overload
	for _, reason := range []string{ShedBufferFull, ShedClientLimit, ShedVisitorCap} {
		m.shedTotal.WithLabelValues(reason)
	}

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

// set once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(component string, vi *version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":         vi.App,
		"component":   component,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildId,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

func (m *ServerMetrics) IncShed(reason string) {
	m.shedTotal.WithLabelValues(reason).Inc()
}

func (m *ServerMetrics) IncTimeout() {
	m.timeoutsTotal.Inc()
}

func (m *ServerMetrics) IncFault() {
	m.faultsTotal.Inc()
}

func (m *ServerMetrics) IncHttpPanic() {
	m.panicTotal.Inc()
}

func (m *ServerMetrics) SetAdmissionQueueDepth(n int) {
	m.admissionQueue.Set(float64(n))
}

func (m *ServerMetrics) ObserveAdmissionWait(d time.Duration) {
	m.admissionWait.Observe(d.Seconds())
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}
