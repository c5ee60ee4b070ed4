package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/keithlinneman/linnemanlabs-starter/internal/log"
)

// Environment is the deployment tag the process runs under.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// ParseEnvironment accepts development|testing|production (case-insensitive).
func ParseEnvironment(s string) (Environment, error) {
	switch e := Environment(strings.ToLower(strings.TrimSpace(s))); e {
	case EnvDevelopment, EnvTesting, EnvProduction:
		return e, nil
	default:
		return "", fmt.Errorf("unknown environment %q (valid environments are development|testing|production)", s)
	}
}

func (e *Environment) String() string {
	if e == nil {
		return ""
	}
	return string(*e)
}

// Set implements flag.Value so invalid values fail at parse time.
func (e *Environment) Set(s string) error {
	v, err := ParseEnvironment(s)
	if err != nil {
		return err
	}
	*e = v
	return nil
}

type App struct {
	Env          Environment
	Host         string
	Port         int
	DatabaseURL  string
	SharedSecret string

	LogJSON           bool
	LogLevel          string
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int

	RequestTimeout  time.Duration
	RateLimit       int
	RateWindow      time.Duration
	RateBuffer      int
	ClientRateLimit bool
	ClientRate      float64
	ClientBurst     int
	TrustedHops     int

	AdminPort       int
	EnablePprof     bool
	EnableTracing   bool
	OTLPEndpoint    string
	TraceSample     float64
	EnablePyroscope bool
	PyroServer      string
	PyroTenantID    string
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	c.Env = EnvDevelopment
	fs.Var(&c.Env, "app-env", "development|testing|production")
	fs.StringVar(&c.Host, "host", "0.0.0.0", "listen host or IP")
	fs.IntVar(&c.Port, "port", 9001, "listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "app.db", "storage locator")
	fs.StringVar(&c.SharedSecret, "shared-secret", "notagoodsecret", "shared secret (loaded, not enforced)")

	fs.BoolVar(&c.LogJSON, "log-json", false, "JSON logs (true) or logfmt (false), production always logs JSON")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")

	fs.DurationVar(&c.RequestTimeout, "request-timeout", 30*time.Second, "hard per-request deadline (whole seconds)")
	fs.IntVar(&c.RateLimit, "rate-limit", 5, "requests admitted per rate window")
	fs.DurationVar(&c.RateWindow, "rate-window", time.Second, "fixed rate limit window")
	fs.IntVar(&c.RateBuffer, "rate-buffer", 1024, "max requests waiting for admission before shedding")
	fs.BoolVar(&c.ClientRateLimit, "client-rate-limit", false, "Enable per-client-ip rate limiting")
	fs.Float64Var(&c.ClientRate, "client-rate", 10, "per-client refill rate (requests/second)")
	fs.IntVar(&c.ClientBurst, "client-burst", 30, "per-client burst size")
	fs.IntVar(&c.TrustedHops, "trusted-proxy-hops", 0, "reverse proxies appending to X-Forwarded-For, 0 ignores the header")

	fs.IntVar(&c.AdminPort, "admin-port", 0, "admin listen TCP port, 0 disables the ops listener")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", false, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, redact(f.Name, f.Value.String()), key, redact(f.Name, envVal))
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, redact(f.Name, envVal), err)
			}
		}
	})
}

func redact(name, v string) string {
	if name == "shared-secret" && v != "" {
		return "<redacted>"
	}
	return v
}

// Addr is the host:port the public listener binds to.
func (c App) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// JSONLogs reports whether logs should be emitted as JSON.
func (c App) JSONLogs() bool {
	return c.LogJSON || c.Env == EnvProduction
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	if _, err := ParseEnvironment(string(c.Env)); err != nil {
		errs = append(errs, fmt.Errorf("invalid APP_ENV: %w", err))
	}

	// Listener
	if strings.TrimSpace(c.Host) == "" {
		errs = append(errs, fmt.Errorf("HOST is required"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT %d (must be 1..65535)", c.Port))
	}
	if c.AdminPort != 0 {
		if c.AdminPort < 1 || c.AdminPort > 65535 {
			errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 0 or 1..65535)", c.AdminPort))
		}
		if c.AdminPort == c.Port {
			errs = append(errs, fmt.Errorf("ADMIN_PORT and PORT must differ (both %d)", c.Port))
		}
	}

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}
	if c.SharedSecret == "" {
		errs = append(errs, fmt.Errorf("SHARED_SECRET is required"))
	}

	// Log levels
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}
	if c.IncludeErrorLinks {
		if c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64 {
			errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
		}
	}

	// Pipeline; the 408 body reports the timeout in whole seconds
	if c.RequestTimeout < time.Second || c.RequestTimeout%time.Second != 0 {
		errs = append(errs, fmt.Errorf("invalid REQUEST_TIMEOUT %s (must be a positive whole number of seconds)", c.RequestTimeout))
	}
	if c.RateLimit < 1 {
		errs = append(errs, fmt.Errorf("invalid RATE_LIMIT %d (must be >= 1)", c.RateLimit))
	}
	if c.RateWindow <= 0 {
		errs = append(errs, fmt.Errorf("invalid RATE_WINDOW %s (must be > 0)", c.RateWindow))
	}
	if c.RateBuffer < 1 {
		errs = append(errs, fmt.Errorf("invalid RATE_BUFFER %d (must be >= 1)", c.RateBuffer))
	}
	if c.ClientRateLimit {
		if c.ClientRate <= 0 {
			errs = append(errs, fmt.Errorf("invalid CLIENT_RATE %.3f (must be > 0)", c.ClientRate))
		}
		if c.ClientBurst < 1 {
			errs = append(errs, fmt.Errorf("invalid CLIENT_BURST %d (must be >= 1)", c.ClientBurst))
		}
	}

	if c.TrustedHops < 0 {
		errs = append(errs, fmt.Errorf("invalid TRUSTED_PROXY_HOPS %d (must be >= 0)", c.TrustedHops))
	}

	// Tracing sample
	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}

	// Pyroscope (URL and scheme)
	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}

	// OTLP tracing (grpc exporter wants host:port, no scheme)
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	if c.EnablePprof && c.AdminPort == 0 {
		errs = append(errs, fmt.Errorf("ADMIN_PORT required when ENABLE_PPROF=true"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
