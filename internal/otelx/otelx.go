// Package otelx installs the global OpenTelemetry tracer provider and
// propagators. Spans are exported over OTLP/gRPC when enabled; otherwise an
// SDK provider with no exporter is installed so span contexts still flow
// into logs and response headers.
package otelx

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/keithlinneman/linnemanlabs-starter/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-starter/internal/version"
	"github.com/keithlinneman/linnemanlabs-starter/internal/xerrors"
)

type Options struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	Sample      float64
	Service     string
	Component   string
	Version     string
	Environment string
}

// OptionsFromConfig maps the process config onto tracer options. The
// collector is expected to be a local agent, so the channel is plaintext.
func OptionsFromConfig(c cfg.App, component string, vi version.Info) Options {
	return Options{
		Enabled:     c.EnableTracing,
		Endpoint:    c.OTLPEndpoint,
		Insecure:    true,
		Sample:      c.TraceSample,
		Service:     vi.App,
		Component:   component,
		Version:     vi.Version,
		Environment: string(c.Env),
	}
}

func (o Options) serviceName() string {
	switch {
	case o.Service == "":
		return version.AppName
	case o.Component == "":
		return o.Service
	default:
		return o.Service + "." + o.Component
	}
}

// Init installs the global provider and returns its shutdown, which flushes
// buffered spans.
func Init(ctx context.Context, o Options) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	if !o.Enabled {
		otel.SetTracerProvider(sdktrace.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(o.Endpoint),
	}
	if o.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	// by default this is a blocking call with no timeout
	// we are using a local collector that forwards to otlp
	// backends so setting this to 3 seconds is safe
	dialCtx, dialCancel := context.WithTimeout(ctx, 3*time.Second)
	defer dialCancel()
	exp, err := otlptracegrpc.New(dialCtx, opts...)
	if err != nil {
		return nil, xerrors.Wrapf(err, "otlp trace exporter for %s", o.Endpoint)
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(o.serviceName()),
		semconv.ServiceVersionKey.String(o.Version),
	}
	if o.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentKey.String(o.Environment))
	}
	// partial resources are still usable, detector errors are not fatal
	res, _ := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithOS(),
		resource.WithHost(),
		resource.WithAttributes(attrs...),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(o.Sample),
		)),
		sdktrace.WithBatcher(exp,
			sdktrace.WithMaxQueueSize(2048),
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
