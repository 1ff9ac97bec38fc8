// Package telemetry provides OpenTelemetry tracing and metrics exported over
// OTLP gRPC, plus the Gin middleware that opens server spans.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// shutdownTimeout bounds flushing of buffered spans and metrics.
const shutdownTimeout = 5 * time.Second

// RegistryKey tags spans and metrics with the upstream registry name.
const RegistryKey = attribute.Key("mcphub.registry")

// Config selects where spans and metrics go and how the process is
// described to the collector.
type Config struct {
	Enabled bool

	// Endpoint is the collector URL. An http:// scheme selects a plaintext
	// connection.
	Endpoint    string
	ServiceName string
	Version     string
	Environment string

	// Registry names the upstream registry the bridge fronts.
	Registry string

	// SamplingRate is the share of root traces kept, from 0 to 1. Traces
	// continued from a caller follow the caller's decision.
	SamplingRate float64
}

// Provider owns the SDK providers installed as the otel globals.
type Provider struct {
	// shutdowns run in reverse order of installation.
	shutdowns []func(context.Context) error
}

// New installs tracer and meter providers exporting to cfg.Endpoint.
// A disabled config yields a Provider whose Shutdown does nothing.
func New(ctx context.Context, cfg *Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	endpoint, err := collectorURL(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	p := &Provider{}

	tracerProvider, err := newTracerProvider(ctx, endpoint, res, cfg.SamplingRate)
	if err != nil {
		return nil, err
	}

	p.shutdowns = append(p.shutdowns, tracerProvider.Shutdown)

	meterProvider, err := newMeterProvider(ctx, endpoint, res)
	if err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}

	p.shutdowns = append(p.shutdowns, meterProvider.Shutdown)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return p, nil
}

// collectorURL checks that endpoint is an absolute http(s) URL. The OTLP
// exporters otherwise fall back to localhost without complaint.
func collectorURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("telemetry endpoint %q: %w", endpoint, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("telemetry endpoint %q: scheme must be http or https", endpoint)
	}

	if u.Host == "" {
		return "", fmt.Errorf("telemetry endpoint %q: missing host", endpoint)
	}

	return u.String(), nil
}

func newResource(ctx context.Context, cfg *Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
		semconv.DeploymentEnvironment(cfg.Environment),
	}
	if cfg.Registry != "" {
		attrs = append(attrs, RegistryKey.String(cfg.Registry))
	}

	return resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithTelemetrySDK(),
		resource.WithFromEnv(),
		resource.WithAttributes(attrs...),
	)
}

func newTracerProvider(
	ctx context.Context,
	endpoint string,
	res *resource.Resource,
	rate float64,
) (*trace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpointURL(endpoint))
	if err != nil {
		return nil, fmt.Errorf("otlp span exporter: %w", err)
	}

	return trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithBatcher(exporter),
		trace.WithSampler(sampler(rate)),
	), nil
}

func newMeterProvider(ctx context.Context, endpoint string, res *resource.Resource) (*metric.MeterProvider, error) {
	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpointURL(endpoint))
	if err != nil {
		return nil, fmt.Errorf("otlp metric exporter: %w", err)
	}

	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(exporter)),
	), nil
}

// sampler keeps a rate share of root traces. The edges use the fixed
// samplers so 0 and 1 need no trace ID arithmetic.
func sampler(rate float64) trace.Sampler {
	switch {
	case rate <= 0:
		return trace.ParentBased(trace.NeverSample())
	case rate >= 1:
		return trace.ParentBased(trace.AlwaysSample())
	default:
		return trace.ParentBased(trace.TraceIDRatioBased(rate))
	}
}

// Shutdown flushes and stops the providers, meter first.
func (p *Provider) Shutdown(ctx context.Context) error {
	if len(p.shutdowns) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	errs := make([]error, 0, len(p.shutdowns))
	for _, stop := range slices.Backward(p.shutdowns) {
		errs = append(errs, stop(ctx))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("flushing telemetry: %w", err)
	}

	return nil
}
