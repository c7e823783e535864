// Package observability provides OpenTelemetry integration for distributed tracing.
//
// Traces are exported over OTLP HTTP to a local collector (any OTLP-capable
// agent works: the OpenTelemetry Collector, a vendor agent listening on
// localhost:4318, etc.). The collector handles authentication and forwarding,
// so no vendor API key ever passes through the application.
//
// # Configuration
//
// Config file (~/.spready/config.yaml):
//
//	tracing:
//	  enabled: true
//	  endpoint: "localhost:4318"
//	  service_name: "spready"
//	  environment: "dev"
//
// Environment overrides: SPREADY_TRACING_ENABLED, SPREADY_TRACING_ENDPOINT,
// SPREADY_TRACING_ENV.
//
// # Verify the pipeline
//
//	curl -v http://localhost:4318/v1/traces
//
// Spans flush on shutdown; expect traces in the backend within a minute or
// two after the program exits.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/neurofinance/spready/internal/log"
)

// Config for trace export.
type Config struct {
	// Endpoint is the OTLP HTTP collector, host:port (default: localhost:4318)
	Endpoint string
	// ServiceName appears as the service in the APM backend
	ServiceName string
	// Environment is the deployment environment (dev, staging, prod)
	Environment string
}

// DefaultEndpoint is the conventional local OTLP HTTP port.
const DefaultEndpoint = "localhost:4318"

// Setup installs a global tracer provider exporting to the configured
// collector. HTTP clients built with otelhttp pick it up automatically.
//
// Returns a shutdown function that flushes pending spans. An unreachable
// collector is not an error here: the exporter buffers and retries, and the
// batch processor drops on overflow.
func Setup(ctx context.Context, cfg Config, logger log.Logger) (shutdown func(context.Context) error, err error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = log.NewNop()
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // localhost doesn't need TLS
	)
	if err != nil {
		return nil, fmt.Errorf("creating otlp exporter: %w", err)
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentName(cfg.Environment))
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		attrs...,
	))
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logger.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return tp.Shutdown, nil
}
