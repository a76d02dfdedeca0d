// Package telemetry sets up OpenTelemetry tracing for chat sessions.
package telemetry

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	serviceName = "bedrock-chat"
	tracerName  = "github.com/cchalm/bedrock-chat"
)

// TelemetryConfig holds the configuration for telemetry
type TelemetryConfig struct {
	Enabled        bool
	OTLPEndpoint   string // e.g. http://localhost:4318
	ServiceVersion string
}

// Provider owns the tracer provider for the process
type Provider struct {
	tracerProvider trace.TracerProvider
	sdkProvider    *sdktrace.TracerProvider // nil when disabled
}

// NewProvider creates a provider that exports spans over OTLP/HTTP, or a no-op provider when telemetry is disabled
func NewProvider(ctx context.Context, config TelemetryConfig) (*Provider, error) {
	if !config.Enabled {
		return &Provider{tracerProvider: noop.NewTracerProvider()}, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(config.OTLPEndpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	log.Printf("Telemetry enabled, exporting traces to %s", config.OTLPEndpoint)
	return NewProviderWithExporter(exporter, config.ServiceVersion), nil
}

// NewProviderWithExporter creates a provider that batches spans to the given exporter
func NewProviderWithExporter(exporter sdktrace.SpanExporter, serviceVersion string) *Provider {
	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", serviceVersion),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	return &Provider{
		tracerProvider: tp,
		sdkProvider:    tp,
	}
}

func (p *Provider) Tracer() trace.Tracer {
	return p.tracerProvider.Tracer(tracerName)
}

// Shutdown flushes pending spans and stops the exporter
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdkProvider == nil {
		return nil
	}
	if err := p.sdkProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down tracer provider: %w", err)
	}
	return nil
}

// NewSessionID generates a new chat session UUID
func NewSessionID() string {
	return uuid.New().String()
}
