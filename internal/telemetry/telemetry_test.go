package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// recordingExporter keeps exported spans after shutdown so they can be inspected once the provider is closed
type recordingExporter struct {
	mu    sync.Mutex
	spans []sdktrace.ReadOnlySpan
}

func (e *recordingExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spans = append(e.spans, spans...)
	return nil
}

func (e *recordingExporter) Shutdown(ctx context.Context) error { return nil }

func (e *recordingExporter) Spans() []sdktrace.ReadOnlySpan {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]sdktrace.ReadOnlySpan(nil), e.spans...)
}

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), TelemetryConfig{Enabled: false})
	require.NoError(t, err)

	_, span := p.Tracer().Start(context.Background(), "noop")
	span.End()

	assert.False(t, span.SpanContext().IsValid())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderWithExporter_ExportsOnShutdown(t *testing.T) {
	exporter := &recordingExporter{}
	p := NewProviderWithExporter(exporter, "test")

	_, span := p.Tracer().Start(context.Background(), "chat.turn")
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))

	spans := exporter.Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, "chat.turn", spans[0].Name())

	var serviceName string
	for _, kv := range spans[0].Resource().Attributes() {
		if kv.Key == "service.name" {
			serviceName = kv.Value.AsString()
		}
	}
	assert.Equal(t, "bedrock-chat", serviceName)
}

func TestNewSessionID(t *testing.T) {
	id := NewSessionID()
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, NewSessionID())
}
