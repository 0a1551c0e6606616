package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

// Tracing tests replace the global tracer provider and must not run in parallel.

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_ExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		ServiceName: "radarviz-test",
		SampleRatio: 1,
		Writer:      &buf,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = InitTracing(context.Background(), TracingConfig{})
	})

	_, span := otel.Tracer("test").Start(context.Background(), "trigger.cycle")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	ShutdownWithTimeout(context.Background(), shutdown)
	assert.Contains(t, buf.String(), "trigger.cycle")
	assert.Contains(t, buf.String(), "radarviz-test")
}

func TestShutdownWithTimeout_Nil(t *testing.T) {
	assert.NotPanics(t, func() { ShutdownWithTimeout(context.Background(), nil) })
}
