package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracingExportsSpans(t *testing.T) {
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	var buf bytes.Buffer
	shutdown, err := InitTracing(TracingConfig{Enabled: true, SamplingRate: 1, Writer: &buf, ServiceVersion: "test"})
	require.NoError(t, err)

	ctx, span := Start(context.Background(), "fetch", attribute.Int("year", 2024))
	_, child := Start(ctx, "decode")
	End(child, errors.New("boom"))
	End(span, nil)

	require.NoError(t, shutdown(context.Background()))
	out := buf.String()
	assert.Contains(t, out, `"Name":"fetch"`)
	assert.Contains(t, out, `"Name":"decode"`)
	assert.Contains(t, out, "boom")
}
