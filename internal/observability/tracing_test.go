package observability

import (
	"context"
	"errors"
	"testing"

	"reelhub/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInitTracing_DisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "reelhub-test"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	span, ctx := NewSpan(context.Background(), "cascade.delete_post", attribute.Int("post.id", 1))
	assert.NotNil(t, ctx)
	assert.Empty(t, span.TraceID())
	span.Finish(errors.New("boom"))
}

func TestTracingConfigFrom(t *testing.T) {
	tc := TracingConfigFrom(&config.Config{
		Env:                "staging",
		TracingEnabled:     true,
		TracingExporter:    "otlp",
		OTLPEndpoint:       "collector:4318",
		TracingSampleRatio: 0.25,
	}, "reelhub-api")

	assert.Equal(t, "reelhub-api", tc.ServiceName)
	assert.True(t, tc.Enabled)
	assert.Equal(t, "otlp", tc.Exporter)
	assert.Equal(t, "collector:4318", tc.OTLPEndpoint)
	assert.InDelta(t, 0.25, tc.SamplerRatio, 1e-9)
}
