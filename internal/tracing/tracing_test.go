package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

// TestSetup_Disabled verifies that a disabled setup leaves nothing to flush.
func TestSetup_Disabled(t *testing.T) {
	t.Parallel()

	shutdown, err := Setup(Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

// TestSetup_ExportsOnShutdown verifies that ended spans are written once the provider is flushed.
func TestSetup_ExportsOnShutdown(t *testing.T) {
	var out bytes.Buffer

	shutdown, err := Setup(Config{Enabled: true, ServiceName: "gamehost-test", Output: &out})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "orchestrator.CreateServer")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, out.String(), "orchestrator.CreateServer")
	assert.Contains(t, out.String(), "gamehost-test")
}
