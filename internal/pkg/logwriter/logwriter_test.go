package logwriter

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLines verifies that every written line becomes one log entry with the source field.
func TestLines(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	w := Lines(zap.New(core), zapcore.WarnLevel, "grpc")

	_, err := fmt.Fprint(w, "first line\nsecond line\n")
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return logs.Len() == 2 }, time.Second, 5*time.Millisecond)

	entries := logs.All()
	assert.Equal(t, "first line", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "grpc", entries[0].ContextMap()["source"])
	assert.Equal(t, "second line", entries[1].Message)
}

// TestLines_BelowLevel verifies that lines below the logger's level are dropped.
func TestLines_BelowLevel(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	w := Lines(zap.New(core), zapcore.DebugLevel, "badger")

	_, err := fmt.Fprint(w, "noise\n")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, logs.Len())
}
