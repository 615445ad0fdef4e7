package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"fatal": zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestFromContext_Fallback ensures a bare context yields the global logger.
func TestFromContext_Fallback(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
}

// TestWithName_Scoped ensures WithName attaches a distinct scoped logger to the context.
func TestWithName_Scoped(t *testing.T) {
	t.Parallel()

	ctx := WithName(context.Background(), "rpi-update")
	require.NotSame(t, Logger(), FromContext(ctx))

	// Nested scopes attach again without touching the parent context.
	nested := WithKV(ctx, "operation", "install")
	require.NotSame(t, FromContext(ctx), FromContext(nested))
}

// TestWithLevel_Option verifies the per-core level override wraps an existing logger.
func TestWithLevel_Option(t *testing.T) {
	t.Parallel()

	l := New(defaultLevel, WithLevel(zapcore.ErrorLevel))
	require.False(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
	require.True(t, l.Desugar().Core().Enabled(zapcore.ErrorLevel))
}
