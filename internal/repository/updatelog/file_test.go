package updatelog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestFileSink_NotFound verifies Tail returns ErrNotFound for a missing log.
func TestFileSink_NotFound(t *testing.T) {
	t.Parallel()

	sink := NewFileSink(filepath.Join(t.TempDir(), "missing.log"))
	lines, err := sink.Tail(context.Background(), 10)
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, lines)
}

// TestFileSink_AppendTail ensures appended lines come back timestamped and in order.
func TestFileSink_AppendTail(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "log", "update.log")
	sink := NewFileSink(path)
	sink.now = func() time.Time {
		return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	}

	require.NoError(t, sink.Append(context.Background(), "Install started"))
	require.NoError(t, sink.Append(context.Background(), "Install finished"))

	lines, err := sink.Tail(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []string{
		"2026-08-29 12:00:00 - Install started",
		"2026-08-29 12:00:00 - Install finished",
	}, lines)

	// Parent directory was created on demand.
	_, err = os.Stat(filepath.Dir(path))
	require.NoError(t, err)
}

// TestFileSink_TailLimit keeps only the most recent n lines.
func TestFileSink_TailLimit(t *testing.T) {
	t.Parallel()

	sink := NewFileSink(filepath.Join(t.TempDir(), "update.log"))
	for _, message := range []string{"one", "two", "three", "four"} {
		require.NoError(t, sink.Append(context.Background(), message))
	}

	lines, err := sink.Tail(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "three")
	require.Contains(t, lines[1], "four")
}
