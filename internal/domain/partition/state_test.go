package partition

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestState_SuccessChain walks the full install path through the tracker.
func TestState_SuccessChain(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	for _, next := range []State{Stopping, Writable, Syncing, RemountingRO, Starting, Verifying, ReadOnlyIdle} {
		require.NoError(t, tr.Advance(next))
	}

	require.Equal(t, ReadOnlyIdle, tr.Current())
	require.Len(t, tr.Path(), 8)
}

// TestState_IllegalTransitions rejects edges the machine does not define.
func TestState_IllegalTransitions(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	require.ErrorIs(t, tr.Advance(Syncing), errIllegalTransition)
	require.ErrorIs(t, tr.Advance(Verifying), errIllegalTransition)

	// Idle may not enter recovery: there is nothing to recover from.
	require.ErrorIs(t, tr.Advance(Recovering), errIllegalTransition)
	require.Equal(t, ReadOnlyIdle, tr.Current())
}

// TestState_RecoveryFromAnyStage ensures every non-idle state can divert to recovery.
func TestState_RecoveryFromAnyStage(t *testing.T) {
	t.Parallel()

	for _, s := range []State{Stopping, Writable, Syncing, RemountingRO, Starting, Verifying} {
		require.True(t, s.CanTransition(Recovering), s.String())
	}

	require.False(t, ReadOnlyIdle.CanTransition(Recovering))
	require.False(t, Recovering.CanTransition(Recovering))
}

// TestTracker_Recover settles back to idle and is idempotent once idle.
func TestTracker_Recover(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	require.NoError(t, tr.Advance(Stopping))
	require.NoError(t, tr.Advance(Writable))

	tr.Recover()
	require.Equal(t, ReadOnlyIdle, tr.Current())

	// Recovering while idle changes nothing.
	before := tr.Path()
	tr.Recover()
	require.Equal(t, before, tr.Path())
}

// TestState_String covers named and unknown states.
func TestState_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "syncing", Syncing.String())
	require.Equal(t, "read-only-idle", ReadOnlyIdle.String())
	require.Contains(t, State(42).String(), "unknown")
}
