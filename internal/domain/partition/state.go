package partition

import (
	"errors"
	"fmt"
)

// State names a stage of the partition swap sequence.
type State int

// Swap sequence states. ReadOnlyIdle is both the initial and terminal state.
const (
	ReadOnlyIdle State = iota
	Stopping
	Writable
	Syncing
	RemountingRO
	Starting
	Verifying
	Recovering
)

// errIllegalTransition is returned when a transition is not part of the machine.
var errIllegalTransition = errors.New("illegal partition state transition")

// stateNames maps states to their log-friendly names.
var stateNames = map[State]string{
	ReadOnlyIdle: "read-only-idle",
	Stopping:     "stopping",
	Writable:     "writable",
	Syncing:      "syncing",
	RemountingRO: "remounting-ro",
	Starting:     "starting",
	Verifying:    "verifying",
	Recovering:   "recovering",
}

// String returns the log-friendly name of the state.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("unknown(%d)", int(s))
}

// successor is the next state on the success path.
var successor = map[State]State{
	ReadOnlyIdle: Stopping,
	Stopping:     Writable,
	Writable:     Syncing,
	Syncing:      RemountingRO,
	RemountingRO: Starting,
	Starting:     Verifying,
	Verifying:    ReadOnlyIdle,
}

// CanTransition reports whether moving from s to next is a legal edge:
// the linear success chain, any non-idle state into Recovering,
// and Recovering back to ReadOnlyIdle.
func (s State) CanTransition(next State) bool {
	if next == Recovering {
		return s != ReadOnlyIdle && s != Recovering
	}

	return successor[s] == next
}

// Tracker records the current swap state and the path taken through the
// machine, so a failure report names the exact stage it happened in.
type Tracker struct {
	// current is the state the swap is in right now.
	current State
	// path is every state entered since the tracker was created.
	path []State
}

// NewTracker returns a tracker starting in ReadOnlyIdle.
func NewTracker() *Tracker {
	return &Tracker{
		current: ReadOnlyIdle,
		path:    []State{ReadOnlyIdle},
	}
}

// Current returns the state the swap is in.
func (t *Tracker) Current() State {
	return t.current
}

// Path returns a copy of the states entered so far, in order.
func (t *Tracker) Path() []State {
	return append([]State(nil), t.path...)
}

// Advance moves the tracker to next, rejecting transitions
// the machine does not define.
func (t *Tracker) Advance(next State) error {
	if !t.current.CanTransition(next) {
		return fmt.Errorf("%s -> %s: %w", t.current, next, errIllegalTransition)
	}

	t.current = next
	t.path = append(t.path, next)

	return nil
}

// Recover diverts the tracker into Recovering and settles it back to
// ReadOnlyIdle. Calling it while already idle is a no-op so recovery stays
// idempotent.
func (t *Tracker) Recover() {
	if t.current == ReadOnlyIdle {
		return
	}

	t.current = Recovering
	t.path = append(t.path, Recovering)
	t.current = ReadOnlyIdle
	t.path = append(t.path, ReadOnlyIdle)
}
