// Package partition models the application partition swap as an explicit
// state machine. The install/restore sequence walks the linear chain
// ReadOnlyIdle → Stopping → Writable → Syncing → RemountingRO → Starting →
// Verifying → ReadOnlyIdle; any non-idle state may divert to Recovering,
// which always settles back to ReadOnlyIdle.
package partition
