// Package updatelog persists the append-only update audit trail.
// Every state-changing operation of the update utility appends a timestamped
// line; status reads back the most recent entries. The log is durable across
// restarts and is never rewritten, only appended to.
package updatelog
