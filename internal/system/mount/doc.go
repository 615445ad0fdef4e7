// Package mount remounts the application partition between read-only and
// read-write in place, without disturbing the underlying block device, and
// reports the current mount mode by inspecting the mounts table.
package mount
