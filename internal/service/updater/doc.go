// Package updater owns the on-device update workflow for the application
// partition and its supervised service: install, backup, restore, status and
// the manual mount controls.
//
// The partition is read-only at rest. Every mutating operation remounts it
// read-write for the shortest possible window and guarantees it is read-only
// again before returning, on success and on failure alike. A fatal error
// mid-sequence runs a best-effort recovery (remount read-only, restart the
// service) and then surfaces the original error unchanged.
package updater
