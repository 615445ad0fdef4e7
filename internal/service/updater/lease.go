package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/jd-boyd/bts-rpi-base/internal/logger"
)

// LeaseFilename is the exclusive-lease file kept under the backup root
// while a state-mutating operation is in flight.
const LeaseFilename = ".update-lease"

// lease is the mutual-exclusion primitive serializing updater invocations.
// The file holds the holder's PID; a lease whose holder is gone is stale
// and may be broken.
type lease struct {
	// path is the location of the lease file.
	path string
}

// newLease returns a lease backed by the file at path.
func newLease(path string) *lease {
	return &lease{path: filepath.Clean(path)}
}

// Acquire takes the lease, failing fast with ErrLeaseHeld when a live
// invocation already holds it. The returned release function removes the
// lease file and never fails.
func (l *lease) Acquire(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("create lease directory: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		file, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, writeErr := file.WriteString(strconv.Itoa(os.Getpid()))
			if closeErr := file.Close(); writeErr == nil {
				writeErr = closeErr
			}

			if writeErr != nil {
				_ = os.Remove(l.path)
				return nil, fmt.Errorf("write lease file: %w", writeErr)
			}

			return func() {
				_ = os.Remove(l.path)
			}, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create lease file: %w", err)
		}

		if l.holderAlive(ctx) {
			return nil, fmt.Errorf("%s: %w", l.path, ErrLeaseHeld)
		}

		logger.WarnKV(ctx, "Breaking stale update lease", "path", l.path)

		if err = os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale lease: %w", err)
		}
	}

	return nil, fmt.Errorf("%s: %w", l.path, ErrLeaseHeld)
}

// holderAlive reports whether the PID recorded in the lease file still
// belongs to a running process. An unreadable or garbled lease counts as held.
func (l *lease) holderAlive(ctx context.Context) bool {
	contents, err := os.ReadFile(l.path)
	if err != nil {
		return !errors.Is(err, os.ErrNotExist)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil {
		logger.WarnKV(ctx, "Lease file holds no PID", "path", l.path)
		return true
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		return true
	}

	return process != nil
}
