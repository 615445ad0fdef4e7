package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jd-boyd/bts-rpi-base/internal/logger"
)

const (
	// backupPrefix starts every backup directory name.
	backupPrefix = "backup-"

	// backupTimeLayout names backups with second resolution,
	// e.g. backup-20260829-143512.
	backupTimeLayout = "20060102-150405"
)

// newBackupPath picks a fresh backup directory path under the backup root.
// Two backups within the same second get a monotonic -1, -2, ... suffix, so
// names stay unique while still sorting in creation order.
func (o *Orchestrator) newBackupPath() (string, error) {
	if err := os.MkdirAll(o.cfg.BackupRoot, 0o755); err != nil {
		return "", fmt.Errorf("create backup root: %w", err)
	}

	base := backupPrefix + o.now().Format(backupTimeLayout)
	path := filepath.Join(o.cfg.BackupRoot, base)

	for counter := 1; ; counter++ {
		_, err := os.Lstat(path)
		if errors.Is(err, os.ErrNotExist) {
			return path, nil
		}

		if err != nil {
			return "", fmt.Errorf("probe backup path: %w", err)
		}

		path = filepath.Join(o.cfg.BackupRoot, fmt.Sprintf("%s-%d", base, counter))
	}
}

// listBackups returns the backup directory names under the backup root,
// newest first.
func (o *Orchestrator) listBackups() ([]string, error) {
	entries, err := os.ReadDir(o.cfg.BackupRoot)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read backup root: %w", err)
	}

	var names []string

	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), backupPrefix) {
			names = append(names, entry.Name())
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	return names, nil
}

// pruneBackups deletes the oldest backups past the retention limit.
// Pruning failures are logged, never escalated.
func (o *Orchestrator) pruneBackups(ctx context.Context) {
	names, err := o.listBackups()
	if err != nil {
		logger.WarnKV(ctx, "Unable to list backups for pruning", "error", err)
		return
	}

	if len(names) <= o.cfg.BackupRetention {
		return
	}

	for _, name := range names[o.cfg.BackupRetention:] {
		path := filepath.Join(o.cfg.BackupRoot, name)

		logger.InfoKV(ctx, "Pruning old backup", "backup", path)

		if err = os.RemoveAll(path); err != nil {
			logger.WarnKV(ctx, "Unable to prune backup", "backup", path, "error", err)
			continue
		}

		o.journalf(ctx, "Pruned old backup %s", path)
	}
}
