package updater

import (
	"context"
	"fmt"
	"io"

	"github.com/jd-boyd/bts-rpi-base/internal/config"
	"github.com/jd-boyd/bts-rpi-base/internal/logger"
)

// Options are inputs accepted by the updater entry points.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// SourceDir is the install source (install only).
	SourceDir string
	// BackupPath is the restore target (restore only).
	BackupPath string
	// Writer receives the rendered status report (status only).
	Writer io.Writer
}

// RunInstall executes the install workflow for the CLI.
func RunInstall(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "rpi-update")

	o, err := orchestratorFromConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	backupPath, err := o.Install(ctx, opts.SourceDir)
	if err != nil {
		logger.ErrorKV(ctx, "Install failed", "error", err)
		return err
	}

	logger.InfoKV(ctx, "Install completed", "rollback_target", backupPath)

	return nil
}

// RunBackup executes the backup workflow for the CLI.
func RunBackup(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "rpi-update")

	o, err := orchestratorFromConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	backupPath, err := o.Backup(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Backup failed", "error", err)
		return err
	}

	logger.InfoKV(ctx, "Backup completed", "backup", backupPath)

	return nil
}

// RunRestore executes the restore workflow for the CLI.
func RunRestore(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "rpi-update")

	o, err := orchestratorFromConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	if err = o.Restore(ctx, opts.BackupPath); err != nil {
		logger.ErrorKV(ctx, "Restore failed", "error", err)
		return err
	}

	logger.Info(ctx, "Restore completed")

	return nil
}

// RunStatus renders the status report to the provided writer.
func RunStatus(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "rpi-update")

	o, err := orchestratorFromConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(opts.Writer, o.Status(ctx).Render())

	return err
}

// RunMountReadWrite remounts the partition writable for manual maintenance.
func RunMountReadWrite(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "rpi-update")

	o, err := orchestratorFromConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	return o.MountReadWrite(ctx)
}

// RunMountReadOnly restores the partition's read-only at-rest state.
func RunMountReadOnly(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "rpi-update")

	o, err := orchestratorFromConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	return o.MountReadOnly(ctx)
}

// orchestratorFromConfig loads settings and wires the production orchestrator.
func orchestratorFromConfig(configPath string) (*Orchestrator, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	return New(cfg), nil
}
