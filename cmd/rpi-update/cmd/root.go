package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jd-boyd/bts-rpi-base/internal/config"
	"github.com/jd-boyd/bts-rpi-base/internal/logger"
	"github.com/jd-boyd/bts-rpi-base/internal/service/updater"
	"github.com/jd-boyd/bts-rpi-base/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// logLevel is the minimum level written to the console.
	logLevel string

	// rootCmd represents the base command for managing the application partition.
	rootCmd = &cobra.Command{
		Use:   "rpi-update",
		Short: "Install, back up, and roll back the application partition",
		Long: `Manages the application partition of an appliance device.

The partition stays mounted read-only at rest. Install remounts it writable,
mirrors a new version over it after taking a timestamped backup, rebuilds the
dependency environment, restores the read-only mount, and restarts the
application's systemd service. Restore rolls the partition back to an earlier
backup the same way.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}
		},
	}

	installCmd = &cobra.Command{
		Use:   "install [source-folder]",
		Short: "Replace the partition contents with a new version",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return updater.RunInstall(signalContext(), &updater.Options{
				ConfigPath: configPath,
				SourceDir:  args[0],
			})
		},
	}

	backupCmd = &cobra.Command{
		Use:   "backup",
		Short: "Take a timestamped backup of the partition",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return updater.RunBackup(signalContext(), &updater.Options{ConfigPath: configPath})
		},
	}

	restoreCmd = &cobra.Command{
		Use:   "restore [backup-folder]",
		Short: "Roll the partition back to an earlier backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return updater.RunRestore(signalContext(), &updater.Options{
				ConfigPath: configPath,
				BackupPath: args[0],
			})
		},
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Report mount mode, service state, backups, and recent log lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return updater.RunStatus(signalContext(), &updater.Options{
				ConfigPath: configPath,
				Writer:     cmd.OutOrStdout(),
			})
		},
	}

	mountRWCmd = &cobra.Command{
		Use:   "mount-rw",
		Short: "Remount the partition writable for manual maintenance",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return updater.RunMountReadWrite(signalContext(), &updater.Options{ConfigPath: configPath})
		},
	}

	mountROCmd = &cobra.Command{
		Use:   "mount-ro",
		Short: "Restore the partition's read-only mount",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return updater.RunMountReadOnly(signalContext(), &updater.Options{ConfigPath: configPath})
		},
	}
)

// signalContext returns a context cancelled on SIGTERM or SIGINT.
// The stop function is intentionally not kept: the process exits right after
// the command returns.
func signalContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	return ctx
}

// Execute runs the rpi-update CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&logLevel, "log-level", "l", logger.Level().String(), "logging level (debug, info, warn, error, fatal)")

	rootCmd.AddCommand(installCmd, backupCmd, restoreCmd, statusCmd, mountRWCmd, mountROCmd)
}
