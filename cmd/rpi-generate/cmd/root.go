package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jd-boyd/bts-rpi-base/internal/service/generator"
	"github.com/jd-boyd/bts-rpi-base/internal/version"
)

var (
	// outputDir where the project skeleton is created.
	outputDir string
	// force allows writing into an existing non-empty directory.
	force bool

	// rootCmd represents the base command for stamping out a project skeleton.
	rootCmd = &cobra.Command{
		Use:   "rpi-generate [app-name]",
		Short: "Generate a new appliance project skeleton",
		Long: `Creates a project skeleton for a new appliance application.

The skeleton contains an example Python application, its systemd unit and
dependency manifest, updater settings, a Packer build description for the
device image, and a README describing the update workflow.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &generator.Options{
				Name:      args[0],
				OutputDir: outputDir,
				Force:     force,
			}

			return generator.Run(ctx, options)
		},
	}
)

// Execute runs the rpi-generate CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (defaults to ./<app-name>)")
	rootCmd.Flags().BoolVarP(&force, "force", "f", false, "write into an existing non-empty directory")
}
