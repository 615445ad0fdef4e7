package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jd-boyd/bts-rpi-base/internal/service/builder"
	"github.com/jd-boyd/bts-rpi-base/internal/version"
)

var (
	// engine is the container engine binary, or "auto" to probe for one.
	engine string
	// imageTag overrides the Packer container image.
	imageTag string
	// packerFile is the Packer description, relative to the project directory.
	packerFile string

	// rootCmd represents the base command for building a device image.
	rootCmd = &cobra.Command{
		Use:   "rpi-build [project-folder]",
		Short: "Build the device image inside a container",
		Long: `Builds the appliance device image with Packer running in a container.

The project folder is bind-mounted into the build container, so the host
only needs podman or docker installed. The container runs privileged
because writing the partition image requires loop devices.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			projectDir := "."
			if len(args) > 0 {
				projectDir = args[0]
			}

			options := &builder.Options{
				ProjectDir: projectDir,
				Engine:     engine,
				ImageTag:   imageTag,
				PackerFile: packerFile,
			}

			return builder.Run(ctx, options)
		},
	}
)

// Execute runs the rpi-build CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&engine, "engine", "e", builder.EngineAuto, "container engine (podman, docker, or auto)")
	rootCmd.Flags().StringVarP(&imageTag, "image", "i", builder.DefaultImage, "Packer container image")
	rootCmd.Flags().
		StringVarP(&packerFile, "packer-file", "p", builder.DefaultPackerFile, "Packer file relative to the project folder")
}
