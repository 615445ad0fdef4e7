package builder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/jd-boyd/bts-rpi-base/internal/logger"
)

const (
	// EngineAuto probes for a container engine instead of naming one.
	EngineAuto = "auto"

	// DefaultImage is the container image used to run Packer. It carries
	// Packer itself plus the loop device tooling arm image builds need.
	DefaultImage = "mkaczanowski/packer-builder-arm:latest"

	// DefaultPackerFile is the Packer description rendered by the
	// scaffolding generator.
	DefaultPackerFile = "rpi.pkr.hcl"

	containerWorkDir = "/build"
)

// Options configure a containerized image build.
type Options struct {
	// ProjectDir is the directory holding the Packer file and everything
	// it references. It is bind-mounted into the build container.
	ProjectDir string
	// Engine is the container engine binary to use, or EngineAuto.
	Engine string
	// ImageTag overrides the Packer container image.
	ImageTag string
	// PackerFile is the Packer description, relative to ProjectDir.
	PackerFile string
}

// Run executes packer init and packer build inside a container,
// streaming the engine's output to this process's stdout and stderr.
func Run(ctx context.Context, opts *Options) error {
	log := logger.FromContext(ctx)

	projectDir, err := filepath.Abs(opts.ProjectDir)
	if err != nil {
		return fmt.Errorf("resolve project directory: %w", err)
	}

	packerFile := opts.PackerFile
	if packerFile == "" {
		packerFile = DefaultPackerFile
	}

	if _, err = os.Stat(filepath.Join(projectDir, packerFile)); err != nil {
		return fmt.Errorf("packer file %q: %w", packerFile, err)
	}

	engine, err := resolveEngine(opts.Engine)
	if err != nil {
		return err
	}

	image := opts.ImageTag
	if image == "" {
		image = DefaultImage
	}

	log.Infow("starting containerized build",
		"engine", engine,
		"image", image,
		"project_dir", projectDir,
		"packer_file", packerFile)

	steps := [][]string{
		{"init", packerFile},
		{"build", packerFile},
	}

	for _, step := range steps {
		if err = runEngine(ctx, engine, image, projectDir, step); err != nil {
			return fmt.Errorf("packer %s: %w", step[0], err)
		}
	}

	log.Info("build finished")

	return nil
}

// resolveEngine maps the requested engine to a binary on PATH. Auto mode
// prefers podman because it runs rootless on most hosts.
func resolveEngine(requested string) (string, error) {
	if requested != "" && requested != EngineAuto {
		path, err := exec.LookPath(requested)
		if err != nil {
			return "", fmt.Errorf("container engine %q not found: %w", requested, err)
		}

		return path, nil
	}

	for _, candidate := range []string{"podman", "docker"} {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no container engine found, install podman or docker")
}

func runEngine(ctx context.Context, engine, image, projectDir string, packerArgs []string) error {
	args := []string{
		"run", "--rm",
		// Loop device access for writing the partition image.
		"--privileged",
		"-v", projectDir + ":" + containerWorkDir,
		"-w", containerWorkDir,
		image,
	}
	args = append(args, packerArgs...)

	cmd := exec.CommandContext(ctx, engine, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
