package deps

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Installer builds a dependency environment and installs a manifest into it.
type Installer interface {
	CreateEnvironment(ctx context.Context, envDir string) error
	InstallManifest(ctx context.Context, envDir, manifestPath string) error
}

// UV drives the uv binary to manage a Python virtual environment.
type UV struct {
	// binary is the uv executable name or path.
	binary string
}

// NewUV returns an Installer backed by uv on PATH.
func NewUV() *UV {
	return &UV{binary: "uv"}
}

// CreateEnvironment creates a fresh virtual environment at envDir.
func (u *UV) CreateEnvironment(ctx context.Context, envDir string) error {
	return u.run(ctx, "venv", envDir)
}

// InstallManifest installs the manifest's packages into the environment at envDir.
func (u *UV) InstallManifest(ctx context.Context, envDir, manifestPath string) error {
	python := filepath.Join(envDir, "bin", "python")

	return u.run(ctx, "pip", "install", "--python", python, "-r", manifestPath)
}

// run executes uv with the provided arguments, surfacing output in the error.
func (u *UV) run(ctx context.Context, args ...string) error {
	output, err := exec.CommandContext(ctx, u.binary, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %s: %w",
			u.binary, strings.Join(args, " "), strings.TrimSpace(string(output)), err)
	}

	return nil
}
