package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Supervisor starts, stops and inspects a named service unit.
// Stop of a stopped unit and Start of a running one are not errors;
// that idempotency is part of the contract.
type Supervisor interface {
	Start(ctx context.Context, unit string) error
	Stop(ctx context.Context, unit string) error
	IsActive(ctx context.Context, unit string) (bool, error)
}

// Systemctl drives the system service manager through the systemctl binary.
type Systemctl struct{}

// NewSystemctl returns a Supervisor backed by the system's systemctl.
func NewSystemctl() *Systemctl {
	return &Systemctl{}
}

// Start starts the unit.
func (s *Systemctl) Start(ctx context.Context, unit string) error {
	return s.run(ctx, "start", unit)
}

// Stop stops the unit.
func (s *Systemctl) Stop(ctx context.Context, unit string) error {
	return s.run(ctx, "stop", unit)
}

// IsActive reports whether the unit is active.
// systemctl exits non-zero for inactive units; that is a state, not an error.
func (s *Systemctl) IsActive(ctx context.Context, unit string) (bool, error) {
	output, err := exec.CommandContext(ctx, "systemctl", "is-active", unit).Output()
	state := strings.TrimSpace(string(output))

	if err == nil {
		return state == "active", nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}

	return false, fmt.Errorf("systemctl is-active %s: %w", unit, err)
}

// Available reports whether systemctl exists on PATH.
func (s *Systemctl) Available() bool {
	_, err := exec.LookPath("systemctl")
	return err == nil
}

// run executes a systemctl verb against the unit, surfacing stderr in the error.
func (s *Systemctl) run(ctx context.Context, verb, unit string) error {
	output, err := exec.CommandContext(ctx, "systemctl", verb, unit).CombinedOutput()
	if err != nil {
		return fmt.Errorf("systemctl %s %s: %s: %w", verb, unit, strings.TrimSpace(string(output)), err)
	}

	return nil
}
