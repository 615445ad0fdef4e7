package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jd-boyd/bts-rpi-base/internal/logger"
	"github.com/jd-boyd/bts-rpi-base/internal/repository/updatelog"
)

const (
	// statusBackupLimit caps how many backups a status report lists.
	statusBackupLimit = 10

	// statusLogLines is how many update log lines a status report tails.
	statusLogLines = 10

	// noLogFoundMarker is rendered when the update log does not exist yet.
	noLogFoundMarker = "no update log found"
)

// Status is a read-only snapshot of the deployment.
// Missing optional pieces (log, backups, environment) are reported as
// absent, never as errors.
type Status struct {
	// ServiceUnit is the supervised unit name.
	ServiceUnit string
	// ServiceActive is whether the supervisor reports the unit active.
	ServiceActive bool
	// MountPoint is the application partition mount point.
	MountPoint string
	// MountMode is "ro", "rw" or "unknown".
	MountMode string
	// EntryPoint is the absolute path of the application entry file.
	EntryPoint string
	// EntryModTime is the entry point's last modification time; zero if missing.
	EntryModTime time.Time
	// EnvPresent is whether the dependency environment directory exists.
	EnvPresent bool
	// RuntimeVersion is the environment's language runtime version, if probed.
	RuntimeVersion string
	// Backups lists available backup names, newest first, capped.
	Backups []string
	// LogFound is whether the update log file exists.
	LogFound bool
	// LogLines is the tail of the update log, oldest first.
	LogLines []string
}

// Status gathers the snapshot. It takes no lease, needs no privilege and
// mutates nothing.
func (o *Orchestrator) Status(ctx context.Context) *Status {
	ctx = logger.WithKV(ctx, "operation", "status")

	st := &Status{
		ServiceUnit: o.cfg.ServiceUnit,
		MountPoint:  o.cfg.MountPoint,
		MountMode:   "unknown",
		EntryPoint:  filepath.Join(o.cfg.MountPoint, o.cfg.EntryPoint),
	}

	active, err := o.supervisor.IsActive(ctx, o.cfg.ServiceUnit)
	if err != nil {
		logger.DebugKV(ctx, "Service state unavailable", "error", err)
	} else {
		st.ServiceActive = active
	}

	if mode, err := o.mounts.Mode(o.cfg.MountPoint); err == nil {
		st.MountMode = string(mode)
	} else {
		logger.DebugKV(ctx, "Mount mode unavailable", "error", err)
	}

	if info, err := os.Stat(st.EntryPoint); err == nil {
		st.EntryModTime = info.ModTime()
	}

	envDir := filepath.Join(o.cfg.MountPoint, EnvDirName)
	if info, err := os.Stat(envDir); err == nil && info.IsDir() {
		st.EnvPresent = true
		st.RuntimeVersion = probeRuntimeVersion(ctx, filepath.Join(envDir, "bin", "python"))
	}

	if names, err := o.listBackups(); err == nil {
		if len(names) > statusBackupLimit {
			names = names[:statusBackupLimit]
		}

		st.Backups = names
	} else {
		logger.DebugKV(ctx, "Backups unavailable", "error", err)
	}

	lines, err := o.journal.Tail(ctx, statusLogLines)

	switch {
	case err == nil:
		st.LogFound = true
		st.LogLines = lines
	case errors.Is(err, updatelog.ErrNotFound):
	default:
		logger.DebugKV(ctx, "Update log unavailable", "error", err)
	}

	return st
}

// Render formats the status snapshot for the CLI.
func (s *Status) Render() string {
	var b strings.Builder

	b.WriteString("Service:   " + s.ServiceUnit + " (" + activeWord(s.ServiceActive) + ")\n")
	b.WriteString("Partition: " + s.MountPoint + " (" + s.MountMode + ")\n")

	if s.EntryModTime.IsZero() {
		b.WriteString("Entry:     " + s.EntryPoint + " (missing)\n")
	} else {
		b.WriteString(fmt.Sprintf("Entry:     %s (modified %s)\n",
			s.EntryPoint, s.EntryModTime.Format("2006-01-02 15:04:05")))
	}

	switch {
	case s.EnvPresent && s.RuntimeVersion != "":
		b.WriteString("Env:       present (" + s.RuntimeVersion + ")\n")
	case s.EnvPresent:
		b.WriteString("Env:       present\n")
	default:
		b.WriteString("Env:       not found\n")
	}

	if len(s.Backups) == 0 {
		b.WriteString("Backups:   none\n")
	} else {
		b.WriteString("Backups:\n")
		for _, name := range s.Backups {
			b.WriteString("  " + name + "\n")
		}
	}

	if !s.LogFound {
		b.WriteString("Log:       " + noLogFoundMarker + "\n")
	} else {
		b.WriteString("Log:\n")
		for _, line := range s.LogLines {
			b.WriteString("  " + line + "\n")
		}
	}

	return b.String()
}

// activeWord renders a service state for humans.
func activeWord(active bool) string {
	if active {
		return "active"
	}

	return "inactive"
}

// probeRuntimeVersion asks the environment's interpreter for its version.
// Any failure renders as an empty version rather than an error.
func probeRuntimeVersion(ctx context.Context, python string) string {
	output, err := exec.CommandContext(ctx, python, "--version").CombinedOutput()
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(output))
}
