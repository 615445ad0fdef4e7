package updater

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jd-boyd/bts-rpi-base/internal/config"
	"github.com/jd-boyd/bts-rpi-base/internal/domain/partition"
	"github.com/jd-boyd/bts-rpi-base/internal/logger"
	"github.com/jd-boyd/bts-rpi-base/internal/repository/updatelog"
	"github.com/jd-boyd/bts-rpi-base/internal/system/deps"
	"github.com/jd-boyd/bts-rpi-base/internal/system/mount"
	"github.com/jd-boyd/bts-rpi-base/internal/system/supervisor"
)

// EnvDirName is the dependency environment directory inside the partition.
const EnvDirName = ".venv"

// Orchestrator mediates all changes to the application partition and the
// running state of its service. It is the sole writer of both; callers are
// serialized through the update lease.
type Orchestrator struct {
	cfg        *config.Config
	supervisor supervisor.Supervisor
	mounts     mount.Controller
	installer  deps.Installer
	journal    updatelog.Sink
	lease      *lease

	// sleep, now, euid and lookupUser are indirections for the clock,
	// privilege check and user database, replaceable in tests.
	sleep      func(time.Duration)
	now        func() time.Time
	euid       func() int
	lookupUser func(name string) (uid, gid int, err error)
}

// New wires an orchestrator with the production collaborators:
// systemctl, the Linux mount syscall, uv and the file-backed update log.
func New(cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		supervisor: supervisor.NewSystemctl(),
		mounts:     mount.NewLinux(),
		installer:  deps.NewUV(),
		journal:    updatelog.NewFileSink(cfg.UpdateLog),
		lease:      newLease(filepath.Join(cfg.BackupRoot, LeaseFilename)),
		sleep:      time.Sleep,
		now:        time.Now,
		euid:       os.Geteuid,
		lookupUser: lookupSystemUser,
	}
}

// Install replaces the partition's contents with sourceDir's, rebuilding the
// dependency environment and bringing the service back up. It returns the
// path of the backup taken before anything was touched, so the caller always
// has a rollback target.
func (o *Orchestrator) Install(ctx context.Context, sourceDir string) (string, error) {
	ctx = logger.WithKV(ctx, "operation", "install")

	if err := o.requireRoot(); err != nil {
		return "", err
	}

	if err := checkSourceDir(sourceDir); err != nil {
		return "", err
	}

	release, err := o.lease.Acquire(ctx)
	if err != nil {
		return "", err
	}

	defer release()

	o.journalf(ctx, "Install started from %s", sourceDir)

	// Step 1: backup. A failure here aborts before any mutation.
	backupPath, err := o.createBackup(ctx)
	if err != nil {
		o.journalFatal(ctx, err)
		return "", err
	}

	o.journalf(ctx, "Backup created at %s", backupPath)

	tracker := partition.NewTracker()

	if err = o.swapFromSource(ctx, tracker, sourceDir); err != nil {
		o.failAndRecover(ctx, tracker, err)
		return "", err
	}

	o.journalf(ctx, "Install completed, rollback target %s", backupPath)

	return backupPath, nil
}

// swapFromSource runs steps 2-9 of the install sequence on the tracker.
func (o *Orchestrator) swapFromSource(ctx context.Context, tracker *partition.Tracker, sourceDir string) error {
	if err := o.stopService(ctx, tracker); err != nil {
		return err
	}

	if err := o.remountReadWrite(ctx, tracker); err != nil {
		return err
	}

	if err := tracker.Advance(partition.Syncing); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Synchronizing application files",
		"source", sourceDir, "target", o.cfg.MountPoint)

	// The environment directory is rebuilt below, not mirrored from source.
	if err := syncTree(sourceDir, o.cfg.MountPoint, defaultExcludes, []string{EnvDirName}); err != nil {
		return fmt.Errorf("synchronize application files: %w", err)
	}

	if err := o.applyOwnership(ctx); err != nil {
		return err
	}

	o.rebuildEnvironment(ctx)

	if err := o.remountReadOnly(ctx, tracker); err != nil {
		return err
	}

	if err := o.startService(ctx, tracker); err != nil {
		return err
	}

	if err := o.verifyService(ctx, tracker); err != nil {
		return err
	}

	return tracker.Advance(partition.ReadOnlyIdle)
}

// Backup copies the partition's current contents into a new timestamped
// backup and prunes old ones past the retention limit.
func (o *Orchestrator) Backup(ctx context.Context) (string, error) {
	ctx = logger.WithKV(ctx, "operation", "backup")

	if err := o.requireRoot(); err != nil {
		return "", err
	}

	release, err := o.lease.Acquire(ctx)
	if err != nil {
		return "", err
	}

	defer release()

	backupPath, err := o.createBackup(ctx)
	if err != nil {
		o.journalFatal(ctx, err)
		return "", err
	}

	o.journalf(ctx, "Backup created at %s", backupPath)

	return backupPath, nil
}

// Restore replaces the partition's contents with a previously taken backup.
// The pre-restore state is not preserved; take a backup first if it matters.
func (o *Orchestrator) Restore(ctx context.Context, backupPath string) error {
	ctx = logger.WithKV(ctx, "operation", "restore")

	if err := o.requireRoot(); err != nil {
		return err
	}

	info, err := os.Stat(backupPath)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%s: %w", backupPath, ErrBackupNotFound)
	}

	release, err := o.lease.Acquire(ctx)
	if err != nil {
		return err
	}

	defer release()

	o.journalf(ctx, "Restore started from %s", backupPath)

	tracker := partition.NewTracker()

	if err = o.swapFromBackup(ctx, tracker, backupPath); err != nil {
		o.failAndRecover(ctx, tracker, err)
		return err
	}

	o.journalf(ctx, "Restore completed from %s", backupPath)

	return nil
}

// swapFromBackup runs the restore sequence on the tracker. Unlike install it
// wipes the partition outright and performs no post-start verification.
func (o *Orchestrator) swapFromBackup(ctx context.Context, tracker *partition.Tracker, backupPath string) error {
	if err := o.stopService(ctx, tracker); err != nil {
		return err
	}

	if err := o.remountReadWrite(ctx, tracker); err != nil {
		return err
	}

	if err := tracker.Advance(partition.Syncing); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Restoring partition contents", "backup", backupPath)

	if err := removeContents(o.cfg.MountPoint); err != nil {
		return fmt.Errorf("clear partition: %w", err)
	}

	if err := copyTree(backupPath, o.cfg.MountPoint); err != nil {
		return fmt.Errorf("copy backup contents: %w", err)
	}

	if err := o.applyOwnership(ctx); err != nil {
		return err
	}

	if err := o.remountReadOnly(ctx, tracker); err != nil {
		return err
	}

	if err := o.startService(ctx, tracker); err != nil {
		return err
	}

	// Restore skips the settle/verify stage, so step straight back to idle.
	if err := tracker.Advance(partition.Verifying); err != nil {
		return err
	}

	return tracker.Advance(partition.ReadOnlyIdle)
}

// MountReadWrite remounts the partition writable for manual maintenance.
// No timer re-locks it; the operator is trusted to run mount-ro afterwards.
func (o *Orchestrator) MountReadWrite(ctx context.Context) error {
	ctx = logger.WithKV(ctx, "operation", "mount-rw")

	if err := o.requireRoot(); err != nil {
		return err
	}

	release, err := o.lease.Acquire(ctx)
	if err != nil {
		return err
	}

	defer release()

	if err = o.mounts.Remount(ctx, o.cfg.MountPoint, mount.ReadWrite); err != nil {
		return fmt.Errorf("%w: %w", ErrMount, err)
	}

	o.journalf(ctx, "Partition %s manually remounted read-write", o.cfg.MountPoint)
	logger.Warnf(ctx,
		"Partition %s is now WRITABLE; remember to run mount-ro when finished",
		o.cfg.MountPoint)

	return nil
}

// MountReadOnly remounts the partition read-only, restoring the at-rest state.
func (o *Orchestrator) MountReadOnly(ctx context.Context) error {
	ctx = logger.WithKV(ctx, "operation", "mount-ro")

	if err := o.requireRoot(); err != nil {
		return err
	}

	release, err := o.lease.Acquire(ctx)
	if err != nil {
		return err
	}

	defer release()

	if err = o.mounts.Remount(ctx, o.cfg.MountPoint, mount.ReadOnly); err != nil {
		return fmt.Errorf("%w: %w", ErrMount, err)
	}

	o.journalf(ctx, "Partition %s manually remounted read-only", o.cfg.MountPoint)
	logger.Infof(ctx, "Partition %s is read-only again", o.cfg.MountPoint)

	return nil
}

// stopService stops the supervised service (step 2).
func (o *Orchestrator) stopService(ctx context.Context, tracker *partition.Tracker) error {
	if err := tracker.Advance(partition.Stopping); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Stopping service", "unit", o.cfg.ServiceUnit)

	if err := o.supervisor.Stop(ctx, o.cfg.ServiceUnit); err != nil {
		return fmt.Errorf("%w: stop: %w", ErrService, err)
	}

	return nil
}

// remountReadWrite makes the partition writable (step 3).
func (o *Orchestrator) remountReadWrite(ctx context.Context, tracker *partition.Tracker) error {
	if err := tracker.Advance(partition.Writable); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Remounting partition read-write", "mount_point", o.cfg.MountPoint)

	if err := o.mounts.Remount(ctx, o.cfg.MountPoint, mount.ReadWrite); err != nil {
		return fmt.Errorf("%w: %w", ErrMount, err)
	}

	return nil
}

// remountReadOnly locks the partition again (step 7). A failure here is
// fatal even after a successful sync: a writable partition left mounted
// violates the core safety invariant.
func (o *Orchestrator) remountReadOnly(ctx context.Context, tracker *partition.Tracker) error {
	if err := tracker.Advance(partition.RemountingRO); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Remounting partition read-only", "mount_point", o.cfg.MountPoint)

	if err := o.mounts.Remount(ctx, o.cfg.MountPoint, mount.ReadOnly); err != nil {
		return fmt.Errorf("%w: %w", ErrMount, err)
	}

	return nil
}

// startService brings the service back up (step 8).
func (o *Orchestrator) startService(ctx context.Context, tracker *partition.Tracker) error {
	if err := tracker.Advance(partition.Starting); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Starting service", "unit", o.cfg.ServiceUnit)

	if err := o.supervisor.Start(ctx, o.cfg.ServiceUnit); err != nil {
		return fmt.Errorf("%w: start: %w", ErrService, err)
	}

	return nil
}

// verifyService waits the settle interval and checks the service is really
// active (step 9). A successful start call is not proof the process stayed up.
func (o *Orchestrator) verifyService(ctx context.Context, tracker *partition.Tracker) error {
	if err := tracker.Advance(partition.Verifying); err != nil {
		return err
	}

	settle := time.Duration(o.cfg.SettleInterval)

	logger.InfoKV(ctx, "Verifying service",
		"unit", o.cfg.ServiceUnit, "settle_interval", settle)

	o.sleep(settle)

	active, err := o.supervisor.IsActive(ctx, o.cfg.ServiceUnit)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerification, err)
	}

	if !active {
		return fmt.Errorf("%s: %w", o.cfg.ServiceUnit, ErrVerification)
	}

	return nil
}

// applyOwnership chowns the partition to the runtime user and makes the
// entry point executable (step 5).
func (o *Orchestrator) applyOwnership(ctx context.Context) error {
	uid, gid, err := o.lookupUser(o.cfg.RuntimeUser)
	if err != nil {
		return fmt.Errorf("lookup runtime user %s: %w", o.cfg.RuntimeUser, err)
	}

	logger.InfoKV(ctx, "Applying ownership",
		"user", o.cfg.RuntimeUser, "uid", uid, "gid", gid)

	if err = chownTree(o.cfg.MountPoint, uid, gid); err != nil {
		return fmt.Errorf("chown partition: %w", err)
	}

	entryPath := filepath.Join(o.cfg.MountPoint, o.cfg.EntryPoint)
	if err = os.Chmod(entryPath, 0o755); err != nil {
		return fmt.Errorf("make entry point executable: %w", err)
	}

	return nil
}

// rebuildEnvironment recreates the dependency environment from the manifest
// (step 6). Failures degrade to warnings: a partial dependency install must
// not keep the service down.
func (o *Orchestrator) rebuildEnvironment(ctx context.Context) {
	manifestPath := filepath.Join(o.cfg.MountPoint, o.cfg.Manifest)
	if _, err := os.Stat(manifestPath); err != nil {
		logger.InfoKV(ctx, "No dependency manifest, skipping environment build",
			"manifest", manifestPath)

		return
	}

	envDir := filepath.Join(o.cfg.MountPoint, EnvDirName)

	logger.InfoKV(ctx, "Rebuilding dependency environment", "env", envDir)

	if err := os.RemoveAll(envDir); err != nil {
		o.warnEnvironment(ctx, fmt.Errorf("remove old environment: %w", err))
		return
	}

	if err := o.installer.CreateEnvironment(ctx, envDir); err != nil {
		o.warnEnvironment(ctx, fmt.Errorf("create environment: %w", err))
		return
	}

	if err := o.installer.InstallManifest(ctx, envDir, manifestPath); err != nil {
		o.warnEnvironment(ctx, fmt.Errorf("install manifest: %w", err))
		return
	}

	uid, gid, err := o.lookupUser(o.cfg.RuntimeUser)
	if err == nil {
		if err = chownTree(envDir, uid, gid); err != nil {
			o.warnEnvironment(ctx, fmt.Errorf("chown environment: %w", err))
		}
	}
}

// warnEnvironment records a non-fatal dependency failure.
func (o *Orchestrator) warnEnvironment(ctx context.Context, err error) {
	logger.WarnKV(ctx, "Dependency environment build failed; continuing", "error", err)
	o.journalf(ctx, "WARNING: dependency environment build failed: %v", err)
}

// failAndRecover journals the fatal error and runs the best-effort recovery
// path. The original error is never replaced; recovery failures are only
// logged.
func (o *Orchestrator) failAndRecover(ctx context.Context, tracker *partition.Tracker, fatal error) {
	logger.ErrorKV(ctx, "Fatal error, entering recovery",
		"error", fatal, "state", tracker.Current().String())
	o.journalf(ctx, "ERROR: %v (failed in state %s)", fatal, tracker.Current())

	o.Recover(ctx)
	tracker.Recover()
}

// Recover restores the safety invariants best-effort: remount the partition
// read-only if it is writable and start the service if it is not active.
// The two actions are independent; neither failure blocks the other, and
// calling this in the at-rest state changes nothing.
func (o *Orchestrator) Recover(ctx context.Context) {
	mode, err := o.mounts.Mode(o.cfg.MountPoint)

	switch {
	case err != nil:
		logger.WarnKV(ctx, "Recovery: unable to read mount mode", "error", err)
	case mode == mount.ReadWrite:
		if err = o.mounts.Remount(ctx, o.cfg.MountPoint, mount.ReadOnly); err != nil {
			logger.WarnKV(ctx, "Recovery: remount read-only failed", "error", err)
			o.journalf(ctx, "WARNING: recovery remount read-only failed: %v", err)
		} else {
			o.journalf(ctx, "Recovery: partition remounted read-only")
		}
	}

	active, err := o.supervisor.IsActive(ctx, o.cfg.ServiceUnit)

	switch {
	case err != nil:
		logger.WarnKV(ctx, "Recovery: unable to read service state", "error", err)
	case !active:
		if err = o.supervisor.Start(ctx, o.cfg.ServiceUnit); err != nil {
			logger.WarnKV(ctx, "Recovery: service start failed", "error", err)
			o.journalf(ctx, "WARNING: recovery service start failed: %v", err)
		} else {
			o.journalf(ctx, "Recovery: service started")
		}
	}
}

// createBackup copies the partition into a fresh timestamped backup
// directory and prunes backups past the retention limit.
func (o *Orchestrator) createBackup(ctx context.Context) (string, error) {
	backupPath, err := o.newBackupPath()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBackup, err)
	}

	logger.InfoKV(ctx, "Creating backup",
		"source", o.cfg.MountPoint, "backup", backupPath)

	if err = copyTree(o.cfg.MountPoint, backupPath); err != nil {
		// Remove the partial copy so it never looks like a valid backup.
		_ = os.RemoveAll(backupPath)

		return "", fmt.Errorf("%w: %w", ErrBackup, err)
	}

	o.pruneBackups(ctx)

	return backupPath, nil
}

// requireRoot fails with ErrPermission when not running with effective uid 0.
func (o *Orchestrator) requireRoot() error {
	if o.euid() != 0 {
		return ErrPermission
	}

	return nil
}

// journalf appends a formatted entry to the durable update log.
// Journal failures must not break the operation itself.
func (o *Orchestrator) journalf(ctx context.Context, format string, args ...any) {
	if err := o.journal.Append(ctx, fmt.Sprintf(format, args...)); err != nil {
		logger.WarnKV(ctx, "Unable to append update log", "error", err)
	}
}

// journalFatal records a fatal precondition-stage error.
func (o *Orchestrator) journalFatal(ctx context.Context, err error) {
	logger.ErrorKV(ctx, "Operation failed", "error", err)
	o.journalf(ctx, "ERROR: %v", err)
}

// checkSourceDir validates the install source precondition.
func checkSourceDir(sourceDir string) error {
	info, err := os.Stat(sourceDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%s: %w", sourceDir, ErrSource)
	}

	return nil
}

// lookupSystemUser resolves a username to numeric uid/gid.
func lookupSystemUser(name string) (int, int, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return 0, 0, err
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, fmt.Errorf("parse uid %q: %w", u.Uid, err)
	}

	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return 0, 0, fmt.Errorf("parse gid %q: %w", u.Gid, err)
	}

	return uid, gid, nil
}
