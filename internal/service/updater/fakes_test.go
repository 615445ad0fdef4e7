package updater

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jd-boyd/bts-rpi-base/internal/config"
	"github.com/jd-boyd/bts-rpi-base/internal/repository/updatelog"
	"github.com/jd-boyd/bts-rpi-base/internal/system/mount"
)

// fakeSupervisor is an in-memory service supervisor.
type fakeSupervisor struct {
	active     bool
	stopErr    error
	startErr   error
	activeErr  error
	startInert bool // Start succeeds but the unit stays inactive.
	stops      int
	starts     int
}

func (f *fakeSupervisor) Stop(_ context.Context, _ string) error {
	if f.stopErr != nil {
		return f.stopErr
	}

	f.stops++
	f.active = false

	return nil
}

func (f *fakeSupervisor) Start(_ context.Context, _ string) error {
	if f.startErr != nil {
		return f.startErr
	}

	f.starts++
	if !f.startInert {
		f.active = true
	}

	return nil
}

func (f *fakeSupervisor) IsActive(_ context.Context, _ string) (bool, error) {
	return f.active, f.activeErr
}

// fakeMount is an in-memory mount controller tracking remount calls.
type fakeMount struct {
	mode     mount.Mode
	failRW   error
	failRO   error
	modeErr  error
	remounts []mount.Mode
}

func (f *fakeMount) Remount(_ context.Context, _ string, mode mount.Mode) error {
	if mode == mount.ReadWrite && f.failRW != nil {
		return f.failRW
	}

	if mode == mount.ReadOnly && f.failRO != nil {
		return f.failRO
	}

	f.remounts = append(f.remounts, mode)
	f.mode = mode

	return nil
}

func (f *fakeMount) Mode(_ string) (mount.Mode, error) {
	if f.modeErr != nil {
		return "", f.modeErr
	}

	return f.mode, nil
}

// fakeInstaller records dependency environment calls.
type fakeInstaller struct {
	createErr  error
	installErr error
	created    []string
	installed  []string
}

func (f *fakeInstaller) CreateEnvironment(_ context.Context, envDir string) error {
	if f.createErr != nil {
		return f.createErr
	}

	f.created = append(f.created, envDir)

	return os.MkdirAll(envDir, 0o755)
}

func (f *fakeInstaller) InstallManifest(_ context.Context, _, manifestPath string) error {
	if f.installErr != nil {
		return f.installErr
	}

	f.installed = append(f.installed, manifestPath)

	return nil
}

// fixture wires an orchestrator against fakes inside a temp directory.
type fixture struct {
	t       *testing.T
	o       *Orchestrator
	sup     *fakeSupervisor
	mnt     *fakeMount
	inst    *fakeInstaller
	cfg     *config.Config
	nowTime time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		AppName:         "app",
		MountPoint:      filepath.Join(dir, "partition"),
		EntryPoint:      "app.py",
		Manifest:        "requirements.txt",
		ServiceUnit:     "app.service",
		BackupRoot:      filepath.Join(dir, "backups"),
		UpdateLog:       filepath.Join(dir, "log", "update.log"),
		RuntimeUser:     "app",
		BackupRetention: 5,
		SettleInterval:  config.Duration(3 * time.Second),
	}
	require.NoError(t, os.MkdirAll(cfg.MountPoint, 0o755))

	f := &fixture{
		t:       t,
		sup:     &fakeSupervisor{active: true},
		mnt:     &fakeMount{mode: mount.ReadOnly},
		inst:    &fakeInstaller{},
		cfg:     cfg,
		nowTime: time.Date(2026, 8, 29, 14, 35, 12, 0, time.UTC),
	}

	f.o = &Orchestrator{
		cfg:        cfg,
		supervisor: f.sup,
		mounts:     f.mnt,
		installer:  f.inst,
		journal:    updatelog.NewFileSink(cfg.UpdateLog),
		lease:      newLease(filepath.Join(cfg.BackupRoot, LeaseFilename)),
		sleep:      func(time.Duration) {},
		now:        func() time.Time { return f.nowTime },
		euid:       func() int { return 0 },
		lookupUser: func(string) (int, int, error) { return os.Getuid(), os.Getgid(), nil },
	}

	return f
}

// advance moves the fixture clock forward.
func (f *fixture) advance(d time.Duration) {
	f.nowTime = f.nowTime.Add(d)
}

// writeSource creates a source directory with the provided files.
func (f *fixture) writeSource(files map[string]string) string {
	f.t.Helper()

	dir := filepath.Join(f.t.TempDir(), "source")
	writeFiles(f.t, dir, files)

	return dir
}

// seedPartition populates the mount point with the provided files.
func (f *fixture) seedPartition(files map[string]string) {
	f.t.Helper()
	writeFiles(f.t, f.cfg.MountPoint, files)
}

// writeFiles lays out relpath -> content under dir.
func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for relPath, content := range files {
		path := filepath.Join(dir, relPath)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// readTree returns relpath -> content for every regular file under dir.
func readTree(t *testing.T, dir string) map[string]string {
	t.Helper()

	tree := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}

		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		tree[relPath] = string(content)

		return nil
	})
	require.NoError(t, err)

	return tree
}
