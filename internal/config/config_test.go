package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate_Defaults ensures optional fields are filled with defaults.
func TestValidate_Defaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{AppName: "sensor-hub"}
	require.NoError(t, Validate(cfg))

	require.Equal(t, DefaultMountPoint, cfg.MountPoint)
	require.Equal(t, DefaultEntryPoint, cfg.EntryPoint)
	require.Equal(t, DefaultManifest, cfg.Manifest)
	require.Equal(t, "sensor-hub.service", cfg.ServiceUnit)
	require.Equal(t, DefaultBackupRoot, cfg.BackupRoot)
	require.Equal(t, DefaultUpdateLog, cfg.UpdateLog)
	require.Equal(t, DefaultRuntimeUser, cfg.RuntimeUser)
	require.Equal(t, DefaultBackupRetention, cfg.BackupRetention)
	require.Equal(t, DefaultSettleInterval, cfg.SettleInterval)
}

// TestValidate_Errors covers missing unit name and relative paths.
func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	require.Error(t, Validate(nil))
	require.ErrorIs(t, Validate(&Config{}), errServiceUnitRequired)
	require.ErrorIs(t,
		Validate(&Config{AppName: "a", MountPoint: "relative/path"}),
		errMountPointNotAbsolute)
	require.ErrorIs(t,
		Validate(&Config{AppName: "a", BackupRoot: "backups"}),
		errBackupRootNotAbsolute)
}

// TestSaveLoad_Roundtrip ensures Save followed by Load returns equal settings.
func TestSaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "updater.yaml")
	want := &Config{
		AppName:         "sensor-hub",
		MountPoint:      "/opt/sensor-hub",
		ServiceUnit:     "sensor-hub.service",
		BackupRoot:      "/var/backups/sensor-hub",
		UpdateLog:       "/var/log/sensor-hub/update.log",
		RuntimeUser:     "sensor",
		BackupRetention: 3,
		SettleInterval:  Duration(5 * time.Second),
	}

	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, want.MountPoint, got.MountPoint)
	require.Equal(t, want.ServiceUnit, got.ServiceUnit)
	require.Equal(t, want.BackupRetention, got.BackupRetention)
	require.Equal(t, want.SettleInterval, got.SettleInterval)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}

// TestLoad_HumanDurations ensures durations parse from the "3s" form.
func TestLoad_HumanDurations(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "updater.yaml")
	contents := "app_name: sensor-hub\nsettle_interval: 1m30s\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Duration(90*time.Second), cfg.SettleInterval)
}

// TestLoad_MissingFile ensures a useful wrapped error for absent settings.
func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
