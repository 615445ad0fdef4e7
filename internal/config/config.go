package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads and writes YAML in the
// human form ("3s", "1m30s") instead of nanosecond integers.
type Duration time.Duration

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}

	*d = Duration(parsed)

	return nil
}

// Config holds the on-device settings for the update utility.
// One file describes one application partition and its supervised service.
type Config struct {
	// AppName is the short name of the deployed application.
	AppName string `yaml:"app_name"`
	// MountPoint is the application partition mount point.
	MountPoint string `yaml:"mount_point"`
	// EntryPoint is the application entry file, relative to MountPoint.
	EntryPoint string `yaml:"entry_point"`
	// Manifest is the dependency manifest file, relative to MountPoint.
	Manifest string `yaml:"manifest"`
	// ServiceUnit is the systemd unit supervising the application.
	ServiceUnit string `yaml:"service_unit"`
	// BackupRoot is the directory holding timestamp-named backups.
	BackupRoot string `yaml:"backup_root"`
	// UpdateLog is the append-only update audit log file.
	UpdateLog string `yaml:"update_log"`
	// RuntimeUser owns the deployed files and runs the service.
	RuntimeUser string `yaml:"runtime_user"`
	// BackupRetention is how many backups survive pruning.
	BackupRetention int `yaml:"backup_retention"`
	// SettleInterval is the pause between service start and the active check.
	SettleInterval Duration `yaml:"settle_interval"`
}

const (
	// DefaultConfigFilename is the default path of the updater settings file.
	DefaultConfigFilename = "/etc/rpi-base/updater.yaml"

	// DefaultMountPoint is where the application partition is mounted.
	DefaultMountPoint = "/opt/app"

	// DefaultEntryPoint is the application entry file within the partition.
	DefaultEntryPoint = "app.py"

	// DefaultManifest is the dependency manifest within the partition.
	DefaultManifest = "requirements.txt"

	// DefaultBackupRoot holds timestamp-named backup directories.
	DefaultBackupRoot = "/var/backups/app"

	// DefaultUpdateLog is the append-only update audit log.
	DefaultUpdateLog = "/var/log/app/update.log"

	// DefaultRuntimeUser owns the deployed application files.
	DefaultRuntimeUser = "app"

	// DefaultBackupRetention is how many backups are kept.
	DefaultBackupRetention = 5

	// DefaultSettleInterval is the pause before verifying the service is active.
	DefaultSettleInterval = Duration(3 * time.Second)

	// DefaultFilePermissions is the file permission for written settings files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServiceUnitRequired is returned when the service unit name is missing.
	errServiceUnitRequired = errors.New("service unit must be provided")
	// errMountPointNotAbsolute is returned for a relative partition mount point.
	errMountPointNotAbsolute = errors.New("mount point must be an absolute path")
	// errBackupRootNotAbsolute is returned for a relative backup root.
	errBackupRootNotAbsolute = errors.New("backup root must be an absolute path")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills in defaults for optional ones.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.MountPoint == "" {
		cfg.MountPoint = DefaultMountPoint
	}

	if !filepath.IsAbs(cfg.MountPoint) {
		return fmt.Errorf("%s: %w", cfg.MountPoint, errMountPointNotAbsolute)
	}

	if cfg.BackupRoot == "" {
		cfg.BackupRoot = DefaultBackupRoot
	}

	if !filepath.IsAbs(cfg.BackupRoot) {
		return fmt.Errorf("%s: %w", cfg.BackupRoot, errBackupRootNotAbsolute)
	}

	if cfg.ServiceUnit == "" {
		if cfg.AppName == "" {
			return errServiceUnitRequired
		}

		cfg.ServiceUnit = cfg.AppName + ".service"
	}

	if cfg.EntryPoint == "" {
		cfg.EntryPoint = DefaultEntryPoint
	}

	if cfg.Manifest == "" {
		cfg.Manifest = DefaultManifest
	}

	if cfg.UpdateLog == "" {
		cfg.UpdateLog = DefaultUpdateLog
	}

	if cfg.RuntimeUser == "" {
		cfg.RuntimeUser = DefaultRuntimeUser
	}

	if cfg.BackupRetention <= 0 {
		cfg.BackupRetention = DefaultBackupRetention
	}

	if cfg.SettleInterval <= 0 {
		cfg.SettleInterval = DefaultSettleInterval
	}

	return nil
}
