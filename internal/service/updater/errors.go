package updater

import "errors"

var (
	// ErrPermission is returned when the caller lacks elevated privileges.
	// Checked before anything else, so no state is touched.
	ErrPermission = errors.New("operation requires elevated privileges")

	// ErrSource is returned when the install source is missing or not a directory.
	ErrSource = errors.New("source is missing or not a directory")

	// ErrBackupNotFound is returned when the restore target does not exist.
	ErrBackupNotFound = errors.New("backup not found")

	// ErrBackup is returned when creating a backup fails.
	// Install aborts on it before mutating anything.
	ErrBackup = errors.New("backup failed")

	// ErrService is returned when the supervisor fails to stop or start the service.
	ErrService = errors.New("service supervisor failed")

	// ErrMount is returned when remounting the application partition fails.
	ErrMount = errors.New("partition remount failed")

	// ErrVerification is returned when the service does not report active
	// after a start call that itself succeeded.
	ErrVerification = errors.New("service inactive after start")

	// ErrLeaseHeld is returned when another invocation holds the update lease.
	ErrLeaseHeld = errors.New("update lease already held")
)
