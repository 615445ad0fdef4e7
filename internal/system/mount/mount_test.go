package mount

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Linux must satisfy the Controller contract.
var _ Controller = (*Linux)(nil)

// writeMountsFile writes a synthetic mounts table and returns its path.
func writeMountsFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mounts")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

// TestMode_ReadOnlyPartition resolves the exact mount point's options.
func TestMode_ReadOnlyPartition(t *testing.T) {
	t.Parallel()

	table := "/dev/mmcblk0p2 / ext4 ro,noatime 0 0\n" +
		"/dev/mmcblk0p3 /opt/app ext4 ro,noatime,data=ordered 0 0\n" +
		"tmpfs /tmp tmpfs rw,nosuid 0 0\n"

	ctl := NewLinuxWithMountsFile(writeMountsFile(t, table))

	mode, err := ctl.Mode("/opt/app")
	require.NoError(t, err)
	require.Equal(t, ReadOnly, mode)

	mode, err = ctl.Mode("/tmp")
	require.NoError(t, err)
	require.Equal(t, ReadWrite, mode)
}

// TestMode_LongestMatchWins ensures a nested mount shadows its parent.
func TestMode_LongestMatchWins(t *testing.T) {
	t.Parallel()

	table := "/dev/root / ext4 ro,noatime 0 0\n" +
		"/dev/mmcblk0p3 /opt/app ext4 rw,noatime 0 0\n"

	ctl := NewLinuxWithMountsFile(writeMountsFile(t, table))

	// Path inside the nested mount resolves against /opt/app, not /.
	mode, err := ctl.Mode("/opt/app/current")
	require.NoError(t, err)
	require.Equal(t, ReadWrite, mode)

	// Path outside it falls back to the root mount.
	mode, err = ctl.Mode("/var/log")
	require.NoError(t, err)
	require.Equal(t, ReadOnly, mode)
}

// TestMode_EscapedMountPath decodes octal escapes in mount paths.
func TestMode_EscapedMountPath(t *testing.T) {
	t.Parallel()

	table := `/dev/sda1 /mnt/usb\040stick vfat ro,relatime 0 0` + "\n"
	ctl := NewLinuxWithMountsFile(writeMountsFile(t, table))

	mode, err := ctl.Mode("/mnt/usb stick")
	require.NoError(t, err)
	require.Equal(t, ReadOnly, mode)
}

// TestMode_NotMounted returns ErrNotMounted for an empty table.
func TestMode_NotMounted(t *testing.T) {
	t.Parallel()

	ctl := NewLinuxWithMountsFile(writeMountsFile(t, ""))
	_, err := ctl.Mode("/opt/app")
	require.ErrorIs(t, err, ErrNotMounted)
}

// TestRemount_UnknownMode rejects modes other than ro/rw before any syscall.
func TestRemount_UnknownMode(t *testing.T) {
	t.Parallel()

	err := NewLinux().Remount(context.Background(), "/opt/app", Mode("append"))
	require.ErrorIs(t, err, errUnknownMode)
}
