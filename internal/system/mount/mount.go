package mount

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// Mode is the mount mode of a filesystem.
type Mode string

const (
	// ReadOnly is the at-rest mode of the application partition.
	ReadOnly Mode = "ro"
	// ReadWrite is the mode held only while an update is in flight.
	ReadWrite Mode = "rw"

	// defaultMountsFile is the kernel's view of mounted filesystems.
	defaultMountsFile = "/proc/self/mounts"
)

var (
	// ErrNotMounted is returned when the mount point is absent from the mounts table.
	ErrNotMounted = errors.New("mount point not found in mounts table")
	// errUnknownMode is returned for a mode other than ro/rw.
	errUnknownMode = errors.New("unknown mount mode")
)

// Controller remounts a mounted filesystem in place and reports its mode.
type Controller interface {
	Remount(ctx context.Context, mountPoint string, mode Mode) error
	Mode(mountPoint string) (Mode, error)
}

// Linux is the Controller for a live Linux system.
type Linux struct {
	// mountsFile is the mounts table consulted by Mode; overridable for tests.
	mountsFile string
}

// NewLinux returns a Controller backed by the mount syscall and /proc/self/mounts.
func NewLinux() *Linux {
	return &Linux{mountsFile: defaultMountsFile}
}

// NewLinuxWithMountsFile returns a Controller reading the provided mounts table.
func NewLinuxWithMountsFile(mountsFile string) *Linux {
	return &Linux{mountsFile: mountsFile}
}

// Remount remounts the filesystem at mountPoint with the requested mode.
// MS_REMOUNT changes mount flags in place, so the block device stays attached.
func (l *Linux) Remount(_ context.Context, mountPoint string, mode Mode) error {
	flags := uintptr(unix.MS_REMOUNT)

	switch mode {
	case ReadOnly:
		flags |= unix.MS_RDONLY
	case ReadWrite:
	default:
		return fmt.Errorf("%q: %w", mode, errUnknownMode)
	}

	if err := unix.Mount("", mountPoint, "", flags, ""); err != nil {
		return fmt.Errorf("remount %s %s: %w", mountPoint, mode, err)
	}

	return nil
}

// Mode reports the current mode of the filesystem mounted at mountPoint.
// The longest matching mount point wins so nested mounts resolve correctly.
func (l *Linux) Mode(mountPoint string) (Mode, error) {
	file, err := os.Open(l.mountsFile)
	if err != nil {
		return "", fmt.Errorf("open mounts table: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	var (
		target    = filepath.Clean(mountPoint)
		bestLen   = -1
		bestMode  Mode
		scanner   = bufio.NewScanner(file)
		fieldsLen = 4
	)

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < fieldsLen {
			continue
		}

		point := unescapeMountPath(fields[1])
		if !covers(point, target) || len(point) <= bestLen {
			continue
		}

		bestLen = len(point)
		bestMode = modeFromOptions(fields[3])
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan mounts table: %w", err)
	}

	if bestLen < 0 {
		return "", fmt.Errorf("%s: %w", mountPoint, ErrNotMounted)
	}

	return bestMode, nil
}

// covers reports whether the mount at point contains the target path.
func covers(point, target string) bool {
	if point == target || point == "/" {
		return true
	}

	return strings.HasPrefix(target, point+"/")
}

// modeFromOptions picks ro/rw from the comma-separated mount options field.
// The kernel always emits one of the two as the first option.
func modeFromOptions(options string) Mode {
	for _, option := range strings.Split(options, ",") {
		if option == "ro" {
			return ReadOnly
		}

		if option == "rw" {
			return ReadWrite
		}
	}

	return ReadWrite
}

// unescapeMountPath decodes the octal escapes the kernel uses in mount paths.
func unescapeMountPath(path string) string {
	if !strings.Contains(path, `\`) {
		return path
	}

	replacer := strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`)

	return replacer.Replace(path)
}
