package updatelog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Sink defines the append-only update log operations.
type Sink interface {
	Append(ctx context.Context, message string) error
	Tail(ctx context.Context, n int) ([]string, error)
}

// FileSink appends timestamped entries to a plain text file on disk.
type FileSink struct {
	// path is the filesystem location of the log file.
	path string
	// mu protects concurrent access to the log file.
	mu sync.Mutex
	// now supplies timestamps; replaceable in tests.
	now func() time.Time
}

const (
	// timestampLayout matches the human-readable audit line format.
	timestampLayout = "2006-01-02 15:04:05"

	// logDirPermissions is used when creating the log's parent directory.
	logDirPermissions = 0o755

	// logFilePermissions is used when the log file is first created.
	logFilePermissions = 0o644
)

// ErrNotFound is returned when the log file does not exist yet.
var ErrNotFound = errors.New("update log not found")

// NewFileSink creates a sink that appends to the file at the provided path.
func NewFileSink(path string) *FileSink {
	return &FileSink{
		path: filepath.Clean(path),
		now:  time.Now,
	}
}

// Append writes one timestamped line and syncs it to disk.
// The parent directory is created on first use.
func (s *FileSink) Append(_ context.Context, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), logDirPermissions); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermissions)
	if err != nil {
		return fmt.Errorf("open update log: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	line := fmt.Sprintf("%s - %s\n", s.now().Format(timestampLayout), message)
	if _, err = file.WriteString(line); err != nil {
		return fmt.Errorf("append update log: %w", err)
	}

	if err = file.Sync(); err != nil {
		return fmt.Errorf("sync update log: %w", err)
	}

	return nil
}

// Tail returns up to n of the most recent log lines, oldest first.
func (s *FileSink) Tail(_ context.Context, n int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("open update log: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	var lines []string

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("read update log: %w", err)
	}

	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	return lines, nil
}
