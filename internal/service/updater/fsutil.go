package updater

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// defaultExcludes are the patterns skipped during sync: version-control
// metadata and interpreter bytecode caches. They are neither copied in nor
// deleted from the partition.
var defaultExcludes = []string{".git", "__pycache__", "*.pyc"}

// excluded reports whether any component of the relative path matches one of
// the exclude patterns.
func excluded(relPath string, patterns []string) bool {
	for _, component := range splitPath(relPath) {
		for _, pattern := range patterns {
			if ok, _ := filepath.Match(pattern, component); ok {
				return true
			}
		}
	}

	return false
}

// splitPath breaks a relative path into its components.
func splitPath(relPath string) []string {
	if relPath == "." || relPath == "" {
		return nil
	}

	return strings.Split(filepath.ToSlash(relPath), "/")
}

// copyTree copies the full contents of src into dst, preserving file modes
// and symlinks. dst is created if missing.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		return copyEntry(path, filepath.Join(dst, relPath), entry)
	})
}

// copyEntry copies a single directory entry to target.
func copyEntry(source, target string, entry fs.DirEntry) error {
	info, err := entry.Info()
	if err != nil {
		return err
	}

	switch {
	case entry.IsDir():
		return os.MkdirAll(target, info.Mode().Perm())
	case info.Mode()&os.ModeSymlink != 0:
		linkTarget, err := os.Readlink(source)
		if err != nil {
			return err
		}

		if err = os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		return os.Symlink(linkTarget, target)
	default:
		return copyFile(source, target, info.Mode().Perm())
	}
}

// copyFile copies a regular file, replacing target if it exists.
func copyFile(source, target string, perm os.FileMode) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}

// syncTree mirrors src into dst: copies everything from src and deletes dst
// entries no longer present in src. Entries matching the exclude patterns or
// the protected names are neither copied nor deleted.
func syncTree(src, dst string, excludes, protected []string) error {
	if err := syncCopyPhase(src, dst, excludes); err != nil {
		return fmt.Errorf("copy phase: %w", err)
	}

	if err := syncDeletePhase(src, dst, excludes, protected); err != nil {
		return fmt.Errorf("delete phase: %w", err)
	}

	return nil
}

// syncCopyPhase copies src into dst, skipping excluded entries.
func syncCopyPhase(src, dst string, excludes []string) error {
	return filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		if relPath != "." && excluded(relPath, excludes) {
			if entry.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if relPath == "." {
			return nil
		}

		return copyEntry(path, filepath.Join(dst, relPath), entry)
	})
}

// syncDeletePhase removes dst entries absent from src,
// leaving excluded and protected entries in place.
func syncDeletePhase(src, dst string, excludes, protected []string) error {
	return filepath.WalkDir(dst, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(dst, path)
		if err != nil {
			return err
		}

		if relPath == "." {
			return nil
		}

		if excluded(relPath, excludes) || excluded(relPath, protected) {
			if entry.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if _, err = os.Lstat(filepath.Join(src, relPath)); err == nil {
			return nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}

		if err = os.RemoveAll(path); err != nil {
			return err
		}

		if entry.IsDir() {
			return filepath.SkipDir
		}

		return nil
	})
}

// removeContents deletes every entry inside dir, leaving dir itself in place.
func removeContents(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err = os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}

	return nil
}

// chownTree sets ownership of dir and everything below it.
func chownTree(dir string, uid, gid int) error {
	return filepath.WalkDir(dir, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		return os.Lchown(path, uid, gid)
	})
}
