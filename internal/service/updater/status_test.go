package updater

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestStatus_EmptySystem never errors and renders explicit absence markers.
func TestStatus_EmptySystem(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.sup.active = false

	st := f.o.Status(context.Background())

	require.False(t, st.ServiceActive)
	require.Empty(t, st.Backups)
	require.False(t, st.LogFound)
	require.False(t, st.EnvPresent)
	require.True(t, st.EntryModTime.IsZero())

	out := st.Render()
	require.Contains(t, out, noLogFoundMarker)
	require.Contains(t, out, "Backups:   none")
	require.Contains(t, out, "(missing)")
	require.Contains(t, out, "(inactive)")
}

// TestStatus_Populated reports the live deployment details.
func TestStatus_Populated(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedPartition(map[string]string{
		"app.py": "entry",
	})

	// A fake interpreter the version probe can execute.
	python := filepath.Join(f.cfg.MountPoint, EnvDirName, "bin", "python")
	require.NoError(t, os.MkdirAll(filepath.Dir(python), 0o755))
	require.NoError(t, os.WriteFile(python, []byte("#!/bin/sh\necho Python 3.12.4\n"), 0o755))

	backupPath, err := f.o.Backup(context.Background())
	require.NoError(t, err)

	st := f.o.Status(context.Background())

	require.True(t, st.ServiceActive)
	require.Equal(t, "ro", st.MountMode)
	require.False(t, st.EntryModTime.IsZero())
	require.True(t, st.EnvPresent)
	require.Equal(t, "Python 3.12.4", st.RuntimeVersion)
	require.Equal(t, []string{filepath.Base(backupPath)}, st.Backups)
	require.True(t, st.LogFound)
	require.NotEmpty(t, st.LogLines)

	out := st.Render()
	require.Contains(t, out, "app.service (active)")
	require.Contains(t, out, "Python 3.12.4")
	require.Contains(t, out, filepath.Base(backupPath))
}

// TestStatus_NeedsNoPrivilege works without elevation.
func TestStatus_NeedsNoPrivilege(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.o.euid = func() int { return 1000 }

	st := f.o.Status(context.Background())
	require.NotNil(t, st)
}
