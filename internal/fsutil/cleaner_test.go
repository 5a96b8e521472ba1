// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	if age > 0 {
		old := time.Now().Add(-age)
		require.NoError(t, os.Chtimes(path, old, old))
	}
}

func TestCleanup_RemovesFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "rec-1.mp4")
	touch(t, path, 0)

	c := NewCleaner(root)
	c.Cleanup(context.Background(), path, "test")
	assert.NoFileExists(t, path)

	// Idempotent.
	c.Cleanup(context.Background(), path, "test")
	c.Cleanup(context.Background(), "", "test")
}

func TestCleanup_RefusesOutsideRoot(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(t.TempDir(), "keep.mp4")
	touch(t, outside, 0)

	c := NewCleaner(root)
	c.Cleanup(context.Background(), outside, "test")
	assert.FileExists(t, outside)

	c.Cleanup(context.Background(), filepath.Join(root, "..", filepath.Base(filepath.Dir(outside)), "keep.mp4"), "test")
	assert.FileExists(t, outside)

	c.Cleanup(context.Background(), root, "test")
	assert.DirExists(t, root)
}

func TestCleanup_RefusesSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(t.TempDir(), "secret")
	touch(t, target, 0)
	link := filepath.Join(root, "rec-link.mp4")
	require.NoError(t, os.Symlink(target, link))

	NewCleaner(root).Cleanup(context.Background(), link, "test")
	assert.FileExists(t, target)
}

func TestSweep(t *testing.T) {
	root := t.TempDir()
	stale := filepath.Join(root, "rec-old.mp4")
	staleCompressed := filepath.Join(root, "rec-old.compressed.mp4")
	fresh := filepath.Join(root, "rec-new.mp4")
	other := filepath.Join(root, "notes.txt")
	touch(t, stale, 2*time.Hour)
	touch(t, staleCompressed, 2*time.Hour)
	touch(t, fresh, 0)
	touch(t, other, 2*time.Hour)
	require.NoError(t, os.Mkdir(filepath.Join(root, "rec-dir"), 0o700))

	n, err := NewCleaner(root).Sweep(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoFileExists(t, stale)
	assert.NoFileExists(t, staleCompressed)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)
	assert.DirExists(t, filepath.Join(root, "rec-dir"))
}

func TestSweep_MissingRoot(t *testing.T) {
	n, err := NewCleaner(filepath.Join(t.TempDir(), "nope")).Sweep(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConfineName(t *testing.T) {
	root := t.TempDir()
	p, err := ConfineName(root, "rec-1.mp4")
	require.NoError(t, err)
	assert.Equal(t, "rec-1.mp4", filepath.Base(p))

	for _, bad := range []string{"", ".", "..", "../x", "a/b"} {
		_, err := ConfineName(root, bad)
		assert.ErrorIs(t, err, ErrOutsideRoot, bad)
	}
}

func TestConfineAbsPath_Relative(t *testing.T) {
	_, err := ConfineAbsPath(t.TempDir(), "rel/path")
	assert.ErrorIs(t, err, ErrOutsideRoot)
}
