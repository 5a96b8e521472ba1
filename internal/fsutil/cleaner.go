// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsutil confines and removes transient media files.
package fsutil

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/camgate/internal/log"
	"github.com/ManuGH/camgate/internal/metrics"
)

// ErrFileSystem marks removal failures. Cleaner logs them and never returns them
// from Cleanup.
var ErrFileSystem = errors.New("filesystem operation failed")

// RecordingPrefix is the file name prefix of every recording artifact.
const RecordingPrefix = "rec-"

// Cleaner removes files under a single root directory.
type Cleaner struct {
	root   string
	logger zerolog.Logger
	now    func() time.Time
}

// NewCleaner creates a Cleaner for root.
func NewCleaner(root string) *Cleaner {
	return &Cleaner{
		root:   root,
		logger: xglog.WithComponent("cleaner"),
		now:    time.Now,
	}
}

// Root returns the directory the cleaner is confined to.
func (c *Cleaner) Root() string { return c.root }

// Cleanup removes path. It is idempotent: a missing file counts as success.
// Paths outside the root are refused and left in place.
func (c *Cleaner) Cleanup(ctx context.Context, path, reason string) {
	if path == "" {
		return
	}
	logger := xglog.WithContext(ctx, c.logger).With().
		Str(xglog.FieldPath, path).
		Str(xglog.FieldReason, reason).
		Logger()

	resolved, err := ConfineAbsPath(c.root, path)
	if err != nil {
		metrics.IncCleanup("refused")
		logger.Warn().Err(err).Str(xglog.FieldEvent, "cleanup.refused").Msg("refusing to remove file outside recordings dir")
		return
	}

	err = os.Remove(resolved)
	switch {
	case err == nil:
		metrics.IncCleanup("removed")
		logger.Debug().Str(xglog.FieldEvent, "cleanup.removed").Msg("removed file")
	case errors.Is(err, fs.ErrNotExist):
		metrics.IncCleanup("missing")
	default:
		metrics.IncCleanup("error")
		logger.Error().Err(fmt.Errorf("%w: %w", ErrFileSystem, err)).
			Str(xglog.FieldEvent, "cleanup.failed").
			Msg("failed to remove file")
	}
}

// Sweep removes regular rec-* files in the root older than olderThan and
// returns how many were removed. It never descends into subdirectories.
func (c *Cleaner) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: read %s: %w", ErrFileSystem, c.root, err)
	}

	cutoff := c.now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !e.Type().IsRegular() || !strings.HasPrefix(e.Name(), RecordingPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(c.root, e.Name())
		c.Cleanup(ctx, path, "sweep")
		if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
			removed++
		}
	}
	if removed > 0 {
		c.logger.Info().Int("removed", removed).Str(xglog.FieldEvent, "cleanup.sweep").Msg("removed stale recordings")
	}
	return removed, nil
}
