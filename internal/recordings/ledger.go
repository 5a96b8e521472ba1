// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package recordings keeps an audit ledger of recording jobs. It stores
// metadata only, never media.
package recordings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/camgate/internal/persistence/sqlite"
	"github.com/ManuGH/camgate/internal/recorder"
)

// ErrNotFound is returned for unknown job IDs.
var ErrNotFound = errors.New("recording not found")

// Entry is one ledger row.
type Entry struct {
	ID               string         `json:"id"`
	Source           string         `json:"source"`
	RequestedSeconds int            `json:"requested_seconds"`
	EffectiveSeconds int            `json:"effective_seconds"`
	State            recorder.State `json:"state"`
	Percent          int            `json:"percent"`
	Size             int64          `json:"size_bytes"`
	Error            string         `json:"error,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Ledger persists job status transitions in SQLite.
type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return l, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS recordings (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		requested_seconds INTEGER NOT NULL,
		effective_seconds INTEGER NOT NULL,
		state TEXT NOT NULL CHECK(state IN ('pending', 'recording', 'encoded', 'compressing', 'done', 'failed')),
		percent INTEGER NOT NULL DEFAULT 0,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_recordings_state ON recordings(state);
	CREATE INDEX IF NOT EXISTS idx_recordings_created ON recordings(created_at);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Upsert stores the latest status of a job.
func (l *Ledger) Upsert(ctx context.Context, s recorder.Status) error {
	query := `
	INSERT INTO recordings (id, source, requested_seconds, effective_seconds, state, percent, size_bytes, error, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		state = excluded.state,
		percent = excluded.percent,
		size_bytes = excluded.size_bytes,
		error = excluded.error,
		updated_at = excluded.updated_at
	`
	_, err := l.db.ExecContext(ctx, query,
		s.ID, s.Source, s.RequestedSeconds, s.EffectiveSeconds, string(s.State),
		s.Percent, s.Size, s.Error,
		formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert recording %s: %w", s.ID, err)
	}
	return nil
}

// Get returns one entry or ErrNotFound.
func (l *Ledger) Get(ctx context.Context, id string) (Entry, error) {
	row := l.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// List returns the newest entries first.
func (l *Ledger) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkInterrupted fails every non-terminal job. It runs at startup, when no
// job from a previous process can still be alive.
func (l *Ledger) MarkInterrupted(ctx context.Context) (int64, error) {
	res, err := l.db.ExecContext(ctx, `
	UPDATE recordings SET state = 'failed', error = 'interrupted by restart', updated_at = ?
	WHERE state NOT IN ('done', 'failed')`, formatTime(time.Now()))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Prune deletes terminal entries last updated before cutoff.
func (l *Ledger) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `
	DELETE FROM recordings WHERE state IN ('done', 'failed') AND updated_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const selectColumns = `
	SELECT id, source, requested_seconds, effective_seconds, state, percent, size_bytes, error, created_at, updated_at
	FROM recordings`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e                Entry
		state            string
		created, updated string
	)
	if err := s.Scan(&e.ID, &e.Source, &e.RequestedSeconds, &e.EffectiveSeconds, &state,
		&e.Percent, &e.Size, &e.Error, &created, &updated); err != nil {
		return Entry{}, err
	}
	e.State = recorder.State(state)
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return e, nil
}

// Fixed-width so lexical order in SQL matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
