// Package store keeps search run history in SQLite or Postgres. Only run
// metadata is stored; candidate profiles never leave the request that
// produced them.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// DB wraps the history database.
type DB struct{ sql *sql.DB }

// Run is one recorded search.
type Run struct {
	ID        string        `json:"id"`
	Topic     string        `json:"topic"`
	Seeds     []string      `json:"seeds"`
	Keywords  []string      `json:"keywords"`
	Total     int           `json:"totalCandidates"`
	Returned  int           `json:"returned"`
	Fallback  bool          `json:"fallback"`
	Duration  time.Duration `json:"durationMs"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// MarshalJSON reports Duration in milliseconds.
func (r Run) MarshalJSON() ([]byte, error) {
	type plain Run
	return json.Marshal(struct {
		plain
		Duration int64 `json:"durationMs"`
	}{plain(r), r.Duration.Milliseconds()})
}

// Open opens or creates the database at path and migrates it.
func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection keeps ":memory:" databases coherent and serializes writers
	d.SetMaxOpenConns(1)
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = d.Close()
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS runs (
	  id TEXT PRIMARY KEY,
	  topic TEXT NOT NULL,
	  seeds TEXT NOT NULL,
	  keywords TEXT NOT NULL,
	  total INTEGER NOT NULL,
	  returned INTEGER NOT NULL,
	  fallback INTEGER NOT NULL,
	  duration_ms INTEGER NOT NULL,
	  error TEXT,
	  created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`)
	return err
}

// PutRun inserts or replaces a run.
func (d *DB) PutRun(ctx context.Context, r Run) error {
	if r.ID == "" {
		return errors.New("run id is required")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	seeds, _ := json.Marshal(nonNil(r.Seeds))
	kws, _ := json.Marshal(nonNil(r.Keywords))
	_, err := d.sql.ExecContext(ctx, `INSERT OR REPLACE INTO runs(id, topic, seeds, keywords, total, returned, fallback, duration_ms, error, created_at)
	VALUES(?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.Topic, string(seeds), string(kws), r.Total, r.Returned, r.Fallback, r.Duration.Milliseconds(), r.Error, r.CreatedAt.UnixMilli())
	return err
}

const runColumns = `id, topic, seeds, keywords, total, returned, fallback, duration_ms, COALESCE(error, ''), created_at`

// ListRuns returns up to limit runs, newest first.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.sql.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun loads one run by id.
func (d *DB) GetRun(ctx context.Context, id string) (Run, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

// CountRunsWithin counts runs created in [start, end).
func (d *DB) CountRunsWithin(ctx context.Context, start, end time.Time) (int, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE created_at>=? AND created_at<?`, start.UnixMilli(), end.UnixMilli())
	var n int
	err := row.Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r              Run
		seeds, kws     string
		durMs, created int64
	)
	if err := s.Scan(&r.ID, &r.Topic, &seeds, &kws, &r.Total, &r.Returned, &r.Fallback, &durMs, &r.Error, &created); err != nil {
		return Run{}, err
	}
	if err := json.Unmarshal([]byte(seeds), &r.Seeds); err != nil {
		return Run{}, err
	}
	if err := json.Unmarshal([]byte(kws), &r.Keywords); err != nil {
		return Run{}, err
	}
	r.Duration = time.Duration(durMs) * time.Millisecond
	r.CreatedAt = time.UnixMilli(created).UTC()
	return r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
