package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"linkloom/internal/logging"
)

// History is the run log behind search, quota and the history API.
type History interface {
	PutRun(ctx context.Context, r Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	GetRun(ctx context.Context, id string) (Run, error)
	CountRunsWithin(ctx context.Context, start, end time.Time) (int, error)
	Close() error
}

var (
	_ History = (*DB)(nil)
	_ History = (*PG)(nil)
)

// OpenHistory picks Postgres when a URL is given, else SQLite at dbPath.
// Both empty means no history (nil, nil).
func OpenHistory(ctx context.Context, postgresURL, dbPath string) (History, error) {
	switch {
	case postgresURL != "":
		p, err := OpenPostgres(ctx, postgresURL)
		if err != nil {
			return nil, err
		}
		return p, nil
	case dbPath != "":
		d, err := Open(dbPath)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, nil
}

// PG keeps run history in Postgres for deployments with several API
// replicas sharing one log.
type PG struct{ pool *pgxpool.Pool }

// OpenPostgres connects, pings and migrates.
func OpenPostgres(ctx context.Context, databaseURL string) (*PG, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	cfg.MaxConns = 5
	cfg.MinConns = 1
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	p := &PG{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logging.Info("history_postgres_connected", map[string]any{"host": cfg.ConnConfig.Host})
	return p, nil
}

func (p *PG) Close() error {
	p.pool.Close()
	return nil
}

func (p *PG) migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS linkloom_runs (
	  id TEXT PRIMARY KEY,
	  topic TEXT NOT NULL,
	  seeds TEXT[] NOT NULL,
	  keywords TEXT[] NOT NULL,
	  total INTEGER NOT NULL,
	  returned INTEGER NOT NULL,
	  fallback BOOLEAN NOT NULL,
	  duration_ms BIGINT NOT NULL,
	  error TEXT NOT NULL DEFAULT '',
	  created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_linkloom_runs_created ON linkloom_runs(created_at);
	`)
	return err
}

func (p *PG) PutRun(ctx context.Context, r Run) error {
	if r.ID == "" {
		return errors.New("run id is required")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := p.pool.Exec(ctx, `
	INSERT INTO linkloom_runs(id, topic, seeds, keywords, total, returned, fallback, duration_ms, error, created_at)
	VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	ON CONFLICT (id) DO UPDATE SET
	  topic=EXCLUDED.topic, seeds=EXCLUDED.seeds, keywords=EXCLUDED.keywords, total=EXCLUDED.total,
	  returned=EXCLUDED.returned, fallback=EXCLUDED.fallback, duration_ms=EXCLUDED.duration_ms,
	  error=EXCLUDED.error, created_at=EXCLUDED.created_at`,
		r.ID, r.Topic, nonNil(r.Seeds), nonNil(r.Keywords), r.Total, r.Returned, r.Fallback,
		r.Duration.Milliseconds(), r.Error, r.CreatedAt)
	return err
}

const pgRunColumns = `id, topic, seeds, keywords, total, returned, fallback, duration_ms, error, created_at`

func (p *PG) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.pool.Query(ctx, `SELECT `+pgRunColumns+` FROM linkloom_runs ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Run{}
	for rows.Next() {
		r, err := scanPGRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PG) GetRun(ctx context.Context, id string) (Run, error) {
	r, err := scanPGRun(p.pool.QueryRow(ctx, `SELECT `+pgRunColumns+` FROM linkloom_runs WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

func (p *PG) CountRunsWithin(ctx context.Context, start, end time.Time) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM linkloom_runs WHERE created_at>=$1 AND created_at<$2`, start, end).Scan(&n)
	return n, err
}

func scanPGRun(row pgx.Row) (Run, error) {
	var (
		r     Run
		durMs int64
	)
	if err := row.Scan(&r.ID, &r.Topic, &r.Seeds, &r.Keywords, &r.Total, &r.Returned, &r.Fallback, &durMs, &r.Error, &r.CreatedAt); err != nil {
		return Run{}, err
	}
	r.Duration = time.Duration(durMs) * time.Millisecond
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}
