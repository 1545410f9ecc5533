// Package postgres implements the run-yield history store on Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nmoreaux/techwatch/internal/techwatch"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Store writes yield rows into Postgres.
//
// Expected schema:
//
//	CREATE TABLE source_yields (
//	    run_id      TEXT        NOT NULL,
//	    source      TEXT        NOT NULL,
//	    range_start DATE        NOT NULL,
//	    range_end   DATE        NOT NULL,
//	    posts       INT         NOT NULL,
//	    recorded_at TIMESTAMPTZ NOT NULL
//	);
type Store struct {
	pool  dbPool
	table string
}

// New creates a Postgres-backed Store from the config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("history.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "source_yields"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewWithPool(pool dbPool, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "source_yields"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Record inserts one row per yield record.
func (s *Store) Record(ctx context.Context, recs []techwatch.YieldRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("history store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (run_id, source, range_start, range_end, posts, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6)`, s.table)
	for _, rec := range recs {
		if rec.RunID == "" || rec.Source == "" {
			return fmt.Errorf("yield record needs run_id and source")
		}
		if _, err := s.pool.Exec(ctx, query,
			rec.RunID,
			rec.Source,
			rec.RangeStart,
			rec.RangeEnd,
			rec.Posts,
			rec.RecordedAt,
		); err != nil {
			return fmt.Errorf("insert yield for %s: %w", rec.Source, err)
		}
	}
	return nil
}

// RecentYields returns up to limit rows for source, newest first.
func (s *Store) RecentYields(ctx context.Context, source string, limit int) ([]techwatch.YieldRecord, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("history store is not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(`
SELECT run_id, source, range_start, range_end, posts, recorded_at
FROM %s
WHERE source = $1
ORDER BY recorded_at DESC
LIMIT $2`, s.table)
	rows, err := s.pool.Query(ctx, query, source, limit)
	if err != nil {
		return nil, fmt.Errorf("query yields for %s: %w", source, err)
	}
	defer rows.Close()

	var recs []techwatch.YieldRecord
	for rows.Next() {
		var rec techwatch.YieldRecord
		if err := rows.Scan(&rec.RunID, &rec.Source, &rec.RangeStart, &rec.RangeEnd, &rec.Posts, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan yield row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate yield rows: %w", err)
	}
	return recs, nil
}
