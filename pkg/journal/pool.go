// Package journal records bridge traffic in Postgres via pgx.
package journal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const logPrefix = "journal:pool"

// schemaSQL creates the traffic table. It is idempotent.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS bridge_traffic (
	id          UUID PRIMARY KEY,
	direction   TEXT NOT NULL,
	topic       TEXT NOT NULL,
	envelope    TEXT NOT NULL DEFAULT '',
	error_code  INTEGER NOT NULL DEFAULT 0,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS bridge_traffic_topic_recorded_idx ON bridge_traffic (topic, recorded_at DESC);
CREATE INDEX IF NOT EXISTS bridge_traffic_recorded_idx ON bridge_traffic (recorded_at DESC);
`

// NewPool creates a new pgx connection pool from the given database URL.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	slog.Info(fmt.Sprintf("%s - Connecting to database", logPrefix))

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse database URL: %w", logPrefix, err)
	}

	// The journal writes one row per envelope; a small pool is enough.
	config.MaxConns = 8
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create pool: %w", logPrefix, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to ping database: %w", logPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Database connection established", logPrefix))
	return pool, nil
}

// EnsureSchema creates the journal table and indexes when missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info(fmt.Sprintf("%s - Ensuring journal schema", logPrefix))
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("%s - schema migration failed: %w", logPrefix, err)
	}
	return nil
}

// SchemaApplied reports whether the journal table exists.
func SchemaApplied(ctx context.Context, pool *pgxpool.Pool) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'bridge_traffic')`).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s - failed to check schema: %w", logPrefix, err)
	}
	return exists, nil
}
