package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool
}

func New(dsn string) (*DB, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Close() {
	d.Pool.Close()
}

// EnsureSchema creates the archive tables if they do not exist. The
// in-memory registries remain the source of truth; the archive is
// write-behind storage for the append-only logs.
func (d *DB) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sla_breach_records (
			id UUID PRIMARY KEY,
			project_id TEXT NOT NULL,
			policy_id UUID NOT NULL,
			task_id TEXT NOT NULL,
			task_title TEXT,
			target_id UUID NOT NULL,
			target_type TEXT NOT NULL,
			elapsed_minutes DOUBLE PRECISION NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_breach_project ON sla_breach_records (project_id, occurred_at)`,
		`CREATE TABLE IF NOT EXISTS notification_delivery_records (
			id UUID PRIMARY KEY,
			event_id UUID NOT NULL,
			project_id TEXT NOT NULL,
			trigger_kind TEXT NOT NULL,
			channels JSONB NOT NULL,
			recipients JSONB NOT NULL,
			summary TEXT NOT NULL,
			delivered_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_project ON notification_delivery_records (project_id, delivered_at)`,
	}
	for _, stmt := range statements {
		if _, err := d.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
