package storage

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS requests (
		id             UUID PRIMARY KEY,
		model          TEXT NOT NULL,
		task_type      TEXT NOT NULL,
		prompt         TEXT NOT NULL,
		system_prompt  TEXT NOT NULL DEFAULT '',
		response       TEXT,
		status         TEXT NOT NULL DEFAULT 'pending'
		               CHECK (status IN ('pending','processing','completed','failed','timed_out')),
		input_tokens   INTEGER NOT NULL DEFAULT 0 CHECK (input_tokens >= 0),
		output_tokens  INTEGER NOT NULL DEFAULT 0 CHECK (output_tokens >= 0),
		cost_cents     BIGINT NOT NULL DEFAULT 0 CHECK (cost_cents >= 0),
		latency_ms     BIGINT CHECK (latency_ms >= 0),
		cached         BOOLEAN NOT NULL DEFAULT FALSE,
		cache_key      TEXT,
		error_message  TEXT,
		metadata       JSONB,
		user_id        TEXT,
		attempts       INTEGER NOT NULL DEFAULT 0,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		started_at     TIMESTAMPTZ,
		completed_at   TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_created_at ON requests (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_user_created ON requests (user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_model_created ON requests (model, created_at)`,
	`CREATE TABLE IF NOT EXISTS routing_overrides (
		id                    BIGSERIAL PRIMARY KEY,
		task_type             TEXT NOT NULL,
		priority              INTEGER NOT NULL DEFAULT 0,
		primary_model         TEXT NOT NULL,
		fallback_model        TEXT,
		rate_limit_per_minute INTEGER,
		params                JSONB,
		enabled               BOOLEAN NOT NULL DEFAULT TRUE,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (task_type, priority)
	)`,
	`CREATE TABLE IF NOT EXISTS model_params (
		model      TEXT PRIMARY KEY,
		params     JSONB NOT NULL DEFAULT '{}',
		enabled    BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the tables used by the orchestrator if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
