package database

import (
	"context"
	"fmt"

	"github.com/yourusername/poll-blend/internal/config"
)

// schema is applied statement by statement and is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS observations (
		id                      BIGSERIAL PRIMARY KEY,
		election_id             TEXT             NOT NULL,
		time_to_election        DOUBLE PRECISION NOT NULL CHECK (time_to_election >= 0),
		fundamentals_prediction DOUBLE PRECISION NOT NULL,
		polling_average         DOUBLE PRECISION NOT NULL,
		actual_outcome          DOUBLE PRECISION NOT NULL,
		created_at              TIMESTAMPTZ      NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_observations_election
		ON observations (election_id, time_to_election)`,
	`CREATE TABLE IF NOT EXISTS fit_runs (
		id                     UUID             PRIMARY KEY,
		method                 TEXT             NOT NULL,
		form                   TEXT             NOT NULL,
		fundamentals_intercept DOUBLE PRECISION NOT NULL,
		fundamentals_slope     DOUBLE PRECISION NOT NULL,
		polling_intercept      DOUBLE PRECISION NOT NULL,
		polling_slope          DOUBLE PRECISION NOT NULL,
		log_likelihood         DOUBLE PRECISION NOT NULL,
		observations           INTEGER          NOT NULL,
		elections              INTEGER          NOT NULL,
		diagnostics            JSONB            NOT NULL DEFAULT '{}'::jsonb,
		fitted_at              TIMESTAMPTZ      NOT NULL,
		active                 BOOLEAN          NOT NULL DEFAULT FALSE,
		created_at             TIMESTAMPTZ      NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_fit_runs_single_active
		ON fit_runs (active) WHERE active`,
}

// EnsureSchema creates the tables and indexes that do not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}

// Initialize connects and makes sure the schema is in place.
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
