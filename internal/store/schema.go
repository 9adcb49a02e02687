package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the tables used by PostgresStore. Snapshots are JSONB;
// the columns queried or reported on directly are broken out beside them.
const Schema = `
CREATE TABLE IF NOT EXISTS world (
    id         SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
    turn       INTEGER NOT NULL,
    phase      TEXT NOT NULL,
    seed       NUMERIC(20, 0) NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS companies (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    capital      NUMERIC NOT NULL,
    bankrupt     BOOLEAN NOT NULL DEFAULT FALSE,
    updated_turn INTEGER NOT NULL,
    state        JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
    company_id   TEXT NOT NULL REFERENCES companies (id),
    turn         INTEGER NOT NULL,
    submitted_at TIMESTAMPTZ NOT NULL,
    body         JSONB NOT NULL,
    PRIMARY KEY (company_id, turn)
);

CREATE TABLE IF NOT EXISTS turns (
    turn         INTEGER PRIMARY KEY,
    phase        TEXT NOT NULL,
    finalized_at TIMESTAMPTZ NOT NULL,
    markets      JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS turn_results (
    turn           INTEGER NOT NULL REFERENCES turns (turn),
    company_id     TEXT NOT NULL,
    ending_capital NUMERIC NOT NULL,
    bankrupt       BOOLEAN NOT NULL,
    result         JSONB NOT NULL,
    PRIMARY KEY (turn, company_id)
);

CREATE TABLE IF NOT EXISTS turn_events (
    id         UUID PRIMARY KEY,
    turn       INTEGER NOT NULL REFERENCES turns (turn),
    company_id TEXT,
    type       TEXT NOT NULL,
    payload    JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turn_results_company ON turn_results (company_id, turn);
CREATE INDEX IF NOT EXISTS idx_turn_events_turn ON turn_events (turn);
`

// EnsureSchema creates any missing tables.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}
