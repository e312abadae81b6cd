package db

import "context"

// Schema for the two time-series tables and the period bookkeeping table.
// Every write path assumes these exist; EnsureSchema runs once at startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS daily_notes (
		id                    BIGSERIAL PRIMARY KEY,
		account_name          TEXT NOT NULL,
		taken_at              TIMESTAMPTZ NOT NULL,
		resin_current         INT,
		resin_max             INT,
		resin_timer           TEXT,
		resin_recovery_raw    TEXT,
		expeditions_finished  INT,
		expeditions_total     INT,
		realm_currency        INT,
		realm_currency_max    INT,
		realm_timer           TEXT,
		realm_recovery_raw    TEXT,
		commissions_completed INT,
		commissions_total     INT,
		commissions_claimed   BOOLEAN
	)`,
	`CREATE INDEX IF NOT EXISTS idx_daily_notes_account_time
		ON daily_notes (account_name, taken_at)`,
	`CREATE TABLE IF NOT EXISTS character_snapshots (
		id                BIGSERIAL PRIMARY KEY,
		account_name      TEXT NOT NULL,
		taken_at          TIMESTAMPTZ NOT NULL,
		character_id      BIGINT,
		character_name    TEXT NOT NULL,
		element           TEXT,
		rarity            INT,
		level             INT,
		friendship        INT,
		constellation     INT,
		weapon_id         BIGINT,
		weapon_name       TEXT,
		weapon_rarity     INT,
		weapon_level      INT,
		weapon_type       INT,
		weapon_refinement INT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_character_snapshots_account_time
		ON character_snapshots (account_name, taken_at)`,
	`CREATE TABLE IF NOT EXISTS period_runs (
		account_name TEXT NOT NULL,
		period_label TEXT NOT NULL,
		last_run     TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (account_name, period_label)
	)`,
}

// EnsureSchema creates the tables and indexes if they are missing.
func EnsureSchema(ctx context.Context, q Querier) error {
	for _, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
