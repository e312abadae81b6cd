// Package store persists daily-note captures, character snapshot batches and
// period bookkeeping, partitioned by account name.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/emunchies/Hoyo-Notifications/internal/db"
	"github.com/emunchies/Hoyo-Notifications/internal/models"
)

// ErrNoSnapshot is returned by point lookups when no snapshot satisfies the
// query. Callers treat it as "nothing to diff against", not as a failure.
var ErrNoSnapshot = errors.New("store: no snapshot")

type Store struct {
	q db.Querier
}

func New(q db.Querier) *Store {
	return &Store{q: q}
}

// InsertDailyNote appends one daily-note row. Appends never dedup: a timestamp
// collision persists both rows and reads resolve to the last write.
func (s *Store) InsertDailyNote(ctx context.Context, account string, takenAt time.Time, n models.DailyNoteRecord, resinTimer, realmTimer string) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO daily_notes (
			account_name, taken_at,
			resin_current, resin_max, resin_timer, resin_recovery_raw,
			expeditions_finished, expeditions_total,
			realm_currency, realm_currency_max, realm_timer, realm_recovery_raw,
			commissions_completed, commissions_total, commissions_claimed
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		account, takenAt.UTC(),
		n.ResinCurrent, n.ResinMax, resinTimer, n.ResinRecoveryRaw,
		n.ExpeditionsFinished, n.ExpeditionsTotal,
		n.RealmCurrencyCurrent, n.RealmCurrencyMax, realmTimer, n.RealmRecoveryRaw,
		n.CommissionsCompleted, n.CommissionsTotal, n.CommissionsClaimed,
	)
	if err != nil {
		return fmt.Errorf("insert daily note: %w", err)
	}
	return nil
}

var characterColumns = []string{
	"account_name", "taken_at",
	"character_id", "character_name", "element", "rarity",
	"level", "friendship", "constellation",
	"weapon_id", "weapon_name", "weapon_rarity", "weapon_level", "weapon_type", "weapon_refinement",
}

// InsertCharacterBatch appends one snapshot: every character row shares the
// same taken_at. The batch goes in via COPY as a single atomic unit.
func (s *Store) InsertCharacterBatch(ctx context.Context, account string, takenAt time.Time, rows []models.CharacterSnapshotRow) error {
	if len(rows) == 0 {
		return nil
	}

	values := make([][]any, 0, len(rows))
	for _, r := range rows {
		values = append(values, []any{
			account, takenAt.UTC(),
			r.CharacterID, r.CharacterName, r.Element, r.Rarity,
			r.Level, r.Friendship, r.Constellation,
			r.WeaponID, r.WeaponName, r.WeaponRarity, r.WeaponLevel, r.WeaponType, r.WeaponRefinement,
		})
	}

	_, err := s.q.CopyFrom(ctx,
		pgx.Identifier{"character_snapshots"},
		characterColumns,
		pgx.CopyFromRows(values),
	)
	if err != nil {
		return fmt.Errorf("insert character batch: %w", err)
	}
	return nil
}

// PreviousSnapshotTime returns the latest snapshot time strictly before the
// given instant, or ErrNoSnapshot when no earlier snapshot exists.
func (s *Store) PreviousSnapshotTime(ctx context.Context, account string, before time.Time) (time.Time, error) {
	var t time.Time
	err := s.q.QueryRow(ctx,
		`SELECT taken_at
		 FROM character_snapshots
		 WHERE account_name = $1 AND taken_at < $2
		 ORDER BY taken_at DESC
		 LIMIT 1`,
		account, before.UTC(),
	).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrNoSnapshot
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("previous snapshot time: %w", err)
	}
	return t.UTC(), nil
}

// LatestSnapshotTime returns the newest snapshot time for the account.
func (s *Store) LatestSnapshotTime(ctx context.Context, account string) (time.Time, error) {
	var t time.Time
	err := s.q.QueryRow(ctx,
		`SELECT taken_at
		 FROM character_snapshots
		 WHERE account_name = $1
		 ORDER BY taken_at DESC
		 LIMIT 1`,
		account,
	).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrNoSnapshot
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("latest snapshot time: %w", err)
	}
	return t.UTC(), nil
}

// DistinctTimesInWindow returns the ascending deduplicated snapshot times in
// [start, end], both ends inclusive.
func (s *Store) DistinctTimesInWindow(ctx context.Context, account string, start, end time.Time) ([]time.Time, error) {
	rows, err := s.q.Query(ctx,
		`SELECT DISTINCT taken_at
		 FROM character_snapshots
		 WHERE account_name = $1 AND taken_at >= $2 AND taken_at <= $3
		 ORDER BY taken_at ASC`,
		account, start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("distinct times in window: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("distinct times in window: %w", err)
		}
		times = append(times, t.UTC())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("distinct times in window: %w", err)
	}
	return times, nil
}

// LoadCharacterBatch returns the character records as of one exact snapshot
// time, keyed by character name. Characters absent at that time are absent
// from the map; NULL numeric columns read back as 0 and a NULL weapon name
// as "". A timestamp collision resolves to the most recently written row.
func (s *Store) LoadCharacterBatch(ctx context.Context, account string, takenAt time.Time) (map[string]models.CharacterRecord, error) {
	rows, err := s.q.Query(ctx,
		`SELECT character_name,
		        COALESCE(level, 0),
		        COALESCE(friendship, 0),
		        COALESCE(constellation, 0),
		        COALESCE(weapon_name, ''),
		        COALESCE(weapon_level, 0),
		        COALESCE(weapon_refinement, 0)
		 FROM character_snapshots
		 WHERE account_name = $1 AND taken_at = $2
		 ORDER BY id ASC`,
		account, takenAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("load character batch: %w", err)
	}
	defer rows.Close()

	batch := make(map[string]models.CharacterRecord)
	for rows.Next() {
		var name string
		var rec models.CharacterRecord
		if err := rows.Scan(&name, &rec.Level, &rec.Friendship, &rec.Constellation,
			&rec.WeaponName, &rec.WeaponLevel, &rec.WeaponRefinement); err != nil {
			return nil, fmt.Errorf("load character batch: %w", err)
		}
		batch[name] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load character batch: %w", err)
	}
	return batch, nil
}

// NamesSeenBefore returns the set of character names present in any snapshot
// strictly before the given instant. Period summaries use it to keep
// long-owned characters out of the "new" section.
func (s *Store) NamesSeenBefore(ctx context.Context, account string, before time.Time) (map[string]bool, error) {
	rows, err := s.q.Query(ctx,
		`SELECT DISTINCT character_name
		 FROM character_snapshots
		 WHERE account_name = $1 AND taken_at < $2`,
		account, before.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("names seen before: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("names seen before: %w", err)
		}
		seen[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("names seen before: %w", err)
	}
	return seen, nil
}

// LastPeriodRun returns the bookkeeping timestamp for (account, label).
// found is false in the NeverRun state.
func (s *Store) LastPeriodRun(ctx context.Context, account, label string) (lastRun time.Time, found bool, err error) {
	err = s.q.QueryRow(ctx,
		`SELECT last_run FROM period_runs
		 WHERE account_name = $1 AND period_label = $2`,
		account, label,
	).Scan(&lastRun)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last period run: %w", err)
	}
	return lastRun.UTC(), true, nil
}

// RecordPeriodRun upserts the bookkeeping row; last_run only moves forward.
func (s *Store) RecordPeriodRun(ctx context.Context, account, label string, runAt time.Time) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO period_runs (account_name, period_label, last_run)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (account_name, period_label)
		 DO UPDATE SET last_run = EXCLUDED.last_run
		 WHERE period_runs.last_run < EXCLUDED.last_run`,
		account, label, runAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record period run: %w", err)
	}
	return nil
}
