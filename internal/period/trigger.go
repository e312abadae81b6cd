// Package period decides when labeled recurring summary windows are due and
// assembles the change set for a due window.
package period

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emunchies/Hoyo-Notifications/internal/diff"
	"github.com/emunchies/Hoyo-Notifications/internal/models"
)

// Store is the slice of the snapshot store the trigger needs.
type Store interface {
	LastPeriodRun(ctx context.Context, account, label string) (time.Time, bool, error)
	RecordPeriodRun(ctx context.Context, account, label string, runAt time.Time) error
	DistinctTimesInWindow(ctx context.Context, account string, start, end time.Time) ([]time.Time, error)
	LoadCharacterBatch(ctx context.Context, account string, takenAt time.Time) (map[string]models.CharacterRecord, error)
	NamesSeenBefore(ctx context.Context, account string, before time.Time) (map[string]bool, error)
}

// Result of one trigger evaluation. HasReport implies Due; WindowStart and
// WindowEnd are the actual snapshot endpoints, not the nominal window edges.
type Result struct {
	Due         bool
	HasReport   bool
	Changes     diff.ChangeSet
	WindowStart time.Time
	WindowEnd   time.Time
}

type Trigger struct {
	store Store
	log   *slog.Logger
}

func New(store Store, log *slog.Logger) *Trigger {
	return &Trigger{store: store, log: log}
}

// Evaluate runs the due check for one (account, period) pair.
//
// A period with no bookkeeping row is always due. Otherwise it is due once
// elapsed days reach days_back minus one; the day of slack absorbs polling
// jitter, so a "weekly" summary fired after 6.9 days does not slip a whole
// extra cycle. Changing this threshold changes when reports fire.
//
// Whenever the period is due, bookkeeping advances to now even if the window
// held too little data or the diff came out empty. A due evaluation that
// left last_run untouched would re-trigger on every cycle forever.
func (t *Trigger) Evaluate(ctx context.Context, account string, p models.Period, now time.Time) (Result, error) {
	now = now.UTC()

	lastRun, found, err := t.store.LastPeriodRun(ctx, account, p.Label)
	if err != nil {
		return Result{}, err
	}
	if found {
		elapsedDays := now.Sub(lastRun).Hours() / 24
		if elapsedDays < float64(p.DaysBack-1) {
			return Result{}, nil
		}
	}

	windowStart := now.AddDate(0, 0, -p.DaysBack)
	times, err := t.store.DistinctTimesInWindow(ctx, account, windowStart, now)
	if err != nil {
		return Result{}, err
	}

	if len(times) < 2 {
		t.log.Info("period_window_insufficient",
			"account", account,
			"period", p.Label,
			"snapshots", len(times),
		)
		if err := t.store.RecordPeriodRun(ctx, account, p.Label, now); err != nil {
			return Result{}, err
		}
		return Result{Due: true}, nil
	}

	refTime := times[0]
	targetTime := times[len(times)-1]

	refBatch, err := t.store.LoadCharacterBatch(ctx, account, refTime)
	if err != nil {
		return Result{}, err
	}
	targetBatch, err := t.store.LoadCharacterBatch(ctx, account, targetTime)
	if err != nil {
		return Result{}, err
	}
	seenBefore, err := t.store.NamesSeenBefore(ctx, account, refTime)
	if err != nil {
		return Result{}, err
	}

	changes := diff.CompareWindow(refBatch, targetBatch, seenBefore)

	if err := t.store.RecordPeriodRun(ctx, account, p.Label, now); err != nil {
		return Result{}, fmt.Errorf("advance bookkeeping: %w", err)
	}

	return Result{
		Due:         true,
		HasReport:   !changes.Empty(),
		Changes:     changes,
		WindowStart: refTime,
		WindowEnd:   targetTime,
	}, nil
}
