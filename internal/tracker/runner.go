// Package tracker drives the poll cycle: fetch, persist, diff, notify,
// evaluate periods, for every configured account.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/emunchies/Hoyo-Notifications/internal/archive"
	"github.com/emunchies/Hoyo-Notifications/internal/diff"
	"github.com/emunchies/Hoyo-Notifications/internal/models"
	"github.com/emunchies/Hoyo-Notifications/internal/period"
	"github.com/emunchies/Hoyo-Notifications/internal/report"
	"github.com/emunchies/Hoyo-Notifications/internal/store"
)

// Fetcher is the battle-chronicle client surface the runner needs.
type Fetcher interface {
	FetchDailyNotes(ctx context.Context, acct models.Account) (*models.DailyNoteRecord, error)
	FetchCharacters(ctx context.Context, acct models.Account) ([]models.CharacterSnapshotRow, error)
}

// Sink delivers one rendered message. Delivery failures are the sink's
// problem; the runner only logs the returned flag.
type Sink interface {
	Send(ctx context.Context, text string) bool
}

// Store is the persistence surface the runner needs. Embeds the trigger's
// slice so one concrete store serves both.
type Store interface {
	period.Store
	InsertDailyNote(ctx context.Context, account string, takenAt time.Time, n models.DailyNoteRecord, resinTimer, realmTimer string) error
	InsertCharacterBatch(ctx context.Context, account string, takenAt time.Time, rows []models.CharacterSnapshotRow) error
	PreviousSnapshotTime(ctx context.Context, account string, before time.Time) (time.Time, error)
}

type Runner struct {
	log      *slog.Logger
	store    Store
	fetcher  Fetcher
	sink     Sink
	archive  archive.Archiver
	trigger  *period.Trigger
	accounts []models.Account
	periods  []models.Period
	interval time.Duration

	now func() time.Time
}

func New(log *slog.Logger, st Store, fetcher Fetcher, sink Sink, arch archive.Archiver,
	accounts []models.Account, periods []models.Period, interval time.Duration) *Runner {
	if arch == nil {
		arch = archive.Noop{}
	}
	return &Runner{
		log:      log,
		store:    st,
		fetcher:  fetcher,
		sink:     sink,
		archive:  arch,
		trigger:  period.New(st, log),
		accounts: accounts,
		periods:  periods,
		interval: interval,
		now:      time.Now,
	}
}

// Start runs poll cycles until ctx is cancelled. One cycle processes all
// accounts concurrently, each account sequentially inside its worker.
func (r *Runner) Start(ctx context.Context) {
	r.log.Info("tracker_started",
		"accounts", len(r.accounts),
		"periods", len(r.periods),
		"interval_seconds", int(r.interval.Seconds()),
	)
	for {
		r.RunOnce(ctx)

		select {
		case <-ctx.Done():
			r.log.Info("tracker_stopped")
			return
		case <-time.After(r.interval):
		}
	}
}

// RunOnce executes a single poll cycle for every account and waits for all
// of them to finish.
func (r *Runner) RunOnce(ctx context.Context) {
	var wg sync.WaitGroup
	for _, acct := range r.accounts {
		wg.Add(1)
		go func(acct models.Account) {
			defer wg.Done()
			if err := r.runAccount(ctx, acct); err != nil {
				r.log.Error("account_cycle_failed", "account", acct.Name, "error", err)
			}
		}(acct)
	}
	wg.Wait()
}

// runAccount is one full cycle for one account. Fetch failures degrade to
// skipping the dependent steps; storage failures abort the rest of this
// account's cycle.
func (r *Runner) runAccount(ctx context.Context, acct models.Account) error {
	now := r.now().UTC().Truncate(time.Second)

	if err := r.handleDailyNotes(ctx, acct, now); err != nil {
		return err
	}
	if err := r.handleCharacters(ctx, acct, now); err != nil {
		return err
	}
	r.handlePeriods(ctx, acct, now)
	return nil
}

func (r *Runner) handleDailyNotes(ctx context.Context, acct models.Account, now time.Time) error {
	note, err := r.fetcher.FetchDailyNotes(ctx, acct)
	if err != nil {
		r.log.Warn("daily_notes_fetch_failed", "account", acct.Name, "error", err)
		return nil
	}

	resinTimer, realmTimer := report.Timers(*note, now)
	if err := r.store.InsertDailyNote(ctx, acct.Name, now, *note, resinTimer, realmTimer); err != nil {
		return fmt.Errorf("persist daily note: %w", err)
	}

	text := report.DailyNotes(acct, *note, now)
	if !r.sink.Send(ctx, text) {
		r.log.Warn("daily_notes_delivery_failed", "account", acct.Name)
	}
	if err := r.archive.PutReport(ctx, acct.Name, "notes", now, text); err != nil {
		r.log.Warn("report_archive_failed", "account", acct.Name, "kind", "notes", "error", err)
	}
	return nil
}

func (r *Runner) handleCharacters(ctx context.Context, acct models.Account, now time.Time) error {
	rows, err := r.fetcher.FetchCharacters(ctx, acct)
	if err != nil {
		r.log.Warn("characters_fetch_failed", "account", acct.Name, "error", err)
		return nil
	}
	if len(rows) == 0 {
		r.log.Warn("characters_empty", "account", acct.Name)
		return nil
	}

	if err := r.store.InsertCharacterBatch(ctx, acct.Name, now, rows); err != nil {
		return fmt.Errorf("persist character batch: %w", err)
	}

	prev, err := r.store.PreviousSnapshotTime(ctx, acct.Name, now)
	if errors.Is(err, store.ErrNoSnapshot) {
		r.log.Info("first_snapshot_recorded", "account", acct.Name, "characters", len(rows))
		return nil
	}
	if err != nil {
		return fmt.Errorf("find previous snapshot: %w", err)
	}

	prevBatch, err := r.store.LoadCharacterBatch(ctx, acct.Name, prev)
	if err != nil {
		return fmt.Errorf("load previous batch: %w", err)
	}

	currBatch := make(map[string]models.CharacterRecord, len(rows))
	for _, row := range rows {
		currBatch[row.CharacterName] = row.Record()
	}

	changes := diff.Compare(prevBatch, currBatch)
	if changes.Empty() {
		r.log.Debug("no_character_changes", "account", acct.Name)
		return nil
	}

	text := report.Render(report.DiffHeader(acct, prev, now), changes)
	if !r.sink.Send(ctx, text) {
		r.log.Warn("diff_delivery_failed", "account", acct.Name)
	}
	if err := r.archive.PutReport(ctx, acct.Name, "diff", now, text); err != nil {
		r.log.Warn("report_archive_failed", "account", acct.Name, "kind", "diff", "error", err)
	}
	return nil
}

// handlePeriods evaluates every configured period. A failing period never
// blocks the others.
func (r *Runner) handlePeriods(ctx context.Context, acct models.Account, now time.Time) {
	for _, p := range r.periods {
		res, err := r.trigger.Evaluate(ctx, acct.Name, p, now)
		if err != nil {
			r.log.Error("period_evaluation_failed", "account", acct.Name, "period", p.Label, "error", err)
			continue
		}
		if !res.HasReport {
			continue
		}

		text := report.Render(report.PeriodHeader(acct, p.Label, res.WindowStart, res.WindowEnd), res.Changes)
		if !r.sink.Send(ctx, text) {
			r.log.Warn("period_delivery_failed", "account", acct.Name, "period", p.Label)
		}
		kind := fmt.Sprintf("period-%d", p.DaysBack)
		if err := r.archive.PutReport(ctx, acct.Name, kind, now, text); err != nil {
			r.log.Warn("report_archive_failed", "account", acct.Name, "kind", kind, "error", err)
		}
	}
}
