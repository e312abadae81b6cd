package tracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emunchies/Hoyo-Notifications/internal/models"
	"github.com/emunchies/Hoyo-Notifications/internal/store"
)

var cycleNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type snap struct {
	at    time.Time
	batch map[string]models.CharacterRecord
}

type fakeStore struct {
	mu         sync.Mutex
	noteRows   int
	snapshots  []snap
	periodRuns map[string]time.Time

	failBatchInsert bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{periodRuns: make(map[string]time.Time)}
}

func (f *fakeStore) InsertDailyNote(_ context.Context, _ string, _ time.Time, _ models.DailyNoteRecord, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noteRows++
	return nil
}

func (f *fakeStore) InsertCharacterBatch(_ context.Context, _ string, takenAt time.Time, rows []models.CharacterSnapshotRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBatchInsert {
		return errors.New("copy failed")
	}
	batch := make(map[string]models.CharacterRecord, len(rows))
	for _, r := range rows {
		batch[r.CharacterName] = r.Record()
	}
	f.snapshots = append(f.snapshots, snap{at: takenAt, batch: batch})
	return nil
}

func (f *fakeStore) PreviousSnapshotTime(_ context.Context, _ string, before time.Time) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best time.Time
	for _, s := range f.snapshots {
		if s.at.Before(before) && s.at.After(best) {
			best = s.at
		}
	}
	if best.IsZero() {
		return time.Time{}, store.ErrNoSnapshot
	}
	return best, nil
}

func (f *fakeStore) LoadCharacterBatch(_ context.Context, _ string, takenAt time.Time) (map[string]models.CharacterRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.snapshots {
		if s.at.Equal(takenAt) {
			return s.batch, nil
		}
	}
	return map[string]models.CharacterRecord{}, nil
}

func (f *fakeStore) DistinctTimesInWindow(_ context.Context, _ string, start, end time.Time) ([]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var times []time.Time
	for _, s := range f.snapshots {
		if !s.at.Before(start) && !s.at.After(end) {
			times = append(times, s.at)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times, nil
}

func (f *fakeStore) NamesSeenBefore(_ context.Context, _ string, before time.Time) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool)
	for _, s := range f.snapshots {
		if s.at.Before(before) {
			for name := range s.batch {
				seen[name] = true
			}
		}
	}
	return seen, nil
}

func (f *fakeStore) LastPeriodRun(_ context.Context, account, label string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.periodRuns[account+"|"+label]
	return t, ok, nil
}

func (f *fakeStore) RecordPeriodRun(_ context.Context, account, label string, runAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.periodRuns[account+"|"+label] = runAt
	return nil
}

type fakeFetcher struct {
	note     *models.DailyNoteRecord
	noteErr  error
	chars    []models.CharacterSnapshotRow
	charsErr error
}

func (f *fakeFetcher) FetchDailyNotes(context.Context, models.Account) (*models.DailyNoteRecord, error) {
	return f.note, f.noteErr
}

func (f *fakeFetcher) FetchCharacters(context.Context, models.Account) ([]models.CharacterSnapshotRow, error) {
	return f.chars, f.charsErr
}

type fakeSink struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSink) Send(_ context.Context, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return true
}

func (f *fakeSink) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func testNote() *models.DailyNoteRecord {
	return &models.DailyNoteRecord{
		ResinCurrent: 80, ResinMax: 200, ResinRecoveryRaw: "43200",
		RealmCurrencyCurrent: 100, RealmCurrencyMax: 2400, RealmRecoveryRaw: "86400",
		ExpeditionsFinished: 3, ExpeditionsTotal: 5,
		CommissionsCompleted: 2, CommissionsTotal: 4,
	}
}

func charRow(name string, level int) models.CharacterSnapshotRow {
	return models.CharacterSnapshotRow{
		CharacterName: name, Level: level, Friendship: 5, Constellation: 0,
		WeaponName: "Favonius Sword", WeaponLevel: 70, WeaponRefinement: 2,
	}
}

func newRunner(st Store, fetcher Fetcher, sink Sink, periods []models.Period, at time.Time) *Runner {
	r := New(slog.New(slog.NewTextHandler(io.Discard, nil)), st, fetcher, sink, nil,
		[]models.Account{{Name: "main", UID: "601234567"}}, periods, time.Hour)
	r.now = func() time.Time { return at }
	return r
}

func TestRunOnce_FirstSnapshotSendsOnlyNotes(t *testing.T) {
	st := newFakeStore()
	sink := &fakeSink{}
	fetcher := &fakeFetcher{note: testNote(), chars: []models.CharacterSnapshotRow{charRow("Kamisato Ayaka", 80)}}

	newRunner(st, fetcher, sink, nil, cycleNow).RunOnce(context.Background())

	msgs := sink.messages()
	if len(msgs) != 1 {
		t.Fatalf("sent %d messages, want 1 (daily notes only): %q", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], "Genshin Daily Notes — main") {
		t.Errorf("message = %q", msgs[0])
	}
	if st.noteRows != 1 || len(st.snapshots) != 1 {
		t.Errorf("persisted notes=%d snapshots=%d", st.noteRows, len(st.snapshots))
	}
}

func TestRunOnce_SecondCycleSendsDiff(t *testing.T) {
	st := newFakeStore()
	sink := &fakeSink{}
	fetcher := &fakeFetcher{note: testNote(), chars: []models.CharacterSnapshotRow{charRow("Kamisato Ayaka", 80)}}

	newRunner(st, fetcher, sink, nil, cycleNow).RunOnce(context.Background())

	fetcher.chars = []models.CharacterSnapshotRow{charRow("Kamisato Ayaka", 90)}
	newRunner(st, fetcher, sink, nil, cycleNow.Add(time.Hour)).RunOnce(context.Background())

	msgs := sink.messages()
	if len(msgs) != 3 {
		t.Fatalf("sent %d messages, want 3 (2 notes + 1 diff): %q", len(msgs), msgs)
	}
	diffMsg := msgs[2]
	if !strings.Contains(diffMsg, "Genshin Character Updates — main") {
		t.Errorf("diff message header missing: %q", diffMsg)
	}
	if !strings.Contains(diffMsg, "Kamisato Ayaka: Lv80 → Lv90") {
		t.Errorf("diff message entry missing: %q", diffMsg)
	}
}

func TestRunOnce_NoChangesNoDiffMessage(t *testing.T) {
	st := newFakeStore()
	sink := &fakeSink{}
	fetcher := &fakeFetcher{note: testNote(), chars: []models.CharacterSnapshotRow{charRow("Kamisato Ayaka", 80)}}

	newRunner(st, fetcher, sink, nil, cycleNow).RunOnce(context.Background())
	newRunner(st, fetcher, sink, nil, cycleNow.Add(time.Hour)).RunOnce(context.Background())

	if msgs := sink.messages(); len(msgs) != 2 {
		t.Fatalf("sent %d messages, want 2 notes only: %q", len(msgs), msgs)
	}
}

func TestRunOnce_NotesFetchFailureStillSnapshots(t *testing.T) {
	st := newFakeStore()
	sink := &fakeSink{}
	fetcher := &fakeFetcher{noteErr: errors.New("upstream down"), chars: []models.CharacterSnapshotRow{charRow("Kamisato Ayaka", 80)}}

	newRunner(st, fetcher, sink, nil, cycleNow).RunOnce(context.Background())

	if len(sink.messages()) != 0 {
		t.Errorf("no message expected, got %q", sink.messages())
	}
	if st.noteRows != 0 || len(st.snapshots) != 1 {
		t.Errorf("persisted notes=%d snapshots=%d, want 0 and 1", st.noteRows, len(st.snapshots))
	}
}

func TestRunOnce_BatchInsertFailureSkipsDiff(t *testing.T) {
	st := newFakeStore()
	st.failBatchInsert = true
	sink := &fakeSink{}
	fetcher := &fakeFetcher{note: testNote(), chars: []models.CharacterSnapshotRow{charRow("Kamisato Ayaka", 80)}}

	newRunner(st, fetcher, sink, nil, cycleNow).RunOnce(context.Background())

	msgs := sink.messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "Daily Notes") {
		t.Errorf("only the notes message should survive a storage failure, got %q", msgs)
	}
}

func TestRunOnce_DuePeriodSummaryDelivered(t *testing.T) {
	st := newFakeStore()
	st.snapshots = append(st.snapshots, snap{
		at:    cycleNow.AddDate(0, 0, -6),
		batch: map[string]models.CharacterRecord{"Kamisato Ayaka": charRow("Kamisato Ayaka", 70).Record()},
	})
	sink := &fakeSink{}
	fetcher := &fakeFetcher{note: testNote(), chars: []models.CharacterSnapshotRow{charRow("Kamisato Ayaka", 90)}}
	periods := []models.Period{{Label: "Last 7 days", DaysBack: 7}}

	newRunner(st, fetcher, sink, periods, cycleNow).RunOnce(context.Background())

	var summary string
	for _, m := range sink.messages() {
		if strings.Contains(m, "Genshin Character Summary — main") {
			summary = m
		}
	}
	if summary == "" {
		t.Fatalf("no period summary among %q", sink.messages())
	}
	if !strings.Contains(summary, "Period: Last 7 days") {
		t.Errorf("summary subtitle missing: %q", summary)
	}
	if !strings.Contains(summary, "Kamisato Ayaka: Lv70 → Lv90") {
		t.Errorf("summary entry missing: %q", summary)
	}
	if _, ok := st.periodRuns["main|Last 7 days"]; !ok {
		t.Error("bookkeeping did not advance")
	}
}
