package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/emunchies/Hoyo-Notifications/internal/models"
)

func newMock(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return New(mock), mock
}

func expectationsMet(t *testing.T, mock pgxmock.PgxPoolIface) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

var takenAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestInsertDailyNote(t *testing.T) {
	s, mock := newMock(t)

	n := models.DailyNoteRecord{
		ResinCurrent: 120, ResinMax: 160, ResinRecoveryRaw: "9600",
		ExpeditionsFinished: 4, ExpeditionsTotal: 5,
		RealmCurrencyCurrent: 2400, RealmCurrencyMax: 2400, RealmRecoveryRaw: "0",
		CommissionsCompleted: 4, CommissionsTotal: 4, CommissionsClaimed: true,
	}

	mock.ExpectExec(`INSERT INTO daily_notes`).
		WithArgs("main", takenAt,
			120, 160, "in 2h40m", "9600",
			4, 5,
			2400, 2400, "Full", "0",
			4, 4, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := s.InsertDailyNote(context.Background(), "main", takenAt, n, "in 2h40m", "Full"); err != nil {
		t.Fatalf("InsertDailyNote: %v", err)
	}
	expectationsMet(t, mock)
}

func TestInsertDailyNote_StorageError(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec(`INSERT INTO daily_notes`).
		WillReturnError(errors.New("connection refused"))

	err := s.InsertDailyNote(context.Background(), "main", takenAt, models.DailyNoteRecord{}, "Unknown", "Unknown")
	if err == nil {
		t.Fatal("expected error")
	}
	expectationsMet(t, mock)
}

func TestInsertCharacterBatch(t *testing.T) {
	s, mock := newMock(t)

	rows := []models.CharacterSnapshotRow{
		{CharacterID: 10000002, CharacterName: "Kamisato Ayaka", Element: "Cryo", Rarity: 5,
			Level: 90, Friendship: 10, Constellation: 0,
			WeaponID: 11509, WeaponName: "Mistsplitter Reforged", WeaponRarity: 5, WeaponLevel: 90, WeaponType: 1, WeaponRefinement: 1},
		{CharacterID: 10000032, CharacterName: "Bennett", Element: "Pyro", Rarity: 4,
			Level: 80, Friendship: 10, Constellation: 6,
			WeaponID: 11402, WeaponName: "The Bell", WeaponRarity: 4, WeaponLevel: 80, WeaponType: 1, WeaponRefinement: 5},
	}

	mock.ExpectCopyFrom(pgx.Identifier{"character_snapshots"}, characterColumns).
		WillReturnResult(2)

	if err := s.InsertCharacterBatch(context.Background(), "main", takenAt, rows); err != nil {
		t.Fatalf("InsertCharacterBatch: %v", err)
	}
	expectationsMet(t, mock)
}

func TestInsertCharacterBatch_EmptyIsNoop(t *testing.T) {
	s, mock := newMock(t)

	if err := s.InsertCharacterBatch(context.Background(), "main", takenAt, nil); err != nil {
		t.Fatalf("InsertCharacterBatch: %v", err)
	}
	expectationsMet(t, mock)
}

func TestPreviousSnapshotTime(t *testing.T) {
	s, mock := newMock(t)

	prev := takenAt.Add(-time.Hour)
	mock.ExpectQuery(`SELECT taken_at`).
		WithArgs("main", takenAt).
		WillReturnRows(pgxmock.NewRows([]string{"taken_at"}).AddRow(prev))

	got, err := s.PreviousSnapshotTime(context.Background(), "main", takenAt)
	if err != nil {
		t.Fatalf("PreviousSnapshotTime: %v", err)
	}
	if !got.Equal(prev) {
		t.Errorf("got %v, want %v", got, prev)
	}
	expectationsMet(t, mock)
}

func TestPreviousSnapshotTime_None(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(`SELECT taken_at`).
		WithArgs("main", takenAt).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.PreviousSnapshotTime(context.Background(), "main", takenAt)
	if !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("error = %v, want ErrNoSnapshot", err)
	}
	expectationsMet(t, mock)
}

func TestDistinctTimesInWindow(t *testing.T) {
	s, mock := newMock(t)

	start := takenAt.AddDate(0, 0, -7)
	t1 := takenAt.AddDate(0, 0, -6)
	t2 := takenAt.AddDate(0, 0, -1)
	mock.ExpectQuery(`SELECT DISTINCT taken_at`).
		WithArgs("main", start, takenAt).
		WillReturnRows(pgxmock.NewRows([]string{"taken_at"}).AddRow(t1).AddRow(t2))

	times, err := s.DistinctTimesInWindow(context.Background(), "main", start, takenAt)
	if err != nil {
		t.Fatalf("DistinctTimesInWindow: %v", err)
	}
	if len(times) != 2 || !times[0].Equal(t1) || !times[1].Equal(t2) {
		t.Errorf("times = %v", times)
	}
	expectationsMet(t, mock)
}

func TestLoadCharacterBatch(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(`SELECT character_name`).
		WithArgs("main", takenAt).
		WillReturnRows(pgxmock.NewRows([]string{
			"character_name", "level", "friendship", "constellation",
			"weapon_name", "weapon_level", "weapon_refinement",
		}).
			AddRow("Kamisato Ayaka", 90, 10, 0, "Mistsplitter Reforged", 90, 1).
			AddRow("Bennett", 80, 10, 6, "The Bell", 80, 5))

	batch, err := s.LoadCharacterBatch(context.Background(), "main", takenAt)
	if err != nil {
		t.Fatalf("LoadCharacterBatch: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("batch = %v", batch)
	}
	ayaka := batch["Kamisato Ayaka"]
	if ayaka.Level != 90 || ayaka.WeaponName != "Mistsplitter Reforged" {
		t.Errorf("ayaka = %+v", ayaka)
	}
	expectationsMet(t, mock)
}

func TestNamesSeenBefore(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(`SELECT DISTINCT character_name`).
		WithArgs("main", takenAt).
		WillReturnRows(pgxmock.NewRows([]string{"character_name"}).AddRow("Amber").AddRow("Kaeya"))

	seen, err := s.NamesSeenBefore(context.Background(), "main", takenAt)
	if err != nil {
		t.Fatalf("NamesSeenBefore: %v", err)
	}
	if !seen["Amber"] || !seen["Kaeya"] || len(seen) != 2 {
		t.Errorf("seen = %v", seen)
	}
	expectationsMet(t, mock)
}

func TestLastPeriodRun(t *testing.T) {
	s, mock := newMock(t)

	last := takenAt.AddDate(0, 0, -8)
	mock.ExpectQuery(`SELECT last_run FROM period_runs`).
		WithArgs("main", "Last 7 days").
		WillReturnRows(pgxmock.NewRows([]string{"last_run"}).AddRow(last))

	got, found, err := s.LastPeriodRun(context.Background(), "main", "Last 7 days")
	if err != nil {
		t.Fatalf("LastPeriodRun: %v", err)
	}
	if !found || !got.Equal(last) {
		t.Errorf("got %v found=%v", got, found)
	}
	expectationsMet(t, mock)
}

func TestLastPeriodRun_NeverRun(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(`SELECT last_run FROM period_runs`).
		WithArgs("main", "Last 30 days").
		WillReturnError(pgx.ErrNoRows)

	_, found, err := s.LastPeriodRun(context.Background(), "main", "Last 30 days")
	if err != nil {
		t.Fatalf("LastPeriodRun: %v", err)
	}
	if found {
		t.Error("found = true for missing bookkeeping row")
	}
	expectationsMet(t, mock)
}

func TestRecordPeriodRun(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec(`INSERT INTO period_runs`).
		WithArgs("main", "Last 7 days", takenAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := s.RecordPeriodRun(context.Background(), "main", "Last 7 days", takenAt); err != nil {
		t.Fatalf("RecordPeriodRun: %v", err)
	}
	expectationsMet(t, mock)
}
