package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lox/nightbreeze/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := New(db)
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestMigrateIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestAppendAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 15, 23, 0, 0, 0, time.UTC)

	records := []models.RunRecord{
		{
			CreatedAt:          base,
			RoomTemperature:    sql.NullFloat64{Float64: 27.5, Valid: true},
			RoomHumidity:       sql.NullFloat64{Float64: 60, Valid: true},
			OutsideTemperature: sql.NullFloat64{Float64: 24, Valid: true},
			ACPower:            "unknown",
			Action:             models.ActionTurnOn,
			Reasoning:          "room above acceptable range",
			Executed:           true,
		},
		{
			CreatedAt:     base.Add(time.Hour),
			ACPower:       "on",
			ACTemperature: sql.NullInt64{Int64: 24, Valid: true},
			ACMode:        sql.NullString{String: "cool", Valid: true},
			Action:        models.ActionNone,
			Reasoning:     "comfortable",
		},
	}
	for _, r := range records {
		if err := s.Append(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].Action != models.ActionNone {
		t.Errorf("newest record action = %s, want none (newest first)", got[0].Action)
	}
	if got[1].Action != models.ActionTurnOn || !got[1].Executed {
		t.Errorf("oldest record = %+v", got[1])
	}
	if !got[1].RoomTemperature.Valid || got[1].RoomTemperature.Float64 != 27.5 {
		t.Errorf("room temperature = %+v", got[1].RoomTemperature)
	}
	if got[0].RoomTemperature.Valid {
		t.Errorf("null column came back valid: %+v", got[0].RoomTemperature)
	}
	if got[0].ACMode.String != "cool" {
		t.Errorf("ac mode = %+v", got[0].ACMode)
	}
}

func TestRecentLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 15, 22, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		r := models.RunRecord{
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			ACPower:   "unknown",
			Action:    models.ActionNone,
		}
		if err := s.Append(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d records, want 3", len(got))
	}
}

func TestLastExecuted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	last, err := s.LastExecuted(ctx)
	if err != nil {
		t.Fatalf("last executed on empty table: %v", err)
	}
	if last != nil {
		t.Fatalf("want nil on empty table, got %+v", last)
	}

	base := time.Date(2026, 1, 15, 23, 0, 0, 0, time.UTC)
	for i, executed := range []bool{true, false, true, false} {
		r := models.RunRecord{
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			ACPower:   "unknown",
			Action:    models.ActionTurnOn,
			Executed:  executed,
		}
		if err := s.Append(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	last, err = s.LastExecuted(ctx)
	if err != nil {
		t.Fatalf("last executed: %v", err)
	}
	if last == nil {
		t.Fatal("want a record, got nil")
	}
	if !last.CreatedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("last executed at %s, want %s", last.CreatedAt, base.Add(2*time.Hour))
	}
}
