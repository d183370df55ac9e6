// Package store persists the automation audit log. The sqlite store is the
// durable sink; an optional Supabase sink mirrors records to a remote table.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lox/nightbreeze/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append writes one run record. The audit log is append-only; there is no
// update path.
func (s *Store) Append(ctx context.Context, r models.RunRecord) error {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO automation_runs (created_at, room_temperature, room_humidity, outside_temperature, ac_power, ac_temperature, ac_mode, action, reasoning, executed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, createdAt, r.RoomTemperature, r.RoomHumidity, r.OutsideTemperature, r.ACPower, r.ACTemperature, r.ACMode, string(r.Action), r.Reasoning, r.Executed)
	return err
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, room_temperature, room_humidity, outside_temperature, ac_power, ac_temperature, ac_mode, action, reasoning, executed
		FROM automation_runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.RunRecord
	for rows.Next() {
		var r models.RunRecord
		var action string
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.RoomTemperature, &r.RoomHumidity, &r.OutsideTemperature, &r.ACPower, &r.ACTemperature, &r.ACMode, &action, &r.Reasoning, &r.Executed); err != nil {
			return nil, err
		}
		r.Action = models.Action(action)
		records = append(records, r)
	}
	return records, rows.Err()
}

// LastExecuted returns the most recent record with executed=true, or nil.
// The guard's minimum-change interval compares against this.
func (s *Store) LastExecuted(ctx context.Context) (*models.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, room_temperature, room_humidity, outside_temperature, ac_power, ac_temperature, ac_mode, action, reasoning, executed
		FROM automation_runs
		WHERE executed = TRUE
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`)

	var r models.RunRecord
	var action string
	err := row.Scan(&r.ID, &r.CreatedAt, &r.RoomTemperature, &r.RoomHumidity, &r.OutsideTemperature, &r.ACPower, &r.ACTemperature, &r.ACMode, &action, &r.Reasoning, &r.Executed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.Action = models.Action(action)
	return &r, nil
}
