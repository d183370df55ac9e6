package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lox/nightbreeze/internal/httputil"
	"github.com/lox/nightbreeze/internal/models"
)

// Supabase mirrors run records to a remote PostgREST table
// (ac_automation_logs). It is optional: the local sqlite store remains the
// source of truth and a remote failure never loses a record.
type Supabase struct {
	baseURL string
	anonKey string
	table   string
	client  *http.Client
}

func NewSupabase(baseURL, anonKey string) *Supabase {
	return &Supabase{
		baseURL: baseURL,
		anonKey: anonKey,
		table:   "ac_automation_logs",
		client:  httputil.NewClient(),
	}
}

type supabaseRow struct {
	CreatedAt          string   `json:"created_at"`
	RoomTemperature    *float64 `json:"room_temperature"`
	RoomHumidity       *float64 `json:"room_humidity"`
	OutsideTemperature *float64 `json:"outside_temperature"`
	ACPower            string   `json:"ac_power"`
	ACTemperature      *int64   `json:"ac_temperature"`
	ACMode             *string  `json:"ac_mode"`
	Action             string   `json:"action"`
	Reasoning          string   `json:"reasoning"`
	Executed           bool     `json:"executed"`
}

func toRow(r models.RunRecord) supabaseRow {
	row := supabaseRow{
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
		ACPower:   r.ACPower,
		Action:    string(r.Action),
		Reasoning: r.Reasoning,
		Executed:  r.Executed,
	}
	if r.RoomTemperature.Valid {
		row.RoomTemperature = &r.RoomTemperature.Float64
	}
	if r.RoomHumidity.Valid {
		row.RoomHumidity = &r.RoomHumidity.Float64
	}
	if r.OutsideTemperature.Valid {
		row.OutsideTemperature = &r.OutsideTemperature.Float64
	}
	if r.ACTemperature.Valid {
		row.ACTemperature = &r.ACTemperature.Int64
	}
	if r.ACMode.Valid {
		row.ACMode = &r.ACMode.String
	}
	return row
}

// Append inserts one row via PostgREST.
func (s *Supabase) Append(ctx context.Context, r models.RunRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(toRow(r))
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rest/v1/"+s.table, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", s.anonKey)
	req.Header.Set("Authorization", "Bearer "+s.anonKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("supabase append: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("supabase append: status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
