// Package automation is the night decision loop: gather a snapshot of room,
// weather, and AC state, ask the reasoning engine for an action, guard it,
// execute at most one actuator command, and append exactly one audit record.
package automation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/lox/nightbreeze/internal/config"
	"github.com/lox/nightbreeze/internal/decision"
	"github.com/lox/nightbreeze/internal/metrics"
	"github.com/lox/nightbreeze/internal/models"
	"github.com/lox/nightbreeze/internal/switchbot"
)

// SensorSource reads the room conditions.
type SensorSource interface {
	RoomConditions(ctx context.Context) (*models.SensorReading, error)
}

// StatusSource reads the AC's last known state from the hub.
type StatusSource interface {
	Status(ctx context.Context) (*models.ACState, error)
}

// WeatherSource reads the current outside conditions.
type WeatherSource interface {
	Current(ctx context.Context) (*models.WeatherReading, error)
}

// Engine produces one Decision from the gathered context.
type Engine interface {
	Decide(ctx context.Context, dc decision.Context, rules config.Rules, notes string) (models.Decision, error)
}

// Actuator issues AC commands. At most one call happens per run.
type Actuator interface {
	TurnOff(ctx context.Context) error
	SetAll(ctx context.Context, state models.ACState) error
}

// Sink receives the run's audit record.
type Sink interface {
	Append(ctx context.Context, r models.RunRecord) error
}

// History supplies past runs for the prompt and the minimum-change check.
type History interface {
	Recent(ctx context.Context, limit int) ([]models.RunRecord, error)
	LastExecuted(ctx context.Context) (*models.RunRecord, error)
}

// Options are the orthogonal run invocation modes.
type Options struct {
	DryRun bool
	Force  bool
}

// Result summarizes one run for the operator, independent of whether the
// audit write succeeded.
type Result struct {
	Record   models.RunRecord
	Decision models.Decision
	Verdict  Verdict
}

type Runner struct {
	cfg     *config.Config
	sensor  SensorSource
	status  StatusSource
	weather WeatherSource
	engine  Engine
	act     Actuator
	sink    Sink
	history History
	now     func() time.Time
}

func NewRunner(cfg *config.Config, sensor SensorSource, status StatusSource, weather WeatherSource, engine Engine, act Actuator, sink Sink, history History) *Runner {
	return &Runner{
		cfg:     cfg,
		sensor:  sensor,
		status:  status,
		weather: weather,
		engine:  engine,
		act:     act,
		sink:    sink,
		history: history,
		now:     time.Now,
	}
}

// SetClock overrides the runner's clock, used by tests.
func (r *Runner) SetClock(now func() time.Time) { r.now = now }

// snapshot is the gathered context for one run. Nil fields were unavailable.
type snapshot struct {
	room    *models.SensorReading
	weather *models.WeatherReading
	acState *models.ACState
}

// gather attempts all three reads even if some fail. A missing AC state is a
// normal outcome for infrared installations; missing sensor or weather data
// degrades the prompt but only both together kill the run.
func (r *Runner) gather(ctx context.Context) snapshot {
	var snap snapshot

	room, err := r.sensor.RoomConditions(ctx)
	if err != nil {
		log.Printf("run: room conditions unavailable: %v", err)
	} else {
		snap.room = room
		log.Printf("run: room %.1f°C, %.0f%% humidity", room.Temperature, room.Humidity)
	}

	state, err := r.status.Status(ctx)
	if err != nil {
		if errors.Is(err, switchbot.ErrStatusUnavailable) {
			log.Printf("run: ac status not reported (infrared remote)")
		} else {
			log.Printf("run: ac status unavailable: %v", err)
		}
	} else {
		snap.acState = state
		log.Printf("run: ac %s", state)
	}

	weather, err := r.weather.Current(ctx)
	if err != nil {
		log.Printf("run: weather unavailable: %v", err)
	} else {
		snap.weather = weather
		log.Printf("run: outside %.1f°C (feels like %.1f°C), %s", weather.Temperature, weather.ApparentTemperature, weather.Description)
	}

	return snap
}

// Run executes one full gather → decide → guard → act → log cycle and
// returns the operator-facing result. Exactly one audit record is appended
// on every path; a sink failure is reported but never masks the actuation
// outcome.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	now := r.now().In(r.cfg.TZ())
	log.Printf("run: starting (dry-run=%v force=%v)", opts.DryRun, opts.Force)

	snap := r.gather(ctx)

	// Total-data failure: the AC's last commanded state alone cannot anchor
	// a decision. Log a failure record and stop before the engine.
	if snap.room == nil && snap.weather == nil {
		d := models.Decision{Action: models.ActionNone, Reasoning: "sensor and weather data unavailable"}
		res := &Result{
			Decision: d,
			Verdict:  Verdict{Rule: RuleNoAction, Reason: d.Reasoning},
			Record:   r.buildRecord(now, snap, d, false),
		}
		r.append(ctx, res.Record)
		return res, fmt.Errorf("run aborted: %s", d.Reasoning)
	}

	var history []models.RunRecord
	if r.history != nil {
		var err error
		history, err = r.history.Recent(ctx, 10)
		if err != nil {
			log.Printf("run: history unavailable: %v", err)
		}
	}

	d := r.decide(ctx, snap, history, now)
	log.Printf("run: decision %s: %s", d.Action, d.Reasoning)

	desired := r.desiredState(d, snap.acState)

	var lastExecutedAt *time.Time
	if r.history != nil {
		if last, err := r.history.LastExecuted(ctx); err != nil {
			log.Printf("run: last executed run unavailable: %v", err)
		} else if last != nil {
			t := last.CreatedAt
			lastExecutedAt = &t
		}
	}

	verdict := Evaluate(GuardInput{
		DryRun:         opts.DryRun,
		Force:          opts.Force,
		Decision:       d,
		Desired:        desired,
		Last:           snap.acState,
		LastExecutedAt: lastExecutedAt,
		Now:            now,
	}, r.cfg.Schedule, r.cfg.Rules.MinChangeEvery())

	executed := false
	if verdict.Execute {
		if err := r.execute(ctx, d, *desired); err != nil {
			log.Printf("run: execution failed: %v", err)
			d.Reasoning = d.Reasoning + " [execution failed: " + err.Error() + "]"
		} else {
			executed = true
			log.Printf("run: executed %s -> %s", d.Action, desired)
		}
	} else {
		log.Printf("run: suppressed (%s): %s", verdict.Rule, verdict.Reason)
	}

	record := r.buildRecord(now, snap, d, executed)
	r.append(ctx, record)

	metrics.RunsTotal.WithLabelValues(string(d.Action), strconv.FormatBool(executed)).Inc()

	return &Result{Record: record, Decision: d, Verdict: verdict}, nil
}

// decide asks the engine, except on the final active-hours run where the AC
// is shut down unconditionally so it never runs past wake-up. Engine
// failures downgrade to action=none; the run still logs and exits normally.
func (r *Runner) decide(ctx context.Context, snap snapshot, history []models.RunRecord, now time.Time) models.Decision {
	if r.cfg.Schedule.FinalHour(now.Hour()) {
		return models.Decision{Action: models.ActionTurnOff, Reasoning: "final run before wake-up"}
	}

	d, err := r.engine.Decide(ctx, decision.Context{
		Room:    snap.room,
		Weather: snap.weather,
		ACState: snap.acState,
		Now:     now,
		History: history,
	}, r.cfg.Rules, r.cfg.AI.Notes)
	if err != nil {
		return models.Decision{Action: models.ActionNone, Reasoning: "reasoning unavailable: " + err.Error()}
	}
	return d
}

const defaultTemperature = 22

// desiredState resolves the decision into a concrete commanded state.
// Missing fields fall back to the last commanded state when it is known and
// on, then to policy defaults. Returns nil for action=none.
func (r *Runner) desiredState(d models.Decision, last *models.ACState) *models.ACState {
	switch d.Action {
	case models.ActionNone:
		return nil
	case models.ActionTurnOff:
		return &models.ACState{Power: "off"}
	}

	state := models.ACState{
		Power:       "on",
		Temperature: defaultTemperature,
		Mode:        r.cfg.Rules.PreferredMode,
		FanSpeed:    models.FanAuto,
	}
	if last != nil && last.On() {
		state.Temperature = last.Temperature
		state.Mode = last.Mode
		state.FanSpeed = last.FanSpeed
	}
	if d.Temperature != nil {
		state.Temperature = *d.Temperature
	}
	if d.Mode != nil {
		state.Mode = *d.Mode
	}
	if d.FanSpeed != nil {
		state.FanSpeed = *d.FanSpeed
	}
	return &state
}

// execute issues the single actuator command for this run. No retries: a
// stale hub must not trigger repeated IR transmissions.
func (r *Runner) execute(ctx context.Context, d models.Decision, desired models.ACState) error {
	if d.Action == models.ActionTurnOff {
		return r.act.TurnOff(ctx)
	}
	return r.act.SetAll(ctx, desired)
}

func (r *Runner) buildRecord(now time.Time, snap snapshot, d models.Decision, executed bool) models.RunRecord {
	record := models.RunRecord{
		CreatedAt: now.UTC(),
		ACPower:   models.PowerUnknown,
		Action:    d.Action,
		Reasoning: d.Reasoning,
		Executed:  executed,
	}
	if snap.room != nil {
		record.RoomTemperature = sql.NullFloat64{Float64: snap.room.Temperature, Valid: true}
		record.RoomHumidity = sql.NullFloat64{Float64: snap.room.Humidity, Valid: true}
	}
	if snap.weather != nil {
		record.OutsideTemperature = sql.NullFloat64{Float64: snap.weather.Temperature, Valid: true}
	}
	if snap.acState != nil {
		record.ACPower = snap.acState.Power
		record.ACTemperature = sql.NullInt64{Int64: int64(snap.acState.Temperature), Valid: true}
		record.ACMode = sql.NullString{String: string(snap.acState.Mode), Valid: true}
	}
	return record
}

// append writes the audit record. Failures are reported to the operator but
// never alter the run outcome: a successful AC command is not undone by a
// lost log write.
func (r *Runner) append(ctx context.Context, record models.RunRecord) {
	if err := r.sink.Append(ctx, record); err != nil {
		log.Printf("run: audit log append failed: %v", err)
	}
}
