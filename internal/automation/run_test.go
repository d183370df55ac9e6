package automation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lox/nightbreeze/internal/config"
	"github.com/lox/nightbreeze/internal/decision"
	"github.com/lox/nightbreeze/internal/models"
	"github.com/lox/nightbreeze/internal/switchbot"
)

type fakeSensor struct {
	reading *models.SensorReading
	err     error
}

func (f *fakeSensor) RoomConditions(context.Context) (*models.SensorReading, error) {
	return f.reading, f.err
}

type fakeStatus struct {
	state *models.ACState
	err   error
}

func (f *fakeStatus) Status(context.Context) (*models.ACState, error) {
	return f.state, f.err
}

type fakeWeather struct {
	reading *models.WeatherReading
	err     error
}

func (f *fakeWeather) Current(context.Context) (*models.WeatherReading, error) {
	return f.reading, f.err
}

type fakeEngine struct {
	decision models.Decision
	err      error
	calls    int
	lastCtx  decision.Context
}

func (f *fakeEngine) Decide(_ context.Context, dc decision.Context, _ config.Rules, _ string) (models.Decision, error) {
	f.calls++
	f.lastCtx = dc
	return f.decision, f.err
}

type fakeActuator struct {
	turnOffs int
	setAlls  int
	last     models.ACState
	err      error
}

func (f *fakeActuator) TurnOff(context.Context) error {
	f.turnOffs++
	return f.err
}

func (f *fakeActuator) SetAll(_ context.Context, state models.ACState) error {
	f.setAlls++
	f.last = state
	return f.err
}

type fakeSink struct {
	records []models.RunRecord
	err     error
}

func (f *fakeSink) Append(_ context.Context, r models.RunRecord) error {
	f.records = append(f.records, r)
	return f.err
}

type fakeHistory struct {
	recent       []models.RunRecord
	lastExecuted *models.RunRecord
}

func (f *fakeHistory) Recent(context.Context, int) ([]models.RunRecord, error) {
	return f.recent, nil
}

func (f *fakeHistory) LastExecuted(context.Context) (*models.RunRecord, error) {
	return f.lastExecuted, nil
}

type fixture struct {
	cfg     *config.Config
	sensor  *fakeSensor
	status  *fakeStatus
	weather *fakeWeather
	engine  *fakeEngine
	act     *fakeActuator
	sink    *fakeSink
	history *fakeHistory
	runner  *Runner
}

// newFixture wires a runner with healthy sources reporting a warm room at
// 23:30, well inside the default active window.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		cfg: config.Default(),
		sensor: &fakeSensor{reading: &models.SensorReading{
			Temperature: 27.5, Humidity: 60,
		}},
		status: &fakeStatus{err: switchbot.ErrStatusUnavailable},
		weather: &fakeWeather{reading: &models.WeatherReading{
			Temperature: 24.0, ApparentTemperature: 26.0, Description: "Clear sky",
		}},
		engine:  &fakeEngine{decision: models.Decision{Action: models.ActionNone, Reasoning: "comfortable"}},
		act:     &fakeActuator{},
		sink:    &fakeSink{},
		history: &fakeHistory{},
	}
	f.runner = NewRunner(f.cfg, f.sensor, f.status, f.weather, f.engine, f.act, f.sink, f.history)
	f.runner.SetClock(func() time.Time {
		return time.Date(2026, 1, 15, 23, 30, 0, 0, time.UTC)
	})
	return f
}

func intPtr(v int) *int                         { return &v }
func modePtr(m models.Mode) *models.Mode        { return &m }
func fanPtr(s models.FanSpeed) *models.FanSpeed { return &s }

func TestRunExecutesApprovedDecision(t *testing.T) {
	f := newFixture(t)
	f.engine.decision = models.Decision{
		Action:      models.ActionTurnOn,
		Temperature: intPtr(24),
		Mode:        modePtr(models.ModeCool),
		FanSpeed:    fanPtr(models.FanAuto),
		Reasoning:   "room above acceptable range",
	}

	res, err := f.runner.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !res.Record.Executed {
		t.Errorf("record not marked executed: %s (%s)", res.Verdict.Rule, res.Verdict.Reason)
	}
	if f.act.setAlls != 1 || f.act.turnOffs != 0 {
		t.Errorf("actuator calls = %d setAll, %d turnOff, want exactly one setAll", f.act.setAlls, f.act.turnOffs)
	}
	want := models.ACState{Power: "on", Temperature: 24, Mode: models.ModeCool, FanSpeed: models.FanAuto}
	if f.act.last != want {
		t.Errorf("commanded state = %s, want %s", f.act.last, want)
	}
	if len(f.sink.records) != 1 {
		t.Fatalf("appended %d records, want 1", len(f.sink.records))
	}
	rec := f.sink.records[0]
	if !rec.RoomTemperature.Valid || rec.RoomTemperature.Float64 != 27.5 {
		t.Errorf("room temperature = %+v, want 27.5", rec.RoomTemperature)
	}
	if rec.ACPower != models.PowerUnknown {
		t.Errorf("ac power = %q, want %q when status is unavailable", rec.ACPower, models.PowerUnknown)
	}
}

func TestRunSuppressesIdenticalState(t *testing.T) {
	f := newFixture(t)
	current := models.ACState{Power: "on", Temperature: 24, Mode: models.ModeCool, FanSpeed: models.FanAuto}
	f.status = &fakeStatus{state: &current}
	f.runner = NewRunner(f.cfg, f.sensor, f.status, f.weather, f.engine, f.act, f.sink, f.history)
	f.runner.SetClock(func() time.Time { return time.Date(2026, 1, 15, 23, 30, 0, 0, time.UTC) })

	f.engine.decision = models.Decision{
		Action:      models.ActionTurnOn,
		Temperature: intPtr(24),
		Mode:        modePtr(models.ModeCool),
		FanSpeed:    fanPtr(models.FanAuto),
		Reasoning:   "keep cooling",
	}

	res, err := f.runner.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Verdict.Rule != RuleIdenticalState {
		t.Errorf("rule = %q, want %q", res.Verdict.Rule, RuleIdenticalState)
	}
	if f.act.setAlls+f.act.turnOffs != 0 {
		t.Errorf("actuator was called for an identical state")
	}
	if len(f.sink.records) != 1 || f.sink.records[0].Executed {
		t.Errorf("want exactly one non-executed record, got %+v", f.sink.records)
	}
}

func TestRunAbortsWhenAllDataMissing(t *testing.T) {
	f := newFixture(t)
	f.sensor.reading, f.sensor.err = nil, errors.New("hub offline")
	f.weather.reading, f.weather.err = nil, errors.New("dns failure")

	res, err := f.runner.Run(context.Background(), Options{})
	if err == nil {
		t.Fatal("want error when both sensor and weather are unavailable")
	}
	if f.engine.calls != 0 {
		t.Errorf("engine consulted %d times without any data", f.engine.calls)
	}
	if len(f.sink.records) != 1 {
		t.Fatalf("appended %d records, want 1 failure record", len(f.sink.records))
	}
	if res.Record.Action != models.ActionNone || res.Record.Executed {
		t.Errorf("failure record = %+v, want action=none executed=false", res.Record)
	}
}

func TestRunToleratesPartialData(t *testing.T) {
	f := newFixture(t)
	f.weather.reading, f.weather.err = nil, errors.New("timeout")

	res, err := f.runner.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.engine.calls != 1 {
		t.Errorf("engine calls = %d, want 1 (room data alone suffices)", f.engine.calls)
	}
	if res.Record.OutsideTemperature.Valid {
		t.Errorf("outside temperature recorded despite weather failure")
	}
	if !res.Record.RoomTemperature.Valid {
		t.Errorf("room temperature missing from record")
	}
}

func TestRunDryRun(t *testing.T) {
	f := newFixture(t)
	f.engine.decision = models.Decision{Action: models.ActionTurnOff, Reasoning: "room is cold"}

	res, err := f.runner.Run(context.Background(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Verdict.Rule != RuleDryRun {
		t.Errorf("rule = %q, want %q", res.Verdict.Rule, RuleDryRun)
	}
	if f.act.setAlls+f.act.turnOffs != 0 {
		t.Errorf("actuator called during dry run")
	}
	if len(f.sink.records) != 1 || f.sink.records[0].Executed {
		t.Errorf("dry run must still append one non-executed record")
	}
	if f.engine.calls != 1 {
		t.Errorf("dry run should still consult the engine, got %d calls", f.engine.calls)
	}
}

func TestRunFinalHourForcesShutdown(t *testing.T) {
	f := newFixture(t)
	// 06:xx with an end hour of 7 is the final active hour.
	f.runner.SetClock(func() time.Time {
		return time.Date(2026, 1, 16, 6, 15, 0, 0, time.UTC)
	})

	res, err := f.runner.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.engine.calls != 0 {
		t.Errorf("engine consulted on the final hour, want unconditional shutdown")
	}
	if res.Decision.Action != models.ActionTurnOff {
		t.Errorf("action = %s, want turn_off", res.Decision.Action)
	}
	if f.act.turnOffs != 1 {
		t.Errorf("turnOff calls = %d, want 1", f.act.turnOffs)
	}
}

func TestRunEngineFailureDowngradesToNone(t *testing.T) {
	f := newFixture(t)
	f.engine.err = errors.New("upstream 500")

	res, err := f.runner.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Decision.Action != models.ActionNone {
		t.Errorf("action = %s, want none on engine failure", res.Decision.Action)
	}
	if f.act.setAlls+f.act.turnOffs != 0 {
		t.Errorf("actuator called after engine failure")
	}
	if len(f.sink.records) != 1 {
		t.Errorf("appended %d records, want 1", len(f.sink.records))
	}
}

func TestRunRecordsExecutionFailure(t *testing.T) {
	f := newFixture(t)
	f.engine.decision = models.Decision{
		Action:    models.ActionTurnOn,
		Reasoning: "room too warm",
	}
	f.act.err = errors.New("device offline")

	res, err := f.runner.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Record.Executed {
		t.Errorf("record marked executed after actuator failure")
	}
	if !strings.Contains(res.Record.Reasoning, "execution failed") {
		t.Errorf("reasoning %q does not note the execution failure", res.Record.Reasoning)
	}
	if len(f.sink.records) != 1 {
		t.Errorf("appended %d records, want 1", len(f.sink.records))
	}
}

func TestRunRespectsMinChangeInterval(t *testing.T) {
	f := newFixture(t)
	f.engine.decision = models.Decision{Action: models.ActionTurnOn, Reasoning: "warm"}
	f.history.lastExecuted = &models.RunRecord{
		CreatedAt: time.Date(2026, 1, 15, 23, 20, 0, 0, time.UTC),
		Action:    models.ActionTurnOn,
		Executed:  true,
	}

	res, err := f.runner.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Verdict.Rule != RuleMinInterval {
		t.Errorf("rule = %q, want %q", res.Verdict.Rule, RuleMinInterval)
	}

	// Force bypasses the interval.
	f.sink.records = nil
	res, err = f.runner.Run(context.Background(), Options{Force: true})
	if err != nil {
		t.Fatalf("Run with force: %v", err)
	}
	if !res.Record.Executed {
		t.Errorf("forced run not executed: %s (%s)", res.Verdict.Rule, res.Verdict.Reason)
	}
}

func TestRunPassesHistoryToEngine(t *testing.T) {
	f := newFixture(t)
	f.history.recent = []models.RunRecord{
		{Action: models.ActionTurnOn, Reasoning: "hot", Executed: true},
		{Action: models.ActionNone, Reasoning: "fine"},
	}

	if _, err := f.runner.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.engine.lastCtx.History) != 2 {
		t.Errorf("engine saw %d history records, want 2", len(f.engine.lastCtx.History))
	}
}

func TestRunFallsBackToLastStateForPartialDecision(t *testing.T) {
	f := newFixture(t)
	current := models.ACState{Power: "on", Temperature: 26, Mode: models.ModeDry, FanSpeed: models.FanLow}
	f.status = &fakeStatus{state: &current}
	f.runner = NewRunner(f.cfg, f.sensor, f.status, f.weather, f.engine, f.act, f.sink, f.history)
	f.runner.SetClock(func() time.Time { return time.Date(2026, 1, 15, 23, 30, 0, 0, time.UTC) })

	// Only the temperature changes; mode and fan carry over from the last
	// commanded state.
	f.engine.decision = models.Decision{
		Action:      models.ActionAdjustTemp,
		Temperature: intPtr(23),
		Reasoning:   "cool slightly",
	}

	if _, err := f.runner.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := models.ACState{Power: "on", Temperature: 23, Mode: models.ModeDry, FanSpeed: models.FanLow}
	if f.act.last != want {
		t.Errorf("commanded state = %s, want %s", f.act.last, want)
	}
}

func TestRunSinkFailureDoesNotMaskOutcome(t *testing.T) {
	f := newFixture(t)
	f.engine.decision = models.Decision{Action: models.ActionTurnOn, Reasoning: "warm"}
	f.sink.err = errors.New("disk full")

	res, err := f.runner.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Record.Executed {
		t.Errorf("sink failure changed the execution outcome")
	}
}
