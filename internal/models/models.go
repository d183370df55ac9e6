package models

import (
	"database/sql"
	"fmt"
	"time"
)

// Action is the closed set of adjustments a run may make.
type Action string

const (
	ActionNone       Action = "none"
	ActionTurnOn     Action = "turn_on"
	ActionTurnOff    Action = "turn_off"
	ActionAdjustTemp Action = "adjust_temp"
	ActionChangeMode Action = "change_mode"
)

func (a Action) Valid() bool {
	switch a {
	case ActionNone, ActionTurnOn, ActionTurnOff, ActionAdjustTemp, ActionChangeMode:
		return true
	}
	return false
}

// Mode is an AC operating mode as understood by the infrared remote.
type Mode string

const (
	ModeAuto Mode = "auto"
	ModeCool Mode = "cool"
	ModeDry  Mode = "dry"
	ModeFan  Mode = "fan"
	ModeHeat Mode = "heat"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeAuto, ModeCool, ModeDry, ModeFan, ModeHeat:
		return true
	}
	return false
}

// FanSpeed is an AC fan speed setting.
type FanSpeed string

const (
	FanAuto   FanSpeed = "auto"
	FanLow    FanSpeed = "low"
	FanMedium FanSpeed = "medium"
	FanHigh   FanSpeed = "high"
)

func (f FanSpeed) Valid() bool {
	switch f {
	case FanAuto, FanLow, FanMedium, FanHigh:
		return true
	}
	return false
}

// Settable temperature range for infrared AC remotes.
const (
	TempMin = 16
	TempMax = 30
)

// PowerUnknown is recorded when the hub cannot report AC state. Infrared
// remotes have no read-back channel, so this is a normal outcome.
const PowerUnknown = "unknown"

// ACState is the last known commanded state of the air conditioner. It is a
// heuristic, not ground truth: IR transmission is one-way.
type ACState struct {
	Power       string // "on" or "off"
	Temperature int
	Mode        Mode
	FanSpeed    FanSpeed
}

// On reports whether the commanded power state is on.
func (s ACState) On() bool { return s.Power == "on" }

// Equal reports whether two commanded states would produce the same physical
// settings. Two "off" states compare equal regardless of stored setpoints.
func (s ACState) Equal(o ACState) bool {
	if !s.On() && !o.On() {
		return true
	}
	return s.Power == o.Power && s.Temperature == o.Temperature && s.Mode == o.Mode && s.FanSpeed == o.FanSpeed
}

func (s ACState) String() string {
	if !s.On() {
		return "off"
	}
	return fmt.Sprintf("on %d°C %s/%s", s.Temperature, s.Mode, s.FanSpeed)
}

// SensorReading is a room temperature/humidity sample from the hub.
type SensorReading struct {
	Temperature float64
	Humidity    float64
	At          time.Time
}

// WeatherReading is the current outside conditions from the weather API.
type WeatherReading struct {
	Temperature         float64
	ApparentTemperature float64
	Humidity            float64
	Description         string
	At                  time.Time
}

// Decision is the reasoning engine's verdict for one run.
type Decision struct {
	Action      Action    `json:"action"`
	Temperature *int      `json:"temperature"`
	Mode        *Mode     `json:"mode"`
	FanSpeed    *FanSpeed `json:"fan_speed"`
	Reasoning   string    `json:"reasoning"`
}

// RunRecord is the single durable artifact of an automation run.
// Nullable columns mark readings that were unavailable for that run.
type RunRecord struct {
	ID                 int64
	CreatedAt          time.Time
	RoomTemperature    sql.NullFloat64
	RoomHumidity       sql.NullFloat64
	OutsideTemperature sql.NullFloat64
	ACPower            string // "on", "off" or "unknown"
	ACTemperature      sql.NullInt64
	ACMode             sql.NullString
	Action             Action
	Reasoning          string
	Executed           bool
}
