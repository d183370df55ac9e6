package rpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lox/nightbreeze/internal/models"
	"github.com/lox/nightbreeze/internal/switchbot"
)

// Tool is one callable exposed to the conversational assistant.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`

	handler func(ctx context.Context, args json.RawMessage) (string, error)
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var (
	temperatureProp = map[string]any{
		"type":        "integer",
		"description": fmt.Sprintf("Target temperature in °C (%d-%d)", models.TempMin, models.TempMax),
	}
	modeProp = map[string]any{
		"type": "string",
		"enum": []string{"auto", "cool", "dry", "fan", "heat"},
	}
	fanSpeedProp = map[string]any{
		"type": "string",
		"enum": []string{"auto", "low", "medium", "high"},
	}
)

func (s *Server) tools() []Tool {
	return []Tool{
		{
			Name:        "get_ac_status",
			Description: "Get current AC status (power, temperature, mode, fan speed)",
			InputSchema: objectSchema(map[string]any{}),
			handler:     s.handleGetACStatus,
		},
		{
			Name:        "get_room_temperature",
			Description: "Get room temperature and humidity from the hub sensor",
			InputSchema: objectSchema(map[string]any{}),
			handler:     s.handleGetRoomTemperature,
		},
		{
			Name:        "turn_ac_on",
			Description: "Turn on the AC with the given settings",
			InputSchema: objectSchema(map[string]any{
				"temperature": temperatureProp,
				"mode":        modeProp,
				"fan_speed":   fanSpeedProp,
			}),
			handler: s.handleTurnACOn,
		},
		{
			Name:        "turn_ac_off",
			Description: "Turn off the AC",
			InputSchema: objectSchema(map[string]any{}),
			handler:     s.handleTurnACOff,
		},
		{
			Name:        "set_ac_temperature",
			Description: "Change the AC temperature (AC must be on)",
			InputSchema: objectSchema(map[string]any{"temperature": temperatureProp}, "temperature"),
			handler:     s.handleSetACTemperature,
		},
		{
			Name:        "set_ac_mode",
			Description: "Change the AC mode (AC must be on)",
			InputSchema: objectSchema(map[string]any{"mode": modeProp}, "mode"),
			handler:     s.handleSetACMode,
		},
		{
			Name:        "set_ac_fan_speed",
			Description: "Change the AC fan speed (AC must be on)",
			InputSchema: objectSchema(map[string]any{"fan_speed": fanSpeedProp}, "fan_speed"),
			handler:     s.handleSetACFanSpeed,
		},
		{
			Name:        "set_ac_all_settings",
			Description: "Set power, temperature, mode and fan speed in one command",
			InputSchema: objectSchema(map[string]any{
				"power":       map[string]any{"type": "string", "enum": []string{"on", "off"}},
				"temperature": temperatureProp,
				"mode":        modeProp,
				"fan_speed":   fanSpeedProp,
			}, "power"),
			handler: s.handleSetACAll,
		},
		{
			Name:        "send_custom_ac_command",
			Description: "Send a non-standard command (swing, turbo, sleep, economy, quiet, light)",
			InputSchema: objectSchema(map[string]any{
				"command":   map[string]any{"type": "string"},
				"parameter": map[string]any{"type": "string"},
			}, "command"),
			handler: s.handleSendCustom,
		},
		{
			Name:        "get_ac_devices",
			Description: "List infrared devices on the account (to find the AC device ID)",
			InputSchema: objectSchema(map[string]any{}),
			handler:     s.handleGetDevices,
		},
		{
			Name:        "list_common_ac_commands",
			Description: "List common AC commands usable with send_custom_ac_command",
			InputSchema: objectSchema(map[string]any{}),
			handler:     s.handleListCommands,
		},
		{
			Name:        "check_credentials",
			Description: "Check that hub API credentials are configured and valid",
			InputSchema: objectSchema(map[string]any{}),
			handler:     s.handleCheckCredentials,
		},
	}
}

func validateTemperature(t int) error {
	if t < models.TempMin || t > models.TempMax {
		return fmt.Errorf("temperature must be between %d and %d°C", models.TempMin, models.TempMax)
	}
	return nil
}

func (s *Server) handleGetACStatus(ctx context.Context, _ json.RawMessage) (string, error) {
	state, err := s.ac.Status(ctx)
	if errors.Is(err, switchbot.ErrStatusUnavailable) {
		return "AC status not reported by the hub. This is normal for infrared-only remotes; the last commanded state is the only record.", nil
	}
	if err != nil {
		return "", err
	}

	power := "OFF"
	if state.On() {
		power = "ON"
	}
	return fmt.Sprintf("Air Conditioner Status:\n\nPower: %s\nTemperature: %d°C\nMode: %s\nFan Speed: %s",
		power, state.Temperature, state.Mode, state.FanSpeed), nil
}

func (s *Server) handleGetRoomTemperature(ctx context.Context, _ json.RawMessage) (string, error) {
	room, err := s.ac.RoomConditions(ctx)
	if err != nil {
		return "", fmt.Errorf("room conditions: %w", err)
	}

	comfort := "comfortable"
	switch {
	case room.Temperature < 18:
		comfort = "quite cold"
	case room.Temperature < 22:
		comfort = "cool"
	case room.Temperature < 26:
		comfort = "comfortable"
	case room.Temperature < 30:
		comfort = "getting warm"
	default:
		comfort = "very hot"
	}

	return fmt.Sprintf("Room Conditions:\n\nTemperature: %.1f°C\nHumidity: %.0f%%\n\nFeels %s.",
		room.Temperature, room.Humidity, comfort), nil
}

type turnOnParams struct {
	Temperature *int            `json:"temperature"`
	Mode        models.Mode     `json:"mode"`
	FanSpeed    models.FanSpeed `json:"fan_speed"`
}

func (s *Server) handleTurnACOn(ctx context.Context, args json.RawMessage) (string, error) {
	params := turnOnParams{Mode: models.ModeCool, FanSpeed: models.FanAuto}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
	}

	temp := 24
	if params.Temperature != nil {
		temp = *params.Temperature
	}
	if err := validateTemperature(temp); err != nil {
		return "", err
	}
	if !params.Mode.Valid() {
		return "", fmt.Errorf("unknown mode %q", params.Mode)
	}
	if !params.FanSpeed.Valid() {
		return "", fmt.Errorf("unknown fan speed %q", params.FanSpeed)
	}

	state := models.ACState{Power: "on", Temperature: temp, Mode: params.Mode, FanSpeed: params.FanSpeed}
	if err := s.ac.SetAll(ctx, state); err != nil {
		return "", err
	}
	return fmt.Sprintf("AC turned ON\nTemperature: %d°C\nMode: %s\nFan Speed: %s", temp, params.Mode, params.FanSpeed), nil
}

func (s *Server) handleTurnACOff(ctx context.Context, _ json.RawMessage) (string, error) {
	if err := s.ac.TurnOff(ctx); err != nil {
		return "", err
	}
	return "AC turned OFF", nil
}

// currentOrDefaults reads the AC state for partial setters, falling back to
// defaults when the hub cannot report one.
func (s *Server) currentOrDefaults(ctx context.Context) models.ACState {
	state, err := s.ac.Status(ctx)
	if err != nil || state == nil {
		return models.ACState{Power: "on", Temperature: 24, Mode: models.ModeCool, FanSpeed: models.FanAuto}
	}
	if state.Temperature < models.TempMin || state.Temperature > models.TempMax {
		state.Temperature = 24
	}
	if !state.Mode.Valid() {
		state.Mode = models.ModeCool
	}
	if !state.FanSpeed.Valid() {
		state.FanSpeed = models.FanAuto
	}
	return *state
}

func (s *Server) handleSetACTemperature(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Temperature int `json:"temperature"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if err := validateTemperature(params.Temperature); err != nil {
		return "", err
	}

	state := s.currentOrDefaults(ctx)
	state.Power = "on"
	state.Temperature = params.Temperature
	if err := s.ac.SetAll(ctx, state); err != nil {
		return "", err
	}
	return fmt.Sprintf("Temperature set to %d°C", params.Temperature), nil
}

func (s *Server) handleSetACMode(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Mode models.Mode `json:"mode"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if !params.Mode.Valid() {
		return "", fmt.Errorf("unknown mode %q", params.Mode)
	}

	state := s.currentOrDefaults(ctx)
	state.Power = "on"
	state.Mode = params.Mode
	if err := s.ac.SetAll(ctx, state); err != nil {
		return "", err
	}
	return fmt.Sprintf("Mode set to %s", params.Mode), nil
}

func (s *Server) handleSetACFanSpeed(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		FanSpeed models.FanSpeed `json:"fan_speed"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if !params.FanSpeed.Valid() {
		return "", fmt.Errorf("unknown fan speed %q", params.FanSpeed)
	}

	state := s.currentOrDefaults(ctx)
	state.Power = "on"
	state.FanSpeed = params.FanSpeed
	if err := s.ac.SetAll(ctx, state); err != nil {
		return "", err
	}
	return fmt.Sprintf("Fan speed set to %s", params.FanSpeed), nil
}

func (s *Server) handleSetACAll(ctx context.Context, args json.RawMessage) (string, error) {
	params := turnOnParams{Mode: models.ModeCool, FanSpeed: models.FanAuto}
	var powered struct {
		Power string `json:"power"`
	}
	if err := json.Unmarshal(args, &powered); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	if powered.Power == "off" {
		if err := s.ac.TurnOff(ctx); err != nil {
			return "", err
		}
		return "AC turned OFF", nil
	}
	if powered.Power != "on" {
		return "", fmt.Errorf("power must be \"on\" or \"off\"")
	}

	temp := 24
	if params.Temperature != nil {
		temp = *params.Temperature
	}
	if err := validateTemperature(temp); err != nil {
		return "", err
	}
	if !params.Mode.Valid() {
		return "", fmt.Errorf("unknown mode %q", params.Mode)
	}
	if !params.FanSpeed.Valid() {
		return "", fmt.Errorf("unknown fan speed %q", params.FanSpeed)
	}

	state := models.ACState{Power: "on", Temperature: temp, Mode: params.Mode, FanSpeed: params.FanSpeed}
	if err := s.ac.SetAll(ctx, state); err != nil {
		return "", err
	}
	return fmt.Sprintf("AC settings updated\nPower: ON\nTemperature: %d°C\nMode: %s\nFan Speed: %s", temp, params.Mode, params.FanSpeed), nil
}

func (s *Server) handleSendCustom(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Command   string `json:"command"`
		Parameter string `json:"parameter"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if params.Command == "" {
		return "", errors.New("command is required")
	}

	if err := s.ac.SendCustom(ctx, params.Command, params.Parameter); err != nil {
		return "", err
	}
	return fmt.Sprintf("Custom command sent\nCommand: %s\nParameter: %s", params.Command, params.Parameter), nil
}

func (s *Server) handleGetDevices(ctx context.Context, _ json.RawMessage) (string, error) {
	list, err := s.ac.Client().Devices(ctx)
	if err != nil {
		return "", err
	}
	if len(list.InfraredRemoteList) == 0 {
		return "No infrared devices found. Add your AC remote via the hub's app first.", nil
	}

	var b strings.Builder
	b.WriteString("Infrared Devices:\n\n")
	for _, dev := range list.InfraredRemoteList {
		fmt.Fprintf(&b, "Name: %s\nType: %s\nDevice ID: %s\nHub ID: %s\n", dev.DeviceName, dev.RemoteType, dev.DeviceID, dev.HubDeviceID)
		b.WriteString(strings.Repeat("-", 40) + "\n")
	}
	return b.String(), nil
}

func (s *Server) handleListCommands(_ context.Context, _ json.RawMessage) (string, error) {
	return `Common AC Commands:

Standard:
  - turnOn / turnOff: power control
  - setAll: set all parameters

Custom (use with send_custom_ac_command):
  - swing: toggle vertical swing
  - swingHorizontal: toggle horizontal swing
  - timer: set timer
  - sleep: activate sleep mode
  - turbo: activate turbo mode
  - economy: energy saving mode
  - quiet: silent mode
  - light: toggle display light

Not all commands work with all AC models.`, nil
}

func (s *Server) handleCheckCredentials(ctx context.Context, _ json.RawMessage) (string, error) {
	var b strings.Builder
	b.WriteString("Credential Status Check:\n\n")

	client := s.ac.Client()
	if client.Token() == "" {
		b.WriteString("SWITCHBOT_TOKEN: not set\n")
	} else {
		fmt.Fprintf(&b, "SWITCHBOT_TOKEN: set (%d chars)\n", len(client.Token()))
	}
	if client.Secret() == "" {
		b.WriteString("SWITCHBOT_SECRET: not set\n")
	} else {
		fmt.Fprintf(&b, "SWITCHBOT_SECRET: set (%d chars)\n", len(client.Secret()))
	}
	if s.ac.DeviceID() == "" {
		b.WriteString("SWITCHBOT_AC_DEVICE_ID: not set\n")
	} else {
		fmt.Fprintf(&b, "SWITCHBOT_AC_DEVICE_ID: %s\n", s.ac.DeviceID())
	}

	if !client.Configured() {
		b.WriteString("\nMissing credentials.")
		return b.String(), nil
	}

	b.WriteString("\nTesting API authentication...\n")
	if _, err := client.Devices(ctx); err != nil {
		fmt.Fprintf(&b, "Authentication failed: %v\n", err)
	} else {
		b.WriteString("Authentication successful.\n")
	}
	return b.String(), nil
}
