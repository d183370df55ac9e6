package switchbot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lox/nightbreeze/internal/models"
)

// AC issues air-conditioner commands through an infrared remote registered
// on a hub. Commanded state is the only state there is: the remote cannot
// confirm what the unit actually did.
type AC struct {
	client   *Client
	deviceID string
}

func NewAC(client *Client, deviceID string) *AC {
	return &AC{client: client, deviceID: deviceID}
}

// DeviceID returns the configured AC remote ID.
func (a *AC) DeviceID() string { return a.deviceID }

// Client returns the underlying API client.
func (a *AC) Client() *Client { return a.client }

type acStatusBody struct {
	Power       string `json:"power"`
	Temperature int    `json:"temperature"`
	Mode        string `json:"mode"`
	FanSpeed    string `json:"fanSpeed"`
}

// Status reads the hub's record of the AC state. ErrStatusUnavailable is a
// normal outcome for infrared-only installations; treat the result as
// advisory either way.
func (a *AC) Status(ctx context.Context) (*models.ACState, error) {
	body, err := a.client.DeviceStatus(ctx, a.deviceID)
	if err != nil {
		return nil, err
	}

	var st acStatusBody
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("unmarshal ac status: %w", err)
	}
	if st.Power == "" {
		return nil, ErrStatusUnavailable
	}

	state := &models.ACState{
		Power:       st.Power,
		Temperature: st.Temperature,
		Mode:        models.Mode(st.Mode),
		FanSpeed:    models.FanSpeed(st.FanSpeed),
	}
	return state, nil
}

// TurnOff sends the discrete off command.
func (a *AC) TurnOff(ctx context.Context) error {
	return a.client.SendCommand(ctx, a.deviceID, "turnOff", "default")
}

// SetAll programs power, temperature, mode and fan speed in a single IR
// transmission. Off states route through TurnOff so the remote's toggle
// state stays coherent.
func (a *AC) SetAll(ctx context.Context, state models.ACState) error {
	if !state.On() {
		return a.TurnOff(ctx)
	}
	if state.Temperature < models.TempMin || state.Temperature > models.TempMax {
		return fmt.Errorf("temperature %d outside %d-%d", state.Temperature, models.TempMin, models.TempMax)
	}
	if !state.Mode.Valid() {
		return fmt.Errorf("unknown mode %q", state.Mode)
	}
	if !state.FanSpeed.Valid() {
		return fmt.Errorf("unknown fan speed %q", state.FanSpeed)
	}

	parameter := fmt.Sprintf("%d,%s,%s,on", state.Temperature, state.Mode, state.FanSpeed)
	return a.client.SendCommand(ctx, a.deviceID, "setAll", parameter)
}

// SendCustom passes a non-standard command (swing, turbo, sleep, ...) through
// unchanged. Support varies by AC model.
func (a *AC) SendCustom(ctx context.Context, command, parameter string) error {
	return a.client.SendCommand(ctx, a.deviceID, command, parameter)
}

type hubStatusBody struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// RoomConditions reads temperature and humidity from the hub the AC remote
// is registered on. The hub is found through the device list because the
// remote's own record is the only place its parent hub appears.
func (a *AC) RoomConditions(ctx context.Context) (*models.SensorReading, error) {
	list, err := a.client.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve hub: %w", err)
	}

	var hubID string
	for _, remote := range list.InfraredRemoteList {
		if remote.DeviceID == a.deviceID {
			hubID = remote.HubDeviceID
			break
		}
	}
	if hubID == "" {
		return nil, fmt.Errorf("no hub found for device %s", a.deviceID)
	}

	body, err := a.client.DeviceStatus(ctx, hubID)
	if err != nil {
		return nil, fmt.Errorf("hub status: %w", err)
	}

	var st hubStatusBody
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("unmarshal hub status: %w", err)
	}

	return &models.SensorReading{
		Temperature: st.Temperature,
		Humidity:    st.Humidity,
		At:          time.Now().UTC(),
	}, nil
}
