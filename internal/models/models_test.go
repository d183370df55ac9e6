package models

import "testing"

func TestACStateEqual(t *testing.T) {
	on := ACState{Power: "on", Temperature: 22, Mode: ModeCool, FanSpeed: FanAuto}

	tests := []struct {
		name string
		a, b ACState
		want bool
	}{
		{"identical on states", on, on, true},
		{"different temperature", on, ACState{Power: "on", Temperature: 23, Mode: ModeCool, FanSpeed: FanAuto}, false},
		{"different mode", on, ACState{Power: "on", Temperature: 22, Mode: ModeDry, FanSpeed: FanAuto}, false},
		{"on vs off", on, ACState{Power: "off"}, false},
		{"off states ignore setpoints", ACState{Power: "off", Temperature: 18}, ACState{Power: "off", Temperature: 26, Mode: ModeHeat}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestACStateString(t *testing.T) {
	off := ACState{Power: "off", Temperature: 22}
	if off.String() != "off" {
		t.Errorf("off state = %q", off.String())
	}
	on := ACState{Power: "on", Temperature: 24, Mode: ModeCool, FanSpeed: FanAuto}
	if on.String() != "on 24°C cool/auto" {
		t.Errorf("on state = %q", on.String())
	}
}

func TestValidation(t *testing.T) {
	if !ActionTurnOn.Valid() || Action("explode").Valid() {
		t.Error("action validation")
	}
	if !ModeDry.Valid() || Mode("turbo").Valid() {
		t.Error("mode validation")
	}
	if !FanHigh.Valid() || FanSpeed("max").Valid() {
		t.Error("fan speed validation")
	}
}
