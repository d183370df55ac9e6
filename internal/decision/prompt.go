package decision

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lox/nightbreeze/internal/config"
	"github.com/lox/nightbreeze/internal/models"
)

// Context is the snapshot a run hands to the reasoning engine. Nil fields
// mean the collaborator could not be read this run; the engine is told so
// and must still decide.
type Context struct {
	Room    *models.SensorReading
	Weather *models.WeatherReading
	ACState *models.ACState
	Now     time.Time
	History []models.RunRecord
}

// historyEntry is the trimmed view of a past run shown to the engine.
type historyEntry struct {
	CreatedAt string  `json:"created_at"`
	Action    string  `json:"action"`
	Reasoning string  `json:"reasoning"`
	Executed  bool    `json:"executed"`
	RoomTemp  *float64 `json:"room_temperature,omitempty"`
}

// BuildPrompt renders the deterministic decision prompt: numeric readings,
// the sleep-science bands from the policy, and recent history. Same inputs,
// same prompt.
func BuildPrompt(dc Context, rules config.Rules, notes string) string {
	var b strings.Builder

	b.WriteString("You are an AI controlling a home AC at night. User sleeps WITH A BLANKET.\n\n")

	b.WriteString("CURRENT CONDITIONS:\n")
	if dc.Room != nil {
		fmt.Fprintf(&b, "- Room: %.1f°C, %.0f%% humidity\n", dc.Room.Temperature, dc.Room.Humidity)
	} else {
		b.WriteString("- Room: unavailable\n")
	}
	if dc.Weather != nil {
		fmt.Fprintf(&b, "- Outside: %.1f°C (feels like %.1f°C)\n", dc.Weather.Temperature, dc.Weather.ApparentTemperature)
		fmt.Fprintf(&b, "- Weather: %s\n", dc.Weather.Description)
	} else {
		b.WriteString("- Outside: unavailable\n- Weather: unavailable\n")
	}
	fmt.Fprintf(&b, "- Time: %s\n\n", dc.Now.Format("15:04"))

	b.WriteString("AC STATUS:\n")
	if dc.ACState != nil {
		fmt.Fprintf(&b, "- Power: %s\n", dc.ACState.Power)
		fmt.Fprintf(&b, "- Temperature: %d°C\n", dc.ACState.Temperature)
		fmt.Fprintf(&b, "- Mode: %s\n\n", dc.ACState.Mode)
	} else {
		b.WriteString("- Power: unknown\n- Temperature: unknown\n- Mode: unknown\n\n")
	}

	b.WriteString("SLEEP SCIENCE (user sleeps with blanket):\n")
	fmt.Fprintf(&b, "- OPTIMAL: %.0f-%.0f°C (cool room + blanket = best sleep)\n", rules.OptimalMin, rules.OptimalMax)
	fmt.Fprintf(&b, "- ACCEPTABLE: %.0f-%.0f°C (comfortable, no AC needed)\n", rules.OptimalMax, rules.AcceptableMax)
	fmt.Fprintf(&b, "- TOO HOT: >%.0f°C (need cooling)\n", rules.AcceptableMax)
	fmt.Fprintf(&b, "- TOO COLD: <%.0f°C (need heating)\n\n", rules.OptimalMin)

	b.WriteString("DECISION LOGIC:\n")
	fmt.Fprintf(&b, "1. Room %.0f-%.0f°C -> \"none\" or \"turn_off\" (comfortable range)\n", rules.OptimalMin, rules.AcceptableMax)
	fmt.Fprintf(&b, "2. Room >%.0f°C -> COOL mode (too hot)\n", rules.AcceptableMax)
	fmt.Fprintf(&b, "3. Room <%.0f°C -> HEAT mode (too cold)\n", rules.OptimalMin)
	b.WriteString("4. If AC is ON but room is comfortable -> \"turn_off\" (save energy)\n")
	b.WriteString("5. If outside is cold and room is fine -> \"turn_off\" (natural cooling works)\n\n")

	if notes != "" {
		b.WriteString(notes)
		b.WriteString("\n\n")
	}

	b.WriteString("HISTORY: ")
	b.WriteString(renderHistory(dc.History))
	b.WriteString("\n\n")

	b.WriteString(`Respond with ONLY JSON:
{"action": "none"|"turn_on"|"turn_off"|"adjust_temp"|"change_mode", "temperature": <number or null>, "mode": "cool"|"heat"|"auto"|"fan"|"dry"|null, "fan_speed": "auto"|"low"|"medium"|"high"|null, "reasoning": "<brief>"}`)

	return b.String()
}

// historyLimit keeps the prompt small; two runs is enough to show a trend.
const historyLimit = 2

func renderHistory(records []models.RunRecord) string {
	if len(records) > historyLimit {
		records = records[:historyLimit]
	}

	entries := make([]historyEntry, 0, len(records))
	for _, r := range records {
		e := historyEntry{
			CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
			Action:    string(r.Action),
			Reasoning: r.Reasoning,
			Executed:  r.Executed,
		}
		if r.RoomTemperature.Valid {
			v := r.RoomTemperature.Float64
			e.RoomTemp = &v
		}
		entries = append(entries, e)
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return "[]"
	}
	return string(data)
}
