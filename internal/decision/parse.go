package decision

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lox/nightbreeze/internal/models"
)

// Parse turns the engine's reply into a validated Decision. The model is
// asked for bare JSON but some models wrap it in markdown fences anyway, so
// those are stripped first. Anything that fails to parse is a reasoning
// failure and surfaces as an error; callers downgrade to action=none.
func Parse(content string) (models.Decision, error) {
	content = stripFences(strings.TrimSpace(content))

	var d models.Decision
	if err := json.Unmarshal([]byte(content), &d); err != nil {
		return models.Decision{}, fmt.Errorf("parse decision: %w", err)
	}

	if !d.Action.Valid() {
		return models.Decision{}, fmt.Errorf("parse decision: unknown action %q", d.Action)
	}

	return Sanitize(d), nil
}

// Sanitize enforces the actuator's valid ranges. A decision with an
// out-of-range temperature or unrecognized mode/fan token is coerced to
// action=none with the rationale preserved; it is never forwarded to the
// actuator unchecked.
func Sanitize(d models.Decision) models.Decision {
	coerce := func(reason string) models.Decision {
		return models.Decision{
			Action:    models.ActionNone,
			Reasoning: strings.TrimSpace(d.Reasoning + " [" + reason + "]"),
		}
	}

	if d.Temperature != nil && (*d.Temperature < models.TempMin || *d.Temperature > models.TempMax) {
		return coerce(fmt.Sprintf("rejected: temperature %d outside %d-%d", *d.Temperature, models.TempMin, models.TempMax))
	}
	if d.Mode != nil && !d.Mode.Valid() {
		return coerce(fmt.Sprintf("rejected: unknown mode %q", *d.Mode))
	}
	if d.FanSpeed != nil && !d.FanSpeed.Valid() {
		return coerce(fmt.Sprintf("rejected: unknown fan speed %q", *d.FanSpeed))
	}
	return d
}

// stripFences removes a surrounding markdown code block, with or without a
// language tag.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 && !strings.HasPrefix(s, "{") {
		// Drop a language tag like "json" on the opening fence line.
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
