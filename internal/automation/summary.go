package automation

import (
	"fmt"
	"strings"
)

// Summary renders the operator-facing report of what was observed, decided,
// and (not) executed. It is printed regardless of audit-log success.
func (r *Result) Summary() string {
	var b strings.Builder

	b.WriteString("Observed:\n")
	if r.Record.RoomTemperature.Valid {
		fmt.Fprintf(&b, "  room:    %.1f°C", r.Record.RoomTemperature.Float64)
		if r.Record.RoomHumidity.Valid {
			fmt.Fprintf(&b, ", %.0f%% humidity", r.Record.RoomHumidity.Float64)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("  room:    unavailable\n")
	}
	if r.Record.OutsideTemperature.Valid {
		fmt.Fprintf(&b, "  outside: %.1f°C\n", r.Record.OutsideTemperature.Float64)
	} else {
		b.WriteString("  outside: unavailable\n")
	}
	fmt.Fprintf(&b, "  ac:      %s", r.Record.ACPower)
	if r.Record.ACTemperature.Valid {
		fmt.Fprintf(&b, " %d°C", r.Record.ACTemperature.Int64)
	}
	if r.Record.ACMode.Valid {
		fmt.Fprintf(&b, " %s", r.Record.ACMode.String)
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Decision: %s\n", r.Decision.Action)
	fmt.Fprintf(&b, "  %s\n\n", r.Decision.Reasoning)

	switch {
	case r.Record.Executed:
		b.WriteString("Executed: yes\n")
	case r.Verdict.Execute:
		b.WriteString("Executed: no (actuator command failed)\n")
	default:
		fmt.Fprintf(&b, "Executed: no (%s: %s)\n", r.Verdict.Rule, r.Verdict.Reason)
	}

	return b.String()
}
