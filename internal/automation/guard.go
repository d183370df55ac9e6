package automation

import (
	"fmt"
	"time"

	"github.com/lox/nightbreeze/internal/config"
	"github.com/lox/nightbreeze/internal/models"
)

// Verdict is the guard's ruling on whether a decision gets executed.
type Verdict struct {
	Execute bool
	Rule    string
	Reason  string
}

// GuardInput is everything the guard rules read. Last is the last commanded
// state, nil when unknown; the identical-state rule compares against
// commanded state only, never an assumed physical state, because infrared
// actuation has no feedback channel.
type GuardInput struct {
	DryRun         bool
	Force          bool
	Decision       models.Decision
	Desired        *models.ACState
	Last           *models.ACState
	LastExecutedAt *time.Time
	Now            time.Time
}

// Guard rule identifiers, in evaluation order. First match wins; the
// ordering is a contract, not an implementation detail.
const (
	RuleDryRun         = "dry_run"
	RuleNoAction       = "no_action"
	RuleIdenticalState = "identical_state"
	RuleMinInterval    = "min_change_interval"
	RuleActiveHours    = "active_hours"
	RuleApproved       = "approved"
)

// Evaluate applies the safety and idempotency rules in order.
func Evaluate(in GuardInput, sched config.Schedule, minEvery time.Duration) Verdict {
	if in.DryRun {
		return Verdict{Rule: RuleDryRun, Reason: "dry run"}
	}

	if in.Decision.Action == models.ActionNone {
		return Verdict{Rule: RuleNoAction, Reason: "no action needed"}
	}

	// Many IR power commands are stateless toggles. Resending an identical
	// "on" is not a no-op on the physical device, so identical requests are
	// suppressed outright rather than tolerated as redundant.
	if in.Last != nil && in.Desired != nil && in.Desired.Equal(*in.Last) {
		return Verdict{
			Rule:   RuleIdenticalState,
			Reason: fmt.Sprintf("requested state %s matches last commanded state", in.Desired),
		}
	}

	if !in.Force && minEvery > 0 && in.LastExecutedAt != nil {
		if since := in.Now.Sub(*in.LastExecutedAt); since < minEvery {
			return Verdict{
				Rule:   RuleMinInterval,
				Reason: fmt.Sprintf("last change %s ago, minimum interval %s", since.Round(time.Second), minEvery),
			}
		}
	}

	if !in.Force && !sched.Contains(in.Now.Hour()) {
		return Verdict{
			Rule:   RuleActiveHours,
			Reason: fmt.Sprintf("hour %02d outside active window %02d-%02d", in.Now.Hour(), sched.StartHour, sched.EndHour),
		}
	}

	return Verdict{Execute: true, Rule: RuleApproved, Reason: "approved"}
}
