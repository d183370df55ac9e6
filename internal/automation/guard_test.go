package automation

import (
	"testing"
	"time"

	"github.com/lox/nightbreeze/internal/config"
	"github.com/lox/nightbreeze/internal/models"
)

func TestEvaluate(t *testing.T) {
	sched := config.Schedule{StartHour: 22, EndHour: 7}
	minEvery := 30 * time.Minute

	night := time.Date(2026, 1, 15, 23, 30, 0, 0, time.UTC)
	day := time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC)
	recent := night.Add(-10 * time.Minute)
	longAgo := night.Add(-2 * time.Hour)

	on22 := models.ACState{Power: "on", Temperature: 22, Mode: models.ModeCool, FanSpeed: models.FanAuto}
	on20 := models.ACState{Power: "on", Temperature: 20, Mode: models.ModeCool, FanSpeed: models.FanAuto}
	off := models.ACState{Power: "off"}

	turnOn := models.Decision{Action: models.ActionTurnOn}

	tests := []struct {
		name    string
		in      GuardInput
		execute bool
		rule    string
	}{
		{
			name:    "dry run wins over everything",
			in:      GuardInput{DryRun: true, Force: true, Decision: turnOn, Desired: &on22, Now: night},
			execute: false,
			rule:    RuleDryRun,
		},
		{
			name:    "no action",
			in:      GuardInput{Decision: models.Decision{Action: models.ActionNone}, Now: night},
			execute: false,
			rule:    RuleNoAction,
		},
		{
			name:    "identical state suppressed",
			in:      GuardInput{Decision: turnOn, Desired: &on22, Last: &on22, Now: night},
			execute: false,
			rule:    RuleIdenticalState,
		},
		{
			name:    "identical off states suppressed despite differing setpoints",
			in:      GuardInput{Decision: models.Decision{Action: models.ActionTurnOff}, Desired: &off, Last: &models.ACState{Power: "off", Temperature: 25}, Now: night},
			execute: false,
			rule:    RuleIdenticalState,
		},
		{
			name:    "identical state beats force",
			in:      GuardInput{Force: true, Decision: turnOn, Desired: &on22, Last: &on22, Now: night},
			execute: false,
			rule:    RuleIdenticalState,
		},
		{
			name:    "unknown last state does not suppress",
			in:      GuardInput{Decision: turnOn, Desired: &on22, Last: nil, Now: night},
			execute: true,
			rule:    RuleApproved,
		},
		{
			name:    "recent change suppressed",
			in:      GuardInput{Decision: turnOn, Desired: &on20, Last: &on22, LastExecutedAt: &recent, Now: night},
			execute: false,
			rule:    RuleMinInterval,
		},
		{
			name:    "force bypasses min interval",
			in:      GuardInput{Force: true, Decision: turnOn, Desired: &on20, Last: &on22, LastExecutedAt: &recent, Now: night},
			execute: true,
			rule:    RuleApproved,
		},
		{
			name:    "old change does not suppress",
			in:      GuardInput{Decision: turnOn, Desired: &on20, Last: &on22, LastExecutedAt: &longAgo, Now: night},
			execute: true,
			rule:    RuleApproved,
		},
		{
			name:    "outside active hours",
			in:      GuardInput{Decision: turnOn, Desired: &on22, Now: day},
			execute: false,
			rule:    RuleActiveHours,
		},
		{
			name:    "force bypasses active hours",
			in:      GuardInput{Force: true, Decision: turnOn, Desired: &on22, Now: day},
			execute: true,
			rule:    RuleApproved,
		},
		{
			name:    "approved inside window",
			in:      GuardInput{Decision: turnOn, Desired: &on22, Now: night},
			execute: true,
			rule:    RuleApproved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Evaluate(tt.in, sched, minEvery)
			if v.Execute != tt.execute {
				t.Errorf("Execute = %v, want %v (reason: %s)", v.Execute, tt.execute, v.Reason)
			}
			if v.Rule != tt.rule {
				t.Errorf("Rule = %q, want %q", v.Rule, tt.rule)
			}
		})
	}
}

func TestEvaluateZeroMinInterval(t *testing.T) {
	night := time.Date(2026, 1, 15, 23, 0, 0, 0, time.UTC)
	justNow := night.Add(-time.Minute)

	v := Evaluate(GuardInput{
		Decision:       models.Decision{Action: models.ActionTurnOn},
		Desired:        &models.ACState{Power: "on", Temperature: 22, Mode: models.ModeCool, FanSpeed: models.FanAuto},
		LastExecutedAt: &justNow,
		Now:            night,
	}, config.Schedule{StartHour: 22, EndHour: 7}, 0)

	if !v.Execute {
		t.Errorf("zero interval should disable the min-change rule, got %s: %s", v.Rule, v.Reason)
	}
}
