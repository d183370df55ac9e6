package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SwitchBotAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightbreeze_switchbot_api_calls_total",
			Help: "Total SwitchBot API calls",
		},
		[]string{"endpoint", "status"},
	)

	SwitchBotAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nightbreeze_switchbot_api_latency_seconds",
			Help:    "SwitchBot API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightbreeze_runs_total",
			Help: "Automation runs by decided action and execution outcome",
		},
		[]string{"action", "executed"},
	)

	DecisionCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightbreeze_decision_calls_total",
			Help: "Reasoning engine calls by outcome",
		},
		[]string{"status"},
	)

	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightbreeze_tool_calls_total",
			Help: "RPC tool invocations by tool name and outcome",
		},
		[]string{"tool", "status"},
	)
)
