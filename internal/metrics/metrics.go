// Package metrics exposes the process's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Turn processing latency (seconds)
	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "butler_turn_duration_seconds",
			Help:    "Conversation turn processing time in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
		[]string{"status"},
	)

	// Dialog outcomes per intent
	DialogOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "butler_dialog_outcomes_total",
			Help: "Dialog controller verdicts by intent",
		},
		[]string{"intent", "status"}, // status: needs_slot, needs_approval, ready, invalid
	)

	// Emitted actions
	ActionsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "butler_actions_emitted_total",
			Help: "Action records emitted to the host",
		},
		[]string{"action"},
	)

	// Emissions refused by the emitter
	SchemaViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "butler_schema_violations_total",
			Help: "Emissions refused because the slot set was not ready or invalid",
		},
	)

	// Tool dispatcher calls
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "butler_tool_calls_total",
			Help: "Tool dispatcher invocations",
		},
		[]string{"tool", "status"}, // status: success, error
	)

	// Tokens spent on model calls
	LLMTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "butler_llm_tokens_total",
			Help: "Tokens reported by the model provider",
		},
		[]string{"kind"}, // kind: input, output
	)

	// Turns waiting in gateway lanes
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "butler_gateway_queued_turns",
			Help: "Turns accepted by the gateway and not yet started",
		},
	)
)

// ObserveTurn records how long a turn took.
func ObserveTurn(status string, d time.Duration) {
	TurnDuration.WithLabelValues(status).Observe(d.Seconds())
}

// IncDialogOutcome counts a controller verdict.
func IncDialogOutcome(intent, status string) {
	DialogOutcomes.WithLabelValues(intent, status).Inc()
}

// IncActionEmitted counts an emitted action.
func IncActionEmitted(action string) {
	ActionsEmitted.WithLabelValues(action).Inc()
}

// IncSchemaViolation counts a refused emission.
func IncSchemaViolation() {
	SchemaViolations.Inc()
}

// IncToolCall counts a dispatcher call.
func IncToolCall(tool, status string) {
	ToolCalls.WithLabelValues(tool, status).Inc()
}

// AddLLMTokens adds one completion's token usage.
func AddLLMTokens(input, output int) {
	LLMTokens.WithLabelValues("input").Add(float64(input))
	LLMTokens.WithLabelValues("output").Add(float64(output))
}
