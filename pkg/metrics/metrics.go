// Package metrics wraps the small set of Prometheus counters and
// histograms named by §4.16: LLM call latency and outcome per provider,
// circuit breaker state transitions, rate-limiter decisions, and workflow
// stage durations. No `/metrics` HTTP handler is mounted here — that
// remains out of scope per spec.md §6 — but every instrumentation point
// registers against the default Prometheus registry, so one can be
// mounted trivially with `promhttp.Handler()`.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LLMCallsTotal counts every LLM provider invocation by provider and
	// outcome ("success", "error", "breaker_open").
	LLMCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jeex_llm_calls_total",
		Help: "Total LLM provider calls by provider and outcome.",
	}, []string{"provider", "outcome"})

	// LLMCallDuration records wall-clock latency of LLM provider calls,
	// labeled by provider and outcome.
	LLMCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jeex_llm_call_duration_seconds",
		Help:    "LLM provider call latency in seconds, by provider and outcome.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "outcome"})

	// BreakerStateTransitionsTotal counts circuit breaker state changes by
	// provider and the state transitioned to.
	BreakerStateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jeex_llm_breaker_state_transitions_total",
		Help: "Circuit breaker state transitions by provider and resulting state.",
	}, []string{"provider", "state"})

	// RateLimitDecisionsTotal counts sliding-window rate limiter decisions
	// by policy and outcome ("allowed", "denied", "degraded").
	RateLimitDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jeex_ratelimit_decisions_total",
		Help: "Rate limiter decisions by policy and outcome.",
	}, []string{"policy", "decision"})

	// WorkflowStageDuration records how long each of the four pipeline
	// stages took, labeled by stage and outcome ("success", "error").
	WorkflowStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jeex_workflow_stage_duration_seconds",
		Help:    "Workflow stage execution latency in seconds, by stage and outcome.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage", "outcome"})
)

// ObserveLLMCall records one LLM provider call's outcome and latency.
func ObserveLLMCall(provider, outcome string, duration time.Duration) {
	LLMCallsTotal.WithLabelValues(provider, outcome).Inc()
	LLMCallDuration.WithLabelValues(provider, outcome).Observe(duration.Seconds())
}

// RecordBreakerTransition records a circuit breaker moving into state for
// provider ("closed", "open", or "half-open").
func RecordBreakerTransition(provider, state string) {
	BreakerStateTransitionsTotal.WithLabelValues(provider, state).Inc()
}

// RecordRateLimitDecision records a rate limiter decision for policy
// ("allowed", "denied", or "degraded").
func RecordRateLimitDecision(policy, decision string) {
	RateLimitDecisionsTotal.WithLabelValues(policy, decision).Inc()
}

// ObserveWorkflowStage records one workflow stage's outcome and latency.
func ObserveWorkflowStage(stage, outcome string, duration time.Duration) {
	WorkflowStageDuration.WithLabelValues(stage, outcome).Observe(duration.Seconds())
}
