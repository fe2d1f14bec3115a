// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability exposes Prometheus metrics for the turn
// pipeline. Recording is fire-and-forget: orchestration correctness
// never depends on a metric call succeeding.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "aleutian"
	subsystem = "voyager"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "turns_total",
		Help:      "Turns processed, by routed intent and terminal state.",
	}, []string{"intent", "state"})

	turnDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "turn_duration_seconds",
		Help:      "End-to-end turn latency.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"intent"})

	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "tool_calls_total",
		Help:      "Tool invocations, by tool and outcome.",
	}, []string{"tool", "outcome"})

	toolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "tool_call_duration_seconds",
		Help:      "Tool call latency including the resilience layer.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"tool"})

	breakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "breaker_transitions_total",
		Help:      "Circuit breaker state transitions, by target and new state.",
	}, []string{"target", "state"})

	routerDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "router_decisions_total",
		Help:      "Routing outcomes, by intent and resolution stage.",
	}, []string{"intent", "stage"})

	verificationVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "verification_verdicts_total",
		Help:      "Grounding verdicts recorded on receipts.",
	}, []string{"verdict"})
)

// RecordTurn records one completed turn.
func RecordTurn(intent, state string, elapsed time.Duration) {
	turnsTotal.WithLabelValues(intent, state).Inc()
	turnDuration.WithLabelValues(intent).Observe(elapsed.Seconds())
}

// RecordToolCall records one tool invocation.
func RecordToolCall(tool, outcome string, elapsed time.Duration) {
	toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	toolCallDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// RecordBreakerTransition records a circuit breaker state change.
func RecordBreakerTransition(target, state string) {
	breakerTransitions.WithLabelValues(target, state).Inc()
}

// RecordRouterDecision records which stage resolved an intent
// ("guard", "heuristic", "keyword", "llm", "unknown").
func RecordRouterDecision(intent, stage string) {
	routerDecisions.WithLabelValues(intent, stage).Inc()
}

// RecordVerdict records a grounding verdict.
func RecordVerdict(verdict string) {
	verificationVerdicts.WithLabelValues(verdict).Inc()
}
