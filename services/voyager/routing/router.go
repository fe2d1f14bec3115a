// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routing classifies an incoming message into an intent, slot
// set and confidence.
//
// The router applies strict precedence: cheap deterministic guards,
// then the direct-flight heuristic, then the classifier cascade
// (keyword first, LLM only on low keyword confidence). A message that
// stays below the confidence threshold resolves to the unknown intent
// and the turn short-circuits to a clarifying question upstream.
//
// The router never fails on unparseable input — the worst case is
// IntentUnknown with minimal confidence.
package routing

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/classifier"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

var tracer = otel.Tracer("aleutian.voyager.routing")

// Confidence thresholds for the cascade.
const (
	// EscalationThreshold: keyword results below this escalate to the
	// LLM classifier.
	EscalationThreshold = 0.6

	// UnknownThreshold: results below this resolve to IntentUnknown
	// and the turn asks a clarifying question instead of calling
	// tools.
	UnknownThreshold = 0.5
)

// Router resolves intents with confidence-gated fallbacks.
//
// Thread Safety: safe for concurrent use after construction.
type Router struct {
	keyword *classifier.KeywordClassifier
	llm     *classifier.LLMClassifier // nil disables LLM escalation
}

// New creates a Router. llmClassifier may be nil, in which case the
// cascade stops at the keyword stage.
func New(keyword *classifier.KeywordClassifier, llmClassifier *classifier.LLMClassifier) *Router {
	return &Router{keyword: keyword, llm: llmClassifier}
}

// Route classifies one message given the thread's prior slots.
//
// Side effect: when a deterministic guard resolves the intent, stale
// workflow-state slots are cleared from priorSlots in place so leftover
// consent flags cannot contaminate unrelated follow-on turns.
func (r *Router) Route(ctx context.Context, message string, priorSlots datatypes.Slots) datatypes.RouteResult {
	ctx, span := tracer.Start(ctx, "Router.Route")
	defer span.End()

	result := r.resolve(ctx, message)
	span.SetAttributes(
		attribute.String("intent", string(result.Intent)),
		attribute.Float64("confidence", result.Confidence),
		attribute.Bool("guard_handled", result.GuardHandled),
	)

	if result.GuardHandled && priorSlots != nil {
		if n := priorSlots.ClearWorkflow(); n > 0 {
			slog.Debug("cleared stale workflow slots on guard hit", "count", n, "intent", result.Intent)
		}
	}
	return result
}

func (r *Router) resolve(ctx context.Context, message string) datatypes.RouteResult {
	// 1. Deterministic guards.
	if result, ok := checkGuards(message); ok {
		return result
	}

	// 2. Direct-flight heuristic.
	if result, ok := checkFlightHeuristic(message); ok {
		return result
	}

	// 3. Classifier cascade: keyword first, LLM on low confidence.
	cls := r.keyword.Classify(ctx, message)
	if cls.Confidence < EscalationThreshold && r.llm != nil {
		escalated := r.llm.Classify(ctx, message)
		if escalated.Confidence > cls.Confidence {
			cls = escalated
		}
	}

	slots := extractSlots(message)
	for k, v := range cls.Slots {
		if v != "" {
			slots[k] = v
		}
	}

	// 4. Confidence gate.
	if cls.Confidence < UnknownThreshold {
		return datatypes.RouteResult{
			Intent:     datatypes.IntentUnknown,
			Slots:      slots,
			Confidence: cls.Confidence,
		}
	}

	return datatypes.RouteResult{
		Intent:       cls.Intent,
		Slots:        slots,
		Confidence:   cls.Confidence,
		NeedExternal: needsExternal(cls.Intent),
	}
}

// needsExternal reports whether an intent requires tool calls to
// answer well.
func needsExternal(intent datatypes.Intent) bool {
	switch intent {
	case datatypes.IntentSystem, datatypes.IntentUnknown:
		return false
	default:
		return true
	}
}
