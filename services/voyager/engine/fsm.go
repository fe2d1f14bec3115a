// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/observability"
)

// turnState names one FSM state.
type turnState int

const (
	statePlanning turnState = iota
	stateExecuting
	stateBlending
	stateVerifying
	stateDone
	stateAborted
)

func (s turnState) String() string {
	switch s {
	case statePlanning:
		return "planning"
	case stateExecuting:
		return "executing"
	case stateBlending:
		return "blending"
	case stateVerifying:
		return "verifying"
	case stateDone:
		return "done"
	case stateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// maxToolConcurrency bounds how many of one plan's tool calls run at
// once.
const maxToolConcurrency = 4

// turn carries all mutable state of one pass through the FSM.
type turn struct {
	engine *Engine

	threadID string
	message  string

	priorSlots datatypes.Slots
	slots      datatypes.Slots
	lastIntent datatypes.Intent
	intent     datatypes.Intent

	state         turnState
	steps         int
	plan          datatypes.Plan
	facts         []datatypes.Fact
	decisions     []datatypes.Decision
	reply         string
	verified      bool
	verdict       datatypes.Verdict
	stateless     bool
	tokenEstimate int
}

func (e *Engine) newTurn(threadID, message string) *turn {
	return &turn{
		engine:   e,
		threadID: threadID,
		message:  message,
		state:    statePlanning,
	}
}

func (t *turn) decide(action, rationale string, confidence float64) {
	t.decisions = append(t.decisions, datatypes.Decision{
		Action: action, Rationale: rationale, Confidence: confidence,
	})
}

// step charges one unit against the turn budget and reports whether
// the turn may continue.
func (t *turn) step(ctx context.Context) bool {
	t.steps++
	if t.steps > t.engine.cfg.MaxSteps {
		t.decide("abort", "step budget exhausted", 0)
		return false
	}
	if ctx.Err() != nil {
		t.decide("abort", "turn timeout", 0)
		return false
	}
	return true
}

// run drives the state machine to a terminal state. Any budget or
// timeout violation aborts with the best partial reply available.
func (t *turn) run(ctx context.Context) {
	t.engine.loadContext(ctx, t)
	t.route(ctx)

	for {
		switch t.state {
		case statePlanning:
			if !t.step(ctx) {
				t.abort()
				return
			}
			t.planning(ctx)
		case stateExecuting:
			if !t.step(ctx) {
				t.abort()
				return
			}
			t.executing(ctx)
		case stateBlending:
			if !t.step(ctx) {
				t.abort()
				return
			}
			t.blending(ctx)
		case stateVerifying:
			if !t.step(ctx) {
				t.abort()
				return
			}
			t.verifying(ctx)
		case stateDone, stateAborted:
			return
		}
	}
}

// route classifies the message and carries surviving slots across the
// intent change.
func (t *turn) route(ctx context.Context) {
	result := t.engine.router.Route(ctx, t.message, t.priorSlots)
	t.intent = result.Intent

	stage := "keyword"
	if result.GuardHandled {
		stage = "guard"
	} else if result.Intent == datatypes.IntentUnknown {
		stage = "unknown"
	}
	observability.RecordRouterDecision(string(t.intent), stage)
	t.decide("route", fmt.Sprintf("intent=%s", t.intent), result.Confidence)

	// Slots that survive the intent change, then this turn's new slots
	// on top.
	t.slots = t.engine.tr.Transition(t.priorSlots, t.lastIntent, t.intent)
	now := time.Now()
	for name, value := range result.Slots {
		t.slots.Set(name, value, now)
	}

	// A message the router cannot place gets a clarifying question,
	// zero tool calls, zero citations.
	if t.intent == datatypes.IntentUnknown {
		t.reply = clarifyingQuestion(t.intent)
		t.decide("clarify", "routing ambiguous", result.Confidence)
		t.state = stateDone
	}
}

// planning asks the model for a structured plan.
func (t *turn) planning(ctx context.Context) {
	plan, est, err := t.engine.buildPlan(ctx, t.message, t.intent, t.slots)
	t.tokenEstimate += est
	if err != nil {
		// A failed planning call degrades to a clarifying question,
		// not an error.
		slog.Warn("planning failed", "thread_id", t.threadID, "error", err)
		t.reply = clarifyingQuestion(t.intent)
		t.decide("clarify", "planning failed: "+err.Error(), 0)
		t.state = stateAborted
		return
	}
	t.plan = plan
	t.decide("plan", fmt.Sprintf("%d tool call(s), verify=%v", len(plan.Calls), plan.Verify), plan.Confidence)

	if plan.Confidence < t.engine.cfg.PlanConfidence {
		t.reply = clarifyingQuestion(t.intent)
		t.decide("clarify", "plan confidence below threshold", plan.Confidence)
		t.state = stateDone
		return
	}
	t.state = stateExecuting
}

// executing dispatches planned calls concurrently. Facts land in plan
// order regardless of completion order; a failed call is logged and
// dropped, never fatal.
func (t *turn) executing(ctx context.Context) {
	if len(t.plan.Calls) == 0 {
		t.state = stateBlending
		return
	}

	results := make([][]datatypes.Fact, len(t.plan.Calls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxToolConcurrency)

	for i, call := range t.plan.Calls {
		if !t.step(ctx) {
			break
		}
		g.Go(func() error {
			start := time.Now()
			facts, err := t.engine.registry.Invoke(gctx, call)
			if err != nil {
				observability.RecordToolCall(call.Tool, "failure", time.Since(start))
				slog.Warn("tool call dropped", "tool", call.Tool, "error", err)
				return nil // single tool failure never aborts the turn
			}
			observability.RecordToolCall(call.Tool, "success", time.Since(start))
			results[i] = facts
			return nil
		})
	}
	_ = g.Wait()

	for i, facts := range results {
		if len(facts) > 0 {
			t.decide("tool", t.plan.Calls[i].Tool, 1)
			t.facts = append(t.facts, facts...)
		}
	}
	t.state = stateBlending
}

// blending folds facts into a natural reply, falling back to a
// deterministic listing when the model call fails.
func (t *turn) blending(ctx context.Context) {
	reply, est, err := t.engine.blendReply(ctx, t.message, t.facts)
	t.tokenEstimate += est
	if err != nil {
		slog.Warn("blending failed, using fallback reply", "thread_id", t.threadID, "error", err)
		reply = fallbackReply(t.intent, t.facts)
		t.decide("blend_fallback", err.Error(), 0)
	} else {
		t.decide("blend", "model reply", 1)
	}
	t.reply = reply

	if t.plan.Verify {
		t.state = stateVerifying
		return
	}
	t.state = stateDone
}

// verifying grades the reply against the facts. The verdict is
// recorded, never blocking.
func (t *turn) verifying(ctx context.Context) {
	result := t.engine.verifier.Verify(ctx, t.reply, t.facts)
	t.verified = true
	t.verdict = result.Verdict
	t.decide("verify", string(result.Verdict), result.FactCoverage)
	t.state = stateDone
}

// abort terminates the turn with the best partial reply available.
func (t *turn) abort() {
	if t.reply == "" {
		t.reply = fallbackReply(t.intent, t.facts)
	}
	t.state = stateAborted
}

// citations returns the deduplicated sources of the facts that
// actually back the reply.
func (t *turn) citations() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range t.facts {
		if f.Source == "" || seen[f.Source] {
			continue
		}
		seen[f.Source] = true
		out = append(out, f.Source)
	}
	return out
}
