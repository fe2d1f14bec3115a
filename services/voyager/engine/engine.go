// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package engine runs the turn loop: plan tool calls, execute them
// through the resilience layer, blend facts into a reply, verify the
// reply against the facts and leave a receipt behind.
//
// The loop is an explicit state machine so cancellation and partial
// results are testable without network I/O. Every failure mode inside
// a turn degrades to a textual reply; callers never see an error for
// anything that happens after request validation.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianVoyage/services/llm"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/grounding"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/observability"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/receipts"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/routing"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/session"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/tools"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/transition"
)

var tracer = otel.Tracer("aleutian.voyager.engine")

// Config bounds one turn.
type Config struct {
	// PlanTimeout bounds the planning model call. Default: 15s
	PlanTimeout time.Duration

	// BlendTimeout bounds the blending model call. Default: 20s
	BlendTimeout time.Duration

	// TurnTimeout bounds the whole turn. Default: 60s
	TurnTimeout time.Duration

	// MaxSteps bounds FSM work per turn: each state entry and each
	// tool call costs one step. Default: 16
	MaxSteps int

	// PlanConfidence is the floor under which the engine asks a
	// clarifying question instead of executing the plan. Default: 0.5
	PlanConfidence float64
}

func (c Config) withDefaults() Config {
	if c.PlanTimeout <= 0 {
		c.PlanTimeout = 15 * time.Second
	}
	if c.BlendTimeout <= 0 {
		c.BlendTimeout = 20 * time.Second
	}
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = 60 * time.Second
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = 16
	}
	if c.PlanConfidence <= 0 {
		c.PlanConfidence = 0.5
	}
	return c
}

// Engine is the turn orchestrator.
//
// Thread Safety: safe for concurrent use. Turns on the same thread id
// are serialized; turns on different threads run concurrently.
type Engine struct {
	cfg      Config
	model    llm.Client
	router   *routing.Router
	tr       *transition.Engine
	registry *tools.Registry
	store    session.Store
	receipts *receipts.Writer
	verifier *grounding.Verifier

	mu      sync.Mutex
	threads map[string]*threadLock
}

// threadLock is a reference-counted per-thread mutex. Entries are
// removed from the engine map once no turn holds or awaits them, so
// the map tracks live traffic rather than every thread id ever seen.
type threadLock struct {
	mu   sync.Mutex
	refs int
}

// New wires the engine from its collaborators.
func New(cfg Config, model llm.Client, router *routing.Router, tr *transition.Engine,
	registry *tools.Registry, store session.Store) *Engine {
	return &Engine{
		cfg:      cfg.withDefaults(),
		model:    model,
		router:   router,
		tr:       tr,
		registry: registry,
		store:    store,
		receipts: receipts.NewWriter(store),
		verifier: grounding.NewVerifier(),
		threads:  make(map[string]*threadLock),
	}
}

// lockThread acquires the serialization mutex for a thread, creating
// it on first use.
func (e *Engine) lockThread(threadID string) *threadLock {
	e.mu.Lock()
	l, ok := e.threads[threadID]
	if !ok {
		l = &threadLock{}
		e.threads[threadID] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()
	return l
}

// unlockThread releases the mutex and evicts the map entry once the
// last holder or waiter is gone.
func (e *Engine) unlockThread(threadID string, l *threadLock) {
	l.mu.Unlock()
	e.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(e.threads, threadID)
	}
	e.mu.Unlock()
}

// HandleTurn processes one message end to end. The only error it
// returns is request validation; every downstream failure degrades to
// a textual reply.
func (e *Engine) HandleTurn(ctx context.Context, req datatypes.TurnRequest) (datatypes.TurnResponse, error) {
	if err := req.Validate(); err != nil {
		return datatypes.TurnResponse{}, err
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	// One logical turn per thread at a time.
	lock := e.lockThread(threadID)
	defer e.unlockThread(threadID, lock)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.TurnTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "Engine.HandleTurn")
	defer span.End()
	span.SetAttributes(attribute.String("thread_id", threadID))

	start := time.Now()
	turn := e.newTurn(threadID, req.Message)
	turn.run(ctx)

	receipt := e.finishReceipt(ctx, turn)
	e.persist(ctx, turn)

	observability.RecordTurn(string(turn.intent), turn.state.String(), time.Since(start))
	span.SetAttributes(
		attribute.String("intent", string(turn.intent)),
		attribute.String("state", turn.state.String()),
	)

	return datatypes.TurnResponse{
		Reply:     turn.reply,
		ThreadID:  threadID,
		Citations: turn.citations(),
		Receipt:   receipt,
	}, nil
}

// LastReceipt returns the most recent receipt for a thread, backing
// the "/why" diagnostic surface.
func (e *Engine) LastReceipt(ctx context.Context, threadID string) (datatypes.Receipt, error) {
	return e.receipts.Last(ctx, threadID)
}

// finishReceipt builds, grades and persists the turn's receipt.
// Store failures are logged, never surfaced.
func (e *Engine) finishReceipt(ctx context.Context, t *turn) *datatypes.Receipt {
	receipt := receipts.Build(t.facts, t.decisions, t.tokenEstimate)
	if t.verified {
		receipt.Verdict = t.verdict
	}
	observability.RecordVerdict(string(receipt.Verdict))

	if err := e.receipts.Save(ctx, t.threadID, receipt); err != nil {
		slog.Warn("receipt not persisted", "thread_id", t.threadID, "error", err)
	}
	return &receipt
}

// persist writes slots, history and last intent back to the store.
// A failing store makes the turn stateless, not failed.
func (e *Engine) persist(ctx context.Context, t *turn) {
	if t.stateless {
		return
	}
	now := time.Now()
	if err := e.store.SetSlots(ctx, t.threadID, t.slots); err != nil {
		slog.Warn("slots not persisted", "thread_id", t.threadID, "error", err)
		return
	}
	_ = e.store.AppendMessage(ctx, t.threadID, datatypes.Message{
		Role: "user", Content: t.message, Timestamp: now,
	})
	_ = e.store.AppendMessage(ctx, t.threadID, datatypes.Message{
		Role: "assistant", Content: t.reply, Timestamp: now,
	})
	if err := e.store.SetJSON(ctx, "last_intent", t.threadID, t.intent); err != nil {
		slog.Warn("last intent not persisted", "thread_id", t.threadID, "error", err)
	}
}

// loadContext pulls prior slots and last intent, flipping the turn
// into stateless mode when the store is unavailable.
func (e *Engine) loadContext(ctx context.Context, t *turn) {
	slots, err := e.store.GetSlots(ctx, t.threadID)
	switch {
	case err == nil:
		t.priorSlots = slots
	case errors.Is(err, session.ErrNotInitialized):
		t.priorSlots = datatypes.Slots{}
	default:
		slog.Warn("session store unavailable, running turn stateless",
			"thread_id", t.threadID, "error", err)
		t.priorSlots = datatypes.Slots{}
		t.stateless = true
		return
	}

	var last datatypes.Intent
	if err := e.store.GetJSON(ctx, "last_intent", t.threadID, &last); err == nil {
		t.lastIntent = last
	} else {
		t.lastIntent = datatypes.IntentUnknown
	}
}
