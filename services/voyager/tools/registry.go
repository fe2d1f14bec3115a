// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/resilience"
)

// DefaultCallTimeout bounds a single tool invocation.
const DefaultCallTimeout = 10 * time.Second

// Registry dispatches planned tool calls to provider adapters. Every
// invocation passes argument validation and the resilience layer
// before the provider sees it.
//
// Thread Safety: safe for concurrent use after registration is done.
// Register is not safe to call concurrently with Invoke.
type Registry struct {
	tools       map[string]Tool
	guard       *resilience.Service
	callTimeout time.Duration
}

// NewRegistry creates an empty registry guarded by the given
// resilience service.
func NewRegistry(guard *resilience.Service) *Registry {
	return &Registry{
		tools:       make(map[string]Tool),
		guard:       guard,
		callTimeout: DefaultCallTimeout,
	}
}

// WithCallTimeout overrides the per-call timeout.
func (r *Registry) WithCallTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.callTimeout = d
	}
	return r
}

// Register adds a tool under its own name.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Names returns the registered tool names, for planning prompts.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Invoke runs one planned call: schema validation, then the guarded
// provider invocation, then latency stamping on the returned facts.
// Errors are tool failures for the caller to log and drop.
func (r *Registry) Invoke(ctx context.Context, call datatypes.ToolCall) ([]datatypes.Fact, error) {
	if err := validateArgs(call.Tool, call.Args); err != nil {
		return nil, err
	}
	tool, ok := r.tools[call.Tool]
	if !ok {
		return nil, fmt.Errorf("%w: %q not registered", ErrUnknownTool, call.Tool)
	}

	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	var facts []datatypes.Fact
	start := time.Now()
	err := r.guard.Do(ctx, tool.Name(), tool.Host(), func(ctx context.Context) error {
		var invokeErr error
		facts, invokeErr = tool.Invoke(ctx, call.Args)
		return invokeErr
	})
	latency := time.Since(start).Milliseconds()
	if err != nil {
		slog.Warn("tool call failed", "tool", call.Tool, "latency_ms", latency, "error", err)
		return nil, err
	}

	for i := range facts {
		facts[i].LatencyMS = latency
	}
	return facts, nil
}
