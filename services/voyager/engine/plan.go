// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianVoyage/services/llm"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

const planSystemPrompt = `You are the planner for a travel assistant.
Given the user's message, the routed intent and the known context
slots, produce a JSON plan of tool calls.

Available tools and their arguments:
- weather: {"city": string, "month": string?, "dates": string?}
- country: {"country": string}
- attractions: {"city": string}
- flights: {"origin": IATA, "destination": IATA, "dates": string?}
- policy: {"topic": string}
- websearch: {"query": string}

Respond with ONLY this JSON object, no prose:
{"route": "<intent>", "confidence": <0..1>, "calls": [{"tool": "<name>", "args": {...}}], "verify": <bool>}

Plan at most 3 calls. Set "verify" true when the answer will contain
factual claims (weather values, prices, policies). If the message is
too vague to act on, return an empty calls list with low confidence.`

// buildPlan runs the planning model call and parses its structured
// output. The returned int is a rough token estimate for the receipt.
func (e *Engine) buildPlan(ctx context.Context, message string, intent datatypes.Intent, slots datatypes.Slots) (datatypes.Plan, int, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.PlanTimeout)
	defer cancel()

	user := fmt.Sprintf("Intent: %s\nContext slots: %s\nMessage: %s",
		intent, formatSlots(slots), message)

	raw, err := e.model.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: planSystemPrompt},
		{Role: llm.RoleUser, Content: user},
	}, llm.GenerationParams{Temperature: llm.Float32(0.1), JSONMode: true})
	est := estimateTokens(planSystemPrompt + user + raw)
	if err != nil {
		return datatypes.Plan{}, est, fmt.Errorf("planning call: %w", err)
	}

	plan, err := parsePlan(raw)
	if err != nil {
		return datatypes.Plan{}, est, err
	}
	return plan, est, nil
}

// rawPlan tolerates loosely typed argument values from the model.
type rawPlan struct {
	Route      string  `json:"route"`
	Confidence float64 `json:"confidence"`
	Calls      []struct {
		Tool string         `json:"tool"`
		Args map[string]any `json:"args"`
	} `json:"calls"`
	Verify bool `json:"verify"`
}

// parsePlan extracts and normalizes the plan JSON. Argument values
// are coerced to strings at this boundary; the tool registry's typed
// schemas take over from there.
func parsePlan(raw string) (datatypes.Plan, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return datatypes.Plan{}, fmt.Errorf("plan response contains no JSON object")
	}

	var rp rawPlan
	if err := json.Unmarshal([]byte(raw[start:end+1]), &rp); err != nil {
		return datatypes.Plan{}, fmt.Errorf("decode plan: %w", err)
	}

	plan := datatypes.Plan{
		Route:      datatypes.ParseIntent(rp.Route),
		Confidence: clamp01(rp.Confidence),
		Verify:     rp.Verify,
	}
	for _, c := range rp.Calls {
		args := make(map[string]string, len(c.Args))
		for k, v := range c.Args {
			args[k] = coerceString(v)
		}
		plan.Calls = append(plan.Calls, datatypes.ToolCall{Tool: c.Tool, Args: args})
	}
	return plan, nil
}

func coerceString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	case bool:
		return fmt.Sprintf("%t", x)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// formatSlots renders slots as a stable "k=v" list for prompts.
func formatSlots(slots datatypes.Slots) string {
	if len(slots) == 0 {
		return "(none)"
	}
	values := slots.Values()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+values[k])
	}
	return strings.Join(parts, ", ")
}

// estimateTokens is the usual rough 4-bytes-per-token heuristic.
func estimateTokens(s string) int {
	return len(s) / 4
}
