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
	"strings"

	"github.com/AleutianAI/AleutianVoyage/services/llm"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

const blendSystemPrompt = `You are a travel assistant. Answer the
user's message using ONLY the facts provided. Do not invent values,
sources or availability. If the facts do not cover part of the
question, say so plainly. Keep the answer short and concrete.`

// blendReply folds gathered facts and the user message into a
// natural-language reply.
func (e *Engine) blendReply(ctx context.Context, message string, facts []datatypes.Fact) (string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.BlendTimeout)
	defer cancel()

	var sb strings.Builder
	sb.WriteString("Facts:\n")
	if len(facts) == 0 {
		sb.WriteString("(none gathered)\n")
	}
	for _, f := range facts {
		fmt.Fprintf(&sb, "- [%s] %s\n", f.Source, f.Value)
	}
	sb.WriteString("\nUser message: ")
	sb.WriteString(message)

	user := sb.String()
	reply, err := e.model.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: blendSystemPrompt},
		{Role: llm.RoleUser, Content: user},
	}, llm.GenerationParams{Temperature: llm.Float32(0.4)})
	est := estimateTokens(blendSystemPrompt + user + reply)
	if err != nil {
		return "", est, fmt.Errorf("blending call: %w", err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", est, fmt.Errorf("blending call returned empty reply")
	}
	return reply, est, nil
}

// fallbackReply assembles a minimal deterministic reply straight from
// the facts. It never fabricates a source and is never empty.
func fallbackReply(intent datatypes.Intent, facts []datatypes.Fact) string {
	if len(facts) == 0 {
		return "I couldn't gather the information needed to answer that right now. Please try again in a moment."
	}

	var sb strings.Builder
	sb.WriteString("Here's what I found:\n")
	seen := make(map[string]bool)
	var sources []string
	for _, f := range facts {
		fmt.Fprintf(&sb, "- %s\n", f.Value)
		if f.Source != "" && !seen[f.Source] {
			seen[f.Source] = true
			sources = append(sources, f.Source)
		}
	}
	if len(sources) > 0 {
		sb.WriteString("Sources: ")
		sb.WriteString(strings.Join(sources, ", "))
	}
	return sb.String()
}

// clarifyingQuestion is the deterministic low-confidence response.
// No tool calls have been made when it is used, so it carries zero
// citations.
func clarifyingQuestion(intent datatypes.Intent) string {
	switch intent {
	case datatypes.IntentFlights:
		return "I can look up flights for you. Which airports are you flying between, and on what date?"
	case datatypes.IntentWeather:
		return "Which city's weather would you like to know about?"
	case datatypes.IntentPacking:
		return "Happy to help you pack. Where are you headed, and when?"
	case datatypes.IntentAttractions:
		return "Which city are you planning to explore?"
	case datatypes.IntentPolicy:
		return "Which travel rule do you mean, for example baggage, visas or customs?"
	default:
		return "Could you tell me a bit more about what you're looking for? For example a destination, dates, or the kind of trip."
	}
}
