// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides the language-model backend abstraction for
// AleutianVoyage. The orchestration core only depends on the Client
// interface; concrete backends (OpenAI-compatible, Ollama) live in
// this package and are selected at startup.
package llm

import (
	"context"
	"errors"
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// GenerationParams tunes a single completion request.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`

	// JSONMode requests a structured (JSON object) response from
	// backends that support it. Backends without native JSON mode
	// ignore this flag; callers must still validate the output.
	JSONMode bool `json:"json_mode"`
}

// Float32 returns a pointer to v, for optional GenerationParams fields.
func Float32(v float32) *float32 { return &v }

// Int returns a pointer to v, for optional GenerationParams fields.
func Int(v int) *int { return &v }

// ErrTimeout is returned when a completion request exceeded its
// deadline. It is distinguishable from a well-formed but
// low-confidence answer, which is not an error at this layer.
var ErrTimeout = errors.New("llm: request timed out")

// ErrEmptyResponse is returned when a backend answered successfully
// but produced no usable content.
var ErrEmptyResponse = errors.New("llm: backend returned no content")

// Client defines the standard interface for any LLM backend.
//
// Implementations must honor ctx cancellation and deadlines, and must
// return an error wrapping ErrTimeout when the deadline was exceeded.
//
// Thread Safety: implementations must be safe for concurrent use.
type Client interface {
	// Generate produces a completion for a single prompt.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// Chat produces a completion for a message history.
	Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error)
}

// IsTimeout reports whether err represents a completion deadline being
// exceeded, either via ErrTimeout or a context deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
