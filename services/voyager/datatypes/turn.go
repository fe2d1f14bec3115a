// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants for Security Compliance
// =============================================================================

const (
	// MaxMessageContentBytes is the maximum size of a single message.
	// Unbounded message input mitigation.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxHistoryMessages is the per-thread message history bound.
	// Older messages are trimmed on append.
	MaxHistoryMessages = 20
)

// turnValidate is the validator instance for turn datatypes.
// Initialized in init() with custom validators.
var turnValidate *validator.Validate

func init() {
	turnValidate = validator.New()
	_ = turnValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces MaxMessageContentBytes on string fields.
// Checks byte length, not rune count, to bound memory.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// Message is one entry in a thread's bounded history.
type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ToolCall is a planned invocation of a named tool. Args are kept as
// strings at this boundary; the tool registry maps them onto typed,
// validated schemas before dispatch.
type ToolCall struct {
	Tool string            `json:"tool"`
	Args map[string]string `json:"args,omitempty"`
}

// Fact is a single piece of externally sourced information gathered
// during a turn. Facts are never mutated after creation, only appended.
type Fact struct {
	Source    string `json:"source"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	URL       string `json:"url,omitempty"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
}

// Decision records one orchestration choice for the audit trail.
type Decision struct {
	Action     string  `json:"action"`
	Rationale  string  `json:"rationale,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Plan is the structured output of the planning step.
type Plan struct {
	Route      Intent     `json:"route"`
	Confidence float64    `json:"confidence"`
	Calls      []ToolCall `json:"calls"`
	Verify     bool       `json:"verify"`
}

// TurnRequest is the single "handle turn" entry point payload.
type TurnRequest struct {
	Message  string `json:"message" validate:"required,maxbytes"`
	ThreadID string `json:"thread_id,omitempty" validate:"omitempty,max=128"`
}

// Validate checks the request against size and presence constraints.
func (r *TurnRequest) Validate() error {
	if err := turnValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid turn request: %w", err)
	}
	return nil
}

// TurnResponse is the user-visible result of one turn.
//
// Reply is never empty: every failure mode inside the engine degrades
// to a textual reply rather than a transport error.
type TurnResponse struct {
	Reply     string   `json:"reply"`
	ThreadID  string   `json:"thread_id"`
	Citations []string `json:"citations,omitempty"`
	Receipt   *Receipt `json:"receipts,omitempty"`
}

// TurnResult is the engine's internal output contract.
//
// Citations is the deduplicated list of Fact sources actually used in
// the final reply; a source that produced no usable value never
// appears here.
type TurnResult struct {
	Reply     string     `json:"reply"`
	Facts     []Fact     `json:"facts"`
	Decisions []Decision `json:"decisions"`
	Citations []string   `json:"citations"`
}
