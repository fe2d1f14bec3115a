// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// Verdict is the self-check outcome recorded on a receipt.
type Verdict string

const (
	// VerdictPass means the reply was checked and found grounded.
	VerdictPass Verdict = "pass"

	// VerdictWarn is the default until an explicit verification pass
	// runs, and the outcome when grounding is partial.
	VerdictWarn Verdict = "warn"

	// VerdictFail means the reply contradicts or exceeds the facts.
	VerdictFail Verdict = "fail"
)

// Budgets summarizes the turn's resource spend.
type Budgets struct {
	// TokenEstimate is the rough LLM token count for the turn.
	TokenEstimate int `json:"token_estimate"`

	// ExtAPILatencyMS is the sum of fact latencies.
	ExtAPILatencyMS int64 `json:"ext_api_latency_ms"`
}

// Receipt is the derived, read-only audit summary of one turn.
//
// Exactly one receipt is retained per thread: the most recent turn
// overwrites the previous one. Receipts are a debugging and audit
// surface, not an append-only log.
type Receipt struct {
	Sources   []string   `json:"sources"`
	Decisions []Decision `json:"decisions"`
	Budgets   Budgets    `json:"budgets"`
	Verdict   Verdict    `json:"self_check"`
	CreatedAt time.Time  `json:"created_at"`
}
