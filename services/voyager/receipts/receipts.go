// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package receipts builds and stores the audit artifact of a turn:
// which sources were consulted, which decisions were made and what
// the self-check concluded. One receipt per thread, replaced each
// turn.
package receipts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/session"
)

// storeNamespace is the session-store JSON namespace for receipts.
const storeNamespace = "receipts"

// Build assembles a receipt from a turn's facts and decisions.
// Sources are deduplicated in first-seen order; the external latency
// budget is the sum of fact latencies; the verdict starts at warn
// until a verification pass upgrades it.
func Build(facts []datatypes.Fact, decisions []datatypes.Decision, tokenEstimate int) datatypes.Receipt {
	seen := make(map[string]bool)
	sources := make([]string, 0, len(facts))
	var latency int64
	for _, f := range facts {
		latency += f.LatencyMS
		if f.Source == "" || seen[f.Source] {
			continue
		}
		seen[f.Source] = true
		sources = append(sources, f.Source)
	}

	if decisions == nil {
		decisions = []datatypes.Decision{}
	}
	return datatypes.Receipt{
		Sources:   sources,
		Decisions: decisions,
		Budgets: datatypes.Budgets{
			TokenEstimate:   tokenEstimate,
			ExtAPILatencyMS: latency,
		},
		Verdict:   datatypes.VerdictWarn,
		CreatedAt: time.Now().UTC(),
	}
}

// Writer persists receipts to the session store, replace-only.
type Writer struct {
	store session.Store
}

// NewWriter creates a Writer over the given store.
func NewWriter(store session.Store) *Writer {
	return &Writer{store: store}
}

// Save overwrites the thread's receipt.
func (w *Writer) Save(ctx context.Context, threadID string, receipt datatypes.Receipt) error {
	if err := w.store.SetJSON(ctx, storeNamespace, threadID, receipt); err != nil {
		return fmt.Errorf("save receipt for thread %s: %w", threadID, err)
	}
	return nil
}

// Last returns the thread's most recent receipt.
// session.ErrNotFound means no turn has completed on the thread yet.
func (w *Writer) Last(ctx context.Context, threadID string) (datatypes.Receipt, error) {
	var receipt datatypes.Receipt
	if err := w.store.GetJSON(ctx, storeNamespace, threadID, &receipt); err != nil {
		// An uninitialized thread and a thread without a receipt look
		// the same to callers of Last.
		if errors.Is(err, session.ErrNotInitialized) {
			return datatypes.Receipt{}, session.ErrNotFound
		}
		return datatypes.Receipt{}, err
	}
	return receipt, nil
}
