// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package transition decides which slots survive an intent change.
//
// The engine is pure decision logic over slot categories and a static
// intent adjacency table: no I/O, no clock beyond the injected one.
// Every turn runs Transition before routing so the new intent starts
// from a context scrubbed of stale state.
package transition

import (
	"time"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

// Relevance scoring constants. These are load-bearing: the preserve
// threshold and the fixed scores define the slot retention contract,
// and tests pin them.
const (
	// RelevancePreference is the fixed score for user-preference slots.
	RelevancePreference = 0.95

	// RelevanceWorkflow is the fixed score for workflow-state slots.
	RelevanceWorkflow = 0.0

	// RelevanceSameIntent applies when the intent does not change.
	RelevanceSameIntent = 0.9

	// RelevanceListedPreserve applies to slots on a transition rule's
	// preserve list.
	RelevanceListedPreserve = 0.8

	// RelevanceListedClear applies to slots on a rule's clear list.
	RelevanceListedClear = 0.0

	// RelevanceRelatedDefault applies to slots not listed by the rule
	// of a related-intent transition.
	RelevanceRelatedDefault = 0.6

	// UnrelatedBase scales the linear decay for unrelated transitions.
	UnrelatedBase = 0.2

	// PreserveThreshold is the minimum relevance for a slot to survive.
	PreserveThreshold = 0.7

	// decayWindowMinutes is the linear decay window for unrelated
	// transitions and conversation-context aging.
	decayWindowMinutes = 60.0
)

// Rule describes slot handling for one (from, to) intent transition.
type Rule struct {
	Preserve []string
	Clear    []string
}

// intentPair keys the transition rule table.
type intentPair struct {
	from, to datatypes.Intent
}

// relatedIntents is the static adjacency list. Lookups are symmetric:
// listing (weather, packing) also relates (packing, weather).
var relatedIntents = [][2]datatypes.Intent{
	{datatypes.IntentWeather, datatypes.IntentPacking},
	{datatypes.IntentWeather, datatypes.IntentAttractions},
	{datatypes.IntentFlights, datatypes.IntentDisruption},
	{datatypes.IntentAttractions, datatypes.IntentDestinations},
	{datatypes.IntentDestinations, datatypes.IntentFlights},
}

// transitionRules holds the explicit per-pair slot handling. Pairs in
// the adjacency list without a rule here fall back to the generic
// related-default score — intentionally, even when that looks
// conservative; do not infer missing rules.
var transitionRules = map[intentPair]Rule{
	{datatypes.IntentWeather, datatypes.IntentPacking}: {
		Preserve: []string{"city", "country", "month", "dates", "season"},
	},
	{datatypes.IntentPacking, datatypes.IntentWeather}: {
		Preserve: []string{"city", "country", "month", "dates", "season"},
	},
	{datatypes.IntentFlights, datatypes.IntentDisruption}: {
		Preserve: []string{"origin", "destination", "dates", "flight_number"},
	},
	{datatypes.IntentAttractions, datatypes.IntentDestinations}: {
		Preserve: []string{"city", "country"},
		Clear:    []string{"search_query"},
	},
}

// Related reports whether two intents are adjacent. The lookup is
// symmetric and an intent is never related to itself here; same-intent
// handling happens before adjacency is consulted.
func Related(a, b datatypes.Intent) bool {
	for _, pair := range relatedIntents {
		if (pair[0] == a && pair[1] == b) || (pair[0] == b && pair[1] == a) {
			return true
		}
	}
	return false
}

// Engine computes slot survival across intent transitions.
//
// Thread Safety: safe for concurrent use (stateless beyond the clock).
type Engine struct {
	now func() time.Time
}

// New creates an Engine using the wall clock.
func New() *Engine {
	return &Engine{now: time.Now}
}

// NewWithClock creates an Engine with an injected clock, for tests.
func NewWithClock(now func() time.Time) *Engine {
	return &Engine{now: now}
}

// Relevance scores one slot for the from→to transition.
//
// Precedence is fixed: user preferences, then workflow state, then
// same-intent, then the related-intent rule table, then unrelated
// linear decay. The ordering means workflow slots are dropped even
// when the intent does not change — they are consumed once.
func (e *Engine) Relevance(name string, slot datatypes.Slot, from, to datatypes.Intent) float64 {
	switch datatypes.CategoryOf(name) {
	case datatypes.CategoryPreference:
		return RelevancePreference
	case datatypes.CategoryWorkflow:
		return RelevanceWorkflow
	}

	if from == to {
		return RelevanceSameIntent
	}

	if Related(from, to) {
		rule, ok := transitionRules[intentPair{from, to}]
		if ok {
			for _, n := range rule.Preserve {
				if n == name {
					return RelevanceListedPreserve
				}
			}
			for _, n := range rule.Clear {
				if n == name {
					return RelevanceListedClear
				}
			}
		}
		return RelevanceRelatedDefault
	}

	// Unrelated transition: linear decay over one hour, floored at 0.
	age := slot.AgeMinutes(e.now())
	decay := 1 - age/decayWindowMinutes
	if decay < 0 {
		decay = 0
	}
	return UnrelatedBase * decay
}

// Transition returns the slots that survive the from→to intent change.
// The input map is not mutated.
func (e *Engine) Transition(slots datatypes.Slots, from, to datatypes.Intent) datatypes.Slots {
	preserved := make(datatypes.Slots, len(slots))
	for name, slot := range slots {
		if e.Relevance(name, slot, from, to) >= PreserveThreshold {
			preserved[name] = slot
		}
	}
	return preserved
}
