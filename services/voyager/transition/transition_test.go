// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transition

import (
	"math"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

var testNow = time.Unix(1_700_000_000, 0)

func testEngine() *Engine {
	return NewWithClock(func() time.Time { return testNow })
}

func slotAged(ageMinutes float64) datatypes.Slot {
	return datatypes.Slot{
		Value:     "v",
		UpdatedAt: testNow.Add(-time.Duration(ageMinutes * float64(time.Minute))),
	}
}

func TestRelevanceConstants(t *testing.T) {
	// The fixed scores and threshold are part of the contract, not
	// tuning knobs.
	if RelevancePreference != 0.95 || RelevanceWorkflow != 0.0 ||
		RelevanceSameIntent != 0.9 || RelevanceListedPreserve != 0.8 ||
		RelevanceListedClear != 0.0 || RelevanceRelatedDefault != 0.6 ||
		UnrelatedBase != 0.2 || PreserveThreshold != 0.7 {
		t.Fatal("relevance constants drifted from the retention contract")
	}
}

func TestWorkflowSlotsDroppedOnAnyTransition(t *testing.T) {
	e := testEngine()
	targets := []datatypes.Intent{
		datatypes.IntentWeather, datatypes.IntentPacking, datatypes.IntentFlights,
		datatypes.IntentPolicy, datatypes.IntentSystem, datatypes.IntentUnknown,
	}
	slots := datatypes.Slots{"awaiting_consent": slotAged(0)}
	for _, to := range targets {
		out := e.Transition(slots, datatypes.IntentFlights, to)
		if _, ok := out["awaiting_consent"]; ok {
			t.Errorf("workflow slot survived transition to %s", to)
		}
	}
}

func TestPreferenceSlotsAlwaysSurvive(t *testing.T) {
	e := testEngine()
	slots := datatypes.Slots{"passengers": slotAged(120)}
	out := e.Transition(slots, datatypes.IntentWeather, datatypes.IntentPolicy)
	if _, ok := out["passengers"]; !ok {
		t.Error("preference slot dropped on unrelated transition")
	}
}

func TestUnrelatedDecayFormula(t *testing.T) {
	e := testEngine()
	// destinations↔policy is deliberately absent from the adjacency
	// list; relevance must be exactly 0.2 × max(0, 1 − age/60).
	tests := []struct {
		age  float64
		want float64
	}{
		{0, 0.2},
		{15, 0.15},
		{30, 0.1},
		{60, 0.0},
		{90, 0.0},
	}
	for _, tt := range tests {
		got := e.Relevance("city", slotAged(tt.age), datatypes.IntentDestinations, datatypes.IntentPolicy)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("age %.0fmin: relevance = %v, want %v", tt.age, got, tt.want)
		}
	}
}

func TestRelatedIntentRuleScores(t *testing.T) {
	e := testEngine()
	tests := []struct {
		name string
		slot string
		from datatypes.Intent
		to   datatypes.Intent
		want float64
	}{
		{"listed preserve", "city", datatypes.IntentWeather, datatypes.IntentPacking, RelevanceListedPreserve},
		{"listed clear", "search_query", datatypes.IntentAttractions, datatypes.IntentDestinations, RelevanceListedClear},
		{"related unlisted", "hotel_name", datatypes.IntentWeather, datatypes.IntentPacking, RelevanceRelatedDefault},
		{"same intent", "hotel_name", datatypes.IntentFlights, datatypes.IntentFlights, RelevanceSameIntent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Relevance(tt.slot, slotAged(5), tt.from, tt.to)
			if got != tt.want {
				t.Errorf("relevance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRelatedLookupIsSymmetric(t *testing.T) {
	if !Related(datatypes.IntentWeather, datatypes.IntentPacking) ||
		!Related(datatypes.IntentPacking, datatypes.IntentWeather) {
		t.Error("adjacency lookup is not symmetric")
	}
	if Related(datatypes.IntentDestinations, datatypes.IntentPolicy) {
		t.Error("destinations↔policy must not be related; the missing rule is intentional")
	}
}

func TestWeatherToPackingPreservesCityAndMonth(t *testing.T) {
	e := testEngine()
	slots := datatypes.Slots{
		"city":  slotAged(1),
		"month": slotAged(1),
	}
	out := e.Transition(slots, datatypes.IntentWeather, datatypes.IntentPacking)
	if _, ok := out["city"]; !ok {
		t.Error("city not preserved across weather→packing")
	}
	if _, ok := out["month"]; !ok {
		t.Error("month not preserved across weather→packing")
	}
}

func TestRelatedUnlistedFallsBelowThreshold(t *testing.T) {
	e := testEngine()
	// 0.6 < 0.7: a related transition without a preserve entry drops
	// the slot.
	slots := datatypes.Slots{"hotel_name": slotAged(1)}
	out := e.Transition(slots, datatypes.IntentWeather, datatypes.IntentPacking)
	if _, ok := out["hotel_name"]; ok {
		t.Error("related-unlisted slot survived despite 0.6 relevance")
	}
}

func TestTransitionDoesNotMutateInput(t *testing.T) {
	e := testEngine()
	slots := datatypes.Slots{"awaiting_consent": slotAged(0), "city": slotAged(0)}
	_ = e.Transition(slots, datatypes.IntentWeather, datatypes.IntentPolicy)
	if len(slots) != 2 {
		t.Error("Transition mutated its input map")
	}
}
