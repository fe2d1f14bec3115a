// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// SlotCategory determines how a slot survives intent changes.
//
// A slot name belongs to exactly one category. Category membership is
// static configuration keyed by slot name, never derived from the
// slot's value.
type SlotCategory int

const (
	// CategoryPreference slots persist across all intent changes
	// (e.g. passenger count, seating preference).
	CategoryPreference SlotCategory = iota

	// CategoryIntentSpecific slots are cleared whenever the intent
	// changes to an unrelated intent (e.g. a flight number).
	CategoryIntentSpecific

	// CategoryWorkflow slots are consumed once and cleared on any
	// intent change (e.g. "awaiting consent" flags).
	CategoryWorkflow

	// CategoryContext slots decay in relevance linearly over a
	// one-hour window but are not actively deleted.
	CategoryContext
)

// String returns the configuration name of the category.
func (c SlotCategory) String() string {
	switch c {
	case CategoryPreference:
		return "preference"
	case CategoryIntentSpecific:
		return "intent_specific"
	case CategoryWorkflow:
		return "workflow"
	case CategoryContext:
		return "context"
	default:
		return "unknown"
	}
}

// slotCategories is the static slot-name → category table.
//
// Slot names not listed here default to CategoryContext, the weakest
// retention class.
var slotCategories = map[string]SlotCategory{
	// User preferences: survive every intent change.
	"passengers":    CategoryPreference,
	"cabin_class":   CategoryPreference,
	"currency":      CategoryPreference,
	"home_airport":  CategoryPreference,
	"budget_level":  CategoryPreference,
	"dietary_needs": CategoryPreference,

	// Intent-specific extraction targets.
	"origin":        CategoryIntentSpecific,
	"destination":   CategoryIntentSpecific,
	"flight_number": CategoryIntentSpecific,
	"hotel_name":    CategoryIntentSpecific,
	"search_query":  CategoryIntentSpecific,
	"policy_topic":  CategoryIntentSpecific,

	// Workflow state: consumed once, dropped on any intent change.
	"awaiting_consent": CategoryWorkflow,
	"pending_action":   CategoryWorkflow,
	"confirm_booking":  CategoryWorkflow,

	// Conversation context: linear one-hour relevance decay.
	"city":    CategoryContext,
	"country": CategoryContext,
	"month":   CategoryContext,
	"dates":   CategoryContext,
	"season":  CategoryContext,
}

// CategoryOf returns the static category for a slot name.
func CategoryOf(name string) SlotCategory {
	if c, ok := slotCategories[name]; ok {
		return c
	}
	return CategoryContext
}

// Slot is a named string value attached to a thread.
type Slot struct {
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AgeMinutes returns the slot's age relative to now, in minutes.
// Never negative.
func (s Slot) AgeMinutes(now time.Time) float64 {
	age := now.Sub(s.UpdatedAt).Minutes()
	if age < 0 {
		return 0
	}
	return age
}

// Slots is a thread's slot mapping.
type Slots map[string]Slot

// Set stores a value under name stamped with now.
func (s Slots) Set(name, value string, now time.Time) {
	s[name] = Slot{Value: value, UpdatedAt: now}
}

// Values flattens the mapping to plain name → value pairs for prompt
// assembly.
func (s Slots) Values() map[string]string {
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = v.Value
	}
	return out
}

// Clone returns a shallow copy safe to mutate.
func (s Slots) Clone() Slots {
	out := make(Slots, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ClearWorkflow removes all workflow-state slots in place and returns
// the number removed. The router calls this when a deterministic guard
// resolves an intent, so stale consent flags cannot contaminate
// unrelated follow-on turns.
func (s Slots) ClearWorkflow() int {
	n := 0
	for name := range s {
		if CategoryOf(name) == CategoryWorkflow {
			delete(s, name)
			n++
		}
	}
	return n
}
