// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures shared across the voyager
// service: intents, slots, facts, receipts, and the turn request and
// response types exposed over HTTP.
package datatypes

// Intent is the classified purpose of a user message.
//
// The set is closed: every routed message yields exactly one Intent
// plus a confidence in [0,1]. Messages that cannot be classified above
// the router's confidence threshold resolve to IntentUnknown.
type Intent string

const (
	IntentWeather      Intent = "weather"
	IntentPacking      Intent = "packing"
	IntentAttractions  Intent = "attractions"
	IntentDestinations Intent = "destinations"
	IntentPolicy       Intent = "policy"
	IntentFlights      Intent = "flights"
	IntentDisruption   Intent = "disruption"
	IntentWebSearch    Intent = "websearch"
	IntentSystem       Intent = "system"
	IntentUnknown      Intent = "unknown"
)

// allIntents is the closed enumeration used for parsing.
var allIntents = map[Intent]bool{
	IntentWeather:      true,
	IntentPacking:      true,
	IntentAttractions:  true,
	IntentDestinations: true,
	IntentPolicy:       true,
	IntentFlights:      true,
	IntentDisruption:   true,
	IntentWebSearch:    true,
	IntentSystem:       true,
	IntentUnknown:      true,
}

// Valid reports whether i is a member of the closed intent set.
func (i Intent) Valid() bool {
	return allIntents[i]
}

// ParseIntent maps a string to an Intent, falling back to
// IntentUnknown for anything outside the closed set. It never errors:
// unparseable classifier output degrades to unknown.
func ParseIntent(s string) Intent {
	if in := Intent(s); in.Valid() {
		return in
	}
	return IntentUnknown
}

// RouteResult is the Intent Router's output for one message.
type RouteResult struct {
	// Intent is the resolved intent.
	Intent Intent `json:"intent"`

	// Slots holds slot values extracted from the message itself.
	Slots map[string]string `json:"slots,omitempty"`

	// Confidence is the router's confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// NeedExternal reports whether answering requires external tools.
	NeedExternal bool `json:"need_external"`

	// GuardHandled is true when a deterministic guard resolved the
	// intent without any classifier or model call.
	GuardHandled bool `json:"guard_handled"`
}
