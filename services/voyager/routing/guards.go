// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import (
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

// Guard confidence levels. Guards are deterministic, so they assert a
// fixed high confidence and skip all probabilistic inference.
const (
	// GuardConfidence is asserted by word/regex guards.
	GuardConfidence = 0.95

	// FlightHeuristicConfidence is asserted by the direct-flight
	// heuristic (route pattern + date token, no model call).
	FlightHeuristicConfidence = 0.9
)

// Deterministic guard patterns, checked in order before any
// classifier runs.
var (
	helpPattern = regexp.MustCompile(`(?i)^\s*(help|what can you do|commands|/help)\s*[?!.]*\s*$`)

	searchPattern = regexp.MustCompile(`(?i)\bsearch (?:the web )?for\s+(.+)`)

	policyVocabulary = regexp.MustCompile(`(?i)\b(visa|visas|customs|immigration|baggage (?:policy|allowance|rules)|carry.?on|entry requirements?|passport validity)\b`)
)

// Flight heuristic patterns: a route plus a date-like token classifies
// as flights without invoking any model.
var (
	// iataPairPattern matches airport-code routes like "JFK to LAX"
	// or "JFK-LAX". Case-sensitive: IATA codes are upper case.
	iataPairPattern = regexp.MustCompile(`\b([A-Z]{3})\s*(?:to|->|–|-|→)\s*([A-Z]{3})\b`)

	// routePattern matches natural-language routes like
	// "from Boston to Lisbon".
	routePattern = regexp.MustCompile(`(?i)\bfrom\s+([a-z][a-z .'-]{1,40}?)\s+to\s+([a-z][a-z .'-]{1,40}?)(?:\s+(?:on|in|next|this|tomorrow|today)\b|[,.?!]|$)`)

	datePattern = regexp.MustCompile(`(?i)\b(today|tonight|tomorrow|next\s+(?:week|month|mon(?:day)?|tue(?:sday)?|wed(?:nesday)?|thu(?:rsday)?|fri(?:day)?|sat(?:urday)?|sun(?:day)?)|\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}(?:/\d{2,4})?|(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\s+\d{1,2})\b`)
)

// checkGuards applies the deterministic guards in strict precedence
// order. A hit returns a complete RouteResult; a miss returns ok=false
// and the router falls through to the classifier cascade.
func checkGuards(message string) (datatypes.RouteResult, bool) {
	if helpPattern.MatchString(message) {
		return datatypes.RouteResult{
			Intent:       datatypes.IntentSystem,
			Confidence:   GuardConfidence,
			NeedExternal: false,
			GuardHandled: true,
		}, true
	}

	if m := searchPattern.FindStringSubmatch(message); m != nil {
		query := strings.TrimRight(strings.TrimSpace(m[1]), "?!.")
		return datatypes.RouteResult{
			Intent:       datatypes.IntentWebSearch,
			Slots:        map[string]string{"search_query": query},
			Confidence:   GuardConfidence,
			NeedExternal: true,
			GuardHandled: true,
		}, true
	}

	if policyVocabulary.MatchString(message) {
		return datatypes.RouteResult{
			Intent:       datatypes.IntentPolicy,
			Confidence:   GuardConfidence,
			NeedExternal: true,
			GuardHandled: true,
		}, true
	}

	return datatypes.RouteResult{}, false
}

// checkFlightHeuristic classifies direct flight queries: the message
// must contain a route (IATA pair or from/to phrase) and a date-like
// token.
func checkFlightHeuristic(message string) (datatypes.RouteResult, bool) {
	if !datePattern.MatchString(message) {
		return datatypes.RouteResult{}, false
	}

	slots := map[string]string{}
	if m := iataPairPattern.FindStringSubmatch(message); m != nil {
		slots["origin"] = m[1]
		slots["destination"] = m[2]
	} else if m := routePattern.FindStringSubmatch(message); m != nil {
		slots["origin"] = strings.TrimSpace(m[1])
		slots["destination"] = strings.TrimSpace(m[2])
	} else {
		return datatypes.RouteResult{}, false
	}

	if d := datePattern.FindString(message); d != "" {
		slots["dates"] = d
	}
	return datatypes.RouteResult{
		Intent:       datatypes.IntentFlights,
		Slots:        slots,
		Confidence:   FlightHeuristicConfidence,
		NeedExternal: true,
		GuardHandled: true,
	}, true
}
