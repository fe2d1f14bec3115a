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
)

// Lightweight slot extractors for classifier-routed messages. The LLM
// classifier extracts richer slots; these cover the keyword path so a
// message like "weather in Paris in June" still fills city and month.
var (
	cityPattern = regexp.MustCompile(`\bin\s+([A-Z][a-zA-Z'-]+(?:\s+[A-Z][a-zA-Z'-]+)?)`)

	monthPattern = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december)\b`)

	passengersPattern = regexp.MustCompile(`(?i)\b(?:for\s+)?(\d{1,2})\s+(?:people|passengers|adults|travellers|travelers)\b`)
)

// monthNames filters city-pattern hits: "in June" is a month, not a
// city.
var monthNames = map[string]bool{
	"January": true, "February": true, "March": true, "April": true,
	"May": true, "June": true, "July": true, "August": true,
	"September": true, "October": true, "November": true, "December": true,
}

// extractSlots pulls deterministic slot values out of the message.
func extractSlots(message string) map[string]string {
	slots := map[string]string{}

	for _, m := range cityPattern.FindAllStringSubmatch(message, -1) {
		candidate := strings.TrimSpace(m[1])
		if !monthNames[candidate] {
			slots["city"] = candidate
			break
		}
	}
	// Lower-case to match what the LLM classifier path emits.
	if m := monthPattern.FindString(message); m != "" {
		slots["month"] = strings.ToLower(m)
	}
	if m := passengersPattern.FindStringSubmatch(message); m != nil {
		slots["passengers"] = m[1]
	}
	return slots
}
