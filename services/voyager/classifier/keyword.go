// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classifier

import (
	"context"
	"regexp"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

// intentPatterns defines word-boundary patterns per intent. Patterns
// are grouped by intent for maintainability; each match adds to the
// intent's score and the highest-scoring intent wins.
var intentPatterns = map[datatypes.Intent][]string{
	datatypes.IntentWeather: {
		`\bweather\b`,
		`\bforecast\b`,
		`\btemperature\b`,
		`\brain(y|ing)?\b`,
		`\bhow (hot|cold|warm)\b`,
		`\bhumid(ity)?\b`,
		`\bsnow(ing)?\b`,
	},
	datatypes.IntentPacking: {
		`\bpack(ing)?\b`,
		`\bwhat should i (bring|wear|take)\b`,
		`\bsuitcase\b`,
		`\bluggage\b`,
		`\bclothes\b`,
	},
	datatypes.IntentAttractions: {
		`\battraction`,
		`\bthings to (do|see)\b`,
		`\bmuseum`,
		`\bsight ?seeing\b`,
		`\bpoints? of interest\b`,
		`\blandmark`,
		`\bwhat to (do|see)\b`,
	},
	datatypes.IntentDestinations: {
		`\bwhere should (i|we) go\b`,
		`\bdestination`,
		`\brecommend.*(city|country|place)\b`,
		`\bbest place\b`,
		`\btravel ideas?\b`,
	},
	datatypes.IntentFlights: {
		`\bflights?\b`,
		`\bfly(ing)? (to|from)\b`,
		`\bairfare\b`,
		`\bone.?way\b`,
		`\bround.?trip\b`,
		`\bbook.*flight\b`,
		`\bhotels?\b`,
	},
	datatypes.IntentDisruption: {
		`\b(flight )?(cancell?ed|delayed)\b`,
		`\bmissed (my )?(flight|connection)\b`,
		`\brebook`,
		`\bcompensation\b`,
		`\bstrand(ed)?\b`,
	},
	datatypes.IntentPolicy: {
		`\bvisas?\b`,
		`\bcustoms\b`,
		`\bpassports?\b`,
		`\bbaggage (policy|allowance|rules?)\b`,
		`\bcarry.?on\b`,
		`\bimmigration\b`,
		`\bentry requirements?\b`,
	},
	datatypes.IntentWebSearch: {
		`\bsearch (for|the web)\b`,
		`\blook up\b`,
		`\bgoogle\b`,
		`\bfind (me )?information\b`,
	},
	datatypes.IntentSystem: {
		`\bhelp\b`,
		`\bwhat can you do\b`,
		`\bcommands?\b`,
		`\breset\b`,
		`\bstart over\b`,
	},
}

// Keyword confidence model: one pattern hit is a weak signal, each
// additional hit strengthens it, capped below guard-level confidence
// so deterministic guards always outrank keyword scoring.
const (
	keywordBaseConfidence = 0.5
	keywordHitBonus       = 0.15
	keywordMaxConfidence  = 0.8
)

// KeywordClassifier classifies messages with compiled word-boundary
// patterns. It is the cheap first stage of the fallback cascade and
// the safety net when the LLM classifier errors.
//
// Thread Safety: safe for concurrent use after construction.
type KeywordClassifier struct {
	patterns map[datatypes.Intent][]*regexp.Regexp
}

// NewKeywordClassifier compiles the pattern table.
func NewKeywordClassifier() *KeywordClassifier {
	compiled := make(map[datatypes.Intent][]*regexp.Regexp, len(intentPatterns))
	for intent, pats := range intentPatterns {
		regexps := make([]*regexp.Regexp, 0, len(pats))
		for _, p := range pats {
			regexps = append(regexps, regexp.MustCompile(`(?i)`+p))
		}
		compiled[intent] = regexps
	}
	return &KeywordClassifier{patterns: compiled}
}

// Classify scores the message against every intent's patterns.
//
// Identical input always yields an identical result: the scorer is
// deterministic and ties break on the fixed intent iteration order
// below, not map order.
func (k *KeywordClassifier) Classify(ctx context.Context, message string) Classification {
	best := Classification{Intent: datatypes.IntentUnknown, Source: "keyword"}
	bestHits := 0

	// Fixed evaluation order so equal scores resolve deterministically.
	order := []datatypes.Intent{
		datatypes.IntentDisruption, // before flights: "flight cancelled" is a disruption
		datatypes.IntentPolicy,
		datatypes.IntentFlights,
		datatypes.IntentWeather,
		datatypes.IntentPacking,
		datatypes.IntentAttractions,
		datatypes.IntentDestinations,
		datatypes.IntentWebSearch,
		datatypes.IntentSystem,
	}
	for _, intent := range order {
		hits := 0
		for _, re := range k.patterns[intent] {
			if re.MatchString(message) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			best.Intent = intent
		}
	}

	if bestHits > 0 {
		conf := keywordBaseConfidence + float64(bestHits-1)*keywordHitBonus
		if conf > keywordMaxConfidence {
			conf = keywordMaxConfidence
		}
		best.Confidence = conf
	}
	return best
}
