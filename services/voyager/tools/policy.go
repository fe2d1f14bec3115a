// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

// PolicyEntry is one curated travel-policy answer.
type PolicyEntry struct {
	Topic    string   `yaml:"topic"`
	Keywords []string `yaml:"keywords"`
	Answer   string   `yaml:"answer"`
	Source   string   `yaml:"source"`
	URL      string   `yaml:"url"`
}

// PolicyTool answers visa, customs and baggage questions from a
// curated local knowledge base rather than a live API. The corpus is
// a YAML file maintained alongside deployment config; answers carry
// their own source attribution.
type PolicyTool struct {
	entries []PolicyEntry
}

// NewPolicyTool loads the knowledge base from path. An empty path
// falls back to a small built-in corpus so the tool always answers
// something.
func NewPolicyTool(path string) (*PolicyTool, error) {
	if path == "" {
		return &PolicyTool{entries: builtinPolicyCorpus}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load policy corpus: %w", err)
	}
	var entries []PolicyEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse policy corpus: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("policy corpus %q is empty", path)
	}
	return &PolicyTool{entries: entries}, nil
}

func (t *PolicyTool) Name() string { return "policy" }

// Host is a synthetic key; the corpus is local but registry dispatch
// still meters it like any provider.
func (t *PolicyTool) Host() string { return "policy.local" }

// Invoke matches args["topic"] against entry keywords and returns the
// best-scoring entry.
func (t *PolicyTool) Invoke(_ context.Context, args map[string]string) ([]datatypes.Fact, error) {
	topic := strings.ToLower(args["topic"])

	var best *PolicyEntry
	bestScore := 0
	for i := range t.entries {
		score := 0
		for _, kw := range t.entries[i].Keywords {
			if strings.Contains(topic, strings.ToLower(kw)) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = &t.entries[i]
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no policy entry matches %q", topic)
	}

	return []datatypes.Fact{{
		Source: best.Source,
		Key:    "policy_" + best.Topic,
		Value:  best.Answer,
		URL:    best.URL,
	}}, nil
}

// builtinPolicyCorpus covers the most common questions when no
// external corpus is configured.
var builtinPolicyCorpus = []PolicyEntry{
	{
		Topic:    "carry_on_liquids",
		Keywords: []string{"liquid", "carry-on", "carry on", "toiletries", "100ml"},
		Answer:   "Liquids in carry-on baggage are limited to containers of 100ml or less, all fitting in one transparent resealable 1-liter bag.",
		Source:   "tsa",
		URL:      "https://www.tsa.gov/travel/security-screening/liquids-rule",
	},
	{
		Topic:    "passport_validity",
		Keywords: []string{"passport", "validity", "expire", "six months"},
		Answer:   "Many countries require your passport to be valid for at least six months beyond your planned departure date; check the destination's entry requirements before booking.",
		Source:   "travel.state.gov",
		URL:      "https://travel.state.gov/content/travel/en/passports.html",
	},
	{
		Topic:    "schengen_visa",
		Keywords: []string{"visa", "schengen", "europe", "entry requirements"},
		Answer:   "Short stays in the Schengen area are capped at 90 days within any 180-day period; visa-waiver nationals need no visa but must respect the cap.",
		Source:   "europa.eu",
		URL:      "https://home-affairs.ec.europa.eu/policies/schengen-borders-and-visa_en",
	},
	{
		Topic:    "baggage_allowance",
		Keywords: []string{"baggage", "luggage", "allowance", "checked", "weight"},
		Answer:   "Checked baggage allowances vary by carrier and fare class; a common economy allowance is one bag up to 23kg, with overweight fees beyond that.",
		Source:   "iata",
		URL:      "https://www.iata.org/en/programs/passenger/baggage/",
	},
	{
		Topic:    "customs_declaration",
		Keywords: []string{"customs", "declare", "duty", "import"},
		Answer:   "Goods above the destination's duty-free threshold must be declared on arrival; undeclared excess goods risk fines and confiscation.",
		Source:   "wcoomd",
		URL:      "https://www.wcoomd.org/en/topics/facilitation/instrument-and-tools.aspx",
	},
}
