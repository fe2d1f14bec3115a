// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package grounding verifies a drafted reply against the facts that
// were gathered for it. The check never blocks a reply; it produces a
// verdict that is recorded on the turn's receipt.
package grounding

import (
	"context"
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

// Severity grades a single grounding violation.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ViolationType categorizes the kind of grounding failure.
type ViolationType string

const (
	// ViolationNoFacts means the reply makes claims with no gathered
	// facts behind it at all.
	ViolationNoFacts ViolationType = "no_facts"

	// ViolationNumericDrift means the reply contains numbers that do
	// not appear in any fact.
	ViolationNumericDrift ViolationType = "numeric_drift"

	// ViolationLowCoverage means most gathered facts are not
	// reflected in the reply.
	ViolationLowCoverage ViolationType = "low_coverage"

	// ViolationEmptyReply means the reply is blank, which the turn
	// contract forbids.
	ViolationEmptyReply ViolationType = "empty_reply"
)

// Violation is a single grounding failure found in a reply.
type Violation struct {
	Type     ViolationType `json:"type"`
	Severity Severity      `json:"severity"`
	Message  string        `json:"message"`
	Evidence string        `json:"evidence,omitempty"`
}

// Result is the outcome of verifying one reply.
type Result struct {
	Verdict    datatypes.Verdict `json:"verdict"`
	Violations []Violation       `json:"violations,omitempty"`

	// FactCoverage is the fraction of facts whose value appears, at
	// least partially, in the reply.
	FactCoverage float64 `json:"fact_coverage"`
}

// Checker is one grounding check over a reply and its facts.
//
// Thread Safety: implementations must be safe for concurrent use.
type Checker interface {
	Name() string
	Check(ctx context.Context, reply string, facts []datatypes.Fact) []Violation
}

// Verifier composes the default checker pipeline.
type Verifier struct {
	checkers []Checker
}

// NewVerifier creates a verifier with the standard checks.
func NewVerifier() *Verifier {
	return &Verifier{
		checkers: []Checker{
			&emptyReplyChecker{},
			&numericDriftChecker{},
			&coverageChecker{},
		},
	}
}

// Verify runs every checker and folds violations into a verdict:
// any critical violation fails, any warning warns, otherwise pass.
func (v *Verifier) Verify(ctx context.Context, reply string, facts []datatypes.Fact) Result {
	result := Result{
		Verdict:      datatypes.VerdictPass,
		FactCoverage: factCoverage(reply, facts),
	}
	for _, checker := range v.checkers {
		result.Violations = append(result.Violations, checker.Check(ctx, reply, facts)...)
	}
	for _, violation := range result.Violations {
		switch violation.Severity {
		case SeverityCritical:
			result.Verdict = datatypes.VerdictFail
		case SeverityWarning:
			if result.Verdict == datatypes.VerdictPass {
				result.Verdict = datatypes.VerdictWarn
			}
		}
	}
	return result
}

// emptyReplyChecker enforces the never-empty reply contract.
type emptyReplyChecker struct{}

func (*emptyReplyChecker) Name() string { return "empty_reply" }

func (*emptyReplyChecker) Check(_ context.Context, reply string, _ []datatypes.Fact) []Violation {
	if strings.TrimSpace(reply) != "" {
		return nil
	}
	return []Violation{{
		Type:     ViolationEmptyReply,
		Severity: SeverityCritical,
		Message:  "reply is empty",
	}}
}

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// numericDriftChecker flags numbers in the reply that no fact backs.
// Numbers are where travel answers hallucinate first: temperatures,
// prices, day counts.
type numericDriftChecker struct{}

func (*numericDriftChecker) Name() string { return "numeric_drift" }

func (*numericDriftChecker) Check(_ context.Context, reply string, facts []datatypes.Fact) []Violation {
	replyNumbers := numberPattern.FindAllString(reply, -1)
	if len(replyNumbers) == 0 {
		return nil
	}

	factNumbers := make(map[string]bool)
	for _, f := range facts {
		for _, n := range numberPattern.FindAllString(f.Value, -1) {
			factNumbers[n] = true
		}
	}

	var unbacked []string
	for _, n := range replyNumbers {
		if !factNumbers[n] {
			unbacked = append(unbacked, n)
		}
	}
	if len(unbacked) == 0 {
		return nil
	}
	return []Violation{{
		Type:     ViolationNumericDrift,
		Severity: SeverityWarning,
		Message:  "reply contains numbers not present in any gathered fact",
		Evidence: strings.Join(unbacked, ", "),
	}}
}

// minCoverage is the fact-coverage floor below which a reply is
// flagged as weakly grounded.
const minCoverage = 0.3

// coverageChecker measures how much of the gathered evidence the
// reply actually uses.
type coverageChecker struct{}

func (*coverageChecker) Name() string { return "coverage" }

func (*coverageChecker) Check(_ context.Context, reply string, facts []datatypes.Fact) []Violation {
	if len(facts) == 0 {
		return []Violation{{
			Type:     ViolationNoFacts,
			Severity: SeverityWarning,
			Message:  "no facts were gathered for this reply",
		}}
	}
	if cov := factCoverage(reply, facts); cov < minCoverage {
		return []Violation{{
			Type:     ViolationLowCoverage,
			Severity: SeverityWarning,
			Message:  "reply reflects little of the gathered evidence",
		}}
	}
	return nil
}

// factCoverage returns the fraction of facts with at least one
// significant token present in the reply.
func factCoverage(reply string, facts []datatypes.Fact) float64 {
	if len(facts) == 0 {
		return 0
	}
	lower := strings.ToLower(reply)
	covered := 0
	for _, f := range facts {
		for _, token := range strings.Fields(strings.ToLower(f.Value)) {
			token = strings.Trim(token, ".,:;()")
			if len(token) < 4 {
				continue
			}
			if strings.Contains(lower, token) {
				covered++
				break
			}
		}
	}
	return float64(covered) / float64(len(facts))
}
