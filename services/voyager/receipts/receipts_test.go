// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package receipts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/session"
)

func TestBuild_DedupesSourcesAndSumsLatency(t *testing.T) {
	facts := []datatypes.Fact{
		{Source: "open-meteo", Key: "current_weather", Value: "21°C", LatencyMS: 120},
		{Source: "open-meteo", Key: "forecast_range", Value: "24/14", LatencyMS: 120},
		{Source: "wikipedia", Key: "attraction", Value: "Louvre", LatencyMS: 340},
	}
	decisions := []datatypes.Decision{
		{Action: "route", Rationale: "weather keywords", Confidence: 0.8},
	}

	receipt := Build(facts, decisions, 450)

	assert.Equal(t, []string{"open-meteo", "wikipedia"}, receipt.Sources)
	assert.Equal(t, int64(580), receipt.Budgets.ExtAPILatencyMS)
	assert.Equal(t, 450, receipt.Budgets.TokenEstimate)
	assert.Equal(t, datatypes.VerdictWarn, receipt.Verdict)
	assert.False(t, receipt.CreatedAt.IsZero())
}

func TestBuild_EmptyFacts(t *testing.T) {
	receipt := Build(nil, nil, 0)

	assert.Equal(t, []string{}, receipt.Sources)
	assert.Zero(t, receipt.Budgets.ExtAPILatencyMS)
	assert.Equal(t, datatypes.VerdictWarn, receipt.Verdict)
	assert.NotNil(t, receipt.Decisions)
}

func TestWriter_SaveIsReplaceOnly(t *testing.T) {
	store := session.NewMemoryStore(session.Config{})
	defer store.Close()
	w := NewWriter(store)
	ctx := context.Background()

	first := Build([]datatypes.Fact{{Source: "open-meteo", Value: "x", LatencyMS: 10}}, nil, 1)
	require.NoError(t, w.Save(ctx, "t1", first))

	second := Build([]datatypes.Fact{{Source: "wikipedia", Value: "y", LatencyMS: 20}}, nil, 2)
	require.NoError(t, w.Save(ctx, "t1", second))

	got, err := w.Last(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"wikipedia"}, got.Sources, "receipts are replaced, not appended")
}

func TestWriter_LastOnFreshThread(t *testing.T) {
	store := session.NewMemoryStore(session.Config{})
	defer store.Close()
	w := NewWriter(store)

	_, err := w.Last(context.Background(), "nope")
	assert.ErrorIs(t, err, session.ErrNotFound)
}
