// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianVoyage/services/llm"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/classifier"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

// countingLLM counts Generate calls so tests can assert the model was
// never consulted on deterministic paths.
type countingLLM struct {
	response string
	calls    atomic.Int64
}

func (f *countingLLM) Generate(_ context.Context, _ string, _ llm.GenerationParams) (string, error) {
	f.calls.Add(1)
	return f.response, nil
}

func (f *countingLLM) Chat(_ context.Context, _ []llm.Message, _ llm.GenerationParams) (string, error) {
	f.calls.Add(1)
	return f.response, nil
}

func newTestRouter(t *testing.T, model *countingLLM) *Router {
	t.Helper()
	keyword := classifier.NewKeywordClassifier()
	var llmCls *classifier.LLMClassifier
	if model != nil {
		var err error
		llmCls, err = classifier.NewLLMClassifier(model, keyword, classifier.Config{})
		require.NoError(t, err)
	}
	return New(keyword, llmCls)
}

func TestRoute_FlightHeuristicSkipsModel(t *testing.T) {
	model := &countingLLM{response: `{"intent":"weather","confidence":0.9,"slots":{}}`}
	router := newTestRouter(t, model)

	result := router.Route(context.Background(), "flights from JFK to LAX tomorrow", nil)

	assert.Equal(t, datatypes.IntentFlights, result.Intent)
	assert.GreaterOrEqual(t, result.Confidence, 0.85)
	assert.True(t, result.GuardHandled)
	assert.True(t, result.NeedExternal)
	assert.Equal(t, "JFK", result.Slots["origin"])
	assert.Equal(t, "LAX", result.Slots["destination"])
	assert.Equal(t, int64(0), model.calls.Load(), "deterministic route must not call the model")
}

func TestRoute_Guards(t *testing.T) {
	router := newTestRouter(t, nil)

	tests := []struct {
		name    string
		message string
		intent  datatypes.Intent
	}{
		{"help", "help", datatypes.IntentSystem},
		{"what can you do", "what can you do?", datatypes.IntentSystem},
		{"web search", "search for best ramen in Tokyo", datatypes.IntentWebSearch},
		{"policy visa", "do I need a visa for Japan?", datatypes.IntentPolicy},
		{"policy baggage", "what's the baggage allowance on international flights", datatypes.IntentPolicy},
		{"policy customs", "anything I must declare at customs?", datatypes.IntentPolicy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := router.Route(context.Background(), tt.message, nil)
			assert.Equal(t, tt.intent, result.Intent)
			assert.Equal(t, GuardConfidence, result.Confidence)
			assert.True(t, result.GuardHandled)
		})
	}
}

func TestRoute_SearchGuardExtractsQuery(t *testing.T) {
	router := newTestRouter(t, nil)
	result := router.Route(context.Background(), "search the web for cherry blossom season in Kyoto", nil)
	assert.Equal(t, datatypes.IntentWebSearch, result.Intent)
	assert.Equal(t, "cherry blossom season in Kyoto", result.Slots["search_query"])
}

func TestRoute_GuardClearsWorkflowSlots(t *testing.T) {
	router := newTestRouter(t, nil)
	slots := datatypes.Slots{}
	now := time.Now()
	slots.Set("awaiting_consent", "true", now)
	slots.Set("city", "Lisbon", now)

	router.Route(context.Background(), "help", slots)

	_, hasWorkflow := slots["awaiting_consent"]
	assert.False(t, hasWorkflow, "workflow slots must be cleared on guard hits")
	assert.Contains(t, slots, "city", "context slots survive guard hits")
}

func TestRoute_KeywordPathNoEscalation(t *testing.T) {
	model := &countingLLM{response: `{"intent":"unknown","confidence":0.1,"slots":{}}`}
	router := newTestRouter(t, model)

	// Multiple weather keywords push keyword confidence past the
	// escalation threshold.
	result := router.Route(context.Background(), "what's the weather forecast and temperature in Paris", nil)

	assert.Equal(t, datatypes.IntentWeather, result.Intent)
	assert.GreaterOrEqual(t, result.Confidence, EscalationThreshold)
	assert.Equal(t, int64(0), model.calls.Load())
}

func TestRoute_EscalatesToModelOnLowConfidence(t *testing.T) {
	model := &countingLLM{response: `{"intent":"destinations","confidence":0.85,"slots":{"month":"october"}}`}
	router := newTestRouter(t, model)

	result := router.Route(context.Background(), "somewhere warm but not too crowded maybe", nil)

	assert.Equal(t, datatypes.IntentDestinations, result.Intent)
	assert.InDelta(t, 0.85, result.Confidence, 1e-9)
	assert.Equal(t, "october", result.Slots["month"])
	assert.Equal(t, int64(1), model.calls.Load())
}

func TestRoute_UnknownBelowThreshold(t *testing.T) {
	router := newTestRouter(t, nil)

	result := router.Route(context.Background(), "asdf qwerty zxcv", nil)

	assert.Equal(t, datatypes.IntentUnknown, result.Intent)
	assert.Less(t, result.Confidence, UnknownThreshold)
	assert.False(t, result.NeedExternal)
}

func TestRoute_Idempotent(t *testing.T) {
	router := newTestRouter(t, nil)
	msg := "what should I pack for Iceland in winter"

	first := router.Route(context.Background(), msg, nil)
	second := router.Route(context.Background(), msg, nil)

	assert.Equal(t, first.Intent, second.Intent)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.Slots, second.Slots)
}

func TestRoute_MergesExtractedSlots(t *testing.T) {
	router := newTestRouter(t, nil)

	result := router.Route(context.Background(), "what's the weather like in Lisbon in october", nil)

	assert.Equal(t, datatypes.IntentWeather, result.Intent)
	assert.Equal(t, "Lisbon", result.Slots["city"])
	assert.Equal(t, "october", result.Slots["month"])
}
