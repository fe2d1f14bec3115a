// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeatherTool_GeocodesThenFetchesForecast(t *testing.T) {
	geocode := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Paris", r.URL.Query().Get("name"))
		w.Write([]byte(`{"results":[{"name":"Paris","country":"France","latitude":48.85,"longitude":2.35}]}`))
	}))
	defer geocode.Close()

	forecast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "48.8500", r.URL.Query().Get("latitude"))
		w.Write([]byte(`{
			"current":{"temperature_2m":21.4,"weather_code":2,"wind_speed_10m":12},
			"daily":{"temperature_2m_max":[22,24,20],"temperature_2m_min":[14,15,13]}
		}`))
	}))
	defer forecast.Close()

	tool := NewWeatherTool().WithEndpoints(geocode.URL, forecast.URL)
	facts, err := tool.Invoke(context.Background(), map[string]string{"city": "Paris"})

	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, "open-meteo", facts[0].Source)
	assert.Contains(t, facts[0].Value, "Paris, France")
	assert.Contains(t, facts[0].Value, "21.4°C")
	assert.Contains(t, facts[0].Value, "partly cloudy")
	assert.Contains(t, facts[1].Value, "highs to 24°C")
}

func TestWeatherTool_UnknownCity(t *testing.T) {
	geocode := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer geocode.Close()

	tool := NewWeatherTool().WithEndpoints(geocode.URL, "http://invalid.invalid")
	_, err := tool.Invoke(context.Background(), map[string]string{"city": "Xyzzy"})

	assert.ErrorContains(t, err, "no results")
}

func TestCountryTool_SummarizesProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "Japan")
		w.Write([]byte(`[{
			"name":{"common":"Japan"},
			"capital":["Tokyo"],
			"region":"Asia",
			"currencies":{"JPY":{"name":"Japanese yen","symbol":"¥"}},
			"languages":{"jpn":"Japanese"}
		}]`))
	}))
	defer srv.Close()

	tool := NewCountryTool().WithBaseURL(srv.URL)
	facts, err := tool.Invoke(context.Background(), map[string]string{"country": "Japan"})

	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "restcountries", facts[0].Source)
	assert.Contains(t, facts[0].Value, "capital Tokyo")
	assert.Contains(t, facts[0].Value, "Japanese yen (JPY)")
}

func TestAttractionsTool_ReturnsOneFactPerHit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"query":{"search":[
			{"title":"Colosseum","pageid":1},
			{"title":"Trevi Fountain","pageid":2}
		]}}`))
	}))
	defer srv.Close()

	tool := NewAttractionsTool().WithBaseURL(srv.URL)
	facts, err := tool.Invoke(context.Background(), map[string]string{"city": "Rome"})

	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, "wikipedia", facts[0].Source)
	assert.Equal(t, "Colosseum", facts[0].Value)
	assert.Contains(t, facts[1].URL, "curid=2")
}

func TestAttractionsTool_RetriesTransientErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"query":{"search":[{"title":"Louvre","pageid":7}]}}`))
	}))
	defer srv.Close()

	tool := NewAttractionsTool().WithBaseURL(srv.URL)
	facts, err := tool.Invoke(context.Background(), map[string]string{"city": "Paris"})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "Louvre", facts[0].Value)
}

func TestWebSearchTool_AbstractAndRelated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "best ramen in Tokyo", r.URL.Query().Get("q"))
		w.Write([]byte(`{
			"AbstractText":"Ramen is a Japanese noodle dish.",
			"AbstractURL":"https://en.wikipedia.org/wiki/Ramen",
			"AbstractSource":"Wikipedia",
			"RelatedTopics":[{"Text":"Tonkotsu ramen","FirstURL":"https://example.com/tonkotsu"}]
		}`))
	}))
	defer srv.Close()

	tool := NewWebSearchTool().WithBaseURL(srv.URL)
	facts, err := tool.Invoke(context.Background(), map[string]string{"query": "best ramen in Tokyo"})

	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, "Wikipedia", facts[0].Source)
	assert.Equal(t, "duckduckgo", facts[1].Source)
}

func TestWebSearchTool_NoUsableResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"AbstractText":"","Answer":"","RelatedTopics":[]}`))
	}))
	defer srv.Close()

	tool := NewWebSearchTool().WithBaseURL(srv.URL)
	_, err := tool.Invoke(context.Background(), map[string]string{"query": "zxqv"})

	assert.ErrorContains(t, err, "no usable results")
}

func TestFlightsTool_FormatsItineraries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "JFK", r.URL.Query().Get("origin"))
		assert.Equal(t, "LAX", r.URL.Query().Get("destination"))
		w.Write([]byte(`{"itineraries":[
			{"carrier":"DL","number":"423","depart":"08:15","arrive":"11:32","price":"$214","stops":0,"duration":"6h17m"},
			{"carrier":"AA","number":"1","depart":"09:00","arrive":"12:20","price":"$198","stops":0,"duration":"6h20m"}
		]}`))
	}))
	defer srv.Close()

	tool := NewFlightsTool().WithBaseURL(srv.URL)
	facts, err := tool.Invoke(context.Background(), map[string]string{"origin": "jfk", "destination": "lax"})

	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, "flights-api", facts[0].Source)
	assert.Equal(t, "itinerary_JFK-LAX", facts[0].Key)
	assert.Contains(t, facts[0].Value, "DL 423")
}

func TestPolicyTool_BuiltinCorpusMatchesKeywords(t *testing.T) {
	tool, err := NewPolicyTool("")
	require.NoError(t, err)

	facts, err := tool.Invoke(context.Background(), map[string]string{"topic": "how much liquid in carry-on"})

	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "tsa", facts[0].Source)
	assert.Contains(t, facts[0].Value, "100ml")
}

func TestPolicyTool_LoadsYAMLCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	corpus := `
- topic: lounge_access
  keywords: [lounge, "priority pass"]
  answer: Lounge access depends on fare class and card benefits.
  source: corp-travel
  url: https://example.com/lounge
`
	require.NoError(t, os.WriteFile(path, []byte(corpus), 0o644))

	tool, err := NewPolicyTool(path)
	require.NoError(t, err)

	facts, err := tool.Invoke(context.Background(), map[string]string{"topic": "do I get lounge access"})
	require.NoError(t, err)
	assert.Equal(t, "corp-travel", facts[0].Source)

	_, err = tool.Invoke(context.Background(), map[string]string{"topic": "completely unrelated"})
	assert.Error(t, err)
}
