// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

const defaultFlightsBaseURL = "https://partners.aleutian.ai/flights/v1/search"

// maxFlightFacts caps how many itineraries one search contributes.
const maxFlightFacts = 3

// FlightsTool searches itineraries against the partner flight API.
// The endpoint is deployment configuration (VOYAGE_FLIGHTS_API_URL);
// no retry here, the partner API is idempotent but metered per call.
type FlightsTool struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewFlightsTool creates the adapter from environment configuration.
func NewFlightsTool() *FlightsTool {
	base := os.Getenv("VOYAGE_FLIGHTS_API_URL")
	if base == "" {
		base = defaultFlightsBaseURL
	}
	return &FlightsTool{
		httpClient: &http.Client{Timeout: 8 * time.Second},
		baseURL:    base,
		apiKey:     os.Getenv("VOYAGE_FLIGHTS_API_KEY"),
	}
}

// WithBaseURL overrides the endpoint, for tests.
func (t *FlightsTool) WithBaseURL(base string) *FlightsTool {
	t.baseURL = base
	return t
}

func (t *FlightsTool) Name() string { return "flights" }

func (t *FlightsTool) Host() string {
	if u, err := url.Parse(t.baseURL); err == nil && u.Host != "" {
		return u.Host
	}
	return "partners.aleutian.ai"
}

type flightSearchResponse struct {
	Itineraries []struct {
		Carrier  string `json:"carrier"`
		Number   string `json:"number"`
		Depart   string `json:"depart"`
		Arrive   string `json:"arrive"`
		Price    string `json:"price"`
		Stops    int    `json:"stops"`
		Duration string `json:"duration"`
	} `json:"itineraries"`
}

// Invoke searches origin→destination itineraries.
func (t *FlightsTool) Invoke(ctx context.Context, args map[string]string) ([]datatypes.Fact, error) {
	origin := strings.ToUpper(args["origin"])
	destination := strings.ToUpper(args["destination"])

	q := url.Values{}
	q.Set("origin", origin)
	q.Set("destination", destination)
	if dates := args["dates"]; dates != "" {
		q.Set("date", dates)
	}
	reqURL := t.baseURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("flight search %s-%s: status %d", origin, destination, resp.StatusCode)
	}

	var out flightSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Itineraries) == 0 {
		return nil, fmt.Errorf("flight search %s-%s: no itineraries", origin, destination)
	}

	route := origin + "-" + destination
	facts := make([]datatypes.Fact, 0, maxFlightFacts)
	for _, it := range out.Itineraries {
		if len(facts) >= maxFlightFacts {
			break
		}
		facts = append(facts, datatypes.Fact{
			Source: "flights-api",
			Key:    "itinerary_" + route,
			Value: fmt.Sprintf("%s %s %s: dep %s arr %s, %d stop(s), %s, %s",
				it.Carrier, it.Number, route, it.Depart, it.Arrive, it.Stops, it.Duration, it.Price),
			URL: reqURL,
		})
	}
	return facts, nil
}
