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
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

const wikipediaHost = "en.wikipedia.org"

// maxAttractionFacts caps how many points of interest one call
// contributes to a turn.
const maxAttractionFacts = 5

// AttractionsTool finds points of interest for a city through the
// Wikipedia search API. Wikipedia rate-limits aggressively, so the
// call retries with exponential backoff on transient failures.
type AttractionsTool struct {
	httpClient *http.Client
	baseURL    string
}

// NewAttractionsTool creates the adapter with the production endpoint.
func NewAttractionsTool() *AttractionsTool {
	return &AttractionsTool{
		httpClient: &http.Client{Timeout: 8 * time.Second},
		baseURL:    "https://" + wikipediaHost + "/w/api.php",
	}
}

// WithBaseURL overrides the endpoint, for tests.
func (t *AttractionsTool) WithBaseURL(base string) *AttractionsTool {
	t.baseURL = base
	return t
}

func (t *AttractionsTool) Name() string { return "attractions" }
func (t *AttractionsTool) Host() string { return wikipediaHost }

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			PageID  int    `json:"pageid"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

// Invoke searches for tourist attractions in args["city"].
func (t *AttractionsTool) Invoke(ctx context.Context, args map[string]string) ([]datatypes.Fact, error) {
	city := args["city"]

	q := url.Values{}
	q.Set("action", "query")
	q.Set("list", "search")
	q.Set("srsearch", "tourist attractions in "+city)
	q.Set("srlimit", fmt.Sprintf("%d", maxAttractionFacts))
	q.Set("format", "json")
	reqURL := t.baseURL + "?" + q.Encode()

	result, err := backoff.Retry(ctx, func() (*wikiSearchResponse, error) {
		return t.search(ctx, reqURL)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
	if err != nil {
		return nil, fmt.Errorf("attractions for %q: %w", city, err)
	}

	if len(result.Query.Search) == 0 {
		return nil, fmt.Errorf("attractions for %q: no results", city)
	}
	facts := make([]datatypes.Fact, 0, len(result.Query.Search))
	for _, hit := range result.Query.Search {
		facts = append(facts, datatypes.Fact{
			Source: "wikipedia",
			Key:    "attraction",
			Value:  hit.Title,
			URL:    fmt.Sprintf("https://%s/?curid=%d", wikipediaHost, hit.PageID),
		})
	}
	return facts, nil
}

func (t *AttractionsTool) search(ctx context.Context, reqURL string) (*wikiSearchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("transient status %d", resp.StatusCode)
	default:
		return nil, backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
	}

	var out wikiSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, backoff.Permanent(err)
	}
	return &out, nil
}
