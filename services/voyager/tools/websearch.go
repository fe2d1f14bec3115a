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

const duckDuckGoHost = "api.duckduckgo.com"

// WebSearchTool answers open-ended queries through the DuckDuckGo
// instant answer API. It is the fallback provider when no structured
// tool covers the question.
type WebSearchTool struct {
	httpClient *http.Client
	baseURL    string
}

// NewWebSearchTool creates the adapter with the production endpoint.
func NewWebSearchTool() *WebSearchTool {
	return &WebSearchTool{
		httpClient: &http.Client{Timeout: 8 * time.Second},
		baseURL:    "https://" + duckDuckGoHost + "/",
	}
}

// WithBaseURL overrides the endpoint, for tests.
func (t *WebSearchTool) WithBaseURL(base string) *WebSearchTool {
	t.baseURL = base
	return t
}

func (t *WebSearchTool) Name() string { return "websearch" }
func (t *WebSearchTool) Host() string { return duckDuckGoHost }

type instantAnswerResponse struct {
	AbstractText   string `json:"AbstractText"`
	AbstractURL    string `json:"AbstractURL"`
	AbstractSource string `json:"AbstractSource"`
	Answer         string `json:"Answer"`
	RelatedTopics  []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

// Invoke searches for args["query"] and returns the abstract plus up
// to two related topics.
func (t *WebSearchTool) Invoke(ctx context.Context, args map[string]string) ([]datatypes.Fact, error) {
	query := args["query"]

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	reqURL := t.baseURL + "?" + q.Encode()

	answer, err := backoff.Retry(ctx, func() (*instantAnswerResponse, error) {
		return t.fetch(ctx, reqURL)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
	if err != nil {
		return nil, fmt.Errorf("websearch %q: %w", query, err)
	}

	var facts []datatypes.Fact
	if answer.Answer != "" {
		facts = append(facts, datatypes.Fact{
			Source: "duckduckgo", Key: "answer", Value: answer.Answer, URL: reqURL,
		})
	}
	if answer.AbstractText != "" {
		facts = append(facts, datatypes.Fact{
			Source: answerSource(answer.AbstractSource),
			Key:    "abstract",
			Value:  answer.AbstractText,
			URL:    answer.AbstractURL,
		})
	}
	for _, topic := range answer.RelatedTopics {
		if len(facts) >= 3 {
			break
		}
		if topic.Text == "" {
			continue
		}
		facts = append(facts, datatypes.Fact{
			Source: "duckduckgo", Key: "related", Value: topic.Text, URL: topic.FirstURL,
		})
	}
	if len(facts) == 0 {
		return nil, fmt.Errorf("websearch %q: no usable results", query)
	}
	return facts, nil
}

func (t *WebSearchTool) fetch(ctx context.Context, reqURL string) (*instantAnswerResponse, error) {
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

	var out instantAnswerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, backoff.Permanent(err)
	}
	return &out, nil
}

func answerSource(s string) string {
	if s == "" {
		return "duckduckgo"
	}
	return s
}
