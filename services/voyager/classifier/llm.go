// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianVoyage/services/llm"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

var llmTracer = otel.Tracer("aleutian.voyager.classifier")

// classificationPrompt keeps the token count low: intent names only,
// no descriptions, strict JSON output.
const classificationPrompt = `You are an intent classifier for a travel assistant.

Classify the user's message into exactly one intent:
weather, packing, attractions, destinations, policy, flights, disruption, websearch, system, unknown

Also extract any slots you can see: city, country, month, dates, origin, destination, passengers.

Respond with ONLY valid JSON (no markdown, no preamble):
{"intent":"name","confidence":0.0,"slots":{}}

Message: %s`

// llmClassification mirrors the JSON shape the model is asked for.
type llmClassification struct {
	Intent     string            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Slots      map[string]string `json:"slots"`
}

// LLMClassifier escalates classification to the language model.
//
// It caches results, coalesces identical in-flight requests via
// singleflight, bounds concurrency with a semaphore, and falls back to
// the keyword classifier whenever the model errors or returns
// unusable output — classification never fails, it only degrades.
//
// Thread Safety: safe for concurrent use after construction.
type LLMClassifier struct {
	client   llm.Client
	keyword  *KeywordClassifier
	cache    *classificationCache
	cfg      Config
	inflight singleflight.Group
	sem      chan struct{}
}

// NewLLMClassifier creates the escalation classifier.
func NewLLMClassifier(client llm.Client, keyword *KeywordClassifier, cfg Config) (*LLMClassifier, error) {
	if client == nil {
		return nil, errors.New("classifier: client must not be nil")
	}
	if keyword == nil {
		return nil, errors.New("classifier: keyword fallback must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	return &LLMClassifier{
		client:  client,
		keyword: keyword,
		cache:   newClassificationCache(cfg.CacheMaxSize, cfg.CacheTTL),
		cfg:     cfg,
		sem:     make(chan struct{}, cfg.MaxConcurrent),
	}, nil
}

// Classify returns the model's classification, or the keyword result
// when the model cannot be consulted.
func (c *LLMClassifier) Classify(ctx context.Context, message string) Classification {
	ctx, span := llmTracer.Start(ctx, "LLMClassifier.Classify")
	defer span.End()

	key := cacheKey(message)
	if cached, ok := c.cache.get(key); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return cached
	}

	result, err, _ := c.inflight.Do(key, func() (any, error) {
		return c.classifyUncached(ctx, key, message)
	})
	if err != nil {
		slog.Warn("LLM classification failed, using keyword fallback", "error", err)
		span.SetAttributes(attribute.String("fallback", "keyword"))
		return c.keyword.Classify(ctx, message)
	}
	return result.(Classification)
}

func (c *LLMClassifier) classifyUncached(ctx context.Context, key, message string) (Classification, error) {
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return Classification{}, ctx.Err()
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	raw, err := c.client.Generate(callCtx, fmt.Sprintf(classificationPrompt, message), llm.GenerationParams{
		JSONMode: true,
	})
	if err != nil {
		return Classification{}, fmt.Errorf("classification call: %w", err)
	}

	parsed, err := parseClassification(raw)
	if err != nil {
		return Classification{}, err
	}
	c.cache.put(key, parsed)
	return parsed, nil
}

// parseClassification tolerates preambles and markdown fences around
// the JSON object: it extracts the outermost braces before decoding.
func parseClassification(raw string) (Classification, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Classification{}, fmt.Errorf("no JSON object in classifier output: %q", truncate(raw, 120))
	}

	var out llmClassification
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return Classification{}, fmt.Errorf("decode classifier output: %w", err)
	}

	conf := out.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return Classification{
		Intent:     datatypes.ParseIntent(out.Intent),
		Confidence: conf,
		Slots:      out.Slots,
		Source:     "llm",
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
