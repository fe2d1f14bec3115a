// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package classifier provides intent classification for the router's
// fallback cascade: a cheap keyword classifier first, escalating to an
// LLM-backed classifier only when keyword confidence is low.
package classifier

import (
	"errors"
	"time"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

// Classification is the result of classifying one message.
type Classification struct {
	// Intent is the classified intent (IntentUnknown when nothing
	// matched).
	Intent datatypes.Intent

	// Confidence is the classifier's confidence in [0,1].
	Confidence float64

	// Slots holds values extracted alongside the intent, when the
	// classifier produces them (the LLM classifier does).
	Slots map[string]string

	// Source records which stage produced the result:
	// "keyword", "llm", or "cache".
	Source string
}

// Config tunes the LLM classifier.
type Config struct {
	// Timeout bounds a single classification call. Default: 5s.
	Timeout time.Duration

	// CacheTTL is how long classifications are reused. Default: 5m.
	CacheTTL time.Duration

	// CacheMaxSize caps cache entries. Default: 1000.
	CacheMaxSize int

	// MaxConcurrent bounds in-flight LLM classification calls.
	// Default: 4.
	MaxConcurrent int
}

// Validate checks the configuration for nonsensical values.
func (c Config) Validate() error {
	if c.Timeout < 0 || c.CacheTTL < 0 {
		return errors.New("classifier: negative durations not allowed")
	}
	if c.CacheMaxSize < 0 || c.MaxConcurrent < 0 {
		return errors.New("classifier: negative sizes not allowed")
	}
	return nil
}

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.CacheMaxSize == 0 {
		c.CacheMaxSize = 1000
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 4
	}
	return c
}
