// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classifier

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// cacheEntry is one cached classification with its expiry.
type cacheEntry struct {
	result    Classification
	expiresAt time.Time
}

// classificationCache caches LLM classifications keyed by a hash of
// the normalized message. Entries expire after the configured TTL and
// the oldest entries are evicted when the cache is full.
//
// Thread Safety: safe for concurrent use via RWMutex.
type classificationCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	order   []string // insertion order, for eviction
	maxSize int
	ttl     time.Duration
}

func newClassificationCache(maxSize int, ttl time.Duration) *classificationCache {
	return &classificationCache{
		entries: make(map[string]cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// cacheKey hashes the normalized message.
func cacheKey(message string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(message))))
	return hex.EncodeToString(sum[:])
}

func (c *classificationCache) get(key string) (Classification, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return Classification{}, false
	}
	result := entry.result
	result.Source = "cache"
	return result, true
}

func (c *classificationCache) put(key string, result Classification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		for len(c.order) >= c.maxSize && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = cacheEntry{result: result, expiresAt: time.Now().Add(c.ttl)}
}
