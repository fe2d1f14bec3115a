// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a call is rejected by a limiter.
// Rejection means "rejected now", never "queued".
var ErrRateLimited = errors.New("rate limit exceeded")

// LimiterConfig configures one token-bucket limiter.
type LimiterConfig struct {
	// Reservoir is the bucket capacity and initial fill.
	// Default: 10
	Reservoir int

	// RefreshAmount tokens are added every RefreshInterval, capped at
	// Reservoir. Defaults: 10 per 1 second.
	RefreshAmount   int
	RefreshInterval time.Duration

	// MaxConcurrent caps in-flight calls regardless of tokens.
	// Default: 4
	MaxConcurrent int

	// MinTime is the minimum spacing between consecutive acquisitions.
	// Default: 0 (no spacing)
	MinTime time.Duration
}

func (c LimiterConfig) withDefaults() LimiterConfig {
	if c.Reservoir <= 0 {
		c.Reservoir = 10
	}
	if c.RefreshAmount <= 0 {
		c.RefreshAmount = 10
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = time.Second
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}
	return c
}

// Limiter is a token-bucket rate limiter with a concurrency cap and
// minimum call spacing. Refill is lazy: tokens are credited on the
// next Acquire rather than by a background timer.
//
// Thread Safety: safe for concurrent use.
type Limiter struct {
	cfg LimiterConfig
	now func() time.Time

	mu          sync.Mutex
	tokens      int
	inflight    int
	lastRefresh time.Time
	lastAcquire time.Time
}

// NewLimiter creates a full bucket.
func NewLimiter(cfg LimiterConfig) *Limiter {
	return newLimiterWithClock(cfg, time.Now)
}

func newLimiterWithClock(cfg LimiterConfig, now func() time.Time) *Limiter {
	cfg = cfg.withDefaults()
	return &Limiter{
		cfg:         cfg,
		now:         now,
		tokens:      cfg.Reservoir,
		lastRefresh: now(),
	}
}

// Acquire takes one token if the bucket, the concurrency cap and the
// minimum spacing all allow it. Non-blocking; a false return must be
// treated as a rejection. Every true return must be paired with
// exactly one Release.
func (l *Limiter) Acquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.refill(now)

	if l.tokens <= 0 {
		return false
	}
	if l.inflight >= l.cfg.MaxConcurrent {
		return false
	}
	if l.cfg.MinTime > 0 && !l.lastAcquire.IsZero() && now.Sub(l.lastAcquire) < l.cfg.MinTime {
		return false
	}

	l.tokens--
	l.inflight++
	l.lastAcquire = now
	return true
}

// Release returns the in-flight slot taken by a successful Acquire.
// Tokens are not returned; they regenerate on the refresh schedule.
func (l *Limiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inflight > 0 {
		l.inflight--
	}
}

// refill credits whole elapsed refresh intervals. Caller holds l.mu.
func (l *Limiter) refill(now time.Time) {
	elapsed := now.Sub(l.lastRefresh)
	if elapsed < l.cfg.RefreshInterval {
		return
	}
	intervals := int(elapsed / l.cfg.RefreshInterval)
	l.tokens += intervals * l.cfg.RefreshAmount
	if l.tokens > l.cfg.Reservoir {
		l.tokens = l.cfg.Reservoir
	}
	l.lastRefresh = l.lastRefresh.Add(time.Duration(intervals) * l.cfg.RefreshInterval)
}

// Tokens returns the current token count after a lazy refill. Used by
// diagnostics and tests.
func (l *Limiter) Tokens() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill(l.now())
	return l.tokens
}
