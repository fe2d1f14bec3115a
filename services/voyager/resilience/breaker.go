// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package resilience guards every outbound call the agent makes.
//
// Each external target gets a circuit breaker, every provider gets a
// token-bucket rate limiter, hosts get minimum-spacing scheduling and
// a temporary blocklist. All of it is owned by one Service with an
// explicit lifecycle so tests can construct and tear down isolated
// instances.
package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// BreakerState is the state of one circuit breaker.
//
//	CLOSED ──[failures ≥ threshold]──► OPEN
//	   ▲                                │
//	   │                          [resetTimeout]
//	   └──[successes ≥ threshold]── HALF_OPEN
//	                                    │
//	            [any failure] ──────────┴──► OPEN
type BreakerState int

const (
	// BreakerClosed is the normal operating state.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects calls immediately without attempting them.
	BreakerOpen

	// BreakerHalfOpen lets probe calls through to test recovery.
	BreakerHalfOpen
)

// String returns a human-readable state name.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// ErrBreakerOpen is returned when a call is rejected because the
// target's breaker is open.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// BreakerConfig controls how a breaker trips and recovers.
type BreakerConfig struct {
	// FailureThreshold is consecutive failures before opening.
	// Default: 5
	FailureThreshold int

	// SuccessThreshold is consecutive half-open successes to close.
	// Default: 2
	SuccessThreshold int

	// ResetTimeout is how long the breaker stays open before a probe
	// call is allowed through (open → half-open).
	// Default: 30 seconds
	ResetTimeout time.Duration

	// OpenTimeout is the hard ceiling on an open breaker: once it
	// elapses with no traffic the breaker closes fully rather than
	// probing. Default: 5 minutes
	OpenTimeout time.Duration

	// MonitoringWindow bounds how long a failure counts toward the
	// consecutive-failure total. A failure older than the window
	// restarts the count. Default: 1 minute
	MonitoringWindow time.Duration

	// OnStateChange is invoked asynchronously on transitions.
	OnStateChange func(target string, from, to BreakerState)
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 5 * time.Minute
	}
	if c.MonitoringWindow <= 0 {
		c.MonitoringWindow = time.Minute
	}
	return c
}

// Breaker is a circuit breaker for one external target.
//
// Thread Safety: safe for concurrent use.
type Breaker struct {
	target      string
	cfg         BreakerConfig
	now         func() time.Time
	mu          sync.RWMutex
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
}

// NewBreaker creates a closed breaker for the named target.
func NewBreaker(target string, cfg BreakerConfig) *Breaker {
	return newBreakerWithClock(target, cfg, time.Now)
}

func newBreakerWithClock(target string, cfg BreakerConfig, now func() time.Time) *Breaker {
	return &Breaker{
		target: target,
		cfg:    cfg.withDefaults(),
		now:    now,
		state:  BreakerClosed,
	}
}

// Execute runs fn if the breaker allows it and records the outcome.
// A rejected call returns ErrBreakerOpen without invoking fn.
func (b *Breaker) Execute(fn func() error) error {
	if !b.Allow() {
		return ErrBreakerOpen
	}
	err := fn()
	b.Record(err)
	return err
}

// Allow reports whether a call may proceed, advancing open breakers
// to half-open (or closed) when their timeouts have elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		since := b.now().Sub(b.lastFailure)
		if since > b.cfg.OpenTimeout {
			b.failures = 0
			b.successes = 0
			b.transitionTo(BreakerClosed)
			return true
		}
		if since > b.cfg.ResetTimeout {
			b.transitionTo(BreakerHalfOpen)
			return true
		}
		return false
	default:
		return false
	}
}

// Record feeds one call outcome into the breaker. Callers that use
// Execute never call this directly.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.recordFailure()
	} else {
		b.recordSuccess()
	}
}

func (b *Breaker) recordFailure() {
	// Failures outside the monitoring window restart the count.
	if !b.lastFailure.IsZero() && b.now().Sub(b.lastFailure) > b.cfg.MonitoringWindow {
		b.failures = 0
	}
	b.failures++
	b.successes = 0
	b.lastFailure = b.now()

	switch b.state {
	case BreakerClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.transitionTo(BreakerOpen)
		}
	case BreakerHalfOpen:
		// Any half-open failure trips straight back to open.
		b.transitionTo(BreakerOpen)
	}
}

func (b *Breaker) recordSuccess() {
	b.successes++
	switch b.state {
	case BreakerClosed:
		b.failures = 0
	case BreakerHalfOpen:
		if b.successes >= b.cfg.SuccessThreshold {
			b.failures = 0
			b.transitionTo(BreakerClosed)
		}
	}
}

func (b *Breaker) transitionTo(state BreakerState) {
	if b.state == state {
		return
	}
	old := b.state
	b.state = state
	if b.cfg.OnStateChange != nil {
		// Callback runs without the lock held.
		go b.cfg.OnStateChange(b.target, old, state)
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.failures
}

// Reset forces the breaker closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	old := b.state
	b.state = BreakerClosed
	b.failures = 0
	b.successes = 0
	if old != BreakerClosed && b.cfg.OnStateChange != nil {
		go b.cfg.OnStateChange(b.target, old, BreakerClosed)
	}
}
