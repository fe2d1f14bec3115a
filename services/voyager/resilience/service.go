// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resilience

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// blockAfterFailures is how many consecutive failures against one
// host put it on the blocklist.
const blockAfterFailures = 3

// Config assembles the full resilience stack for one process.
type Config struct {
	Breaker   BreakerConfig
	Limiter   LimiterConfig
	Scheduler SchedulerConfig

	// BlockTTL is how long failing hosts stay blocked.
	// Default: DefaultBlockTTL
	BlockTTL time.Duration
}

// Service owns the process-wide breaker registry, per-target rate
// limiters, the per-host scheduler and the host blocklist. Every
// outbound call, LLM or tool, goes through Do.
//
// Thread Safety: safe for concurrent use after Init.
type Service struct {
	cfg Config

	mu        sync.RWMutex
	breakers  map[string]*Breaker
	limiters  map[string]*Limiter
	scheduler *HostScheduler
	blocklist *Blocklist
	hostFails map[string]int
	closed    bool
}

// NewService creates an uninitialized Service; callers must Init it.
func NewService(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// Init builds the live registries. Calling Init on a running Service
// discards all accumulated state.
func (s *Service) Init() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breakers = make(map[string]*Breaker)
	s.limiters = make(map[string]*Limiter)
	s.scheduler = NewHostScheduler(s.cfg.Scheduler)
	s.blocklist = NewBlocklist()
	s.hostFails = make(map[string]int)
	s.closed = false
}

// Reset closes every breaker and clears the blocklist without
// discarding limiter state.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.breakers {
		b.Reset()
	}
	s.hostFails = make(map[string]int)
	s.blocklist = NewBlocklist()
}

// Shutdown marks the service closed. Subsequent Do calls are rejected
// with ErrBreakerOpen so in-flight turns degrade instead of panicking.
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Breaker returns the breaker for a target, creating it on first use.
func (s *Service) Breaker(target string) *Breaker {
	s.mu.RLock()
	b, ok := s.breakers[target]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Double-check after acquiring the write lock.
	if b, ok = s.breakers[target]; ok {
		return b
	}
	b = NewBreaker(target, s.cfg.Breaker)
	s.breakers[target] = b
	return b
}

// Limiter returns the rate limiter for a target, creating it on
// first use.
func (s *Service) Limiter(target string) *Limiter {
	s.mu.RLock()
	l, ok := s.limiters[target]
	s.mu.RUnlock()
	if ok {
		return l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.limiters[target]; ok {
		return l
	}
	l = NewLimiter(s.cfg.Limiter)
	s.limiters[target] = l
	return l
}

// Blocklist exposes the host blocklist for diagnostics.
func (s *Service) Blocklist() *Blocklist {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blocklist
}

// BreakerStates snapshots every registered breaker's state.
func (s *Service) BreakerStates() map[string]BreakerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	states := make(map[string]BreakerState, len(s.breakers))
	for target, b := range s.breakers {
		states[target] = b.State()
	}
	return states
}

// Do wraps one outbound call with the full guard chain: blocklist,
// circuit breaker, token bucket, host scheduler. target names the
// logical provider (breaker and limiter key); host is the destination
// host (scheduler and blocklist key, may equal target for non-HTTP
// backends). fn runs only when every guard admits the call.
func (s *Service) Do(ctx context.Context, target, host string, fn func(context.Context) error) error {
	s.mu.RLock()
	closed := s.closed
	scheduler := s.scheduler
	blocklist := s.blocklist
	s.mu.RUnlock()

	if closed || scheduler == nil {
		return ErrBreakerOpen
	}
	if blocklist.Blocked(host) {
		return ErrHostBlocked
	}

	breaker := s.Breaker(target)
	if !breaker.Allow() {
		return ErrBreakerOpen
	}

	limiter := s.Limiter(target)
	if !limiter.Acquire() {
		return ErrRateLimited
	}
	defer limiter.Release()

	if !scheduler.Acquire(host) {
		return ErrHostBusy
	}
	defer scheduler.Release(host)

	err := fn(ctx)
	breaker.Record(err)
	s.recordHostOutcome(host, err)
	return err
}

// recordHostOutcome tracks consecutive per-host failures and blocks
// hosts that keep failing.
func (s *Service) recordHostOutcome(host string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.hostFails, host)
		return
	}
	s.hostFails[host]++
	if s.hostFails[host] >= blockAfterFailures {
		s.blocklist.Block(host, s.cfg.BlockTTL)
		delete(s.hostFails, host)
		slog.Warn("host blocked after repeated failures", "host", host, "ttl", s.cfg.BlockTTL)
	}
}
