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

	"golang.org/x/time/rate"
)

// ErrHostBusy is returned when a host's scheduler has no free slot.
var ErrHostBusy = errors.New("host scheduler rejected call")

// HostLimits sets the per-host minimum spacing and concurrency cap.
type HostLimits struct {
	// MinTime is the minimum spacing between calls to the host.
	// Default: 200ms
	MinTime time.Duration

	// MaxConcurrent caps in-flight calls to the host. Default: 2
	MaxConcurrent int
}

func (h HostLimits) withDefaults() HostLimits {
	if h.MinTime <= 0 {
		h.MinTime = 200 * time.Millisecond
	}
	if h.MaxConcurrent <= 0 {
		h.MaxConcurrent = 2
	}
	return h
}

// SchedulerConfig holds the default limits plus per-host overrides so
// that one slow provider cannot starve the rest.
type SchedulerConfig struct {
	Defaults  HostLimits
	Overrides map[string]HostLimits
}

// hostSlot is the live scheduling state for one host.
type hostSlot struct {
	spacing  *rate.Limiter
	inflight chan struct{}
}

// HostScheduler spaces and bounds outbound calls independently per
// destination host.
//
// Thread Safety: safe for concurrent use.
type HostScheduler struct {
	cfg   SchedulerConfig
	mu    sync.Mutex
	slots map[string]*hostSlot
}

// NewHostScheduler creates an empty scheduler; host slots are created
// lazily on first use.
func NewHostScheduler(cfg SchedulerConfig) *HostScheduler {
	cfg.Defaults = cfg.Defaults.withDefaults()
	return &HostScheduler{
		cfg:   cfg,
		slots: make(map[string]*hostSlot),
	}
}

func (s *HostScheduler) slot(host string) *hostSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok := s.slots[host]; ok {
		return sl
	}
	limits := s.cfg.Defaults
	if o, ok := s.cfg.Overrides[host]; ok {
		limits = o.withDefaults()
	}
	sl := &hostSlot{
		spacing:  rate.NewLimiter(rate.Every(limits.MinTime), 1),
		inflight: make(chan struct{}, limits.MaxConcurrent),
	}
	s.slots[host] = sl
	return sl
}

// Acquire takes a slot for the host if spacing and concurrency allow.
// Non-blocking; pair every true return with one Release.
func (s *HostScheduler) Acquire(host string) bool {
	sl := s.slot(host)
	select {
	case sl.inflight <- struct{}{}:
	default:
		return false
	}
	if !sl.spacing.Allow() {
		<-sl.inflight
		return false
	}
	return true
}

// Release frees the host slot taken by a successful Acquire.
func (s *HostScheduler) Release(host string) {
	sl := s.slot(host)
	select {
	case <-sl.inflight:
	default:
	}
}
