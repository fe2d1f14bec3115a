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

// ErrHostBlocked is returned for calls to a temporarily blocked host.
var ErrHostBlocked = errors.New("host is temporarily blocked")

// DefaultBlockTTL is how long a host stays blocked when no explicit
// TTL is given.
const DefaultBlockTTL = 10 * time.Minute

// Blocklist is a TTL-keyed set of hosts excluded from outbound calls
// after repeated failures. Expiry is lazy: entries are removed on the
// first lookup past their deadline, never by a background timer.
//
// Thread Safety: safe for concurrent use.
type Blocklist struct {
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewBlocklist creates an empty blocklist.
func NewBlocklist() *Blocklist {
	return newBlocklistWithClock(time.Now)
}

func newBlocklistWithClock(now func() time.Time) *Blocklist {
	return &Blocklist{now: now, entries: make(map[string]time.Time)}
}

// Block excludes the host for ttl (DefaultBlockTTL when ttl <= 0).
// Re-blocking extends the deadline.
func (b *Blocklist) Block(host string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultBlockTTL
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[host] = b.now().Add(ttl)
}

// Blocked reports whether the host is currently excluded, removing
// the entry when its TTL has passed.
func (b *Blocklist) Blocked(host string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	deadline, ok := b.entries[host]
	if !ok {
		return false
	}
	if b.now().After(deadline) {
		delete(b.entries, host)
		return false
	}
	return true
}

// Unblock removes the host regardless of its TTL.
func (b *Blocklist) Unblock(host string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, host)
}

// Len returns the live entry count after pruning expired entries.
func (b *Blocklist) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	for host, deadline := range b.entries {
		if now.After(deadline) {
			delete(b.entries, host)
		}
	}
	return len(b.entries)
}
