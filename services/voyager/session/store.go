// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session provides per-thread conversation state storage.
//
// The orchestration engine only depends on the Store interface; three
// implementations ship with the service:
//
//   - MemoryStore: process-local, for tests and single-node CLI use
//   - RedisStore: shared state for multi-replica deployments
//   - BadgerStore: embedded durable state for single-node deployments
//
// All implementations enforce the configured thread TTL lazily: an
// expired thread is deleted on the next read or write that touches it,
// never by a background sweep.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

// ErrNotInitialized is returned when a thread has never been written
// (or has expired). It is distinct from a thread that exists but holds
// empty state, which returns zero values and a nil error.
var ErrNotInitialized = errors.New("session: thread not initialized")

// ErrNotFound is returned by GetJSON when the namespace holds no value
// for the thread.
var ErrNotFound = errors.New("session: value not found")

// DefaultThreadTTL is the inactivity window after which a thread
// expires.
const DefaultThreadTTL = 30 * time.Minute

// Store is the per-thread state contract consumed by the engine.
//
// Implementations must support read-modify-write of the slot map
// without lost updates under concurrent turns on the same thread id.
// The engine serializes turns per thread, so last-write-wins inside a
// single turn is acceptable.
//
// Thread Safety: implementations must be safe for concurrent use.
type Store interface {
	// GetSlots returns the thread's slot map. Returns
	// ErrNotInitialized for unknown or expired threads; an
	// initialized thread with no slots returns an empty map.
	GetSlots(ctx context.Context, threadID string) (datatypes.Slots, error)

	// SetSlots replaces the thread's slot map, initializing the
	// thread if needed and refreshing its TTL.
	SetSlots(ctx context.Context, threadID string, slots datatypes.Slots) error

	// GetMessages returns the thread's bounded message history,
	// oldest first. ErrNotInitialized for unknown threads.
	GetMessages(ctx context.Context, threadID string) ([]datatypes.Message, error)

	// AppendMessage appends to the history, trimming to the
	// configured bound, and refreshes the TTL.
	AppendMessage(ctx context.Context, threadID string, msg datatypes.Message) error

	// GetJSON decodes the value stored under (namespace, threadID)
	// into v. Returns ErrNotFound when absent.
	GetJSON(ctx context.Context, namespace, threadID string, v any) error

	// SetJSON stores v under (namespace, threadID) with the thread
	// TTL. Values are replace-only.
	SetJSON(ctx context.Context, namespace, threadID string, v any) error

	// DeleteThread removes all state for a thread.
	DeleteThread(ctx context.Context, threadID string) error

	// ListThreads returns the ids of live (non-expired) threads.
	ListThreads(ctx context.Context) ([]string, error)

	// Close releases store resources.
	Close() error
}

// Config holds settings shared by all store implementations.
type Config struct {
	// TTL is the thread inactivity window. Default: DefaultThreadTTL.
	TTL time.Duration

	// MaxMessages bounds per-thread history.
	// Default: datatypes.MaxHistoryMessages.
	MaxMessages int
}

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultThreadTTL
	}
	if c.MaxMessages <= 0 {
		c.MaxMessages = datatypes.MaxHistoryMessages
	}
	return c
}

// trimHistory keeps the most recent max messages.
func trimHistory(history []datatypes.Message, max int) []datatypes.Message {
	if len(history) > max {
		return history[len(history)-max:]
	}
	return history
}
