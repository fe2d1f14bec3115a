// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

// threadState is the in-memory representation of one thread.
type threadState struct {
	slots      datatypes.Slots
	messages   []datatypes.Message
	json       map[string][]byte // namespace -> encoded value
	lastActive time.Time
}

// MemoryStore implements Store with a mutex-protected map.
//
// Thread Safety: safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*threadState
	cfg     Config
	now     func() time.Time // injected for TTL tests
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(cfg Config) *MemoryStore {
	return &MemoryStore{
		threads: make(map[string]*threadState),
		cfg:     cfg.withDefaults(),
		now:     time.Now,
	}
}

// get returns the live thread state, applying lazy TTL expiry.
// Caller must hold mu for writing (expiry deletes).
func (s *MemoryStore) get(threadID string) (*threadState, bool) {
	st, ok := s.threads[threadID]
	if !ok {
		return nil, false
	}
	if s.now().Sub(st.lastActive) > s.cfg.TTL {
		delete(s.threads, threadID)
		return nil, false
	}
	return st, true
}

// ensure returns the thread state, creating it if absent or expired.
// Caller must hold mu for writing.
func (s *MemoryStore) ensure(threadID string) *threadState {
	if st, ok := s.get(threadID); ok {
		return st
	}
	st := &threadState{
		slots: make(datatypes.Slots),
		json:  make(map[string][]byte),
	}
	s.threads[threadID] = st
	return st
}

// GetSlots implements Store.
func (s *MemoryStore) GetSlots(ctx context.Context, threadID string) (datatypes.Slots, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.get(threadID)
	if !ok {
		return nil, ErrNotInitialized
	}
	return st.slots.Clone(), nil
}

// SetSlots implements Store.
func (s *MemoryStore) SetSlots(ctx context.Context, threadID string, slots datatypes.Slots) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ensure(threadID)
	st.slots = slots.Clone()
	st.lastActive = s.now()
	return nil
}

// GetMessages implements Store.
func (s *MemoryStore) GetMessages(ctx context.Context, threadID string) ([]datatypes.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.get(threadID)
	if !ok {
		return nil, ErrNotInitialized
	}
	out := make([]datatypes.Message, len(st.messages))
	copy(out, st.messages)
	return out, nil
}

// AppendMessage implements Store.
func (s *MemoryStore) AppendMessage(ctx context.Context, threadID string, msg datatypes.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ensure(threadID)
	st.messages = trimHistory(append(st.messages, msg), s.cfg.MaxMessages)
	st.lastActive = s.now()
	return nil
}

// GetJSON implements Store.
func (s *MemoryStore) GetJSON(ctx context.Context, namespace, threadID string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.get(threadID)
	if !ok {
		return ErrNotInitialized
	}
	raw, ok := st.json[namespace]
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s value: %w", namespace, err)
	}
	return nil
}

// SetJSON implements Store.
func (s *MemoryStore) SetJSON(ctx context.Context, namespace, threadID string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s value: %w", namespace, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ensure(threadID)
	st.json[namespace] = raw
	st.lastActive = s.now()
	return nil
}

// DeleteThread implements Store.
func (s *MemoryStore) DeleteThread(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}

// ListThreads implements Store.
func (s *MemoryStore) ListThreads(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	ids := make([]string, 0, len(s.threads))
	for id, st := range s.threads {
		if now.Sub(st.lastActive) > s.cfg.TTL {
			delete(s.threads, id)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = make(map[string]*threadState)
	return nil
}
