// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

func TestMemoryStoreNotInitializedVsEmpty(t *testing.T) {
	store := NewMemoryStore(Config{})
	ctx := context.Background()

	_, err := store.GetSlots(ctx, "t1")
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("GetSlots on unknown thread: got %v, want ErrNotInitialized", err)
	}

	if err := store.SetSlots(ctx, "t1", datatypes.Slots{}); err != nil {
		t.Fatalf("SetSlots: %v", err)
	}
	slots, err := store.GetSlots(ctx, "t1")
	if err != nil {
		t.Fatalf("GetSlots after init: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("expected empty slot map, got %d entries", len(slots))
	}
}

func TestMemoryStoreLazyTTLExpiry(t *testing.T) {
	store := NewMemoryStore(Config{TTL: 10 * time.Minute})
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	slots := datatypes.Slots{}
	slots.Set("city", "Paris", now)
	if err := store.SetSlots(ctx, "t1", slots); err != nil {
		t.Fatalf("SetSlots: %v", err)
	}

	// Within the TTL the thread is visible.
	now = now.Add(9 * time.Minute)
	if _, err := store.GetSlots(ctx, "t1"); err != nil {
		t.Fatalf("GetSlots within TTL: %v", err)
	}

	// Reads do not refresh the TTL; past it the thread is gone.
	now = now.Add(2 * time.Minute)
	if _, err := store.GetSlots(ctx, "t1"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("GetSlots past TTL: got %v, want ErrNotInitialized", err)
	}

	// Expiry is enforced lazily: the internal map entry was removed
	// by the read, not by a background sweep.
	store.mu.RLock()
	_, present := store.threads["t1"]
	store.mu.RUnlock()
	if present {
		t.Error("expired thread still present after lazy-expiry read")
	}
}

func TestMemoryStoreWriteRefreshesTTL(t *testing.T) {
	store := NewMemoryStore(Config{TTL: 10 * time.Minute})
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.SetSlots(ctx, "t1", datatypes.Slots{}); err != nil {
		t.Fatalf("SetSlots: %v", err)
	}
	now = now.Add(9 * time.Minute)
	if err := store.AppendMessage(ctx, "t1", datatypes.Message{Role: "user", Content: "hi"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	now = now.Add(9 * time.Minute)
	if _, err := store.GetSlots(ctx, "t1"); err != nil {
		t.Fatalf("thread expired despite write refresh: %v", err)
	}
}

func TestMemoryStoreHistoryBound(t *testing.T) {
	store := NewMemoryStore(Config{MaxMessages: 5})
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		msg := datatypes.Message{Role: "user", Content: fmt.Sprintf("msg-%d", i)}
		if err := store.AppendMessage(ctx, "t1", msg); err != nil {
			t.Fatalf("AppendMessage %d: %v", i, err)
		}
	}
	msgs, err := store.GetMessages(ctx, "t1")
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("history length = %d, want 5", len(msgs))
	}
	if msgs[0].Content != "msg-3" || msgs[4].Content != "msg-7" {
		t.Errorf("history kept wrong window: first=%q last=%q", msgs[0].Content, msgs[4].Content)
	}
}

func TestMemoryStoreJSONNamespace(t *testing.T) {
	store := NewMemoryStore(Config{})
	ctx := context.Background()

	receipt := datatypes.Receipt{
		Sources: []string{"weather"},
		Verdict: datatypes.VerdictWarn,
	}
	if err := store.SetJSON(ctx, "receipts", "t1", receipt); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}

	var got datatypes.Receipt
	if err := store.GetJSON(ctx, "receipts", "t1", &got); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if got.Verdict != datatypes.VerdictWarn || len(got.Sources) != 1 {
		t.Errorf("round-trip mismatch: %+v", got)
	}

	if err := store.GetJSON(ctx, "plans", "t1", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJSON on missing namespace: got %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreDeleteThread(t *testing.T) {
	store := NewMemoryStore(Config{})
	ctx := context.Background()

	_ = store.SetSlots(ctx, "t1", datatypes.Slots{})
	_ = store.SetSlots(ctx, "t2", datatypes.Slots{})
	if err := store.DeleteThread(ctx, "t1"); err != nil {
		t.Fatalf("DeleteThread: %v", err)
	}
	ids, err := store.ListThreads(ctx)
	if err != nil {
		t.Fatalf("ListThreads: %v", err)
	}
	if len(ids) != 1 || ids[0] != "t2" {
		t.Errorf("ListThreads = %v, want [t2]", ids)
	}
}
