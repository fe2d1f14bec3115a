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
	"testing"
	"time"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

// newTestBadger opens an in-memory Badger store and registers cleanup.
func newTestBadger(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := OpenBadgerStore("", Config{TTL: time.Hour, MaxMessages: 4})
	if err != nil {
		t.Fatalf("OpenBadgerStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerStoreSlotRoundTrip(t *testing.T) {
	store := newTestBadger(t)
	ctx := context.Background()

	if _, err := store.GetSlots(ctx, "t1"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("GetSlots on unknown thread: got %v, want ErrNotInitialized", err)
	}

	slots := datatypes.Slots{}
	slots.Set("city", "Tokyo", time.Now())
	if err := store.SetSlots(ctx, "t1", slots); err != nil {
		t.Fatalf("SetSlots: %v", err)
	}

	got, err := store.GetSlots(ctx, "t1")
	if err != nil {
		t.Fatalf("GetSlots: %v", err)
	}
	if got["city"].Value != "Tokyo" {
		t.Errorf("slot city = %q, want Tokyo", got["city"].Value)
	}
}

func TestBadgerStoreAppendInitializesThread(t *testing.T) {
	store := newTestBadger(t)
	ctx := context.Background()

	msg := datatypes.Message{Role: "user", Content: "hello"}
	if err := store.AppendMessage(ctx, "t1", msg); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	// The append must mark the thread initialized.
	slots, err := store.GetSlots(ctx, "t1")
	if err != nil {
		t.Fatalf("GetSlots after append: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("expected empty slots, got %v", slots)
	}

	msgs, err := store.GetMessages(ctx, "t1")
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "hello" {
		t.Errorf("unexpected history: %+v", msgs)
	}
}

func TestBadgerStoreHistoryBound(t *testing.T) {
	store := newTestBadger(t)
	ctx := context.Background()

	for _, content := range []string{"a", "b", "c", "d", "e", "f"} {
		if err := store.AppendMessage(ctx, "t1", datatypes.Message{Role: "user", Content: content}); err != nil {
			t.Fatalf("AppendMessage(%s): %v", content, err)
		}
	}
	msgs, err := store.GetMessages(ctx, "t1")
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("history length = %d, want 4", len(msgs))
	}
	if msgs[0].Content != "c" {
		t.Errorf("oldest retained message = %q, want c", msgs[0].Content)
	}
}

func TestBadgerStoreJSONAndDelete(t *testing.T) {
	store := newTestBadger(t)
	ctx := context.Background()

	_ = store.SetSlots(ctx, "t1", datatypes.Slots{})
	if err := store.SetJSON(ctx, "receipts", "t1", datatypes.Receipt{Verdict: datatypes.VerdictWarn}); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}

	var r datatypes.Receipt
	if err := store.GetJSON(ctx, "receipts", "t1", &r); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if r.Verdict != datatypes.VerdictWarn {
		t.Errorf("verdict = %q, want warn", r.Verdict)
	}

	if err := store.DeleteThread(ctx, "t1"); err != nil {
		t.Fatalf("DeleteThread: %v", err)
	}
	if err := store.GetJSON(ctx, "receipts", "t1", &r); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJSON after delete: got %v, want ErrNotFound", err)
	}
	if _, err := store.GetSlots(ctx, "t1"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("GetSlots after delete: got %v, want ErrNotInitialized", err)
	}
}
