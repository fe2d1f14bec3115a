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
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

// Badger key layout. As with Redis, the slots key marks liveness.
const (
	badgerSlotsPrefix    = "slots/"
	badgerMessagesPrefix = "messages/"
	badgerJSONPrefix     = "json/"
)

// BadgerStore implements Store on an embedded BadgerDB instance.
// Entry TTLs map directly to the thread TTL; Badger expires entries
// lazily on read, matching the store contract.
//
// Thread Safety: safe for concurrent use; Badger transactions provide
// the read-modify-write isolation AppendMessage needs.
type BadgerStore struct {
	db  *badger.DB
	cfg Config
}

// OpenBadgerStore opens (or creates) a Badger-backed store at path.
// An empty path opens an in-memory database, which is useful in tests.
func OpenBadgerStore(path string, cfg Config) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{db: db, cfg: cfg.withDefaults()}, nil
}

func (s *BadgerStore) setWithTTL(txn *badger.Txn, key string, value []byte) error {
	return txn.SetEntry(badger.NewEntry([]byte(key), value).WithTTL(s.cfg.TTL))
}

func (s *BadgerStore) getValue(txn *badger.Txn, key string) ([]byte, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// GetSlots implements Store.
func (s *BadgerStore) GetSlots(ctx context.Context, threadID string) (datatypes.Slots, error) {
	var slots datatypes.Slots
	err := s.db.View(func(txn *badger.Txn) error {
		raw, err := s.getValue(txn, badgerSlotsPrefix+threadID)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, &slots)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("badger get slots: %w", err)
	}
	if slots == nil {
		slots = make(datatypes.Slots)
	}
	return slots, nil
}

// SetSlots implements Store.
func (s *BadgerStore) SetSlots(ctx context.Context, threadID string, slots datatypes.Slots) error {
	raw, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("encode slots: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return s.setWithTTL(txn, badgerSlotsPrefix+threadID, raw)
	})
	if err != nil {
		return fmt.Errorf("badger set slots: %w", err)
	}
	return nil
}

// GetMessages implements Store.
func (s *BadgerStore) GetMessages(ctx context.Context, threadID string) ([]datatypes.Message, error) {
	var msgs []datatypes.Message
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := s.getValue(txn, badgerSlotsPrefix+threadID); err != nil {
			return err
		}
		raw, err := s.getValue(txn, badgerMessagesPrefix+threadID)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil // initialized thread, empty history
		}
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, &msgs)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("badger get messages: %w", err)
	}
	return msgs, nil
}

// AppendMessage implements Store. The read-modify-write runs inside a
// single transaction so concurrent appends cannot lose updates.
func (s *BadgerStore) AppendMessage(ctx context.Context, threadID string, msg datatypes.Message) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		var msgs []datatypes.Message
		raw, err := s.getValue(txn, badgerMessagesPrefix+threadID)
		if err == nil {
			if err := json.Unmarshal(raw, &msgs); err != nil {
				return err
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		msgs = trimHistory(append(msgs, msg), s.cfg.MaxMessages)
		out, err := json.Marshal(msgs)
		if err != nil {
			return err
		}
		if err := s.setWithTTL(txn, badgerMessagesPrefix+threadID, out); err != nil {
			return err
		}
		// Mark the thread initialized on first contact.
		if _, err := s.getValue(txn, badgerSlotsPrefix+threadID); errors.Is(err, badger.ErrKeyNotFound) {
			return s.setWithTTL(txn, badgerSlotsPrefix+threadID, []byte("{}"))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger append message: %w", err)
	}
	return nil
}

// GetJSON implements Store.
func (s *BadgerStore) GetJSON(ctx context.Context, namespace, threadID string, v any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		raw, err := s.getValue(txn, badgerJSONPrefix+namespace+"/"+threadID)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, v)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("badger get %s: %w", namespace, err)
	}
	return nil
}

// SetJSON implements Store.
func (s *BadgerStore) SetJSON(ctx context.Context, namespace, threadID string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s value: %w", namespace, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return s.setWithTTL(txn, badgerJSONPrefix+namespace+"/"+threadID, raw)
	})
	if err != nil {
		return fmt.Errorf("badger set %s: %w", namespace, err)
	}
	return nil
}

// DeleteThread implements Store.
func (s *BadgerStore) DeleteThread(ctx context.Context, threadID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		keys := [][]byte{
			[]byte(badgerSlotsPrefix + threadID),
			[]byte(badgerMessagesPrefix + threadID),
		}
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(badgerJSONPrefix)
		suffix := "/" + threadID
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := string(it.Item().Key())
			if strings.HasSuffix(k, suffix) {
				keys = append(keys, append([]byte(nil), it.Item().Key()...))
			}
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger delete thread: %w", err)
	}
	return nil
}

// ListThreads implements Store. Expired entries are invisible to the
// iterator, so only live threads are returned.
func (s *BadgerStore) ListThreads(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(badgerSlotsPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), badgerSlotsPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger list threads: %w", err)
	}
	return ids, nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
