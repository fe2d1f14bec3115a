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

	"github.com/redis/go-redis/v9"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

// Redis key layout. The slots key doubles as the thread liveness
// marker: a thread is initialized iff its slots key exists.
const (
	redisSlotsPrefix    = "voyage:slots:"
	redisMessagesPrefix = "voyage:messages:"
	redisJSONPrefix     = "voyage:json:"
)

// RedisStore implements Store on go-redis. TTL enforcement is
// delegated to Redis key expiry, which is itself lazy plus sampled.
//
// Thread Safety: safe for concurrent use; the client pools connections.
type RedisStore struct {
	client *redis.Client
	cfg    Config
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client, cfg Config) *RedisStore {
	return &RedisStore{client: client, cfg: cfg.withDefaults()}
}

func (s *RedisStore) slotsKey(id string) string    { return redisSlotsPrefix + id }
func (s *RedisStore) messagesKey(id string) string { return redisMessagesPrefix + id }
func (s *RedisStore) jsonKey(ns, id string) string {
	return redisJSONPrefix + ns + ":" + id
}

// touch refreshes the TTL on every thread key.
func (s *RedisStore) touch(ctx context.Context, threadID string) {
	pipe := s.client.Pipeline()
	pipe.Expire(ctx, s.slotsKey(threadID), s.cfg.TTL)
	pipe.Expire(ctx, s.messagesKey(threadID), s.cfg.TTL)
	_, _ = pipe.Exec(ctx)
}

// GetSlots implements Store.
func (s *RedisStore) GetSlots(ctx context.Context, threadID string) (datatypes.Slots, error) {
	raw, err := s.client.Get(ctx, s.slotsKey(threadID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("redis get slots: %w", err)
	}
	var slots datatypes.Slots
	if err := json.Unmarshal([]byte(raw), &slots); err != nil {
		return nil, fmt.Errorf("decode slots: %w", err)
	}
	if slots == nil {
		slots = make(datatypes.Slots)
	}
	return slots, nil
}

// SetSlots implements Store. An empty map is written as "{}" so the
// thread stays distinguishable from an uninitialized one.
func (s *RedisStore) SetSlots(ctx context.Context, threadID string, slots datatypes.Slots) error {
	raw, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("encode slots: %w", err)
	}
	if err := s.client.Set(ctx, s.slotsKey(threadID), raw, s.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("redis set slots: %w", err)
	}
	s.touch(ctx, threadID)
	return nil
}

// GetMessages implements Store.
func (s *RedisStore) GetMessages(ctx context.Context, threadID string) ([]datatypes.Message, error) {
	// Initialization is tracked by the slots key.
	if _, err := s.GetSlots(ctx, threadID); err != nil {
		return nil, err
	}
	items, err := s.client.LRange(ctx, s.messagesKey(threadID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange messages: %w", err)
	}
	out := make([]datatypes.Message, 0, len(items))
	for _, it := range items {
		var m datatypes.Message
		if err := json.Unmarshal([]byte(it), &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// AppendMessage implements Store. The list is trimmed to the history
// bound on every push.
func (s *RedisStore) AppendMessage(ctx context.Context, threadID string, msg datatypes.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	key := s.messagesKey(threadID)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, raw)
	pipe.LTrim(ctx, key, int64(-s.cfg.MaxMessages), -1)
	pipe.Expire(ctx, key, s.cfg.TTL)
	// Make sure the thread is marked initialized even when the first
	// operation on it is an append.
	pipe.SetNX(ctx, s.slotsKey(threadID), "{}", s.cfg.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append message: %w", err)
	}
	return nil
}

// GetJSON implements Store.
func (s *RedisStore) GetJSON(ctx context.Context, namespace, threadID string, v any) error {
	raw, err := s.client.Get(ctx, s.jsonKey(namespace, threadID)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", namespace, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode %s value: %w", namespace, err)
	}
	return nil
}

// SetJSON implements Store.
func (s *RedisStore) SetJSON(ctx context.Context, namespace, threadID string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s value: %w", namespace, err)
	}
	if err := s.client.Set(ctx, s.jsonKey(namespace, threadID), raw, s.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", namespace, err)
	}
	return nil
}

// DeleteThread implements Store. JSON namespaces are discovered by
// prefix scan; the namespace count per thread is small.
func (s *RedisStore) DeleteThread(ctx context.Context, threadID string) error {
	keys := []string{s.slotsKey(threadID), s.messagesKey(threadID)}
	iter := s.client.Scan(ctx, 0, redisJSONPrefix+"*:"+threadID, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan thread keys: %w", err)
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete thread: %w", err)
	}
	return nil
}

// ListThreads implements Store.
func (s *RedisStore) ListThreads(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, redisSlotsPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), redisSlotsPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan threads: %w", err)
	}
	return ids, nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
