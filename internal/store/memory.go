// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory KV implementation used in tests and as a
// scratch store when persistence is disabled.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	// batchWrites counts MultiSet calls, letting tests assert that
	// debounced persistence coalesces bursts into single batches.
	batchWrites int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get retrieves the value for key.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

// Set stores value under key.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = v
	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Keys returns all keys with the given prefix in lexicographic order.
func (s *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// MultiGet returns pairs for the keys that exist.
func (s *MemoryStore) MultiGet(ctx context.Context, keys []string) ([]Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pairs := make([]Pair, 0, len(keys))
	for _, key := range keys {
		if val, ok := s.data[key]; ok {
			v := make([]byte, len(val))
			copy(v, val)
			pairs = append(pairs, Pair{Key: key, Value: v})
		}
	}
	return pairs, nil
}

// MultiSet writes all pairs.
func (s *MemoryStore) MultiSet(ctx context.Context, pairs []Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchWrites++
	for _, p := range pairs {
		v := make([]byte, len(p.Value))
		copy(v, p.Value)
		s.data[p.Key] = v
	}
	return nil
}

// MultiDelete removes all given keys.
func (s *MemoryStore) MultiDelete(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// BatchWrites returns how many MultiSet batches have been written.
func (s *MemoryStore) BatchWrites() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batchWrites
}
