// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

// Package store provides the persistent key-value store used by the
// fixture and image caches for durability across restarts.
//
// The store is a best-effort optimization layer: callers treat failures
// as non-fatal and the upstream API remains the source of truth.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("store: key not found")

// Pair is a key-value pair for batched operations.
type Pair struct {
	Key   string
	Value []byte
}

// KV is the persistent key-value store contract consumed by the caches.
// All implementations must be safe for concurrent use.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// Keys returns all keys beginning with prefix, in lexicographic order.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// MultiGet returns pairs for the keys that exist; missing keys are
	// omitted rather than reported as errors.
	MultiGet(ctx context.Context, keys []string) ([]Pair, error)

	// MultiSet writes all pairs in a single batch.
	MultiSet(ctx context.Context, pairs []Pair) error

	// MultiDelete removes all given keys; missing keys are ignored.
	MultiDelete(ctx context.Context, keys []string) error

	Close() error
}
