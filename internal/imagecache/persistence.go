// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

package imagecache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/golazo-live/golazod/internal/metrics"
	"github.com/golazo-live/golazod/internal/store"
)

func imgStoreKey(cacheKey string) string {
	return imgPrefix + cacheKey
}

// loadStored fetches a persisted resolution, or nil when absent,
// corrupt or older than the prune threshold.
func (c *Cache) loadStored(ctx context.Context, key string) *Entry {
	if c.kv == nil {
		return nil
	}
	raw, err := c.kv.Get(ctx, imgStoreKey(key))
	if err != nil {
		return nil
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Dropping corrupt persisted image entry")
		_ = c.kv.Delete(ctx, imgStoreKey(key))
		return nil
	}
	// Twice the TTL is the hard expiry; beyond it the entry is pruned
	// rather than served stale.
	if c.now().Sub(entry.ResolvedAt) > 2*c.cfg.TTL {
		_ = c.kv.Delete(ctx, imgStoreKey(key))
		return nil
	}
	return &entry
}

// schedulePersistLocked (re)arms the debounced persist timer. Caller
// holds mu.
func (c *Cache) schedulePersistLocked() {
	if c.kv == nil {
		return
	}
	if c.persistTimer != nil {
		c.persistTimer.Stop()
	}
	c.persistTimer = time.AfterFunc(c.cfg.PersistDebounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Flush(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Debounced image persist failed")
		}
	})
}

// Flush writes dirty resolutions, pending deletions and the key index
// to the store in one batch.
func (c *Cache) Flush(ctx context.Context) error {
	if c.kv == nil {
		return nil
	}

	c.mu.Lock()
	if c.persistTimer != nil {
		c.persistTimer.Stop()
		c.persistTimer = nil
	}
	if len(c.dirty) == 0 && len(c.deleted) == 0 {
		c.mu.Unlock()
		return nil
	}

	pairs := make([]store.Pair, 0, len(c.dirty)+1)
	for key := range c.dirty {
		entry, ok := c.memo[key]
		if !ok {
			continue
		}
		raw, err := json.Marshal(entry)
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("marshal image entry %s: %w", key, err)
		}
		pairs = append(pairs, store.Pair{Key: imgStoreKey(key), Value: raw})
	}

	index := make([]string, 0, len(c.memo))
	for key := range c.memo {
		index = append(index, key)
	}
	sort.Strings(index)
	rawIndex, err := json.Marshal(index)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("marshal image index: %w", err)
	}
	pairs = append(pairs, store.Pair{Key: imgIndexKey, Value: rawIndex})

	removals := make([]string, 0, len(c.deleted))
	for key := range c.deleted {
		removals = append(removals, imgStoreKey(key))
	}

	c.dirty = make(map[string]struct{})
	c.deleted = make(map[string]struct{})
	c.mu.Unlock()

	if len(removals) > 0 {
		if err := c.kv.MultiDelete(ctx, removals); err != nil {
			metrics.PersistErrors.Inc()
			return fmt.Errorf("delete image entries: %w", err)
		}
	}
	if err := c.kv.MultiSet(ctx, pairs); err != nil {
		metrics.PersistErrors.Inc()
		return fmt.Errorf("persist image batch: %w", err)
	}
	metrics.PersistBatches.Inc()
	c.logger.Debug().Int("entries", len(pairs)-1).Int("removed", len(removals)).Msg("Image batch persisted")
	return nil
}

// Load hydrates the memo from the store and prunes entries past twice
// the TTL.
func (c *Cache) Load(ctx context.Context) error {
	if c.kv == nil {
		return nil
	}

	keys, err := c.persistedKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	storeKeys := make([]string, len(keys))
	for i, k := range keys {
		storeKeys[i] = imgStoreKey(k)
	}
	pairs, err := c.kv.MultiGet(ctx, storeKeys)
	if err != nil {
		return fmt.Errorf("load image entries: %w", err)
	}

	now := c.now()
	loaded := 0
	var expired []string
	c.mu.Lock()
	for _, p := range pairs {
		key := strings.TrimPrefix(p.Key, imgPrefix)
		var entry Entry
		if err := json.Unmarshal(p.Value, &entry); err != nil {
			expired = append(expired, p.Key)
			continue
		}
		if now.Sub(entry.ResolvedAt) > 2*c.cfg.TTL {
			expired = append(expired, p.Key)
			continue
		}
		if _, exists := c.memo[key]; !exists {
			c.memo[key] = &entry
			loaded++
		}
	}
	c.pruneLocked()
	c.mu.Unlock()

	if len(expired) > 0 {
		if err := c.kv.MultiDelete(ctx, expired); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to prune expired image entries")
		}
	}
	c.logger.Info().Int("entries", loaded).Int("pruned", len(expired)).Msg("Image cache hydrated from store")
	return nil
}

func (c *Cache) persistedKeys(ctx context.Context) ([]string, error) {
	if raw, err := c.kv.Get(ctx, imgIndexKey); err == nil {
		var keys []string
		if err := json.Unmarshal(raw, &keys); err == nil {
			return keys, nil
		}
	}
	storeKeys, err := c.kv.Keys(ctx, imgPrefix)
	if err != nil {
		return nil, fmt.Errorf("scan image entries: %w", err)
	}
	keys := make([]string, 0, len(storeKeys))
	for _, sk := range storeKeys {
		if sk == imgIndexKey {
			continue
		}
		keys = append(keys, strings.TrimPrefix(sk, imgPrefix))
	}
	return keys, nil
}

// Serve hydrates the cache and blocks until ctx is cancelled, then
// drains and flushes. It satisfies suture.Service.
func (c *Cache) Serve(ctx context.Context) error {
	if err := c.Load(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Image cache hydration failed, starting cold")
	}
	<-ctx.Done()

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Close(closeCtx); err != nil {
		c.logger.Warn().Err(err).Msg("Image cache shutdown flush failed")
	}
	return ctx.Err()
}

// String names the service in supervisor logs.
func (c *Cache) String() string { return "image-cache" }
