// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

package datacache

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

// Storage key scheme. The version segment lets a format change invalidate
// old persisted state wholesale.
const (
	storePrefix = "golazo:v2:"
	entryPrefix = storePrefix + "date:"
	indexKey    = storePrefix + "index"
	metaKey     = storePrefix + "meta"
)

// storeMeta is the persisted coordinator metadata.
type storeMeta struct {
	LastTodayFetch time.Time `json:"last_today_fetch"`
	LastOthersSync time.Time `json:"last_others_sync"`
	SavedAt        time.Time `json:"saved_at"`
}

func entryStoreKey(cacheKey string) string {
	return entryPrefix + cacheKey
}

// schedulePersistLocked (re)arms the debounced persist timer. Caller
// holds mu. Bursts of mutations inside the debounce window collapse
// into one batched write.
func (c *Coordinator) schedulePersistLocked() {
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
			c.logger.Warn().Err(err).Msg("Debounced persist failed")
		}
	})
}

// Flush writes all dirty entries, pending deletions, the key index and
// metadata to the store in one pass. Safe to call at any time; a no-op
// when nothing changed.
func (c *Coordinator) Flush(ctx context.Context) error {
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

	pairs := make([]store.Pair, 0, len(c.dirty)+2)
	for key := range c.dirty {
		entry, ok := c.cache[key]
		if !ok || entry.Status != StatusComplete {
			continue
		}
		raw, err := json.Marshal(entry)
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("marshal entry %s: %w", key, err)
		}
		pairs = append(pairs, store.Pair{Key: entryStoreKey(key), Value: raw})
	}

	index := make([]string, 0, len(c.cache))
	for key, entry := range c.cache {
		if entry.Status == StatusComplete {
			index = append(index, key)
		}
	}
	sort.Strings(index)
	rawIndex, err := json.Marshal(index)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("marshal index: %w", err)
	}
	pairs = append(pairs, store.Pair{Key: indexKey, Value: rawIndex})

	rawMeta, err := json.Marshal(storeMeta{
		LastTodayFetch: c.lastTodayFetch,
		LastOthersSync: c.lastOthersSync,
		SavedAt:        c.now(),
	})
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("marshal meta: %w", err)
	}
	pairs = append(pairs, store.Pair{Key: metaKey, Value: rawMeta})

	removals := make([]string, 0, len(c.deleted))
	for key := range c.deleted {
		removals = append(removals, entryStoreKey(key))
	}

	c.dirty = make(map[string]struct{})
	c.deleted = make(map[string]struct{})
	c.mu.Unlock()

	start := time.Now()
	if len(removals) > 0 {
		if err := c.kv.MultiDelete(ctx, removals); err != nil {
			metrics.PersistErrors.Inc()
			return fmt.Errorf("delete evicted entries: %w", err)
		}
	}
	if err := c.kv.MultiSet(ctx, pairs); err != nil {
		metrics.PersistErrors.Inc()
		return fmt.Errorf("persist cache batch: %w", err)
	}
	metrics.PersistBatches.Inc()
	metrics.PersistDuration.Observe(time.Since(start).Seconds())
	c.logger.Debug().Int("entries", len(pairs)-2).Int("removed", len(removals)).Msg("Cache batch persisted")
	return nil
}

// Load restores persisted state: metadata, then the most recent
// FastLoadCount entries synchronously, then the remainder after
// BackgroundLoadDelay. Expired entries are skipped and their persisted
// copies deleted.
func (c *Coordinator) Load(ctx context.Context) error {
	if c.kv == nil {
		c.markInitialized()
		return nil
	}

	if raw, err := c.kv.Get(ctx, metaKey); err == nil {
		var meta storeMeta
		if err := json.Unmarshal(raw, &meta); err == nil {
			c.mu.Lock()
			c.lastTodayFetch = meta.LastTodayFetch
			c.lastOthersSync = meta.LastOthersSync
			c.mu.Unlock()
		}
	}

	keys, err := c.persistedKeys(ctx)
	if err != nil {
		c.markInitialized()
		return err
	}
	if len(keys) == 0 {
		c.markInitialized()
		return nil
	}

	// Today-adjacent keys first so the initial view hydrates fastest.
	today := c.todayKey()
	sort.Slice(keys, func(i, j int) bool {
		return dateDistance(keys[i], today) < dateDistance(keys[j], today)
	})

	fast := keys
	var rest []string
	if len(keys) > c.cfg.FastLoadCount {
		fast = keys[:c.cfg.FastLoadCount]
		rest = keys[c.cfg.FastLoadCount:]
	}

	loaded, err := c.loadKeys(ctx, fast)
	if err != nil {
		c.markInitialized()
		return err
	}
	c.logger.Info().Int("entries", loaded).Int("deferred", len(rest)).Msg("Cache hydrated from store")
	c.markInitialized()

	if len(rest) > 0 {
		time.AfterFunc(c.cfg.BackgroundLoadDelay, func() {
			bg, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			n, err := c.loadKeys(bg, rest)
			if err != nil {
				c.logger.Warn().Err(err).Msg("Background cache hydration failed")
				return
			}
			c.logger.Debug().Int("entries", n).Msg("Background cache hydration done")
		})
	}
	return nil
}

// persistedKeys returns the cache keys recorded in the index, falling
// back to a prefix scan when the index is missing or corrupt.
func (c *Coordinator) persistedKeys(ctx context.Context) ([]string, error) {
	if raw, err := c.kv.Get(ctx, indexKey); err == nil {
		var keys []string
		if err := json.Unmarshal(raw, &keys); err == nil {
			return keys, nil
		}
	}
	storeKeys, err := c.kv.Keys(ctx, entryPrefix)
	if err != nil {
		return nil, fmt.Errorf("scan persisted entries: %w", err)
	}
	keys := make([]string, 0, len(storeKeys))
	for _, sk := range storeKeys {
		keys = append(keys, strings.TrimPrefix(sk, entryPrefix))
	}
	return keys, nil
}

func (c *Coordinator) loadKeys(ctx context.Context, keys []string) (int, error) {
	storeKeys := make([]string, len(keys))
	for i, k := range keys {
		storeKeys[i] = entryStoreKey(k)
	}
	pairs, err := c.kv.MultiGet(ctx, storeKeys)
	if err != nil {
		return 0, fmt.Errorf("load persisted entries: %w", err)
	}

	now := c.now()
	loaded := 0
	var expired []string
	c.mu.Lock()
	for _, p := range pairs {
		key := strings.TrimPrefix(p.Key, entryPrefix)
		var entry Entry
		if err := json.Unmarshal(p.Value, &entry); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Dropping corrupt persisted entry")
			expired = append(expired, p.Key)
			continue
		}
		if !entry.Valid(c.cfg.TTL, now) {
			expired = append(expired, p.Key)
			continue
		}
		if _, exists := c.cache[key]; exists {
			continue
		}
		c.cache[key] = &entry
		loaded++
	}
	c.mu.Unlock()

	if len(expired) > 0 {
		if err := c.kv.MultiDelete(ctx, expired); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to delete expired persisted entries")
		}
	}
	metrics.FixtureCacheEntries.Set(float64(c.Len()))
	return loaded, nil
}

func (c *Coordinator) markInitialized() {
	c.mu.Lock()
	c.initialized = true
	c.mu.Unlock()
}

// dateDistance measures days between a cache key's date part and an
// anchor date. Unparseable keys sort last.
func dateDistance(cacheKey, anchor string) int {
	datePart, _, _ := strings.Cut(cacheKey, ":")
	d, err := time.Parse(dateLayout, datePart)
	if err != nil {
		return 1 << 20
	}
	a, err := time.Parse(dateLayout, anchor)
	if err != nil {
		return 1 << 20
	}
	diff := int(d.Sub(a).Hours() / 24)
	if diff < 0 {
		diff = -diff
	}
	return diff
}
