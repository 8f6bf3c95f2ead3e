// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

// Package imagecache resolves team, league and player image identities
// to stable URLs and caches the result across three tiers: an in-memory
// memo, the persistent key-value store and the upstream API. Lookups go
// through a FIFO queue whose concurrency adapts to observed queue wait.
package imagecache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/golazo-live/golazod/internal/config"
	"github.com/golazo-live/golazod/internal/football"
	"github.com/golazo-live/golazod/internal/logging"
	"github.com/golazo-live/golazod/internal/metrics"
	"github.com/golazo-live/golazod/internal/store"
)

// Storage key scheme for persisted image resolutions.
const (
	imgPrefix   = "golazo:img:v2:"
	imgIndexKey = imgPrefix + "index"
)

// ErrUnresolvable is returned when every resolution step failed and no
// fallback URL exists.
var ErrUnresolvable = errors.New("imagecache: identity could not be resolved")

// ErrCoolingDown is returned for identities that failed recently and
// are suppressed from re-resolution.
var ErrCoolingDown = errors.New("imagecache: identity in cool-down")

// ErrOffline is returned when the upstream tiers are disabled via
// SetOnline(false) and no cached resolution exists.
var ErrOffline = errors.New("imagecache: offline")

// Entry is a resolved image URL with provenance.
type Entry struct {
	URL        string    `json:"url"`
	ResolvedAt time.Time `json:"resolved_at"`

	// Source records which tier produced the URL: direct, api-id,
	// api-name.
	Source string `json:"source"`
}

// fresh reports whether the entry is inside the logical TTL. Stale
// entries are still served; freshness only gates background refresh.
func (e *Entry) fresh(ttl time.Duration, now time.Time) bool {
	return e != nil && now.Sub(e.ResolvedAt) < ttl
}

// Stats is a point-in-time snapshot of image cache state.
type Stats struct {
	Entries          int   `json:"entries"`
	SizeCap          int   `json:"size_cap"`
	Hits             int64 `json:"hits"`
	Misses           int64 `json:"misses"`
	CoolDowns        int   `json:"cool_downs"`
	QueueDepth       int   `json:"queue_depth"`
	ConcurrencyLimit int   `json:"concurrency_limit"`
}

// Cache is the image resolution cache. Safe for concurrent use.
type Cache struct {
	source     football.ImageSource
	kv         store.KV
	cfg        config.ImageCacheConfig
	httpClient *http.Client
	logger     zerolog.Logger

	mu       sync.Mutex
	memo     map[string]*Entry
	coolDown *coolDowns
	inflight map[string][]chan resolveResult
	dirty    map[string]struct{}
	deleted  map[string]struct{}

	persistTimer *time.Timer
	lookups      *queue

	// online gates the upstream tiers. Cached and direct URLs still
	// resolve while offline.
	online atomic.Bool

	hits   int64
	misses int64

	now func() time.Time
}

type resolveResult struct {
	url string
	err error
}

// New builds an image cache. kv may be nil to disable persistence.
func New(src football.ImageSource, kv store.KV, cfg config.ImageCacheConfig) *Cache {
	c := &Cache{
		source:     src,
		kv:         kv,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logging.With().Str("component", "imagecache").Logger(),
		memo:       make(map[string]*Entry),
		coolDown:   newCoolDowns(cfg.CoolDown),
		inflight:   make(map[string][]chan resolveResult),
		dirty:      make(map[string]struct{}),
		deleted:    make(map[string]struct{}),
		lookups: newQueue(cfg.StartConcurrency, cfg.MinConcurrency, cfg.MaxConcurrency,
			cfg.AdaptEvery, cfg.HighWaterWait, cfg.LowWaterWait),
		now: time.Now,
	}
	c.online.Store(true)
	return c
}

// SetOnline toggles the upstream tiers. While offline, resolution is
// served from cache and direct URLs only.
func (c *Cache) SetOnline(online bool) {
	c.online.Store(online)
}

// Resolve returns the image URL for an identity, walking the tiers in
// order: the caller's direct URL, memo, persistent store, then the
// upstream API by ID and by name. A stale memo hit is served
// immediately with a background refresh behind it.
func (c *Cache) Resolve(ctx context.Context, id Identity) (string, error) {
	if !id.Valid() {
		return "", fmt.Errorf("imagecache: invalid identity %+v", id)
	}
	key := id.CacheKey()
	now := c.now()

	// Direct tier: a URL in the caller's payload always wins and is
	// cached verbatim, fresher than anything resolved earlier.
	if id.DirectURL != "" {
		metrics.ImageCacheHits.WithLabelValues("direct").Inc()
		c.admit(key, &Entry{URL: id.DirectURL, ResolvedAt: now, Source: "direct"})
		return id.DirectURL, nil
	}

	c.mu.Lock()
	if entry, ok := c.memo[key]; ok {
		c.hits++
		url := entry.URL
		stale := !entry.fresh(c.cfg.TTL, now)
		c.mu.Unlock()
		metrics.ImageCacheHits.WithLabelValues("memo").Inc()
		if stale {
			c.refreshAsync(id)
		}
		return url, nil
	}
	cooling := c.coolDown.coolingDown(key, now)
	c.mu.Unlock()

	// Store tier.
	if entry := c.loadStored(ctx, key); entry != nil {
		c.mu.Lock()
		c.hits++
		c.memo[key] = entry
		c.mu.Unlock()
		metrics.ImageCacheHits.WithLabelValues("store").Inc()
		if !entry.fresh(c.cfg.TTL, now) {
			c.refreshAsync(id)
		}
		return entry.URL, nil
	}

	if cooling {
		return "", ErrCoolingDown
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	metrics.ImageCacheMisses.Inc()

	if !c.online.Load() {
		return "", ErrOffline
	}
	return c.lookup(ctx, id, key)
}

// lookup performs (or joins) the single queued API resolution for a key.
func (c *Cache) lookup(ctx context.Context, id Identity, key string) (string, error) {
	c.mu.Lock()
	if waiters, ok := c.inflight[key]; ok {
		ch := make(chan resolveResult, 1)
		c.inflight[key] = append(waiters, ch)
		c.mu.Unlock()
		select {
		case res := <-ch:
			return res.url, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c.inflight[key] = []chan resolveResult{}
	c.mu.Unlock()

	done := make(chan resolveResult, 1)
	submitted := c.lookups.submit(func() {
		lctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		url, err := c.resolveUpstream(lctx, id)
		if err == nil {
			c.admit(key, &Entry{URL: url, ResolvedAt: c.now(), Source: sourceLabel(id)})
		} else {
			c.markCoolDown(key)
		}
		c.settle(key, done, resolveResult{url: url, err: err})
	})
	if !submitted {
		res := resolveResult{err: errors.New("imagecache: closed")}
		c.settle(key, done, res)
		return "", res.err
	}

	select {
	case res := <-done:
		return res.url, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// settle delivers a result to the initiating caller and all joiners.
func (c *Cache) settle(key string, initiator chan resolveResult, res resolveResult) {
	c.mu.Lock()
	waiters := c.inflight[key]
	delete(c.inflight, key)
	c.mu.Unlock()
	initiator <- res
	for _, ch := range waiters {
		ch <- res
	}
}

// resolveUpstream walks the API tiers: lookup by ID first, by name
// second. A resolved URL must pass validation before it is accepted.
func (c *Cache) resolveUpstream(ctx context.Context, id Identity) (string, error) {
	var lastErr error
	for _, byName := range []bool{false, true} {
		if byName && id.Name == "" {
			continue
		}
		if !byName && id.ID == 0 {
			continue
		}
		url, err := c.fetchURL(ctx, id, byName)
		if err != nil {
			lastErr = err
			continue
		}
		if url == "" || !c.validateURL(ctx, url) {
			lastErr = fmt.Errorf("imagecache: resolved url invalid for %s", id)
			continue
		}
		return url, nil
	}
	if lastErr == nil {
		lastErr = ErrUnresolvable
	}
	return "", lastErr
}

func (c *Cache) fetchURL(ctx context.Context, id Identity, byName bool) (string, error) {
	lookupID := id.ID
	name := ""
	if byName {
		lookupID = 0
		name = id.Name
	}
	switch id.Kind {
	case KindTeam:
		return c.source.TeamLogo(ctx, lookupID, name)
	case KindLeague:
		return c.source.LeagueLogo(ctx, lookupID, name)
	case KindPlayer:
		return c.source.PlayerPhoto(ctx, lookupID, name, id.TeamID)
	default:
		return "", fmt.Errorf("imagecache: unknown kind %q", id.Kind)
	}
}

func sourceLabel(id Identity) string {
	if id.ID != 0 {
		return "api-id"
	}
	return "api-name"
}

// validateURL checks that the URL answers a HEAD with 2xx. Disabled by
// configuration it accepts anything non-empty.
func (c *Cache) validateURL(ctx context.Context, url string) bool {
	if url == "" || !strings.HasPrefix(url, "http") {
		return false
	}
	if !c.cfg.ValidateURLs {
		return true
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// admit stores a resolved entry in the memo, clears any cool-down,
// prunes past the size cap and schedules persistence.
func (c *Cache) admit(key string, entry *Entry) {
	c.mu.Lock()
	c.memo[key] = entry
	c.coolDown.clear(key)
	c.dirty[key] = struct{}{}
	c.pruneLocked()
	c.schedulePersistLocked()
	c.mu.Unlock()
}

// markCoolDown suppresses re-resolution of a failed identity.
func (c *Cache) markCoolDown(key string) {
	c.mu.Lock()
	c.coolDown.markFailed(key, c.now())
	c.mu.Unlock()
	metrics.ImageCoolDowns.Inc()
}

// refreshAsync queues a background re-resolution for a stale entry.
// The stale URL keeps serving until the refresh lands.
func (c *Cache) refreshAsync(id Identity) {
	key := id.CacheKey()
	c.mu.Lock()
	if _, busy := c.inflight[key]; busy || c.coolDown.coolingDown(key, c.now()) {
		c.mu.Unlock()
		return
	}
	c.inflight[key] = []chan resolveResult{}
	c.mu.Unlock()

	submitted := c.lookups.submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		url, err := c.resolveUpstream(ctx, id)
		if err == nil {
			c.admit(key, &Entry{URL: url, ResolvedAt: c.now(), Source: sourceLabel(id)})
		} else {
			c.markCoolDown(key)
			// Keep serving the stale entry; just bump its timestamp
			// so the next read does not re-queue immediately.
			c.mu.Lock()
			if entry, ok := c.memo[key]; ok {
				entry.ResolvedAt = c.now().Add(c.cfg.CoolDown - c.cfg.TTL)
				c.dirty[key] = struct{}{}
			}
			c.mu.Unlock()
		}
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
	})
	if !submitted {
		// Queue closed; leave no orphaned inflight marker for later
		// resolvers to block on.
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
	}
}

// PreWarm admits a batch of identities that carry their own URLs into
// the memo and persisted store. No network traffic is generated:
// identities without a direct URL are skipped, resolution for those
// happens lazily on first Resolve. Returns how many were admitted.
func (c *Cache) PreWarm(ids []Identity) int {
	admitted := 0
	now := c.now()
	for _, id := range ids {
		if !id.Valid() || !id.Provided() {
			continue
		}
		key := id.CacheKey()
		c.mu.Lock()
		_, memoized := c.memo[key]
		c.mu.Unlock()
		if memoized {
			continue
		}
		c.admit(key, &Entry{URL: id.DirectURL, ResolvedAt: now, Source: "direct"})
		admitted++
	}
	return admitted
}

// Stats returns a snapshot of image cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:          len(c.memo),
		SizeCap:          c.cfg.SizeCap,
		Hits:             c.hits,
		Misses:           c.misses,
		CoolDowns:        c.coolDown.size(),
		QueueDepth:       c.lookups.depth(),
		ConcurrencyLimit: c.lookups.currentLimit(),
	}
}

// Clear drops all memoized and persisted resolutions and cool-downs.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	for key := range c.memo {
		delete(c.memo, key)
		c.deleted[key] = struct{}{}
		delete(c.dirty, key)
	}
	c.coolDown.reset()
	c.mu.Unlock()
	return c.Flush(ctx)
}

// pruneLocked evicts oldest resolutions past the size cap. Caller
// holds mu.
func (c *Cache) pruneLocked() {
	if len(c.memo) <= c.cfg.SizeCap {
		return
	}
	type aged struct {
		key string
		ts  time.Time
	}
	entries := make([]aged, 0, len(c.memo))
	for k, e := range c.memo {
		entries = append(entries, aged{k, e.ResolvedAt})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ts.Before(entries[j].ts) })
	for _, a := range entries[:len(c.memo)-c.cfg.SizeCap] {
		delete(c.memo, a.key)
		delete(c.dirty, a.key)
		c.deleted[a.key] = struct{}{}
	}
}

// Close drains the lookup queue and flushes pending writes.
func (c *Cache) Close(ctx context.Context) error {
	c.lookups.close()
	return c.Flush(ctx)
}
