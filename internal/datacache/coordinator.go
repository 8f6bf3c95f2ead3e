// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

// Package datacache implements the fixture cache coordinator: a
// mutex-guarded in-memory map of date entries backed by a persistent
// key-value store, with prefetch sweeps around the selected date,
// freshness maintenance for today and debounced batch persistence.
package datacache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/golazo-live/golazod/internal/config"
	"github.com/golazo-live/golazod/internal/football"
	"github.com/golazo-live/golazod/internal/logging"
	"github.com/golazo-live/golazod/internal/metrics"
	"github.com/golazo-live/golazod/internal/store"
)

// TopicFixturesUpdated carries a FixturesUpdated event for every
// successful fetch that changed an entry.
const TopicFixturesUpdated = "fixtures.updated"

// FixturesUpdated is the payload published on TopicFixturesUpdated.
type FixturesUpdated struct {
	DateKey   string    `json:"date_key"`
	FilterKey string    `json:"filter_key"`
	Count     int       `json:"count"`
	Priority  Priority  `json:"priority"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscriber receives fixture updates for a date key. Callbacks run on
// the coordinator's goroutine; panics are contained per subscriber.
type Subscriber func(dateKey string, fixtures []football.Fixture)

// Stats is a point-in-time snapshot of coordinator state.
type Stats struct {
	Entries        int       `json:"entries"`
	MaxEntries     int       `json:"max_entries"`
	Hits           uint64    `json:"hits"`
	Misses         uint64    `json:"misses"`
	InFlight       int       `json:"in_flight"`
	Subscribers    int       `json:"subscribers"`
	Prefetching    bool      `json:"prefetching"`
	LastTodayFetch time.Time `json:"last_today_fetch,omitempty"`
	LastOthersSync time.Time `json:"last_others_sync,omitempty"`
}

// Coordinator owns the fixture cache. All exported methods are safe for
// concurrent use.
type Coordinator struct {
	source football.Source
	kv     store.KV
	cfg    config.CacheConfig
	pub    message.Publisher
	logger zerolog.Logger

	mu       sync.Mutex
	cache    map[string]*Entry
	inflight map[string][]chan fetchResult
	dirty    map[string]struct{}
	deleted  map[string]struct{}

	persistTimer  *time.Timer
	prefetchTimer *time.Timer

	subs map[string]Subscriber

	selectedDate   string
	selectedFilter string
	prefetching    bool
	initialized    bool

	lastTodayFetch time.Time
	lastOthersSync time.Time

	hits   uint64
	misses uint64

	now func() time.Time
}

type fetchResult struct {
	fixtures []football.Fixture
	err      error
}

// New builds a Coordinator. The publisher may be nil when no event
// fan-out is wanted (tests).
func New(src football.Source, kv store.KV, cfg config.CacheConfig, pub message.Publisher) *Coordinator {
	return &Coordinator{
		source:   src,
		kv:       kv,
		cfg:      cfg,
		pub:      pub,
		logger:   logging.With().Str("component", "datacache").Logger(),
		cache:    make(map[string]*Entry),
		inflight: make(map[string][]chan fetchResult),
		dirty:    make(map[string]struct{}),
		deleted:  make(map[string]struct{}),
		subs:     make(map[string]Subscriber),
		now:      time.Now,
	}
}

// GetData returns fixtures for the key, serving from cache when the
// entry is valid and fetching otherwise. A stale entry is returned
// immediately while the refetch proceeds in the background.
func (c *Coordinator) GetData(ctx context.Context, dateKey, filterKey string, priority Priority) ([]football.Fixture, error) {
	key := Key(dateKey, filterKey)

	c.mu.Lock()
	entry := c.cache[key]
	if entry.Valid(c.cfg.TTL, c.now()) {
		c.hits++
		data := entry.Data
		warm := c.initialized
		c.mu.Unlock()
		metrics.FixtureCacheHits.Inc()
		// A hit re-centers the prefetch window on the viewed date.
		// Suppressed until startup hydration finishes so a cold start
		// does not flood the upstream.
		if warm {
			c.SetSelectedDate(dateKey, filterKey)
		}
		return data, nil
	}
	c.misses++
	var stale []football.Fixture
	if entry != nil && len(entry.Data) > 0 {
		stale = entry.Data
	}
	c.mu.Unlock()
	metrics.FixtureCacheMisses.Inc()

	if stale != nil {
		// Serve the stale copy now and refresh behind it.
		go func() {
			bg, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := c.fetch(bg, dateKey, filterKey, priority); err != nil {
				c.logger.Debug().Err(err).Str("key", key).Msg("Background refresh after stale hit failed")
			}
		}()
		return stale, nil
	}

	return c.fetch(ctx, dateKey, filterKey, priority)
}

// fetch performs (or joins) the single in-flight fetch for a key.
func (c *Coordinator) fetch(ctx context.Context, dateKey, filterKey string, priority Priority) ([]football.Fixture, error) {
	key := Key(dateKey, filterKey)

	c.mu.Lock()
	if waiters, ok := c.inflight[key]; ok {
		ch := make(chan fetchResult, 1)
		c.inflight[key] = append(waiters, ch)
		c.mu.Unlock()
		select {
		case res := <-ch:
			return res.fixtures, res.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c.inflight[key] = []chan fetchResult{}

	prev := c.cache[key]
	loading := &Entry{Status: StatusLoading, Priority: priority, Timestamp: c.now()}
	if prev != nil {
		loading.Data = prev.Data
	}
	c.cache[key] = loading
	c.mu.Unlock()

	start := c.now()
	raw, err := c.source.FixturesByDate(ctx, dateKey, football.LeagueIDsForFilter(filterKey), football.Seasons, football.DefaultTimezone)
	metrics.FetchDuration.WithLabelValues(string(priority)).Observe(c.now().Sub(start).Seconds())

	c.mu.Lock()
	waiters := c.inflight[key]
	delete(c.inflight, key)

	if err != nil {
		metrics.FetchErrors.WithLabelValues(string(priority)).Inc()
		fail := &Entry{Status: StatusError, Priority: priority, Timestamp: c.now(), Error: err.Error()}
		if prev != nil {
			fail.Data = prev.Data
		}
		c.cache[key] = fail
		c.mu.Unlock()
		c.logger.Warn().Err(err).Str("key", key).Str("priority", string(priority)).Msg("Fixture fetch failed")
		for _, ch := range waiters {
			ch <- fetchResult{err: err}
		}
		return nil, err
	}

	fixtures := football.ProcessFixtures(raw)
	done := &Entry{
		Data:      fixtures,
		Timestamp: c.now(),
		Status:    StatusComplete,
		Priority:  priority,
	}
	c.cache[key] = done
	c.dirty[key] = struct{}{}
	if dateKey == c.todayKey() {
		c.lastTodayFetch = c.now()
	}
	c.pruneLocked()
	c.schedulePersistLocked()
	subs := c.snapshotSubsLocked()
	c.mu.Unlock()

	metrics.FixtureCacheEntries.Set(float64(c.Len()))
	c.logger.Debug().Str("key", key).Int("fixtures", len(fixtures)).Str("priority", string(priority)).Msg("Fixtures cached")

	for _, ch := range waiters {
		ch <- fetchResult{fixtures: fixtures}
	}
	c.notify(subs, dateKey, fixtures)
	c.publish(dateKey, filterKey, len(fixtures), priority)
	return fixtures, nil
}

// RefreshDate forces a refetch of the key regardless of freshness.
func (c *Coordinator) RefreshDate(ctx context.Context, dateKey, filterKey string) ([]football.Fixture, error) {
	return c.fetch(ctx, dateKey, filterKey, PriorityRefresh)
}

// SetSelectedDate records the date and league filter the prefetch
// sweep centers on and debounces a sweep around them. The sweep warms
// entries under the same filter the user is browsing.
func (c *Coordinator) SetSelectedDate(dateKey, filterKey string) {
	c.mu.Lock()
	c.selectedDate = dateKey
	c.selectedFilter = filterKey
	if c.prefetchTimer != nil {
		c.prefetchTimer.Stop()
	}
	c.prefetchTimer = time.AfterFunc(c.cfg.PrefetchDebounce, func() {
		c.sweep(dateKey, filterKey)
	})
	c.mu.Unlock()
}

// Subscribe registers a callback for fixture updates and returns an
// unsubscribe function.
func (c *Coordinator) Subscribe(fn Subscriber) func() {
	id := uuid.NewString()
	c.mu.Lock()
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Stats returns a snapshot of coordinator counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:        len(c.cache),
		MaxEntries:     c.cfg.MaxEntries,
		Hits:           c.hits,
		Misses:         c.misses,
		InFlight:       len(c.inflight),
		Subscribers:    len(c.subs),
		Prefetching:    c.prefetching,
		LastTodayFetch: c.lastTodayFetch,
		LastOthersSync: c.lastOthersSync,
	}
}

// Len reports the number of cached entries.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Peek returns the entry for a key without fetching, or nil.
func (c *Coordinator) Peek(dateKey, filterKey string) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache[Key(dateKey, filterKey)]
}

// Clear drops all cached entries, in memory and persisted.
func (c *Coordinator) Clear(ctx context.Context) error {
	c.mu.Lock()
	for key := range c.cache {
		delete(c.cache, key)
		c.deleted[key] = struct{}{}
		delete(c.dirty, key)
	}
	c.mu.Unlock()
	metrics.FixtureCacheEntries.Set(0)
	return c.Flush(ctx)
}

// pruneLocked evicts oldest entries past MaxEntries. Caller holds mu.
func (c *Coordinator) pruneLocked() {
	if len(c.cache) <= c.cfg.MaxEntries {
		return
	}
	type aged struct {
		key string
		ts  time.Time
	}
	entries := make([]aged, 0, len(c.cache))
	for k, e := range c.cache {
		entries = append(entries, aged{k, e.Timestamp})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ts.Before(entries[j].ts) })
	for _, a := range entries[:len(c.cache)-c.cfg.MaxEntries] {
		delete(c.cache, a.key)
		delete(c.dirty, a.key)
		c.deleted[a.key] = struct{}{}
		metrics.FixtureCacheEvictions.Inc()
	}
}

func (c *Coordinator) snapshotSubsLocked() []Subscriber {
	out := make([]Subscriber, 0, len(c.subs))
	for _, fn := range c.subs {
		out = append(out, fn)
	}
	return out
}

// notify invokes subscribers one at a time. A panicking subscriber must
// not take down its peers or the coordinator.
func (c *Coordinator) notify(subs []Subscriber, dateKey string, fixtures []football.Fixture) {
	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error().Interface("panic", r).Str("date", dateKey).Msg("Subscriber panicked")
				}
			}()
			fn(dateKey, fixtures)
		}()
	}
}

func (c *Coordinator) publish(dateKey, filterKey string, count int, priority Priority) {
	if c.pub == nil {
		return
	}
	payload, err := json.Marshal(FixturesUpdated{
		DateKey:   dateKey,
		FilterKey: filterKey,
		Count:     count,
		Priority:  priority,
		Timestamp: c.now(),
	})
	if err != nil {
		return
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	if err := c.pub.Publish(TopicFixturesUpdated, msg); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to publish fixture update")
	}
}

func (c *Coordinator) todayKey() string {
	return c.now().UTC().Format(dateLayout)
}
