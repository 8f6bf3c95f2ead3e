// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

package datacache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golazo-live/golazod/internal/config"
	"github.com/golazo-live/golazod/internal/football"
	"github.com/golazo-live/golazod/internal/store"
)

// stubSource is a controllable football.Source for coordinator tests.
type stubSource struct {
	mu    sync.Mutex
	calls int32
	delay time.Duration
	err   error
	rows  func(date string) []football.RawFixture
}

func (s *stubSource) FixturesByDate(ctx context.Context, date string, _ []int64, _ []int, _ string) ([]football.RawFixture, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.rows != nil {
		return s.rows(date), nil
	}
	return []football.RawFixture{rawFixture(1, date)}, nil
}

func (s *stubSource) FixturesForLeague(ctx context.Context, leagueID int64, season int, date, tz string) ([]football.RawFixture, error) {
	return s.FixturesByDate(ctx, date, []int64{leagueID}, []int{season}, tz)
}

func (s *stubSource) callCount() int32 { return atomic.LoadInt32(&s.calls) }

func (s *stubSource) setError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func rawFixture(id int64, date string) football.RawFixture {
	var f football.RawFixture
	f.Fixture.ID = id
	f.Fixture.Date, _ = time.Parse("2006-01-02", date)
	f.Fixture.Status.Short = "NS"
	f.Teams.Home.Name = fmt.Sprintf("Home %d", id)
	f.Teams.Away.Name = fmt.Sprintf("Away %d", id)
	return f
}

func testCacheConfig() config.CacheConfig {
	return config.CacheConfig{
		TTL:                 30 * time.Minute,
		MaxEntries:          30,
		PrefetchRadius:      3,
		PrefetchBatch:       3,
		PrefetchDelay:       time.Millisecond,
		PrefetchDebounce:    5 * time.Millisecond,
		PersistDebounce:     10 * time.Millisecond,
		FastLoadCount:       8,
		BackgroundLoadDelay: 5 * time.Millisecond,
		TodayFreshWindow:    20 * time.Minute,
		TodayCheckPeriod:    5 * time.Minute,
		OthersSyncInterval:  24 * time.Hour,
		OthersSyncRadius:    2,
		OthersSyncDelay:     time.Millisecond,
	}
}

func newTestCoordinator(t *testing.T, src football.Source, kv store.KV) *Coordinator {
	t.Helper()
	c := New(src, kv, testCacheConfig(), nil)
	return c
}

func TestKeyDeterminism(t *testing.T) {
	tests := []struct {
		date, filter, want string
	}{
		{"2025-06-01", "", "2025-06-01:all"},
		{"2025-06-01", "all", "2025-06-01:all"},
		{"2025-06-01", "premier-league", "2025-06-01:premier-league"},
	}
	for _, tt := range tests {
		if got := Key(tt.date, tt.filter); got != tt.want {
			t.Errorf("Key(%q, %q) = %q, want %q", tt.date, tt.filter, got, tt.want)
		}
		// Same inputs must always produce the same key.
		if again := Key(tt.date, tt.filter); again != Key(tt.date, tt.filter) {
			t.Errorf("Key(%q, %q) not deterministic", tt.date, tt.filter)
		}
	}
}

func TestEntryValid(t *testing.T) {
	now := time.Now()
	ttl := 30 * time.Minute

	tests := []struct {
		name  string
		entry *Entry
		want  bool
	}{
		{"nil entry", nil, false},
		{"fresh complete", &Entry{Status: StatusComplete, Timestamp: now.Add(-time.Minute)}, true},
		{"expired complete", &Entry{Status: StatusComplete, Timestamp: now.Add(-31 * time.Minute)}, false},
		{"boundary is stale", &Entry{Status: StatusComplete, Timestamp: now.Add(-ttl)}, false},
		{"loading never valid", &Entry{Status: StatusLoading, Timestamp: now}, false},
		{"error never valid", &Entry{Status: StatusError, Timestamp: now}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.Valid(ttl, now); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetDataCachesAndHits(t *testing.T) {
	src := &stubSource{}
	c := newTestCoordinator(t, src, nil)
	ctx := context.Background()

	first, err := c.GetData(ctx, "2025-06-01", "", PriorityNormal)
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("got %d fixtures, want 1", len(first))
	}

	second, err := c.GetData(ctx, "2025-06-01", "", PriorityNormal)
	if err != nil {
		t.Fatalf("GetData (cached): %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("got %d fixtures from cache, want 1", len(second))
	}
	if got := src.callCount(); got != 1 {
		t.Errorf("source called %d times, want 1", got)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats hits=%d misses=%d, want 1/1", stats.Hits, stats.Misses)
	}
}

func TestConcurrentFetchDeduplicated(t *testing.T) {
	src := &stubSource{delay: 20 * time.Millisecond}
	c := newTestCoordinator(t, src, nil)
	ctx := context.Background()

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.GetData(ctx, "2025-06-02", "", PriorityNormal)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
	if got := src.callCount(); got != 1 {
		t.Errorf("source called %d times for identical concurrent requests, want 1", got)
	}
}

func TestStaleServedWhileRefreshing(t *testing.T) {
	src := &stubSource{}
	c := newTestCoordinator(t, src, nil)
	ctx := context.Background()

	if _, err := c.GetData(ctx, "2025-06-03", "", PriorityNormal); err != nil {
		t.Fatalf("seed fetch: %v", err)
	}

	// Age the entry past TTL, then break the upstream.
	c.mu.Lock()
	c.cache["2025-06-03:all"].Timestamp = time.Now().Add(-time.Hour)
	c.mu.Unlock()
	src.setError(errors.New("upstream down"))

	got, err := c.GetData(ctx, "2025-06-03", "", PriorityNormal)
	if err != nil {
		t.Fatalf("stale read should not error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("stale read returned %d fixtures, want 1", len(got))
	}

	// The background refresh fails but the stale data survives.
	deadline := time.After(time.Second)
	for src.callCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("background refresh never attempted")
		case <-time.After(time.Millisecond):
		}
	}
	time.Sleep(10 * time.Millisecond)
	entry := c.Peek("2025-06-03", "")
	if entry == nil || len(entry.Data) != 1 {
		t.Fatal("stale data lost after failed refresh")
	}
	if entry.Status != StatusError {
		t.Errorf("entry status after failed refresh = %s, want %s", entry.Status, StatusError)
	}
}

func TestFetchErrorKeepsPreviousData(t *testing.T) {
	src := &stubSource{}
	c := newTestCoordinator(t, src, nil)
	ctx := context.Background()

	if _, err := c.GetData(ctx, "2025-06-04", "", PriorityNormal); err != nil {
		t.Fatalf("seed fetch: %v", err)
	}

	src.setError(errors.New("boom"))
	if _, err := c.RefreshDate(ctx, "2025-06-04", ""); err == nil {
		t.Fatal("RefreshDate should propagate the fetch error")
	}

	entry := c.Peek("2025-06-04", "")
	if entry == nil {
		t.Fatal("entry dropped after failed refresh")
	}
	if len(entry.Data) != 1 {
		t.Errorf("previous data not retained, got %d fixtures", len(entry.Data))
	}
	if entry.Error == "" {
		t.Error("entry.Error not recorded")
	}
}

func TestPruneEvictsOldestBeyondCap(t *testing.T) {
	src := &stubSource{}
	c := newTestCoordinator(t, src, nil)
	c.cfg.MaxEntries = 5
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		date := base.AddDate(0, 0, i).Format("2006-01-02")
		if _, err := c.GetData(ctx, date, "", PriorityNormal); err != nil {
			t.Fatalf("fetch %s: %v", date, err)
		}
	}

	if got := c.Len(); got != 5 {
		t.Fatalf("cache holds %d entries, want 5", got)
	}
	// The three oldest fetches are gone, the five newest remain.
	for i := 0; i < 3; i++ {
		date := base.AddDate(0, 0, i).Format("2006-01-02")
		if c.Peek(date, "") != nil {
			t.Errorf("oldest entry %s survived pruning", date)
		}
	}
	for i := 3; i < 8; i++ {
		date := base.AddDate(0, 0, i).Format("2006-01-02")
		if c.Peek(date, "") == nil {
			t.Errorf("recent entry %s was pruned", date)
		}
	}
}

func TestSubscriberPanicIsolation(t *testing.T) {
	src := &stubSource{}
	c := newTestCoordinator(t, src, nil)
	ctx := context.Background()

	var healthyCalls int32
	c.Subscribe(func(string, []football.Fixture) {
		panic("bad subscriber")
	})
	unsub := c.Subscribe(func(string, []football.Fixture) {
		atomic.AddInt32(&healthyCalls, 1)
	})
	defer unsub()

	if _, err := c.GetData(ctx, "2025-06-05", "", PriorityNormal); err != nil {
		t.Fatalf("GetData: %v", err)
	}
	if got := atomic.LoadInt32(&healthyCalls); got != 1 {
		t.Errorf("healthy subscriber called %d times, want 1", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	src := &stubSource{}
	c := newTestCoordinator(t, src, nil)
	ctx := context.Background()

	var calls int32
	unsub := c.Subscribe(func(string, []football.Fixture) {
		atomic.AddInt32(&calls, 1)
	})
	if _, err := c.GetData(ctx, "2025-06-06", "", PriorityNormal); err != nil {
		t.Fatalf("GetData: %v", err)
	}
	unsub()
	if _, err := c.RefreshDate(ctx, "2025-06-06", ""); err != nil {
		t.Fatalf("RefreshDate: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("subscriber called %d times after unsubscribe, want 1", got)
	}
}

func TestDebouncedPersistBatches(t *testing.T) {
	src := &stubSource{}
	kv := store.NewMemoryStore()
	c := newTestCoordinator(t, src, kv)
	ctx := context.Background()

	// Three rapid mutations inside the debounce window.
	for i := 0; i < 3; i++ {
		date := fmt.Sprintf("2025-06-0%d", i+1)
		if _, err := c.GetData(ctx, date, "", PriorityNormal); err != nil {
			t.Fatalf("fetch %s: %v", date, err)
		}
	}

	deadline := time.After(time.Second)
	for kv.BatchWrites() == 0 {
		select {
		case <-deadline:
			t.Fatal("debounced persist never fired")
		case <-time.After(time.Millisecond):
		}
	}
	if got := kv.BatchWrites(); got != 1 {
		t.Errorf("persist ran %d batches for a burst of writes, want 1", got)
	}

	// Entries, index and meta all landed.
	if _, err := kv.Get(ctx, indexKey); err != nil {
		t.Errorf("index not persisted: %v", err)
	}
	if _, err := kv.Get(ctx, metaKey); err != nil {
		t.Errorf("meta not persisted: %v", err)
	}
	if _, err := kv.Get(ctx, entryStoreKey("2025-06-01:all")); err != nil {
		t.Errorf("entry not persisted: %v", err)
	}
}

func TestFlushAndLoadRoundTrip(t *testing.T) {
	src := &stubSource{}
	kv := store.NewMemoryStore()
	ctx := context.Background()

	c1 := newTestCoordinator(t, src, kv)
	if _, err := c1.GetData(ctx, "2025-06-10", "", PriorityNormal); err != nil {
		t.Fatalf("seed fetch: %v", err)
	}
	if err := c1.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	c2 := newTestCoordinator(t, src, kv)
	if err := c2.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	entry := c2.Peek("2025-06-10", "")
	if entry == nil {
		t.Fatal("entry not restored from store")
	}
	if entry.Status != StatusComplete || len(entry.Data) != 1 {
		t.Errorf("restored entry status=%s len=%d, want complete/1", entry.Status, len(entry.Data))
	}
	// No refetch needed for a restored, fresh entry.
	before := src.callCount()
	if _, err := c2.GetData(ctx, "2025-06-10", "", PriorityNormal); err != nil {
		t.Fatalf("GetData after load: %v", err)
	}
	if src.callCount() != before {
		t.Error("restored entry triggered an upstream fetch")
	}
}

func TestLoadSkipsExpiredEntries(t *testing.T) {
	src := &stubSource{}
	kv := store.NewMemoryStore()
	ctx := context.Background()

	c1 := newTestCoordinator(t, src, kv)
	if _, err := c1.GetData(ctx, "2025-06-11", "", PriorityNormal); err != nil {
		t.Fatalf("seed fetch: %v", err)
	}
	c1.mu.Lock()
	c1.cache["2025-06-11:all"].Timestamp = time.Now().Add(-2 * time.Hour)
	c1.dirty["2025-06-11:all"] = struct{}{}
	c1.mu.Unlock()
	if err := c1.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	c2 := newTestCoordinator(t, src, kv)
	if err := c2.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c2.Peek("2025-06-11", "") != nil {
		t.Error("expired persisted entry was restored")
	}
	// The stale persisted copy is also deleted from the store.
	if _, err := kv.Get(ctx, entryStoreKey("2025-06-11:all")); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expired entry still in store, err=%v", err)
	}
}

func TestClearDropsMemoryAndStore(t *testing.T) {
	src := &stubSource{}
	kv := store.NewMemoryStore()
	c := newTestCoordinator(t, src, kv)
	ctx := context.Background()

	if _, err := c.GetData(ctx, "2025-06-12", "", PriorityNormal); err != nil {
		t.Fatalf("seed fetch: %v", err)
	}
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("cache holds %d entries after Clear", c.Len())
	}
	if _, err := kv.Get(ctx, entryStoreKey("2025-06-12:all")); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("persisted entry survived Clear, err=%v", err)
	}
}

func TestSetSelectedDateSweepsRadius(t *testing.T) {
	src := &stubSource{}
	c := newTestCoordinator(t, src, nil)

	c.SetSelectedDate("2025-06-15", "")

	// radius 3 both sides plus the anchor
	deadline := time.After(2 * time.Second)
	for src.callCount() < 7 {
		select {
		case <-deadline:
			t.Fatalf("sweep fetched %d dates, want 7", src.callCount())
		case <-time.After(time.Millisecond):
		}
	}
	time.Sleep(20 * time.Millisecond)
	if got := src.callCount(); got != 7 {
		t.Errorf("sweep fetched %d dates, want exactly 7", got)
	}
	for _, date := range []string{"2025-06-12", "2025-06-13", "2025-06-14", "2025-06-15", "2025-06-16", "2025-06-17", "2025-06-18"} {
		if c.Peek(date, "") == nil {
			t.Errorf("date %s not prefetched", date)
		}
	}
}

func TestSweepWarmsSelectedFilter(t *testing.T) {
	src := &stubSource{}
	c := newTestCoordinator(t, src, nil)

	c.SetSelectedDate("2025-06-15", "premier-league")

	deadline := time.After(2 * time.Second)
	for src.callCount() < 7 {
		select {
		case <-deadline:
			t.Fatalf("sweep fetched %d dates, want 7", src.callCount())
		case <-time.After(time.Millisecond):
		}
	}
	for _, date := range []string{"2025-06-14", "2025-06-15", "2025-06-16"} {
		if c.Peek(date, "premier-league") == nil {
			t.Errorf("date %s not warmed under the selected filter", date)
		}
		if c.Peek(date, "") != nil {
			t.Errorf("date %s warmed under the all filter instead", date)
		}
	}
}

func TestSetSelectedDateDebounces(t *testing.T) {
	src := &stubSource{}
	c := newTestCoordinator(t, src, nil)

	// Rapid date changes; only the last should sweep.
	c.SetSelectedDate("2025-06-01", "")
	c.SetSelectedDate("2025-06-02", "")
	c.SetSelectedDate("2025-06-20", "")

	deadline := time.After(2 * time.Second)
	for c.Peek("2025-06-20", "") == nil {
		select {
		case <-deadline:
			t.Fatal("final selection never swept")
		case <-time.After(time.Millisecond):
		}
	}
	time.Sleep(20 * time.Millisecond)
	if c.Peek("2025-06-01", "") != nil {
		t.Error("debounced-away selection was swept")
	}
}

func TestCacheHitReCentersPrefetch(t *testing.T) {
	src := &stubSource{}
	c := newTestCoordinator(t, src, nil)
	ctx := context.Background()

	if _, err := c.GetData(ctx, "2025-06-15", "", PriorityNormal); err != nil {
		t.Fatalf("seed fetch: %v", err)
	}

	// Before hydration finishes a hit must not sweep.
	if _, err := c.GetData(ctx, "2025-06-15", "", PriorityNormal); err != nil {
		t.Fatalf("cached read: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if got := src.callCount(); got != 1 {
		t.Fatalf("source called %d times before init, want 1", got)
	}

	c.markInitialized()
	if _, err := c.GetData(ctx, "2025-06-15", "", PriorityNormal); err != nil {
		t.Fatalf("cached read: %v", err)
	}

	// Anchor is fresh, the six neighbors get fetched.
	deadline := time.After(2 * time.Second)
	for src.callCount() < 7 {
		select {
		case <-deadline:
			t.Fatalf("hit-triggered sweep fetched %d dates, want 7 total", src.callCount())
		case <-time.After(time.Millisecond):
		}
	}
}

func TestSweepSkipsFreshEntries(t *testing.T) {
	src := &stubSource{}
	c := newTestCoordinator(t, src, nil)
	ctx := context.Background()

	// Pre-warm the anchor; the sweep should fetch only the other six.
	if _, err := c.GetData(ctx, "2025-06-15", "", PriorityNormal); err != nil {
		t.Fatalf("seed fetch: %v", err)
	}
	before := src.callCount()

	c.mu.Lock()
	c.selectedDate = "2025-06-15"
	c.mu.Unlock()
	c.sweep("2025-06-15", "")

	if got := src.callCount() - before; got != 6 {
		t.Errorf("sweep fetched %d dates, want 6 (anchor was fresh)", got)
	}
}

func TestSweepKeysNearestFirst(t *testing.T) {
	anchor := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	got := sweepKeys(anchor, 2)
	want := []string{"2025-06-15", "2025-06-16", "2025-06-14", "2025-06-17", "2025-06-13"}
	if len(got) != len(want) {
		t.Fatalf("got %d keys, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keys[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDateDistance(t *testing.T) {
	tests := []struct {
		key, anchor string
		want        int
	}{
		{"2025-06-15:all", "2025-06-15", 0},
		{"2025-06-18:all", "2025-06-15", 3},
		{"2025-06-12:premier-league", "2025-06-15", 3},
		{"garbage", "2025-06-15", 1 << 20},
	}
	for _, tt := range tests {
		if got := dateDistance(tt.key, tt.anchor); got != tt.want {
			t.Errorf("dateDistance(%q, %q) = %d, want %d", tt.key, tt.anchor, got, tt.want)
		}
	}
}

func TestRefreshTodayIfStale(t *testing.T) {
	src := &stubSource{}
	c := newTestCoordinator(t, src, nil)
	ctx := context.Background()

	// Never fetched: the check fires immediately.
	c.refreshTodayIfStale(ctx)
	if got := src.callCount(); got != 1 {
		t.Fatalf("stale today refresh fetched %d times, want 1", got)
	}

	// Just fetched: within the window, no refetch.
	c.refreshTodayIfStale(ctx)
	if got := src.callCount(); got != 1 {
		t.Errorf("fresh today was refetched (%d calls)", got)
	}

	// Age past the window.
	c.mu.Lock()
	c.lastTodayFetch = time.Now().Add(-25 * time.Minute)
	c.mu.Unlock()
	c.refreshTodayIfStale(ctx)
	if got := src.callCount(); got != 2 {
		t.Errorf("aged today not refetched (%d calls)", got)
	}
}

func TestSyncOthersIfDue(t *testing.T) {
	src := &stubSource{}
	c := newTestCoordinator(t, src, nil)
	ctx := context.Background()

	c.syncOthersIfDue(ctx)
	// radius 2 both sides, today excluded
	if got := src.callCount(); got != 4 {
		t.Fatalf("others sync fetched %d dates, want 4", got)
	}
	if c.Stats().LastOthersSync.IsZero() {
		t.Error("LastOthersSync not recorded")
	}

	// Within the interval: no new fetches.
	c.syncOthersIfDue(ctx)
	if got := src.callCount(); got != 4 {
		t.Errorf("others sync reran inside its interval (%d calls)", got)
	}
}
