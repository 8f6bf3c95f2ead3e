// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

package datacache

import (
	"context"
	"time"
)

// Serve runs the coordinator's background maintenance until ctx is
// cancelled: a periodic freshness check for today's fixtures and a slow
// sync of nearby dates. It satisfies suture.Service.
func (c *Coordinator) Serve(ctx context.Context) error {
	if err := c.Load(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Cache hydration failed, starting cold")
	}
	c.refreshTodayIfStale(ctx)

	// Stagger the first others sync so startup traffic settles first.
	othersTimer := time.NewTimer(c.cfg.OthersSyncDelay)
	defer othersTimer.Stop()

	todayTicker := time.NewTicker(c.cfg.TodayCheckPeriod)
	defer todayTicker.Stop()

	for {
		select {
		case <-todayTicker.C:
			c.refreshTodayIfStale(ctx)
		case <-othersTimer.C:
			c.syncOthersIfDue(ctx)
			othersTimer.Reset(time.Hour)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := c.Flush(flushCtx)
			cancel()
			if err != nil {
				c.logger.Warn().Err(err).Msg("Final cache flush failed")
			}
			return ctx.Err()
		}
	}
}

// refreshTodayIfStale refetches today's fixtures when the last fetch is
// older than the today freshness window. Today entries go live-score
// stale far faster than the general TTL.
func (c *Coordinator) refreshTodayIfStale(ctx context.Context) {
	c.mu.Lock()
	last := c.lastTodayFetch
	c.mu.Unlock()

	if c.now().Sub(last) < c.cfg.TodayFreshWindow {
		return
	}
	today := c.todayKey()
	c.logger.Debug().Str("date", today).Time("last_fetch", last).Msg("Today entry stale, refreshing")
	if _, err := c.fetch(ctx, today, "", PriorityRefresh); err != nil {
		c.logger.Warn().Err(err).Msg("Today refresh failed")
	}
}

// syncOthersIfDue refetches the dates around today once per
// OthersSyncInterval, pacing fetches to avoid a request burst.
func (c *Coordinator) syncOthersIfDue(ctx context.Context) {
	c.mu.Lock()
	last := c.lastOthersSync
	c.mu.Unlock()

	if c.now().Sub(last) < c.cfg.OthersSyncInterval {
		return
	}

	today := c.now().UTC()
	synced := 0
	for off := -c.cfg.OthersSyncRadius; off <= c.cfg.OthersSyncRadius; off++ {
		if off == 0 {
			continue
		}
		dateKey := today.AddDate(0, 0, off).Format(dateLayout)
		if _, err := c.fetch(ctx, dateKey, "", PriorityPrefetch); err != nil {
			c.logger.Debug().Err(err).Str("date", dateKey).Msg("Others sync fetch failed")
		} else {
			synced++
		}
		select {
		case <-time.After(c.cfg.PrefetchDelay):
		case <-ctx.Done():
			return
		}
	}

	c.mu.Lock()
	c.lastOthersSync = c.now()
	c.schedulePersistLocked()
	c.mu.Unlock()
	c.logger.Info().Int("dates", synced).Msg("Nearby dates synced")
}

// String names the service in supervisor logs.
func (c *Coordinator) String() string { return "datacache-coordinator" }
