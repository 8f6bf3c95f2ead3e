// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

package datacache

import (
	"context"
	"sync"
	"time"

	"github.com/golazo-live/golazod/internal/metrics"
)

// sweep prefetches dates around the anchor under the given filter,
// nearest first, in batches. Only one sweep runs at a time; a sweep
// requested while another runs is dropped (the debounce in
// SetSelectedDate will rearm it on the next date change).
func (c *Coordinator) sweep(anchorKey, filterKey string) {
	c.mu.Lock()
	if c.prefetching {
		c.mu.Unlock()
		return
	}
	c.prefetching = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.prefetching = false
		c.mu.Unlock()
	}()

	anchor, err := time.Parse(dateLayout, anchorKey)
	if err != nil {
		c.logger.Warn().Str("date", anchorKey).Msg("Prefetch anchor is not a date key")
		return
	}

	keys := sweepKeys(anchor, c.cfg.PrefetchRadius)
	metrics.PrefetchSweeps.Inc()
	c.logger.Debug().Str("anchor", anchorKey).Int("dates", len(keys)).Msg("Prefetch sweep started")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for i := 0; i < len(keys); i += c.cfg.PrefetchBatch {
		end := i + c.cfg.PrefetchBatch
		if end > len(keys) {
			end = len(keys)
		}
		c.prefetchBatch(ctx, keys[i:end], filterKey)

		if end < len(keys) {
			select {
			case <-time.After(c.cfg.PrefetchDelay):
			case <-ctx.Done():
				return
			}
		}
		// Abort the sweep when the user moved on to another view.
		c.mu.Lock()
		moved := c.selectedDate != anchorKey || c.selectedFilter != filterKey
		c.mu.Unlock()
		if moved {
			c.logger.Debug().Str("anchor", anchorKey).Msg("Prefetch sweep abandoned, selection changed")
			return
		}
	}
}

// prefetchBatch fetches a batch of dates concurrently under one
// filter, skipping dates that are already fresh.
func (c *Coordinator) prefetchBatch(ctx context.Context, dateKeys []string, filterKey string) {
	var wg sync.WaitGroup
	for _, dateKey := range dateKeys {
		key := Key(dateKey, filterKey)
		c.mu.Lock()
		fresh := c.cache[key].Valid(c.cfg.TTL, c.now())
		c.mu.Unlock()
		if fresh {
			continue
		}
		wg.Add(1)
		go func(dk string) {
			defer wg.Done()
			if _, err := c.fetch(ctx, dk, filterKey, PriorityPrefetch); err != nil {
				c.logger.Debug().Err(err).Str("date", dk).Str("filter", filterKey).Msg("Prefetch fetch failed")
			}
		}(dateKey)
	}
	wg.Wait()
}

// sweepKeys expands an anchor date to [anchor, ±1, ±2, ... ±radius],
// nearest offsets first so visible dates load before distant ones.
func sweepKeys(anchor time.Time, radius int) []string {
	keys := make([]string, 0, 2*radius+1)
	keys = append(keys, anchor.Format(dateLayout))
	for off := 1; off <= radius; off++ {
		keys = append(keys,
			anchor.AddDate(0, 0, off).Format(dateLayout),
			anchor.AddDate(0, 0, -off).Format(dateLayout),
		)
	}
	return keys
}
