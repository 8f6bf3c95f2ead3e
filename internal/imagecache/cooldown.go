// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

package imagecache

import "time"

// coolDowns tracks identities whose resolution failed recently so they
// are not retried every render cycle. Not safe for concurrent use on
// its own; the Cache guards it with its mutex.
type coolDowns struct {
	window time.Duration
	until  map[string]time.Time
}

func newCoolDowns(window time.Duration) *coolDowns {
	return &coolDowns{window: window, until: make(map[string]time.Time)}
}

// coolingDown reports whether the key is still suppressed.
func (c *coolDowns) coolingDown(key string, now time.Time) bool {
	return now.Before(c.until[key])
}

// markFailed starts (or restarts) the key's cool-down window.
func (c *coolDowns) markFailed(key string, now time.Time) {
	c.until[key] = now.Add(c.window)
}

// clear lifts the cool-down for a key, typically after a success.
func (c *coolDowns) clear(key string) {
	delete(c.until, key)
}

func (c *coolDowns) reset() {
	c.until = make(map[string]time.Time)
}

func (c *coolDowns) size() int {
	return len(c.until)
}
