// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

package datacache

import (
	"time"

	"github.com/golazo-live/golazod/internal/football"
)

// Status is the lifecycle state of a cache entry.
type Status string

const (
	StatusLoading  Status = "loading"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Priority records why a fetch was issued. It is informational (logging,
// metrics, persistence) and does not change fetch semantics.
type Priority string

const (
	PriorityStartup  Priority = "startup"
	PriorityNormal   Priority = "normal"
	PriorityPrefetch Priority = "prefetch"
	PriorityRefresh  Priority = "refresh"
)

// Entry is the per-key unit of cached fixture state.
//
// Invariant: a loading entry retains the previous Data so a refetch
// never blanks the UI.
type Entry struct {
	Data      []football.Fixture `json:"data"`
	Timestamp time.Time          `json:"timestamp"`
	Status    Status             `json:"status"`
	Priority  Priority           `json:"priority,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// Valid reports whether the entry can be served without a refetch:
// complete and younger than ttl at instant now.
func (e *Entry) Valid(ttl time.Duration, now time.Time) bool {
	return e != nil && e.Status == StatusComplete && now.Sub(e.Timestamp) < ttl
}

// Key builds the deterministic composite cache key for a (date, filter)
// request. Identical logical requests always map to the same key; this
// is the basis for fetch de-duplication.
func Key(dateKey, filterKey string) string {
	if filterKey == "" {
		filterKey = "all"
	}
	return dateKey + ":" + filterKey
}

// dateLayout is the wire format for date keys.
const dateLayout = "2006-01-02"
