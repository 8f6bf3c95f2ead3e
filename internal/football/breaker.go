// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

package football

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/golazo-live/golazod/internal/logging"
	"github.com/golazo-live/golazod/internal/metrics"
)

// BreakerSource wraps a Source with a circuit breaker so a down or slow
// upstream API fails fast instead of piling up blocked fetches.
//
// The breaker uses real time for its interval and timeout calculations;
// unit tests should exercise the wrapped Source directly.
type BreakerSource struct {
	source Source
	cb     *gobreaker.CircuitBreaker[[]RawFixture]
	name   string
}

// NewBreakerSource wraps source with a circuit breaker that opens after
// a 60% failure rate across at least 10 requests, and probes recovery
// after 2 minutes.
func NewBreakerSource(source Source) *BreakerSource {
	cbName := "football-api"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // closed

	cb := gobreaker.NewCircuitBreaker[[]RawFixture](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3, // concurrent probes allowed in half-open state
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("opening football API circuit")
				return true
			}
			return false
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("from", stateLabel(from)).
				Str("to", stateLabel(to)).
				Msg("football API circuit state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateLabel(from), stateLabel(to)).Inc()
		},
	})

	return &BreakerSource{source: source, cb: cb, name: cbName}
}

// FixturesByDate implements Source.
func (b *BreakerSource) FixturesByDate(ctx context.Context, date string, leagueIDs []int64, seasons []int, tz string) ([]RawFixture, error) {
	return b.cb.Execute(func() ([]RawFixture, error) {
		return b.source.FixturesByDate(ctx, date, leagueIDs, seasons, tz)
	})
}

// FixturesForLeague implements Source.
func (b *BreakerSource) FixturesForLeague(ctx context.Context, leagueID int64, season int, date, tz string) ([]RawFixture, error) {
	return b.cb.Execute(func() ([]RawFixture, error) {
		return b.source.FixturesForLeague(ctx, leagueID, season, date, tz)
	})
}

func stateLabel(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
