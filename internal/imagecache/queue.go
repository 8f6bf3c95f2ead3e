// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

package imagecache

import (
	"sync"
	"time"

	"github.com/golazo-live/golazod/internal/metrics"
)

// queue is a FIFO task runner with an adaptive concurrency limit. Every
// adaptEvery completed tasks the average queue wait is compared against
// the high and low water marks: waits above highWater step the limit
// down, waits below lowWater step it up, always inside [min, max].
type queue struct {
	mu      sync.Mutex
	pending []queuedTask
	running int
	limit   int

	min, max   int
	adaptEvery int
	highWater  time.Duration
	lowWater   time.Duration

	// adaptation window
	completed int
	waitSum   time.Duration

	closed bool
	wg     sync.WaitGroup

	now func() time.Time
}

type queuedTask struct {
	fn       func()
	enqueued time.Time
}

func newQueue(start, min, max, adaptEvery int, highWater, lowWater time.Duration) *queue {
	q := &queue{
		limit:      start,
		min:        min,
		max:        max,
		adaptEvery: adaptEvery,
		highWater:  highWater,
		lowWater:   lowWater,
		now:        time.Now,
	}
	metrics.ImageConcurrencyLimit.Set(float64(start))
	return q
}

// submit enqueues fn for execution. Tasks run in submission order up to
// the current concurrency limit. Returns false after close.
func (q *queue) submit(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, queuedTask{fn: fn, enqueued: q.now()})
	metrics.ImageQueueDepth.Set(float64(len(q.pending)))
	q.dispatchLocked()
	q.mu.Unlock()
	return true
}

// dispatchLocked starts pending tasks while slots are free. Caller
// holds mu.
func (q *queue) dispatchLocked() {
	for q.running < q.limit && len(q.pending) > 0 {
		task := q.pending[0]
		q.pending = q.pending[1:]
		q.running++
		metrics.ImageQueueDepth.Set(float64(len(q.pending)))
		wait := q.now().Sub(task.enqueued)
		q.wg.Add(1)
		go q.run(task.fn, wait)
	}
}

func (q *queue) run(fn func(), wait time.Duration) {
	defer q.wg.Done()
	fn()

	q.mu.Lock()
	q.running--
	q.completed++
	q.waitSum += wait
	if q.completed >= q.adaptEvery {
		avg := q.waitSum / time.Duration(q.completed)
		q.limit = nextLimit(avg, q.limit, q.min, q.max, q.highWater, q.lowWater)
		metrics.ImageConcurrencyLimit.Set(float64(q.limit))
		q.completed = 0
		q.waitSum = 0
	}
	q.dispatchLocked()
	q.mu.Unlock()
}

// close stops accepting tasks and waits for in-flight ones. Already
// pending tasks are dropped.
func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.pending = nil
	metrics.ImageQueueDepth.Set(0)
	q.mu.Unlock()
	q.wg.Wait()
}

// depth returns the number of pending tasks.
func (q *queue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// currentLimit returns the live concurrency limit.
func (q *queue) currentLimit() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.limit
}

// nextLimit computes the new concurrency limit from the average queue
// wait over the last adaptation window. Pure function so the feedback
// rule is testable in isolation.
func nextLimit(avgWait time.Duration, limit, min, max int, highWater, lowWater time.Duration) int {
	switch {
	case avgWait > highWater && limit > min:
		return limit - 1
	case avgWait < lowWater && limit < max:
		return limit + 1
	default:
		return limit
	}
}
