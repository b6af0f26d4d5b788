// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package scrape

import (
	"context"
	"sync"
	"time"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/metrics"
)

// RateGate is a sliding-window admission gate for one upstream host. All
// extractors targeting the same host share one gate, and the orchestrator
// runs combinations concurrently, so admission is mutex-protected.
//
// Wait blocks until the number of calls admitted in the trailing window is
// below the budget, then records the new call.
type RateGate struct {
	mu          sync.Mutex
	host        string
	admitted    []time.Time
	window      time.Duration
	maxRequests int
}

// NewRateGate creates a gate allowing maxRequests per trailing window.
func NewRateGate(host string, maxRequests int, window time.Duration) *RateGate {
	if maxRequests <= 0 {
		maxRequests = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateGate{
		host:        host,
		admitted:    make([]time.Time, 0, maxRequests),
		window:      window,
		maxRequests: maxRequests,
	}
}

// Wait blocks until the call is admitted or ctx is done.
func (g *RateGate) Wait(ctx context.Context) error {
	waited := time.Duration(0)

	for {
		g.mu.Lock()
		now := time.Now()
		g.evict(now)

		if len(g.admitted) < g.maxRequests {
			g.admitted = append(g.admitted, now)
			g.mu.Unlock()

			if waited > 0 {
				metrics.RateLimiterWaits.WithLabelValues(g.host).Inc()
				metrics.RateLimiterWaitDuration.WithLabelValues(g.host).Observe(waited.Seconds())
			}
			return nil
		}

		// Window full: sleep until the oldest admission ages out. The lock
		// is released while sleeping so cancelled callers don't hold up
		// the rest.
		wait := g.admitted[0].Add(g.window).Sub(now)
		g.mu.Unlock()

		if wait <= 0 {
			continue
		}

		select {
		case <-time.After(wait):
			waited += wait
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// evict drops admissions older than the window. Caller holds the lock.
func (g *RateGate) evict(now time.Time) {
	cutoff := now.Add(-g.window)
	i := 0
	for i < len(g.admitted) && !g.admitted[i].After(cutoff) {
		i++
	}
	if i > 0 {
		g.admitted = append(g.admitted[:0], g.admitted[i:]...)
	}
}

// Pending returns how many admissions sit in the current window. Used by
// tests and the orchestrator's progress logging.
func (g *RateGate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.evict(time.Now())
	return len(g.admitted)
}
