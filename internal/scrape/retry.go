// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package scrape

import (
	"context"
	"math/rand"
	"time"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/config"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/logging"
)

// retryPolicy is the shared backoff policy for upstream calls. One policy
// instance serves every call site; backoff state is per invocation.
type retryPolicy struct {
	attempts  int // retries after the first call
	baseDelay time.Duration
	maxDelay  time.Duration
}

func newRetryPolicy(cfg config.ScrapeConfig) retryPolicy {
	return retryPolicy{
		attempts:  cfg.RetryAttempts,
		baseDelay: cfg.RetryBaseDelay,
		maxDelay:  cfg.RetryMaxDelay,
	}
}

// do runs fn, retrying transient failures with exponential backoff plus
// jitter. Non-retryable errors (page exhaustion, open circuit, 4xx other
// than 429) return immediately.
func (p retryPolicy) do(ctx context.Context, callSite string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= p.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == p.attempts {
			break
		}

		delay := p.backoff(attempt)
		logging.Warn().
			Err(lastErr).
			Str("call_site", callSite).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("retrying upstream call")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

// backoff returns base*2^attempt capped at maxDelay, with up to 25%
// additive jitter.
func (p retryPolicy) backoff(attempt int) time.Duration {
	delay := p.baseDelay << uint(attempt)
	if delay > p.maxDelay || delay <= 0 {
		delay = p.maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	return delay + jitter
}
