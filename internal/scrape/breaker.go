// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package scrape

import (
	"errors"
	"fmt"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/config"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/logging"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/metrics"
)

// HostBreaker is a per-upstream-host circuit breaker. It opens after a run
// of consecutive failures, rejects calls for the configured timeout, then
// lets a single half-open probe through; the probe's result decides
// between closing and re-opening.
//
// Breaker state is shared by every combination the orchestrator runs
// concurrently against the same host; gobreaker synchronizes internally.
type HostBreaker struct {
	host string
	cb   *gobreaker.CircuitBreaker[any]
}

// NewHostBreaker creates a breaker for one upstream host.
func NewHostBreaker(host string, cfg config.BreakerConfig) *HostBreaker {
	metrics.CircuitBreakerState.WithLabelValues(host).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        host,
		MaxRequests: 1, // single probe in half-open
		Timeout:     cfg.Timeout,

		// Page exhaustion is an expected termination signal, not an
		// upstream failure; it must never trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrPageExhausted)
		},

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= cfg.Threshold
			if trip {
				logging.Warn().
					Str("host", host).
					Uint32("consecutive_failures", counts.ConsecutiveFailures).
					Msg("opening circuit")
			}
			return trip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().
				Str("host", name).
				Str("from", fromStr).
				Str("to", toStr).
				Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &HostBreaker{host: host, cb: cb}
}

// Execute runs fn behind the breaker. Rejections come back as
// ErrCircuitOpen so call sites never depend on gobreaker's sentinels.
func (b *HostBreaker) Execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.host, "rejected").Inc()
			return nil, fmt.Errorf("%w: host %s", ErrCircuitOpen, b.host)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.host, "failure").Inc()
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(b.host, "success").Inc()
	return result, nil
}

// castResult type-casts a breaker result with error checking.
func castResult[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
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

func stateToString(state gobreaker.State) string {
	switch state {
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
