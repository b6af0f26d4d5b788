// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package scrape

import (
	"errors"
	"fmt"
)

// ErrPageExhausted signals that a ranking source has no further pages. It
// is raised by the extractors on a page-past-the-end 404 (and by short
// pages in the paginator) and is always handled inside the pagination
// loop; it never propagates past it.
var ErrPageExhausted = errors.New("no more ranking pages")

// ErrCircuitOpen is returned when a call is rejected by an open circuit
// breaker without any network I/O being attempted.
var ErrCircuitOpen = errors.New("circuit breaker open")

// UpstreamError is an HTTP-level failure from one of the three upstreams.
// StatusCode is 0 for transport errors that never produced a response.
type UpstreamError struct {
	Host       string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s returned status %d", e.Host, e.StatusCode)
	}
	return fmt.Sprintf("upstream %s request failed: %v", e.Host, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ParseError means the expected structured data was missing or malformed:
// the server-response marker was absent, the embedded JSON did not decode,
// or the fixed key path led nowhere.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse failed: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// isRetryable reports whether the retry layer should attempt the call
// again: HTTP 429, 5xx, transport errors, and parse failures (a truncated
// body parses as garbage and is worth one more fetch). Page exhaustion and
// open circuits are never retried, nor are other 4xx responses —
// notably the 404 that terminates pagination.
func isRetryable(err error) bool {
	if errors.Is(err, ErrPageExhausted) || errors.Is(err, ErrCircuitOpen) {
		return false
	}

	var pe *ParseError
	if errors.As(err, &pe) {
		return true
	}

	var ue *UpstreamError
	if errors.As(err, &ue) {
		if ue.StatusCode == 0 {
			return true // transport error
		}
		return ue.StatusCode == 429 || ue.StatusCode >= 500
	}

	return false
}
