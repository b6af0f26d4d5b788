// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package nico

import (
	"bytes"
	"strconv"

	"github.com/goccy/go-json"
)

// FlexID decodes an identifier that upstreams send either as a JSON string
// (channel ids like "ch2648319") or as a bare number (user ids).
type FlexID string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// MarshalJSON implements json.Marshaler. Numeric-looking ids round-trip as
// numbers so re-encoded documents match what the upstream sent.
func (f FlexID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(f), 10, 64); err == nil && f != "" {
		return []byte(f), nil
	}
	return json.Marshal(string(f))
}

// String returns the id as a plain string.
func (f FlexID) String() string { return string(f) }
