// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package kvstore

import (
	"fmt"
	"net/url"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models"
)

// CombinationKey is the per-combination slice key the serving layer reads
// when it does not want the whole snapshot. Tags are URL-encoded because
// they are free-form Japanese text.
func CombinationKey(genre string, period models.Period, tag string) string {
	if tag == "" {
		return fmt.Sprintf("ranking-%s-%s", genre, period)
	}
	return fmt.Sprintf("ranking-%s-%s-tag-%s", genre, period, url.QueryEscape(tag))
}
