// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

// Package scrape implements the fetch side of the ranking pipeline: the
// three upstream extractors, the shared rate gates and circuit breakers,
// the pagination controller, and the reconciliation engine that merges the
// sources into one canonical list per combination.
package scrape

import (
	"context"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models"
)

// Page is one page of extraction output: the ranked items plus any topic
// tags the page carried.
type Page struct {
	Items       []models.Item
	PopularTags []string
}

// PageFetcher is the extractor contract the pagination controller drives.
// Implementations return ErrPageExhausted once past their last page.
type PageFetcher interface {
	FetchPage(ctx context.Context, genre string, period models.Period, tag string, page int) (*Page, error)
}

// MetadataFetcher backfills item metadata by id. Partial results are
// allowed; ids with no hit are simply absent from the map.
type MetadataFetcher interface {
	FetchByIDs(ctx context.Context, ids []string) (map[string]models.Item, error)
}

// Upstream host names, used as rate-gate, breaker, and metric labels.
const (
	hostHTML   = "www.nicovideo.jp"
	hostAPI    = "nvapi.nicovideo.jp"
	hostSearch = "snapshot.search.nicovideo.jp"
)
