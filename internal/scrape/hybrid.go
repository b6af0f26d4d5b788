// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package scrape

import (
	"context"
	"time"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/config"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/logging"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/tagcache"
)

// TagSource lists a genre's current topic tags.
type TagSource interface {
	PopularTags(ctx context.Context, genre string, max int) ([]string, error)
}

// HybridFetcher combines the three upstream sources into one ranking
// fetch per combination: the HTML source paginated for order and
// sensitive-item coverage, the list API paginated for metadata richness,
// the search index as last-resort backfill for ids only the HTML source
// knew. When the HTML source yields nothing for a combination (some
// genres are not served as ranking pages) the list API result stands
// alone.
type HybridFetcher struct {
	html      PageFetcher
	api       PageFetcher
	search    MetadataFetcher
	tags      TagSource
	tagCache  *tagcache.Cache
	pageDelay time.Duration
	maxPages  int
	maxTags   int
}

// NewHybridFetcher wires the three clients together. html, api and
// search are typically the concrete clients from this package but tests
// substitute mocks.
func NewHybridFetcher(cfg config.ScrapeConfig, html, api PageFetcher, search MetadataFetcher, tags TagSource) *HybridFetcher {
	return &HybridFetcher{
		html:      html,
		api:       api,
		search:    search,
		tags:      tags,
		tagCache:  tagcache.New(30 * time.Minute),
		pageDelay: cfg.PageDelay,
		maxPages:  cfg.MaxPages,
		maxTags:   cfg.MaxTopicTags,
	}
}

// FetchRanking collects one genre/period/tag combination up to target
// unique items. A partial result with a non-nil error means the caller
// got everything that was reachable before the failure.
func (h *HybridFetcher) FetchRanking(ctx context.Context, genre string, period models.Period, tag string, target int) (*Page, error) {
	htmlPage, htmlErr := NewPaginator(h.html, target, h.maxPages, h.pageDelay).Collect(ctx, genre, period, tag)
	if htmlErr != nil && len(htmlPage.Items) == 0 {
		if ctx.Err() != nil {
			return htmlPage, ctx.Err()
		}
		logging.Warn().
			Err(htmlErr).
			Str("combination", callKey(genre, period, tag)).
			Msg("HTML source unavailable, falling back to list API only")
		return NewPaginator(h.api, target, h.maxPages, h.pageDelay).Collect(ctx, genre, period, tag)
	}

	apiPage, apiErr := NewPaginator(h.api, target, h.maxPages, h.pageDelay).Collect(ctx, genre, period, tag)
	if apiErr != nil {
		if ctx.Err() != nil {
			return htmlPage, ctx.Err()
		}
		// The HTML items are a complete ranking on their own; the API
		// side only adds richness.
		logging.Warn().
			Err(apiErr).
			Str("combination", callKey(genre, period, tag)).
			Int("api_items", len(apiPage.Items)).
			Msg("List API incomplete, reconciling with what it returned")
	}

	merged, missing := Reconcile(htmlPage.Items, apiPage.Items)
	missing = append(missing, IncompleteIDs(merged)...)
	if len(missing) > 0 {
		found, err := h.search.FetchByIDs(ctx, dedupe(missing))
		if err != nil && ctx.Err() != nil {
			return &Page{Items: merged, PopularTags: htmlPage.PopularTags}, ctx.Err()
		}
		ApplyBackfill(merged, found)
	}

	return &Page{Items: merged, PopularTags: htmlPage.PopularTags}, htmlErr
}

// PopularTags returns the genre's topic tags, preferring the set embedded
// in the ranking page and falling back to the dedicated API endpoint.
// Resolved tag sets are cached per genre for the run, so the second
// period of a genre never repeats the lookup.
func (h *HybridFetcher) PopularTags(ctx context.Context, genre string, fromPage []string) ([]string, error) {
	if len(fromPage) > 0 {
		if h.maxTags > 0 && len(fromPage) > h.maxTags {
			fromPage = fromPage[:h.maxTags]
		}
		h.tagCache.Set(genre, fromPage)
		return fromPage, nil
	}
	if tags, ok := h.tagCache.Get(genre); ok {
		return tags, nil
	}
	tags, err := h.tags.PopularTags(ctx, genre, h.maxTags)
	if err != nil {
		logging.Warn().Err(err).Str("genre", genre).Msg("Popular tag lookup failed")
		return nil, err
	}
	h.tagCache.Set(genre, tags)
	return tags, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
