// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package scrape

import (
	"context"
	"errors"
	"time"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/logging"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models"
)

// Paginator walks a PageFetcher page by page until it has target unique
// items or the source runs out. Duplicate ids across pages are dropped
// (the live ranking shifts between requests), ranks are renumbered
// densely over the deduplicated order, and the popular tags from the
// first page are carried through.
type Paginator struct {
	fetcher   PageFetcher
	target    int
	maxPages  int
	pageDelay time.Duration
}

// NewPaginator wraps fetcher with accumulation up to target items across
// at most maxPages pages, sleeping pageDelay between page requests.
func NewPaginator(fetcher PageFetcher, target, maxPages int, pageDelay time.Duration) *Paginator {
	return &Paginator{
		fetcher:   fetcher,
		target:    target,
		maxPages:  maxPages,
		pageDelay: pageDelay,
	}
}

// Collect fetches pages for one genre/period/tag combination. It returns
// whatever it accumulated even on error, so a mid-run upstream failure
// still yields a usable partial ranking; callers decide whether a partial
// result is acceptable.
func (p *Paginator) Collect(ctx context.Context, genre string, period models.Period, tag string) (*Page, error) {
	seen := make(map[string]struct{}, p.target)
	out := &Page{Items: make([]models.Item, 0, p.target)}

	for page := 1; page <= p.maxPages; page++ {
		if page > 1 && p.pageDelay > 0 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(p.pageDelay):
			}
		}

		fetched, err := p.fetcher.FetchPage(ctx, genre, period, tag, page)
		if err != nil {
			if errors.Is(err, ErrPageExhausted) {
				break
			}
			logging.Warn().
				Err(err).
				Str("combination", callKey(genre, period, tag)).
				Int("page", page).
				Int("accumulated", len(out.Items)).
				Msg("Pagination stopped by upstream error")
			p.finish(out)
			return out, err
		}

		if page == 1 {
			out.PopularTags = fetched.PopularTags
		}

		for i := range fetched.Items {
			item := fetched.Items[i]
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}
			out.Items = append(out.Items, item)
		}

		if len(out.Items) >= p.target {
			break
		}
		// A short page means the source has nothing further even when
		// it never answers 404 for this combination.
		if len(fetched.Items) < htmlPageSize {
			break
		}
	}

	p.finish(out)
	return out, nil
}

// finish truncates to target and renumbers ranks densely from 1.
func (p *Paginator) finish(out *Page) {
	if len(out.Items) > p.target {
		out.Items = out.Items[:p.target]
	}
	for i := range out.Items {
		out.Items[i].Rank = i + 1
	}
}
