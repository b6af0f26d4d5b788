// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

// Package pipeline drives the full update run: every genre and period
// combination fetched, reconciled, filtered and assembled into one
// snapshot, then published.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/config"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/logging"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/metrics"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/scrape"
)

// Fetcher is the combination-level fetch surface, implemented by
// scrape.HybridFetcher.
type Fetcher interface {
	FetchRanking(ctx context.Context, genre string, period models.Period, tag string, target int) (*scrape.Page, error)
	PopularTags(ctx context.Context, genre string, fromPage []string) ([]string, error)
}

// Orchestrator runs genres in bounded concurrent batches and funnels
// every result into one snapshot. A combination failure is recorded on
// its entry and never stops the siblings.
type Orchestrator struct {
	cfg     config.ScrapeConfig
	fetcher Fetcher
	filter  ItemFilter

	log zerolog.Logger
}

// ItemFilter is what the orchestrator needs from the NG filter.
type ItemFilter interface {
	Apply(items []models.Item) []models.Item
	Derived() []string
}

// New assembles an orchestrator. filter may not be nil; pass a filter
// built from an empty NGList to run unfiltered.
func New(cfg config.ScrapeConfig, fetcher Fetcher, filter ItemFilter) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		fetcher: fetcher,
		filter:  filter,
		log:     logging.With().Str("component", "pipeline").Logger(),
	}
}

// Run processes the given genres and periods and returns the assembled
// snapshot. The error aggregates combination failures for the caller's
// exit code; the snapshot is still complete with empty marked entries for
// the failed combinations.
func (o *Orchestrator) Run(ctx context.Context, genres []string, periods []models.Period) (*models.Snapshot, error) {
	runID := uuid.New().String()
	log := o.log.With().Str("run_id", runID).Logger()
	started := time.Now()

	log.Info().
		Int("genres", len(genres)).
		Int("periods", len(periods)).
		Int("batch_size", o.cfg.BatchSize).
		Msg("Starting ranking update run")

	snap := models.NewSnapshot(started.UTC().Format(time.RFC3339))
	var mu sync.Mutex
	var failed int

	batchSize := o.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	for start := 0; start < len(genres); start += batchSize {
		if ctx.Err() != nil {
			break
		}
		end := start + batchSize
		if end > len(genres) {
			end = len(genres)
		}

		if start > 0 && o.cfg.BatchPause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(o.cfg.BatchPause):
			}
		}

		var wg sync.WaitGroup
		for _, genre := range genres[start:end] {
			wg.Add(1)
			go func(genre string) {
				defer wg.Done()
				entry, genreFailed := o.processGenre(ctx, log, genre, periods)
				mu.Lock()
				for period, pe := range entry {
					snap.Put(genre, period, pe)
				}
				failed += genreFailed
				mu.Unlock()
			}(genre)
		}
		wg.Wait()
	}

	snap.Metadata.TotalItems = snap.CountItems()

	log.Info().
		Dur("elapsed", time.Since(started)).
		Int("total_items", snap.Metadata.TotalItems).
		Int("failed_combinations", failed).
		Msg("Ranking update run finished")

	if err := ctx.Err(); err != nil {
		return snap, err
	}
	if failed > 0 {
		return snap, &PartialRunError{Failed: failed}
	}
	return snap, nil
}

// processGenre fetches both periods of one genre sequentially, sharing
// the topic tag set discovered on the first period. Returns the entry and
// the number of failed combinations within it.
func (o *Orchestrator) processGenre(ctx context.Context, log zerolog.Logger, genre string, periods []models.Period) (models.GenreEntry, int) {
	entry := make(models.GenreEntry, len(periods))
	failed := 0
	var sharedTags []string

	for i, period := range periods {
		if i > 0 && o.cfg.PeriodDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(o.cfg.PeriodDelay):
			}
		}

		pe := o.processCombination(ctx, log, genre, period, sharedTags)
		entry[period] = pe
		if pe.FetchError != "" {
			failed++
			metrics.CombinationsProcessed.WithLabelValues("failed").Inc()
		} else {
			metrics.CombinationsProcessed.WithLabelValues("success").Inc()
		}
		if i == 0 {
			sharedTags = pe.PopularTags
		}
	}
	return entry, failed
}

// processCombination builds one PeriodEntry: the main ranking, the topic
// tag list, and a sub-ranking per tag. sharedTags, when non-nil, replaces
// tag discovery so both periods of a genre serve the same tag set.
func (o *Orchestrator) processCombination(ctx context.Context, log zerolog.Logger, genre string, period models.Period, sharedTags []string) *models.PeriodEntry {
	clog := log.With().Str("genre", genre).Str("period", string(period)).Logger()
	entry := &models.PeriodEntry{}

	page, err := o.fetcher.FetchRanking(ctx, genre, period, "", o.cfg.TargetCount)
	if page == nil {
		page = &scrape.Page{}
	}
	if err != nil && len(page.Items) == 0 {
		clog.Error().Err(err).Msg("Combination failed with no items")
		entry.FetchError = err.Error()
		return entry
	}
	if err != nil {
		clog.Warn().Err(err).Int("items", len(page.Items)).Msg("Combination partially fetched")
	}

	entry.Items = renumber(o.filter.Apply(page.Items))

	tags := sharedTags
	if tags == nil {
		tags, err = o.fetcher.PopularTags(ctx, genre, page.PopularTags)
		if err != nil {
			clog.Warn().Err(err).Msg("Topic tags unavailable, skipping tag rankings")
		}
	}
	entry.PopularTags = tags

	if len(tags) > 0 {
		entry.Tags = make(map[string][]models.Item, len(tags))
	}
	for i, tag := range tags {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && o.cfg.TagDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(o.cfg.TagDelay):
			}
		}

		tagPage, err := o.fetcher.FetchRanking(ctx, genre, period, tag, o.cfg.TagTargetCount)
		if tagPage == nil {
			tagPage = &scrape.Page{}
		}
		if err != nil && len(tagPage.Items) == 0 {
			clog.Warn().Err(err).Str("tag", tag).Msg("Tag ranking failed")
			continue
		}
		entry.Tags[tag] = renumber(o.filter.Apply(tagPage.Items))
	}

	clog.Info().
		Int("items", len(entry.Items)).
		Int("tags", len(entry.Tags)).
		Msg("Combination completed")
	return entry
}

// DerivedNGIDs exposes the ids the filter derived during this run so the
// caller can persist them.
func (o *Orchestrator) DerivedNGIDs() []string {
	return o.filter.Derived()
}

// renumber makes ranks dense 1..N after filtering removed entries.
func renumber(items []models.Item) []models.Item {
	for i := range items {
		items[i].Rank = i + 1
	}
	return items
}
