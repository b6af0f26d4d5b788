// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

// Package main is the ranking update runner.
//
// One invocation fetches the configured genre/period matrix from the
// Niconico upstreams, reconciles the sources, applies the NG block list
// and publishes a fresh snapshot to the Cloudflare KV namespace.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (CLOUDFLARE_ACCOUNT_ID, CLOUDFLARE_KV_NAMESPACE_ID,
//     CLOUDFLARE_KV_API_TOKEN are required; see internal/config)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// # Grouped runs
//
// The full matrix can be split across parallel invocations on the same
// host:
//
//	updater --group 1 --of 3    # first third of the genres
//	updater --group 2 --of 3
//	updater --group 3 --of 3
//	updater --aggregate         # merge shard results and publish
//
// Grouped runs persist partial results locally and do not publish;
// only the aggregate invocation writes to the KV store. Exit code 0
// means every combination succeeded and the publish went through.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/config"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/kvstore"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/logging"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/ngfilter"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/pipeline"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/scrape"
)

func main() {
	var (
		genresFlag  = flag.String("genres", "", "comma-separated genre subset (default: all)")
		periodsFlag = flag.String("periods", "", "comma-separated period subset (default: 24h,hour)")
		group       = flag.Int("group", 0, "shard index for a grouped run (1-based)")
		of          = flag.Int("of", 0, "total number of groups")
		aggregate   = flag.Bool("aggregate", false, "merge shard results and publish")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	genres, err := selectGenres(*genresFlag, *group, *of)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid genre selection")
	}
	periods, err := selectPeriods(*periodsFlag)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid period selection")
	}

	kv, err := kvstore.New(cfg.KV)
	if err != nil {
		logging.Fatal().Err(err).Msg("KV store not configured")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *aggregate {
		if err := runAggregate(ctx, cfg, kv); err != nil {
			logging.Error().Err(err).Msg("Aggregate publish failed")
			os.Exit(1)
		}
		return
	}

	if err := runUpdate(ctx, cfg, kv, genres, periods, *group, *of); err != nil {
		logging.Error().Err(err).Msg("Update run failed")
		os.Exit(1)
	}
}

func runUpdate(ctx context.Context, cfg *config.Config, kv *kvstore.Client, genres []string, periods []models.Period, group, of int) error {
	ngStore := ngfilter.NewStore(kv, cfg.NG)
	ngList, err := ngStore.Load(ctx)
	if err != nil {
		return err
	}
	filter := ngfilter.New(ngList, cfg.NG)

	fetcher := buildFetcher(cfg)
	orch := pipeline.New(cfg.Scrape, fetcher, filter)

	snap, runErr := orch.Run(ctx, genres, periods)

	ngStore.AppendDerivedAsync(ctx, orch.DerivedNGIDs())
	defer ngStore.Wait()

	if group > 0 {
		store, err := pipeline.OpenShardStore(cfg.Shard.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.SaveShard(&pipeline.ShardRecord{
			Group:  group,
			Of:     of,
			Genres: snap.Genres,
		}); err != nil {
			return err
		}
		return runErr
	}

	if err := pipeline.NewPublisher(kv, cfg.KV).Publish(ctx, snap); err != nil {
		return err
	}
	return runErr
}

func runAggregate(ctx context.Context, cfg *config.Config, kv *kvstore.Client) error {
	store, err := pipeline.OpenShardStore(cfg.Shard.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.LoadShards()
	if err != nil {
		return err
	}
	snap, err := pipeline.Aggregate(records, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	if err := pipeline.NewPublisher(kv, cfg.KV).Publish(ctx, snap); err != nil {
		return err
	}
	return store.Clear()
}

// buildFetcher assembles the three upstream clients with one shared gate
// and breaker per host.
func buildFetcher(cfg *config.Config) *scrape.HybridFetcher {
	htmlGate := scrape.NewRateGate("www.nicovideo.jp", cfg.RateLimit.HTML.MaxRequests, cfg.RateLimit.HTML.Window)
	apiGate := scrape.NewRateGate("nvapi.nicovideo.jp", cfg.RateLimit.API.MaxRequests, cfg.RateLimit.API.Window)
	searchGate := scrape.NewRateGate("snapshot.search.nicovideo.jp", cfg.RateLimit.Search.MaxRequests, cfg.RateLimit.Search.Window)

	htmlBreaker := scrape.NewHostBreaker("www.nicovideo.jp", cfg.Breaker)
	apiBreaker := scrape.NewHostBreaker("nvapi.nicovideo.jp", cfg.Breaker)
	searchBreaker := scrape.NewHostBreaker("snapshot.search.nicovideo.jp", cfg.Breaker)

	html := scrape.NewHTMLRankingClient(cfg.Scrape, htmlGate, htmlBreaker)
	api := scrape.NewNvapiClient(cfg.Scrape, apiGate, apiBreaker)
	search := scrape.NewSnapshotClient(cfg.Scrape, searchGate, searchBreaker)

	return scrape.NewHybridFetcher(cfg.Scrape, html, api, search, api)
}

// selectGenres resolves the explicit list or the shard slice of the full
// genre set. Explicit genres and grouping are mutually exclusive.
func selectGenres(genresFlag string, group, of int) ([]string, error) {
	if genresFlag != "" {
		if group > 0 || of > 0 {
			return nil, errors.New("--genres cannot be combined with --group/--of")
		}
		var genres []string
		for _, g := range strings.Split(genresFlag, ",") {
			g = strings.TrimSpace(g)
			if g == "" {
				continue
			}
			if !scrape.IsKnownGenre(g) {
				return nil, errors.New("unknown genre: " + g)
			}
			genres = append(genres, g)
		}
		if len(genres) == 0 {
			return nil, errors.New("--genres given but empty")
		}
		return genres, nil
	}

	all := scrape.AllGenres
	if group == 0 && of == 0 {
		return all, nil
	}
	if group < 1 || of < 1 || group > of {
		return nil, errors.New("--group must be within 1..--of")
	}

	// Round-robin split keeps shard sizes within one of each other.
	var genres []string
	for i := group - 1; i < len(all); i += of {
		genres = append(genres, all[i])
	}
	return genres, nil
}

func selectPeriods(periodsFlag string) ([]models.Period, error) {
	if periodsFlag == "" {
		return models.AllPeriods, nil
	}
	var periods []models.Period
	for _, p := range strings.Split(periodsFlag, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		period := models.Period(p)
		if period != models.Period24h && period != models.PeriodHour {
			return nil, errors.New("unknown period: " + p)
		}
		periods = append(periods, period)
	}
	if len(periods) == 0 {
		return nil, errors.New("--periods given but empty")
	}
	return periods, nil
}
