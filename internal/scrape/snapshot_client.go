// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/config"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/logging"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/metrics"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models/nico"
)

// SnapshotClient queries the full-text search API by exact content id to
// backfill counters and tags for items the other sources returned
// incomplete. Batches are capped by config (the API rejects overlong
// queries); a failed batch is skipped rather than failing the whole
// backfill, because backfill is an enrichment step.
type SnapshotClient struct {
	baseURL    string
	userAgent  string
	batchSize  int
	batchDelay time.Duration
	httpClient *http.Client
	gate       *RateGate
	breaker    *HostBreaker
	retry      retryPolicy
}

// NewSnapshotClient creates a search-backfill client.
func NewSnapshotClient(cfg config.ScrapeConfig, gate *RateGate, breaker *HostBreaker) *SnapshotClient {
	return &SnapshotClient{
		baseURL:    "https://" + hostSearch,
		userAgent:  cfg.BrowserUserAgent,
		batchSize:  cfg.SnapshotBatchSize,
		batchDelay: cfg.SnapshotBatchDelay,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		gate:       gate,
		breaker:    breaker,
		retry:      newRetryPolicy(cfg),
	}
}

// SetBaseURL points the client at a different origin, for tests.
func (c *SnapshotClient) SetBaseURL(base string) {
	c.baseURL = strings.TrimSuffix(base, "/")
}

// FetchByIDs implements MetadataFetcher. It looks up the given video ids
// in batches and returns whatever metadata was found, keyed by id. Ids
// the API does not know are simply absent from the result; a batch that
// fails after retries is logged and skipped.
func (c *SnapshotClient) FetchByIDs(ctx context.Context, ids []string) (map[string]models.Item, error) {
	found := make(map[string]models.Item, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	for start := 0; start < len(ids); start += c.batchSize {
		end := start + c.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		if start > 0 && c.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return found, ctx.Err()
			case <-time.After(c.batchDelay):
			}
		}

		items, err := c.fetchBatch(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return found, ctx.Err()
			}
			logging.Warn().
				Err(err).
				Int("batch_size", len(batch)).
				Str("first_id", batch[0]).
				Msg("Snapshot backfill batch failed, skipping")
			continue
		}
		for id, item := range items {
			found[id] = item
		}
	}

	logging.Debug().
		Int("requested", len(ids)).
		Int("found", len(found)).
		Msg("Snapshot backfill completed")
	return found, nil
}

func (c *SnapshotClient) fetchBatch(ctx context.Context, ids []string) (map[string]models.Item, error) {
	callSite := "snapshot:search"

	var items map[string]models.Item
	err := c.retry.do(ctx, callSite, func() error {
		out, err := c.breaker.Execute(func() (any, error) {
			return c.search(ctx, ids)
		})
		items, err = castResult[map[string]models.Item](out, err)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (c *SnapshotClient) search(ctx context.Context, ids []string) (map[string]models.Item, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return nil, err
	}

	terms := make([]string, len(ids))
	for i, id := range ids {
		terms[i] = "contentId:" + id
	}

	params := url.Values{}
	params.Set("q", strings.Join(terms, " OR "))
	params.Set("targets", "contentId")
	params.Set("fields", strings.Join([]string{
		"contentId", "title", "viewCounter", "commentCounter",
		"mylistCounter", "likeCounter", "thumbnailUrl", "startTime",
		"tags", "userId", "channelId",
	}, ","))
	params.Set("_limit", fmt.Sprintf("%d", len(ids)))
	params.Set("_context", "nico-ranking-custom")
	reqURL := fmt.Sprintf("%s/api/v2/snapshot/video/contents/search?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues(hostSearch).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(hostSearch, "error").Inc()
		return nil, &UpstreamError{Host: hostSearch, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequests.WithLabelValues(hostSearch, "error").Inc()
		return nil, &UpstreamError{Host: hostSearch, StatusCode: resp.StatusCode}
	}
	metrics.UpstreamRequests.WithLabelValues(hostSearch, "success").Inc()

	var doc nico.SnapshotSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, &ParseError{Reason: "snapshot search response did not decode", Err: err}
	}
	if doc.Meta.Status != http.StatusOK {
		return nil, &UpstreamError{Host: hostSearch, StatusCode: doc.Meta.Status}
	}

	items := make(map[string]models.Item, len(doc.Data))
	for i := range doc.Data {
		hit := &doc.Data[i]
		if hit.ContentID == "" {
			continue
		}
		items[hit.ContentID] = itemFromSearchHit(hit)
	}
	return items, nil
}

func itemFromSearchHit(hit *nico.SnapshotSearchItem) models.Item {
	item := models.Item{
		ID:           hit.ContentID,
		Title:        hit.Title,
		ThumbURL:     hit.ThumbnailURL,
		Views:        hit.ViewCounter,
		Comments:     hit.CommentCounter,
		Mylists:      hit.MylistCounter,
		Likes:        hit.LikeCounter,
		Tags:         hit.SplitTags(),
		RegisteredAt: hit.StartTime,
	}
	if id := hit.UserID.String(); id != "" {
		item.AuthorID = id
	} else if id := hit.ChannelID.String(); id != "" {
		item.AuthorID = id
	}
	return item
}
