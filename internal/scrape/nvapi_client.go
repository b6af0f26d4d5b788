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
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/metrics"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models/nico"
)

// NvapiClient talks to the structured ranking list API. Richer per-item
// metadata than the HTML source (full tags, exact counters) but it always
// excludes sensitive-flagged items, and requesting past its own last page
// returns 404. That 404 is the expected termination signal for
// pagination, not a failure.
type NvapiClient struct {
	baseURL    string
	userAgent  string
	referer    string
	httpClient *http.Client
	gate       *RateGate
	breaker    *HostBreaker
	retry      retryPolicy
}

// NewNvapiClient creates a list-API client sharing the host's gate and
// breaker.
func NewNvapiClient(cfg config.ScrapeConfig, gate *RateGate, breaker *HostBreaker) *NvapiClient {
	return &NvapiClient{
		baseURL:    "https://" + hostAPI,
		userAgent:  cfg.BrowserUserAgent,
		referer:    "https://www.nicovideo.jp/",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		gate:       gate,
		breaker:    breaker,
		retry:      newRetryPolicy(cfg),
	}
}

// SetBaseURL points the client at a different origin, for tests.
func (c *NvapiClient) SetBaseURL(base string) {
	c.baseURL = strings.TrimSuffix(base, "/")
}

// FetchPage implements PageFetcher.
func (c *NvapiClient) FetchPage(ctx context.Context, genre string, period models.Period, tag string, page int) (*Page, error) {
	callSite := fmt.Sprintf("nvapi:%s/%s", genre, period)

	var result *Page
	err := c.retry.do(ctx, callSite, func() error {
		out, err := c.breaker.Execute(func() (any, error) {
			return c.fetchPage(ctx, genre, period, tag, page)
		})
		result, err = castResult[*Page](out, err)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *NvapiClient) fetchPage(ctx context.Context, genre string, period models.Period, tag string, page int) (*Page, error) {
	params := url.Values{}
	params.Set("term", string(period))
	if tag != "" {
		params.Set("tag", tag)
	}
	if page > 1 {
		params.Set("page", fmt.Sprintf("%d", page))
	}
	reqURL := fmt.Sprintf("%s/v1/ranking/genre/%s?%s", c.baseURL, genre, params.Encode())

	var doc nico.NvapiRankingResponse
	if err := c.getJSON(ctx, reqURL, true, &doc); err != nil {
		return nil, err
	}

	if doc.Meta.Status != http.StatusOK {
		if doc.Meta.Status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s page %d", ErrPageExhausted, callKey(genre, period, tag), page)
		}
		return nil, &UpstreamError{Host: hostAPI, StatusCode: doc.Meta.Status}
	}
	if doc.Data == nil {
		return nil, &ParseError{Reason: "nvapi response carried no data"}
	}

	startRank := (page-1)*htmlPageSize + 1
	items := make([]models.Item, 0, len(doc.Data.Items))
	for i := range doc.Data.Items {
		items = append(items, itemFromRankedVideo(&doc.Data.Items[i], startRank+i))
	}

	return &Page{Items: items}, nil
}

// PopularTags fetches the genre's topic tags, capped at max. A 404 here
// is a plain upstream error: only the ranking page endpoint uses 404 as a
// pagination signal.
func (c *NvapiClient) PopularTags(ctx context.Context, genre string, max int) ([]string, error) {
	if genre == "all" {
		return nil, nil // the aggregate genre has no tag set upstream
	}

	callSite := "nvapi:popular-tags/" + genre

	var tags []string
	err := c.retry.do(ctx, callSite, func() error {
		out, err := c.breaker.Execute(func() (any, error) {
			return c.popularTags(ctx, genre, max)
		})
		tags, err = castResult[[]string](out, err)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

func (c *NvapiClient) popularTags(ctx context.Context, genre string, max int) ([]string, error) {
	reqURL := fmt.Sprintf("%s/v1/genres/%s/popular-tags", c.baseURL, genre)

	var doc nico.NvapiPopularTagsResponse
	if err := c.getJSON(ctx, reqURL, false, &doc); err != nil {
		return nil, err
	}
	if doc.Meta.Status != http.StatusOK || doc.Data == nil {
		return nil, &UpstreamError{Host: hostAPI, StatusCode: doc.Meta.Status}
	}

	return cleanTopicTags(doc.Data.Tags, max), nil
}

// getJSON performs a rate-gated GET with the nvapi client-identity
// headers and decodes the JSON body. When exhaustible is set, an HTTP 404
// maps to ErrPageExhausted.
func (c *NvapiClient) getJSON(ctx context.Context, reqURL string, exhaustible bool, result any) error {
	if err := c.gate.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Frontend-Id", "6")
	req.Header.Set("X-Frontend-Version", "0")
	req.Header.Set("Referer", c.referer)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues(hostAPI).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(hostAPI, "error").Inc()
		return &UpstreamError{Host: hostAPI, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound && exhaustible:
		metrics.UpstreamRequests.WithLabelValues(hostAPI, "exhausted").Inc()
		return fmt.Errorf("%w: %s", ErrPageExhausted, reqURL)
	case resp.StatusCode != http.StatusOK:
		metrics.UpstreamRequests.WithLabelValues(hostAPI, "error").Inc()
		return &UpstreamError{Host: hostAPI, StatusCode: resp.StatusCode}
	}
	metrics.UpstreamRequests.WithLabelValues(hostAPI, "success").Inc()

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &ParseError{Reason: "nvapi response did not decode", Err: err}
	}
	return nil
}
