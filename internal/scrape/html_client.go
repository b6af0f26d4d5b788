// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/config"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/metrics"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models/nico"
)

// serverResponsePattern locates the embedded structured-data block the
// ranking page renders into a meta tag.
var serverResponsePattern = regexp.MustCompile(`<meta name="server-response" content="([^"]+)"`)

// metaEntityDecoder undoes the HTML-entity encoding of the meta content
// attribute.
var metaEntityDecoder = strings.NewReplacer(
	"&quot;", `"`,
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&#39;", "'",
)

// HTMLRankingClient extracts rankings from the server-rendered ranking
// pages. It is the authoritative source for overall ordering and the only
// source that includes sensitive-flagged items: the crawler user agent
// plus the sensitive_material_status cookie make the page render them.
// It does not reliably report comments, likes, or tags for every item.
type HTMLRankingClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	gate       *RateGate
	breaker    *HostBreaker
	retry      retryPolicy
	maxTags    int
}

// NewHTMLRankingClient creates a client for the ranking pages. The gate
// and breaker are shared with every other consumer of the same host.
func NewHTMLRankingClient(cfg config.ScrapeConfig, gate *RateGate, breaker *HostBreaker) *HTMLRankingClient {
	return &HTMLRankingClient{
		baseURL:    "https://" + hostHTML,
		userAgent:  cfg.CrawlerUserAgent,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		gate:       gate,
		breaker:    breaker,
		retry:      newRetryPolicy(cfg),
		maxTags:    cfg.MaxTopicTags,
	}
}

// SetBaseURL points the client at a different origin. Tests use this to
// target an httptest server.
func (c *HTMLRankingClient) SetBaseURL(base string) {
	c.baseURL = strings.TrimSuffix(base, "/")
}

// FetchPage implements PageFetcher. A 404 means the page parameter ran
// past the last available page and comes back as ErrPageExhausted.
func (c *HTMLRankingClient) FetchPage(ctx context.Context, genre string, period models.Period, tag string, page int) (*Page, error) {
	callSite := fmt.Sprintf("html:%s/%s", genre, period)

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

func (c *HTMLRankingClient) fetchPage(ctx context.Context, genre string, period models.Period, tag string, page int) (*Page, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/ranking/genre/%s?term=%s", c.baseURL, GenreID(genre), period)
	if tag != "" {
		reqURL += "&tag=" + url.QueryEscape(tag)
	}
	if page > 1 {
		reqURL += fmt.Sprintf("&page=%d", page)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "ja,en;q=0.9")
	// The cookie opts in to content the page would otherwise geo/policy-gate.
	req.Header.Set("Cookie", "sensitive_material_status=accept")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues(hostHTML).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(hostHTML, "error").Inc()
		return nil, &UpstreamError{Host: hostHTML, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.UpstreamRequests.WithLabelValues(hostHTML, "exhausted").Inc()
		return nil, fmt.Errorf("%w: %s page %d", ErrPageExhausted, callKey(genre, period, tag), page)
	case resp.StatusCode != http.StatusOK:
		metrics.UpstreamRequests.WithLabelValues(hostHTML, "error").Inc()
		return nil, &UpstreamError{Host: hostHTML, StatusCode: resp.StatusCode}
	}
	metrics.UpstreamRequests.WithLabelValues(hostHTML, "success").Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Host: hostHTML, Err: err}
	}

	return parseRankingHTML(body, page, c.maxTags)
}

// parseRankingHTML extracts the embedded server-response document,
// decodes it, and descends the fixed key path to the item list.
func parseRankingHTML(html []byte, page, maxTags int) (*Page, error) {
	match := serverResponsePattern.FindSubmatch(html)
	if match == nil {
		return nil, &ParseError{Reason: "server-response meta tag not found"}
	}

	decoded := metaEntityDecoder.Replace(string(match[1]))

	var doc nico.ServerResponse
	if err := json.Unmarshal([]byte(decoded), &doc); err != nil {
		return nil, &ParseError{Reason: "server-response did not decode", Err: err}
	}

	ranking := doc.Data.Response.TeibanRanking
	if ranking == nil || ranking.Data == nil {
		return nil, &ParseError{Reason: "no ranking data in server-response"}
	}

	startRank := (page-1)*htmlPageSize + 1
	items := make([]models.Item, 0, len(ranking.Data.Items))
	for i := range ranking.Data.Items {
		items = append(items, itemFromRankedVideo(&ranking.Data.Items[i], startRank+i))
	}

	var popularTags []string
	if trend := doc.Data.Response.TrendTags; trend != nil && trend.Data != nil {
		popularTags = cleanTopicTags(trend.Data.TrendTags, maxTags)
	}

	return &Page{Items: items, PopularTags: popularTags}, nil
}

// htmlPageSize is the fixed item count of a full ranking page.
const htmlPageSize = 100

func callKey(genre string, period models.Period, tag string) string {
	if tag == "" {
		return fmt.Sprintf("%s/%s", genre, period)
	}
	return fmt.Sprintf("%s/%s/%s", genre, period, tag)
}
