// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package scrape

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models"
)

type fakeSearch struct {
	data    map[string]models.Item
	queried [][]string
}

func (f *fakeSearch) FetchByIDs(_ context.Context, ids []string) (map[string]models.Item, error) {
	f.queried = append(f.queried, ids)
	found := make(map[string]models.Item)
	for _, id := range ids {
		if item, ok := f.data[id]; ok {
			found[id] = item
		}
	}
	return found, nil
}

type fakeTags struct {
	tags []string
	err  error
}

func (f *fakeTags) PopularTags(_ context.Context, _ string, _ int) ([]string, error) {
	return f.tags, f.err
}

type failingFetcher struct{ err error }

func (f *failingFetcher) FetchPage(context.Context, string, models.Period, string, int) (*Page, error) {
	return nil, f.err
}

func TestHybridMergesThreeSources(t *testing.T) {
	html := &fakeFetcher{pages: map[int]*Page{1: {
		Items: []models.Item{
			{Rank: 1, ID: "smA", Title: "A", RequiresSensitiveMasking: true},
			{Rank: 2, ID: "smB", Title: "B"},
			{Rank: 3, ID: "smC", Title: "C"},
		},
	}}}
	api := &fakeFetcher{pages: map[int]*Page{1: {
		Items: []models.Item{
			{Rank: 1, ID: "smB", Title: "B", Views: 200, Comments: int64p(20), Mylists: int64p(2), Likes: int64p(22), Tags: []string{"b"}},
			{Rank: 2, ID: "smC", Title: "C", Views: 300, Comments: int64p(30), Mylists: int64p(3), Likes: int64p(33), Tags: []string{"c"}},
		},
	}}}
	search := &fakeSearch{data: map[string]models.Item{}}

	h := NewHybridFetcher(testScrapeCfg(), html, api, search, &fakeTags{})

	page, err := h.FetchRanking(t.Context(), "game", models.Period24h, "", 500)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)

	a, b, c := page.Items[0], page.Items[1], page.Items[2]

	assert.Equal(t, 1, a.Rank)
	assert.Equal(t, "smA", a.ID)
	assert.True(t, a.RequiresSensitiveMasking, "sensitive item survives from the HTML source")
	assert.Nil(t, a.Comments, "search index had nothing for A")

	assert.Equal(t, 2, b.Rank)
	assert.Equal(t, int64(200), b.Views, "API richness wins for B")
	assert.Equal(t, []string{"b"}, b.Tags)

	assert.Equal(t, 3, c.Rank)
	assert.Equal(t, int64(30), *c.Comments)

	require.NotEmpty(t, search.queried, "HTML-only item goes to backfill")
	assert.Contains(t, search.queried[0], "smA")
}

func TestHybridBackfillsFromSearch(t *testing.T) {
	html := &fakeFetcher{pages: map[int]*Page{1: {
		Items: []models.Item{{Rank: 1, ID: "smA", Title: "A"}},
	}}}
	api := &fakeFetcher{pages: map[int]*Page{1: {}}}
	search := &fakeSearch{data: map[string]models.Item{
		"smA": {ID: "smA", Views: 42, Comments: int64p(4), Mylists: int64p(2), Likes: int64p(1), Tags: []string{"patched"}},
	}}

	h := NewHybridFetcher(testScrapeCfg(), html, api, search, &fakeTags{})

	page, err := h.FetchRanking(t.Context(), "game", models.Period24h, "", 500)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	assert.Equal(t, 1, page.Items[0].Rank, "backfill never changes rank")
	assert.Equal(t, int64(42), page.Items[0].Views)
	assert.Equal(t, []string{"patched"}, page.Items[0].Tags)
}

func TestHybridFallsBackToAPIOnly(t *testing.T) {
	html := &failingFetcher{err: &UpstreamError{Host: hostHTML, StatusCode: 403}}
	api := &fakeFetcher{pages: map[int]*Page{1: {
		Items: []models.Item{
			{Rank: 1, ID: "sm1", Title: "api only"},
			{Rank: 2, ID: "sm2", Title: "api two"},
		},
	}}}

	h := NewHybridFetcher(testScrapeCfg(), html, api, &fakeSearch{}, &fakeTags{})

	page, err := h.FetchRanking(t.Context(), "game", models.Period24h, "", 500)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "sm1", page.Items[0].ID)
	assert.Equal(t, 1, page.Items[0].Rank)
}

func TestHybridToleratesAPIFailure(t *testing.T) {
	html := &fakeFetcher{pages: map[int]*Page{1: {
		Items: []models.Item{{Rank: 1, ID: "smA", Title: "A"}},
	}}}
	api := &failingFetcher{err: &UpstreamError{Host: hostAPI, StatusCode: 500}}

	h := NewHybridFetcher(testScrapeCfg(), html, api, &fakeSearch{}, &fakeTags{})

	page, err := h.FetchRanking(t.Context(), "game", models.Period24h, "", 500)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "A", page.Items[0].Title)
}

func TestHybridPopularTagsPrefersPage(t *testing.T) {
	tags := &fakeTags{tags: []string{"from-api"}}
	h := NewHybridFetcher(testScrapeCfg(), &fakeFetcher{}, &fakeFetcher{}, &fakeSearch{}, tags)

	got, err := h.PopularTags(t.Context(), "game", []string{"from-page"})
	require.NoError(t, err)
	assert.Equal(t, []string{"from-page"}, got)

	// The resolved set is cached for the genre; a later lookup without
	// page tags serves it rather than calling the API.
	got, err = h.PopularTags(t.Context(), "game", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"from-page"}, got)

	got, err = h.PopularTags(t.Context(), "anime", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"from-api"}, got)
}

func TestHybridPopularTagsCapsPageTags(t *testing.T) {
	pageTags := make([]string, 30)
	for i := range pageTags {
		pageTags[i] = fmt.Sprintf("tag%02d", i)
	}
	h := NewHybridFetcher(testScrapeCfg(), &fakeFetcher{}, &fakeFetcher{}, &fakeSearch{}, &fakeTags{})

	got, err := h.PopularTags(t.Context(), "game", pageTags)
	require.NoError(t, err)
	require.Len(t, got, 20)
	assert.Equal(t, pageTags[:20], got)

	// The cached copy carries the cap too.
	got, err = h.PopularTags(t.Context(), "game", nil)
	require.NoError(t, err)
	assert.Len(t, got, 20)
}

func TestHybridPopularTagsError(t *testing.T) {
	tags := &fakeTags{err: errors.New("tag endpoint down")}
	h := NewHybridFetcher(testScrapeCfg(), &fakeFetcher{}, &fakeFetcher{}, &fakeSearch{}, tags)

	_, err := h.PopularTags(t.Context(), "game", nil)
	require.Error(t, err)
}
