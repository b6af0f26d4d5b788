// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package scrape

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotClientQueriesByID(t *testing.T) {
	var gotQuery, gotTargets string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotTargets = r.URL.Query().Get("targets")
		fmt.Fprint(w, `{
			"meta": {"status": 200, "totalCount": 2},
			"data": [
				{"contentId": "sm1", "title": "one", "viewCounter": 10, "commentCounter": 1,
				 "mylistCounter": 2, "likeCounter": 3, "tags": "tagA tagB", "userId": 999},
				{"contentId": "sm2", "title": "two", "viewCounter": 20, "channelId": "ch5"}
			]
		}`)
	}))
	defer srv.Close()

	client := NewSnapshotClient(testScrapeCfg(), testGate(), testBreaker(t, 5, time.Minute))
	client.SetBaseURL(srv.URL)

	found, err := client.FetchByIDs(t.Context(), []string{"sm1", "sm2", "sm3"})
	require.NoError(t, err)

	assert.Equal(t, "contentId:sm1 OR contentId:sm2 OR contentId:sm3", gotQuery)
	assert.Equal(t, "contentId", gotTargets)

	require.Len(t, found, 2, "unknown ids are simply absent")
	one := found["sm1"]
	assert.Equal(t, int64(10), one.Views)
	assert.Equal(t, int64(1), *one.Comments)
	assert.Equal(t, []string{"tagA", "tagB"}, one.Tags, "space-joined tags split")
	assert.Equal(t, "999", one.AuthorID)

	two := found["sm2"]
	assert.Equal(t, "ch5", two.AuthorID, "channel id serves as author when no user id")
	assert.Nil(t, two.Comments)

	_, ok := found["sm3"]
	assert.False(t, ok)
}

func TestSnapshotClientBatches(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("q"))
		fmt.Fprint(w, `{"meta": {"status": 200}, "data": []}`)
	}))
	defer srv.Close()

	cfg := testScrapeCfg()
	cfg.SnapshotBatchSize = 50
	client := NewSnapshotClient(cfg, testGate(), testBreaker(t, 5, time.Minute))
	client.SetBaseURL(srv.URL)

	ids := make([]string, 120)
	for i := range ids {
		ids[i] = fmt.Sprintf("sm%d", i)
	}

	_, err := client.FetchByIDs(t.Context(), ids)
	require.NoError(t, err)

	require.Len(t, queries, 3)
	assert.Equal(t, 50, strings.Count(queries[0], "contentId:"))
	assert.Equal(t, 50, strings.Count(queries[1], "contentId:"))
	assert.Equal(t, 20, strings.Count(queries[2], "contentId:"))
}

func TestSnapshotClientSkipsFailedBatch(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"meta": {"status": 200}, "data": [{"contentId": "sm60", "title": "found", "viewCounter": 5}]}`)
	}))
	defer srv.Close()

	cfg := testScrapeCfg()
	cfg.SnapshotBatchSize = 50
	client := NewSnapshotClient(cfg, testGate(), testBreaker(t, 5, time.Minute))
	client.SetBaseURL(srv.URL)

	ids := make([]string, 60)
	for i := range ids {
		ids[i] = fmt.Sprintf("sm%d", i)
	}

	found, err := client.FetchByIDs(t.Context(), ids)
	require.NoError(t, err, "a failed batch is skipped, not fatal")
	assert.Len(t, found, 1)
	assert.Contains(t, found, "sm60")
}

func TestSnapshotClientEmptyInput(t *testing.T) {
	client := NewSnapshotClient(testScrapeCfg(), testGate(), testBreaker(t, 5, time.Minute))

	found, err := client.FetchByIDs(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, found)
}
