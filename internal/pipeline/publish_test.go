// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package pipeline

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/config"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/kvstore"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models"
)

func publishKVCfg() config.KVConfig {
	return config.KVConfig{
		AccountID:     "acc",
		NamespaceID:   "ns",
		APIToken:      "tok",
		SnapshotKey:   "RANKING_LATEST",
		WriteInterval: time.Millisecond,
	}
}

func TestPublisherWritesSliceKeysAndSnapshot(t *testing.T) {
	var mu sync.Mutex
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.URL.Path)
		mu.Unlock()
	}))
	defer srv.Close()

	kv, err := kvstore.New(publishKVCfg())
	require.NoError(t, err)
	kv.SetBaseURL(srv.URL)

	snap := models.NewSnapshot("2026-08-31T00:00:00Z")
	snap.Put("game", models.Period24h, &models.PeriodEntry{
		Items: rankedItems("sm1"),
		Tags:  map[string][]models.Item{"RTA": rankedItems("sm2")},
	})
	snap.Put("game", models.PeriodHour, &models.PeriodEntry{FetchError: "upstream down"})
	snap.Metadata.TotalItems = snap.CountItems()

	p := NewPublisher(kv, publishKVCfg())
	require.NoError(t, p.Publish(t.Context(), snap))

	assert.Contains(t, keys, "/values/ranking-game-24h")
	assert.Contains(t, keys, "/values/ranking-game-24h-tag-RTA")
	assert.NotContains(t, keys, "/values/ranking-game-hour",
		"failed combinations are not published as slices")

	// The authoritative snapshot key goes out last.
	require.NotEmpty(t, keys)
	assert.Equal(t, "/values/RANKING_LATEST", keys[len(keys)-1])
}

func TestPublisherSkipsUnencodableSlice(t *testing.T) {
	kv, err := kvstore.New(publishKVCfg())
	require.NoError(t, err)

	p := NewPublisher(kv, publishKVCfg())
	p.queueSlice("ranking-game-24h", rankedItems("sm1"))
	p.queueSlice("ranking-game-hour", make(chan int))

	assert.Equal(t, 1, p.writer.Pending(),
		"a slice that cannot be encoded is skipped, not queued")
}

func TestPublisherFailsWhenSnapshotWriteFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/values/RANKING_LATEST" {
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer srv.Close()

	kv, err := kvstore.New(publishKVCfg())
	require.NoError(t, err)
	kv.SetBaseURL(srv.URL)

	snap := models.NewSnapshot("2026-08-31T00:00:00Z")
	p := NewPublisher(kv, publishKVCfg())
	require.Error(t, p.Publish(t.Context(), snap))
}
