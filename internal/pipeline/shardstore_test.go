// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models"
)

func shardGenres(genre string, ids ...string) map[string]models.GenreEntry {
	return map[string]models.GenreEntry{
		genre: {
			models.Period24h: &models.PeriodEntry{Items: rankedItems(ids...)},
		},
	}
}

func TestShardStoreRoundTrip(t *testing.T) {
	store, err := OpenShardStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveShard(&ShardRecord{
		Group:  1,
		Of:     2,
		Genres: shardGenres("game", "sm1", "sm2"),
	}))
	require.NoError(t, store.SaveShard(&ShardRecord{
		Group:  2,
		Of:     2,
		Genres: shardGenres("music", "sm3"),
	}))

	records, err := store.LoadShards()
	require.NoError(t, err)
	require.Len(t, records, 2)

	for _, rec := range records {
		assert.NotEmpty(t, rec.UpdatedAt)
	}
}

func TestShardStoreReplacesSameGroup(t *testing.T) {
	store, err := OpenShardStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveShard(&ShardRecord{Group: 1, Of: 1, Genres: shardGenres("game", "sm1")}))
	require.NoError(t, store.SaveShard(&ShardRecord{Group: 1, Of: 1, Genres: shardGenres("game", "sm9")}))

	records, err := store.LoadShards()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "sm9", records[0].Genres["game"][models.Period24h].Items[0].ID)
}

func TestShardStoreClear(t *testing.T) {
	store, err := OpenShardStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveShard(&ShardRecord{Group: 1, Of: 1, Genres: shardGenres("game", "sm1")}))
	require.NoError(t, store.Clear())

	records, err := store.LoadShards()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAggregateMergesShards(t *testing.T) {
	records := []ShardRecord{
		{Group: 1, Of: 2, Genres: shardGenres("game", "sm1")},
		{Group: 2, Of: 2, Genres: shardGenres("music", "sm2")},
	}

	snap, err := Aggregate(records, "2026-08-31T00:00:00Z")
	require.NoError(t, err)

	assert.Len(t, snap.Genres, 2)
	assert.Equal(t, 2, snap.Metadata.TotalItems)
	assert.Equal(t, "2026-08-31T00:00:00Z", snap.Metadata.UpdatedAt)
}

func TestAggregateRejectsIncompleteSet(t *testing.T) {
	_, err := Aggregate([]ShardRecord{
		{Group: 1, Of: 3, Genres: shardGenres("game", "sm1")},
		{Group: 3, Of: 3, Genres: shardGenres("music", "sm2")},
	}, "2026-08-31T00:00:00Z")
	require.ErrorContains(t, err, "shard 2/3 missing")
}

func TestAggregateRejectsMismatchedGroupCount(t *testing.T) {
	_, err := Aggregate([]ShardRecord{
		{Group: 1, Of: 2, Genres: shardGenres("game", "sm1")},
		{Group: 2, Of: 3, Genres: shardGenres("music", "sm2")},
	}, "2026-08-31T00:00:00Z")
	require.Error(t, err)
}

func TestAggregateRejectsEmpty(t *testing.T) {
	_, err := Aggregate(nil, "2026-08-31T00:00:00Z")
	require.Error(t, err)
}
