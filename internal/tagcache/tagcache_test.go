// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package tagcache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheHitAndMiss(t *testing.T) {
	c := New(time.Minute)

	_, ok := c.Get("game")
	assert.False(t, ok)

	c.Set("game", []string{"RTA", "ゆっくり実況"})
	tags, ok := c.Get("game")
	require.True(t, ok)
	assert.Equal(t, []string{"RTA", "ゆっくり実況"}, tags)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCacheExpiry(t *testing.T) {
	c := New(50 * time.Millisecond)
	c.Set("game", []string{"RTA"})

	_, ok := c.Get("game")
	require.True(t, ok)

	time.Sleep(80 * time.Millisecond)
	_, ok = c.Get("game")
	assert.False(t, ok, "expired entries miss")
	assert.Zero(t, c.Len())
}

func TestCacheEmptyListIsCached(t *testing.T) {
	c := New(time.Minute)
	c.Set("radio", nil)

	tags, ok := c.Get("radio")
	assert.True(t, ok, "a genre known to have no tags is still a hit")
	assert.Empty(t, tags)
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Set("game", []string{"RTA"})
			c.Get("game")
			c.Len()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}
