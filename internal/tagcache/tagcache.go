// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

// Package tagcache caches per-genre topic tag lists for the duration of a
// run. Both periods of a genre and any grouped sibling run on the same
// process reuse one upstream tag lookup.
package tagcache

import (
	"sync"
	"time"
)

type entry struct {
	tags      []string
	expiresAt time.Time
}

// Cache is a thread-safe TTL cache keyed by genre.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration

	hits   int64
	misses int64
}

// New creates a cache whose entries expire after ttl.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
	}
}

// Get returns the cached tags for genre, or false when absent or expired.
func (c *Cache) Get(genre string) ([]string, bool) {
	c.mu.RLock()
	e, ok := c.entries[genre]
	c.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		c.mu.Lock()
		if !ok {
			c.misses++
		} else {
			delete(c.entries, genre)
			c.misses++
		}
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	return e.tags, true
}

// Set stores tags for genre. An empty list is cached too: a genre with no
// topic tags should not be re-queried every period.
func (c *Cache) Set(genre string, tags []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[genre] = entry{
		tags:      tags,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Stats reports hit and miss counts since creation.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for genre, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, genre)
		}
	}
	return len(c.entries)
}
