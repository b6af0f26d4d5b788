// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

// Package ngfilter removes block-listed videos from ranking results and
// grows the derived block list so later runs can reject the same videos
// by id alone.
package ngfilter

import (
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/config"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/metrics"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models"
)

// Filter applies one NGList to item slices. Partial-match rules are
// normalized once at construction; derived ids discovered during the run
// accumulate in a synchronized set because combinations filter
// concurrently.
type Filter struct {
	videoIDs       map[string]struct{}
	titlesExact    map[string]struct{}
	titlesPartial  []string
	authorIDs      map[string]struct{}
	authorsExact   map[string]struct{}
	authorsPartial []string

	normalize func(string) string

	mu      sync.Mutex
	derived map[string]struct{}
}

// New builds a filter from the merged manual and derived lists.
func New(list *models.NGList, cfg config.NGConfig) *Filter {
	f := &Filter{
		videoIDs:     make(map[string]struct{}, len(list.VideoIDs)+len(list.DerivedVideoIDs)),
		titlesExact:  make(map[string]struct{}, len(list.VideoTitles)),
		authorIDs:    make(map[string]struct{}, len(list.AuthorIDs)),
		authorsExact: make(map[string]struct{}, len(list.AuthorNames)),
		derived:      make(map[string]struct{}),
		normalize:    normalizer(cfg),
	}
	for _, id := range list.VideoIDs {
		f.videoIDs[id] = struct{}{}
	}
	for _, id := range list.DerivedVideoIDs {
		f.videoIDs[id] = struct{}{}
	}
	for _, t := range list.VideoTitles {
		f.titlesExact[f.normalize(t)] = struct{}{}
	}
	for _, t := range list.VideoTitlesPartial {
		f.titlesPartial = append(f.titlesPartial, f.normalize(t))
	}
	for _, id := range list.AuthorIDs {
		f.authorIDs[id] = struct{}{}
	}
	for _, a := range list.AuthorNames {
		f.authorsExact[f.normalize(a)] = struct{}{}
	}
	for _, a := range list.AuthorNamesPartial {
		f.authorsPartial = append(f.authorsPartial, f.normalize(a))
	}
	return f
}

func normalizer(cfg config.NGConfig) func(string) string {
	return func(s string) string {
		if cfg.NormalizeUnicode {
			s = norm.NFKC.String(s)
		}
		if !cfg.CaseSensitive {
			s = strings.ToLower(s)
		}
		return s
	}
}

// Apply returns the kept items in their original relative order. Items
// removed by a title or author rule have their ids recorded as derived.
// The decision never consults ids derived earlier in the same run, so
// filtering the same input twice keeps the same set.
func (f *Filter) Apply(items []models.Item) []models.Item {
	kept := make([]models.Item, 0, len(items))
	for i := range items {
		item := &items[i]
		if f.blockedByID(item) {
			metrics.ItemsFiltered.Inc()
			continue
		}
		if f.blockedByRule(item) {
			metrics.ItemsFiltered.Inc()
			f.recordDerived(item.ID)
			continue
		}
		kept = append(kept, *item)
	}
	return kept
}

// blockedByID checks the cheap id sets only.
func (f *Filter) blockedByID(item *models.Item) bool {
	_, ok := f.videoIDs[item.ID]
	return ok
}

// blockedByRule runs the title and author rules, cheapest first.
func (f *Filter) blockedByRule(item *models.Item) bool {
	title := f.normalize(item.Title)
	if _, ok := f.titlesExact[title]; ok {
		return true
	}
	for _, frag := range f.titlesPartial {
		if strings.Contains(title, frag) {
			return true
		}
	}
	if item.AuthorID != "" {
		if _, ok := f.authorIDs[item.AuthorID]; ok {
			return true
		}
	}
	if item.AuthorName != "" {
		author := f.normalize(item.AuthorName)
		if _, ok := f.authorsExact[author]; ok {
			return true
		}
		for _, frag := range f.authorsPartial {
			if strings.Contains(author, frag) {
				return true
			}
		}
	}
	return false
}

func (f *Filter) recordDerived(id string) {
	if id == "" {
		return
	}
	f.mu.Lock()
	if _, dup := f.derived[id]; !dup {
		f.derived[id] = struct{}{}
		metrics.DerivedNGIDs.Inc()
	}
	f.mu.Unlock()
}

// Derived returns the ids newly derived during this run, in no
// particular order.
func (f *Filter) Derived() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.derived))
	for id := range f.derived {
		out = append(out, id)
	}
	return out
}
