// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

// Package models defines the canonical data shapes shared across the pipeline.
//
// Upstream responses are parsed into narrow per-source types (see models/nico)
// at the extractor boundary and converted into these canonical types
// immediately. Nothing downstream of an extractor ever sees a raw upstream
// document.
package models

// Item is one ranked video entry.
//
// Invariant: within one list, IDs are unique and Rank is a dense 1..N
// sequence matching list order. Rank is reassigned whenever a list is
// deduplicated, filtered, or truncated.
type Item struct {
	Rank         int      `json:"rank"`
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	ThumbURL     string   `json:"thumbURL"`
	Views        int64    `json:"views"`
	Comments     *int64   `json:"comments,omitempty"`
	Mylists      *int64   `json:"mylists,omitempty"`
	Likes        *int64   `json:"likes,omitempty"`
	Tags         []string `json:"tags"`
	AuthorID     string   `json:"authorId,omitempty"`
	AuthorName   string   `json:"authorName,omitempty"`
	AuthorIcon   string   `json:"authorIcon,omitempty"`
	RegisteredAt string   `json:"registeredAt,omitempty"`

	// RequiresSensitiveMasking is set only by the HTML extractor; the list
	// API never returns sensitive items at all.
	RequiresSensitiveMasking bool `json:"requireSensitiveMasking,omitempty"`
}

// Period is the time window a ranking covers.
type Period string

// Ranking periods supported by the Niconico ranking endpoints.
const (
	Period24h  Period = "24h"
	PeriodHour Period = "hour"
)

// AllPeriods lists every period the pipeline fetches, in fetch order.
var AllPeriods = []Period{Period24h, PeriodHour}

// PeriodEntry holds everything published for one (genre, period)
// combination: the main ranking, the topic tags discovered on its first
// page, and one ranking per topic tag.
type PeriodEntry struct {
	Items       []Item            `json:"items"`
	PopularTags []string          `json:"popularTags"`
	Tags        map[string][]Item `json:"tags,omitempty"`

	// FetchError carries the reason a combination came back empty. An
	// empty entry with a marker never aborts the run; the serving layer
	// degrades to "no data" for it.
	FetchError string `json:"fetchError,omitempty"`
}

// GenreEntry maps period -> entry for one genre.
type GenreEntry map[Period]*PeriodEntry

// SnapshotMetadata is the side-channel record stored next to the snapshot
// value in the KV store.
type SnapshotMetadata struct {
	Version    int    `json:"version"`
	UpdatedAt  string `json:"updatedAt"`
	TotalItems int    `json:"totalItems"`
	Size       int    `json:"size,omitempty"`
	Compressed bool   `json:"compressed"`
	NGFiltered bool   `json:"ngFiltered"`
}

// SnapshotFormatVersion is bumped whenever the published document shape
// changes in a way the serving layer must know about.
const SnapshotFormatVersion = 1

// Snapshot is the single published artifact of one pipeline run. It fully
// replaces the previous value under its KV key.
type Snapshot struct {
	Genres   map[string]GenreEntry `json:"genres"`
	Metadata SnapshotMetadata      `json:"metadata"`
}

// NewSnapshot returns an empty snapshot stamped with the current format
// version and the given timestamp.
func NewSnapshot(updatedAt string) *Snapshot {
	return &Snapshot{
		Genres: make(map[string]GenreEntry),
		Metadata: SnapshotMetadata{
			Version:    SnapshotFormatVersion,
			UpdatedAt:  updatedAt,
			Compressed: true,
			NGFiltered: true,
		},
	}
}

// Put records one combination result, creating the genre entry on first use.
func (s *Snapshot) Put(genre string, period Period, entry *PeriodEntry) {
	g, ok := s.Genres[genre]
	if !ok {
		g = make(GenreEntry)
		s.Genres[genre] = g
	}
	g[period] = entry
}

// CountItems returns the total number of items across all main and
// tag-scoped rankings. Stored in the metadata for monitoring.
func (s *Snapshot) CountItems() int {
	total := 0
	for _, genre := range s.Genres {
		for _, entry := range genre {
			if entry == nil {
				continue
			}
			total += len(entry.Items)
			for _, tagItems := range entry.Tags {
				total += len(tagItems)
			}
		}
	}
	return total
}

// NGList is the mutable block list. The manual fields are edited only by
// the external administration collaborator; DerivedVideoIDs is append-only
// and grown by the filter itself whenever a title or author rule removes an
// item, so future runs can short-circuit on ID alone.
type NGList struct {
	VideoIDs           []string `json:"videoIds"`
	VideoTitles        []string `json:"videoTitles"`
	VideoTitlesPartial []string `json:"videoTitlesPartial,omitempty"`
	AuthorIDs          []string `json:"authorIds"`
	AuthorNames        []string `json:"authorNames"`
	AuthorNamesPartial []string `json:"authorNamesPartial,omitempty"`
	DerivedVideoIDs    []string `json:"derivedVideoIds"`
}
