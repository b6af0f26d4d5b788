// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package scrape

import "github.com/YJSN180/nico-ranking-custom-sub000/internal/models"

// Reconcile merges the HTML-sourced ranking with the list-API ranking for
// the same combination. The HTML source is the ordering authority: it is
// the only source that includes sensitive-flagged items, so its item set
// and ranks always win. Where the API source knows an item its richer
// fields replace the HTML ones wholesale, with the rank forced back to
// the HTML position and the sensitive flag kept from the HTML side. Items
// only the HTML source returned pass through as-is and come back as ids
// for search-index backfill.
func Reconcile(htmlItems, apiItems []models.Item) (merged []models.Item, missing []string) {
	byID := make(map[string]*models.Item, len(apiItems))
	for i := range apiItems {
		byID[apiItems[i].ID] = &apiItems[i]
	}

	merged = make([]models.Item, len(htmlItems))
	for i := range htmlItems {
		fromHTML := &htmlItems[i]
		rich, ok := byID[fromHTML.ID]
		if !ok {
			merged[i] = *fromHTML
			missing = append(missing, fromHTML.ID)
			continue
		}
		merged[i] = *rich
		merged[i].Rank = fromHTML.Rank
		merged[i].RequiresSensitiveMasking = fromHTML.RequiresSensitiveMasking
		enrich(&merged[i], fromHTML)
	}
	return merged, missing
}

// ApplyBackfill fills remaining gaps in items from search-API metadata,
// in place. Rank, order and the sensitive flag are never touched.
func ApplyBackfill(items []models.Item, found map[string]models.Item) {
	for i := range items {
		rich, ok := found[items[i].ID]
		if !ok {
			continue
		}
		enrich(&items[i], &rich)
	}
}

// IncompleteIDs lists items still missing counters or tags, for backfill.
func IncompleteIDs(items []models.Item) []string {
	var ids []string
	for i := range items {
		if !isComplete(&items[i]) {
			ids = append(ids, items[i].ID)
		}
	}
	return ids
}

// enrich copies fields from rich into item where item is missing them.
// Rank, position and RequiresSensitiveMasking always stay with item.
func enrich(item, rich *models.Item) {
	if item.Title == "" {
		item.Title = rich.Title
	}
	if item.ThumbURL == "" {
		item.ThumbURL = rich.ThumbURL
	}
	if item.Views == 0 && rich.Views > 0 {
		item.Views = rich.Views
	}
	if item.Comments == nil {
		item.Comments = rich.Comments
	}
	if item.Mylists == nil {
		item.Mylists = rich.Mylists
	}
	if item.Likes == nil {
		item.Likes = rich.Likes
	}
	if len(item.Tags) == 0 {
		item.Tags = rich.Tags
	}
	if item.AuthorID == "" {
		item.AuthorID = rich.AuthorID
	}
	if item.AuthorName == "" {
		item.AuthorName = rich.AuthorName
	}
	if item.AuthorIcon == "" {
		item.AuthorIcon = rich.AuthorIcon
	}
	if item.RegisteredAt == "" {
		item.RegisteredAt = rich.RegisteredAt
	}
}

func isComplete(item *models.Item) bool {
	return item.Comments != nil && item.Mylists != nil && item.Likes != nil && len(item.Tags) > 0
}
