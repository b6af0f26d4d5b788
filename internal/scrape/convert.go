// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package scrape

import (
	"strings"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models/nico"
)

// itemFromRankedVideo converts a raw upstream entry into the canonical
// item shape at the given 1-based rank.
func itemFromRankedVideo(v *nico.RankedVideo, rank int) models.Item {
	item := models.Item{
		Rank:                     rank,
		ID:                       v.ID,
		Title:                    v.Title,
		ThumbURL:                 thumbnailURL(v.Thumbnail),
		Tags:                     []string{},
		RegisteredAt:             firstNonEmpty(v.RegisteredAt, v.StartTime, v.CreateTime),
		RequiresSensitiveMasking: v.RequireSensitiveMasking,
	}

	if v.Count != nil {
		item.Views = v.Count.View
		item.Comments = v.Count.Comment
		item.Mylists = v.Count.Mylist
		item.Likes = v.Count.Like
	}

	for _, tag := range v.Tags {
		if tag.Name != "" {
			item.Tags = append(item.Tags, tag.Name)
		}
	}

	switch {
	case v.Owner != nil:
		item.AuthorID = v.Owner.ID.String()
		item.AuthorName = v.Owner.Name
		item.AuthorIcon = v.Owner.IconURL
	case v.User != nil:
		item.AuthorID = v.User.ID.String()
		item.AuthorName = v.User.Nickname
		item.AuthorIcon = v.User.IconURL
	case v.Channel != nil:
		item.AuthorID = v.Channel.ID
		item.AuthorName = v.Channel.Name
		item.AuthorIcon = v.Channel.IconURL
	}

	return item
}

// thumbnailURL picks the best available thumbnail and upgrades the
// medium-resolution ".M" suffix to ".L".
func thumbnailURL(t *nico.Thumbnail) string {
	if t == nil {
		return ""
	}
	url := firstNonEmpty(t.LargeURL, t.URL, t.MiddleURL)
	if strings.HasSuffix(url, ".M") {
		url = strings.TrimSuffix(url, ".M") + ".L"
	}
	return url
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// cleanTopicTags deduplicates and trims the raw tag strings, dropping the
// "everything" pseudo-tag the page sometimes includes, and caps the result.
func cleanTopicTags(raw []string, max int) []string {
	seen := make(map[string]struct{}, len(raw))
	tags := make([]string, 0, len(raw))
	for _, tag := range raw {
		tag = strings.TrimSpace(tag)
		if tag == "" || strings.Contains(tag, "すべて") {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
		if max > 0 && len(tags) >= max {
			break
		}
	}
	return tags
}
