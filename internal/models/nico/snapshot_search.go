// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package nico

import "strings"

// SnapshotSearchResponse is the envelope of the snapshot full-text search
// API (snapshot.search.nicovideo.jp/api/v2/snapshot/video/contents/search).
type SnapshotSearchResponse struct {
	Meta SnapshotSearchMeta   `json:"meta"`
	Data []SnapshotSearchItem `json:"data"`
}

type SnapshotSearchMeta struct {
	Status       int    `json:"status"`
	TotalCount   int    `json:"totalCount"`
	ID           string `json:"id"`
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// SnapshotSearchItem is one search hit. Tags come back as one
// space-joined string; author info is limited to a bare user or channel id.
type SnapshotSearchItem struct {
	ContentID      string `json:"contentId"`
	Title          string `json:"title"`
	ViewCounter    int64  `json:"viewCounter"`
	CommentCounter *int64 `json:"commentCounter"`
	MylistCounter  *int64 `json:"mylistCounter"`
	LikeCounter    *int64 `json:"likeCounter"`
	ThumbnailURL   string `json:"thumbnailUrl"`
	StartTime      string `json:"startTime"`
	Tags           string `json:"tags"`
	UserID         FlexID `json:"userId"`
	ChannelID      FlexID `json:"channelId"`
}

// SplitTags converts the space-joined tag string into a slice, dropping
// empty segments.
func (s *SnapshotSearchItem) SplitTags() []string {
	if s.Tags == "" {
		return nil
	}
	parts := strings.Split(s.Tags, " ")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
