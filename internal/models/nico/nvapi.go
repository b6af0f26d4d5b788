// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package nico

// NvapiRankingResponse is the envelope returned by
// nvapi.nicovideo.jp/v1/ranking/genre/{genre}. The embedded meta.status
// must be 200 even when the HTTP status already was.
type NvapiRankingResponse struct {
	Meta NvapiMeta        `json:"meta"`
	Data *NvapiRankingSet `json:"data"`
}

type NvapiMeta struct {
	Status       int    `json:"status"`
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type NvapiRankingSet struct {
	Items []RankedVideo `json:"items"`
}

// NvapiPopularTagsResponse is the envelope of
// nvapi.nicovideo.jp/v1/genres/{genre}/popular-tags.
type NvapiPopularTagsResponse struct {
	Meta NvapiMeta            `json:"meta"`
	Data *NvapiPopularTagsSet `json:"data"`
}

type NvapiPopularTagsSet struct {
	Tags []string `json:"tags"`
}
