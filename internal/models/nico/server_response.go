// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

// Package nico holds the raw response shapes of the three Niconico
// upstreams. These types exist only at the extractor boundary: each field
// mirrors what the upstream actually sends, optional and alternate field
// names included, and extractors convert them to models.Item before
// returning.
package nico

// ServerResponse is the JSON document embedded in the ranking page's
// <meta name="server-response"> tag after HTML-entity decoding.
type ServerResponse struct {
	Data ServerResponseData `json:"data"`
}

type ServerResponseData struct {
	Response ServerResponseInner `json:"response"`
}

type ServerResponseInner struct {
	TeibanRanking *TeibanRanking `json:"$getTeibanRanking"`
	TrendTags     *TrendTagsNode `json:"$getTeibanRankingFeaturedKeyAndTrendTags"`
}

type TeibanRanking struct {
	Data *TeibanRankingData `json:"data"`
}

type TeibanRankingData struct {
	Items []RankedVideo `json:"items"`
}

type TrendTagsNode struct {
	Data *TrendTagsData `json:"data"`
}

type TrendTagsData struct {
	TrendTags []string `json:"trendTags"`
}

// RankedVideo is one entry of the embedded ranking list. The same shape is
// returned by the nvapi ranking endpoint, so both extractors share it.
// Owner, user and channel are alternates: user-uploaded videos carry owner
// or user, channel videos carry channel.
type RankedVideo struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Thumbnail    *Thumbnail  `json:"thumbnail"`
	Count        *VideoCount `json:"count"`
	Owner        *VideoOwner `json:"owner"`
	User         *VideoUser  `json:"user"`
	Channel      *Channel    `json:"channel"`
	Tags         []VideoTag  `json:"tags"`
	RegisteredAt string      `json:"registeredAt"`
	StartTime    string      `json:"startTime"`
	CreateTime   string      `json:"createTime"`

	RequireSensitiveMasking bool `json:"requireSensitiveMasking"`
}

type Thumbnail struct {
	URL       string `json:"url"`
	MiddleURL string `json:"middleUrl"`
	LargeURL  string `json:"largeUrl"`
}

type VideoCount struct {
	View    int64  `json:"view"`
	Comment *int64 `json:"comment"`
	Mylist  *int64 `json:"mylist"`
	Like    *int64 `json:"like"`
}

type VideoOwner struct {
	ID      FlexID `json:"id"`
	Name    string `json:"name"`
	IconURL string `json:"iconUrl"`
}

type VideoUser struct {
	ID       FlexID `json:"id"`
	Nickname string `json:"nickname"`
	IconURL  string `json:"iconUrl"`
}

type Channel struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IconURL string `json:"iconUrl"`
}

type VideoTag struct {
	Name string `json:"name"`
}
