// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package scrape

// AllGenres lists every ranking genre the pipeline covers, in processing
// order.
var AllGenres = []string{
	"all", "game", "anime", "vocaloid", "voicesynthesis",
	"entertainment", "music", "sing", "dance", "play",
	"commentary", "cooking", "travel", "nature", "vehicle",
	"technology", "society", "mmd", "vtuber", "radio",
	"sports", "animal", "other",
}

// genreIDMap maps genre names to the opaque identifiers the ranking page
// URLs use. The ids are fixed upstream values.
var genreIDMap = map[string]string{
	"all":            "e9uj2uks",
	"game":           "4eet3ca4",
	"anime":          "zc49b03a",
	"vocaloid":       "dshv5do5",
	"voicesynthesis": "e2bi9pt8",
	"entertainment":  "8kjl94d9",
	"music":          "wq76qdin",
	"sing":           "1ya6bnqd",
	"dance":          "6yuf530c",
	"play":           "6r5jr8nd",
	"commentary":     "v6wdx6p5",
	"cooking":        "lq8d5918",
	"travel":         "k1libcse",
	"nature":         "24aa8fkw",
	"vehicle":        "3d8zlls9",
	"technology":     "n46kcz9u",
	"society":        "lzicx0y6",
	"mmd":            "p1acxuoz",
	"vtuber":         "6mkdo4xd",
	"radio":          "oxzi6bje",
	"sports":         "4w3p65pf",
	"animal":         "ne72lua2",
	"other":          "ramuboyn",
}

// GenreID returns the opaque page identifier for a genre name. Unknown
// genres fall back to the name itself so ad hoc ids keep working.
func GenreID(genre string) string {
	if id, ok := genreIDMap[genre]; ok {
		return id
	}
	return genre
}

// IsKnownGenre reports whether the genre is in the fixed genre set.
func IsKnownGenre(genre string) bool {
	_, ok := genreIDMap[genre]
	return ok
}
