// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package ngfilter

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/config"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models"
)

func defaultNGCfg() config.NGConfig {
	return config.NGConfig{
		CaseSensitive:    false,
		NormalizeUnicode: true,
	}
}

func TestFilterBlocksByID(t *testing.T) {
	f := New(&models.NGList{
		VideoIDs:        []string{"sm1"},
		DerivedVideoIDs: []string{"sm2"},
	}, defaultNGCfg())

	kept := f.Apply([]models.Item{
		{ID: "sm1", Title: "manual block"},
		{ID: "sm2", Title: "derived block"},
		{ID: "sm3", Title: "kept"},
	})

	require.Len(t, kept, 1)
	assert.Equal(t, "sm3", kept[0].ID)
	assert.Empty(t, f.Derived(), "id blocks never derive new ids")
}

func TestFilterExactTitleDerivesID(t *testing.T) {
	f := New(&models.NGList{
		VideoTitles: []string{"spam title"},
	}, defaultNGCfg())

	kept := f.Apply([]models.Item{
		{ID: "sm1", Title: "spam title"},
		{ID: "sm2", Title: "fine title"},
	})

	require.Len(t, kept, 1)
	assert.Equal(t, "sm2", kept[0].ID)
	assert.Equal(t, []string{"sm1"}, f.Derived())
}

func TestFilterPartialTitle(t *testing.T) {
	f := New(&models.NGList{
		VideoTitlesPartial: []string{"badword"},
	}, defaultNGCfg())

	kept := f.Apply([]models.Item{
		{ID: "sm1", Title: "contains BADWORD inside"},
		{ID: "sm2", Title: "clean"},
	})

	require.Len(t, kept, 1)
	assert.Equal(t, "sm2", kept[0].ID)
	assert.Contains(t, f.Derived(), "sm1")
}

func TestFilterPartialAuthorName(t *testing.T) {
	f := New(&models.NGList{
		AuthorNamesPartial: []string{"NG_AUTHOR"},
	}, defaultNGCfg())

	kept := f.Apply([]models.Item{
		{ID: "sm1", Title: "video", AuthorName: "NG_AUTHOR_official"},
		{ID: "sm2", Title: "video", AuthorName: "someone else"},
	})

	require.Len(t, kept, 1)
	assert.Equal(t, "sm2", kept[0].ID)
	assert.Equal(t, []string{"sm1"}, f.Derived())
}

func TestFilterAuthorIDAndExactName(t *testing.T) {
	f := New(&models.NGList{
		AuthorIDs:   []string{"u99"},
		AuthorNames: []string{"blocked name"},
	}, defaultNGCfg())

	kept := f.Apply([]models.Item{
		{ID: "sm1", AuthorID: "u99", AuthorName: "whatever"},
		{ID: "sm2", AuthorID: "u1", AuthorName: "Blocked Name"},
		{ID: "sm3", AuthorID: "u2", AuthorName: "ok"},
	})

	require.Len(t, kept, 1)
	assert.Equal(t, "sm3", kept[0].ID)
	assert.ElementsMatch(t, []string{"sm1", "sm2"}, f.Derived())
}

func TestFilterNormalizesUnicode(t *testing.T) {
	// Full-width letters normalize to ASCII under NFKC.
	f := New(&models.NGList{
		VideoTitlesPartial: []string{"ＮＧワード"},
	}, defaultNGCfg())

	kept := f.Apply([]models.Item{
		{ID: "sm1", Title: "これはNGワードを含む"},
	})
	assert.Empty(t, kept)
}

func TestFilterCaseSensitiveMode(t *testing.T) {
	f := New(&models.NGList{
		VideoTitlesPartial: []string{"badword"},
	}, config.NGConfig{CaseSensitive: true, NormalizeUnicode: true})

	kept := f.Apply([]models.Item{
		{ID: "sm1", Title: "has BADWORD"},
		{ID: "sm2", Title: "has badword"},
	})

	require.Len(t, kept, 1)
	assert.Equal(t, "sm1", kept[0].ID)
}

func TestFilterPreservesOrder(t *testing.T) {
	f := New(&models.NGList{VideoIDs: []string{"sm2", "sm4"}}, defaultNGCfg())

	kept := f.Apply([]models.Item{
		{ID: "sm1"}, {ID: "sm2"}, {ID: "sm3"}, {ID: "sm4"}, {ID: "sm5"},
	})

	ids := make([]string, len(kept))
	for i, item := range kept {
		ids[i] = item.ID
	}
	assert.Equal(t, []string{"sm1", "sm3", "sm5"}, ids)
}

func TestFilterIdempotent(t *testing.T) {
	list := &models.NGList{
		VideoTitles:        []string{"spam"},
		AuthorNamesPartial: []string{"NG_AUTHOR"},
	}
	items := []models.Item{
		{ID: "sm1", Title: "spam"},
		{ID: "sm2", Title: "ok", AuthorName: "NG_AUTHOR_sub"},
		{ID: "sm3", Title: "ok"},
	}

	f := New(list, defaultNGCfg())
	first := f.Apply(items)
	second := f.Apply(items)

	assert.Equal(t, first, second, "derived ids from the run never affect its own decisions")
	require.Len(t, first, 1)
	assert.Equal(t, "sm3", first[0].ID)
}

func TestFilterConcurrentApply(t *testing.T) {
	f := New(&models.NGList{
		VideoTitlesPartial: []string{"blocked"},
	}, defaultNGCfg())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Apply([]models.Item{
				{ID: "sm1", Title: "blocked content"},
				{ID: "sm2", Title: "fine"},
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"sm1"}, f.Derived(), "derived set deduplicates across goroutines")
}
