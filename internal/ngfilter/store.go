// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package ngfilter

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/config"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/kvstore"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/logging"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models"
)

// KV is the slice of the KV client the store needs.
type KV interface {
	GetJSON(ctx context.Context, key string, out any) error
	PutJSON(ctx context.Context, key string, v any, meta *models.SnapshotMetadata) error
}

// Store loads and persists the block list. The manual list is read-only
// from this side; only the derived id list is ever written back.
type Store struct {
	kv         KV
	manualKey  string
	derivedKey string

	wg sync.WaitGroup
}

// NewStore creates a store using the configured KV keys.
func NewStore(kv KV, cfg config.NGConfig) *Store {
	return &Store{
		kv:         kv,
		manualKey:  cfg.ManualKey,
		derivedKey: cfg.DerivedKey,
	}
}

// Load reads the manual list and the derived id list and merges them. A
// missing key yields an empty list, not an error: a fresh namespace has
// neither.
func (s *Store) Load(ctx context.Context) (*models.NGList, error) {
	var list models.NGList
	if err := s.kv.GetJSON(ctx, s.manualKey, &list); err != nil {
		if !errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, err
		}
	}

	var derived []string
	if err := s.kv.GetJSON(ctx, s.derivedKey, &derived); err != nil {
		if !errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, err
		}
	}
	list.DerivedVideoIDs = derived
	return &list, nil
}

// AppendDerived unions ids into the persisted derived list.
func (s *Store) AppendDerived(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	var current []string
	if err := s.kv.GetJSON(ctx, s.derivedKey, &current); err != nil {
		if !errors.Is(err, kvstore.ErrKeyNotFound) {
			return err
		}
	}

	seen := make(map[string]struct{}, len(current)+len(ids))
	for _, id := range current {
		seen[id] = struct{}{}
	}
	added := 0
	for _, id := range ids {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			current = append(current, id)
			added++
		}
	}
	if added == 0 {
		return nil
	}
	sort.Strings(current)

	if err := s.kv.PutJSON(ctx, s.derivedKey, current, nil); err != nil {
		return err
	}
	logging.Info().Int("added", added).Int("total", len(current)).Msg("Persisted derived NG ids")
	return nil
}

// AppendDerivedAsync persists ids in the background. A failure is logged
// and otherwise dropped; filtering results never depend on it. Call Wait
// before process exit so an in-flight write can finish.
func (s *Store) AppendDerivedAsync(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.AppendDerived(ctx, ids); err != nil {
			logging.Warn().Err(err).Int("ids", len(ids)).Msg("Derived NG persistence failed")
		}
	}()
}

// Wait blocks until background persistence finishes.
func (s *Store) Wait() {
	s.wg.Wait()
}
