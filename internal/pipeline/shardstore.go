// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models"
)

const shardKeyPrefix = "shard:"

// ShardRecord is one grouped run's partial result, persisted locally so
// an aggregate invocation can assemble the full snapshot after all groups
// finish.
type ShardRecord struct {
	Group     int                          `json:"group"`
	Of        int                          `json:"of"`
	UpdatedAt string                       `json:"updatedAt"`
	Genres    map[string]models.GenreEntry `json:"genres"`
}

// ShardStore persists shard records in a local BadgerDB so grouped runs
// on the same host can hand results to the aggregator without going
// through the remote KV.
type ShardStore struct {
	db *badger.DB
}

// OpenShardStore opens (or creates) the store at path.
func OpenShardStore(path string) (*ShardStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open shard store: %w", err)
	}
	return &ShardStore{db: db}, nil
}

// Close releases the underlying database.
func (s *ShardStore) Close() error {
	return s.db.Close()
}

// SaveShard writes one group's partial result, replacing any previous
// record for the same group.
func (s *ShardStore) SaveShard(rec *ShardRecord) error {
	rec.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode shard %d: %w", rec.Group, err)
	}
	key := []byte(fmt.Sprintf("%s%d", shardKeyPrefix, rec.Group))
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, raw)
	})
	if err != nil {
		return fmt.Errorf("failed to persist shard %d: %w", rec.Group, err)
	}
	return nil
}

// LoadShards reads every persisted shard record.
func (s *ShardStore) LoadShards() ([]ShardRecord, error) {
	var records []ShardRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(shardKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec ShardRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("corrupt shard record %s: %w", it.Item().Key(), err)
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Clear drops all shard records, typically after a successful aggregate
// publish.
func (s *ShardStore) Clear() error {
	return s.db.DropPrefix([]byte(shardKeyPrefix))
}

// Aggregate merges shard records into one snapshot. It requires a
// complete set: every group 1..of present exactly once and agreeing on
// the group count.
func Aggregate(records []ShardRecord, updatedAt string) (*models.Snapshot, error) {
	if len(records) == 0 {
		return nil, errors.New("no shard records to aggregate")
	}

	of := records[0].Of
	present := make(map[int]bool, len(records))
	for _, rec := range records {
		if rec.Of != of {
			return nil, fmt.Errorf("shard %d expects %d groups, shard %d expects %d",
				records[0].Group, of, rec.Group, rec.Of)
		}
		if present[rec.Group] {
			return nil, fmt.Errorf("duplicate record for shard %d", rec.Group)
		}
		present[rec.Group] = true
	}
	for g := 1; g <= of; g++ {
		if !present[g] {
			return nil, fmt.Errorf("shard %d/%d missing", g, of)
		}
	}

	snap := models.NewSnapshot(updatedAt)
	for _, rec := range records {
		for genre, entry := range rec.Genres {
			for period, pe := range entry {
				snap.Put(genre, period, pe)
			}
		}
	}
	snap.Metadata.TotalItems = snap.CountItems()
	return snap, nil
}
