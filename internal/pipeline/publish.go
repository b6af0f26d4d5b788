// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package pipeline

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/config"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/kvstore"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/logging"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models"
)

// Publisher writes a finished snapshot to the remote KV: per-combination
// slice keys through the paced batch writer, then the whole snapshot
// under its well-known key. Only the whole-snapshot write is fatal; a
// missed slice key degrades one serving path, a missed snapshot would
// silently pretend the run succeeded.
type Publisher struct {
	kv          *kvstore.Client
	writer      *kvstore.BatchWriter
	snapshotKey string
}

// NewPublisher wires a publisher over the KV client.
func NewPublisher(kv *kvstore.Client, cfg config.KVConfig) *Publisher {
	return &Publisher{
		kv:          kv,
		writer:      kvstore.NewBatchWriter(kv, cfg),
		snapshotKey: cfg.SnapshotKey,
	}
}

// Publish pushes snap to the store. The returned error, when non-nil,
// means the authoritative snapshot key was NOT updated.
func (p *Publisher) Publish(ctx context.Context, snap *models.Snapshot) error {
	for genre, entry := range snap.Genres {
		for period, pe := range entry {
			if pe == nil || pe.FetchError != "" {
				continue
			}
			p.queueEntry(genre, period, pe)
		}
	}
	if err := p.writer.Flush(ctx); err != nil {
		logging.Warn().Err(err).Msg("Some per-combination writes failed")
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	meta := snap.Metadata
	if err := p.kv.Put(ctx, p.snapshotKey, raw, &meta); err != nil {
		return fmt.Errorf("snapshot publish failed: %w", err)
	}

	logging.Info().
		Str("key", p.snapshotKey).
		Int("total_items", snap.Metadata.TotalItems).
		Msg("Snapshot published")
	return nil
}

func (p *Publisher) queueEntry(genre string, period models.Period, pe *models.PeriodEntry) {
	p.queueSlice(kvstore.CombinationKey(genre, period, ""), pe.Items)
	for tag, items := range pe.Tags {
		p.queueSlice(kvstore.CombinationKey(genre, period, tag), items)
	}
}

// queueSlice encodes one combination slice onto the batch writer. An
// encode failure skips the key, leaving the previously published slice
// live under it.
func (p *Publisher) queueSlice(key string, items any) {
	raw, err := json.Marshal(items)
	if err != nil {
		logging.Error().Err(err).Str("key", key).Msg("Slice encode failed, key not queued")
		return
	}
	p.writer.Queue(key, raw, nil)
}
