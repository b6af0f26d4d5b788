// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/config"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/logging"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models"
)

// Putter is the write surface of Client, split out so tests can record
// writes without a server.
type Putter interface {
	Put(ctx context.Context, key string, value []byte, meta *models.SnapshotMetadata) error
}

type pendingWrite struct {
	key   string
	value []byte
	meta  *models.SnapshotMetadata
}

// BatchWriter queues KV writes during a run and flushes them with per-key
// pacing: the KV service allows one write per second to any single key,
// and a run may update the same combination key more than once.
type BatchWriter struct {
	store      Putter
	interval   time.Duration
	retries    int
	retryDelay time.Duration

	mu       sync.Mutex
	queue    []pendingWrite
	limiters map[string]*rate.Limiter
}

// NewBatchWriter creates a writer flushing through store.
func NewBatchWriter(store Putter, cfg config.KVConfig) *BatchWriter {
	interval := cfg.WriteInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &BatchWriter{
		store:      store,
		interval:   interval,
		retries:    cfg.WriteRetries,
		retryDelay: cfg.RetryDelay,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Queue records a write for the next Flush. Later writes to the same key
// replace earlier ones still in the queue.
func (w *BatchWriter) Queue(key string, value []byte, meta *models.SnapshotMetadata) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.queue {
		if w.queue[i].key == key {
			w.queue[i].value = value
			w.queue[i].meta = meta
			return
		}
	}
	w.queue = append(w.queue, pendingWrite{key: key, value: value, meta: meta})
}

// Pending returns the number of queued writes.
func (w *BatchWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Flush writes everything queued, in queue order, pacing per key and
// retrying transient failures. Writes that fail permanently are dropped
// from the queue and reported in the joined error; the rest still go out.
// When the pacing wait itself fails (context cancelled) the unwritten
// remainder goes back on the queue for a later flush.
func (w *BatchWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	batch := w.queue
	w.queue = nil
	w.mu.Unlock()

	var errs []error
	for i, pw := range batch {
		if err := w.limiter(pw.key).Wait(ctx); err != nil {
			w.mu.Lock()
			w.queue = append(batch[i:], w.queue...)
			w.mu.Unlock()
			errs = append(errs, fmt.Errorf("flush stopped at %q, %d writes re-queued: %w", pw.key, len(batch)-i, err))
			break
		}
		if err := w.writeWithRetry(ctx, pw); err != nil {
			errs = append(errs, fmt.Errorf("flush %q: %w", pw.key, err))
		}
	}
	return errors.Join(errs...)
}

func (w *BatchWriter) writeWithRetry(ctx context.Context, pw pendingWrite) error {
	var err error
	for attempt := 0; attempt <= w.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.retryDelay * time.Duration(attempt)):
			}
			logging.Debug().Str("key", pw.key).Int("attempt", attempt).Msg("Retrying KV write")
		}
		err = w.store.Put(ctx, pw.key, pw.value, pw.meta)
		if err == nil {
			return nil
		}
		var se *StoreError
		if errors.As(err, &se) && !se.Transient() {
			return err
		}
	}
	return err
}

func (w *BatchWriter) limiter(key string) *rate.Limiter {
	w.mu.Lock()
	defer w.mu.Unlock()
	lim, ok := w.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(w.interval), 1)
		w.limiters[key] = lim
	}
	return lim
}
