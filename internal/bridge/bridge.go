// Copyright 2025 VexFS Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bridge keeps the HNSW index (internal/hnsw) eventually
// consistent with vector storage (internal/vector/store) per spec.md
// §4.11: inserts/deletes in storage enqueue graph operations here,
// and the bridge flushes them lazily, on demand, or in caller-sized
// batches, guaranteeing at most one concurrent sync worker and never
// silently dropping a pending operation. Grounded on the teacher's
// gcsfuse internal/gcsx staging-then-flush pattern (buffer local
// writes, flush to the backing store under a single-flighted
// operation), retargeted from GCS object flushes to graph mutations.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/vexfs/vexfs/clock"
	"github.com/vexfs/vexfs/common"
	"github.com/vexfs/vexfs/internal/hnsw"
	"github.com/vexfs/vexfs/internal/logger"
	"github.com/vexfs/vexfs/internal/verrors"
)

// OpKind is the kind of graph mutation a pending operation replays.
type OpKind int

const (
	OpInsert OpKind = iota
	OpDelete
)

// PendingOp is one not-yet-applied graph mutation.
type PendingOp struct {
	Kind        OpKind
	VectorID    uint64
	Vector      []float32
	Attempts    int
	NextRetryAt time.Time
}

// Status is the bridge's point-in-time sync status (spec.md §4.11).
type Status struct {
	PendingOperations int
	SyncErrors        int
	IsSynchronized    bool
}

// Statistics accumulates lifetime counters for get_bridge_statistics.
type Statistics struct {
	TotalSynced int64
	TotalErrors int64
	TotalQueued int64
}

const (
	defaultBackoffBase = 100 * time.Millisecond
	defaultBackoffMax  = 30 * time.Second
)

// Bridge synchronizes one HNSW graph against its vector store.
type Bridge struct {
	graph *hnsw.Graph
	clock clock.Clock

	metrics     common.MetricHandle
	backoffBase time.Duration
	backoffMax  time.Duration

	mu         sync.Mutex // guards queue/stats and single-flights flushes
	queue      []PendingOp
	syncErrors int
	stats      Statistics
}

// New constructs a Bridge flushing onto g.
func New(g *hnsw.Graph, clk clock.Clock, metrics common.MetricHandle) *Bridge {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Bridge{
		graph:       g,
		clock:       clk,
		metrics:     metrics,
		backoffBase: defaultBackoffBase,
		backoffMax:  defaultBackoffMax,
	}
}

// Enqueue records a graph mutation to apply on the next sync. It
// never drops the operation: the queue is unbounded in memory and
// bounded only by the caller's own backpressure (spec.md §4.11 "never
// drops a pending operation silently").
func (b *Bridge) Enqueue(op PendingOp) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, op)
	b.stats.TotalQueued++
}

// NeedsSync reports whether any operation is waiting to be applied.
func (b *Bridge) NeedsSync() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue) > 0
}

// GetSyncStatus returns the current Status.
func (b *Bridge) GetSyncStatus() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		PendingOperations: len(b.queue),
		SyncErrors:        b.syncErrors,
		IsSynchronized:    len(b.queue) == 0,
	}
}

// GetBridgeStatistics returns lifetime counters.
func (b *Bridge) GetBridgeStatistics() Statistics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// TriggerLazySync attempts one non-blocking flush pass: if another
// sync is already in flight it returns immediately without error,
// matching "flush lazily on read pressure" rather than forcing
// callers to wait.
func (b *Bridge) TriggerLazySync(ctx context.Context) error {
	if !b.mu.TryLock() {
		return nil
	}
	defer b.mu.Unlock()
	_, err := b.flushLocked(ctx, len(b.queue))
	return err
}

// ForceSync blocks until every currently pending operation has been
// applied or has failed and been re-queued for retry.
func (b *Bridge) ForceSync(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.flushLocked(ctx, len(b.queue))
	return err
}

// BatchSync applies up to n pending operations, blocking until the
// sync worker slot is free.
func (b *Bridge) BatchSync(ctx context.Context, n int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked(ctx, n)
}

// flushLocked must be called with mu held. It applies up to limit
// operations whose retry backoff has elapsed, leaving still-backing-
// off operations at the front of the queue for a later pass.
func (b *Bridge) flushLocked(ctx context.Context, limit int) (int, error) {
	if limit <= 0 || len(b.queue) == 0 {
		return 0, nil
	}
	now := b.clock.Now()
	var remaining []PendingOp
	applied := 0
	var firstErr error

	for _, op := range b.queue {
		if applied >= limit || now.Before(op.NextRetryAt) {
			remaining = append(remaining, op)
			continue
		}
		var err error
		switch op.Kind {
		case OpDelete:
			err = b.graph.Delete(ctx, op.VectorID)
			if err != nil && verrors.KindOf(err) == verrors.KindNotFound {
				err = nil // already gone; treat as applied
			}
		default:
			err = b.graph.Insert(ctx, op.VectorID, op.Vector)
			if err != nil && verrors.KindOf(err) == verrors.KindAlreadyExists {
				err = nil // already applied
			}
		}
		if err != nil {
			op.Attempts++
			op.NextRetryAt = now.Add(b.backoff(op.Attempts))
			b.syncErrors++
			b.stats.TotalErrors++
			logger.Warnf("bridge: sync of vector %d failed (attempt %d): %v", op.VectorID, op.Attempts, err)
			remaining = append(remaining, op)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		applied++
		b.stats.TotalSynced++
	}
	b.queue = remaining
	if b.metrics != nil {
		b.metrics.OpsCount(ctx, int64(applied), []common.MetricAttr{{Key: common.FSOpKey, Value: "BridgeSync"}})
	}
	return applied, firstErr
}

func (b *Bridge) backoff(attempts int) time.Duration {
	d := b.backoffBase
	for i := 1; i < attempts && d < b.backoffMax; i++ {
		d *= 2
	}
	if d > b.backoffMax {
		d = b.backoffMax
	}
	return d
}
