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

// Package store implements spec.md §4.9's vector storage operations
// (store_vector, get_vector, delete_vector, get_file_vectors,
// get_vector_files) on top of internal/vector/record's wire format and
// internal/vector/compress's strategy table, sharing the block cache,
// journal, and allocator with the rest of the core (spec.md §5 "each
// resource has exactly one owner"). Grounded conceptually on
// other_examples/054f03b6_shibudb-org-shibudb-server's vector engine
// (WAL-backed vector persistence keyed by an in-memory index), adapted
// away from its FAISS index dependency — ANN search lives in
// internal/hnsw, not here.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/vexfs/vexfs/clock"
	"github.com/vexfs/vexfs/common"
	"github.com/vexfs/vexfs/internal/stackmon"
	"github.com/vexfs/vexfs/internal/storage/alloc"
	"github.com/vexfs/vexfs/internal/storage/block"
	"github.com/vexfs/vexfs/internal/storage/cache"
	"github.com/vexfs/vexfs/internal/storage/journal"
	"github.com/vexfs/vexfs/internal/vector/compress"
	"github.com/vexfs/vexfs/internal/vector/record"
	"github.com/vexfs/vexfs/internal/verrors"
)

// stackCostBytes is the estimated frame cost of one store/get/delete
// call, registered with the stack monitor per spec.md §4.9's
// stack-safety contract.
const stackCostBytes = 768

// Location records where a vector's encoded record lives on disk.
type Location struct {
	BlockStart uint64
	BlockCount int
}

// Manager implements the vector storage operations of spec.md §4.9.
type Manager struct {
	cache     *cache.Cache
	jm        *journal.Manager
	alloc     *alloc.Allocator
	stack     *stackmon.Monitor
	metrics   common.MetricHandle
	clock     clock.Clock
	blockSize int

	mu           sync.RWMutex
	locations    map[uint64]Location
	fileInodeOf  map[uint64]uint64
	vectorsOf    map[uint64]map[uint64]struct{}
	nextVectorID uint64
}

// New constructs a Manager sharing c/jm/a with the rest of the mount.
func New(c *cache.Cache, jm *journal.Manager, a *alloc.Allocator, sm *stackmon.Monitor, metrics common.MetricHandle, clk clock.Clock, blockSize int) *Manager {
	return &Manager{
		cache:       c,
		jm:          jm,
		alloc:       a,
		stack:       sm,
		metrics:     metrics,
		clock:       clk,
		blockSize:   blockSize,
		locations:   make(map[uint64]Location),
		fileInodeOf: make(map[uint64]uint64),
		vectorsOf:   make(map[uint64]map[uint64]struct{}),
	}
}

func (m *Manager) report(ctx context.Context, op string, start time.Time, err error) {
	if m.metrics == nil {
		return
	}
	attrs := []common.MetricAttr{{Key: common.FSOpKey, Value: op}}
	m.metrics.OpsCount(ctx, 1, attrs)
	m.metrics.OpsLatency(ctx, float64(m.clock.Now().Sub(start).Milliseconds()), attrs)
	if err != nil {
		m.metrics.OpsErrorCount(ctx, 1, attrs)
	}
}

// StoreVector encodes floats as a vector record, picks a compression
// strategy (or uses the caller's override via forceKind when >=0),
// and journals the write as one transaction. A vectorID of 0 requests
// auto-assignment.
func (m *Manager) StoreVector(ctx context.Context, fileInode, vectorID uint64, floats []float32, dtype record.DType, forceKind record.Compression) (uint64, error) {
	start := m.clock.Now()
	guard, err := m.stack.Enter(common.OpStoreVector, stackCostBytes)
	if err != nil {
		return 0, err
	}
	defer guard.Exit()

	if err := record.ValidateDimensions(len(floats)); err != nil {
		m.report(ctx, common.OpStoreVector, start, err)
		return 0, err
	}

	m.mu.Lock()
	if vectorID == 0 {
		m.nextVectorID++
		vectorID = m.nextVectorID
	} else if vectorID > m.nextVectorID {
		m.nextVectorID = vectorID
	}
	m.mu.Unlock()

	kind := forceKind
	if kind < record.CompressionNone || kind > record.CompressionSparse {
		kind = compress.SelectOptimal(floats)
	}
	body := compress.Compress(kind, floats)

	now := m.clock.Now()
	hdr := record.Header{
		Magic:         record.Magic,
		Version:       record.CurrentVersion,
		VectorID:      vectorID,
		FileInode:     fileInode,
		DType:         dtype,
		Compression:   kind,
		Dimensions:    uint32(len(floats)),
		OriginalBytes: uint32(len(floats) * dtype.BytesPerElement()),
		StoredBytes:   uint32(len(body)),
		CreatedAt:     now,
		ModifiedAt:    now,
	}
	buf := record.Record{Header: hdr, Body: body}.Encode()

	blockCount := (len(buf) + m.blockSize - 1) / m.blockSize
	if blockCount == 0 {
		blockCount = 1
	}
	bn, err := m.alloc.Allocate(uint64(blockCount), alloc.HintVectorAligned)
	if err != nil {
		m.report(ctx, common.OpStoreVector, start, err)
		return 0, err
	}

	txn := m.jm.Begin()
	txn.StageBlockAlloc(bn)
	for i := 0; i < blockCount; i++ {
		chunk := make([]byte, m.blockSize)
		lo := i * m.blockSize
		hi := lo + m.blockSize
		if hi > len(buf) {
			hi = len(buf)
		}
		copy(chunk, buf[lo:hi])
		txn.StageBlockWrite(bn+uint64(i), chunk)
	}
	if err := txn.Prepare(); err != nil {
		m.report(ctx, common.OpStoreVector, start, err)
		return 0, err
	}
	if err := txn.Commit(func(rec journal.Record) error {
		if rec.Kind == journal.KindBlockWrite {
			return m.cache.Write(rec.BlockNum, rec.Bytes, block.TagVectorData)
		}
		return nil
	}); err != nil {
		m.report(ctx, common.OpStoreVector, start, err)
		return 0, err
	}

	m.mu.Lock()
	m.locations[vectorID] = Location{BlockStart: bn, BlockCount: blockCount}
	m.fileInodeOf[vectorID] = fileInode
	if m.vectorsOf[fileInode] == nil {
		m.vectorsOf[fileInode] = make(map[uint64]struct{})
	}
	m.vectorsOf[fileInode][vectorID] = struct{}{}
	m.mu.Unlock()

	m.report(ctx, common.OpStoreVector, start, nil)
	return vectorID, nil
}

// GetVector reads back and decompresses the vector stored under
// vectorID.
func (m *Manager) GetVector(ctx context.Context, vectorID uint64) ([]float32, record.Header, error) {
	start := m.clock.Now()
	guard, err := m.stack.Enter(common.OpGetVector, stackCostBytes)
	if err != nil {
		return nil, record.Header{}, err
	}
	defer guard.Exit()

	m.mu.RLock()
	loc, ok := m.locations[vectorID]
	m.mu.RUnlock()
	if !ok {
		err := verrors.New(verrors.KindNotFound, "vector not found")
		m.report(ctx, common.OpGetVector, start, err)
		return nil, record.Header{}, err
	}

	buf := make([]byte, 0, loc.BlockCount*m.blockSize)
	for i := 0; i < loc.BlockCount; i++ {
		chunk, err := m.cache.Read(loc.BlockStart + uint64(i))
		if err != nil {
			m.report(ctx, common.OpGetVector, start, err)
			return nil, record.Header{}, err
		}
		buf = append(buf, chunk...)
	}

	rec, err := record.Decode(buf)
	if err != nil {
		m.report(ctx, common.OpGetVector, start, err)
		return nil, record.Header{}, err
	}
	floats := compress.Decompress(rec.Header.Compression, rec.Body, int(rec.Header.Dimensions))
	m.report(ctx, common.OpGetVector, start, nil)
	return floats, rec.Header, nil
}

// DeleteVector frees a vector's storage and removes it from the
// file/vector indexes. Freeing the underlying blocks happens only
// once the block-free records are durably committed.
func (m *Manager) DeleteVector(ctx context.Context, vectorID uint64) error {
	start := m.clock.Now()
	guard, err := m.stack.Enter(common.OpDeleteVector, stackCostBytes)
	if err != nil {
		return err
	}
	defer guard.Exit()

	m.mu.Lock()
	loc, ok := m.locations[vectorID]
	fileInode := m.fileInodeOf[vectorID]
	m.mu.Unlock()
	if !ok {
		err := verrors.New(verrors.KindNotFound, "vector not found")
		m.report(ctx, common.OpDeleteVector, start, err)
		return err
	}

	txn := m.jm.Begin()
	for i := 0; i < loc.BlockCount; i++ {
		txn.StageBlockFree(loc.BlockStart + uint64(i))
	}
	if err := txn.Prepare(); err != nil {
		m.report(ctx, common.OpDeleteVector, start, err)
		return err
	}
	if err := txn.Commit(func(rec journal.Record) error {
		if rec.Kind == journal.KindBlockFree {
			return m.alloc.Free(rec.BlockNum, 1)
		}
		return nil
	}); err != nil {
		m.report(ctx, common.OpDeleteVector, start, err)
		return err
	}

	m.mu.Lock()
	delete(m.locations, vectorID)
	delete(m.fileInodeOf, vectorID)
	if set := m.vectorsOf[fileInode]; set != nil {
		delete(set, vectorID)
		if len(set) == 0 {
			delete(m.vectorsOf, fileInode)
		}
	}
	m.mu.Unlock()

	m.report(ctx, common.OpDeleteVector, start, nil)
	return nil
}

// GetFileVectors returns every vector id stored against fileInode.
func (m *Manager) GetFileVectors(fileInode uint64) []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.vectorsOf[fileInode]
	out := make([]uint64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// GetVectorFile returns the file inode a vector was stored against.
func (m *Manager) GetVectorFile(vectorID uint64) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inode, ok := m.fileInodeOf[vectorID]
	if !ok {
		return 0, verrors.New(verrors.KindNotFound, "vector not found")
	}
	return inode, nil
}
