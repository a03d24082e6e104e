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

package block

import (
	"fmt"
	"hash/crc32"
	"sync"

	"github.com/vexfs/vexfs/internal/verrors"
)

// Tag classifies what a block currently holds (spec.md §3 "Block").
type Tag int

const (
	TagFree Tag = iota
	TagSuperblock
	TagInodeTable
	TagData
	TagDirectory
	TagIndirect
	TagJournal
	TagBitmap
	TagVectorIndex
	TagVectorData
)

// meta is the per-block bookkeeping record the manager keeps for every
// block it has touched since mount, bounded by maxCachedMeta entries
// (spec.md §4.1 "VEXFS_MAX_CACHED_BLOCKS").
type meta struct {
	tag   Tag
	crc32 uint32
	valid int // valid-data length in bytes
}

// Manager is the block device & block manager of spec.md §4.1: fixed-
// size block I/O with bounds checks, a bounded per-block metadata
// table, and CRC32 computed on write / verified on read.
type Manager struct {
	dev           Device
	blockSize     uint32
	sizeInBlocks  uint64
	readOnly      bool
	maxCachedMeta int

	mu       sync.Mutex
	metaLRU  []uint64 // ordered oldest -> newest, for eviction
	metaByBn map[uint64]*meta
}

// NewManager wraps dev, a Device of sizeInBlocks fixed-size blocks, as
// a Manager. maxCachedMeta bounds the per-block metadata table.
func NewManager(dev Device, blockSize uint32, sizeInBlocks uint64, readOnly bool, maxCachedMeta int) *Manager {
	if maxCachedMeta <= 0 {
		maxCachedMeta = 65536
	}
	return &Manager{
		dev:           dev,
		blockSize:     blockSize,
		sizeInBlocks:  sizeInBlocks,
		readOnly:      readOnly,
		maxCachedMeta: maxCachedMeta,
		metaByBn:      make(map[uint64]*meta),
	}
}

func (m *Manager) BlockSize() uint32      { return m.blockSize }
func (m *Manager) SizeInBlocks() uint64   { return m.sizeInBlocks }
func (m *Manager) ReadOnly() bool         { return m.readOnly }

func (m *Manager) checkBounds(start uint64, count int) error {
	if count <= 0 {
		return verrors.New(verrors.KindInvalidArgument, "block count must be > 0")
	}
	if start >= m.sizeInBlocks || start+uint64(count) > m.sizeInBlocks {
		return verrors.New(verrors.KindInvalidArgument, fmt.Sprintf("block range [%d,%d) out of bounds (size=%d)", start, start+uint64(count), m.sizeInBlocks))
	}
	return nil
}

// ReadBlocks reads count consecutive blocks starting at start, verifying
// each block's CRC32 against the recorded metadata when one exists.
func (m *Manager) ReadBlocks(start uint64, count int) ([][]byte, error) {
	if err := m.checkBounds(start, count); err != nil {
		return nil, err
	}

	buffers := make([][]byte, count)
	for i := 0; i < count; i++ {
		bn := start + uint64(i)
		buf := make([]byte, m.blockSize)
		if _, err := m.dev.ReadAt(buf, int64(bn)*int64(m.blockSize)); err != nil {
			return nil, verrors.Wrap(verrors.KindIO, err, fmt.Sprintf("reading block %d", bn))
		}

		m.mu.Lock()
		if md, ok := m.metaByBn[bn]; ok {
			if crc32.ChecksumIEEE(buf[:md.valid]) != md.crc32 {
				m.mu.Unlock()
				return nil, verrors.New(verrors.KindCorruptedData, fmt.Sprintf("checksum mismatch on block %d", bn)).WithInode(0)
			}
		}
		m.mu.Unlock()

		buffers[i] = buf
	}
	return buffers, nil
}

// WriteBlocks writes buffers to consecutive blocks starting at start,
// computing and recording each block's CRC32, and tagging each block
// for the bounded metadata table.
func (m *Manager) WriteBlocks(start uint64, buffers [][]byte, tag Tag) error {
	if m.readOnly {
		return verrors.New(verrors.KindInvalidArgument, "write to read-only device")
	}
	if err := m.checkBounds(start, len(buffers)); err != nil {
		return err
	}

	for i, buf := range buffers {
		if len(buf) > int(m.blockSize) {
			return verrors.New(verrors.KindInvalidArgument, "buffer larger than block size")
		}
		bn := start + uint64(i)
		padded := buf
		if len(padded) < int(m.blockSize) {
			padded = make([]byte, m.blockSize)
			copy(padded, buf)
		}
		if _, err := m.dev.WriteAt(padded, int64(bn)*int64(m.blockSize)); err != nil {
			return verrors.Wrap(verrors.KindIO, err, fmt.Sprintf("writing block %d", bn))
		}
		m.recordMeta(bn, tag, crc32.ChecksumIEEE(padded[:len(buf)]), len(buf))
	}
	return nil
}

func (m *Manager) recordMeta(bn uint64, tag Tag, crc uint32, valid int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.metaByBn[bn]; !exists {
		if len(m.metaLRU) >= m.maxCachedMeta {
			oldest := m.metaLRU[0]
			m.metaLRU = m.metaLRU[1:]
			delete(m.metaByBn, oldest)
		}
		m.metaLRU = append(m.metaLRU, bn)
	}
	m.metaByBn[bn] = &meta{tag: tag, crc32: crc, valid: valid}
}

// TagOf reports the recorded tag for bn, if the manager's bounded
// metadata table still holds an entry for it.
func (m *Manager) TagOf(bn uint64) (Tag, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	md, ok := m.metaByBn[bn]
	if !ok {
		return TagFree, false
	}
	return md.tag, true
}

// Flush forces any OS-buffered writes to the backing device to reach
// stable storage.
func (m *Manager) Flush() error {
	if err := m.dev.Sync(); err != nil {
		return verrors.Wrap(verrors.KindIO, err, "flushing block device")
	}
	return nil
}

// Close flushes and releases the backing device.
func (m *Manager) Close() error {
	_ = m.Flush()
	return m.dev.Close()
}
