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

// Package journal is the physical-redo write-ahead log of spec.md §4.5:
// a contiguous, wrap-around region whose size and location come from
// the superblock, with begin/prepare/commit/abort staging and crash
// recovery by replay. Grounded on the teacher's fs-level commitment to
// never expose partial state (fs.go's foreground-queue flush-before-ack
// pattern), generalized here into an explicit WAL since the teacher
// itself defers all durability to GCS and has no on-disk journal of its
// own to adapt directly.
package journal

import (
	"encoding/binary"
	"hash/crc32"
	"sync"

	"github.com/vexfs/vexfs/internal/storage/block"
	"github.com/vexfs/vexfs/internal/verrors"
)

// State is a transaction's lifecycle stage (spec.md §3 "Transaction").
type State int

const (
	StateInit State = iota
	StatePrepared
	StateCommitted
	StateAborted
)

const headerBlocks = 1

// header is the small fixed record at the start of the journal region
// tracking ring position across mounts.
type header struct {
	Head          uint64 // logical (non-wrapping) write offset
	Base          uint64 // logical offset of the oldest non-checkpointed record
	NextTxnID     uint64
	NextLSN       uint64
	CheckpointLSN uint64
}

func (h header) encode(blockSize uint32) []byte {
	buf := make([]byte, blockSize)
	binary.LittleEndian.PutUint64(buf[0:8], h.Head)
	binary.LittleEndian.PutUint64(buf[8:16], h.Base)
	binary.LittleEndian.PutUint64(buf[16:24], h.NextTxnID)
	binary.LittleEndian.PutUint64(buf[24:32], h.NextLSN)
	binary.LittleEndian.PutUint64(buf[32:40], h.CheckpointLSN)
	crc := crc32.ChecksumIEEE(buf[:40])
	binary.LittleEndian.PutUint32(buf[40:44], crc)
	return buf
}

func decodeHeader(buf []byte) (header, bool) {
	if len(buf) < 44 {
		return header{}, false
	}
	crc := crc32.ChecksumIEEE(buf[:40])
	if crc != binary.LittleEndian.Uint32(buf[40:44]) {
		return header{}, false
	}
	return header{
		Head:          binary.LittleEndian.Uint64(buf[0:8]),
		Base:          binary.LittleEndian.Uint64(buf[8:16]),
		NextTxnID:     binary.LittleEndian.Uint64(buf[16:24]),
		NextLSN:       binary.LittleEndian.Uint64(buf[24:32]),
		CheckpointLSN: binary.LittleEndian.Uint64(buf[32:40]),
	}, true
}

// Manager is the journal & transaction manager of spec.md §4.5.
type Manager struct {
	mgr          *block.Manager
	journalStart uint64
	dataBlocks   uint64 // journalBlocks - headerBlocks
	capacity     uint64 // dataBlocks * blockSize, in bytes

	mu   sync.Mutex
	hdr  header
	ring []byte // in-memory mirror of the on-disk ring data area
}

// Open loads (or initializes, on first mount) the journal region
// [journalStart, journalStart+journalBlocks) of mgr.
func Open(mgr *block.Manager, journalStart, journalBlocks uint64) (*Manager, error) {
	if journalBlocks <= headerBlocks {
		return nil, verrors.New(verrors.KindConfiguration, "journal region too small for header")
	}
	bs := mgr.BlockSize()
	m := &Manager{
		mgr:          mgr,
		journalStart: journalStart,
		dataBlocks:   journalBlocks - headerBlocks,
		capacity:     uint64(journalBlocks-headerBlocks) * uint64(bs),
	}

	hdrBufs, err := mgr.ReadBlocks(journalStart, headerBlocks)
	if err != nil {
		return nil, err
	}
	if h, ok := decodeHeader(hdrBufs[0]); ok {
		m.hdr = h
	} else {
		m.hdr = header{NextTxnID: 1, NextLSN: 1}
	}

	m.ring = make([]byte, m.capacity)
	for i := uint64(0); i < m.dataBlocks; i++ {
		bufs, err := mgr.ReadBlocks(journalStart+headerBlocks+i, 1)
		if err != nil {
			return nil, err
		}
		copy(m.ring[i*uint64(bs):], bufs[0])
	}
	return m, nil
}

func (m *Manager) physOf(logical uint64) uint64 { return logical % m.capacity }

// writeRing writes data into the ring at logical offset off, wrapping
// physically as needed.
func (m *Manager) writeRing(off uint64, data []byte) {
	p := m.physOf(off)
	n := copy(m.ring[p:], data)
	if n < len(data) {
		copy(m.ring, data[n:])
	}
}

func (m *Manager) readRing(off uint64, length int) []byte {
	out := make([]byte, length)
	p := m.physOf(off)
	n := copy(out, m.ring[p:])
	if n < length {
		copy(out[n:], m.ring)
	}
	return out
}

// flushBarrier persists the header and the full ring mirror to the
// device and issues a sync, standing in for the device barrier
// spec.md §4.5 requires after prepare and after commit.
func (m *Manager) flushBarrier() error {
	bs := int(m.mgr.BlockSize())
	if err := m.mgr.WriteBlocks(m.journalStart, [][]byte{m.hdr.encode(uint32(bs))}, block.TagJournal); err != nil {
		return err
	}
	bufs := make([][]byte, m.dataBlocks)
	for i := uint64(0); i < m.dataBlocks; i++ {
		bufs[i] = m.ring[i*uint64(bs) : (i+1)*uint64(bs)]
	}
	if err := m.mgr.WriteBlocks(m.journalStart+headerBlocks, bufs, block.TagJournal); err != nil {
		return err
	}
	return m.mgr.Flush()
}

// appendLocked encodes and appends rec to the ring, failing with
// JournalFull if doing so would overwrite not-yet-checkpointed data.
func (m *Manager) appendLocked(rec Record) error {
	enc := rec.encode()
	if m.hdr.Head-m.hdr.Base+uint64(len(enc)) > m.capacity {
		return verrors.New(verrors.KindJournalFull, "transaction exceeds remaining journal space")
	}
	m.writeRing(m.hdr.Head, enc)
	m.hdr.Head += uint64(len(enc))
	return nil
}

// Checkpoint reclaims journal space behind the current head, to be
// called once the cache has flushed the data area up to the given
// LSN (spec.md §4.5 "a checkpoint record is written after a successful
// full flush of the data area up to some LSN").
func (m *Manager) Checkpoint(uptoLSN uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hdr.CheckpointLSN = uptoLSN
	m.hdr.Base = m.hdr.Head
	rec := Record{LSN: m.hdr.NextLSN, Kind: KindCheckpoint}
	m.hdr.NextLSN++
	if err := m.appendLocked(rec); err != nil {
		return err
	}
	m.hdr.Base = m.hdr.Head
	return m.flushBarrier()
}
