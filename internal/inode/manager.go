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

package inode

import (
	"container/list"
	"sync"
	"time"

	"github.com/vexfs/vexfs/clock"
	"github.com/vexfs/vexfs/internal/storage/alloc"
	"github.com/vexfs/vexfs/internal/storage/block"
	"github.com/vexfs/vexfs/internal/storage/cache"
	"github.com/vexfs/vexfs/internal/storage/journal"
	"github.com/vexfs/vexfs/internal/storage/layout"
	"github.com/vexfs/vexfs/internal/verrors"
)

// Manager is the inode manager of spec.md §4.6: alloc/free, a bounded
// cache, and write-back of every mutation through the journal.
type Manager struct {
	sb    *layout.Superblock
	cache *cache.Cache
	jm    *journal.Manager
	alloc *alloc.Allocator
	clock clock.Clock

	mu        sync.Mutex
	cached    map[uint64]*entry
	lru       *list.List
	capacity  int
	freeList  []uint64
	nextInode uint64
}

type entry struct {
	inode *Inode
	elem  *list.Element
}

// New constructs a Manager over sb/cache/jm/alloc, with cacheCapacity
// cached inodes before CanEvict entries are dropped.
func New(sb *layout.Superblock, c *cache.Cache, jm *journal.Manager, a *alloc.Allocator, clk clock.Clock, cacheCapacity int) *Manager {
	return &Manager{
		sb:        sb,
		cache:     c,
		jm:        jm,
		alloc:     a,
		clock:     clk,
		cached:    make(map[uint64]*entry),
		lru:       list.New(),
		capacity:  cacheCapacity,
		nextInode: RootInode + 1,
	}
}

func (m *Manager) blockAndOffset(number uint64) (uint64, uint64) {
	perBlock := m.sb.InodesPerBlock()
	idx := number - 1
	return m.sb.InodeTableStart + idx/perBlock, (idx % perBlock) * layout.InodeSize
}

// allocateNumber returns the next inode number to use: a number popped
// from the free list, or next_inode (spec.md §4.6).
func (m *Manager) allocateNumber() uint64 {
	if n := len(m.freeList); n > 0 {
		num := m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		return num
	}
	num := m.nextInode
	m.nextInode++
	return num
}

// CreateInode allocates a fresh inode of the given type/mode/uid/gid,
// journals its initial on-disk record as one transaction, and returns
// a cached handle with ref-count 1.
func (m *Manager) CreateInode(typ FileType, mode, uid, gid uint32) (*Inode, error) {
	m.mu.Lock()
	number := m.allocateNumber()
	m.mu.Unlock()

	now := m.clock.Now()
	ino := &Inode{
		Number: number, Type: typ, Mode: mode, UID: uid, GID: gid,
		ATime: now, MTime: now, CTime: now, Nlink: 1, RefCount: 1,
	}

	bn, off := m.blockAndOffset(number)
	if err := m.writeInodeJournaled(ino, bn, off); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.insertLocked(ino)
	m.mu.Unlock()
	return ino, nil
}

func (m *Manager) writeInodeJournaled(ino *Inode, bn, off uint64) error {
	existing, err := m.cache.Read(bn)
	if err != nil {
		return err
	}
	merged := append([]byte{}, existing...)
	copy(merged[off:], ino.Encode())

	txn := m.jm.Begin()
	txn.StageBlockWrite(bn, merged)
	if err := txn.Prepare(); err != nil {
		return err
	}
	return txn.Commit(func(rec journal.Record) error {
		return m.cache.Write(rec.BlockNum, rec.Bytes, block.TagInodeTable)
	})
}

func (m *Manager) insertLocked(ino *Inode) {
	if len(m.cached) >= m.capacity {
		m.evictOneLocked()
	}
	e := &entry{inode: ino}
	e.elem = m.lru.PushFront(e)
	m.cached[ino.Number] = e
}

func (m *Manager) evictOneLocked() {
	for el := m.lru.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry)
		if e.inode.CanEvict() {
			m.lru.Remove(el)
			delete(m.cached, e.inode.Number)
			return
		}
	}
}

func (m *Manager) load(number uint64) (*Inode, error) {
	bn, off := m.blockAndOffset(number)
	buf, err := m.cache.Read(bn)
	if err != nil {
		return nil, err
	}
	if int(off)+layout.InodeSize > len(buf) {
		return nil, verrors.New(verrors.KindCorruptedData, "inode offset out of block bounds")
	}
	return Decode(buf[off : off+layout.InodeSize])
}

// GetInode returns a cached handle for number, loading it from the
// device on a miss, and increments its ref-count.
func (m *Manager) GetInode(number uint64) (*Inode, error) {
	m.mu.Lock()
	if e, ok := m.cached[number]; ok {
		e.inode.RefCount++
		m.lru.MoveToFront(e.elem)
		m.mu.Unlock()
		return e.inode, nil
	}
	m.mu.Unlock()

	ino, err := m.load(number)
	if err != nil {
		return nil, err
	}
	ino.RefCount = 1

	m.mu.Lock()
	m.insertLocked(ino)
	m.mu.Unlock()
	return ino, nil
}

// GetInodeMut is GetInode but marks the inode dirty, since the caller
// intends to mutate and eventually persist it via Sync.
func (m *Manager) GetInodeMut(number uint64) (*Inode, error) {
	ino, err := m.GetInode(number)
	if err != nil {
		return nil, err
	}
	ino.Dirty = true
	return ino, nil
}

// PutInode releases the caller's reference. An inode with ref-count 0
// and Dirty false becomes eligible for eviction on the next insert.
func (m *Manager) PutInode(ino *Inode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ino.RefCount > 0 {
		ino.RefCount--
	}
}

// DeallocateInode rejects the root inode, requires nlink = 0 and
// ref-count = 0, and pushes number onto the free list (spec.md §4.6).
func (m *Manager) DeallocateInode(number uint64) error {
	if number == RootInode {
		return verrors.New(verrors.KindInvalidArgument, "cannot deallocate the root inode")
	}

	m.mu.Lock()
	e, cached := m.cached[number]
	m.mu.Unlock()

	var ino *Inode
	if cached {
		ino = e.inode
	} else {
		var err error
		ino, err = m.load(number)
		if err != nil {
			return err
		}
	}
	if !ino.CanDelete() {
		return verrors.New(verrors.KindInvalidArgument, "inode still referenced or linked")
	}

	m.mu.Lock()
	if cached {
		m.lru.Remove(e.elem)
		delete(m.cached, number)
	}
	m.freeList = append(m.freeList, number)
	m.mu.Unlock()
	return nil
}

// Sync flushes every dirty cached inode through the journal to the
// device and clears their dirty bits.
func (m *Manager) Sync() error {
	m.mu.Lock()
	dirty := make([]*Inode, 0)
	for _, e := range m.cached {
		if e.inode.Dirty {
			dirty = append(dirty, e.inode)
		}
	}
	m.mu.Unlock()

	for _, ino := range dirty {
		ino.MTime = m.clock.Now()
		bn, off := m.blockAndOffset(ino.Number)
		if err := m.writeInodeJournaled(ino, bn, off); err != nil {
			return err
		}
		ino.Dirty = false
	}
	return nil
}

// touchAccessTime is used by readers to update atime without marking
// the inode dirty for write-back purposes beyond the next Sync.
func touchAccessTime(i *Inode, now time.Time) { i.ATime = now }
