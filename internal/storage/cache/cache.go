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

// Package cache is the bounded block cache of spec.md §4.2: a map from
// block# to {bytes, dirty, pin count, last-use} sitting over
// internal/storage/block's Manager, evicting unpinned clean entries
// LRU-first. Grounded on the teacher's internal/lrucache (an
// invariant-checked, capacity-bounded LRU keyed by string) generalized
// to a uint64 block# key with the dirty/pin bookkeeping the spec's
// write-back mode requires.
package cache

import (
	"container/list"
	"sync"

	"github.com/vexfs/vexfs/internal/storage/block"
	"github.com/vexfs/vexfs/internal/verrors"
)

// Mode selects whether writes reach the device synchronously.
type Mode int

const (
	// WriteThrough means every write reaches the device before Write
	// returns success (spec.md §4.2 and the write_through config key).
	WriteThrough Mode = iota
	// WriteBack keeps dirty blocks in the cache until Sync(); eviction
	// never selects a dirty block.
	WriteBack
)

type entry struct {
	bn      uint64
	bytes   []byte
	tag     block.Tag
	dirty   bool
	pinned  int
	elem    *list.Element
}

// Cache is a bounded, LRU-evicting block cache over a block.Manager.
type Cache struct {
	mgr      *block.Manager
	capacity int // in blocks
	mode     Mode

	mu      sync.Mutex
	entries map[uint64]*entry
	lru     *list.List // front = most recently used
}

// New constructs a Cache of the given block capacity over mgr.
func New(mgr *block.Manager, capacityBlocks int, mode Mode) *Cache {
	return &Cache{
		mgr:      mgr,
		capacity: capacityBlocks,
		mode:     mode,
		entries:  make(map[uint64]*entry),
		lru:      list.New(),
	}
}

// Pin marks bn as in-use so it is never selected for eviction until
// Unpin is called the same number of times.
func (c *Cache) Pin(bn uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[bn]; ok {
		e.pinned++
	}
}

// Unpin reverses one Pin call.
func (c *Cache) Unpin(bn uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[bn]; ok && e.pinned > 0 {
		e.pinned--
	}
}

// Read returns the cached bytes for bn, loading through mgr on a miss.
// A block returned here is always byte-identical to the last successful
// Write on that block# (spec.md §4.2 invariant).
func (c *Cache) Read(bn uint64) ([]byte, error) {
	c.mu.Lock()
	if e, ok := c.entries[bn]; ok {
		c.lru.MoveToFront(e.elem)
		out := make([]byte, len(e.bytes))
		copy(out, e.bytes)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	bufs, err := c.mgr.ReadBlocks(bn, 1)
	if err != nil {
		return nil, err
	}
	c.insert(bn, bufs[0], block.TagData, false)
	return bufs[0], nil
}

// Write stores data for bn in the cache. In WriteThrough mode the
// block reaches the device before Write returns; in WriteBack mode it
// is marked dirty and stays cached until Sync writes it out.
func (c *Cache) Write(bn uint64, data []byte, tag block.Tag) error {
	if c.mode == WriteThrough {
		if err := c.mgr.WriteBlocks(bn, [][]byte{data}, tag); err != nil {
			return err
		}
		c.insert(bn, data, tag, false)
		return nil
	}
	c.insert(bn, data, tag, true)
	return nil
}

func (c *Cache) insert(bn uint64, data []byte, tag block.Tag, dirty bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)

	if e, ok := c.entries[bn]; ok {
		e.bytes = buf
		e.tag = tag
		e.dirty = e.dirty || dirty
		c.lru.MoveToFront(e.elem)
		return
	}

	e := &entry{bn: bn, bytes: buf, tag: tag, dirty: dirty}
	e.elem = c.lru.PushFront(e)
	c.entries[bn] = e
	c.evictLocked()
}

// evictLocked drops unpinned, clean entries LRU-first until the cache
// is back within capacity. Dirty entries are never evicted directly;
// Sync must flush them first (spec.md §4.2).
func (c *Cache) evictLocked() {
	for len(c.entries) > c.capacity {
		victim := c.evictionCandidateLocked()
		if victim == nil {
			return // everything remaining is pinned or dirty; over capacity is allowed
		}
		c.lru.Remove(victim.elem)
		delete(c.entries, victim.bn)
	}
}

func (c *Cache) evictionCandidateLocked() *entry {
	for el := c.lru.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry)
		if e.pinned == 0 && !e.dirty {
			return e
		}
	}
	return nil
}

// Sync flushes every dirty entry to the device through the journal-
// aware write path (the caller supplies writeThrough, typically the
// journal's checkpoint step), then clears the dirty bit and retries
// eviction.
func (c *Cache) Sync(writeThrough func(bn uint64, data []byte, tag block.Tag) error) error {
	c.mu.Lock()
	dirty := make([]*entry, 0)
	for _, e := range c.entries {
		if e.dirty {
			dirty = append(dirty, e)
		}
	}
	c.mu.Unlock()

	for _, e := range dirty {
		if err := writeThrough(e.bn, e.bytes, e.tag); err != nil {
			return verrors.Wrap(verrors.KindIO, err, "syncing dirty cache entry")
		}
		c.mu.Lock()
		e.dirty = false
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.evictLocked()
	c.mu.Unlock()
	return nil
}

// Len reports the number of entries currently cached, for diagnostics
// and tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
