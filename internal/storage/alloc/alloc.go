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

// Package alloc is the space allocator of spec.md §4.3: a bitmap per
// block group, choosing the group with the most contiguous free run
// that satisfies a request, tie-broken by lowest group index. Callers
// (the inode manager, the vector store) journal every allocate/free
// through the caller's transaction; the allocator itself only mutates
// in-memory state here and re-derives it on mount from the on-disk
// bitmap plus the journal tail — it never writes the bitmap directly.
package alloc

import (
	"math/bits"

	"github.com/vexfs/vexfs/internal/verrors"
)

// Hint names the kind of placement a caller wants. Allocate accepts it
// but does not read it.
type Hint int

const (
	HintSequential Hint = iota
	HintRandom
	HintClustered
	HintVectorAligned
)

const groupSize = 8 * 4096 // blocks tracked per group's bitmap (one 4096-byte block of bits)

// group is one block group's free-space bitmap, one bit per block
// (1 = allocated).
type group struct {
	base  uint64 // first block# this group covers
	size  uint64 // number of blocks this group covers
	words []uint64
}

func newGroup(base, size uint64) *group {
	return &group{base: base, size: size, words: make([]uint64, (size+63)/64)}
}

func (g *group) isSet(i uint64) bool {
	return g.words[i/64]&(1<<(i%64)) != 0
}

func (g *group) set(i uint64, v bool) {
	if v {
		g.words[i/64] |= 1 << (i % 64)
	} else {
		g.words[i/64] &^= 1 << (i % 64)
	}
}

// longestFreeRun scans g for the longest contiguous run of free bits,
// returning its starting offset within the group and its length.
func (g *group) longestFreeRun() (start uint64, length uint64) {
	var curStart, curLen, bestStart, bestLen uint64
	inRun := false
	for i := uint64(0); i < g.size; i++ {
		if !g.isSet(i) {
			if !inRun {
				curStart = i
				inRun = true
			}
			curLen++
		} else {
			if inRun && curLen > bestLen {
				bestStart, bestLen = curStart, curLen
			}
			curLen = 0
			inRun = false
		}
	}
	if inRun && curLen > bestLen {
		bestStart, bestLen = curStart, curLen
	}
	return bestStart, bestLen
}

func (g *group) freeCount() uint64 {
	var n uint64
	for i := uint64(0); i < g.size; i++ {
		if !g.isSet(i) {
			n++
		}
	}
	return n
}

// Allocator is the bitmap-backed free-block allocator, organized into
// fixed-size block groups.
type Allocator struct {
	groups []*group
}

// New constructs an Allocator covering [dataStart, dataStart+totalBlocks)
// with every block initially free.
func New(dataStart, totalBlocks uint64) *Allocator {
	a := &Allocator{}
	for base := dataStart; base < dataStart+totalBlocks; base += groupSize {
		size := groupSize
		if remaining := dataStart + totalBlocks - base; remaining < groupSize {
			size = int(remaining)
		}
		a.groups = append(a.groups, newGroup(base, uint64(size)))
	}
	return a
}

// MarkAllocated marks blocks in [start,start+count) allocated, used
// when reconstructing allocator state from the on-disk bitmap plus
// journal replay on mount.
func (a *Allocator) MarkAllocated(start, count uint64) {
	for bn := start; bn < start+count; bn++ {
		if g, off, ok := a.locate(bn); ok {
			g.set(off, true)
		}
	}
}

// MarkFree is the inverse of MarkAllocated.
func (a *Allocator) MarkFree(start, count uint64) {
	for bn := start; bn < start+count; bn++ {
		if g, off, ok := a.locate(bn); ok {
			g.set(off, false)
		}
	}
}

func (a *Allocator) locate(bn uint64) (*group, uint64, bool) {
	for _, g := range a.groups {
		if bn >= g.base && bn < g.base+g.size {
			return g, bn - g.base, true
		}
	}
	return nil, 0, false
}

// Allocate finds count contiguous free blocks in the group with the
// longest free run (lowest index on a tie), marks them allocated in
// memory, and returns the starting block#. hint has no effect on the
// choice. The
// caller is responsible for journaling this as a block-alloc record
// before the allocation becomes visible outside the transaction.
func (a *Allocator) Allocate(count uint64, hint Hint) (uint64, error) {
	if count == 0 {
		return 0, verrors.New(verrors.KindInvalidArgument, "allocation count must be > 0")
	}

	bestIdx := -1
	var bestStart, bestLen uint64
	for i, g := range a.groups {
		start, length := g.longestFreeRun()
		if length < count {
			continue
		}
		if bestIdx == -1 || length > bestLen {
			bestIdx, bestStart, bestLen = i, start, length
		}
	}
	if bestIdx == -1 {
		return 0, verrors.New(verrors.KindOutOfSpace, "no block group has a contiguous run satisfying the request")
	}

	g := a.groups[bestIdx]
	for i := uint64(0); i < count; i++ {
		g.set(bestStart+i, true)
	}
	return g.base + bestStart, nil
}

// Free marks count blocks starting at start as free again. The caller
// journals this as a block-free record before calling Free, consistent
// with the allocator mutating only in-memory state (spec.md §4.3).
func (a *Allocator) Free(start, count uint64) error {
	g, off, ok := a.locate(start)
	if !ok {
		return verrors.New(verrors.KindInvalidArgument, "free of block outside any group")
	}
	for i := uint64(0); i < count; i++ {
		g.set(off+i, false)
	}
	return nil
}

// Stats summarizes allocator state for statfs-style reporting.
type Stats struct {
	TotalBlocks        uint64
	FreeBlocks         uint64
	FragmentationScore int // 0-100, largest free run / total free
}

// Stats reports current free space and a 0-100 fragmentation score
// (spec.md §4.3): the largest free run across all groups divided by
// total free blocks.
func (a *Allocator) Stats() Stats {
	var total, free, bestRun uint64
	for _, g := range a.groups {
		total += g.size
		free += g.freeCount()
		if _, length := g.longestFreeRun(); length > bestRun {
			bestRun = length
		}
	}
	score := 0
	if free > 0 {
		score = int(bestRun * 100 / free)
	}
	return Stats{TotalBlocks: total, FreeBlocks: free, FragmentationScore: score}
}

// popcount counts the set (allocated) bits in words.
func popcount(words []uint64) int {
	n := 0
	for _, w := range words {
		n += bits.OnesCount64(w)
	}
	return n
}
