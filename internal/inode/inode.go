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

// Package inode is the inode manager of spec.md §4.6: allocation,
// caching, and write-back of per-file metadata through the journal.
// Grounded on the teacher's fs/inode package (an in-memory inode
// wrapping a GCS object's metadata with a lookup-count discipline),
// generalized from "GCS object generation" to "on-disk inode record"
// with direct/indirect block pointers and journaled persistence.
package inode

import (
	"time"

	"github.com/vexfs/vexfs/internal/verrors"
)

// FileType is spec.md §3 "Inode" file-type tag.
type FileType int

const (
	TypeRegular FileType = iota
	TypeDirectory
	TypeSymlink
	TypeVectorFile
)

// RootInode is the well-known number of the filesystem root directory;
// it can never be deallocated (spec.md §4.6).
const RootInode = 1

// DirectBlocks is the size of the inode's direct block pointer array.
const DirectBlocks = 12

// Inode is the in-memory, cacheable representation of spec.md §3
// "Inode". Direct/indirect pointers address data blocks; Dirty and
// RefCount track write-back and eviction eligibility.
type Inode struct {
	Number uint64
	Type   FileType
	Mode   uint32
	UID    uint32
	GID    uint32
	Size   uint64

	ATime time.Time
	MTime time.Time
	CTime time.Time

	Nlink      uint32
	BlockCount uint64

	Direct          [DirectBlocks]uint64
	SingleIndirect  uint64
	DoubleIndirect  uint64
	TripleIndirect  uint64

	Dirty    bool
	RefCount int32
}

// CanEvict reports whether the inode may be dropped from cache:
// ref-count = 0 and not dirty (spec.md §4.6).
func (i *Inode) CanEvict() bool { return i.RefCount == 0 && !i.Dirty }

// CanDelete reports whether the inode may be deallocated: nlink = 0
// AND ref-count = 0 (spec.md §3 "Inode" invariants).
func (i *Inode) CanDelete() bool { return i.Nlink == 0 && i.RefCount == 0 }

// validateDirectCapacity checks the size ≤ sum-of-reachable-blocks invariant at
// the direct-block level (indirect chains are sized by the caller
// when they allocate indirect blocks).
func (i *Inode) validateDirectCapacity(blockSize uint32) error {
	maxDirect := uint64(DirectBlocks) * uint64(blockSize)
	if i.SingleIndirect == 0 && i.DoubleIndirect == 0 && i.TripleIndirect == 0 && i.Size > maxDirect {
		return verrors.New(verrors.KindInvalidArgument, "size exceeds direct-block capacity with no indirect blocks allocated")
	}
	return nil
}
