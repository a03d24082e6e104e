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

package dirent

import (
	"strings"

	"github.com/vexfs/vexfs/internal/fslock"
	"github.com/vexfs/vexfs/internal/inode"
	"github.com/vexfs/vexfs/internal/security"
	"github.com/vexfs/vexfs/internal/storage/alloc"
	"github.com/vexfs/vexfs/internal/storage/block"
	"github.com/vexfs/vexfs/internal/storage/cache"
	"github.com/vexfs/vexfs/internal/storage/journal"
	"github.com/vexfs/vexfs/internal/verrors"
)

// Manager is the directory & path component of spec.md §4.8, sitting
// on top of the inode manager and sharing its cache/journal/allocator.
type Manager struct {
	inodes      *inode.Manager
	cache       *cache.Cache
	jm          *journal.Manager
	alloc       *alloc.Allocator
	locks       *fslock.Manager
	sec         *security.Checker
	blockSize   int
	maxPathDepth int
}

// New constructs a Manager. maxPathDepth bounds path resolution
// (spec.md §3 "Path"); 0 selects DefaultMaxPathDepth.
func New(inodes *inode.Manager, c *cache.Cache, jm *journal.Manager, a *alloc.Allocator, locks *fslock.Manager, sec *security.Checker, blockSize int, maxPathDepth int) *Manager {
	if maxPathDepth <= 0 {
		maxPathDepth = DefaultMaxPathDepth
	}
	return &Manager{inodes: inodes, cache: c, jm: jm, alloc: a, locks: locks, sec: sec, blockSize: blockSize, maxPathDepth: maxPathDepth}
}

// readEntries loads every entry in dir's allocated data blocks.
func (m *Manager) readEntries(dir *inode.Inode) ([]Entry, error) {
	var all []Entry
	for _, bn := range dir.Direct {
		if bn == 0 {
			continue
		}
		buf, err := m.cache.Read(bn)
		if err != nil {
			return nil, err
		}
		all = append(all, decodeBlock(buf)...)
	}
	return all, nil
}

// writeEntries re-packs entries into dir's direct blocks, allocating
// additional blocks as needed, and journals the write as one
// transaction. It never shrinks an already-allocated block back to the
// free pool (directory truncation is out of scope here).
func (m *Manager) writeEntries(dir *inode.Inode, entries []Entry) error {
	var blocks [][]byte
	cur := make([]Entry, 0)
	flush := func() error {
		enc, err := encodeBlock(cur, m.blockSize)
		if err != nil {
			return err
		}
		blocks = append(blocks, enc)
		cur = cur[:0]
		return nil
	}
	for _, e := range entries {
		trial := append(append([]Entry{}, cur...), e)
		if _, err := encodeBlock(trial, m.blockSize); err != nil {
			// e does not fit alongside cur; flush cur as its own block
			// and start a fresh one with e.
			if len(cur) > 0 {
				if err := flush(); err != nil {
					return err
				}
			}
			if _, err := encodeBlock([]Entry{e}, m.blockSize); err != nil {
				return err
			}
		}
		cur = append(cur, e)
	}
	if len(cur) > 0 || len(blocks) == 0 {
		if err := flush(); err != nil {
			return err
		}
	}

	if len(blocks) > inode.DirectBlocks {
		return verrors.New(verrors.KindOutOfSpace, "directory exceeds direct-block capacity")
	}

	txn := m.jm.Begin()
	for i, enc := range blocks {
		bn := dir.Direct[i]
		if bn == 0 {
			allocated, err := m.alloc.Allocate(1, alloc.HintSequential)
			if err != nil {
				return err
			}
			dir.Direct[i] = allocated
			bn = allocated
			txn.StageBlockAlloc(bn)
		}
		txn.StageBlockWrite(bn, enc)
	}
	if err := txn.Prepare(); err != nil {
		return err
	}
	return txn.Commit(func(rec journal.Record) error {
		if rec.Kind == journal.KindBlockWrite {
			return m.cache.Write(rec.BlockNum, rec.Bytes, block.TagDirectory)
		}
		return nil
	})
}

// CreateDirectory creates a new directory named name inside parent,
// pre-populated with '.' and '..', and links it into parent. The inode
// creation, the new directory's entry block and the parent's entry block
// are each committed as a separate journal transaction; a failure after
// an earlier step has committed does not roll that step back.
func (m *Manager) CreateDirectory(parent *inode.Inode, name string, creds security.Credentials, mode uint32) (*inode.Inode, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	guard, err := m.locks.Acquire(fslock.DirectoryScope(parent.Number), fslock.TypeWrite, opOwner(creds), 0)
	if err != nil {
		return nil, err
	}
	defer guard.Unlock()

	if err := m.sec.CheckAccess(parent.UID, parent.GID, parent.Mode, creds, security.AccessWrite|security.AccessExecute); err != nil {
		return nil, err
	}
	if _, err := m.lookupLocked(parent, name); err == nil {
		return nil, verrors.New(verrors.KindAlreadyExists, "directory entry already exists").WithPath(name)
	}

	child, err := m.inodes.CreateInode(inode.TypeDirectory, mode, creds.UID, creds.GID)
	if err != nil {
		return nil, err
	}
	child.Nlink = 2 // '.' and the parent's entry

	if err := m.writeEntries(child, []Entry{
		{InodeNumber: child.Number, Name: ".", Type: TypeDirectory},
		{InodeNumber: parent.Number, Name: "..", Type: TypeDirectory},
	}); err != nil {
		return nil, err
	}

	existing, err := m.readEntries(parent)
	if err != nil {
		return nil, err
	}
	existing = append(existing, Entry{InodeNumber: child.Number, Name: name, Type: TypeDirectory})
	if err := m.writeEntries(parent, existing); err != nil {
		return nil, err
	}
	parent.Nlink++
	return child, nil
}

// CreateEntry links an already-allocated inode into parent under name
// (used by create/mknod once the inode manager has built the child).
func (m *Manager) CreateEntry(parent *inode.Inode, name string, childNumber uint64, typ Type, creds security.Credentials) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	guard, err := m.locks.Acquire(fslock.DirectoryScope(parent.Number), fslock.TypeWrite, opOwner(creds), 0)
	if err != nil {
		return err
	}
	defer guard.Unlock()

	if err := m.sec.CheckAccess(parent.UID, parent.GID, parent.Mode, creds, security.AccessWrite|security.AccessExecute); err != nil {
		return err
	}
	if _, err := m.lookupLocked(parent, name); err == nil {
		return verrors.New(verrors.KindAlreadyExists, "directory entry already exists").WithPath(name)
	}

	entries, err := m.readEntries(parent)
	if err != nil {
		return err
	}
	entries = append(entries, Entry{InodeNumber: childNumber, Name: name, Type: typ})
	return m.writeEntries(parent, entries)
}

// RemoveEntry unlinks name from parent.
func (m *Manager) RemoveEntry(parent *inode.Inode, name string, creds security.Credentials) (Entry, error) {
	guard, err := m.locks.Acquire(fslock.DirectoryScope(parent.Number), fslock.TypeWrite, opOwner(creds), 0)
	if err != nil {
		return Entry{}, err
	}
	defer guard.Unlock()

	if err := m.sec.CheckAccess(parent.UID, parent.GID, parent.Mode, creds, security.AccessWrite|security.AccessExecute); err != nil {
		return Entry{}, err
	}

	entries, err := m.readEntries(parent)
	if err != nil {
		return Entry{}, err
	}
	var removed Entry
	found := false
	kept := entries[:0]
	for _, e := range entries {
		if !found && e.Name == name {
			removed = e
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return Entry{}, verrors.New(verrors.KindNotFound, "directory entry not found").WithPath(name)
	}
	if err := m.writeEntries(parent, kept); err != nil {
		return Entry{}, err
	}
	return removed, nil
}

func (m *Manager) lookupLocked(dir *inode.Inode, name string) (Entry, error) {
	entries, err := m.readEntries(dir)
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.Name == name {
			return e, nil
		}
	}
	return Entry{}, verrors.New(verrors.KindNotFound, "directory entry not found").WithPath(name)
}

// Lookup finds name within dir, requiring execute permission on dir.
func (m *Manager) Lookup(dir *inode.Inode, name string, creds security.Credentials) (Entry, error) {
	if err := m.sec.CheckAccess(dir.UID, dir.GID, dir.Mode, creds, security.AccessExecute); err != nil {
		return Entry{}, err
	}
	return m.lookupLocked(dir, name)
}

// ReadDir lists every entry in dir, requiring read permission.
func (m *Manager) ReadDir(dir *inode.Inode, creds security.Credentials) ([]Entry, error) {
	if err := m.sec.CheckAccess(dir.UID, dir.GID, dir.Mode, creds, security.AccessRead); err != nil {
		return nil, err
	}
	return m.readEntries(dir)
}

// ResolvePath walks path left-to-right from startDir, requiring
// execute permission on every non-final directory component and
// bounding resolution depth by maxPathDepth (spec.md §4.8). It does
// not follow symlinks itself; callers detect a TypeSymlink result and
// re-resolve the link target, counting each hop against depth.
func (m *Manager) ResolvePath(startDir *inode.Inode, path string, creds security.Credentials, resolveNumber func(uint64) (*inode.Inode, error)) (Entry, error) {
	components := strings.Split(strings.Trim(path, "/"), "/")
	if len(components) > m.maxPathDepth {
		return Entry{}, verrors.New(verrors.KindInvalidArgument, "path exceeds max_path_depth")
	}

	cur := startDir
	var last Entry
	for i, name := range components {
		if name == "" {
			continue
		}
		entry, err := m.Lookup(cur, name, creds)
		if err != nil {
			return Entry{}, err
		}
		last = entry
		if i == len(components)-1 {
			break
		}
		if entry.Type != TypeDirectory {
			return Entry{}, verrors.New(verrors.KindInvalidArgument, "non-final path component is not a directory").WithPath(name)
		}
		next, err := resolveNumber(entry.InodeNumber)
		if err != nil {
			return Entry{}, err
		}
		cur = next
	}
	return last, nil
}

func opOwner(creds security.Credentials) string {
	return "uid:" + itoa(creds.UID)
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	digits := [10]byte{}
	i := len(digits)
	for v > 0 {
		i--
		digits[i] = byte('0' + v%10)
		v /= 10
	}
	return string(digits[i:])
}
