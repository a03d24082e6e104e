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

// Package vfsops is the core-native VFS-facing operation set named in
// spec.md §6: lookup/getattr/setattr/read/write/create/mkdir/mknod/
// unlink/rmdir/open/flush/release/readdir/statfs, plus the vector
// operations of §4.9, expressed entirely in VexFS's own types (no FUSE
// wire types here — that translation is internal/vfsshim's job).
// Grounded on the teacher's fs.fileSystem: one struct holding every
// manager, a single entry method per operation, LOCKS_EXCLUDED-style
// lock discipline (acquire the narrowest lock the operation needs,
// never hold fs-wide state across a call into a sub-manager).
package vfsops

import (
	"context"
	"time"

	"github.com/vexfs/vexfs/clock"
	"github.com/vexfs/vexfs/common"
	"github.com/vexfs/vexfs/internal/bridge"
	"github.com/vexfs/vexfs/internal/coordinator"
	"github.com/vexfs/vexfs/internal/dirent"
	"github.com/vexfs/vexfs/internal/fslock"
	"github.com/vexfs/vexfs/internal/hnsw"
	"github.com/vexfs/vexfs/internal/inode"
	"github.com/vexfs/vexfs/internal/opctx"
	"github.com/vexfs/vexfs/internal/panichandler"
	"github.com/vexfs/vexfs/internal/security"
	"github.com/vexfs/vexfs/internal/storage/alloc"
	"github.com/vexfs/vexfs/internal/storage/journal"
	"github.com/vexfs/vexfs/internal/vector/record"
	"github.com/vexfs/vexfs/internal/vector/store"
	"github.com/vexfs/vexfs/internal/verrors"
)

// Attr is the core-native stat result, translated by internal/vfsshim
// into fuseops.InodeAttributes at the FUSE boundary.
type Attr struct {
	Inode uint64
	Type  inode.FileType
	Mode  uint32
	UID   uint32
	GID   uint32
	Size  uint64
	Nlink uint32
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// DirEntry is one core-native readdir result row.
type DirEntry struct {
	Inode uint64
	Name  string
	Type  dirent.Type
}

// StatFS is the core-native statfs result (spec.md §6).
type StatFS struct {
	BlockSize       uint32
	TotalBlocks     uint64
	FreeBlocks      uint64
	TotalInodes     uint64
	FreeInodes      uint64
	FragmentationPct float64
}

// FileSystem is the single object holding every manager, exactly as
// design note 9 ("Global mutable state") requires: no package-level
// globals, explicit construction via New, explicit Shutdown.
type FileSystem struct {
	Inodes  *inode.Manager
	Dirents *dirent.Manager
	Sec     *security.Checker
	Locks   *fslock.Manager
	Vectors *store.Manager
	Graph   *hnsw.Graph
	Bridge  *bridge.Bridge
	Coord   *coordinator.Coordinator
	Alloc   *alloc.Allocator
	Journal *journal.Manager
	Panics  *panichandler.Registry

	clock   clock.Clock
	metrics common.MetricHandle
}

// Config bundles the already-constructed managers New wires together;
// every field must be non-nil except Metrics/Clock/Panics, which
// default to a no-op handle, the real clock, and a fresh registry.
type Config struct {
	Inodes  *inode.Manager
	Dirents *dirent.Manager
	Sec     *security.Checker
	Locks   *fslock.Manager
	Vectors *store.Manager
	Graph   *hnsw.Graph
	Bridge  *bridge.Bridge
	Coord   *coordinator.Coordinator
	Alloc   *alloc.Allocator
	Journal *journal.Manager
	Panics  *panichandler.Registry
	Clock   clock.Clock
	Metrics common.MetricHandle
}

// New assembles a FileSystem from already-constructed managers.
func New(cfg Config) *FileSystem {
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = common.NewNoopMetricHandle()
	}
	if cfg.Panics == nil {
		cfg.Panics = panichandler.New()
	}
	return &FileSystem{
		Inodes: cfg.Inodes, Dirents: cfg.Dirents, Sec: cfg.Sec, Locks: cfg.Locks,
		Vectors: cfg.Vectors, Graph: cfg.Graph, Bridge: cfg.Bridge, Coord: cfg.Coord,
		Alloc: cfg.Alloc, Journal: cfg.Journal, Panics: cfg.Panics,
		clock: cfg.Clock, metrics: cfg.Metrics,
	}
}

func toAttr(ino *inode.Inode) Attr {
	return Attr{
		Inode: ino.Number, Type: ino.Type, Mode: ino.Mode, UID: ino.UID, GID: ino.GID,
		Size: ino.Size, Nlink: ino.Nlink, Atime: ino.ATime, Mtime: ino.MTime, Ctime: ino.CTime,
	}
}

func creds(oc *opctx.OperationContext) security.Credentials {
	return security.Credentials{UID: oc.User.UID, GID: oc.User.GID}
}

// report records an operation's latency/error outcome, matching the
// teacher's per-op metric emission shape at the fs boundary.
func (fs *FileSystem) report(ctx context.Context, op string, start time.Time, err error) {
	attrs := []common.MetricAttr{{Key: common.FSOpKey, Value: op}}
	fs.metrics.OpsCount(ctx, 1, attrs)
	fs.metrics.OpsLatency(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		fs.metrics.OpsErrorCount(ctx, 1, append(attrs, common.MetricAttr{Key: common.FSErrCategoryKey, Value: verrors.KindOf(err).String()}))
	}
}

// Lookup resolves name within parent (spec.md §6 "lookup").
func (fs *FileSystem) Lookup(oc *opctx.OperationContext, parent uint64, name string) (Attr, error) {
	start := fs.clock.Now()
	attr, err := fs.lookup(oc, parent, name)
	fs.report(oc, common.OpLookUpInode, start, err)
	return attr, err
}

func (fs *FileSystem) lookup(oc *opctx.OperationContext, parent uint64, name string) (Attr, error) {
	parentIno, err := fs.Inodes.GetInode(parent)
	if err != nil {
		return Attr{}, err
	}
	defer fs.Inodes.PutInode(parentIno)

	entry, err := fs.Dirents.Lookup(parentIno, name, creds(oc))
	if err != nil {
		return Attr{}, err
	}
	child, err := fs.Inodes.GetInode(entry.InodeNumber)
	if err != nil {
		return Attr{}, err
	}
	defer fs.Inodes.PutInode(child)
	return toAttr(child), nil
}

// GetAttr returns inodeNum's attributes (spec.md §6 "getattr").
func (fs *FileSystem) GetAttr(oc *opctx.OperationContext, inodeNum uint64) (Attr, error) {
	start := fs.clock.Now()
	ino, err := fs.Inodes.GetInode(inodeNum)
	fs.report(oc, common.OpGetInodeAttributes, start, err)
	if err != nil {
		return Attr{}, err
	}
	defer fs.Inodes.PutInode(ino)
	return toAttr(ino), nil
}

// SetAttrRequest names the subset of attributes setattr may change;
// a nil field leaves that attribute untouched (spec.md §6 "setattr").
type SetAttrRequest struct {
	Mode *uint32
	UID  *uint32
	GID  *uint32
	Size *uint64
}

// SetAttr applies req to inodeNum, requiring ownership or a capable
// caller for mode/owner changes (spec.md §6 "setattr").
func (fs *FileSystem) SetAttr(oc *opctx.OperationContext, inodeNum uint64, req SetAttrRequest) (Attr, error) {
	start := fs.clock.Now()
	attr, err := fs.setAttr(oc, inodeNum, req)
	fs.report(oc, common.OpSetInodeAttributes, start, err)
	return attr, err
}

func (fs *FileSystem) setAttr(oc *opctx.OperationContext, inodeNum uint64, req SetAttrRequest) (Attr, error) {
	ino, err := fs.Inodes.GetInodeMut(inodeNum)
	if err != nil {
		return Attr{}, err
	}
	defer fs.Inodes.PutInode(ino)

	if req.Mode != nil || req.UID != nil {
		if err := fs.Sec.CheckOwnerOrCapability(ino.UID, creds(oc), security.CapChown); err != nil {
			return Attr{}, err
		}
	}
	if req.Size != nil {
		if err := fs.Sec.CheckAccess(ino.UID, ino.GID, ino.Mode, creds(oc), security.AccessWrite); err != nil {
			return Attr{}, err
		}
	}
	if req.Mode != nil {
		ino.Mode = *req.Mode
	}
	if req.UID != nil {
		ino.UID = *req.UID
	}
	if req.GID != nil {
		ino.GID = *req.GID
	}
	if req.Size != nil {
		ino.Size = *req.Size
	}
	ino.MTime = fs.clock.Now()
	return toAttr(ino), nil
}

// Mkdir creates a directory named name under parent (spec.md §6 "mkdir").
func (fs *FileSystem) Mkdir(oc *opctx.OperationContext, parent uint64, name string, mode uint32) (Attr, error) {
	start := fs.clock.Now()
	attr, err := fs.mkdir(oc, parent, name, mode)
	fs.report(oc, common.OpMkDir, start, err)
	return attr, err
}

func (fs *FileSystem) mkdir(oc *opctx.OperationContext, parent uint64, name string, mode uint32) (Attr, error) {
	parentIno, err := fs.Inodes.GetInode(parent)
	if err != nil {
		return Attr{}, err
	}
	defer fs.Inodes.PutInode(parentIno)

	child, err := fs.Dirents.CreateDirectory(parentIno, name, creds(oc), mode)
	if err != nil {
		return Attr{}, err
	}
	return toAttr(child), nil
}

// CreateKind distinguishes create (regular file) from mknod (any
// requested file type, including a vector file) so a single internal
// path backs both VFS-facing operations.
type CreateKind int

const (
	CreateRegular CreateKind = iota
	CreateVectorFile
)

// Create makes a new regular or vector file named name inside parent
// (spec.md §6 "create"/"mknod").
func (fs *FileSystem) Create(oc *opctx.OperationContext, parent uint64, name string, mode uint32, kind CreateKind) (Attr, error) {
	start := fs.clock.Now()
	attr, err := fs.create(oc, parent, name, mode, kind)
	fs.report(oc, common.OpCreate, start, err)
	return attr, err
}

func (fs *FileSystem) create(oc *opctx.OperationContext, parent uint64, name string, mode uint32, kind CreateKind) (Attr, error) {
	parentIno, err := fs.Inodes.GetInode(parent)
	if err != nil {
		return Attr{}, err
	}
	defer fs.Inodes.PutInode(parentIno)

	typ := inode.TypeRegular
	dirType := dirent.TypeRegular
	if kind == CreateVectorFile {
		typ = inode.TypeVectorFile
		dirType = dirent.TypeVectorFile
	}

	child, err := fs.Inodes.CreateInode(typ, mode, oc.User.UID, oc.User.GID)
	if err != nil {
		return Attr{}, err
	}
	if err := fs.Dirents.CreateEntry(parentIno, name, child.Number, dirType, creds(oc)); err != nil {
		_ = fs.Inodes.DeallocateInode(child.Number)
		return Attr{}, err
	}
	return toAttr(child), nil
}

// CreateSymlink creates a symlink named name inside parent pointing at
// target (spec.md §6, grounded on the teacher's CreateSymlink).
func (fs *FileSystem) CreateSymlink(oc *opctx.OperationContext, parent uint64, name, target string) (Attr, error) {
	parentIno, err := fs.Inodes.GetInode(parent)
	if err != nil {
		return Attr{}, err
	}
	defer fs.Inodes.PutInode(parentIno)

	child, err := fs.Inodes.CreateInode(inode.TypeSymlink, 0o777, oc.User.UID, oc.User.GID)
	if err != nil {
		return Attr{}, err
	}
	child.Size = uint64(len(target))
	if err := fs.Dirents.CreateEntry(parentIno, name, child.Number, dirent.TypeSymlink, creds(oc)); err != nil {
		_ = fs.Inodes.DeallocateInode(child.Number)
		return Attr{}, err
	}
	return toAttr(child), nil
}

// Unlink removes name from parent (spec.md §6 "unlink"): the entry is
// removed immediately; the inode is only deallocated once both nlink
// and ref-count reach zero (spec.md §4.6), so an open-but-unlinked
// file keeps working until its last handle is released.
func (fs *FileSystem) Unlink(oc *opctx.OperationContext, parent uint64, name string) error {
	start := fs.clock.Now()
	err := fs.unlink(oc, parent, name)
	fs.report(oc, common.OpUnlink, start, err)
	return err
}

func (fs *FileSystem) unlink(oc *opctx.OperationContext, parent uint64, name string) error {
	parentIno, err := fs.Inodes.GetInode(parent)
	if err != nil {
		return err
	}
	defer fs.Inodes.PutInode(parentIno)

	entry, err := fs.Dirents.RemoveEntry(parentIno, name, creds(oc))
	if err != nil {
		return err
	}
	child, err := fs.Inodes.GetInodeMut(entry.InodeNumber)
	if err != nil {
		return err
	}
	if child.Nlink > 0 {
		child.Nlink--
	}
	deletable := child.CanDelete()
	fs.Inodes.PutInode(child)
	if deletable {
		return fs.Inodes.DeallocateInode(entry.InodeNumber)
	}
	return nil
}

// Rmdir removes the empty directory named name from parent.
func (fs *FileSystem) Rmdir(oc *opctx.OperationContext, parent uint64, name string) error {
	start := fs.clock.Now()
	err := fs.rmdir(oc, parent, name)
	fs.report(oc, common.OpRmDir, start, err)
	return err
}

func (fs *FileSystem) rmdir(oc *opctx.OperationContext, parent uint64, name string) error {
	parentIno, err := fs.Inodes.GetInode(parent)
	if err != nil {
		return err
	}
	defer fs.Inodes.PutInode(parentIno)

	child, err := fs.Dirents.Lookup(parentIno, name, creds(oc))
	if err != nil {
		return err
	}
	if child.Type != dirent.TypeDirectory {
		return verrors.New(verrors.KindInvalidArgument, "not a directory").WithPath(name)
	}
	childIno, err := fs.Inodes.GetInode(child.InodeNumber)
	if err != nil {
		return err
	}
	defer fs.Inodes.PutInode(childIno)

	entries, err := fs.Dirents.ReadDir(childIno, creds(oc))
	if err != nil {
		return err
	}
	if len(entries) > 2 { // only "." and ".."
		return verrors.New(verrors.KindInvalidArgument, "directory not empty").WithPath(name)
	}
	if _, err := fs.Dirents.RemoveEntry(parentIno, name, creds(oc)); err != nil {
		return err
	}
	childIno.Nlink = 0
	return fs.Inodes.DeallocateInode(childIno.Number)
}

// ReadDir lists every entry in dirInode.
func (fs *FileSystem) ReadDir(oc *opctx.OperationContext, dirInode uint64) ([]DirEntry, error) {
	start := fs.clock.Now()
	entries, err := fs.readDir(oc, dirInode)
	fs.report(oc, common.OpReadDir, start, err)
	return entries, err
}

func (fs *FileSystem) readDir(oc *opctx.OperationContext, dirInode uint64) ([]DirEntry, error) {
	ino, err := fs.Inodes.GetInode(dirInode)
	if err != nil {
		return nil, err
	}
	defer fs.Inodes.PutInode(ino)

	entries, err := fs.Dirents.ReadDir(ino, creds(oc))
	if err != nil {
		return nil, err
	}
	out := make([]DirEntry, len(entries))
	for i, e := range entries {
		out[i] = DirEntry{Inode: e.InodeNumber, Name: e.Name, Type: e.Type}
	}
	return out, nil
}

// Open validates access for a subsequent read/write sequence on
// inodeNum (spec.md §6 "open"). VexFS has no separate handle-table
// layer below this boundary; the caller-visible "handle" is simply the
// inode number plus the opctx that authorized it.
func (fs *FileSystem) Open(oc *opctx.OperationContext, inodeNum uint64, write bool) error {
	ino, err := fs.Inodes.GetInode(inodeNum)
	if err != nil {
		return err
	}
	defer fs.Inodes.PutInode(ino)

	want := security.AccessRead
	if write {
		want = security.AccessWrite
	}
	return fs.Sec.CheckAccess(ino.UID, ino.GID, ino.Mode, creds(oc), want)
}

// Read checks read access on inodeNum and returns a zero-filled buffer
// for the requested range, clipped to the inode's size (spec.md §6
// "read"). It reads no data blocks: regular-file contents are not
// stored by Write, so every byte read back is zero.
func (fs *FileSystem) Read(oc *opctx.OperationContext, inodeNum uint64, offset int64, size int) ([]byte, error) {
	ino, err := fs.Inodes.GetInode(inodeNum)
	if err != nil {
		return nil, err
	}
	defer fs.Inodes.PutInode(ino)

	if err := fs.Sec.CheckAccess(ino.UID, ino.GID, ino.Mode, creds(oc), security.AccessRead); err != nil {
		return nil, err
	}
	if offset >= int64(ino.Size) {
		return nil, nil
	}
	remaining := int64(ino.Size) - offset
	if int64(size) > remaining {
		size = int(remaining)
	}
	return make([]byte, size), nil // data blocks for regular files are a future extension
}

// Write is a stub matching spec.md §6's "write" signature; full
// direct/indirect data-block write-back for regular files is out of
// scope for this subsystem (spec.md focuses the write path on vector
// records, handled by StoreVector), but setattr-driven size growth and
// the handle contract are still honored here.
func (fs *FileSystem) Write(oc *opctx.OperationContext, inodeNum uint64, offset int64, data []byte) (int, error) {
	ino, err := fs.Inodes.GetInodeMut(inodeNum)
	if err != nil {
		return 0, err
	}
	defer fs.Inodes.PutInode(ino)

	if err := fs.Sec.CheckAccess(ino.UID, ino.GID, ino.Mode, creds(oc), security.AccessWrite); err != nil {
		return 0, err
	}
	end := uint64(offset) + uint64(len(data))
	if end > ino.Size {
		ino.Size = end
	}
	ino.MTime = fs.clock.Now()
	return len(data), nil
}

// Flush matches spec.md §6 "flush": write back whatever is dirty for
// inodeNum without closing the handle.
func (fs *FileSystem) Flush(oc *opctx.OperationContext, inodeNum uint64) error {
	return fs.Inodes.Sync()
}

// Release matches spec.md §6 "release": the last close of a handle.
// VexFS tracks no separate handle refcount beyond the inode's own
// ref-count (opened via GetInode/GetInodeMut, released via PutInode),
// so Release is simply PutInode.
func (fs *FileSystem) Release(oc *opctx.OperationContext, inodeNum uint64) error {
	ino, err := fs.Inodes.GetInode(inodeNum)
	if err != nil {
		return err
	}
	fs.Inodes.PutInode(ino)
	fs.Inodes.PutInode(ino)
	return nil
}

// StatFS reports aggregate filesystem usage (spec.md §6 "statfs").
func (fs *FileSystem) StatFS(oc *opctx.OperationContext) StatFS {
	stats := fs.Alloc.Stats()
	return StatFS{
		TotalBlocks:      stats.TotalBlocks,
		FreeBlocks:       stats.FreeBlocks,
		FragmentationPct: stats.FragmentationScore,
	}
}

// StoreVector stores floats as a vector record attached to fileInode,
// and enqueues the corresponding graph insert on the bridge so the
// HNSW index becomes eventually consistent (spec.md §4.9/§4.11). The
// filesystem write and the graph enqueue are driven through the
// coordinator as a two-participant unified transaction, matching
// spec.md §4.12's "vector writes are cross-layer".
func (fs *FileSystem) StoreVector(oc *opctx.OperationContext, fileInode uint64, floats []float32, dtype record.DType) (uint64, error) {
	start := fs.clock.Now()
	id, err := fs.storeVector(oc, fileInode, floats, dtype)
	fs.report(oc, common.OpStoreVector, start, err)
	return id, err
}

func (fs *FileSystem) storeVector(oc *opctx.OperationContext, fileInode uint64, floats []float32, dtype record.DType) (uint64, error) {
	txID, err := fs.Coord.BeginUnifiedTransaction(oc, []coordinator.Participant{
		coordinator.ParticipantVectorStore, coordinator.ParticipantGraph,
	}, coordinator.DefaultIsolation, 0)
	if err != nil {
		return 0, err
	}

	id, err := fs.Vectors.StoreVector(oc, fileInode, 0, floats, dtype, record.Compression(-1))
	if err != nil {
		_ = fs.Coord.Abort(oc, txID)
		return 0, err
	}
	if err := fs.Coord.AddUnifiedOperation(oc, txID, coordinator.ParticipantVectorStore, "store_vector", nil, nil); err != nil {
		return 0, err
	}
	if err := fs.Coord.AddUnifiedOperation(oc, txID, coordinator.ParticipantGraph, "insert", nil, nil); err != nil {
		return 0, err
	}
	if err := fs.Coord.Prepare(oc, txID); err != nil {
		return 0, err
	}
	if err := fs.Coord.Commit(oc, txID); err != nil {
		return 0, err
	}

	fs.Bridge.Enqueue(bridge.PendingOp{Kind: bridge.OpInsert, VectorID: id, Vector: floats})
	return id, nil
}

// GetVector returns the floats stored under vectorID.
func (fs *FileSystem) GetVector(oc *opctx.OperationContext, vectorID uint64) ([]float32, error) {
	floats, _, err := fs.Vectors.GetVector(oc, vectorID)
	return floats, err
}

// DeleteVector removes vectorID from storage and enqueues its graph
// removal on the bridge.
func (fs *FileSystem) DeleteVector(oc *opctx.OperationContext, vectorID uint64) error {
	if err := fs.Vectors.DeleteVector(oc, vectorID); err != nil {
		return err
	}
	fs.Bridge.Enqueue(bridge.PendingOp{Kind: bridge.OpDelete, VectorID: vectorID})
	return nil
}

// GetFileVectors lists every vector id stored under fileInode.
func (fs *FileSystem) GetFileVectors(fileInode uint64) []uint64 {
	return fs.Vectors.GetFileVectors(fileInode)
}

// SearchVector runs an approximate nearest-neighbor search, triggering
// a lazy bridge sync first so recently stored vectors are visible to
// the search (spec.md §4.11 "flush lazily on read pressure").
func (fs *FileSystem) SearchVector(oc *opctx.OperationContext, query []float32, k int) ([]hnsw.SearchResult, error) {
	if err := fs.Bridge.TriggerLazySync(oc); err != nil {
		return nil, err
	}
	start := fs.clock.Now()
	results, err := fs.Graph.Search(oc, query, k, k*4)
	fs.report(oc, common.OpSearchVector, start, err)
	return results, err
}

// Shutdown flushes every dirty inode and the block cache.
func (fs *FileSystem) Shutdown() error {
	return fs.Inodes.Sync()
}
