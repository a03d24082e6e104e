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

// Package vfsshim translates between internal/vfsops's core-native
// request/response types and github.com/jacobsa/fuse/fuseops's wire
// types (spec.md §6 "EXTERNAL INTERFACES"). It is the narrow adapter
// spec.md §1 calls out as the one out-of-scope collaborator (the FUSE
// mount loop) this repository still pays the cost of modeling: Server
// embeds fuseutil.NotImplementedFileSystem and overrides the subset of
// operations SPEC_FULL.md names, exactly as the teacher's fs.fileSystem
// does, so the (out-of-scope) mount loop has a concrete, typed contract
// to drive and every un-named operation (xattrs, hardlinks, rename)
// falls back to ENOSYS rather than needing a stub here.
//
// Grounded on the teacher's fs/fs.go, which performs this same
// translation between fuseops.*Op structs and its own inode package:
// every op carries its context via op.Context() rather than a separate
// parameter, and credentials are a single mount-wide uid/gid (the
// pinned fuseops in this tree predates per-request Uid/Gid), so Server
// is configured with one (uid, gid) pair at construction time, exactly
// as the teacher's Config.Uid/Config.Gid are.
package vfsshim

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/vexfs/vexfs/internal/dirent"
	"github.com/vexfs/vexfs/internal/inode"
	"github.com/vexfs/vexfs/internal/opctx"
	"github.com/vexfs/vexfs/internal/panichandler"
	"github.com/vexfs/vexfs/internal/verrors"
	"github.com/vexfs/vexfs/internal/vfsops"
)

// Server adapts a vfsops.FileSystem to jacobsa/fuse's fuseops wire
// contract. One Server is constructed per mount; it carries no state
// of its own beyond the core FileSystem, the panic guard used to turn
// an operation panic into a recorded, recovered EIO rather than a
// process crash (spec.md §4.13), and the mount's configured uid/gid.
type Server struct {
	fuseutil.NotImplementedFileSystem

	core   *vfsops.FileSystem
	panics *panichandler.Registry
	uid    uint32
	gid    uint32
}

// New constructs a Server wrapping core, authorizing every request as
// (uid, gid) the way the mount was configured.
func New(core *vfsops.FileSystem, panics *panichandler.Registry, uid, gid uint32) *Server {
	if panics == nil {
		panics = panichandler.New()
	}
	return &Server{core: core, panics: panics, uid: uid, gid: gid}
}

// toErrno converts a vfsops/verrors error into the syscall.Errno the
// fuseops wire contract expects as an operation's returned error.
func toErrno(err error) error {
	if err == nil {
		return nil
	}
	return syscall.Errno(verrors.Errno(err))
}

// opCtx builds an *opctx.OperationContext from an op's own context
// (returned by its Context() method) plus the mount's configured
// uid/gid, returning its cancel func for the caller to defer. opKind
// is tagged with a random correlation id so repeated calls of the same
// kind (e.g. many "lookup"s in flight) can still be told apart in logs
// and in verrors.VexfsError.WithOpID.
func (s *Server) opCtx(parent context.Context, opKind string) (*opctx.OperationContext, context.CancelFunc) {
	opID := opKind + "-" + uuid.NewString()
	return opctx.New(parent, opID, opctx.User{UID: s.uid, GID: s.gid}, 0, time.Time{}, opctx.ResourceLimits{}, nil)
}

func toInodeAttrs(a vfsops.Attr) fuseops.InodeAttributes {
	mode := os.FileMode(a.Mode & 0o777)
	switch a.Type {
	case inode.TypeDirectory:
		mode |= os.ModeDir
	case inode.TypeSymlink:
		mode |= os.ModeSymlink
	}
	return fuseops.InodeAttributes{
		Size:  a.Size,
		Nlink: a.Nlink,
		Mode:  mode,
		Atime: a.Atime,
		Mtime: a.Mtime,
		Ctime: a.Ctime,
		Uid:   a.UID,
		Gid:   a.GID,
	}
}

func direntType(t dirent.Type) fuseutil.DirentType {
	switch t {
	case dirent.TypeDirectory:
		return fuseutil.DT_Directory
	case dirent.TypeSymlink:
		return fuseutil.DT_Link
	default:
		return fuseutil.DT_File
	}
}

// Init matches fuseops.InitOp: no-op, mirroring the teacher's fs.Init.
func (s *Server) Init(op *fuseops.InitOp) error {
	return nil
}

// lookupResult pairs vfsops.Lookup's return values so they can cross
// panichandler.Execute's single-return-value generic boundary.
type lookupResult struct {
	attr vfsops.Attr
	err  error
}

// LookUpInode resolves op.Name within op.Parent. It is guarded by the
// panic handler (spec.md §4.13): a panic deep in the core (e.g. a
// corrupted on-disk structure tripping an invariant) is recorded and
// turned into EIO instead of taking down the whole mount.
func (s *Server) LookUpInode(op *fuseops.LookUpInodeOp) error {
	oc, cancel := s.opCtx(op.Context(), "lookup")
	defer cancel()

	r, panicErr := panichandler.Execute(panichandler.NewGuard("LookUpInode", s.panics), func() lookupResult {
		attr, err := s.core.Lookup(oc, uint64(op.Parent), op.Name)
		return lookupResult{attr: attr, err: err}
	})
	if panicErr != nil {
		return toErrno(verrors.New(verrors.KindInternal, panicErr.Error()))
	}
	if r.err != nil {
		return toErrno(r.err)
	}
	op.Entry.Child = fuseops.InodeID(r.attr.Inode)
	op.Entry.Attributes = toInodeAttrs(r.attr)
	return nil
}

// GetInodeAttributes returns op.Inode's attributes.
func (s *Server) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) error {
	oc, cancel := s.opCtx(op.Context(), "getattr")
	defer cancel()

	attr, err := s.core.GetAttr(oc, uint64(op.Inode))
	if err != nil {
		return toErrno(err)
	}
	op.Attributes = toInodeAttrs(attr)
	return nil
}

// SetInodeAttributes applies the requested attribute changes.
func (s *Server) SetInodeAttributes(op *fuseops.SetInodeAttributesOp) error {
	oc, cancel := s.opCtx(op.Context(), "setattr")
	defer cancel()

	req := vfsops.SetAttrRequest{}
	if op.Mode != nil {
		m := uint32(*op.Mode)
		req.Mode = &m
	}
	if op.Size != nil {
		req.Size = op.Size
	}

	attr, err := s.core.SetAttr(oc, uint64(op.Inode), req)
	if err != nil {
		return toErrno(err)
	}
	op.Attributes = toInodeAttrs(attr)
	return nil
}

// ForgetInode releases op.N lookup-count references on op.Inode.
func (s *Server) ForgetInode(op *fuseops.ForgetInodeOp) error {
	oc, cancel := s.opCtx(op.Context(), "forget")
	defer cancel()
	for i := uint64(0); i < uint64(op.N); i++ {
		if err := s.core.Release(oc, uint64(op.Inode)); err != nil {
			return toErrno(err)
		}
	}
	return nil
}

// MkDir creates op.Name as a directory inside op.Parent.
func (s *Server) MkDir(op *fuseops.MkDirOp) error {
	oc, cancel := s.opCtx(op.Context(), "mkdir")
	defer cancel()

	attr, err := s.core.Mkdir(oc, uint64(op.Parent), op.Name, uint32(op.Mode))
	if err != nil {
		return toErrno(err)
	}
	op.Entry.Child = fuseops.InodeID(attr.Inode)
	op.Entry.Attributes = toInodeAttrs(attr)
	return nil
}

// MkNode creates op.Name inside op.Parent as a vector file when the
// device-mode bits request one, otherwise a regular file (spec.md §6
// "mknod" / §3 "Inode" file-type tag). The teacher has no analogue
// (GCS has no device nodes), so this override is new: a vector file is
// requested the conventional way other VexFS tooling mints one, via
// mknod with S_IFREG and the sticky bit set, since FUSE's mknod has no
// vector-specific mode bit of its own.
func (s *Server) MkNode(op *fuseops.MkNodeOp) error {
	kind := vfsops.CreateRegular
	if op.Mode&os.ModeSticky != 0 {
		kind = vfsops.CreateVectorFile
	}
	return s.createCommon(op.Context(), op.Parent, op.Name, uint32(op.Mode), &op.Entry, kind)
}

// CreateFile creates op.Name inside op.Parent as a regular file.
func (s *Server) CreateFile(op *fuseops.CreateFileOp) error {
	return s.createCommon(op.Context(), op.Parent, op.Name, uint32(op.Mode), &op.Entry, vfsops.CreateRegular)
}

func (s *Server) createCommon(ctx context.Context, parent fuseops.InodeID, name string, mode uint32, entry *fuseops.ChildInodeEntry, kind vfsops.CreateKind) error {
	oc, cancel := s.opCtx(ctx, "create")
	defer cancel()

	attr, err := s.core.Create(oc, uint64(parent), name, mode, kind)
	if err != nil {
		return toErrno(err)
	}
	entry.Child = fuseops.InodeID(attr.Inode)
	entry.Attributes = toInodeAttrs(attr)
	return nil
}

// CreateSymlink creates op.Name inside op.Parent pointing at op.Target.
func (s *Server) CreateSymlink(op *fuseops.CreateSymlinkOp) error {
	oc, cancel := s.opCtx(op.Context(), "symlink")
	defer cancel()

	attr, err := s.core.CreateSymlink(oc, uint64(op.Parent), op.Name, op.Target)
	if err != nil {
		return toErrno(err)
	}
	op.Entry.Child = fuseops.InodeID(attr.Inode)
	op.Entry.Attributes = toInodeAttrs(attr)
	return nil
}

// RmDir removes op.Name from op.Parent.
func (s *Server) RmDir(op *fuseops.RmDirOp) error {
	oc, cancel := s.opCtx(op.Context(), "rmdir")
	defer cancel()
	return toErrno(s.core.Rmdir(oc, uint64(op.Parent), op.Name))
}

// Unlink removes op.Name from op.Parent.
func (s *Server) Unlink(op *fuseops.UnlinkOp) error {
	oc, cancel := s.opCtx(op.Context(), "unlink")
	defer cancel()
	return toErrno(s.core.Unlink(oc, uint64(op.Parent), op.Name))
}

// OpenDir validates op.Inode may be opened as a directory handle.
// VexFS tracks no separate directory-handle table (spec.md §6
// "readdir" has no persistent cursor state below this boundary), so
// the handle jacobsa/fuse hands back to the kernel is simply the
// inode number itself.
func (s *Server) OpenDir(op *fuseops.OpenDirOp) error {
	oc, cancel := s.opCtx(op.Context(), "opendir")
	defer cancel()
	if err := s.core.Open(oc, uint64(op.Inode), false); err != nil {
		return toErrno(err)
	}
	op.Handle = fuseops.HandleID(op.Inode)
	return nil
}

// ReadDir serializes the directory named by op.Handle's entries
// starting at op.Offset into op.Dst using
// jacobsa/fuse/fuseutil.WriteDirent, stopping as soon as an entry no
// longer fits (the kernel re-calls with an advanced offset for the
// remainder).
func (s *Server) ReadDir(op *fuseops.ReadDirOp) error {
	oc, cancel := s.opCtx(op.Context(), "readdir")
	defer cancel()

	entries, err := s.core.ReadDir(oc, uint64(op.Handle))
	if err != nil {
		return toErrno(err)
	}

	for i := int(op.Offset); i < len(entries); i++ {
		e := entries[i]
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], fuseutil.Dirent{
			Offset: fuseops.DirOffset(i + 1),
			Inode:  fuseops.InodeID(e.Inode),
			Name:   e.Name,
			Type:   direntType(e.Type),
		})
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}

// ReleaseDirHandle matches fuseops.ReleaseDirHandleOp: nothing to do,
// since vfsops tracks no separate directory handle table.
func (s *Server) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) error {
	return nil
}

// OpenFile validates op.Inode may be opened. The pinned fuseops in
// this tree does not surface the POSIX open(2) flags on this op (the
// teacher's OpenFile likewise only sanity-checks the inode's type), so
// the access check here is read-only; WriteFile/SetInodeAttributes
// enforce write permission at the point data actually changes.
func (s *Server) OpenFile(op *fuseops.OpenFileOp) error {
	oc, cancel := s.opCtx(op.Context(), "open")
	defer cancel()
	return toErrno(s.core.Open(oc, uint64(op.Inode), false))
}

// ReadFile reads op.Size bytes from op.Inode starting at op.Offset
// into op.Data, matching the teacher's ReadFile exactly (op.Data is
// assigned the full result, not copied into a caller-owned buffer).
func (s *Server) ReadFile(op *fuseops.ReadFileOp) error {
	oc, cancel := s.opCtx(op.Context(), "read")
	defer cancel()

	data, err := s.core.Read(oc, uint64(op.Inode), op.Offset, op.Size)
	if err != nil {
		return toErrno(err)
	}
	op.Data = data
	return nil
}

// ReadSymlink returns op.Inode's link target.
func (s *Server) ReadSymlink(op *fuseops.ReadSymlinkOp) error {
	oc, cancel := s.opCtx(op.Context(), "readlink")
	defer cancel()

	data, err := s.core.Read(oc, uint64(op.Inode), 0, 1<<20)
	if err != nil {
		return toErrno(err)
	}
	op.Target = string(data)
	return nil
}

// WriteFile writes op.Data at op.Offset into op.Inode.
func (s *Server) WriteFile(op *fuseops.WriteFileOp) error {
	oc, cancel := s.opCtx(op.Context(), "write")
	defer cancel()
	_, err := s.core.Write(oc, uint64(op.Inode), op.Offset, op.Data)
	return toErrno(err)
}

// SyncFile flushes op.Inode's dirty state durably.
func (s *Server) SyncFile(op *fuseops.SyncFileOp) error {
	oc, cancel := s.opCtx(op.Context(), "fsync")
	defer cancel()
	return toErrno(s.core.Flush(oc, uint64(op.Inode)))
}

// FlushFile matches fuseops.FlushFileOp.
func (s *Server) FlushFile(op *fuseops.FlushFileOp) error {
	oc, cancel := s.opCtx(op.Context(), "flush")
	defer cancel()
	return toErrno(s.core.Flush(oc, uint64(op.Inode)))
}

// ReleaseFileHandle matches fuseops.ReleaseFileHandleOp: the last
// close of a handle. The teacher leaves this to
// fuseutil.NotImplementedFileSystem's no-op default; VexFS overrides
// it because releasing the handle must drop the inode's ref-count.
func (s *Server) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) error {
	oc, cancel := s.opCtx(op.Context(), "release")
	defer cancel()
	return toErrno(s.core.Release(oc, uint64(op.Inode)))
}

// StatFS reports aggregate filesystem usage. The teacher leaves this
// to the NotImplementedFileSystem default (GCS has no block/inode
// budget to report); VexFS overrides it since spec.md §6 "statfs" is
// in scope here.
func (s *Server) StatFS(op *fuseops.StatFSOp) error {
	oc, cancel := s.opCtx(op.Context(), "statfs")
	defer cancel()

	stats := s.core.StatFS(oc)
	op.Blocks = stats.TotalBlocks
	op.BlocksFree = stats.FreeBlocks
	op.BlocksAvailable = stats.FreeBlocks
	op.IoSize = 4096
	return nil
}

// Destroy releases any resources the Server itself owns. vfsops owns
// the durable state (via Shutdown); Destroy is a no-op hook matching
// the fuseops contract's shutdown signal.
func (s *Server) Destroy() {}
