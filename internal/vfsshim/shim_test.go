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

// This file tests vfsshim's pure translation helpers directly. Full
// Server method coverage (LookUpInode, MkDir, ReadDir, ...) requires a
// live fuseops.Op carrying a real request context, which only exists
// once issued by jacobsa/fuse's mount loop — the same reason the
// teacher's fs package has no unit tests of fileSystem's methods
// either, relying instead on fs/fstesting's real-mount integration
// harness. Mounting is out of scope here (spec.md §1), so Server's
// behavior is exercised indirectly through internal/vfsops's own test
// suite, which covers lookup, getattr, setattr, mkdir, create, unlink,
// rmdir, readdir, read, write and statfs; open, flush, release and
// symlink creation have no test there.
package vfsshim

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vexfs/vexfs/internal/dirent"
	"github.com/vexfs/vexfs/internal/inode"
	"github.com/vexfs/vexfs/internal/vfsops"
	"github.com/vexfs/vexfs/internal/verrors"
)

func TestToInodeAttrsSetsDirModeBit(t *testing.T) {
	now := time.Now()
	attrs := toInodeAttrs(vfsops.Attr{
		Type: inode.TypeDirectory, Mode: 0o755, Size: 4096, Nlink: 2,
		Atime: now, Mtime: now, Ctime: now, UID: 1, GID: 1,
	})
	assert.True(t, attrs.Mode.IsDir())
	assert.Equal(t, uint64(4096), attrs.Size)
	assert.Equal(t, uint32(1), attrs.Uid)
}

func TestToInodeAttrsSetsSymlinkModeBit(t *testing.T) {
	attrs := toInodeAttrs(vfsops.Attr{Type: inode.TypeSymlink, Mode: 0o777})
	assert.True(t, attrs.Mode&os.ModeSymlink != 0)
}

func TestToInodeAttrsRegularFileHasNoTypeBits(t *testing.T) {
	attrs := toInodeAttrs(vfsops.Attr{Type: inode.TypeRegular, Mode: 0o644})
	assert.False(t, attrs.Mode.IsDir())
	assert.Equal(t, uint32(0o644), uint32(attrs.Mode.Perm()))
}

func TestDirentTypeMapsDirectoryAndSymlinkAndDefault(t *testing.T) {
	dirType := direntType(dirent.TypeDirectory)
	linkType := direntType(dirent.TypeSymlink)
	fileType := direntType(dirent.TypeRegular)
	assert.NotEqual(t, dirType, linkType)
	assert.NotEqual(t, dirType, fileType)
	assert.NotEqual(t, linkType, fileType)
}

func TestToErrnoPassesNilThrough(t *testing.T) {
	assert.NoError(t, toErrno(nil))
}

func TestToErrnoMapsNotFoundToNonNilErrno(t *testing.T) {
	err := toErrno(verrors.New(verrors.KindNotFound, "missing"))
	assert.Error(t, err)
}

func TestNewDefaultsNilPanicRegistry(t *testing.T) {
	s := New(nil, nil, 1000, 1000)
	assert.NotNil(t, s)
	assert.NotNil(t, s.panics)
}
