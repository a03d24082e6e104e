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
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/clock"
	"github.com/vexfs/vexfs/internal/fslock"
	"github.com/vexfs/vexfs/internal/inode"
	"github.com/vexfs/vexfs/internal/security"
	"github.com/vexfs/vexfs/internal/storage/alloc"
	"github.com/vexfs/vexfs/internal/storage/block"
	storagecache "github.com/vexfs/vexfs/internal/storage/cache"
	"github.com/vexfs/vexfs/internal/storage/journal"
	"github.com/vexfs/vexfs/internal/storage/layout"
)

func newTestDirManager(t *testing.T) (*Manager, *inode.Manager, *inode.Inode) {
	t.Helper()
	fs := afero.NewMemMapFs()
	sb, err := layout.ComputeLayout(layout.Params{DeviceBlocks: 4000, BlockSize: 4096, InodeCount: 256, JournalBlocks: 32})
	require.NoError(t, err)

	dev, err := block.OpenFile(fs, "/dev/vexfs0", int64(sb.TotalBlocks)*int64(sb.BlockSize))
	require.NoError(t, err)
	bm := block.NewManager(dev, sb.BlockSize, sb.TotalBlocks, false, 256)
	c := storagecache.New(bm, 64, storagecache.WriteThrough)
	jm, err := journal.Open(bm, sb.JournalStart, sb.JournalBlocks)
	require.NoError(t, err)
	a := alloc.New(sb.DataStart, sb.TotalBlocks-sb.DataStart)
	im := inode.New(&sb, c, jm, a, clock.RealClock{}, 32)

	root, err := im.CreateInode(inode.TypeDirectory, 0o755, 0, 0)
	require.NoError(t, err)

	dm := New(im, c, jm, a, fslock.New(), security.New(), int(sb.BlockSize), 0)
	return dm, im, root
}

func TestCreateDirectoryAndLookup(t *testing.T) {
	dm, _, root := newTestDirManager(t)
	creds := security.Credentials{UID: 0, GID: 0}

	child, err := dm.CreateDirectory(root, "sub", creds, 0o755)
	require.NoError(t, err)

	entry, err := dm.Lookup(root, "sub", creds)
	require.NoError(t, err)
	assert.Equal(t, child.Number, entry.InodeNumber)
}

func TestCreateDirectoryRejectsDuplicate(t *testing.T) {
	dm, _, root := newTestDirManager(t)
	creds := security.Credentials{UID: 0, GID: 0}

	_, err := dm.CreateDirectory(root, "sub", creds, 0o755)
	require.NoError(t, err)
	_, err = dm.CreateDirectory(root, "sub", creds, 0o755)
	require.Error(t, err)
}

func TestRemoveEntryThenLookupFails(t *testing.T) {
	dm, _, root := newTestDirManager(t)
	creds := security.Credentials{UID: 0, GID: 0}

	_, err := dm.CreateDirectory(root, "sub", creds, 0o755)
	require.NoError(t, err)
	_, err = dm.RemoveEntry(root, "sub", creds)
	require.NoError(t, err)

	_, err = dm.Lookup(root, "sub", creds)
	require.Error(t, err)
}

func TestReadDirListsAllEntries(t *testing.T) {
	dm, _, root := newTestDirManager(t)
	creds := security.Credentials{UID: 0, GID: 0}

	_, err := dm.CreateDirectory(root, "a", creds, 0o755)
	require.NoError(t, err)
	_, err = dm.CreateDirectory(root, "b", creds, 0o755)
	require.NoError(t, err)

	entries, err := dm.ReadDir(root, creds)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	assert.True(t, names["a"])
	assert.True(t, names["b"])
}

func TestLookupDeniedWithoutExecutePermission(t *testing.T) {
	dm, _, root := newTestDirManager(t)
	root.Mode = 0o600 // no execute for anyone
	_, err := dm.Lookup(root, "missing", security.Credentials{UID: 500, GID: 500})
	require.Error(t, err)
}
