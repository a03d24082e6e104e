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

package vfsops

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/clock"
	"github.com/vexfs/vexfs/internal/bridge"
	"github.com/vexfs/vexfs/internal/coordinator"
	"github.com/vexfs/vexfs/internal/dirent"
	"github.com/vexfs/vexfs/internal/fslock"
	"github.com/vexfs/vexfs/internal/hnsw"
	"github.com/vexfs/vexfs/internal/inode"
	"github.com/vexfs/vexfs/internal/opctx"
	"github.com/vexfs/vexfs/internal/security"
	"github.com/vexfs/vexfs/internal/stackmon"
	"github.com/vexfs/vexfs/internal/storage/alloc"
	"github.com/vexfs/vexfs/internal/storage/block"
	storagecache "github.com/vexfs/vexfs/internal/storage/cache"
	"github.com/vexfs/vexfs/internal/storage/journal"
	"github.com/vexfs/vexfs/internal/storage/layout"
	"github.com/vexfs/vexfs/internal/vector/record"
	"github.com/vexfs/vexfs/internal/vector/store"
)

// passHandler votes yes unconditionally and records nothing; it
// stands in for the filesystem/vector-store/graph participants'
// real journal-backed handlers (exercised directly in their own
// packages' tests), since vfsops only needs the coordinator to
// actually drive its two-phase protocol end to end.
type passHandler struct{}

func (passHandler) Stage(ctx context.Context, txID uint64, op coordinator.Operation) error {
	return nil
}
func (passHandler) Vote(ctx context.Context, txID uint64) (bool, error)   { return true, nil }
func (passHandler) Commit(ctx context.Context, txID uint64) error        { return nil }
func (passHandler) Abort(ctx context.Context, txID uint64) error         { return nil }

func newTestFS(t *testing.T) (*FileSystem, uint64) {
	t.Helper()
	afs := afero.NewMemMapFs()
	sb, err := layout.ComputeLayout(layout.Params{DeviceBlocks: 4000, BlockSize: 4096, InodeCount: 256, JournalBlocks: 32})
	require.NoError(t, err)

	dev, err := block.OpenFile(afs, "/dev/vexfs0", int64(sb.TotalBlocks)*int64(sb.BlockSize))
	require.NoError(t, err)
	bm := block.NewManager(dev, sb.BlockSize, sb.TotalBlocks, false, 256)
	c := storagecache.New(bm, 64, storagecache.WriteThrough)
	jm, err := journal.Open(bm, sb.JournalStart, sb.JournalBlocks)
	require.NoError(t, err)
	a := alloc.New(sb.DataStart, sb.TotalBlocks-sb.DataStart)

	im := inode.New(&sb, c, jm, a, clock.RealClock{}, 32)
	root, err := im.CreateInode(inode.TypeDirectory, 0o755, 0, 0)
	require.NoError(t, err)
	require.Equal(t, inode.RootInode, root.Number)

	sec := security.New()
	locks := fslock.New()
	dm := dirent.New(im, c, jm, a, locks, sec, int(sb.BlockSize), 0)

	sm := stackmon.New(7*1024, 6*1024)
	vecs := store.New(c, jm, a, sm, nil, clock.RealClock{}, int(sb.BlockSize))

	g := hnsw.New(hnsw.Options{Metric: hnsw.MetricEuclidean, Seed: 1})
	br := bridge.New(g, clock.RealClock{}, nil)

	handlers := map[coordinator.Participant]coordinator.ParticipantHandler{
		coordinator.ParticipantFilesystem:  passHandler{},
		coordinator.ParticipantVectorStore: passHandler{},
		coordinator.ParticipantGraph:       passHandler{},
	}
	coord := coordinator.New(handlers, clock.RealClock{}, nil)

	fs := New(Config{
		Inodes: im, Dirents: dm, Sec: sec, Locks: locks,
		Vectors: vecs, Graph: g, Bridge: br, Coord: coord,
		Alloc: a, Journal: jm,
	})
	return fs, root.Number
}

func testOC(t *testing.T) *opctx.OperationContext {
	t.Helper()
	oc, cancel := opctx.New(context.Background(), "test", opctx.User{UID: 0, GID: 0}, 0, time.Time{}, opctx.ResourceLimits{}, nil)
	t.Cleanup(cancel)
	return oc
}

func TestMkdirLookupGetAttrRoundTrip(t *testing.T) {
	fs, root := newTestFS(t)
	oc := testOC(t)

	dirAttr, err := fs.Mkdir(oc, root, "sub", 0o755)
	require.NoError(t, err)
	assert.Equal(t, inode.TypeDirectory, dirAttr.Type)

	got, err := fs.Lookup(oc, root, "sub")
	require.NoError(t, err)
	assert.Equal(t, dirAttr.Inode, got.Inode)

	attr, err := fs.GetAttr(oc, got.Inode)
	require.NoError(t, err)
	assert.Equal(t, uint32(0o755), attr.Mode)
}

func TestCreateAndUnlinkRemovesEntry(t *testing.T) {
	fs, root := newTestFS(t)
	oc := testOC(t)

	file, err := fs.Create(oc, root, "f.txt", 0o644, CreateRegular)
	require.NoError(t, err)

	require.NoError(t, fs.Unlink(oc, root, "f.txt"))

	_, err = fs.Lookup(oc, root, "f.txt")
	require.Error(t, err)
	assert.NotZero(t, file.Inode)
}

func TestRmdirRejectsNonEmptyDirectory(t *testing.T) {
	fs, root := newTestFS(t)
	oc := testOC(t)

	dirAttr, err := fs.Mkdir(oc, root, "sub", 0o755)
	require.NoError(t, err)
	_, err = fs.Create(oc, dirAttr.Inode, "child", 0o644, CreateRegular)
	require.NoError(t, err)

	err = fs.Rmdir(oc, root, "sub")
	require.Error(t, err)
}

func TestReadDirListsCreatedEntries(t *testing.T) {
	fs, root := newTestFS(t)
	oc := testOC(t)

	_, err := fs.Create(oc, root, "a", 0o644, CreateRegular)
	require.NoError(t, err)
	_, err = fs.Mkdir(oc, root, "b", 0o755)
	require.NoError(t, err)

	entries, err := fs.ReadDir(oc, root)
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name] = true
	}
	assert.True(t, names["a"])
	assert.True(t, names["b"])
}

func TestSetAttrUpdatesMode(t *testing.T) {
	fs, root := newTestFS(t)
	oc := testOC(t)

	file, err := fs.Create(oc, root, "f", 0o644, CreateRegular)
	require.NoError(t, err)

	mode := uint32(0o600)
	attr, err := fs.SetAttr(oc, file.Inode, SetAttrRequest{Mode: &mode})
	require.NoError(t, err)
	assert.Equal(t, mode, attr.Mode)
}

func TestWriteGrowsSizeAndReadReturnsZeroedRange(t *testing.T) {
	fs, root := newTestFS(t)
	oc := testOC(t)

	file, err := fs.Create(oc, root, "f", 0o644, CreateRegular)
	require.NoError(t, err)

	n, err := fs.Write(oc, file.Inode, 0, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	data, err := fs.Read(oc, file.Inode, 0, 5)
	require.NoError(t, err)
	assert.Len(t, data, 5)
}

func TestStoreAndSearchVector(t *testing.T) {
	fs, root := newTestFS(t)
	oc := testOC(t)

	file, err := fs.Create(oc, root, "v.vec", 0o644, CreateVectorFile)
	require.NoError(t, err)

	id, err := fs.StoreVector(oc, file.Inode, []float32{1, 0, 0}, record.DTypeF32)
	require.NoError(t, err)
	assert.NotZero(t, id)

	got, err := fs.GetVector(oc, id)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, got)

	results, err := fs.SearchVector(oc, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].VectorID)
}

func TestDeleteVectorRemovesFromStore(t *testing.T) {
	fs, root := newTestFS(t)
	oc := testOC(t)

	file, err := fs.Create(oc, root, "v.vec", 0o644, CreateVectorFile)
	require.NoError(t, err)

	id, err := fs.StoreVector(oc, file.Inode, []float32{0, 1}, record.DTypeF32)
	require.NoError(t, err)

	require.NoError(t, fs.DeleteVector(oc, id))
	_, err = fs.GetVector(oc, id)
	require.Error(t, err)
}

func TestStatFSReportsAllocatorStats(t *testing.T) {
	fs, _ := newTestFS(t)
	oc := testOC(t)
	stats := fs.StatFS(oc)
	assert.NotZero(t, stats.TotalBlocks)
}

func TestShutdownFlushesInodes(t *testing.T) {
	fs, _ := newTestFS(t)
	require.NoError(t, fs.Shutdown())
}
