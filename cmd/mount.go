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

package cmd

import (
	"fmt"
	"os/user"
	"strconv"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/spf13/afero"

	"github.com/vexfs/vexfs/cfg"
	"github.com/vexfs/vexfs/clock"
	"github.com/vexfs/vexfs/common"
	"github.com/vexfs/vexfs/internal/bridge"
	"github.com/vexfs/vexfs/internal/coordinator"
	"github.com/vexfs/vexfs/internal/dirent"
	"github.com/vexfs/vexfs/internal/fslock"
	"github.com/vexfs/vexfs/internal/hnsw"
	"github.com/vexfs/vexfs/internal/inode"
	"github.com/vexfs/vexfs/internal/logger"
	"github.com/vexfs/vexfs/internal/panichandler"
	"github.com/vexfs/vexfs/internal/security"
	"github.com/vexfs/vexfs/internal/stackmon"
	"github.com/vexfs/vexfs/internal/storage/alloc"
	"github.com/vexfs/vexfs/internal/storage/block"
	storagecache "github.com/vexfs/vexfs/internal/storage/cache"
	"github.com/vexfs/vexfs/internal/storage/journal"
	"github.com/vexfs/vexfs/internal/storage/layout"
	"github.com/vexfs/vexfs/internal/verrors"
	"github.com/vexfs/vexfs/internal/vector/store"
	"github.com/vexfs/vexfs/internal/vfsops"
	"github.com/vexfs/vexfs/internal/vfsshim"
)

const (
	maxPathDepth         = 64
	metaCacheCapacity    = 256
	inodeCacheCapacity   = 1024
	hnswConstructionSeed = 1
)

// mountUidGid resolves the uid/gid every request is authorized as,
// matching jacobsa/fuse's pinned version here having no per-request
// credentials (see internal/vfsshim). Defaults to the invoking
// process's own user; this is plain os/user bookkeeping, not a domain
// concern, so it stays on the standard library.
func mountUidGid() (uint32, uint32, error) {
	u, err := user.Current()
	if err != nil {
		return 0, 0, verrors.Wrap(verrors.KindInternal, err, "resolving current user")
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return 0, 0, verrors.Wrap(verrors.KindInternal, err, "parsing uid")
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return 0, 0, verrors.Wrap(verrors.KindInternal, err, "parsing gid")
	}
	return uint32(uid), uint32(gid), nil
}

// openDevice opens the configured backing device, wraps it in a
// block.Manager, and decodes its superblock; the remaining managers are
// assembled by buildFileSystem. The device must already be formatted; VexFS
// has no implicit "format on first mount" step, matching the
// teacher's own refusal to implicitly create a bucket.
func openDevice(c *cfg.Config) (*block.Manager, layout.Superblock, error) {
	path := string(c.Storage.DevicePath)
	if path == "" {
		return nil, layout.Superblock{}, verrors.New(verrors.KindInvalidArgument, "storage.device-path is required")
	}

	afs := afero.NewOsFs()
	exists, err := afero.Exists(afs, path)
	if err != nil {
		return nil, layout.Superblock{}, verrors.Wrap(verrors.KindIO, err, "statting device").WithPath(path)
	}
	if !exists {
		return nil, layout.Superblock{}, verrors.New(verrors.KindInvalidArgument, "device does not exist; it must be created and formatted before mounting").WithPath(path)
	}

	dev, err := block.OpenFile(afs, path, 0)
	if err != nil {
		return nil, layout.Superblock{}, err
	}

	blockSize := uint32(c.Storage.BlockSize)
	if blockSize == 0 {
		blockSize = 4096
	}
	raw := make([]byte, blockSize)
	if _, err := dev.ReadAt(raw, 0); err != nil {
		dev.Close()
		return nil, layout.Superblock{}, verrors.Wrap(verrors.KindIO, err, "reading superblock").WithPath(path)
	}
	sb, err := layout.Decode(raw)
	if err != nil {
		dev.Close()
		return nil, layout.Superblock{}, verrors.Wrap(verrors.KindCorrupt, err, "decoding superblock").WithPath(path)
	}
	if err := layout.Validate(sb, blockSize); err != nil {
		dev.Close()
		return nil, layout.Superblock{}, err
	}

	bm := block.NewManager(dev, sb.BlockSize, sb.TotalBlocks, false, metaCacheCapacity)
	return bm, sb, nil
}

// buildFileSystem wires every manager package into a vfsops.FileSystem
// the way internal/vfsops/fs_test.go's newTestFS does against a real
// device rather than afero.NewMemMapFs().
func buildFileSystem(c *cfg.Config, metrics common.MetricHandle, panics *panichandler.Registry) (*vfsops.FileSystem, error) {
	bm, sb, err := openDevice(c)
	if err != nil {
		return nil, err
	}

	cacheMode := storagecache.WriteThrough
	if !c.Storage.WriteThroughCache {
		cacheMode = storagecache.WriteBack
	}
	cacheCapacity := int(uint64(c.Storage.CacheSize) / uint64(sb.BlockSize))
	if cacheCapacity <= 0 {
		cacheCapacity = 64
	}
	cc := storagecache.New(bm, cacheCapacity, cacheMode)

	jm, err := journal.Open(bm, sb.JournalStart, sb.JournalBlocks)
	if err != nil {
		return nil, err
	}

	a := alloc.New(sb.DataStart, sb.TotalBlocks-sb.DataStart)

	clk := clock.RealClock{}
	im := inode.New(&sb, cc, jm, a, clk, inodeCacheCapacity)
	sec := security.New()
	locks := fslock.New()
	dm := dirent.New(im, cc, jm, a, locks, sec, int(sb.BlockSize), maxPathDepth)

	sm := stackmon.New(c.Vector.StackLimitBytes, c.Vector.StackWarningBytes)
	vecs := store.New(cc, jm, a, sm, metrics, clk, int(sb.BlockSize))

	g := hnsw.New(hnsw.Options{
		Seed:    hnswConstructionSeed,
		Stack:   sm,
		Journal: jm,
		Metrics: metrics,
		Clock:   clk,
	})
	br := bridge.New(g, clk, metrics)

	coord := coordinator.New(vfsops.DefaultParticipantHandlers(), clk, jm)

	fs := vfsops.New(vfsops.Config{
		Inodes:  im,
		Dirents: dm,
		Sec:     sec,
		Locks:   locks,
		Vectors: vecs,
		Graph:   g,
		Bridge:  br,
		Coord:   coord,
		Alloc:   a,
		Journal: jm,
		Panics:  panics,
		Clock:   clk,
		Metrics: metrics,
	})
	return fs, nil
}

// mountWithConfig opens the backing device, assembles the VexFS core,
// and mounts it at mountPoint via jacobsa/fuse — mirroring the
// teacher's mountWithStorageHandle, generalized from a GCS bucket
// handle to an on-disk VexFS device.
func mountWithConfig(mountPoint string, newConfig *cfg.Config) (*fuse.MountedFileSystem, error) {
	metrics, err := common.NewOTelMetricHandle()
	if err != nil {
		logger.Warnf("falling back to noop metrics: %v", err)
		metrics = common.NewNoopMetricHandle()
	}

	panics := panichandler.New()
	fs, err := buildFileSystem(newConfig, metrics, panics)
	if err != nil {
		return nil, fmt.Errorf("assembling VexFS core: %w", err)
	}

	uid, gid, err := mountUidGid()
	if err != nil {
		return nil, err
	}
	server := fuseutil.NewFileSystemServer(vfsshim.New(fs, panics, uid, gid))

	fsName := "vexfs"
	mountCfg := &fuse.MountConfig{
		FSName:     fsName,
		Subtype:    "vexfs",
		VolumeName: fsName,
	}

	logger.Infof("mounting VexFS at %q from device %q", mountPoint, newConfig.Storage.DevicePath)
	mfs, err := fuse.Mount(mountPoint, server, mountCfg)
	if err != nil {
		return nil, fmt.Errorf("mount: %w", err)
	}
	return mfs, nil
}
