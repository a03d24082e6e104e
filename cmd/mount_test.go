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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/cfg"
	"github.com/vexfs/vexfs/common"
	"github.com/vexfs/vexfs/internal/panichandler"
	"github.com/vexfs/vexfs/internal/storage/layout"
)

// formatDevice writes a valid superblock (block 0) into a freshly
// sized temp file, mirroring what a standalone fsck --format tool
// would do; buildFileSystem refuses to mount an unformatted device.
func formatDevice(t *testing.T, params layout.Params) string {
	t.Helper()
	sb, err := layout.ComputeLayout(params)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "device.img")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(int64(sb.TotalBlocks)*int64(sb.BlockSize)))
	_, err = f.WriteAt(sb.Encode(int(sb.BlockSize)), 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return path
}

func TestBuildFileSystemAgainstFormattedDevice(t *testing.T) {
	params := layout.Params{DeviceBlocks: 4000, BlockSize: 4096, InodeCount: 256, JournalBlocks: 32}
	path := formatDevice(t, params)

	c := &cfg.Config{}
	c.Storage.DevicePath = cfg.ResolvedPath(path)
	c.Storage.BlockSize = cfg.ByteSize(params.BlockSize)
	c.Storage.CacheSize = cfg.ByteSize(64 * params.BlockSize)
	c.Vector.StackLimitBytes = 7 * 1024
	c.Vector.StackWarningBytes = 6 * 1024

	fs, err := buildFileSystem(c, common.NewNoopMetricHandle(), panichandler.New())
	require.NoError(t, err)
	require.NotNil(t, fs)
	require.NoError(t, fs.Shutdown())
}

func TestOpenDeviceRejectsMissingDevice(t *testing.T) {
	c := &cfg.Config{}
	c.Storage.DevicePath = cfg.ResolvedPath(filepath.Join(t.TempDir(), "missing.img"))
	c.Storage.BlockSize = 4096

	_, _, err := openDevice(c)
	require.Error(t, err)
}
