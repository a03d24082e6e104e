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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopulateArgsResolvesAbsolutePaths(t *testing.T) {
	device, mountPoint, err := populateArgs([]string{"dev.img", "mnt"})
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(device))
	assert.True(t, filepath.IsAbs(mountPoint))
}

func TestValidateConfigRejectsZeroBlockSize(t *testing.T) {
	orig := MountConfig
	defer func() { MountConfig = orig }()

	MountConfig.Storage.BlockSize = 0
	assert.Error(t, validateConfig())

	MountConfig.Storage.BlockSize = 4096
	assert.NoError(t, validateConfig())
}
