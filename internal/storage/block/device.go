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

// Package block is the lowest leaf of the storage stack (spec.md §4.1):
// fixed-size block I/O with bounds checks and per-block metadata. The
// core never opens a raw file descriptor itself; it is handed a Device,
// so the same core runs against a real backing file (kernel/FUSE build)
// or an in-memory device (tests, userspace dry-run) — mirroring the
// way the teacher's fs.ServerConfig is handed a GCS bucket handle rather
// than constructing one.
package block

import (
	"io"
	"os"

	"github.com/spf13/afero"

	"github.com/vexfs/vexfs/internal/verrors"
)

const fileOpenFlags = os.O_RDWR | os.O_CREATE

// Device is the minimal file-like handle the block manager opens its
// region on. afero.File (backed by afero.Fs, either the OS filesystem
// or an in-memory MemMapFs for tests) satisfies it directly.
type Device interface {
	io.ReaderAt
	io.WriterAt
	Sync() error
	Truncate(size int64) error
	Close() error
}

// OpenFile opens path on fs as a Device, creating and truncating it to
// sizeBytes if it does not already exist.
func OpenFile(fs afero.Fs, path string, sizeBytes int64) (Device, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, verrors.Wrap(verrors.KindIO, err, "statting block device file")
	}
	f, err := fs.OpenFile(path, fileOpenFlags, 0o600)
	if err != nil {
		return nil, verrors.Wrap(verrors.KindIO, err, "opening block device file")
	}
	if !exists {
		if err := f.Truncate(sizeBytes); err != nil {
			f.Close()
			return nil, verrors.Wrap(verrors.KindIO, err, "sizing new block device file")
		}
	}
	return f, nil
}
