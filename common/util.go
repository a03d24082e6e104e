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

package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
)

// ShutdownFn releases resources owned by one subsystem. FileSystem.Shutdown
// joins one of these per owned singleton (block cache, journal, allocator,
// HNSW bridge, ...) so a failure tearing down one does not stop the others.
type ShutdownFn func(ctx context.Context) error

// JoinShutdownFunc combines the provided shutdown functions into a single function.
func JoinShutdownFunc(shutdownFns ...ShutdownFn) ShutdownFn {
	return func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFns {
			if fn == nil {
				continue
			}
			err = errors.Join(err, fn(ctx))
		}
		return err
	}
}

// CloseFile closes file and fatally logs if that fails; used on handles
// whose close failure means a journal or superblock write did not make it
// to the device and must not be silently swallowed.
func CloseFile(file *os.File) {
	if err := file.Close(); err != nil {
		log.Fatalf("error closing %s: %v", file.Name(), err)
	}
}

// WriteAtOffset writes content to fileName at the given byte offset without
// truncating the rest of the file; used by tests that seed a fake block
// device file with known bytes.
func WriteAtOffset(fileName string, offset int64, content []byte) (err error) {
	f, err := os.OpenFile(fileName, os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open file for write: %w", err)
	}
	defer CloseFile(f)

	_, err = f.WriteAt(content, offset)
	return err
}
