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

// Package dirent is the directory & path component of spec.md §4.8:
// directory entries, O(entries) lookup, and left-to-right path
// resolution bounded by a configured max depth. Grounded on the
// teacher's fs/dir.go (listing GCS "directories" by object-name
// prefix and merging in local, not-yet-flushed children), generalized
// from prefix listing to fixed-format on-disk directory blocks.
package dirent

import (
	"encoding/binary"
	"strings"

	"github.com/vexfs/vexfs/internal/verrors"
)

// MaxNameLen is spec.md §3 "Directory entry" VEXFS_NAME_LEN.
const MaxNameLen = 255

// DefaultMaxPathDepth is spec.md §3 "Path" default bound.
const DefaultMaxPathDepth = 32

// Type mirrors the owning inode's file type, duplicated on the
// directory entry so readdir need not load every child inode.
type Type int

const (
	TypeRegular Type = iota
	TypeDirectory
	TypeSymlink
	TypeVectorFile
)

// Entry is spec.md §3 "Directory entry": {inode, name, entry type}.
type Entry struct {
	InodeNumber uint64
	Name        string
	Type        Type
}

func (e Entry) encode() []byte {
	name := []byte(e.Name)
	buf := make([]byte, 1+len(name)+8+1)
	buf[0] = byte(len(name))
	copy(buf[1:], name)
	binary.LittleEndian.PutUint64(buf[1+len(name):], e.InodeNumber)
	buf[1+len(name)+8] = byte(e.Type)
	return buf
}

func decodeEntry(buf []byte) (Entry, int, bool) {
	if len(buf) < 1 {
		return Entry{}, 0, false
	}
	nameLen := int(buf[0])
	need := 1 + nameLen + 8 + 1
	if len(buf) < need {
		return Entry{}, 0, false
	}
	name := string(buf[1 : 1+nameLen])
	inodeNum := binary.LittleEndian.Uint64(buf[1+nameLen:])
	typ := Type(buf[1+nameLen+8])
	return Entry{InodeNumber: inodeNum, Name: name, Type: typ}, need, true
}

// encodeBlock packs entries into a single block-sized buffer: a
// 2-byte count followed by each entry's variable-length encoding.
func encodeBlock(entries []Entry, blockSize int) ([]byte, error) {
	buf := make([]byte, 2, blockSize)
	for _, e := range entries {
		enc := e.encode()
		if len(buf)+len(enc) > blockSize {
			return nil, verrors.New(verrors.KindOutOfSpace, "directory block full")
		}
		buf = append(buf, enc...)
	}
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(entries)))
	out := make([]byte, blockSize)
	copy(out, buf)
	return out, nil
}

func decodeBlock(buf []byte) []Entry {
	if len(buf) < 2 {
		return nil
	}
	count := int(binary.LittleEndian.Uint16(buf[0:2]))
	entries := make([]Entry, 0, count)
	off := 2
	for i := 0; i < count; i++ {
		e, n, ok := decodeEntry(buf[off:])
		if !ok {
			break
		}
		entries = append(entries, e)
		off += n
	}
	return entries
}

// ValidateName rejects names that are empty, longer than MaxNameLen, or
// contain '/'. It gives '.' and '..' no special treatment.
func ValidateName(name string) error {
	if name == "" || len(name) > MaxNameLen {
		return verrors.New(verrors.KindInvalidArgument, "directory entry name length out of bounds")
	}
	if strings.Contains(name, "/") {
		return verrors.New(verrors.KindInvalidArgument, "directory entry name may not contain '/'")
	}
	return nil
}
