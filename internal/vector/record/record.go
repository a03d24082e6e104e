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

// Package record defines the on-disk vector record of spec.md §3
// "Vector record" and §6: a 64-byte-aligned header {magic, version,
// vector-id, file-inode, dtype, compression, dimensions, byte counts,
// timestamps, CRC32, flags} followed by the (possibly compressed)
// vector bytes. The design note's two conflicting magic values
// (0x56455856 vs 0x56455858) are resolved here to 0x56455858 ("VEXX"),
// per spec.md §9's "pick one and make it the documented on-disk
// constant".
package record

import (
	"encoding/binary"
	"time"

	"github.com/vexfs/vexfs/internal/verrors"
)

// Magic is the vector record's on-disk magic, "VEXX" (spec.md §6).
const Magic uint32 = 0x56455858

// CurrentVersion is the on-disk vector record format version.
const CurrentVersion uint16 = 1

// MaxDimensions is spec.md §4.9's dimension ceiling.
const MaxDimensions = 4096

// HeaderSize is the fixed, 64-byte-aligned header size (spec.md §6).
const HeaderSize = 64

// DType is the stored element type of a vector (spec.md §3).
type DType int

const (
	DTypeF32 DType = iota
	DTypeF16
	DTypeI8
	DTypeI16
	DTypeBinary
)

// BytesPerElement returns the on-the-wire element width for dt,
// before any compression is applied.
func (dt DType) BytesPerElement() int {
	switch dt {
	case DTypeF32:
		return 4
	case DTypeF16, DTypeI16:
		return 2
	case DTypeI8, DTypeBinary:
		return 1
	default:
		return 4
	}
}

// Compression identifies the strategy applied to the stored bytes
// (spec.md §3/§4.9); internal/vector/compress owns the actual codecs.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionQuant8
	CompressionQuant4
	CompressionProductQuantization
	CompressionSparse
)

// Header is spec.md §3 "Vector record", without the trailing bytes.
type Header struct {
	Magic         uint32
	Version       uint16
	VectorID      uint64
	FileInode     uint64
	DType         DType
	Compression   Compression
	Dimensions    uint32
	OriginalBytes uint32
	StoredBytes   uint32
	CreatedAt     time.Time
	ModifiedAt    time.Time
	Flags         uint32
	CRC32         uint32
}

// Encode packs h into a fixed HeaderSize-byte buffer. CRC32 here
// covers only the header; the body bytes carry no checksum and are not
// verified when a record is read back.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint64(buf[6:14], h.VectorID)
	binary.LittleEndian.PutUint64(buf[14:22], h.FileInode)
	buf[22] = byte(h.DType)
	buf[23] = byte(h.Compression)
	binary.LittleEndian.PutUint32(buf[24:28], h.Dimensions)
	binary.LittleEndian.PutUint32(buf[28:32], h.OriginalBytes)
	binary.LittleEndian.PutUint32(buf[32:36], h.StoredBytes)
	binary.LittleEndian.PutUint64(buf[36:44], uint64(h.CreatedAt.Unix()))
	binary.LittleEndian.PutUint64(buf[44:52], uint64(h.ModifiedAt.Unix()))
	binary.LittleEndian.PutUint32(buf[52:56], h.Flags)
	crc := crc32Header(buf[:56])
	binary.LittleEndian.PutUint32(buf[56:60], crc)
	return buf
}

// DecodeHeader parses a Header out of buf and validates magic/version
// and the header's own CRC32 (spec.md §8 "magic(v) = 0x56455858 ...
// CRC32(bytes(v)) = v.crc").
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, verrors.New(verrors.KindCorruptedData, "vector header buffer too short")
	}
	var h Header
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	if h.Magic != Magic {
		return Header{}, verrors.New(verrors.KindCorruptedData, "vector record magic mismatch")
	}
	h.Version = binary.LittleEndian.Uint16(buf[4:6])
	if h.Version != CurrentVersion {
		return Header{}, verrors.New(verrors.KindCorruptedData, "vector record version mismatch")
	}
	h.VectorID = binary.LittleEndian.Uint64(buf[6:14])
	h.FileInode = binary.LittleEndian.Uint64(buf[14:22])
	h.DType = DType(buf[22])
	h.Compression = Compression(buf[23])
	h.Dimensions = binary.LittleEndian.Uint32(buf[24:28])
	h.OriginalBytes = binary.LittleEndian.Uint32(buf[28:32])
	h.StoredBytes = binary.LittleEndian.Uint32(buf[32:36])
	h.CreatedAt = time.Unix(int64(binary.LittleEndian.Uint64(buf[36:44])), 0).UTC()
	h.ModifiedAt = time.Unix(int64(binary.LittleEndian.Uint64(buf[44:52])), 0).UTC()
	h.Flags = binary.LittleEndian.Uint32(buf[52:56])
	h.CRC32 = binary.LittleEndian.Uint32(buf[56:60])
	if crc32Header(buf[:56]) != h.CRC32 {
		return Header{}, verrors.New(verrors.KindCorruptedData, "vector header CRC32 mismatch")
	}
	return h, nil
}

func crc32Header(b []byte) uint32 {
	return crc32IEEE(b)
}

// AlignedSize rounds n up to the next 64-byte boundary (spec.md §6
// "Vector records are 64-byte-aligned").
func AlignedSize(n int) int {
	const align = 64
	return (n + align - 1) / align * align
}

// ValidateDimensions enforces the 0 < dimensions <= MaxDimensions
// invariant of spec.md §3.
func ValidateDimensions(dims int) error {
	if dims <= 0 || dims > MaxDimensions {
		return verrors.New(verrors.KindInvalidArgument, "vector dimensions out of bounds")
	}
	return nil
}
