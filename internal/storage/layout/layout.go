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

// Package layout computes the deterministic on-disk layout (spec.md
// §4.4/§6) and holds the superblock record: magic, version, feature
// flags, block size, total/free block and inode counts, and the offsets
// of the bitmap, inode table, journal and data regions. Layout math is
// pure; the superblock is loaded/validated/persisted through the block
// manager (internal/storage/block), never read or written directly here.
package layout

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/vexfs/vexfs/internal/verrors"
)

// SuperblockMagic is "VEFS" packed big-endian, per spec.md §6.
const SuperblockMagic uint32 = 0x56454653

// CurrentVersion is the on-disk format version this build writes.
var CurrentVersion = Version{Major: 1, Minor: 0, Patch: 0}

// Feature flag bits. Bits in the incompatible set cause mount to fail
// outright on an unknown build; bits in the compatible set may be
// ignored by an older build.
const (
	IncompatVectorStore uint32 = 1 << 0
	IncompatHNSWIndex   uint32 = 1 << 1

	CompatJournalChecksums uint32 = 1 << 0
)

// knownIncompat is the set of incompatible-feature bits this build
// understands; any other bit set in a mounted superblock fails Validate.
const knownIncompat = IncompatVectorStore | IncompatHNSWIndex

// InodeSize is the fixed on-disk size of one inode record, used to
// derive inodes-per-block (spec.md §4.6).
const InodeSize = 256

// Version is the on-disk format's major.minor.patch triple.
type Version struct {
	Major, Minor, Patch uint16
}

// Superblock is the single persistent record describing the whole
// filesystem (spec.md §3 "Superblock").
type Superblock struct {
	Magic   uint32
	Version Version

	BlockSize uint32

	TotalBlocks uint64
	FreeBlocks  uint64
	TotalInodes uint64
	FreeInodes  uint64

	BitmapStart      uint64
	BitmapBlocks     uint64
	InodeTableStart  uint64
	InodeTableBlocks uint64
	JournalStart     uint64
	JournalBlocks    uint64
	DataStart        uint64

	CompatFlags   uint32
	IncompatFlags uint32

	// CRC32 covers every field above; it is computed last by Encode and
	// checked first by Decode/Validate.
	CRC32 uint32
}

// Params is the input to ComputeLayout: everything layout math needs to
// derive a Superblock deterministically (spec.md §4.4).
type Params struct {
	DeviceBlocks  uint64
	BlockSize     uint32
	InodeCount    uint64
	JournalBlocks uint64
	IncompatFlags uint32
	CompatFlags   uint32
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// ComputeLayout derives a fresh Superblock from device size, block size,
// inode count, journal size and feature flags. Region order on disk is
// fixed: superblock (block 0), bitmap, inode table, journal, data.
func ComputeLayout(p Params) (Superblock, error) {
	if p.BlockSize < 512 || p.BlockSize > 65536 || p.BlockSize&(p.BlockSize-1) != 0 {
		return Superblock{}, verrors.New(verrors.KindInvalidArgument, "block size must be a power of two in [512, 65536]")
	}
	if p.InodeCount == 0 {
		return Superblock{}, verrors.New(verrors.KindInvalidArgument, "inode count must be > 0")
	}

	inodesPerBlock := uint64(p.BlockSize) / InodeSize
	inodeTableBlocks := ceilDiv(p.InodeCount, inodesPerBlock)
	bitmapBlocks := ceilDiv(p.DeviceBlocks, uint64(p.BlockSize)*8)

	journalBlocks := p.JournalBlocks
	if journalBlocks == 0 {
		// auto-compute per spec.md §6 "journal_size ... auto-computed if
		// absent": ~2% of the device, floor of 64 blocks.
		journalBlocks = p.DeviceBlocks / 50
		if journalBlocks < 64 {
			journalBlocks = 64
		}
	}

	const superblockBlocks = 1
	bitmapStart := uint64(superblockBlocks)
	inodeTableStart := bitmapStart + bitmapBlocks
	journalStart := inodeTableStart + inodeTableBlocks
	dataStart := journalStart + journalBlocks

	if dataStart >= p.DeviceBlocks {
		return Superblock{}, verrors.New(verrors.KindInvalidArgument, "device too small for requested inode/journal layout")
	}

	sb := Superblock{
		Magic:            SuperblockMagic,
		Version:          CurrentVersion,
		BlockSize:        p.BlockSize,
		TotalBlocks:      p.DeviceBlocks,
		FreeBlocks:       p.DeviceBlocks - dataStart,
		TotalInodes:      p.InodeCount,
		FreeInodes:       p.InodeCount - 1, // inode 1 (root) is pre-allocated
		BitmapStart:      bitmapStart,
		BitmapBlocks:     bitmapBlocks,
		InodeTableStart:  inodeTableStart,
		InodeTableBlocks: inodeTableBlocks,
		JournalStart:     journalStart,
		JournalBlocks:    journalBlocks,
		DataStart:        dataStart,
		CompatFlags:      p.CompatFlags,
		IncompatFlags:    p.IncompatFlags,
	}
	sb.CRC32 = sb.computeCRC()
	return sb, nil
}

// InodesPerBlock reports how many fixed-size inode records fit per
// block, used by the inode manager to compute (block#, offset).
func (sb Superblock) InodesPerBlock() uint64 {
	return uint64(sb.BlockSize) / InodeSize
}

func (sb Superblock) computeCRC() uint32 {
	buf := sb.encodeBody()
	return crc32.ChecksumIEEE(buf)
}

func (sb Superblock) encodeBody() []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, sb.Magic)
	binary.Write(buf, binary.LittleEndian, sb.Version.Major)
	binary.Write(buf, binary.LittleEndian, sb.Version.Minor)
	binary.Write(buf, binary.LittleEndian, sb.Version.Patch)
	binary.Write(buf, binary.LittleEndian, sb.BlockSize)
	binary.Write(buf, binary.LittleEndian, sb.TotalBlocks)
	binary.Write(buf, binary.LittleEndian, sb.FreeBlocks)
	binary.Write(buf, binary.LittleEndian, sb.TotalInodes)
	binary.Write(buf, binary.LittleEndian, sb.FreeInodes)
	binary.Write(buf, binary.LittleEndian, sb.BitmapStart)
	binary.Write(buf, binary.LittleEndian, sb.BitmapBlocks)
	binary.Write(buf, binary.LittleEndian, sb.InodeTableStart)
	binary.Write(buf, binary.LittleEndian, sb.InodeTableBlocks)
	binary.Write(buf, binary.LittleEndian, sb.JournalStart)
	binary.Write(buf, binary.LittleEndian, sb.JournalBlocks)
	binary.Write(buf, binary.LittleEndian, sb.DataStart)
	binary.Write(buf, binary.LittleEndian, sb.CompatFlags)
	binary.Write(buf, binary.LittleEndian, sb.IncompatFlags)
	return buf.Bytes()
}

// Encode serializes sb, recomputing its CRC32, into a block-sized
// buffer (zero-padded beyond the encoded body).
func (sb Superblock) Encode(blockSize int) []byte {
	sb.CRC32 = sb.computeCRC()
	body := sb.encodeBody()
	out := make([]byte, blockSize)
	copy(out, body)
	binary.LittleEndian.PutUint32(out[blockSize-4:], sb.CRC32)
	return out
}

// Decode parses a superblock out of a block-sized buffer without
// validating it; call Validate to check magic/version/CRC.
func Decode(raw []byte) (Superblock, error) {
	if len(raw) < 4 {
		return Superblock{}, verrors.New(verrors.KindCorruptedData, "superblock buffer too short")
	}
	r := bytes.NewReader(raw)
	var sb Superblock
	fields := []any{
		&sb.Magic, &sb.Version.Major, &sb.Version.Minor, &sb.Version.Patch,
		&sb.BlockSize, &sb.TotalBlocks, &sb.FreeBlocks, &sb.TotalInodes,
		&sb.FreeInodes, &sb.BitmapStart, &sb.BitmapBlocks, &sb.InodeTableStart,
		&sb.InodeTableBlocks, &sb.JournalStart, &sb.JournalBlocks, &sb.DataStart,
		&sb.CompatFlags, &sb.IncompatFlags,
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return Superblock{}, verrors.Wrap(verrors.KindCorruptedData, err, "decoding superblock")
		}
	}
	sb.CRC32 = binary.LittleEndian.Uint32(raw[len(raw)-4:])
	return sb, nil
}

// Validate checks the superblock against the device's actual block
// size and rejects a wrong magic, a major version other than
// CurrentVersion's, unknown incompatible feature bits or CRC mismatch,
// per spec.md §4.4 "Validation on mount".
func Validate(sb Superblock, deviceBlockSize uint32) error {
	if sb.Magic != SuperblockMagic {
		return verrors.New(verrors.KindCorruptedData, "superblock magic mismatch")
	}
	if sb.Version.Major != CurrentVersion.Major {
		return verrors.New(verrors.KindConfiguration, "superblock format major version not supported")
	}
	if sb.BlockSize != deviceBlockSize {
		return verrors.New(verrors.KindInvalidArgument, "superblock block size does not match device block size")
	}
	if sb.IncompatFlags&^knownIncompat != 0 {
		return verrors.New(verrors.KindConfiguration, "superblock has unknown incompatible feature bits set")
	}
	if sb.computeCRC() != sb.CRC32 {
		return verrors.New(verrors.KindCorruptedData, "superblock CRC32 mismatch")
	}
	return nil
}
