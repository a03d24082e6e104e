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

package inode

import (
	"encoding/binary"
	"time"

	"github.com/vexfs/vexfs/internal/storage/layout"
	"github.com/vexfs/vexfs/internal/verrors"
)

// Encode serializes i into a fixed layout.InodeSize-byte record. The
// Dirty/RefCount in-memory fields are never persisted.
func (i *Inode) Encode() []byte {
	buf := make([]byte, layout.InodeSize)
	off := 0
	putU64 := func(v uint64) { binary.LittleEndian.PutUint64(buf[off:], v); off += 8 }
	putU32 := func(v uint32) { binary.LittleEndian.PutUint32(buf[off:], v); off += 4 }

	putU64(i.Number)
	putU32(uint32(i.Type))
	putU32(i.Mode)
	putU32(i.UID)
	putU32(i.GID)
	putU64(i.Size)
	putU64(uint64(i.ATime.Unix()))
	putU64(uint64(i.MTime.Unix()))
	putU64(uint64(i.CTime.Unix()))
	putU32(i.Nlink)
	putU64(i.BlockCount)
	for _, b := range i.Direct {
		putU64(b)
	}
	putU64(i.SingleIndirect)
	putU64(i.DoubleIndirect)
	putU64(i.TripleIndirect)
	return buf
}

// Decode parses an Inode out of a layout.InodeSize-byte record
// previously produced by Encode.
func Decode(buf []byte) (*Inode, error) {
	if len(buf) < layout.InodeSize {
		return nil, verrors.New(verrors.KindCorruptedData, "inode record buffer too short")
	}
	i := &Inode{}
	off := 0
	getU64 := func() uint64 { v := binary.LittleEndian.Uint64(buf[off:]); off += 8; return v }
	getU32 := func() uint32 { v := binary.LittleEndian.Uint32(buf[off:]); off += 4; return v }

	i.Number = getU64()
	i.Type = FileType(getU32())
	i.Mode = getU32()
	i.UID = getU32()
	i.GID = getU32()
	i.Size = getU64()
	i.ATime = time.Unix(int64(getU64()), 0).UTC()
	i.MTime = time.Unix(int64(getU64()), 0).UTC()
	i.CTime = time.Unix(int64(getU64()), 0).UTC()
	i.Nlink = getU32()
	i.BlockCount = getU64()
	for d := 0; d < DirectBlocks; d++ {
		i.Direct[d] = getU64()
	}
	i.SingleIndirect = getU64()
	i.DoubleIndirect = getU64()
	i.TripleIndirect = getU64()
	return i, nil
}
