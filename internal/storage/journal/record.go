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

package journal

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/vexfs/vexfs/internal/verrors"
)

// Kind is the tagged union of journal record types (spec.md §3 "Journal
// record"): begin, block-write, block-alloc, block-free, commit, abort,
// checkpoint.
type Kind uint8

const (
	KindBegin Kind = iota
	KindBlockWrite
	KindBlockAlloc
	KindBlockFree
	KindCommit
	KindAbort
	KindCheckpoint
)

// Record is one physical-redo log entry. Every record carries a
// monotonically increasing LSN (spec.md §3).
type Record struct {
	LSN      uint64
	Kind     Kind
	TxnID    uint64
	BlockNum uint64
	Bytes    []byte
}

// encode serializes r as: lsn(8) kind(1) txnID(8) blockNum(8) len(4)
// bytes(len) crc32(4). crc32 covers every preceding field.
func (r Record) encode() []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, r.LSN)
	buf.WriteByte(byte(r.Kind))
	binary.Write(buf, binary.LittleEndian, r.TxnID)
	binary.Write(buf, binary.LittleEndian, r.BlockNum)
	binary.Write(buf, binary.LittleEndian, uint32(len(r.Bytes)))
	buf.Write(r.Bytes)
	crc := crc32.ChecksumIEEE(buf.Bytes())
	binary.Write(buf, binary.LittleEndian, crc)
	return buf.Bytes()
}

// decodeRecord reads exactly one record from the front of raw, returning
// the record, the number of bytes consumed, and an error if the bytes
// are too short to contain a full record or the record's CRC32 (the
// sentinel used to detect the tail of a partially-written log) fails.
func decodeRecord(raw []byte) (Record, int, error) {
	const fixedHeader = 8 + 1 + 8 + 8 + 4
	if len(raw) < fixedHeader {
		return Record{}, 0, verrors.New(verrors.KindCorruptedData, "truncated journal record header")
	}
	var r Record
	r.LSN = binary.LittleEndian.Uint64(raw[0:8])
	r.Kind = Kind(raw[8])
	r.TxnID = binary.LittleEndian.Uint64(raw[9:17])
	r.BlockNum = binary.LittleEndian.Uint64(raw[17:25])
	blen := binary.LittleEndian.Uint32(raw[25:29])

	total := fixedHeader + int(blen) + 4
	if len(raw) < total {
		return Record{}, 0, verrors.New(verrors.KindCorruptedData, "truncated journal record body")
	}
	r.Bytes = append([]byte{}, raw[29:29+int(blen)]...)

	wantCRC := crc32.ChecksumIEEE(raw[:29+int(blen)])
	gotCRC := binary.LittleEndian.Uint32(raw[29+int(blen) : total])
	if wantCRC != gotCRC {
		return Record{}, 0, verrors.New(verrors.KindCorruptedData, "journal record checksum mismatch")
	}
	return r, total, nil
}
