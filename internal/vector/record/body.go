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

package record

import "github.com/vexfs/vexfs/internal/verrors"

// Record is a complete on-disk vector record: header plus the
// (possibly compressed) stored body, padded to a 64-byte boundary.
type Record struct {
	Header Header
	Body   []byte
}

// Encode serializes r to its full on-disk representation: the fixed
// header, the body, and zero padding out to the next 64-byte boundary.
func (r Record) Encode() []byte {
	total := HeaderSize + len(r.Body)
	aligned := AlignedSize(total)
	buf := make([]byte, aligned)
	copy(buf, r.Header.Encode())
	copy(buf[HeaderSize:], r.Body)
	return buf
}

// Decode parses a full on-disk record out of buf, validating the
// header and that the declared StoredBytes fit within buf.
func Decode(buf []byte) (Record, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return Record{}, err
	}
	end := HeaderSize + int(h.StoredBytes)
	if end > len(buf) {
		return Record{}, verrors.New(verrors.KindCorruptedData, "vector record body truncated")
	}
	body := make([]byte, h.StoredBytes)
	copy(body, buf[HeaderSize:end])
	return Record{Header: h, Body: body}, nil
}
