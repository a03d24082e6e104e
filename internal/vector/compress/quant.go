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

package compress

import (
	"encoding/binary"
	"math"
)

// compressQuant8 applies a single affine min/max quantization over
// the full vector into 8-bit codes: 8 bytes of {min,max} float32
// header followed by one byte per element. Declared tolerance is
// (max-min)/255 absolute error per element.
func compressQuant8(floats []float32) []byte {
	min, max := minMax(floats)
	buf := make([]byte, 8+len(floats))
	putF32(buf[0:4], min)
	putF32(buf[4:8], max)
	scale := float32(255.0) / (max - min)
	for i, f := range floats {
		buf[8+i] = byte(clamp((f-min)*scale, 0, 255))
	}
	return buf
}

func decompressQuant8(data []byte, dims int) []float32 {
	if len(data) < 8 {
		return make([]float32, dims)
	}
	min := getF32(data[0:4])
	max := getF32(data[4:8])
	codes := data[8:]
	out := make([]float32, dims)
	step := (max - min) / 255.0
	for i := 0; i < dims && i < len(codes); i++ {
		out[i] = min + float32(codes[i])*step
	}
	return out
}

// compressQuant4 packs two 4-bit codes per byte over the full vector,
// using the same global min/max affine scheme as quant8 but at half
// the resolution (coarser tolerance, half the storage).
func compressQuant4(floats []float32) []byte {
	min, max := minMax(floats)
	n := len(floats)
	packed := (n + 1) / 2
	buf := make([]byte, 8+packed)
	putF32(buf[0:4], min)
	putF32(buf[4:8], max)
	scale := float32(15.0) / (max - min)
	for i, f := range floats {
		code := byte(clamp((f-min)*scale, 0, 15))
		idx := 8 + i/2
		if i%2 == 0 {
			buf[idx] = code
		} else {
			buf[idx] |= code << 4
		}
	}
	return buf
}

func decompressQuant4(data []byte, dims int) []float32 {
	if len(data) < 8 {
		return make([]float32, dims)
	}
	min := getF32(data[0:4])
	max := getF32(data[4:8])
	packed := data[8:]
	out := make([]float32, dims)
	step := (max - min) / 15.0
	for i := 0; i < dims; i++ {
		idx := i / 2
		if idx >= len(packed) {
			break
		}
		var code byte
		if i%2 == 0 {
			code = packed[idx] & 0x0F
		} else {
			code = (packed[idx] >> 4) & 0x0F
		}
		out[i] = min + float32(code)*step
	}
	return out
}

// pqSubWidth is the subvector width used by the simplified product
// quantizer below: each subWidth-wide chunk of the vector gets its
// own local min/max and 4-bit codes, trading a little more header
// space for finer per-region resolution than a single global quant4
// pass — useful on vectors whose magnitude varies a lot across
// dimensions (e.g. concatenated embeddings from different sources).
const pqSubWidth = 8

// compressPQ is a simplified product quantizer: split the vector into
// fixed-width subvectors, quantize each to 4 bits against its own
// local min/max. Unlike a learned-codebook PQ, there is no training
// step, which keeps this a pure function with no per-index state —
// a deliberate simplification from textbook PQ.
func compressPQ(floats []float32) []byte {
	n := len(floats)
	numSub := (n + pqSubWidth - 1) / pqSubWidth
	headerLen := numSub * 8
	packedLen := (n + 1) / 2
	buf := make([]byte, headerLen+packedLen)
	for s := 0; s < numSub; s++ {
		start := s * pqSubWidth
		end := start + pqSubWidth
		if end > n {
			end = n
		}
		sub := floats[start:end]
		min, max := minMax(sub)
		putF32(buf[s*8:s*8+4], min)
		putF32(buf[s*8+4:s*8+8], max)
		scale := float32(15.0) / (max - min)
		for i, f := range sub {
			globalIdx := start + i
			code := byte(clamp((f-min)*scale, 0, 15))
			idx := headerLen + globalIdx/2
			if globalIdx%2 == 0 {
				buf[idx] = code
			} else {
				buf[idx] |= code << 4
			}
		}
	}
	return buf
}

func decompressPQ(data []byte, dims int) []float32 {
	numSub := (dims + pqSubWidth - 1) / pqSubWidth
	headerLen := numSub * 8
	if len(data) < headerLen {
		return make([]float32, dims)
	}
	packed := data[headerLen:]
	out := make([]float32, dims)
	for s := 0; s < numSub; s++ {
		min := getF32(data[s*8 : s*8+4])
		max := getF32(data[s*8+4 : s*8+8])
		step := (max - min) / 15.0
		start := s * pqSubWidth
		end := start + pqSubWidth
		if end > dims {
			end = dims
		}
		for i := start; i < end; i++ {
			idx := i / 2
			if idx >= len(packed) {
				break
			}
			var code byte
			if i%2 == 0 {
				code = packed[idx] & 0x0F
			} else {
				code = (packed[idx] >> 4) & 0x0F
			}
			out[i] = min + float32(code)*step
		}
	}
	return out
}

// compressSparse stores only the non-zero entries as (index,value)
// pairs, losslessly for f32 data: count(4) followed by count *
// {index(4), value(4)}.
func compressSparse(floats []float32) []byte {
	type pair struct {
		idx uint32
		val float32
	}
	var pairs []pair
	for i, f := range floats {
		if f != 0 {
			pairs = append(pairs, pair{uint32(i), f})
		}
	}
	buf := make([]byte, 4+8*len(pairs))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(pairs)))
	for i, p := range pairs {
		off := 4 + i*8
		binary.LittleEndian.PutUint32(buf[off:off+4], p.idx)
		putF32(buf[off+4:off+8], p.val)
	}
	return buf
}

func decompressSparse(data []byte, dims int) []float32 {
	out := make([]float32, dims)
	if len(data) < 4 {
		return out
	}
	count := binary.LittleEndian.Uint32(data[0:4])
	for i := uint32(0); i < count; i++ {
		off := 4 + int(i)*8
		if off+8 > len(data) {
			break
		}
		idx := binary.LittleEndian.Uint32(data[off : off+4])
		val := getF32(data[off+4 : off+8])
		if int(idx) < dims {
			out[idx] = val
		}
	}
	return out
}

func putF32(b []byte, f float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(f))
}

func getF32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func clamp(v float32, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
