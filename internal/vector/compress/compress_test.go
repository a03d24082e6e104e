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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleVector(n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = float32(i) - float32(n)/2
	}
	return v
}

func maxAbsError(a, b []float32) float32 {
	var worst float32
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		if d > worst {
			worst = d
		}
	}
	return worst
}

func TestCompressNoneIsLossless(t *testing.T) {
	v := sampleVector(16)
	data := Compress(KindNone, v)
	out := Decompress(KindNone, data, len(v))
	require.Equal(t, v, out)
}

func TestCompressQuant8WithinTolerance(t *testing.T) {
	v := sampleVector(64)
	data := Compress(KindQuant8, v)
	out := Decompress(KindQuant8, data, len(v))
	min, max := minMax(v)
	tolerance := (max - min) / 255.0
	assert.LessOrEqual(t, float64(maxAbsError(v, out)), float64(tolerance)+1e-3)
}

func TestCompressQuant4RoundTrips(t *testing.T) {
	v := sampleVector(33) // odd length exercises nibble packing boundary
	data := Compress(KindQuant4, v)
	out := Decompress(KindQuant4, data, len(v))
	require.Len(t, out, len(v))
	assert.Less(t, float64(maxAbsError(v, out)), float64(len(v)))
}

func TestCompressPQRoundTrips(t *testing.T) {
	v := sampleVector(100)
	data := Compress(KindPQ, v)
	out := Decompress(KindPQ, data, len(v))
	require.Len(t, out, len(v))
}

func TestCompressSparseIsLossless(t *testing.T) {
	v := make([]float32, 32)
	v[3] = 1.5
	v[17] = -2.25
	data := Compress(KindSparse, v)
	out := Decompress(KindSparse, data, len(v))
	assert.Equal(t, v, out)
}

func TestSelectOptimalPrefersSparseForMostlyZero(t *testing.T) {
	v := make([]float32, 50)
	v[0] = 1
	assert.Equal(t, KindSparse, SelectOptimal(v))
}

func TestSelectOptimalScalesWithDimension(t *testing.T) {
	small := sampleVector(32)
	large := sampleVector(2048)
	assert.Equal(t, KindQuant8, SelectOptimal(small))
	assert.Equal(t, KindQuant4, SelectOptimal(large))
}

func TestFloatBitRoundTrip(t *testing.T) {
	f := float32(3.14159)
	buf := make([]byte, 4)
	putF32(buf, f)
	assert.Equal(t, f, getF32(buf))
	assert.False(t, math.IsNaN(float64(getF32(buf))))
}
