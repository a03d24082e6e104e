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

package hnsw

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/internal/stackmon"
)

func vec(vals ...float32) []float32 { return vals }

func TestEuclideanDistanceZeroForIdenticalVectors(t *testing.T) {
	a := vec(1, 2, 3)
	assert.Equal(t, float32(0), Distance(MetricEuclidean, a, a))
}

func TestCosineDistanceZeroNormIsMaximal(t *testing.T) {
	zero := vec(0, 0, 0)
	other := vec(1, 2, 3)
	d := Distance(MetricCosine, zero, other)
	assert.Equal(t, float32(1.0), d)
	assert.False(t, math.IsNaN(float64(d)))
}

func TestCosineDistanceIdenticalVectorsIsZero(t *testing.T) {
	a := vec(1, 1, 0)
	d := Distance(MetricCosine, a, a)
	assert.InDelta(t, 0.0, d, 1e-5)
}

func TestInsertThenSearchFindsSelf(t *testing.T) {
	g := New(Options{Metric: MetricEuclidean, Seed: 1})
	ctx := context.Background()

	require.NoError(t, g.Insert(ctx, 1, vec(0, 0)))
	require.NoError(t, g.Insert(ctx, 2, vec(10, 10)))
	require.NoError(t, g.Insert(ctx, 3, vec(0.1, 0.1)))

	results, err := g.Search(ctx, vec(0, 0), 1, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(1), results[0].VectorID)
}

func TestSearchReturnsKNearestOrdered(t *testing.T) {
	g := New(Options{Metric: MetricEuclidean, Seed: 2})
	ctx := context.Background()
	for i := uint64(1); i <= 20; i++ {
		require.NoError(t, g.Insert(ctx, i, vec(float32(i), 0)))
	}

	results, err := g.Search(ctx, vec(0, 0), 3, 50)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestDeleteTombstonesAndExcludesFromSearch(t *testing.T) {
	g := New(Options{Metric: MetricEuclidean, Seed: 3})
	ctx := context.Background()
	require.NoError(t, g.Insert(ctx, 1, vec(0, 0)))
	require.NoError(t, g.Insert(ctx, 2, vec(1, 1)))

	require.NoError(t, g.Delete(ctx, 1))

	results, err := g.Search(ctx, vec(0, 0), 2, 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, uint64(1), r.VectorID)
	}
}

func TestCompactRemovesTombstonedNodes(t *testing.T) {
	g := New(Options{Metric: MetricEuclidean, Seed: 4})
	ctx := context.Background()
	require.NoError(t, g.Insert(ctx, 1, vec(0, 0)))
	require.NoError(t, g.Insert(ctx, 2, vec(1, 1)))
	require.NoError(t, g.Delete(ctx, 1))

	removed := g.Compact()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, g.Len())
}

func TestInsertRejectsDuplicateLiveID(t *testing.T) {
	g := New(Options{Metric: MetricEuclidean, Seed: 5})
	ctx := context.Background()
	require.NoError(t, g.Insert(ctx, 1, vec(0, 0)))
	err := g.Insert(ctx, 1, vec(1, 1))
	require.Error(t, err)
}

func TestStackOverflowRejectsDescentWhenBudgetExhausted(t *testing.T) {
	sm := stackmon.New(1, 1) // impossibly small budget
	g := New(Options{Metric: MetricEuclidean, Seed: 6, Stack: sm})
	err := g.Insert(context.Background(), 1, vec(0, 0))
	require.Error(t, err)
}
