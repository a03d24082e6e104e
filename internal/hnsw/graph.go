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

// Package hnsw implements the layered approximate-nearest-neighbor
// index of spec.md §4.10: an arena of nodes keyed by a stable
// vector-id (spec.md §9 Design Notes "do not model neighbors with
// owning references... use an arena of nodes indexed by a stable
// vector-id"), with insert/search/delete expressed iteratively over
// an explicit container/heap work queue rather than recursion, so
// traversal depth never threatens the stack budget enforced by
// internal/stackmon. Grounded on the teacher's lrucache-style
// invariant-checked arena pattern and, for the search_layer algorithm
// itself, on the general-knowledge HNSW paper shape rather than any
// one example repo (none of the pack's examples implement ANN
// search); the heap-based explicit work queue is grounded on Go's own
// container/heap package, the standard idiomatic way to express a
// bounded priority search without recursion.
package hnsw

import (
	"container/heap"
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/vexfs/vexfs/clock"
	"github.com/vexfs/vexfs/common"
	"github.com/vexfs/vexfs/internal/stackmon"
	"github.com/vexfs/vexfs/internal/storage/journal"
	"github.com/vexfs/vexfs/internal/verrors"
)

// maxLevelCap bounds the exponential-decay level draw so a single
// unlucky random sample can't blow up memory with an absurd layer
// count.
const maxLevelCap = 32

// stackCostBytes is the estimated per-call frame cost registered with
// the stack monitor for insert/search/delete.
const stackCostBytes = 1024

// node is one arena entry. Neighbor lists store vector-ids, never
// pointers to other nodes, so the arena can be iterated and mutated
// safely without reference cycles.
type node struct {
	ID        uint64
	Vector    []float32
	TopLayer  int
	Neighbors [][]uint64
	Tombstone bool
}

// SearchResult is one ranked neighbor returned by Search.
type SearchResult struct {
	VectorID uint64
	Distance float32
}

// Graph is a layered HNSW-style ANN index over vectors of a fixed
// dimensionality.
type Graph struct {
	metric         Metric
	m              int // max neighbors per node per layer above 0
	m0             int // max neighbors per node at layer 0
	efConstruction int
	rng            *rand.Rand

	stack   *stackmon.Monitor
	jm      *journal.Manager // optional; nil disables mutation journaling
	metrics common.MetricHandle
	clock   clock.Clock

	mu                sync.RWMutex
	nodes             map[uint64]*node
	entryPoint        uint64
	hasEntry          bool
	maxLayer          int
	pendingCompaction []uint64
}

// Options configures a new Graph.
type Options struct {
	Metric         Metric
	M              int // default 16
	M0             int // default 2*M
	EFConstruction int // default 200
	Seed           int64
	Stack          *stackmon.Monitor
	Journal        *journal.Manager
	Metrics        common.MetricHandle
	Clock          clock.Clock
}

// New constructs an empty Graph per opts, filling in spec-reasonable
// defaults for zero-valued tuning parameters.
func New(opts Options) *Graph {
	m := opts.M
	if m <= 0 {
		m = 16
	}
	m0 := opts.M0
	if m0 <= 0 {
		m0 = 2 * m
	}
	ef := opts.EFConstruction
	if ef <= 0 {
		ef = 200
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Graph{
		metric:         opts.Metric,
		m:              m,
		m0:             m0,
		efConstruction: ef,
		rng:            rand.New(rand.NewSource(opts.Seed)),
		stack:          opts.Stack,
		jm:             opts.Journal,
		metrics:        opts.Metrics,
		clock:          clk,
		nodes:          make(map[uint64]*node),
	}
}

func (g *Graph) enterStack(op string) (*stackmon.Guard, error) {
	if g.stack == nil {
		return nil, nil
	}
	return g.stack.Enter(op, stackCostBytes)
}

func exitStack(guard *stackmon.Guard) {
	if guard != nil {
		guard.Exit()
	}
}

// randomLevel draws a layer via exponential decay, matching the
// classic HNSW level-assignment distribution with decay parameter
// 1/ln(M).
func (g *Graph) randomLevel() int {
	levelMult := 1.0 / math.Log(float64(g.m))
	lvl := int(math.Floor(-math.Log(g.rng.Float64()) * levelMult))
	if lvl > maxLevelCap {
		lvl = maxLevelCap
	}
	if lvl < 0 {
		lvl = 0
	}
	return lvl
}

// journalMutation durably logs a neighbor-list mutation event. The
// full graph arena is rebuilt on mount by replaying vector-storage
// inserts (internal/vector/store), not by replaying these records;
// they exist so a crash mid-mutation leaves an auditable WAL entry,
// matching spec.md §4.10 "all neighbor-list mutations are journaled"
// without requiring a separate on-disk graph layout.
func (g *Graph) journalMutation(op string, id uint64) error {
	if g.jm == nil {
		return nil
	}
	txn := g.jm.Begin()
	payload := append([]byte(op+":"), encodeID(id)...)
	txn.StageBlockWrite(0, payload)
	if err := txn.Prepare(); err != nil {
		return err
	}
	return txn.Commit(nil)
}

func encodeID(id uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(id >> (8 * i))
	}
	return b
}

// greedyDescend iteratively walks to the locally closest neighbor of
// cur at layer, repeating until no neighbor improves on the current
// best — an explicit loop, never recursive.
func (g *Graph) greedyDescend(cur uint64, query []float32, layer int) uint64 {
	best := cur
	bestDist := Distance(g.metric, query, g.nodes[cur].Vector)
	for {
		improved := false
		n := g.nodes[best]
		if layer >= len(n.Neighbors) {
			break
		}
		for _, nb := range n.Neighbors[layer] {
			nbNode, ok := g.nodes[nb]
			if !ok || nbNode.Tombstone {
				continue
			}
			d := Distance(g.metric, query, nbNode.Vector)
			if d < bestDist || (d == bestDist && nb < best) {
				best, bestDist = nb, d
				improved = true
			}
		}
		if !improved {
			break
		}
	}
	return best
}

// searchLayer runs the bounded candidate/visited search of spec.md
// §4.10 at one layer, returning up to ef results ordered closest
// first. It never recurses: the frontier is an explicit min-heap and
// the running result set an explicit bounded max-heap.
func (g *Graph) searchLayer(query []float32, entry []uint64, ef, layer int) []candidate {
	visited := make(map[uint64]bool)
	candidates := &minCandidateHeap{}
	results := &maxCandidateHeap{}
	heap.Init(candidates)
	heap.Init(results)

	for _, e := range entry {
		n, ok := g.nodes[e]
		if !ok || visited[e] {
			continue
		}
		visited[e] = true
		if n.Tombstone {
			continue
		}
		d := Distance(g.metric, query, n.Vector)
		heap.Push(candidates, candidate{e, d})
		heap.Push(results, candidate{e, d})
	}

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(candidate)
		if results.Len() >= ef && c.dist > (*results)[0].dist {
			break
		}
		n, ok := g.nodes[c.id]
		if !ok || layer >= len(n.Neighbors) {
			continue
		}
		for _, nb := range n.Neighbors[layer] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			nbNode, ok := g.nodes[nb]
			if !ok || nbNode.Tombstone {
				continue
			}
			d := Distance(g.metric, query, nbNode.Vector)
			if results.Len() < ef || d < (*results)[0].dist {
				heap.Push(candidates, candidate{nb, d})
				heap.Push(results, candidate{nb, d})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]candidate, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(candidate)
	}
	return out
}

func selectNeighbors(cands []candidate, m int) []uint64 {
	if m > len(cands) {
		m = len(cands)
	}
	out := make([]uint64, m)
	for i := 0; i < m; i++ {
		out[i] = cands[i].id
	}
	return out
}

// linkSymmetric adds newID to nbID's neighbor list at layer, pruning
// back to the layer's max-neighbor bound by keeping the closest
// entries to nbID if the list overflows.
func (g *Graph) linkSymmetric(nbID, newID uint64, layer int) {
	nb, ok := g.nodes[nbID]
	if !ok {
		return
	}
	if layer >= len(nb.Neighbors) {
		grown := make([][]uint64, layer+1)
		copy(grown, nb.Neighbors)
		nb.Neighbors = grown
	}
	nb.Neighbors[layer] = append(nb.Neighbors[layer], newID)

	maxM := g.m
	if layer == 0 {
		maxM = g.m0
	}
	if len(nb.Neighbors[layer]) <= maxM {
		return
	}
	cands := make([]candidate, 0, len(nb.Neighbors[layer]))
	for _, id := range nb.Neighbors[layer] {
		other, ok := g.nodes[id]
		if !ok {
			continue
		}
		cands = append(cands, candidate{id, Distance(g.metric, nb.Vector, other.Vector)})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist == cands[j].dist {
			return cands[i].id < cands[j].id
		}
		return cands[i].dist < cands[j].dist
	})
	if len(cands) > maxM {
		cands = cands[:maxM]
	}
	pruned := make([]uint64, len(cands))
	for i, c := range cands {
		pruned[i] = c.id
	}
	nb.Neighbors[layer] = pruned
}

// Insert adds vector under id, per spec.md §4.10's insert algorithm:
// draw a top layer, greedy-descend to it, then at each layer down to
// 0 run a bounded search and link M neighbors symmetrically (layer 0)
// or asymmetrically (above). Inserting an id that is already live is
// rejected; a tombstoned id may be inserted again.
func (g *Graph) Insert(ctx context.Context, id uint64, vector []float32) error {
	guard, err := g.enterStack(common.OpStoreVector)
	if err != nil {
		return err
	}
	defer exitStack(guard)

	g.mu.Lock()
	if existing, ok := g.nodes[id]; ok && !existing.Tombstone {
		g.mu.Unlock()
		return verrors.New(verrors.KindAlreadyExists, "vector already indexed")
	}

	level := g.randomLevel()
	n := &node{ID: id, Vector: vector, TopLayer: level, Neighbors: make([][]uint64, level+1)}

	if !g.hasEntry {
		g.nodes[id] = n
		g.entryPoint = id
		g.hasEntry = true
		g.maxLayer = level
		g.mu.Unlock()
		return g.journalMutation("insert", id)
	}

	cur := g.entryPoint
	for layer := g.maxLayer; layer > level; layer-- {
		cur = g.greedyDescend(cur, vector, layer)
	}

	top := level
	if g.maxLayer < top {
		top = g.maxLayer
	}
	for layer := top; layer >= 0; layer-- {
		cands := g.searchLayer(vector, []uint64{cur}, g.efConstruction, layer)
		maxM := g.m
		if layer == 0 {
			maxM = g.m0
		}
		neighbors := selectNeighbors(cands, maxM)
		n.Neighbors[layer] = neighbors
		for _, nb := range neighbors {
			g.linkSymmetric(nb, id, layer)
		}
		if len(cands) > 0 {
			cur = cands[0].id
		}
	}

	g.nodes[id] = n
	if level > g.maxLayer {
		g.maxLayer = level
		g.entryPoint = id
	}
	g.mu.Unlock()
	return g.journalMutation("insert", id)
}

// Delete tombstones id, unlinks its symmetric layer-0 edges, and
// schedules it for the next Compact pass (spec.md §4.10: "mark
// tombstone, unlink symmetric edges at layer 0, schedule a compaction
// pass; searches skip tombstones").
func (g *Graph) Delete(ctx context.Context, id uint64) error {
	guard, err := g.enterStack(common.OpDeleteVector)
	if err != nil {
		return err
	}
	defer exitStack(guard)

	g.mu.Lock()
	n, ok := g.nodes[id]
	if !ok || n.Tombstone {
		g.mu.Unlock()
		return verrors.New(verrors.KindNotFound, "vector not indexed")
	}
	n.Tombstone = true
	if len(n.Neighbors) > 0 {
		for _, nbID := range n.Neighbors[0] {
			nb, ok := g.nodes[nbID]
			if !ok || len(nb.Neighbors) == 0 {
				continue
			}
			filtered := nb.Neighbors[0][:0:0]
			for _, x := range nb.Neighbors[0] {
				if x != id {
					filtered = append(filtered, x)
				}
			}
			nb.Neighbors[0] = filtered
		}
	}
	g.pendingCompaction = append(g.pendingCompaction, id)
	g.mu.Unlock()
	return g.journalMutation("delete", id)
}

// Compact physically removes every tombstoned node scheduled by
// Delete, re-electing an entry point if the current one was removed.
func (g *Graph) Compact() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	removed := 0
	for _, id := range g.pendingCompaction {
		n, ok := g.nodes[id]
		if !ok || !n.Tombstone {
			continue
		}
		delete(g.nodes, id)
		removed++
	}
	g.pendingCompaction = nil
	if removed == 0 {
		return 0
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		g.hasEntry = false
		g.maxLayer = 0
		for id, n := range g.nodes {
			if !g.hasEntry || n.TopLayer > g.maxLayer {
				g.entryPoint = id
				g.maxLayer = n.TopLayer
				g.hasEntry = true
			}
		}
	}
	return removed
}

// Search finds the approximate k nearest neighbors of query, greedy-
// descending from the entry point to layer 0 then running a bounded
// search there with queue size ef (spec.md §4.10).
func (g *Graph) Search(ctx context.Context, query []float32, k, ef int) ([]SearchResult, error) {
	guard, err := g.enterStack(common.OpSearchVector)
	if err != nil {
		return nil, err
	}
	defer exitStack(guard)

	start := g.clock.Now()
	if ef < k {
		ef = k
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.hasEntry {
		return nil, nil
	}

	cur := g.entryPoint
	for layer := g.maxLayer; layer >= 1; layer-- {
		cur = g.greedyDescend(cur, query, layer)
	}
	cands := g.searchLayer(query, []uint64{cur}, ef, 0)

	results := make([]SearchResult, 0, k)
	for _, c := range cands {
		if n, ok := g.nodes[c.id]; !ok || n.Tombstone {
			continue
		}
		results = append(results, SearchResult{VectorID: c.id, Distance: c.dist})
		if len(results) >= k {
			break
		}
	}

	if g.metrics != nil {
		g.metrics.HNSWSearchLatency(ctx, float64(g.clock.Now().Sub(start).Milliseconds()), []common.MetricAttr{
			{Key: common.DistanceMetricKey, Value: metricName(g.metric)},
		})
	}
	return results, nil
}

// Len reports the number of live (non-tombstoned) indexed vectors.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, node := range g.nodes {
		if !node.Tombstone {
			n++
		}
	}
	return n
}
