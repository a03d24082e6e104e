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

// candidate is one node considered during a layer search, paired with
// its distance to the query/reference vector.
type candidate struct {
	id   uint64
	dist float32
}

// minCandidateHeap pops the closest candidate first; used as the
// explicit work queue the greedy layer search drains (spec.md §4.10
// "expressed iteratively with an explicit work queue, never
// recursive").
type minCandidateHeap []candidate

func (h minCandidateHeap) Len() int { return len(h) }
func (h minCandidateHeap) Less(i, j int) bool {
	if h[i].dist == h[j].dist {
		return h[i].id < h[j].id // lower vector-id wins ties, spec.md §4.10
	}
	return h[i].dist < h[j].dist
}
func (h minCandidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *minCandidateHeap) Push(x any)   { *h = append(*h, x.(candidate)) }
func (h *minCandidateHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// maxCandidateHeap pops the farthest candidate first; used to bound
// the running result set to ef entries, evicting the worst when full.
type maxCandidateHeap []candidate

func (h maxCandidateHeap) Len() int { return len(h) }
func (h maxCandidateHeap) Less(i, j int) bool {
	if h[i].dist == h[j].dist {
		return h[i].id > h[j].id
	}
	return h[i].dist > h[j].dist
}
func (h maxCandidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *maxCandidateHeap) Push(x any)   { *h = append(*h, x.(candidate)) }
func (h *maxCandidateHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}
