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

// Package stackmon estimates per-goroutine stack usage for the vector/ANN
// call path, which recurses through HNSW graph layers and must stay under
// the FUSE request-handler stack budget. Go gives no portable way to read
// the actual machine stack pointer from ordinary code, so depth is tracked
// by explicit bookkeeping: each traversal frame declares its estimated
// stack cost on Enter and the monitor accumulates it per goroutine.
package stackmon

import (
	"fmt"
	"sync"

	"github.com/vexfs/vexfs/internal/verrors"
	"github.com/vexfs/vexfs/internal/logger"
)

// defaultFrameCostBytes is the assumed stack footprint of one traversal
// frame when the caller doesn't supply a more precise estimate.
const defaultFrameCostBytes = 256

// Monitor enforces a warn threshold and a hard limit on estimated
// per-goroutine stack usage.
type Monitor struct {
	limitBytes   int
	warningBytes int

	mu     sync.Mutex
	depths map[int64]int
}

// New constructs a Monitor. limitBytes must be greater than warningBytes;
// cfg.ValidateConfig already enforces this on the parsed configuration.
func New(limitBytes, warningBytes int) *Monitor {
	return &Monitor{
		limitBytes:   limitBytes,
		warningBytes: warningBytes,
		depths:       make(map[int64]int),
	}
}

// Guard releases the stack budget reserved by a matching Enter call.
type Guard struct {
	m        *Monitor
	gid      int64
	op       string
	reserved int
}

// Enter reserves costBytes of estimated stack budget for the named
// operation on the calling goroutine, returning verrors.KindStackOverflow
// if doing so would exceed the configured limit. Callers must defer
// guard.Exit() to release the reservation.
func (m *Monitor) Enter(op string, costBytes int) (*Guard, error) {
	if costBytes <= 0 {
		costBytes = defaultFrameCostBytes
	}
	gid := goroutineID()

	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.depths[gid]
	next := current + costBytes
	if next > m.limitBytes {
		return nil, verrors.New(verrors.KindStackOverflow,
			fmt.Sprintf("stack budget exceeded entering %q: %d+%d > %d", op, current, costBytes, m.limitBytes))
	}
	if next > m.warningBytes && current <= m.warningBytes {
		logger.Warnf("stackmon: %q pushed estimated stack usage to %d bytes (warning threshold %d)", op, next, m.warningBytes)
	}
	m.depths[gid] = next

	return &Guard{m: m, gid: gid, op: op, reserved: costBytes}, nil
}

// Exit releases the stack budget reserved by the matching Enter call. It is
// safe to call at most once per Guard; callers should defer it immediately
// after a successful Enter.
func (g *Guard) Exit() {
	if g == nil {
		return
	}
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	g.m.depths[g.gid] -= g.reserved
	if g.m.depths[g.gid] <= 0 {
		delete(g.m.depths, g.gid)
	}
}

// CurrentBytes returns the calling goroutine's current estimated stack
// reservation, for tests and diagnostics.
func (m *Monitor) CurrentBytes() int {
	gid := goroutineID()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.depths[gid]
}
