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

// Package fslock is the fine-grained lock manager that serializes all
// mutation of inodes, directories, and file byte ranges. Every externally
// initiated operation acquires its locks here, in ascending
// (scope-kind, inode#, range-start) order, before touching the cache or
// the journal, and releases them (directly or via unlock_all_for_owner)
// once the operation completes.
package fslock

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vexfs/vexfs/internal/verrors"
)

type heldLock struct {
	id    uint64
	scope Scope
	typ   Type
	owner string
}

// Manager tracks all currently held locks and arbitrates new requests
// against them.
type Manager struct {
	mu     sync.Mutex
	cond   *sync.Cond
	held   []*heldLock
	nextID uint64
}

// New constructs an empty Manager.
func New() *Manager {
	m := &Manager{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Guard releases the lock it was returned for. Guard.Unlock must be
// called exactly once, typically via defer immediately after a
// successful Acquire/AcquireMany call — this is the Go
// analogue of the RAII guard spec.md §4.7 calls for.
type Guard struct {
	m  *Manager
	id uint64
}

// Unlock releases the lock associated with this Guard.
func (g *Guard) Unlock() {
	g.m.release(g.id)
}

func (m *Manager) hasConflictLocked(scope Scope, typ Type, owner string) bool {
	for _, h := range m.held {
		if h.owner == owner {
			continue // same owner never self-conflicts, any type, any scope
		}
		if !h.scope.overlaps(scope) {
			continue
		}
		if h.typ == TypeRead && typ == TypeRead {
			continue // readers coexist
		}
		return true
	}
	return false
}

// Acquire blocks until scope can be locked with typ on behalf of owner,
// or until timeout elapses, in which case it returns a
// verrors.KindLockConflict error rather than blocking forever
// (spec.md §4.7). A zero timeout means "wait indefinitely".
func (m *Manager) Acquire(scope Scope, typ Type, owner string, timeout time.Duration) (*Guard, error) {
	var deadline time.Time
	hasDeadline := timeout > 0
	if hasDeadline {
		deadline = time.Now().Add(timeout)
		timer := time.AfterFunc(timeout, func() {
			m.mu.Lock()
			m.cond.Broadcast()
			m.mu.Unlock()
		})
		defer timer.Stop()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for m.hasConflictLocked(scope, typ, owner) {
		if hasDeadline && !time.Now().Before(deadline) {
			return nil, verrors.New(verrors.KindLockConflict,
				fmt.Sprintf("timed out acquiring %s lock on %s scope (inode=%d)", typeName(typ), scope.Kind, scope.InodeID))
		}
		m.cond.Wait()
	}

	m.nextID++
	lock := &heldLock{id: m.nextID, scope: scope, typ: typ, owner: owner}
	m.held = append(m.held, lock)
	return &Guard{m: m, id: lock.id}, nil
}

// AcquireMany acquires every (scope, typ) pair for owner, sorting by
// Scope.Less first so callers automatically get the ascending-order
// acquisition spec.md §4.7 requires for deadlock avoidance. On any
// failure, every already-acquired lock in this batch is released before
// the error is returned.
func (m *Manager) AcquireMany(requests []Request, owner string, timeout time.Duration) ([]*Guard, error) {
	ordered := append([]Request{}, requests...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Scope.Less(ordered[j].Scope) })

	guards := make([]*Guard, 0, len(ordered))
	for _, req := range ordered {
		g, err := m.Acquire(req.Scope, req.Type, owner, timeout)
		if err != nil {
			for _, held := range guards {
				held.Unlock()
			}
			return nil, err
		}
		guards = append(guards, g)
	}
	return guards, nil
}

// Request pairs a Scope with the Type of lock needed on it, for
// AcquireMany.
type Request struct {
	Scope Scope
	Type  Type
}

func (m *Manager) release(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, h := range m.held {
		if h.id == id {
			m.held = append(m.held[:i], m.held[i+1:]...)
			break
		}
	}
	m.cond.Broadcast()
}

// UnlockAllForOwner releases every lock currently held by owner,
// e.g. when an operation aborts or its owning transaction rolls back.
func (m *Manager) UnlockAllForOwner(owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.held[:0]
	for _, h := range m.held {
		if h.owner != owner {
			kept = append(kept, h)
		}
	}
	m.held = kept
	m.cond.Broadcast()
}

// HeldCount returns the number of currently held locks, for diagnostics
// and tests.
func (m *Manager) HeldCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.held)
}

func typeName(t Type) string {
	switch t {
	case TypeWrite:
		return "write"
	case TypeAdvisory:
		return "advisory"
	default:
		return "read"
	}
}
