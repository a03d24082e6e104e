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

package fslock

import (
	"fmt"
	"sync"

	"github.com/vexfs/vexfs/internal/logger"
)

// RecoverableMutex wraps a value of type T with a mutex that, unlike
// Go's plain sync.Mutex, tracks poisoning the way the original
// implementation's Mutex does: if the critical section panics, the
// mutex is marked poisoned, and the NEXT call recovers by logging and
// proceeding with the last value the critical section left behind
// (possibly partially updated). This is deliberately opt-in per call
// site — most of the filesystem's locking uses a plain sync.Mutex/
// sync.RWMutex and a panic there crashes the goroutine normally, exactly
// as a genuinely broken invariant should. Use RecoverableMutex only where
// masking a poisoned state and continuing is an explicit, reviewed
// decision. No package in this module uses it outside its own tests;
// the block cache, for one, guards its LRU state with a sync.Mutex.
type RecoverableMutex[T any] struct {
	mu       sync.Mutex
	value    T
	name     string
	poisoned bool
}

// NewRecoverableMutex constructs a RecoverableMutex holding value, named
// for log messages.
func NewRecoverableMutex[T any](value T, name string) *RecoverableMutex[T] {
	return &RecoverableMutex[T]{value: value, name: name}
}

// Do runs f with exclusive access to the protected value. If a previous
// call panicked, this call first logs the recovery and clears the
// poisoned flag before running f. If f itself panics, the mutex is
// marked poisoned and Do returns a non-nil error describing the panic
// instead of propagating it.
func (r *RecoverableMutex[T]) Do(f func(*T) error) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.poisoned {
		logger.Warnf("fslock: recovering poisoned mutex %q", r.name)
		r.poisoned = false
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.poisoned = true
			logger.Errorf("fslock: mutex %q poisoned by panic: %v", r.name, rec)
			err = fmt.Errorf("recoverable mutex %q poisoned: %v", r.name, rec)
		}
	}()

	return f(&r.value)
}

// TryDo behaves like Do but returns immediately with ok=false if the
// mutex is currently held by another call.
func (r *RecoverableMutex[T]) TryDo(f func(*T) error) (ok bool, err error) {
	if !r.mu.TryLock() {
		return false, nil
	}
	defer r.mu.Unlock()

	if r.poisoned {
		logger.Warnf("fslock: recovering poisoned mutex %q", r.name)
		r.poisoned = false
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.poisoned = true
			logger.Errorf("fslock: mutex %q poisoned by panic: %v", r.name, rec)
			err = fmt.Errorf("recoverable mutex %q poisoned: %v", r.name, rec)
		}
	}()

	return true, f(&r.value)
}

// Poisoned reports whether the mutex is currently in the poisoned state.
func (r *RecoverableMutex[T]) Poisoned() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.poisoned
}
