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

// Package panichandler bounds the blast radius of a panic surfacing from
// deep in the storage/vector/coordinator call stack: it records what
// happened, runs registered recovery callbacks, and aborts the process
// outright once too many panics have occurred to trust continued
// operation. Go has no catch_unwind equivalent for cross-goroutine
// panics, so recovery only ever applies within the goroutine that calls
// Guard.Execute; a panic propagating up any other goroutine's stack still
// crashes the process (Go's recover only unwinds its own goroutine).
package panichandler

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/vexfs/vexfs/internal/logger"
)

// maxPanicsBeforeAbort mirrors the original implementation's hard ceiling:
// past this many recorded panics, the process aborts rather than keep
// attempting recovery.
const maxPanicsBeforeAbort = 5

// maxPanicLogEntries bounds the ring buffer of recorded panics.
const maxPanicLogEntries = 100

// Info captures one panic occurrence.
type Info struct {
	Message     string
	Location    string
	GoroutineID string
	Timestamp   time.Time
	Backtrace   string
}

// Stats summarizes the Registry's recorded state.
type Stats struct {
	TotalPanics        int
	RecentPanics       []Info
	RecoveryInProgress bool
}

// Registry records panics, runs recovery callbacks, and enforces the
// abort ceiling. The zero value is not usable; construct with New.
type Registry struct {
	mu                 sync.Mutex
	panicCount         int
	log                []Info
	recoveryInProgress bool
	callbacks          []func()

	abortFn func() // overridable in tests
}

// New constructs a Registry.
func New() *Registry {
	return &Registry{abortFn: func() { os.Exit(2) }}
}

// RegisterRecoveryCallback adds a callback invoked, in registration order,
// each time a handled panic leaves the count below the abort ceiling.
// Callbacks are not run for the panic that reaches the ceiling, nor while
// an earlier recovery is still running.
func (r *Registry) RegisterRecoveryCallback(cb func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

// handle records the panic, logs it, runs recovery callbacks, and aborts
// the process if the ceiling has been reached.
func (r *Registry) handle(recovered interface{}) {
	info := Info{
		Message:     fmt.Sprint(recovered),
		Location:    callerLocation(3),
		GoroutineID: goroutineHeader(),
		Timestamp:   time.Now(),
		Backtrace:   string(debug.Stack()),
	}

	r.mu.Lock()
	r.log = append(r.log, info)
	if len(r.log) > maxPanicLogEntries {
		r.log = r.log[len(r.log)-maxPanicLogEntries:]
	}
	r.panicCount++
	count := r.panicCount
	r.mu.Unlock()

	logger.Errorf("panichandler: recovered panic %q at %s (count=%d)", info.Message, info.Location, count)

	if count >= maxPanicsBeforeAbort {
		logger.Errorf("panichandler: too many panics (%d), aborting", count)
		r.abortFn()
		return
	}

	r.attemptRecovery()
}

func (r *Registry) attemptRecovery() {
	r.mu.Lock()
	if r.recoveryInProgress {
		r.mu.Unlock()
		logger.Warnf("panichandler: recovery already in progress, skipping")
		return
	}
	r.recoveryInProgress = true
	callbacks := append([]func(){}, r.callbacks...)
	r.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}

	r.mu.Lock()
	r.recoveryInProgress = false
	r.mu.Unlock()
}

// Stats returns a snapshot of the Registry's current state.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	recent := append([]Info{}, r.log...)
	return Stats{TotalPanics: r.panicCount, RecentPanics: recent, RecoveryInProgress: r.recoveryInProgress}
}

// ResetPanicCount clears the recorded panic count, for use after an
// operator-confirmed successful recovery.
func (r *Registry) ResetPanicCount() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panicCount = 0
}

// Healthy reports whether the Registry has recorded zero panics and has
// no recovery in flight.
func (r *Registry) Healthy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.panicCount == 0 && !r.recoveryInProgress
}

func callerLocation(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func goroutineHeader() string {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
