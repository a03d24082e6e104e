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

package panichandler

import (
	"sync"
	"time"

	"github.com/vexfs/vexfs/internal/logger"
)

// Watchdog is a heartbeat-driven hang detector: any long-running loop
// (the journal checkpoint loop, the coordinator's commit pump) calls
// Heartbeat periodically, and a background ticker fires recoveryCallback
// if too much time elapses between heartbeats.
type Watchdog struct {
	mu            sync.Mutex
	lastHeartbeat time.Time
	timeout       time.Duration
	recovery      func()

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatchdog constructs a Watchdog with the given hang-detection timeout
// and recovery callback (may be nil).
func NewWatchdog(timeout time.Duration, recovery func()) *Watchdog {
	return &Watchdog{
		lastHeartbeat: time.Now(),
		timeout:       timeout,
		recovery:      recovery,
		stopCh:        make(chan struct{}),
	}
}

// Start launches the background ticker goroutine. Callers must call Stop
// when done to avoid leaking it.
func (w *Watchdog) Start() {
	go w.run()
}

func (w *Watchdog) run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.checkTimeout()
		}
	}
}

func (w *Watchdog) checkTimeout() {
	w.mu.Lock()
	elapsed := time.Since(w.lastHeartbeat)
	timedOut := elapsed > w.timeout
	if timedOut {
		w.lastHeartbeat = time.Now()
	}
	recovery := w.recovery
	w.mu.Unlock()

	if !timedOut {
		return
	}
	logger.Errorf("panichandler: watchdog timeout after %s, system may be hung", elapsed)
	if recovery != nil {
		recovery()
	}
}

// Heartbeat records that the monitored loop is still making progress.
func (w *Watchdog) Heartbeat() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastHeartbeat = time.Now()
}

// Stop halts the background ticker goroutine. Safe to call more than once.
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}
