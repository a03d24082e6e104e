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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardExecuteReturnsValueOnSuccess(t *testing.T) {
	registry := New()
	guard := NewGuard("test", registry)

	result, err := Execute(guard, func() int { return 42 })

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.True(t, registry.Healthy())
}

func TestGuardExecuteRecoversPanic(t *testing.T) {
	registry := New()
	guard := NewGuard("test", registry)

	result, err := Execute(guard, func() int {
		panic("boom")
	})

	require.Error(t, err)
	assert.Equal(t, 0, result)
	assert.Contains(t, err.Error(), "boom")

	stats := registry.Stats()
	assert.Equal(t, 1, stats.TotalPanics)
	assert.Equal(t, "boom", stats.RecentPanics[0].Message)
}

func TestRegistryAbortsAfterCeiling(t *testing.T) {
	registry := New()
	var aborted int32
	registry.abortFn = func() { atomic.StoreInt32(&aborted, 1) }
	guard := NewGuard("test", registry)

	for i := 0; i < maxPanicsBeforeAbort; i++ {
		_, _ = Execute(guard, func() int { panic("boom") })
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&aborted))
}

func TestRecoveryCallbacksRunOnPanic(t *testing.T) {
	registry := New()
	guard := NewGuard("test", registry)
	var ran int32
	registry.RegisterRecoveryCallback(func() { atomic.AddInt32(&ran, 1) })

	_, _ = Execute(guard, func() int { panic("boom") })

	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

func TestResetPanicCount(t *testing.T) {
	registry := New()
	guard := NewGuard("test", registry)
	_, _ = Execute(guard, func() int { panic("boom") })

	registry.ResetPanicCount()

	assert.True(t, registry.Healthy())
}

func TestWatchdogFiresRecoveryOnTimeout(t *testing.T) {
	recovered := make(chan struct{}, 1)
	wd := NewWatchdog(20*time.Millisecond, func() {
		select {
		case recovered <- struct{}{}:
		default:
		}
	})
	wd.Start()
	defer wd.Stop()

	select {
	case <-recovered:
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not fire recovery callback")
	}
}

func TestWatchdogHeartbeatPreventsTimeout(t *testing.T) {
	fired := int32(0)
	wd := NewWatchdog(50*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	wd.Start()
	defer wd.Stop()

	for i := 0; i < 5; i++ {
		wd.Heartbeat()
		time.Sleep(20 * time.Millisecond)
	}

	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}
