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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/internal/verrors"
)

func TestReadersCoexist(t *testing.T) {
	m := New()

	g1, err := m.Acquire(InodeScope(1), TypeRead, "a", time.Second)
	require.NoError(t, err)
	defer g1.Unlock()

	g2, err := m.Acquire(InodeScope(1), TypeRead, "b", time.Second)
	require.NoError(t, err)
	defer g2.Unlock()

	assert.Equal(t, 2, m.HeldCount())
}

func TestWriteConflictsWithWrite(t *testing.T) {
	m := New()

	g1, err := m.Acquire(InodeScope(1), TypeWrite, "a", time.Second)
	require.NoError(t, err)
	defer g1.Unlock()

	_, err = m.Acquire(InodeScope(1), TypeWrite, "b", 30*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, verrors.KindLockConflict, verrors.KindOf(err))
}

func TestSameOwnerNeverConflicts(t *testing.T) {
	m := New()

	g1, err := m.Acquire(InodeScope(1), TypeWrite, "a", time.Second)
	require.NoError(t, err)
	defer g1.Unlock()

	g2, err := m.Acquire(InodeScope(1), TypeWrite, "a", time.Second)
	require.NoError(t, err)
	defer g2.Unlock()
}

func TestNonOverlappingRangesDoNotConflict(t *testing.T) {
	m := New()

	g1, err := m.Acquire(FileRangeScope(1, 0, 100), TypeWrite, "a", time.Second)
	require.NoError(t, err)
	defer g1.Unlock()

	g2, err := m.Acquire(FileRangeScope(1, 100, 100), TypeWrite, "b", time.Second)
	require.NoError(t, err)
	defer g2.Unlock()
}

func TestOverlappingRangesConflict(t *testing.T) {
	m := New()

	g1, err := m.Acquire(FileRangeScope(1, 0, 100), TypeWrite, "a", time.Second)
	require.NoError(t, err)
	defer g1.Unlock()

	_, err = m.Acquire(FileRangeScope(1, 50, 100), TypeWrite, "b", 30*time.Millisecond)
	require.Error(t, err)
}

func TestUnlockWakesWaiter(t *testing.T) {
	m := New()
	g1, err := m.Acquire(InodeScope(1), TypeWrite, "a", time.Second)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		g2, err := m.Acquire(InodeScope(1), TypeWrite, "b", time.Second)
		require.NoError(t, err)
		g2.Unlock()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	g1.Unlock()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter was never woken after unlock")
	}
}

func TestUnlockAllForOwner(t *testing.T) {
	m := New()
	_, err := m.Acquire(InodeScope(1), TypeWrite, "a", time.Second)
	require.NoError(t, err)
	_, err = m.Acquire(DirectoryScope(2), TypeWrite, "a", time.Second)
	require.NoError(t, err)

	m.UnlockAllForOwner("a")

	assert.Equal(t, 0, m.HeldCount())
}

func TestAcquireManyOrdersByScope(t *testing.T) {
	m := New()

	guards, err := m.AcquireMany([]Request{
		{Scope: InodeScope(5), Type: TypeWrite},
		{Scope: InodeScope(1), Type: TypeWrite},
	}, "a", time.Second)
	require.NoError(t, err)
	assert.Len(t, guards, 2)

	for _, g := range guards {
		g.Unlock()
	}
}

func TestGlobalScopeConflictsWithEverything(t *testing.T) {
	m := New()
	g1, err := m.Acquire(InodeScope(1), TypeRead, "a", time.Second)
	require.NoError(t, err)
	defer g1.Unlock()

	_, err = m.Acquire(GlobalScope(), TypeWrite, "b", 30*time.Millisecond)
	require.Error(t, err)
}

func TestRecoverableMutexRecoversFromPanic(t *testing.T) {
	rm := NewRecoverableMutex(10, "counter")

	err := rm.Do(func(v *int) error {
		*v = 99
		panic("boom")
	})
	require.Error(t, err)
	assert.True(t, rm.Poisoned())

	var seen int
	err = rm.Do(func(v *int) error {
		seen = *v
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 99, seen)
	assert.False(t, rm.Poisoned())
}

func TestRecoverableMutexTryDo(t *testing.T) {
	rm := NewRecoverableMutex(1, "counter")
	var wg sync.WaitGroup
	wg.Add(1)

	release := make(chan struct{})
	go func() {
		defer wg.Done()
		_ = rm.Do(func(v *int) error {
			<-release
			return nil
		})
	}()

	time.Sleep(20 * time.Millisecond)
	ok, err := rm.TryDo(func(v *int) error { return nil })
	assert.False(t, ok)
	assert.NoError(t, err)

	close(release)
	wg.Wait()
}
