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

package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/clock"
)

type fakeHandler struct {
	mu       sync.Mutex
	vote     bool
	staged   []Operation
	commits  int
	aborts   int
	voteErr  error
}

func newFakeHandler(vote bool) *fakeHandler { return &fakeHandler{vote: vote} }

func (f *fakeHandler) Stage(ctx context.Context, txID uint64, op Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staged = append(f.staged, op)
	return nil
}

func (f *fakeHandler) Vote(ctx context.Context, txID uint64) (bool, error) {
	return f.vote, f.voteErr
}

func (f *fakeHandler) Commit(ctx context.Context, txID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	return nil
}

func (f *fakeHandler) Abort(ctx context.Context, txID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborts++
	return nil
}

func newTestCoordinator(fsVote, vecVote, graphVote bool) (*Coordinator, map[Participant]*fakeHandler) {
	fs := newFakeHandler(fsVote)
	vec := newFakeHandler(vecVote)
	graph := newFakeHandler(graphVote)
	handlers := map[Participant]ParticipantHandler{
		ParticipantFilesystem:  fs,
		ParticipantVectorStore: vec,
		ParticipantGraph:       graph,
	}
	c := New(handlers, clock.RealClock{}, nil)
	return c, map[Participant]*fakeHandler{
		ParticipantFilesystem:  fs,
		ParticipantVectorStore: vec,
		ParticipantGraph:       graph,
	}
}

func TestUnanimousYesCommitsAllParticipants(t *testing.T) {
	c, handlers := newTestCoordinator(true, true, true)
	ctx := context.Background()

	txID, err := c.BeginUnifiedTransaction(ctx, []Participant{ParticipantFilesystem, ParticipantVectorStore}, DefaultIsolation, 0)
	require.NoError(t, err)

	require.NoError(t, c.AddUnifiedOperation(ctx, txID, ParticipantFilesystem, "write", []byte("a"), nil))
	require.NoError(t, c.AddUnifiedOperation(ctx, txID, ParticipantVectorStore, "store_vector", []byte("b"), nil))

	require.NoError(t, c.Prepare(ctx, txID))
	require.NoError(t, c.Commit(ctx, txID))

	assert.Equal(t, 1, handlers[ParticipantFilesystem].commits)
	assert.Equal(t, 1, handlers[ParticipantVectorStore].commits)

	_, err = c.State(txID)
	require.Error(t, err) // committed transactions are removed from the private table
}

func TestSingleNoVoteAbortsAll(t *testing.T) {
	c, handlers := newTestCoordinator(true, false, true)
	ctx := context.Background()

	txID, err := c.BeginUnifiedTransaction(ctx, []Participant{ParticipantFilesystem, ParticipantVectorStore}, DefaultIsolation, 0)
	require.NoError(t, err)
	require.NoError(t, c.AddUnifiedOperation(ctx, txID, ParticipantFilesystem, "write", nil, nil))

	err = c.Prepare(ctx, txID)
	require.Error(t, err)

	assert.Equal(t, 1, handlers[ParticipantFilesystem].aborts)
	assert.Equal(t, 1, handlers[ParticipantVectorStore].aborts)
}

func TestExpiredDeadlineAbortsOperation(t *testing.T) {
	c, handlers := newTestCoordinator(true, true, true)
	ctx := context.Background()

	txID, err := c.BeginUnifiedTransaction(ctx, []Participant{ParticipantFilesystem}, DefaultIsolation, time.Nanosecond)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	err = c.AddUnifiedOperation(ctx, txID, ParticipantFilesystem, "write", nil, nil)
	require.Error(t, err)
	assert.Equal(t, 1, handlers[ParticipantFilesystem].aborts)
}

func TestBeginRejectsUnregisteredParticipant(t *testing.T) {
	c, _ := newTestCoordinator(true, true, true)
	_, err := c.BeginUnifiedTransaction(context.Background(), []Participant{"unknown"}, DefaultIsolation, 0)
	require.Error(t, err)
}

func TestActiveTransactionsArePrivate(t *testing.T) {
	c, _ := newTestCoordinator(true, true, true)
	txID, err := c.BeginUnifiedTransaction(context.Background(), []Participant{ParticipantFilesystem}, DefaultIsolation, 0)
	require.NoError(t, err)

	state, err := c.State(txID)
	require.NoError(t, err)
	assert.Equal(t, StateActive, state)
	// No exported accessor returns the transaction struct itself, only
	// its coarse State — the coordinator never hands out a mutable
	// reference to its commit-tracking table.
}
