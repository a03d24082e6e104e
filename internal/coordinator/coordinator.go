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

// Package coordinator implements spec.md §4.12's cross-layer unified
// transaction: two-phase commit over the {filesystem, vector store,
// graph} participants, a Lamport timestamp per operation plus a
// vector clock per participant kept in the coordinator's in-memory
// transaction table, and deadline/cancel-driven abort. Neither clock is
// written to the journal: the durable commit decision record does not
// carry them. In-flight transactions
// are kept coordinator-private (never returned to or mutable by a
// caller), resolving spec.md §9's open question about the original
// implementation's public exposure of its commit-tracking table.
// Grounded on internal/storage/journal's begin/stage/prepare/commit
// protocol, generalized from single-participant block journaling to
// a multi-participant vote.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/vexfs/vexfs/clock"
	"github.com/vexfs/vexfs/internal/storage/journal"
	"github.com/vexfs/vexfs/internal/verrors"
)

// Isolation is the requested isolation level for a unified
// transaction (spec.md §4.12; default ReadCommitted).
type Isolation int

const (
	IsolationReadUncommitted Isolation = iota
	IsolationReadCommitted
	IsolationRepeatableRead
	IsolationSerializable
)

// DefaultIsolation is the level for callers with no stronger
// requirement to pass. BeginUnifiedTransaction stores whatever level it
// is given and does not substitute DefaultIsolation for the zero value,
// which is IsolationReadUncommitted.
const DefaultIsolation = IsolationReadCommitted

// Participant names one of the unified transaction's cohorts.
type Participant string

const (
	ParticipantFilesystem  Participant = "filesystem"
	ParticipantVectorStore Participant = "vector_store"
	ParticipantGraph       Participant = "graph"
)

// State is a unified transaction's lifecycle state.
type State int

const (
	StateActive State = iota
	StatePrepared
	StateCommitted
	StateAborted
)

const defaultTimeout = 30 * time.Second

// Operation is one staged unified operation, carrying its Lamport
// timestamp (spec.md §4.12 "a Lamport timestamp per operation").
type Operation struct {
	Participant Participant
	Op          string
	Payload     []byte
	Meta        map[string]string
	Lamport     uint64
}

// ParticipantHandler is how the coordinator drives one participant
// through 2PC. Each participant stages ops into its own private
// journal (§4.5) without committing until told to.
type ParticipantHandler interface {
	Stage(ctx context.Context, txID uint64, op Operation) error
	Vote(ctx context.Context, txID uint64) (bool, error)
	Commit(ctx context.Context, txID uint64) error
	Abort(ctx context.Context, txID uint64) error
}

// transaction is kept entirely inside the coordinator; nothing
// outside this package ever holds a pointer to one.
type transaction struct {
	id           uint64
	participants []Participant
	isolation    Isolation
	deadline     time.Time
	state        State
	ops          []Operation
	vectorClock  map[Participant]uint64
}

// Coordinator drives unified transactions across registered
// participants.
type Coordinator struct {
	clock    clock.Clock
	handlers map[Participant]ParticipantHandler
	jm       *journal.Manager // coordinator's own durable decision log; optional

	mu       sync.Mutex
	active   map[uint64]*transaction // private: spec.md §9 open question
	nextID   uint64
	lamport  uint64
}

// New constructs a Coordinator driving handlers, optionally logging
// commit decisions through jm.
func New(handlers map[Participant]ParticipantHandler, clk clock.Clock, jm *journal.Manager) *Coordinator {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Coordinator{
		clock:    clk,
		handlers: handlers,
		jm:       jm,
		active:   make(map[uint64]*transaction),
	}
}

// BeginUnifiedTransaction starts a unified transaction across
// participants with the given isolation level and timeout (<=0 uses
// the 30s default, spec.md §5).
func (c *Coordinator) BeginUnifiedTransaction(ctx context.Context, participants []Participant, isolation Isolation, timeout time.Duration) (uint64, error) {
	for _, p := range participants {
		if _, ok := c.handlers[p]; !ok {
			return 0, verrors.New(verrors.KindInvalidArgument, "unregistered participant").WithPath(string(p))
		}
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	vc := make(map[Participant]uint64, len(participants))
	for _, p := range participants {
		vc[p] = 0
	}
	c.active[id] = &transaction{
		id:           id,
		participants: append([]Participant{}, participants...),
		isolation:    isolation,
		deadline:     c.clock.Now().Add(timeout),
		state:        StateActive,
		vectorClock:  vc,
	}
	return id, nil
}

func (c *Coordinator) lookup(id uint64) (*transaction, error) {
	tx, ok := c.active[id]
	if !ok {
		return nil, verrors.New(verrors.KindNotFound, "unknown unified transaction")
	}
	return tx, nil
}

// expired reports whether ctx has been cancelled or tx's deadline has
// passed. It changes nothing itself; the caller aborts tx when it
// returns true.
func (c *Coordinator) expired(ctx context.Context, tx *transaction) bool {
	if ctx.Err() != nil {
		return true
	}
	return c.clock.Now().After(tx.deadline)
}

// AddUnifiedOperation stages op with participant, without committing.
// Each call advances the coordinator's Lamport clock and the
// transaction's per-participant vector clock entry (spec.md §4.12).
func (c *Coordinator) AddUnifiedOperation(ctx context.Context, txID uint64, participant Participant, op string, payload []byte, meta map[string]string) error {
	c.mu.Lock()
	tx, err := c.lookup(txID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if tx.state != StateActive {
		c.mu.Unlock()
		return verrors.New(verrors.KindInvalidArgument, "transaction is not active")
	}
	if c.expired(ctx, tx) {
		tx.state = StateAborted
		c.mu.Unlock()
		c.abortParticipants(ctx, tx)
		return verrors.New(verrors.KindTimeout, "unified transaction deadline exceeded")
	}
	handler, ok := c.handlers[participant]
	if !ok {
		c.mu.Unlock()
		return verrors.New(verrors.KindInvalidArgument, "unregistered participant").WithPath(string(participant))
	}
	c.lamport++
	tx.vectorClock[participant]++
	staged := Operation{Participant: participant, Op: op, Payload: payload, Meta: meta, Lamport: c.lamport}
	tx.ops = append(tx.ops, staged)
	c.mu.Unlock()

	if err := handler.Stage(ctx, txID, staged); err != nil {
		return verrors.Wrap(verrors.KindInternal, err, "staging unified operation").WithPath(string(participant))
	}
	return nil
}

// Prepare polls every participant's vote; any NO aborts the whole
// transaction (spec.md §4.12 step 3).
func (c *Coordinator) Prepare(ctx context.Context, txID uint64) error {
	c.mu.Lock()
	tx, err := c.lookup(txID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if tx.state != StateActive {
		c.mu.Unlock()
		return verrors.New(verrors.KindInvalidArgument, "transaction is not active")
	}
	participants := append([]Participant{}, tx.participants...)
	c.mu.Unlock()

	for _, p := range participants {
		handler := c.handlers[p]
		yes, err := handler.Vote(ctx, txID)
		if err != nil || !yes {
			c.mu.Lock()
			tx.state = StateAborted
			c.mu.Unlock()
			c.abortParticipants(ctx, tx)
			if err != nil {
				return verrors.Wrap(verrors.KindInternal, err, "participant vote failed").WithPath(string(p))
			}
			return verrors.New(verrors.KindLockConflict, "participant voted no").WithPath(string(p))
		}
	}

	c.mu.Lock()
	tx.state = StatePrepared
	c.mu.Unlock()
	return nil
}

// Commit writes the coordinator's durable commit decision, then
// instructs every participant to commit (spec.md §4.12 step 4: "on
// crash the coordinator's decision record is authoritative").
func (c *Coordinator) Commit(ctx context.Context, txID uint64) error {
	c.mu.Lock()
	tx, err := c.lookup(txID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if tx.state != StatePrepared {
		c.mu.Unlock()
		return verrors.New(verrors.KindInvalidArgument, "transaction is not prepared")
	}
	participants := append([]Participant{}, tx.participants...)
	c.mu.Unlock()

	if err := c.logDecision(txID, "commit"); err != nil {
		return err
	}

	for _, p := range participants {
		if err := c.handlers[p].Commit(ctx, txID); err != nil {
			return verrors.Wrap(verrors.KindInternal, err, "participant commit failed").WithPath(string(p))
		}
	}

	c.mu.Lock()
	tx.state = StateCommitted
	delete(c.active, txID)
	c.mu.Unlock()
	return nil
}

// Abort instructs every participant to abort and marks the
// transaction Aborted.
func (c *Coordinator) Abort(ctx context.Context, txID uint64) error {
	c.mu.Lock()
	tx, err := c.lookup(txID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	tx.state = StateAborted
	c.mu.Unlock()

	c.abortParticipants(ctx, tx)

	c.mu.Lock()
	delete(c.active, txID)
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) abortParticipants(ctx context.Context, tx *transaction) {
	for _, p := range tx.participants {
		if handler, ok := c.handlers[p]; ok {
			_ = handler.Abort(ctx, tx.id)
		}
	}
}

// State reports a transaction's current lifecycle state.
func (c *Coordinator) State(txID uint64) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx, err := c.lookup(txID)
	if err != nil {
		return 0, err
	}
	return tx.state, nil
}

func (c *Coordinator) logDecision(txID uint64, decision string) error {
	if c.jm == nil {
		return nil
	}
	txn := c.jm.Begin()
	txn.StageBlockWrite(0, []byte(decision))
	if err := txn.Prepare(); err != nil {
		return err
	}
	return txn.Commit(nil)
}
