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

package journal

import (
	"github.com/vexfs/vexfs/internal/verrors"
)

// Txn is one in-flight transaction, per spec.md §3/§4.5. Operations
// stage records in memory; no cache page may be marked clean on the
// basis of a staged record until Commit actually applies it.
type Txn struct {
	mgr     *Manager
	id      uint64
	state   State
	staged  []Record
}

// Begin allocates a new transaction in the Init state.
func (m *Manager) Begin() *Txn {
	m.mu.Lock()
	id := m.hdr.NextTxnID
	m.hdr.NextTxnID++
	m.mu.Unlock()
	return &Txn{mgr: m, id: id, state: StateInit}
}

func (t *Txn) ID() uint64   { return t.id }
func (t *Txn) State() State { return t.state }

// StageBlockWrite records an intended write of data to blockNum,
// without touching the data area yet.
func (t *Txn) StageBlockWrite(blockNum uint64, data []byte) {
	t.staged = append(t.staged, Record{Kind: KindBlockWrite, TxnID: t.id, BlockNum: blockNum, Bytes: append([]byte{}, data...)})
}

// StageBlockAlloc records an intended allocation of blockNum.
func (t *Txn) StageBlockAlloc(blockNum uint64) {
	t.staged = append(t.staged, Record{Kind: KindBlockAlloc, TxnID: t.id, BlockNum: blockNum})
}

// StageBlockFree records an intended free of blockNum.
func (t *Txn) StageBlockFree(blockNum uint64) {
	t.staged = append(t.staged, Record{Kind: KindBlockFree, TxnID: t.id, BlockNum: blockNum})
}

// Prepare flushes the begin record and every staged record to the log
// area and issues a device barrier (spec.md §4.5 step 3). After
// Prepare succeeds the transaction's effects are durable even though
// they have not yet been applied to the data area.
func (t *Txn) Prepare() error {
	if t.state != StateInit {
		return verrors.New(verrors.KindInvalidArgument, "prepare called on transaction not in Init state")
	}

	t.mgr.mu.Lock()
	defer t.mgr.mu.Unlock()

	begin := Record{LSN: t.mgr.hdr.NextLSN, Kind: KindBegin, TxnID: t.id}
	t.mgr.hdr.NextLSN++
	if err := t.mgr.appendLocked(begin); err != nil {
		return err
	}
	for i := range t.staged {
		t.staged[i].LSN = t.mgr.hdr.NextLSN
		t.mgr.hdr.NextLSN++
		if err := t.mgr.appendLocked(t.staged[i]); err != nil {
			return err
		}
	}
	if err := t.mgr.flushBarrier(); err != nil {
		return err
	}
	t.state = StatePrepared
	return nil
}

// Commit writes the commit record, barriers again, then invokes apply
// for every staged record so the cache/data-area can checkpoint them
// (spec.md §4.5 step 4). apply is called in staging order.
func (t *Txn) Commit(apply func(Record) error) error {
	if t.state != StatePrepared {
		return verrors.New(verrors.KindInvalidArgument, "commit called on transaction not in Prepared state")
	}

	t.mgr.mu.Lock()
	commit := Record{LSN: t.mgr.hdr.NextLSN, Kind: KindCommit, TxnID: t.id}
	t.mgr.hdr.NextLSN++
	if err := t.mgr.appendLocked(commit); err != nil {
		t.mgr.mu.Unlock()
		return err
	}
	if err := t.mgr.flushBarrier(); err != nil {
		t.mgr.mu.Unlock()
		return err
	}
	t.mgr.mu.Unlock()

	t.state = StateCommitted
	for _, rec := range t.staged {
		if apply != nil {
			if err := apply(rec); err != nil {
				return verrors.Wrap(verrors.KindInternal, err, "applying committed journal record")
			}
		}
	}
	return nil
}

// Abort writes an abort record and discards the staged records; no
// staged write ever reaches the data area.
func (t *Txn) Abort() error {
	if t.state == StateCommitted || t.state == StateAborted {
		return verrors.New(verrors.KindInvalidArgument, "abort called on a finished transaction")
	}

	t.mgr.mu.Lock()
	defer t.mgr.mu.Unlock()

	rec := Record{LSN: t.mgr.hdr.NextLSN, Kind: KindAbort, TxnID: t.id}
	t.mgr.hdr.NextLSN++
	if err := t.mgr.appendLocked(rec); err != nil {
		return err
	}
	if err := t.mgr.flushBarrier(); err != nil {
		return err
	}
	t.state = StateAborted
	t.staged = nil
	return nil
}
