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
	"encoding/binary"

	"github.com/vexfs/vexfs/internal/verrors"
)

// Recover replays the journal on mount (spec.md §4.5 "Crash
// recovery"): every committed transaction not yet checkpointed is
// redone via apply, in commit order; any transaction whose begin
// record was staged but never committed (a crash between prepare and
// commit) is discarded. Recovery is idempotent: Base only ever
// advances past a region once it has been fully checkpointed, so
// replaying this same log twice without an intervening checkpoint
// yields the same result both times.
func (m *Manager) Recover(apply func(Record) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	txns := make(map[uint64][]Record)
	committed := make(map[uint64]bool)
	order := make([]uint64, 0)

	off := m.hdr.Base
	for off < m.hdr.Head {
		head := m.readRing(off, 29) // fixed header through length field
		if len(head) < 29 {
			break
		}
		blen := int(binary.LittleEndian.Uint32(head[25:29]))
		total := 29 + blen + 4
		raw := m.readRing(off, total)
		rec, n, err := decodeRecord(raw)
		if err != nil {
			// A partially-written tail is expected after a crash mid-append;
			// stop scanning rather than treating it as corruption.
			break
		}

		switch rec.Kind {
		case KindBegin:
			txns[rec.TxnID] = nil
		case KindBlockWrite, KindBlockAlloc, KindBlockFree:
			txns[rec.TxnID] = append(txns[rec.TxnID], rec)
		case KindCommit:
			order = append(order, rec.TxnID)
			committed[rec.TxnID] = true
		case KindAbort:
			delete(txns, rec.TxnID)
		case KindCheckpoint:
			// no-op during replay; Base already reflects prior checkpoints
		}
		off += uint64(n)
	}

	for _, txnID := range order {
		if !committed[txnID] {
			continue // prepared but never committed: discard
		}
		for _, rec := range txns[txnID] {
			if apply == nil {
				continue
			}
			if err := apply(rec); err != nil {
				return verrors.Wrap(verrors.KindRecoveryFailed, err, "replaying committed journal record")
			}
		}
	}
	return nil
}
