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
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/internal/storage/block"
)

func newTestJournal(t *testing.T) (*Manager, *block.Manager) {
	t.Helper()
	fs := afero.NewMemMapFs()
	dev, err := block.OpenFile(fs, "/dev/vexfs0", 4096*64)
	require.NoError(t, err)
	bm := block.NewManager(dev, 4096, 64, false, 64)
	jm, err := Open(bm, 0, 16)
	require.NoError(t, err)
	return jm, bm
}

func TestCommitAppliesStagedWrites(t *testing.T) {
	jm, bm := newTestJournal(t)
	txn := jm.Begin()
	txn.StageBlockWrite(20, []byte("payload"))
	require.NoError(t, txn.Prepare())

	applied := 0
	require.NoError(t, txn.Commit(func(rec Record) error {
		applied++
		return bm.WriteBlocks(rec.BlockNum, [][]byte{rec.Bytes}, block.TagData)
	}))
	assert.Equal(t, 1, applied)
	assert.Equal(t, StateCommitted, txn.State())

	got, err := bm.ReadBlocks(20, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got[0][:7])
}

func TestAbortDiscardsStagedWrites(t *testing.T) {
	jm, bm := newTestJournal(t)
	txn := jm.Begin()
	txn.StageBlockWrite(21, []byte("nope"))
	require.NoError(t, txn.Prepare())
	require.NoError(t, txn.Abort())

	got, err := bm.ReadBlocks(21, 1)
	require.NoError(t, err)
	assert.NotEqual(t, []byte("nope"), got[0][:4])
}

func TestRecoveryRedoesCommittedNotCheckpointed(t *testing.T) {
	jm, bm := newTestJournal(t)
	txn := jm.Begin()
	txn.StageBlockWrite(30, []byte("durable"))
	require.NoError(t, txn.Prepare())
	require.NoError(t, txn.Commit(func(Record) error { return nil })) // crash: never actually applied

	replayed := 0
	err := jm.Recover(func(rec Record) error {
		replayed++
		return bm.WriteBlocks(rec.BlockNum, [][]byte{rec.Bytes}, block.TagData)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, replayed)

	got, err := bm.ReadBlocks(30, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("durable"), got[0][:7])
}

func TestRecoveryDiscardsPreparedNotCommitted(t *testing.T) {
	jm, _ := newTestJournal(t)
	txn := jm.Begin()
	txn.StageBlockWrite(31, []byte("halfway"))
	require.NoError(t, txn.Prepare()) // crash before Commit

	replayed := 0
	err := jm.Recover(func(rec Record) error {
		replayed++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, replayed)
}

func TestRecoveryIsIdempotent(t *testing.T) {
	jm, bm := newTestJournal(t)
	txn := jm.Begin()
	txn.StageBlockWrite(32, []byte("twice"))
	require.NoError(t, txn.Prepare())
	require.NoError(t, txn.Commit(func(Record) error { return nil }))

	apply := func(rec Record) error {
		return bm.WriteBlocks(rec.BlockNum, [][]byte{rec.Bytes}, block.TagData)
	}
	require.NoError(t, jm.Recover(apply))
	first, err := bm.ReadBlocks(32, 1)
	require.NoError(t, err)
	require.NoError(t, jm.Recover(apply))
	second, err := bm.ReadBlocks(32, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCheckpointReclaimsSpace(t *testing.T) {
	jm, _ := newTestJournal(t)
	txn := jm.Begin()
	txn.StageBlockWrite(33, make([]byte, 100))
	require.NoError(t, txn.Prepare())
	require.NoError(t, txn.Commit(func(Record) error { return nil }))

	require.NoError(t, jm.Checkpoint(jm.hdr.NextLSN))
	assert.Equal(t, jm.hdr.Head, jm.hdr.Base)
}
