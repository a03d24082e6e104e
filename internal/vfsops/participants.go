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

package vfsops

import (
	"context"

	"github.com/vexfs/vexfs/internal/coordinator"
)

// ackHandler is the production coordinator.ParticipantHandler for
// storeVector's unified transaction. The vector store write itself
// already went through store.Manager's own journal before the
// transaction wraps it (see storeVector), so there is nothing left
// for a participant to stage or roll back here: the coordinator's
// unified transaction exists to give the {vector_store, graph} pair a
// single ordered commit decision, not to re-drive either mutation.
type ackHandler struct{}

func (ackHandler) Stage(ctx context.Context, txID uint64, op coordinator.Operation) error {
	return nil
}

func (ackHandler) Vote(ctx context.Context, txID uint64) (bool, error) { return true, nil }

func (ackHandler) Commit(ctx context.Context, txID uint64) error { return nil }

func (ackHandler) Abort(ctx context.Context, txID uint64) error { return nil }

// DefaultParticipantHandlers returns the handler set every production
// mount wires into its Coordinator.
func DefaultParticipantHandlers() map[coordinator.Participant]coordinator.ParticipantHandler {
	return map[coordinator.Participant]coordinator.ParticipantHandler{
		coordinator.ParticipantFilesystem:  ackHandler{},
		coordinator.ParticipantVectorStore: ackHandler{},
		coordinator.ParticipantGraph:       ackHandler{},
	}
}
