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

package common

// VFS-facing and vector operation names, used as the fs_op metric
// attribute and in structured log fields.
const (
	OpLookUpInode        = "LookUpInode"
	OpGetInodeAttributes = "GetInodeAttributes"
	OpSetInodeAttributes = "SetInodeAttributes"
	OpRead               = "Read"
	OpWrite              = "Write"
	OpCreate             = "Create"
	OpMkDir              = "MkDir"
	OpMkNode             = "MkNode"
	OpUnlink             = "Unlink"
	OpRmDir              = "RmDir"
	OpOpen               = "Open"
	OpFlush              = "Flush"
	OpRelease            = "Release"
	OpReadDir            = "ReadDir"
	OpStatFS             = "StatFS"

	OpStoreVector  = "StoreVector"
	OpGetVector    = "GetVector"
	OpDeleteVector = "DeleteVector"
	OpSearchVector = "SearchVectors"

	OpJournalCommit = "JournalCommit"
	OpJournalAbort  = "JournalAbort"
	OpRecovery      = "Recovery"

	OpCoordinatorPrepare = "CoordinatorPrepare"
	OpCoordinatorCommit  = "CoordinatorCommit"
	OpCoordinatorAbort   = "CoordinatorAbort"
)
