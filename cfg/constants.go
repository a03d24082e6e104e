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

package cfg

const (
	// Logging-level string constants, mirrored by the LogSeverity values.

	TRACE   string = "TRACE"
	DEBUG   string = "DEBUG"
	INFO    string = "INFO"
	WARNING string = "WARNING"
	ERROR   string = "ERROR"
	OFF     string = "OFF"
)

const (
	// Storage/vector defaults, matching spec.md's configuration surface.

	DefaultBlockSizeBytes     uint64 = 4 << 10
	DefaultCacheSizeBytes     uint64 = 64 << 20
	DefaultJournalSizeBlocks  uint64 = 1024
	DefaultStackLimitBytes    int    = 7168
	DefaultStackWarningBytes  int    = 6144
)
