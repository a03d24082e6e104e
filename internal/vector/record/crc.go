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

package record

import "hash/crc32"

// crc32IEEE is the single CRC32 polynomial used throughout the
// on-disk format (spec.md §6 "CRC32 uses the same polynomial
// throughout"), matching internal/storage/layout and
// internal/storage/journal.
func crc32IEEE(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}
