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

import "runtime"

// DefaultMaxConcurrentTransactions scales with CPU count, the same way the
// teacher scales its default parallel-download count.
func DefaultMaxConcurrentTransactions() int {
	return max(16, 4*runtime.NumCPU())
}

// IsWriteThroughEnabled reports whether both the journal and the block
// cache are configured to write through synchronously.
func IsWriteThroughEnabled(c *Config) bool {
	return c.Journal.WriteThrough && c.Storage.WriteThroughCache
}
