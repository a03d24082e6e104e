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

import "fmt"

// String renders the config in the same nested-key form used by the YAML
// file and flags, for inclusion in startup logs.
func (c *Config) String() string {
	return fmt.Sprintf(
		"app-name=%s storage={block-size=%s cache-size=%s device-class=%s} "+
			"journal={size-blocks=%d write-through=%t} "+
			"coordinator={max-concurrent-transactions=%d} "+
			"vector={similarity-threshold=%.3f stack-limit-bytes=%d stack-warning-bytes=%d} "+
			"fsck={repair=%t}",
		c.AppName,
		c.Storage.BlockSize, c.Storage.CacheSize, c.Storage.DeviceClass,
		c.Journal.SizeBlocks, c.Journal.WriteThrough,
		c.Coordinator.MaxConcurrentTransactions,
		c.Vector.SimilarityThreshold, c.Vector.StackLimitBytes, c.Vector.StackWarningBytes,
		c.Fsck.Repair,
	)
}
