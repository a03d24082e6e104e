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

// Rationalize updates config fields derived from other fields, after
// flags/YAML have been parsed and before the config is handed to the
// rest of the core.
func Rationalize(c *Config) error {
	if c.Debug.LogMutex {
		c.Logging.Severity = TraceLogSeverity
	}

	// Journal write-through implies the block cache must also be
	// write-through: a cache write-back without a matching journal
	// write-through would let a commit be acknowledged before the data
	// block behind it is durable.
	if c.Journal.WriteThrough {
		c.Storage.WriteThroughCache = true
	}

	if c.Storage.CacheSize < c.Storage.BlockSize {
		c.Storage.CacheSize = c.Storage.BlockSize
	}

	return nil
}
