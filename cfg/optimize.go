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

// deviceOptimization holds the storage-config overrides applied for one
// DeviceClass, the on-disk-device analogue of the teacher's machine-type
// flag-override sets: instead of picking flag overrides by GCE machine
// type, we pick block-cache/allocator overrides by backing-device class.
type deviceOptimization struct {
	cacheSizeBytes    ByteSize
	writeThroughCache bool
	readAheadBlocks   int
}

// defaultDeviceOptimizations provides the default per-DeviceClass override
// set. Rotational media (hdd) favors a larger cache and more read-ahead to
// amortize seek latency; solid-state media needs neither.
var defaultDeviceOptimizations = map[DeviceClass]deviceOptimization{
	DeviceClassHDD: {
		cacheSizeBytes:    256 << 20,
		writeThroughCache: false,
		readAheadBlocks:   64,
	},
	DeviceClassSSD: {
		cacheSizeBytes:    64 << 20,
		writeThroughCache: false,
		readAheadBlocks:   8,
	},
	DeviceClassNVMe: {
		cacheSizeBytes:    32 << 20,
		writeThroughCache: false,
		readAheadBlocks:   4,
	},
}

// ReadAheadBlocks returns the read-ahead window recommended for the given
// optimization input, 0 when no device-class optimization applies.
func ReadAheadBlocks(input OptimizationInput) int {
	if opt, ok := defaultDeviceOptimizations[input.DeviceClass]; ok {
		return opt.readAheadBlocks
	}
	return 0
}

// ApplyDeviceOptimizations overrides c.Storage's cache-size and
// write-through-cache with the defaults for c.Storage.DeviceClass, unless
// the caller already set cache-size explicitly (preserveCacheSize).
// An empty DeviceClass is a no-op, matching the zero-value
// OptimizationInput meaning "apply no optimization" in types.go.
func ApplyDeviceOptimizations(c *Config, preserveCacheSize bool) {
	opt, ok := defaultDeviceOptimizations[c.Storage.DeviceClass]
	if !ok {
		return
	}
	if !preserveCacheSize {
		c.Storage.CacheSize = opt.cacheSizeBytes
	}
	c.Storage.WriteThroughCache = c.Storage.WriteThroughCache || opt.writeThroughCache
}
