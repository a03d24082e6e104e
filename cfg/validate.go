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

func isValidLogRotateConfig(config *LogRotateLoggingConfig) error {
	if config.MaxFileSizeMb <= 0 {
		return fmt.Errorf("max-file-size-mb should be at least 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (to retain all backup files) or a positive value")
	}
	return nil
}

func isPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

func isValidStorageConfig(c *StorageConfig) error {
	if uint64(c.BlockSize) == 0 || !isPowerOfTwo(uint64(c.BlockSize)) {
		return fmt.Errorf("block-size must be a positive power of two, got %d", c.BlockSize)
	}
	if uint64(c.CacheSize) < uint64(c.BlockSize) {
		return fmt.Errorf("cache-size (%d) must be at least one block-size (%d)", c.CacheSize, c.BlockSize)
	}
	switch c.DeviceClass {
	case "", DeviceClassSSD, DeviceClassHDD, DeviceClassNVMe:
	default:
		return fmt.Errorf("invalid device-class: %s", c.DeviceClass)
	}
	return nil
}

func isValidJournalConfig(c *JournalConfig) error {
	if c.SizeBlocks == 0 {
		return fmt.Errorf("journal.size-blocks must be positive")
	}
	if !c.WriteThrough && c.SyncInterval <= 0 {
		return fmt.Errorf("journal.sync-interval-ms must be positive when write-through is disabled")
	}
	return nil
}

func isValidCoordinatorConfig(c *CoordinatorConfig) error {
	if c.MaxConcurrentTransactions <= 0 {
		return fmt.Errorf("coordinator.max-concurrent-transactions must be positive")
	}
	return nil
}

func isValidVectorConfig(c *VectorConfig) error {
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("vector.similarity-threshold must be in [0, 1], got %f", c.SimilarityThreshold)
	}
	if c.StackLimitBytes <= 0 {
		return fmt.Errorf("vector.stack-limit-bytes must be positive")
	}
	if c.StackWarningBytes <= 0 || c.StackWarningBytes >= c.StackLimitBytes {
		return fmt.Errorf("vector.stack-warning-bytes (%d) must be positive and less than stack-limit-bytes (%d)", c.StackWarningBytes, c.StackLimitBytes)
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid.
func ValidateConfig(config *Config) error {
	if err := isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}
	if err := isValidStorageConfig(&config.Storage); err != nil {
		return fmt.Errorf("error parsing storage config: %w", err)
	}
	if err := isValidJournalConfig(&config.Journal); err != nil {
		return fmt.Errorf("error parsing journal config: %w", err)
	}
	if err := isValidCoordinatorConfig(&config.Coordinator); err != nil {
		return fmt.Errorf("error parsing coordinator config: %w", err)
	}
	if err := isValidVectorConfig(&config.Vector); err != nil {
		return fmt.Errorf("error parsing vector config: %w", err)
	}
	return nil
}
