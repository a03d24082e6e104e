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

// GetDefaultLoggingConfig returns the default configuration used during
// application startup, before the provided configuration has been parsed.
func GetDefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Severity: InfoLogSeverity,
		Format:   "text",
		LogRotate: LogRotateLoggingConfig{
			BackupFileCount: 10,
			Compress:        true,
			MaxFileSizeMb:   512,
		},
	}
}

// GetDefaultConfig returns the full default configuration, matching the
// BindFlags defaults; used by tests that construct a Config without going
// through viper.
func GetDefaultConfig() Config {
	return Config{
		AppName: "vexfsd",
		Logging: GetDefaultLoggingConfig(),
		Storage: StorageConfig{
			BlockSize: 4 << 10,
			CacheSize: 64 << 20,
		},
		Journal: JournalConfig{
			SizeBlocks:   1024,
			WriteThrough: true,
			SyncInterval: 100,
		},
		Coordinator: CoordinatorConfig{
			MaxConcurrentTransactions: 64,
		},
		Vector: VectorConfig{
			StackLimitBytes:   7168,
			StackWarningBytes: 6144,
		},
	}
}
