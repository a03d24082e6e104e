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

// GENERATED CODE - DO NOT EDIT MANUALLY.

package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	AppName string `yaml:"app-name"`

	Debug DebugConfig `yaml:"debug"`

	Logging LoggingConfig `yaml:"logging"`

	Storage StorageConfig `yaml:"storage"`

	Journal JournalConfig `yaml:"journal"`

	Coordinator CoordinatorConfig `yaml:"coordinator"`

	Vector VectorConfig `yaml:"vector"`

	Fsck FsckConfig `yaml:"fsck"`
}

type DebugConfig struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`

	LogMutex bool `yaml:"log-mutex"`
}

type LoggingConfig struct {
	Severity LogSeverity `yaml:"severity"`

	Format string `yaml:"format"`

	FilePath ResolvedPath `yaml:"file-path"`

	LogRotate LogRotateLoggingConfig `yaml:"log-rotate"`
}

type LogRotateLoggingConfig struct {
	MaxFileSizeMb int `yaml:"max-file-size-mb"`

	BackupFileCount int `yaml:"backup-file-count"`

	Compress bool `yaml:"compress"`
}

type StorageConfig struct {
	BlockSize ByteSize `yaml:"block-size"`

	CacheSize ByteSize `yaml:"cache-size"`

	DevicePath ResolvedPath `yaml:"device-path"`

	DeviceClass DeviceClass `yaml:"device-class"`

	WriteThroughCache bool `yaml:"write-through-cache"`
}

type JournalConfig struct {
	SizeBlocks uint64 `yaml:"size-blocks"`

	WriteThrough bool `yaml:"write-through"`

	SyncInterval int `yaml:"sync-interval-ms"`
}

type CoordinatorConfig struct {
	MaxConcurrentTransactions int `yaml:"max-concurrent-transactions"`
}

type VectorConfig struct {
	SimilarityThreshold float64 `yaml:"similarity-threshold"`

	StackLimitBytes int `yaml:"stack-limit-bytes"`

	StackWarningBytes int `yaml:"stack-warning-bytes"`
}

type FsckConfig struct {
	Repair bool `yaml:"repair"`
}

func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("app-name", "", "vexfsd", "The application name reported in logs and metrics.")

	err = viper.BindPFlag("app-name", flagSet.Lookup("app-name"))
	if err != nil {
		return err
	}

	flagSet.BoolP("debug-invariants", "", false, "Exit when internal invariants are violated.")

	err = viper.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("debug-invariants"))
	if err != nil {
		return err
	}

	flagSet.BoolP("debug-mutex", "", false, "Log when a lock is held longer than expected.")

	err = viper.BindPFlag("debug.log-mutex", flagSet.Lookup("debug-mutex"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", "INFO", "Logging severity: TRACE, DEBUG, INFO, WARNING, ERROR, or OFF.")

	err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", "Logging format: text or json.")

	err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to the log file; empty means stderr.")

	err = viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file"))
	if err != nil {
		return err
	}

	flagSet.StringP("block-size", "", "4KiB", "Block size for the backing device.")

	err = viper.BindPFlag("storage.block-size", flagSet.Lookup("block-size"))
	if err != nil {
		return err
	}

	flagSet.StringP("cache-size", "", "64MiB", "Block cache size.")

	err = viper.BindPFlag("storage.cache-size", flagSet.Lookup("cache-size"))
	if err != nil {
		return err
	}

	flagSet.StringP("device-class", "", "", "Backing device class: ssd, hdd, or nvme. Empty disables device-class optimization.")

	err = viper.BindPFlag("storage.device-class", flagSet.Lookup("device-class"))
	if err != nil {
		return err
	}

	flagSet.BoolP("write-through-cache", "", false, "Write block cache entries through to the device synchronously.")

	err = viper.BindPFlag("storage.write-through-cache", flagSet.Lookup("write-through-cache"))
	if err != nil {
		return err
	}

	flagSet.Uint64P("journal-size-blocks", "", 1024, "Number of blocks reserved for the journal.")

	err = viper.BindPFlag("journal.size-blocks", flagSet.Lookup("journal-size-blocks"))
	if err != nil {
		return err
	}

	flagSet.BoolP("journal-write-through", "", true, "Fsync the journal on every commit.")

	err = viper.BindPFlag("journal.write-through", flagSet.Lookup("journal-write-through"))
	if err != nil {
		return err
	}

	flagSet.IntP("journal-sync-interval-ms", "", 100, "Checkpoint sync interval in milliseconds, when write-through is disabled.")

	err = viper.BindPFlag("journal.sync-interval-ms", flagSet.Lookup("journal-sync-interval-ms"))
	if err != nil {
		return err
	}

	flagSet.IntP("max-concurrent-transactions", "", 64, "Maximum number of in-flight coordinator transactions.")

	err = viper.BindPFlag("coordinator.max-concurrent-transactions", flagSet.Lookup("max-concurrent-transactions"))
	if err != nil {
		return err
	}

	flagSet.Float64P("vector-similarity-threshold", "", 0.0, "Minimum similarity score for a search result to be returned.")

	err = viper.BindPFlag("vector.similarity-threshold", flagSet.Lookup("vector-similarity-threshold"))
	if err != nil {
		return err
	}

	flagSet.IntP("vector-stack-limit-bytes", "", 7168, "Hard stack-usage ceiling for ANN/vector operations; exceeding it aborts the operation.")

	err = viper.BindPFlag("vector.stack-limit-bytes", flagSet.Lookup("vector-stack-limit-bytes"))
	if err != nil {
		return err
	}

	flagSet.IntP("vector-stack-warning-bytes", "", 6144, "Stack-usage threshold above which a warning is logged.")

	err = viper.BindPFlag("vector.stack-warning-bytes", flagSet.Lookup("vector-stack-warning-bytes"))
	if err != nil {
		return err
	}

	flagSet.BoolP("fsck-repair", "", false, "Allow fsck to repair inconsistencies it finds instead of only reporting them.")

	err = viper.BindPFlag("fsck.repair", flagSet.Lookup("fsck-repair"))
	if err != nil {
		return err
	}

	return nil
}
