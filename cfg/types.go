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

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Octal is the datatype for params that accept a base-8 value.
type Octal int

func (o *Octal) UnmarshalText(text []byte) error {
	v, err := strconv.ParseInt(string(text), 8, 32)
	if err != nil {
		return err
	}
	*o = Octal(v)
	return nil
}

func (o Octal) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(o), 8)), nil
}

func (o Octal) String() string {
	return fmt.Sprintf("%o", int64(o))
}

// ByteSize is the datatype for size-bearing params such as
// storage.block-size and storage.cache-size that accept human-friendly
// byte-size strings ("4KiB", "512MiB") in YAML/flags, decoded down to a
// plain byte count via DecodeHook.
type ByteSize uint64

var byteSizeSuffixes = []struct {
	suffix string
	mult   uint64
}{
	{"kib", 1 << 10}, {"mib", 1 << 20}, {"gib", 1 << 30}, {"tib", 1 << 40},
	{"kb", 1000}, {"mb", 1000 * 1000}, {"gb", 1000 * 1000 * 1000},
	{"b", 1},
}

func (b *ByteSize) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(strings.ToLower(string(text)))
	for _, sfx := range byteSizeSuffixes {
		if strings.HasSuffix(s, sfx.suffix) {
			numStr := strings.TrimSpace(strings.TrimSuffix(s, sfx.suffix))
			n, err := strconv.ParseUint(numStr, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid byte-size value %q: %w", s, err)
			}
			*b = ByteSize(n * sfx.mult)
			return nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid byte-size value %q: %w", s, err)
	}
	*b = ByteSize(n)
	return nil
}

func (b ByteSize) String() string {
	return strconv.FormatUint(uint64(b), 10)
}

// LogSeverity represents the logging severity and can accept the following
// values: "TRACE", "DEBUG", "INFO", "WARNING", "ERROR", "OFF".
type LogSeverity string

const (
	TraceLogSeverity   LogSeverity = "TRACE"
	DebugLogSeverity   LogSeverity = "DEBUG"
	InfoLogSeverity    LogSeverity = "INFO"
	WarningLogSeverity LogSeverity = "WARNING"
	ErrorLogSeverity   LogSeverity = "ERROR"
	OffLogSeverity     LogSeverity = "OFF"
)

// severityRanking maps each level to an integer for comparison; lower ranks
// log more.
var severityRanking = map[LogSeverity]int{
	TraceLogSeverity:   0,
	DebugLogSeverity:   1,
	InfoLogSeverity:    2,
	WarningLogSeverity: 3,
	ErrorLogSeverity:   4,
	OffLogSeverity:     5,
}

func (l *LogSeverity) UnmarshalText(text []byte) error {
	level := LogSeverity(strings.ToUpper(string(text)))
	if _, ok := severityRanking[level]; !ok {
		return fmt.Errorf("invalid log severity level: %s. Must be one of [TRACE, DEBUG, INFO, WARNING, ERROR, OFF]", text)
	}
	*l = level
	return nil
}

// Rank returns the integer representation of the severity rank, or -1 if
// unknown (config validation should already have rejected that case).
func (l LogSeverity) Rank() int {
	if rank, ok := severityRanking[l]; ok {
		return rank
	}
	return -1
}

// ResolvedPath is an absolute, cleaned filesystem path: the device path,
// log file path, and mountpoint are all resolved through this so that a
// relative path supplied on the command line is fixed against the
// working directory at the time the configuration is parsed.
type ResolvedPath string

func (p *ResolvedPath) UnmarshalText(text []byte) error {
	path := string(text)
	if path == "" {
		*p = ""
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving path %q: %w", path, err)
	}
	*p = ResolvedPath(filepath.Clean(abs))
	return nil
}

func (p ResolvedPath) String() string { return string(p) }

// DeviceClass categorizes the backing block device for allocation and
// read-ahead optimization purposes; an empty value means no device-class
// optimization should be applied.
type DeviceClass string

const (
	DeviceClassSSD  DeviceClass = "ssd"
	DeviceClassHDD  DeviceClass = "hdd"
	DeviceClassNVMe DeviceClass = "nvme"
)

// OptimizationInput provides runtime context for applying optimizations.
type OptimizationInput struct {
	// DeviceClass specifies the backing block device's class.
	DeviceClass DeviceClass
}
