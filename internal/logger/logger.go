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

// Package logger is the single structured-logging surface every subsystem
// writes through: no fmt.Println/log.Printf debugging left in the core.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vexfs/vexfs/cfg"
)

// Severity levels below slog's builtin Debug/Info/Warn/Error so that TRACE
// (more verbose than Debug) and OFF (above Error, nothing logged) both fit
// on the same slog.Level axis.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(12)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARNING",
	LevelError: "ERROR",
}

type loggerFactory struct {
	file            *os.File
	sysWriter       io.Writer
	format          string
	level           string
	logRotateConfig cfg.LogRotateLoggingConfig
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, programLevel *slog.LevelVar, prefix string) slog.Handler {
	replace := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.MessageKey {
			a.Value = slog.StringValue(prefix + a.Value.String())
		}
		if a.Key == slog.LevelKey {
			level := a.Value.Any().(slog.Level)
			if name, ok := levelNames[level]; ok {
				a.Key = "severity"
				a.Value = slog.StringValue(name)
			}
		}
		if a.Key == slog.TimeKey {
			a.Key = "time"
		}
		return a
	}

	opts := &slog.HandlerOptions{Level: programLevel, ReplaceAttr: replace}
	if f.format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

var (
	programLevel         = new(slog.LevelVar)
	defaultLoggerFactory = &loggerFactory{
		level:           cfg.INFO,
		format:          "text",
		logRotateConfig: cfg.LogRotateLoggingConfig{MaxFileSizeMb: 512, BackupFileCount: 10, Compress: true},
	}
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, programLevel, ""))
)

func setLoggingLevel(level string, v *slog.LevelVar) {
	switch level {
	case cfg.TRACE:
		v.Set(LevelTrace)
	case cfg.DEBUG:
		v.Set(LevelDebug)
	case cfg.WARNING:
		v.Set(LevelWarn)
	case cfg.ERROR:
		v.Set(LevelError)
	case cfg.OFF:
		v.Set(LevelOff)
	default:
		v.Set(LevelInfo)
	}
}

// SetLogFormat switches the default logger's output format ("text" or
// "json"; anything else, including "", behaves like "json").
func SetLogFormat(format string) {
	defaultLoggerFactory.format = format
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(currentWriter(), programLevel, ""))
}

func currentWriter() io.Writer {
	if defaultLoggerFactory.file != nil {
		return defaultLoggerFactory.file
	}
	return os.Stderr
}

// InitLogFile points the default logger at the configured log file and
// rotation policy, using legacyRotate where the new config's LogRotate is
// unset for backward compatibility with a pre-cfg deployment's YAML.
func InitLogFile(legacyRotate cfg.LogRotateLoggingConfig, lc cfg.LoggingConfig) error {
	rotate := lc.LogRotate
	if rotate.MaxFileSizeMb == 0 {
		rotate = legacyRotate
	}

	var file *os.File
	if lc.FilePath != "" {
		f, err := os.OpenFile(string(lc.FilePath), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening log file %s: %w", lc.FilePath, err)
		}
		file = f
	}

	defaultLoggerFactory = &loggerFactory{
		file:            file,
		format:          lc.Format,
		level:           string(lc.Severity),
		logRotateConfig: rotate,
	}
	setLoggingLevel(string(lc.Severity), programLevel)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(currentWriter(), programLevel, ""))
	return nil
}

func Tracef(format string, v ...interface{}) { logAt(context.Background(), LevelTrace, format, v...) }
func Debugf(format string, v ...interface{}) { logAt(context.Background(), LevelDebug, format, v...) }
func Infof(format string, v ...interface{})  { logAt(context.Background(), LevelInfo, format, v...) }
func Warnf(format string, v ...interface{})  { logAt(context.Background(), LevelWarn, format, v...) }
func Errorf(format string, v ...interface{}) { logAt(context.Background(), LevelError, format, v...) }

// TracefCtx through ErrorfCtx attach context values (via slog handlers that
// read them, e.g. an operation-id middleware) to the record.
func TracefCtx(ctx context.Context, format string, v ...interface{}) { logAt(ctx, LevelTrace, format, v...) }
func DebugfCtx(ctx context.Context, format string, v ...interface{}) { logAt(ctx, LevelDebug, format, v...) }
func InfofCtx(ctx context.Context, format string, v ...interface{})  { logAt(ctx, LevelInfo, format, v...) }
func WarnfCtx(ctx context.Context, format string, v ...interface{})  { logAt(ctx, LevelWarn, format, v...) }
func ErrorfCtx(ctx context.Context, format string, v ...interface{}) { logAt(ctx, LevelError, format, v...) }

func logAt(ctx context.Context, level slog.Level, format string, v ...interface{}) {
	if !defaultLogger.Enabled(ctx, level) {
		return
	}
	defaultLogger.Log(ctx, level, fmt.Sprintf(format, v...))
}
