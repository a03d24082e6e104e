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

package logger

import (
	"bytes"
	"log/slog"
	"os"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vexfs/vexfs/cfg"
)

const (
	textTraceString   = "^time=[a-zA-Z0-9/:. =+-]* severity=TRACE msg=\"TestLogs: www.traceExample.com\""
	textDebugString   = "^time=[a-zA-Z0-9/:. =+-]* severity=DEBUG msg=\"TestLogs: www.debugExample.com\""
	textInfoString    = "^time=[a-zA-Z0-9/:. =+-]* severity=INFO msg=\"TestLogs: www.infoExample.com\""
	textWarningString = "^time=[a-zA-Z0-9/:. =+-]* severity=WARNING msg=\"TestLogs: www.warningExample.com\""
	textErrorString   = "^time=[a-zA-Z0-9/:. =+-]* severity=ERROR msg=\"TestLogs: www.errorExample.com\""

	jsonTraceString   = `"severity":"TRACE","msg":"TestLogs: www.traceExample.com"`
	jsonDebugString   = `"severity":"DEBUG","msg":"TestLogs: www.debugExample.com"`
	jsonInfoString    = `"severity":"INFO","msg":"TestLogs: www.infoExample.com"`
	jsonWarningString = `"severity":"WARNING","msg":"TestLogs: www.warningExample.com"`
	jsonErrorString   = `"severity":"ERROR","msg":"TestLogs: www.errorExample.com"`
)

type LoggerTest struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTest))
}

func redirectLogsToGivenBuffer(buf *bytes.Buffer, level string) {
	var pl = new(slog.LevelVar)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(buf, pl, "TestLogs: "))
	setLoggingLevel(level, pl)
}

func fetchLogOutputForSpecifiedSeverityLevel(level string, functions []func()) []string {
	var buf bytes.Buffer
	redirectLogsToGivenBuffer(&buf, level)

	var output []string
	for _, f := range functions {
		f()
		output = append(output, buf.String())
		buf.Reset()
	}
	return output
}

func getTestLoggingFunctions() []func() {
	return []func(){
		func() { Tracef("www.traceExample.com") },
		func() { Debugf("www.debugExample.com") },
		func() { Infof("www.infoExample.com") },
		func() { Warnf("www.warningExample.com") },
		func() { Errorf("www.errorExample.com") },
	}
}

func validateOutput(t *testing.T, expected []string, output []string, regex bool) {
	for i := range output {
		if expected[i] == "" {
			assert.Equal(t, expected[i], output[i])
			continue
		}
		if regex {
			assert.True(t, regexp.MustCompile(expected[i]).MatchString(output[i]))
		} else {
			assert.Contains(t, output[i], expected[i])
		}
	}
}

func validateLogOutputAtSpecifiedFormatAndSeverity(t *testing.T, format string, level string, expectedOutput []string) {
	defaultLoggerFactory.format = format
	output := fetchLogOutputForSpecifiedSeverityLevel(level, getTestLoggingFunctions())
	validateOutput(t, expectedOutput, output, format == "text")
}

func (t *LoggerTest) TestTextFormatLogs_LogLevelOFF() {
	validateLogOutputAtSpecifiedFormatAndSeverity(t.T(), "text", cfg.OFF, []string{"", "", "", "", ""})
}

func (t *LoggerTest) TestTextFormatLogs_LogLevelERROR() {
	validateLogOutputAtSpecifiedFormatAndSeverity(t.T(), "text", cfg.ERROR, []string{"", "", "", "", textErrorString})
}

func (t *LoggerTest) TestTextFormatLogs_LogLevelWARNING() {
	validateLogOutputAtSpecifiedFormatAndSeverity(t.T(), "text", cfg.WARNING, []string{"", "", "", textWarningString, textErrorString})
}

func (t *LoggerTest) TestTextFormatLogs_LogLevelINFO() {
	validateLogOutputAtSpecifiedFormatAndSeverity(t.T(), "text", cfg.INFO, []string{"", "", textInfoString, textWarningString, textErrorString})
}

func (t *LoggerTest) TestTextFormatLogs_LogLevelDEBUG() {
	validateLogOutputAtSpecifiedFormatAndSeverity(t.T(), "text", cfg.DEBUG, []string{"", textDebugString, textInfoString, textWarningString, textErrorString})
}

func (t *LoggerTest) TestTextFormatLogs_LogLevelTRACE() {
	validateLogOutputAtSpecifiedFormatAndSeverity(t.T(), "text", cfg.TRACE, []string{textTraceString, textDebugString, textInfoString, textWarningString, textErrorString})
}

func (t *LoggerTest) TestJSONFormatLogs_LogLevelOFF() {
	validateLogOutputAtSpecifiedFormatAndSeverity(t.T(), "json", cfg.OFF, []string{"", "", "", "", ""})
}

func (t *LoggerTest) TestJSONFormatLogs_LogLevelINFO() {
	validateLogOutputAtSpecifiedFormatAndSeverity(t.T(), "json", cfg.INFO, []string{"", "", jsonInfoString, jsonWarningString, jsonErrorString})
}

func (t *LoggerTest) TestJSONFormatLogs_LogLevelTRACE() {
	validateLogOutputAtSpecifiedFormatAndSeverity(t.T(), "json", cfg.TRACE, []string{jsonTraceString, jsonDebugString, jsonInfoString, jsonWarningString, jsonErrorString})
}

func (t *LoggerTest) TestSetLoggingLevel() {
	testData := []struct {
		inputLevel           string
		expectedProgramLevel slog.Level
	}{
		{cfg.TRACE, LevelTrace},
		{cfg.DEBUG, LevelDebug},
		{cfg.INFO, LevelInfo},
		{cfg.WARNING, LevelWarn},
		{cfg.ERROR, LevelError},
		{cfg.OFF, LevelOff},
	}

	for _, test := range testData {
		pl := new(slog.LevelVar)
		setLoggingLevel(test.inputLevel, pl)
		assert.Equal(t.T(), test.expectedProgramLevel, pl.Level())
	}
}

func (t *LoggerTest) TestInitLogFile() {
	dir := t.T().TempDir()
	filePath := dir + "/log.txt"

	legacyRotate := cfg.LogRotateLoggingConfig{MaxFileSizeMb: 100, BackupFileCount: 2, Compress: true}
	lc := cfg.LoggingConfig{
		FilePath: cfg.ResolvedPath(filePath),
		Severity: cfg.DebugLogSeverity,
		Format:   "text",
	}

	err := InitLogFile(legacyRotate, lc)

	require.NoError(t.T(), err)
	assert.Equal(t.T(), filePath, defaultLoggerFactory.file.Name())
	assert.Equal(t.T(), "text", defaultLoggerFactory.format)
	assert.Equal(t.T(), string(cfg.DebugLogSeverity), defaultLoggerFactory.level)
	assert.Equal(t.T(), 100, defaultLoggerFactory.logRotateConfig.MaxFileSizeMb)
	assert.Equal(t.T(), 2, defaultLoggerFactory.logRotateConfig.BackupFileCount)
	assert.True(t.T(), defaultLoggerFactory.logRotateConfig.Compress)
}

func (t *LoggerTest) TestSetLogFormatToText() {
	defaultLoggerFactory = &loggerFactory{
		level:           cfg.INFO,
		logRotateConfig: cfg.LogRotateLoggingConfig{MaxFileSizeMb: 512, BackupFileCount: 10, Compress: true},
	}

	testData := []struct {
		format         string
		expectedOutput string
	}{
		{"text", textInfoString},
		{"json", jsonInfoString},
		{"", jsonInfoString},
	}

	for _, test := range testData {
		SetLogFormat(test.format)

		assert.Equal(t.T(), test.format, defaultLoggerFactory.format)

		var buf bytes.Buffer
		redirectLogsToGivenBuffer(&buf, defaultLoggerFactory.level)
		Infof("www.infoExample.com")
		output := buf.String()

		if test.format == "text" {
			assert.True(t.T(), regexp.MustCompile(test.expectedOutput).MatchString(output))
		} else {
			assert.Contains(t.T(), output, test.expectedOutput)
		}
	}
}

func (t *LoggerTest) TestTracefCtxRespectsLevel() {
	defaultLoggerFactory = &loggerFactory{level: cfg.INFO, format: "text"}
	var buf bytes.Buffer
	redirectLogsToGivenBuffer(&buf, cfg.INFO)

	TracefCtx(nil, "should not appear") //nolint:staticcheck // nil context is fine for slog.Enabled

	assert.Empty(t.T(), buf.String())
}

func init() {
	// os.Stderr must remain valid for package-level default logger creation
	// during tests that don't override defaultLoggerFactory first.
	_ = os.Stderr
}
