/*-------------------------------------------------------------------------
 *
 * DB Query Gateway
 *
 * Copyright (c) 2026, the DB Query Gateway authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package logging

import (
	"encoding/json"
	"io"
	"os"
	"testing"
)

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSetLevelFromString(t *testing.T) {
	original := GetLevel()
	defer SetLevel(original)

	tests := []struct {
		name string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"ERROR", LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetLevelFromString(tt.name)
			if got := GetLevel(); got != tt.want {
				t.Errorf("GetLevel() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("unknown name leaves level unchanged", func(t *testing.T) {
		SetLevel(LevelWarn)
		SetLevelFromString("verbose")
		if got := GetLevel(); got != LevelWarn {
			t.Errorf("GetLevel() = %v, want unchanged LevelWarn", got)
		}
	})
}

// captureStderr runs fn with stderr redirected to a pipe and returns what
// was written.
func captureStderr(t *testing.T, fn func()) []byte {
	t.Helper()
	original := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stderr = w
	defer func() { os.Stderr = original }()

	fn()

	w.Close()
	output, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return output
}

func TestStructuredOutput(t *testing.T) {
	originalLevel := GetLevel()
	SetLevel(LevelDebug)
	defer SetLevel(originalLevel)

	output := captureStderr(t, func() {
		Info("query executed", "connection", "prod-db", "rowCount", 7)
	})

	var entry logEntry
	if err := json.Unmarshal(output, &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, output)
	}
	if entry.Level != "INFO" {
		t.Errorf("Level = %q, want INFO", entry.Level)
	}
	if entry.Message != "query executed" {
		t.Errorf("Message = %q, want 'query executed'", entry.Message)
	}
	if entry.Fields["connection"] != "prod-db" {
		t.Errorf("Fields[connection] = %v, want prod-db", entry.Fields["connection"])
	}
	if entry.Fields["rowCount"] != float64(7) {
		t.Errorf("Fields[rowCount] = %v, want 7", entry.Fields["rowCount"])
	}
	if entry.Timestamp == "" {
		t.Error("Timestamp is empty")
	}
}

func TestLevelFiltering(t *testing.T) {
	originalLevel := GetLevel()
	SetLevel(LevelWarn)
	defer SetLevel(originalLevel)

	tests := []struct {
		name    string
		logFn   func(string, ...interface{})
		emitted bool
	}{
		{"debug suppressed", Debug, false},
		{"info suppressed", Info, false},
		{"warn emitted", Warn, true},
		{"error emitted", Error, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := captureStderr(t, func() {
				tt.logFn("message")
			})
			if emitted := len(output) > 0; emitted != tt.emitted {
				t.Errorf("emitted = %v, want %v", emitted, tt.emitted)
			}
		})
	}
}

func TestOddKeyvalsDropped(t *testing.T) {
	originalLevel := GetLevel()
	SetLevel(LevelDebug)
	defer SetLevel(originalLevel)

	output := captureStderr(t, func() {
		Info("message", "key1", "value1", "dangling")
	})

	var entry logEntry
	if err := json.Unmarshal(output, &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, output)
	}
	if _, ok := entry.Fields["dangling"]; ok {
		t.Error("dangling key without a value should be dropped")
	}
	if entry.Fields["key1"] != "value1" {
		t.Errorf("Fields[key1] = %v, want value1", entry.Fields["key1"])
	}
}
