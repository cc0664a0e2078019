package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func decodeLines(t *testing.T, content []byte) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for i, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", i, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLogger(t *testing.T) {
	t.Run("creates log file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), DefaultFileName)

		logger, err := NewLogger(Options{Path: path, Level: LevelDebug})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer func() { _ = logger.Close() }()

		if _, err := os.Stat(path); err != nil {
			t.Errorf("log file was not created at %s: %v", path, err)
		}
	})

	t.Run("writes to stderr when path is empty", func(t *testing.T) {
		logger, err := NewLogger(Options{Level: LevelInfo})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		if logger.out != nil {
			t.Error("expected no owned output for stderr logger")
		}
		if err := logger.Close(); err != nil {
			t.Errorf("Close() = %v, want nil", err)
		}
	})

	t.Run("fails when the directory cannot be created", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(blocker, nil, 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := NewLogger(Options{Path: filepath.Join(blocker, "main.log")}); err == nil {
			t.Error("NewLogger() error = nil, want error")
		}
	})
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelDebug)

	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "key", "value")
	logger.Warn("warn message", "key", "value")
	logger.Error("error message", "key", "value")

	entries := decodeLines(t, buf.Bytes())
	if len(entries) != 4 {
		t.Fatalf("expected 4 log lines, got %d", len(entries))
	}

	expectedLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	expectedMsgs := []string{"debug message", "info message", "warn message", "error message"}
	for i, entry := range entries {
		if entry["level"] != expectedLevels[i] {
			t.Errorf("line %d: level = %v, want %s", i, entry["level"], expectedLevels[i])
		}
		if entry["msg"] != expectedMsgs[i] {
			t.Errorf("line %d: msg = %v, want %s", i, entry["msg"], expectedMsgs[i])
		}
		if entry["key"] != "value" {
			t.Errorf("line %d: key = %v, want value", i, entry["key"])
		}
	}
}

func TestLogLevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  int
	}{
		{LevelDebug, 4},
		{LevelInfo, 3},
		{LevelWarn, 2},
		{LevelError, 1},
		{"bogus", 3},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, tt.level)

			logger.Debug("d")
			logger.Info("i")
			logger.Warn("w")
			logger.Error("e")

			if got := len(decodeLines(t, buf.Bytes())); got != tt.want {
				t.Errorf("lines = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEnabled(t *testing.T) {
	logger := NewWithWriter(&bytes.Buffer{}, LevelWarn)
	if logger.Enabled(LevelInfo) {
		t.Error("Enabled(INFO) = true at WARN")
	}
	if !logger.Enabled(LevelError) {
		t.Error("Enabled(ERROR) = false at WARN")
	}
}

func TestContextPropagation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelInfo)

	child := logger.WithSession("session-123").WithProtocol("telegram").WithComponent("worker")
	child.Info("test message", "extra", "data")
	logger.Info("parent message")

	entries := decodeLines(t, buf.Bytes())
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	want := map[string]string{
		"session_id": "session-123",
		"protocol":   "telegram",
		"component":  "worker",
		"extra":      "data",
	}
	for k, v := range want {
		if entries[0][k] != v {
			t.Errorf("%s = %v, want %s", k, entries[0][k], v)
		}
	}
	if _, ok := entries[1]["protocol"]; ok {
		t.Error("parent logger picked up child attributes")
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelInfo)

	if logger.With() != logger {
		t.Error("With() with no args should return the same logger")
	}

	logger.With("foo", "bar", "count", 42, 7, "ignored").Info("test message")

	entries := decodeLines(t, buf.Bytes())
	if entries[0]["foo"] != "bar" {
		t.Errorf("foo = %v, want bar", entries[0]["foo"])
	}
	if entries[0]["count"] != float64(42) {
		t.Errorf("count = %v, want 42", entries[0]["count"])
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	if err := logger.Close(); err != nil {
		t.Errorf("NopLogger.Close() returned error: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"DEBUG", LevelDebug},
		{"debug", LevelDebug},
		{" info ", LevelInfo},
		{"WARN", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"invalid", LevelInfo},
		{"", LevelInfo},
	}

	for _, tc := range tests {
		if got := ParseLevel(tc.input); got != tc.expected {
			t.Errorf("ParseLevel(%q) = %q, expected %q", tc.input, got, tc.expected)
		}
	}
}

func TestValidLevels(t *testing.T) {
	expected := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	levels := ValidLevels()
	if len(levels) != len(expected) {
		t.Fatalf("expected %d levels, got %d", len(expected), len(levels))
	}
	for i, level := range levels {
		if level != expected[i] {
			t.Errorf("ValidLevels()[%d] = %q, expected %q", i, level, expected[i])
		}
	}
}

func TestCloseSharedByChildren(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	logger, err := NewLogger(Options{Path: path, Level: LevelInfo})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	child := logger.WithProtocol("telegram")
	child.Info("from child")

	if err := child.Close(); err != nil {
		t.Errorf("child Close() = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "from child") {
		t.Errorf("log = %q, want child record", content)
	}
}

func TestConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	logger, err := NewLogger(Options{Path: path, Level: LevelInfo})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := range 100 {
				logger.WithProtocol("p").Info("concurrent write", "goroutine", n, "iteration", j)
			}
		}(i)
	}
	wg.Wait()
	_ = logger.Close()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if got := len(decodeLines(t, content)); got != 1000 {
		t.Errorf("lines = %d, want 1000", got)
	}
}
