// Package testutil provides testing utilities for nchat tests: an in-memory
// protocol backend and helpers for config directories.
package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"
)

// WriteMainConf writes a main.conf in dir with the given entries as sorted
// key=value lines, the format nchat itself saves, and returns its path.
func WriteMainConf(t *testing.T, dir string, entries map[string]string) string {
	t.Helper()

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k + "=" + entries[k] + "\n")
	}

	path := filepath.Join(dir, "main.conf")
	if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
		t.Fatalf("failed to write main.conf: %v", err)
	}
	return path
}

// ReadFile returns the content of path, failing the test on error.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return data
}

// Eventually polls cond until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
