package session

import (
	"bufio"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/nchat/internal/errors"
)

const helperEnv = "NCHAT_LOCK_HELPER_DIR"

// TestHelperProcess holds a lock on behalf of another test. It is a no-op
// unless started by holdLockInSubprocess.
func TestHelperProcess(t *testing.T) {
	dir := os.Getenv(helperEnv)
	if dir == "" {
		return
	}
	l, err := Acquire(dir)
	if err != nil {
		os.Stdout.WriteString("error: " + err.Error() + "\n")
		os.Exit(2)
	}
	os.Stdout.WriteString("locked\n")
	// Hold until the parent closes stdin.
	_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
	_ = l.Release()
	os.Exit(0)
}

func holdLockInSubprocess(t *testing.T, dir string) func() {
	t.Helper()

	cmd := exec.Command(os.Args[0], "-test.run=^TestHelperProcess$")
	cmd.Env = append(os.Environ(), helperEnv+"="+dir)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("start helper: %v", err)
	}

	line, err := bufio.NewReader(stdout).ReadString('\n')
	if err != nil || strings.TrimSpace(line) != "locked" {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		t.Fatalf("helper did not lock: %q %v", line, err)
	}

	return func() {
		_ = stdin.Close()
		_ = cmd.Wait()
	}
}

func TestAcquireRelease(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !l.IsLocked() {
		t.Error("IsLocked() = false after Acquire")
	}
	if l.Path() != filepath.Join(dir, LockFileName) {
		t.Errorf("Path() = %q", l.Path())
	}

	h, err := ReadHolder(dir)
	if err != nil {
		t.Fatalf("ReadHolder: %v", err)
	}
	if h.PID != os.Getpid() {
		t.Errorf("holder pid = %d, want %d", h.PID, os.Getpid())
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if l.IsLocked() {
		t.Error("IsLocked() = true after Release")
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, LockFileName)); err != nil {
		t.Errorf("lock file should remain after release: %v", err)
	}
}

func TestAcquireReentrant(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer func() { _ = l.Release() }()

	// Same directory spelled differently must still conflict.
	if _, err := Acquire(filepath.Join(dir, ".")); !errors.Is(err, errors.ErrLocked) {
		t.Fatalf("second Acquire error = %v, want ErrLocked", err)
	}

	_ = l.Release()
	l2, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire after Release: %v", err)
	}
	_ = l2.Release()
}

func TestAcquireOtherProcess(t *testing.T) {
	dir := t.TempDir()
	release := holdLockInSubprocess(t, dir)

	start := time.Now()
	_, err := Acquire(dir)
	if !errors.Is(err, errors.ErrLocked) {
		release()
		t.Fatalf("Acquire error = %v, want ErrLocked", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Acquire blocked for %v", elapsed)
	}
	if !strings.Contains(err.Error(), "pid") {
		t.Errorf("error %q should name the holder", err)
	}

	release()

	l, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire after helper exit: %v", err)
	}
	_ = l.Release()
}

func TestAcquireMissingDir(t *testing.T) {
	_, err := Acquire(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Fatal("Acquire should fail for a missing directory")
	}
	if errors.Is(err, errors.ErrLocked) {
		t.Errorf("missing dir reported as locked: %v", err)
	}
}

func TestNilLock(t *testing.T) {
	var l *DirLock
	if l.IsLocked() {
		t.Error("nil IsLocked() = true")
	}
	if err := l.Release(); err != nil {
		t.Errorf("nil Release() = %v", err)
	}
}
