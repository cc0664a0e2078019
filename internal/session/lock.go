// Package session guards a configuration directory so that at most one nchat
// session uses it at a time.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Iron-Ham/nchat/internal/errors"
)

// LockFileName is the name of the lock file within a config directory.
const LockFileName = "lock"

// Holder describes the session owning a lock. It is written into the lock
// file for diagnostics only; exclusivity comes from flock(2), not from the
// file's content.
type Holder struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
}

// held tracks directories locked by this process. flock(2) already
// conflicts between two descriptors of one process on Linux, but not on
// every platform, so re-entrant attempts are refused here first.
var (
	heldMu sync.Mutex
	held   = make(map[string]bool)
)

// DirLock is an acquired, exclusive advisory lock over a config directory.
// The operating system drops it when the process exits, so a crashed
// session never leaves a stale lock behind.
type DirLock struct {
	mu   sync.Mutex
	key  string
	path string
	file *os.File
}

// Acquire takes the lock for dir without blocking or retrying. It returns an
// error wrapping errors.ErrLocked when another process, or another
// Acquire in this process, holds it.
func Acquire(dir string) (*DirLock, error) {
	key, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve lock dir: %w", err)
	}
	key = filepath.Clean(key)

	heldMu.Lock()
	defer heldMu.Unlock()

	if held[key] {
		return nil, fmt.Errorf("%w: %s (held by this process)", errors.ErrLocked, dir)
	}

	path := filepath.Join(dir, LockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if err == unix.EWOULDBLOCK {
			if h, rerr := ReadHolder(dir); rerr == nil {
				return nil, fmt.Errorf("%w: %s (pid %d on %s)", errors.ErrLocked, dir, h.PID, h.Hostname)
			}
			return nil, fmt.Errorf("%w: %s", errors.ErrLocked, dir)
		}
		return nil, fmt.Errorf("flock: %w", err)
	}

	writeHolder(f)
	held[key] = true

	return &DirLock{key: key, path: path, file: f}, nil
}

// writeHolder replaces the lock file content. Failures are ignored: the
// content is informational.
func writeHolder(f *os.File) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	data, err := json.Marshal(Holder{PID: os.Getpid(), Hostname: hostname, StartedAt: time.Now()})
	if err != nil {
		return
	}
	if err := f.Truncate(0); err != nil {
		return
	}
	_, _ = f.WriteAt(append(data, '\n'), 0)
}

// ReadHolder returns the diagnostic holder record of dir's lock file.
func ReadHolder(dir string) (*Holder, error) {
	data, err := os.ReadFile(filepath.Join(dir, LockFileName))
	if err != nil {
		return nil, err
	}
	var h Holder
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parse lock file: %w", err)
	}
	return &h, nil
}

// IsLocked reports whether l still owns its directory.
func (l *DirLock) IsLocked() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file != nil
}

// Path returns the lock file path.
func (l *DirLock) Path() string {
	return l.path
}

// Release unlocks and closes the lock file. The file itself stays on disk.
// Safe to call multiple times.
func (l *DirLock) Release() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	heldMu.Lock()
	delete(held, l.key)
	heldMu.Unlock()

	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if unlockErr != nil {
		return fmt.Errorf("funlock: %w", unlockErr)
	}
	return closeErr
}
