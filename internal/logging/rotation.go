package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// logFileMode keeps main.log private; records carry chat names and ids.
const logFileMode = 0o600

// RotationConfig mirrors the log_max_size_mb and log_max_backups keys of
// main.conf.
type RotationConfig struct {
	// MaxSizeMB rotates main.log once it would grow past this size. Zero
	// never rotates.
	MaxSizeMB int
	// MaxBackups is how many main.log.N files survive. Zero truncates
	// main.log in place.
	MaxBackups int
	// Compress gzips main.log.1 right after each rotation.
	Compress bool
}

// DefaultRotationConfig matches the config defaults.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{MaxSizeMB: 10, MaxBackups: 3}
}

// RotatingWriter appends to a log file and moves it aside to path.1 when a
// write would take it past the size limit. Older backups shift up by one and
// the oldest is dropped. Safe for concurrent use.
type RotatingWriter struct {
	mu sync.Mutex

	path       string
	maxBytes   int64
	maxBackups int
	compress   bool

	file *os.File
	size int64
}

// NewRotatingWriter opens path for appending, creating it and its directory
// when missing.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	rw := &RotatingWriter{
		path:       path,
		maxBytes:   int64(cfg.MaxSizeMB) << 20,
		maxBackups: cfg.MaxBackups,
		compress:   cfg.Compress,
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := rw.reopen(); err != nil {
		return nil, err
	}
	return rw, nil
}

func (rw *RotatingWriter) reopen() error {
	f, err := os.OpenFile(rw.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFileMode)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	rw.file, rw.size = f, info.Size()
	return nil
}

// Write appends p, rotating first when p would not fit. A record larger
// than the limit is still written whole into a fresh file.
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file == nil {
		return 0, os.ErrClosed
	}
	if rw.maxBytes > 0 && rw.size > 0 && rw.size+int64(len(p)) > rw.maxBytes {
		if err := rw.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "nchat: log rotation failed: %v\n", err)
			if rw.file == nil {
				return 0, err
			}
		}
	}

	n, err := rw.file.Write(p)
	rw.size += int64(n)
	return n, err
}

// rotate requires rw.mu. On failure the writer keeps appending to whatever
// file it could reopen.
func (rw *RotatingWriter) rotate() error {
	if err := rw.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	rw.file = nil

	var moveErr error
	if rw.maxBackups > 0 {
		for n := rw.maxBackups; n >= 1; n-- {
			for _, ext := range []string{"", ".gz"} {
				from := rw.backup(n-1) + ext
				if n == rw.maxBackups {
					_ = os.Remove(rw.backup(n) + ext)
				}
				if n == 1 && ext == ".gz" {
					continue
				}
				if err := os.Rename(from, rw.backup(n)+ext); err != nil && !os.IsNotExist(err) && n == 1 {
					moveErr = fmt.Errorf("move log file aside: %w", err)
				}
			}
		}
	} else if err := os.Remove(rw.path); err != nil && !os.IsNotExist(err) {
		moveErr = fmt.Errorf("truncate log file: %w", err)
	}

	if err := rw.reopen(); err != nil {
		if moveErr != nil {
			return fmt.Errorf("%w (reopen: %v)", moveErr, err)
		}
		return err
	}
	if moveErr != nil {
		return moveErr
	}
	if rw.compress && rw.maxBackups > 0 {
		if err := gzipInPlace(rw.backup(1)); err != nil {
			fmt.Fprintf(os.Stderr, "nchat: compress %s: %v\n", rw.backup(1), err)
		}
	}
	return nil
}

// backup returns the name of the nth backup; 0 is the live file.
func (rw *RotatingWriter) backup(n int) string {
	if n == 0 {
		return rw.path
	}
	return fmt.Sprintf("%s.%d", rw.path, n)
}

// gzipInPlace replaces path with path.gz, keeping path when anything fails.
func gzipInPlace(path string) (err error) {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	gz := path + ".gz"
	dst, err := os.OpenFile(gz, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, logFileMode)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(gz)
		}
	}()

	zw := gzip.NewWriter(dst)
	_, err = io.Copy(zw, src)
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// Close flushes and closes the log file. Later calls return nil.
func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file == nil {
		return nil
	}
	f := rw.file
	rw.file = nil
	syncErr := f.Sync()
	if err := f.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	if syncErr != nil {
		return fmt.Errorf("sync log file: %w", syncErr)
	}
	return nil
}
