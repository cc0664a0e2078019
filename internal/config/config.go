// Package config implements nchat's durable key/value configuration: the
// main.conf file in the config directory, layered over caller supplied
// defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	// FileName is the config file inside the config directory.
	FileName = "main.conf"

	configFileMode  = 0o600
	configDirMode   = 0o700
	tempFilePattern = ".main-*.conf.tmp"

	// keyDelimiter replaces viper's "." so keys containing dots are stored
	// verbatim instead of being split into nested maps.
	keyDelimiter = "::"
)

var (
	keyPattern = regexp.MustCompile(`^[\w.]+$`)
	// plainValue needs no quoting: nothing the line parser would trim,
	// expand or treat as a comment.
	plainValue = regexp.MustCompile(`^([^\s#$'"\\]([^#$'"\\\r\n]*[^\s#$'"\\])?)?$`)
)

// Store is an ordered key -> string mapping backed by a main.conf file of
// key=value lines. Lookups are case-insensitive and fall back to the
// defaults passed to Load. Keys read from the file or Set keep their
// spelling when saved, so entries nchat does not know survive a Load/Save
// round trip unchanged.
//
// Store is not safe for concurrent use; the session orchestrator owns it.
type Store struct {
	v    *viper.Viper
	path string

	// entries holds file and Set values under their original spelling;
	// spelling maps the lower-cased key to it.
	entries  map[string]string
	spelling map[string]string
}

// Load reads path, layering its entries over defaults. A missing file is not
// an error: the store then holds only the defaults.
func Load(path string, defaults map[string]string) (*Store, error) {
	s := &Store{
		v:        viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter)),
		path:     path,
		entries:  make(map[string]string),
		spelling: make(map[string]string),
	}
	for k, val := range defaults {
		s.v.SetDefault(k, val)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	env, err := gotenv.StrictParse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.Set(k, env[k])
	}
	return s, nil
}

// Path returns the file the store was loaded from.
func (s *Store) Path() string {
	return s.path
}

// Get returns the stored value for key, else its default, else "".
func (s *Store) Get(key string) string {
	return s.v.GetString(key)
}

// Bool reports whether key is "1". Any other value, including "true", is
// false.
func (s *Store) Bool(key string) bool {
	return s.Get(key) == "1"
}

// Set stores value under key. A key already present under another case
// keeps its first spelling. It is persisted by the next Save.
func (s *Store) Set(key, value string) {
	lower := strings.ToLower(key)
	name, ok := s.spelling[lower]
	if !ok {
		name = key
		s.spelling[lower] = name
	}
	s.entries[name] = value
	s.v.Set(key, value)
}

// SetBool stores "1" or "0".
func (s *Store) SetBool(key string, on bool) {
	if on {
		s.Set(key, "1")
		return
	}
	s.Set(key, "0")
}

// Has reports whether key was read from the file or Set, as opposed to only
// having a default.
func (s *Store) Has(key string) bool {
	_, ok := s.spelling[strings.ToLower(key)]
	return ok
}

// Keys returns every key known to the store (defaults, file and Set) in
// sorted order, spelled as they will be saved.
func (s *Store) Keys() []string {
	m := s.Map()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a snapshot of all effective values.
func (s *Store) Map() map[string]string {
	m := make(map[string]string)
	for _, k := range s.v.AllKeys() {
		if name, ok := s.spelling[k]; ok {
			m[name] = s.entries[name]
			continue
		}
		m[k] = s.v.GetString(k)
	}
	return m
}

// Save rewrites the whole file at path with every effective value, defaults
// included. The write goes through a temp file and rename so a crash never
// leaves a truncated config behind.
func (s *Store) Save(path string) error {
	if path == "" {
		path = s.path
	}
	data, err := Encode(s.Map())
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data)
}

// Encode renders m as sorted key=value lines. Values that the parser would
// otherwise trim, expand or cut at a '#' are single-quoted; values that
// cannot be quoted that way are rejected.
func Encode(m map[string]string) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		if !keyPattern.MatchString(k) {
			return nil, fmt.Errorf("encode config file: invalid key %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, k := range keys {
		val := m[k]
		switch {
		case plainValue.MatchString(val):
		case !strings.ContainsAny(val, "'\r\n") && !strings.HasSuffix(val, "\\"):
			val = "'" + val + "'"
		default:
			return nil, fmt.Errorf("encode config file: value of %s cannot be stored", k)
		}
		buf.WriteString(k + "=" + val + "\n")
	}
	return buf.Bytes(), nil
}

// WriteFileAtomic writes data to path with mode 0600 through a temp file and
// rename, creating the parent directory when missing.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirMode); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tempFile.Chmod(configFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	cleanup = false
	return nil
}
