package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Keys read by the session itself. Protocol and UI specific keys live in
// their own files under the config directory.
const (
	KeyUI            = "ui"
	KeyLogLevel      = "log_level"
	KeyLogMaxSizeMB  = "log_max_size_mb"
	KeyLogMaxBackups = "log_max_backups"
	KeyTheme         = "theme"
)

// DefaultUI is the ui used when main.conf names none.
const DefaultUI = "uidefault"

// EnabledKey returns the main.conf key that enables the named protocol.
// Both the start and the stop path use this single spelling.
func EnabledKey(protocol string) string {
	return strings.ToLower(protocol) + "_is_enabled"
}

// Defaults returns the fixed session defaults for the given protocol names:
// every protocol disabled, the default ui, and the logging and theme keys.
func Defaults(protocols []string) map[string]string {
	d := map[string]string{
		KeyUI:            DefaultUI,
		KeyLogLevel:      "info",
		KeyLogMaxSizeMB:  "10",
		KeyLogMaxBackups: "3",
		KeyTheme:         "default",
	}
	for _, name := range protocols {
		d[EnabledKey(name)] = "0"
	}
	return d
}

// DefaultDir returns $HOME/.nchat, or ".nchat" when the home directory
// cannot be resolved.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nchat"
	}
	return filepath.Join(home, ".nchat")
}

// Int returns key parsed as a base-10 integer, or fallback when it is not
// one.
func (s *Store) Int(key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s.Get(key)))
	if err != nil {
		return fallback
	}
	return n
}
