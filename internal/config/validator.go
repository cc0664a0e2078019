package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config key (e.g., "log_max_size_mb")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// maxLogSizeMB bounds log_max_size_mb.
const maxLogSizeMB = 1000

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the keys the session interprets. Invalid values are not
// fatal: callers log the errors and fall back to defaults.
func (s *Store) Validate() ValidationErrors {
	var errs ValidationErrors

	if lvl := s.Get(KeyLogLevel); lvl != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(lvl)) {
		errs = append(errs, ValidationError{
			Field:   KeyLogLevel,
			Value:   lvl,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if raw := s.Get(KeyLogMaxSizeMB); raw != "" {
		n, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			errs = append(errs, ValidationError{Field: KeyLogMaxSizeMB, Value: raw, Message: "must be an integer"})
		case n < 0:
			errs = append(errs, ValidationError{Field: KeyLogMaxSizeMB, Value: n, Message: "must be non-negative"})
		case n > maxLogSizeMB:
			errs = append(errs, ValidationError{
				Field:   KeyLogMaxSizeMB,
				Value:   n,
				Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
			})
		}
	}

	if raw := s.Get(KeyLogMaxBackups); raw != "" {
		n, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			errs = append(errs, ValidationError{Field: KeyLogMaxBackups, Value: raw, Message: "must be an integer"})
		case n < 0:
			errs = append(errs, ValidationError{Field: KeyLogMaxBackups, Value: n, Message: "must be non-negative"})
		}
	}

	for _, k := range s.Keys() {
		if !strings.HasSuffix(strings.ToLower(k), "_is_enabled") {
			continue
		}
		if v := s.Get(k); v != "0" && v != "1" {
			errs = append(errs, ValidationError{Field: k, Value: v, Message: `must be "0" or "1"`})
		}
	}

	return errs
}
