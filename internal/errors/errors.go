// Package errors provides the error definitions shared across nchat. It
// defines sentinel errors, the typed errors raised at session startup and by
// protocol backends, and classification helpers.
//
// # Error Types
//
//   - StartupError: a fatal failure before or while the session starts
//     (lock, config directory, unknown UI, setup). Carries the one-line
//     diagnostic printed to the terminal and the process exit code.
//   - ProtocolError: an asynchronous backend failure, tagged with the
//     protocol name and the operation that failed.
//
// # Usage
//
//	err := errors.NewStartupError(errors.StageLock, cause).
//		WithMessage("unable to acquire lock for " + dir)
//
//	if errors.Is(err, errors.ErrLocked) { ... }
//
//	var pe *errors.ProtocolError
//	if errors.As(err, &pe) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityWarning is for failures the session survives.
	SeverityWarning Severity = iota
	// SeverityError is for failures of a single operation.
	SeverityError
	// SeverityFatal is for failures that end the session.
	SeverityFatal
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Session-related sentinel errors
var (
	// ErrLocked indicates that another session holds the config directory lock.
	ErrLocked = New("config directory is locked by another session")
	// ErrUnknownUI indicates that the configured ui name is not registered.
	ErrUnknownUI = New("unknown ui")
	// ErrSetupFailed indicates that interactive protocol setup did not complete.
	ErrSetupFailed = New("setup failed")
	// ErrInvalidTransition indicates a protocol lifecycle transition that is not allowed.
	ErrInvalidTransition = New("invalid lifecycle transition")
)

// Protocol-related sentinel errors
var (
	// ErrNotRunning indicates a request made to a protocol that is not started.
	ErrNotRunning = New("protocol not running")
	// ErrQueueFull indicates that a protocol could not accept another request.
	ErrQueueFull = New("protocol request queue full")
	// ErrUnknownChat indicates a request referencing a chat the backend does not know.
	ErrUnknownChat = New("unknown chat")
	// ErrNotFound indicates a missing message or file.
	ErrNotFound = New("not found")
)

// Exit codes returned by the nchat binary.
const (
	ExitOK    = 0
	ExitFatal = 1
)

// -----------------------------------------------------------------------------
// Startup Errors
// -----------------------------------------------------------------------------

// Stage identifies the startup step a StartupError came from.
type Stage string

// Startup stages, in the order the orchestrator runs them.
const (
	StageConfigDir Stage = "configdir"
	StageLock      Stage = "lock"
	StageLogging   Stage = "logging"
	StageConfig    Stage = "config"
	StageUI        Stage = "ui"
	StageSetup     Stage = "setup"
	StageRun       Stage = "run"
)

// StartupError is a fatal session error. Message is printed verbatim to the
// terminal, so it must be safe to show users.
//
// Example:
//
//	err := errors.NewStartupError(errors.StageUI, errors.ErrUnknownUI).
//		WithMessage(`error: unknown ui "foo"`)
//	fmt.Println(err) // "startup error [stage=ui]: error: unknown ui "foo": unknown ui"
type StartupError struct {
	Stage   Stage
	Message string
	Cause   error
}

// NewStartupError creates a StartupError for stage wrapping cause.
func NewStartupError(stage Stage, cause error) *StartupError {
	return &StartupError{Stage: stage, Cause: cause}
}

// WithMessage sets the user-facing diagnostic.
func (e *StartupError) WithMessage(msg string) *StartupError {
	e.Message = msg
	return e
}

// Error returns the formatted error message.
func (e *StartupError) Error() string {
	prefix := fmt.Sprintf("startup error [stage=%s]", e.Stage)
	var parts []string
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	if len(parts) == 0 {
		return prefix
	}
	return prefix + ": " + strings.Join(parts, ": ")
}

// Unwrap returns the underlying error.
func (e *StartupError) Unwrap() error {
	return e.Cause
}

// UserMessage returns the text to print on the terminal.
func (e *StartupError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return "error: " + e.Cause.Error()
	}
	return "error: startup failed"
}

// ExitCode returns the process exit status for the error.
func (e *StartupError) ExitCode() int {
	return ExitFatal
}

// -----------------------------------------------------------------------------
// Protocol Errors
// -----------------------------------------------------------------------------

// ProtocolError represents an asynchronous backend failure delivered to the UI.
//
// Example:
//
//	err := errors.NewProtocolError("telegram", "SendMessage", errors.ErrQueueFull)
//	fmt.Println(err) // "telegram: SendMessage: protocol request queue full"
type ProtocolError struct {
	Protocol  string
	Operation string
	Cause     error
	severity  Severity
}

// NewProtocolError creates a new ProtocolError.
func NewProtocolError(protocol, op string, cause error) *ProtocolError {
	return &ProtocolError{
		Protocol:  protocol,
		Operation: op,
		Cause:     cause,
		severity:  SeverityError,
	}
}

// WithSeverity sets the error severity.
func (e *ProtocolError) WithSeverity(s Severity) *ProtocolError {
	e.severity = s
	return e
}

// Severity returns the error severity.
func (e *ProtocolError) Severity() Severity {
	return e.severity
}

// Error returns the formatted error message.
func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Protocol, e.Operation, e.Cause)
	}
	return fmt.Sprintf("%s: %s failed", e.Protocol, e.Operation)
}

// Unwrap returns the underlying error.
func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// ExitCode maps err to a process exit status: ExitOK for nil, the
// StartupError's code when err wraps one, ExitFatal otherwise.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var se *StartupError
	if As(err, &se) {
		return se.ExitCode()
	}
	return ExitFatal
}

// UserMessage returns the one-line diagnostic for err suitable for the
// terminal. Returns "" for nil.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *StartupError
	if As(err, &se) {
		return se.UserMessage()
	}
	return "error: " + err.Error()
}

// GetSeverity returns the severity level of the error.
// Returns SeverityFatal for startup errors and SeverityError for errors
// without a classification.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityWarning
	}
	var se *StartupError
	if As(err, &se) {
		return SeverityFatal
	}
	var pe *ProtocolError
	if As(err, &pe) {
		return pe.Severity()
	}
	return SeverityError
}

// IsRetryable reports whether a request that failed with err may be
// resubmitted as is. Only a full request queue qualifies.
func IsRetryable(err error) bool {
	return err != nil && Is(err, ErrQueueFull)
}
