package errors

import (
	"errors"
	"fmt"
	"testing"
)

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityFatal, "fatal"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// StartupError Tests
// -----------------------------------------------------------------------------

func TestStartupError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *StartupError
		want string
	}{
		{
			name: "stage only",
			err:  NewStartupError(StageLock, nil),
			want: "startup error [stage=lock]",
		},
		{
			name: "with cause",
			err:  NewStartupError(StageUI, ErrUnknownUI),
			want: "startup error [stage=ui]: unknown ui",
		},
		{
			name: "with message and cause",
			err:  NewStartupError(StageSetup, ErrSetupFailed).WithMessage("setup aborted"),
			want: "startup error [stage=setup]: setup aborted: setup failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStartupError_UserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *StartupError
		want string
	}{
		{"explicit message", NewStartupError(StageLock, ErrLocked).WithMessage("error: busy"), "error: busy"},
		{"falls back to cause", NewStartupError(StageUI, ErrUnknownUI), "error: unknown ui"},
		{"empty", NewStartupError(StageRun, nil), "error: startup failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.UserMessage(); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStartupError_Unwrap(t *testing.T) {
	err := fmt.Errorf("running session: %w", NewStartupError(StageLock, ErrLocked))

	if !Is(err, ErrLocked) {
		t.Error("errors.Is(err, ErrLocked) = false, want true")
	}

	var se *StartupError
	if !As(err, &se) {
		t.Fatal("errors.As(*StartupError) = false, want true")
	}
	if se.Stage != StageLock {
		t.Errorf("Stage = %q, want %q", se.Stage, StageLock)
	}
}

// -----------------------------------------------------------------------------
// ProtocolError Tests
// -----------------------------------------------------------------------------

func TestProtocolError(t *testing.T) {
	err := NewProtocolError("telegram", "SendMessage", ErrQueueFull)

	if got, want := err.Error(), "telegram: SendMessage: protocol request queue full"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrQueueFull) {
		t.Error("errors.Is(err, ErrQueueFull) = false, want true")
	}
	if err.Severity() != SeverityError {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityError)
	}

	noCause := NewProtocolError("telegram", "Start", nil).WithSeverity(SeverityWarning)
	if got, want := noCause.Error(), "telegram: Start failed"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if noCause.Severity() != SeverityWarning {
		t.Errorf("Severity() = %v, want %v", noCause.Severity(), SeverityWarning)
	}
}

// -----------------------------------------------------------------------------
// Classification Tests
// -----------------------------------------------------------------------------

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"startup", NewStartupError(StageLock, ErrLocked), ExitFatal},
		{"wrapped startup", fmt.Errorf("x: %w", NewStartupError(StageUI, nil)), ExitFatal},
		{"plain", New("boom"), ExitFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(nil); got != "" {
		t.Errorf("UserMessage(nil) = %q, want empty", got)
	}
	if got, want := UserMessage(New("boom")), "error: boom"; got != want {
		t.Errorf("UserMessage() = %q, want %q", got, want)
	}
	wrapped := fmt.Errorf("run: %w", NewStartupError(StageLock, ErrLocked).WithMessage("error: locked"))
	if got, want := UserMessage(wrapped), "error: locked"; got != want {
		t.Errorf("UserMessage() = %q, want %q", got, want)
	}
}

func TestGetSeverity(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"nil", nil, SeverityWarning},
		{"startup", NewStartupError(StageLock, nil), SeverityFatal},
		{"protocol", NewProtocolError("p", "op", nil).WithSeverity(SeverityWarning), SeverityWarning},
		{"plain", New("boom"), SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetSeverity(tt.err); got != tt.want {
				t.Errorf("GetSeverity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("IsRetryable(nil) = true, want false")
	}
	if !IsRetryable(NewProtocolError("p", "op", ErrQueueFull)) {
		t.Error("IsRetryable(queue full) = false, want true")
	}
	if IsRetryable(NewProtocolError("p", "op", ErrNotRunning)) {
		t.Error("IsRetryable(not running) = true, want false")
	}
}
