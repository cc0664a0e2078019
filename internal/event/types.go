package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "protocol.started").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeProtocolStarted = "protocol.started"
	TypeProtocolFailed  = "protocol.failed"
	TypeProtocolStopped = "protocol.stopped"
	TypeConfigSaved     = "config.saved"
	TypeConfigChanged   = "config.changed"
	TypeSessionShutdown = "session.shutdown"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Protocol Lifecycle Events
// -----------------------------------------------------------------------------

// ProtocolStartedEvent is emitted after a protocol's Start succeeded and it
// was handed to the UI.
type ProtocolStartedEvent struct {
	baseEvent
	Protocol string
}

// NewProtocolStartedEvent creates a ProtocolStartedEvent.
func NewProtocolStartedEvent(protocol string) ProtocolStartedEvent {
	return ProtocolStartedEvent{
		baseEvent: newBaseEvent(TypeProtocolStarted),
		Protocol:  protocol,
	}
}

// ProtocolFailedEvent is emitted when an enabled protocol could not start.
// The session continues without it.
type ProtocolFailedEvent struct {
	baseEvent
	Protocol string
	Err      error
}

// NewProtocolFailedEvent creates a ProtocolFailedEvent.
func NewProtocolFailedEvent(protocol string, err error) ProtocolFailedEvent {
	return ProtocolFailedEvent{
		baseEvent: newBaseEvent(TypeProtocolFailed),
		Protocol:  protocol,
		Err:       err,
	}
}

// ProtocolStoppedEvent is emitted after a started protocol's Stop returned.
type ProtocolStoppedEvent struct {
	baseEvent
	Protocol string
	Err      error // Stop's error, if any
}

// NewProtocolStoppedEvent creates a ProtocolStoppedEvent.
func NewProtocolStoppedEvent(protocol string, err error) ProtocolStoppedEvent {
	return ProtocolStoppedEvent{
		baseEvent: newBaseEvent(TypeProtocolStopped),
		Protocol:  protocol,
		Err:       err,
	}
}

// -----------------------------------------------------------------------------
// Config Events
// -----------------------------------------------------------------------------

// ConfigSavedEvent is emitted after main.conf was written.
type ConfigSavedEvent struct {
	baseEvent
	Path string
	Err  error
}

// NewConfigSavedEvent creates a ConfigSavedEvent.
func NewConfigSavedEvent(path string, err error) ConfigSavedEvent {
	return ConfigSavedEvent{
		baseEvent: newBaseEvent(TypeConfigSaved),
		Path:      path,
		Err:       err,
	}
}

// ConfigChangedEvent is emitted when another program edits main.conf while
// the session runs.
type ConfigChangedEvent struct {
	baseEvent
	Path string
}

// NewConfigChangedEvent creates a ConfigChangedEvent.
func NewConfigChangedEvent(path string) ConfigChangedEvent {
	return ConfigChangedEvent{
		baseEvent: newBaseEvent(TypeConfigChanged),
		Path:      path,
	}
}

// -----------------------------------------------------------------------------
// Session Events
// -----------------------------------------------------------------------------

// SessionShutdownEvent is emitted when the UI loop returned and teardown
// begins.
type SessionShutdownEvent struct {
	baseEvent
	Reason string // "user", "signal" or "error"
}

// NewSessionShutdownEvent creates a SessionShutdownEvent.
func NewSessionShutdownEvent(reason string) SessionShutdownEvent {
	return SessionShutdownEvent{
		baseEvent: newBaseEvent(TypeSessionShutdown),
		Reason:    reason,
	}
}
