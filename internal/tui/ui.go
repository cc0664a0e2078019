// Package tui provides the terminal frontends of nchat.
//
// A UI owns the terminal for the length of a session. Protocols are handed
// to it with AddProtocol; for each one the UI runs a pump goroutine that
// drains the protocol's event outbox into the bubbletea program, so backend
// results are applied on the UI's own event loop. RemoveProtocol stops and
// joins that pump before the orchestrator stops the protocol.
package tui

import (
	"context"
	"io"

	"github.com/Iron-Ham/nchat/internal/event"
	"github.com/Iron-Ham/nchat/internal/logging"
	"github.com/Iron-Ham/nchat/internal/protocol"
)

// UI names, as stored under the "ui" key of main.conf.
const (
	NameDefault = "uidefault"
	NameLite    = "uilite"
)

// UI is a terminal frontend. Exactly one is active per session.
type UI interface {
	Name() string

	// Init prepares the terminal program. It is called once, before any
	// protocol is added.
	Init() error

	// Run blocks until the user quits or ctx is done.
	Run(ctx context.Context) error

	// Cleanup releases UI resources after Run returned.
	Cleanup()

	// AddProtocol starts delivering p's events to the UI.
	AddProtocol(p protocol.Protocol)

	// RemoveProtocol stops delivering p's events and waits until no
	// delivery is in flight.
	RemoveProtocol(p protocol.Protocol)
}

// Options configure a UI.
type Options struct {
	ConfigDir string
	Theme     string
	Logger    *logging.Logger

	// Bus carries session events shown in the status bar. Optional.
	Bus *event.Bus

	// Input and Output default to the terminal.
	Input  io.Reader
	Output io.Writer

	// Headless disables terminal input and rendering.
	Headless bool
}

// Factory constructs a UI.
type Factory struct {
	Name string
	New  func(Options) UI
}

// Registry is the fixed set of known UIs.
type Registry struct {
	factories []Factory
}

// NewRegistry returns a registry of the given factories.
func NewRegistry(factories ...Factory) *Registry {
	return &Registry{factories: append([]Factory(nil), factories...)}
}

// DefaultRegistry returns the registry of built-in UIs.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Factory{Name: NameDefault, New: NewDefault},
		Factory{Name: NameLite, New: NewLite},
	)
}

// Names returns the known UI names.
func (r *Registry) Names() []string {
	names := make([]string, len(r.factories))
	for i, f := range r.factories {
		names[i] = f.Name
	}
	return names
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	for _, f := range r.factories {
		if f.Name == name {
			return f, true
		}
	}
	return Factory{}, false
}
