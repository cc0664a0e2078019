package protocol

import (
	"context"
	"fmt"
	"sync"

	"github.com/Iron-Ham/nchat/internal/errors"
)

// State is a protocol's lifecycle state within one session.
type State int

const (
	Constructed State = iota
	Running
	Stopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Constructed:
		return "constructed"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Descriptor pairs a constructed protocol with its lifecycle state and
// enforces Constructed -> Running -> Stopped. A failed Start leaves the
// protocol Constructed, and Constructed -> Stopped is refused.
type Descriptor struct {
	Protocol Protocol

	mu    sync.Mutex
	state State
}

// NewDescriptor wraps p in state Constructed.
func NewDescriptor(p Protocol) *Descriptor {
	return &Descriptor{Protocol: p}
}

// Name returns the wrapped protocol's name.
func (d *Descriptor) Name() string {
	return d.Protocol.Name()
}

// State returns the current lifecycle state.
func (d *Descriptor) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Start calls the protocol's Start once and moves it to Running on success.
func (d *Descriptor) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != Constructed {
		return fmt.Errorf("%w: start %s while %s", errors.ErrInvalidTransition, d.Protocol.Name(), d.state)
	}
	if err := d.Protocol.Start(ctx); err != nil {
		return err
	}
	d.state = Running
	return nil
}

// Stop calls the protocol's Stop once and moves it to Stopped. The state
// becomes Stopped even when Stop returns an error, since background work
// has been torn down either way.
func (d *Descriptor) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != Running {
		return fmt.Errorf("%w: stop %s while %s", errors.ErrInvalidTransition, d.Protocol.Name(), d.state)
	}
	err := d.Protocol.Stop()
	d.state = Stopped
	return err
}
