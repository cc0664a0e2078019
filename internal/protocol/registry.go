package protocol

import (
	"context"

	"github.com/Iron-Ham/nchat/internal/logging"
)

// Prompter asks the user for input during Setup.
type Prompter interface {
	// Prompt shows label and returns the entered line. Secret input is not
	// echoed.
	Prompt(ctx context.Context, label string, secret bool) (string, error)
	// Printf writes an informational line to the user.
	Printf(format string, args ...any)
}

// Env is the session context handed to every protocol at construction.
// It replaces process-wide config and log state.
type Env struct {
	// ConfigDir is the session's configuration directory. Protocols keep
	// their private files in ConfigDir/<name>.
	ConfigDir string
	Logger    *logging.Logger
	Verbose   bool
	Setup     bool
	Prompter  Prompter
}

// Factory constructs a protocol.
type Factory struct {
	Name string
	New  func(Env) Protocol
}

// Registry is the fixed, ordered set of known protocols. Declaration order
// is start order.
type Registry struct {
	factories []Factory
}

// NewRegistry returns a registry of factories in the given order.
func NewRegistry(factories ...Factory) *Registry {
	return &Registry{factories: append([]Factory(nil), factories...)}
}

// Names returns the known protocol names in declaration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.factories))
	for i, f := range r.factories {
		names[i] = f.Name
	}
	return names
}

// Len returns the number of known protocols.
func (r *Registry) Len() int {
	return len(r.factories)
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

// Construct builds every known protocol, in declaration order, each with a
// logger tagged with its name.
func (r *Registry) Construct(env Env) []*Descriptor {
	out := make([]*Descriptor, 0, len(r.factories))
	for _, f := range r.factories {
		pe := env
		if env.Logger != nil {
			pe.Logger = env.Logger.WithProtocol(f.Name)
		} else {
			pe.Logger = logging.NopLogger()
		}
		out = append(out, NewDescriptor(f.New(pe)))
	}
	return out
}
