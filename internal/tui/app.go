package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sourcegraph/conc"
	"golang.org/x/term"

	"github.com/Iron-Ham/nchat/internal/event"
	"github.com/Iron-Ham/nchat/internal/logging"
	"github.com/Iron-Ham/nchat/internal/protocol"
	"github.com/Iron-Ham/nchat/internal/tui/keymap"
	"github.com/Iron-Ham/nchat/internal/tui/styles"
)

// KeymapFileName is the optional key binding override file in the config
// directory.
const KeymapFileName = "keymap.yaml"

// ErrNotInitialized is returned by Run when Init was not called.
var ErrNotInitialized = errors.New("tui: not initialized")

// pump drains one protocol's outbox into the program.
type pump struct {
	cancel context.CancelFunc
	wg     *conc.WaitGroup
}

func (p *pump) stop() {
	p.cancel()
	p.wg.Wait()
}

// App is the bubbletea implementation of UI.
type App struct {
	name   string
	layout Layout
	opts   Options
	logger *logging.Logger

	program *tea.Program

	mu       sync.Mutex
	running  bool
	pending  []protocol.Protocol // added before Run
	pumps    map[string]*pump
	backlog  []tea.Msg // session events published before Run
	busSubs  []string
	finished bool
}

// NewDefault returns the full UI with a chat list sidebar.
func NewDefault(opts Options) UI {
	return newApp(NameDefault, LayoutSidebar, opts)
}

// NewLite returns the single column UI for narrow terminals.
func NewLite(opts Options) UI {
	return newApp(NameLite, LayoutSingle, opts)
}

func newApp(name string, layout Layout, opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &App{
		name:   name,
		layout: layout,
		opts:   opts,
		logger: logger.WithComponent("ui"),
		pumps:  make(map[string]*pump),
	}
}

// Name returns the UI name.
func (a *App) Name() string { return a.name }

// Init builds the model from the configured theme and keymap and creates
// the terminal program. A broken theme or keymap file falls back to the
// defaults with a warning.
func (a *App) Init() error {
	palette, err := styles.Resolve(a.opts.Theme, a.opts.ConfigDir)
	if err != nil {
		a.logger.Warn("using default theme", "theme", a.opts.Theme, "error", err)
		palette = styles.DefaultPalette()
	}

	keys := keymap.DefaultKeymap()
	if a.opts.ConfigDir != "" {
		km, err := keymap.LoadFile(filepath.Join(a.opts.ConfigDir, KeymapFileName), keys)
		if err != nil {
			a.logger.Warn("using default keymap", "error", err)
		} else {
			keys = km
		}
	}

	model := NewModel(a.layout, styles.New(palette), keys)
	model.blink = !a.opts.Headless
	a.program = tea.NewProgram(model, a.programOptions()...)

	if bus := a.opts.Bus; bus != nil {
		forward := func(ev event.Event) { a.post(sessionEventMsg{ev: ev}) }
		a.mu.Lock()
		a.busSubs = append(a.busSubs,
			bus.Subscribe(event.TypeProtocolStarted, forward),
			bus.Subscribe(event.TypeProtocolFailed, forward),
			bus.Subscribe(event.TypeConfigChanged, forward),
		)
		a.mu.Unlock()
	}

	a.logger.Debug("ui initialized", "layout", a.layout, "keymap", keys.Name)
	return nil
}

func (a *App) programOptions() []tea.ProgramOption {
	// Signals are handled by the orchestrator, which cancels Run's context.
	opts := []tea.ProgramOption{tea.WithoutSignalHandler()}
	if a.opts.Headless {
		return append(opts, tea.WithInput(nil), tea.WithOutput(io.Discard), tea.WithoutRenderer())
	}
	if a.opts.Input != nil {
		opts = append(opts, tea.WithInput(a.opts.Input))
	}
	out := a.opts.Output
	if out == nil {
		out = os.Stdout
	}
	opts = append(opts, tea.WithOutput(out))
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		opts = append(opts, tea.WithAltScreen())
	}
	return opts
}

// post delivers msg to the program. Before Run it is queued; once Run has
// started Send either reaches the event loop or, after the loop exited,
// returns immediately.
func (a *App) post(msg tea.Msg) {
	a.mu.Lock()
	if !a.running && !a.finished {
		a.backlog = append(a.backlog, msg)
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()
	a.program.Send(msg)
}

// AddProtocol starts a pump for p. Pumps of protocols added before Run
// start with Run.
func (a *App) AddProtocol(p protocol.Protocol) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.pumps[p.Name()]; ok {
		return
	}
	if !a.running {
		a.pending = append(a.pending, p)
		return
	}
	a.pumps[p.Name()] = a.startPump(p)
}

// RemoveProtocol stops p's pump and waits for it.
func (a *App) RemoveProtocol(p protocol.Protocol) {
	name := p.Name()

	a.mu.Lock()
	pm := a.pumps[name]
	delete(a.pumps, name)
	for i, q := range a.pending {
		if q.Name() == name {
			a.pending = append(a.pending[:i], a.pending[i+1:]...)
			break
		}
	}
	a.mu.Unlock()

	if pm == nil {
		return
	}
	pm.stop()
	a.post(protocolRemovedMsg{name: name})
	a.logger.Debug("protocol removed", "protocol", name)
}

// startPump must be called with a.mu held.
func (a *App) startPump(p protocol.Protocol) *pump {
	ctx, cancel := context.WithCancel(context.Background())
	pm := &pump{cancel: cancel, wg: conc.NewWaitGroup()}
	logger := a.logger.WithProtocol(p.Name())

	pm.wg.Go(func() {
		a.program.Send(protocolAddedMsg{proto: p})
		for {
			ev, err := p.Events().Next(ctx)
			if err != nil {
				if errors.Is(err, protocol.ErrOutboxClosed) {
					logger.Debug("outbox closed")
				}
				return
			}
			a.program.Send(eventMsg{ev: ev})
		}
	})
	return pm
}

// Run starts the pumps and blocks in the program's event loop until the
// user quits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.program == nil {
		a.mu.Unlock()
		return ErrNotInitialized
	}
	a.running = true
	for _, p := range a.pending {
		a.pumps[p.Name()] = a.startPump(p)
	}
	a.pending = nil
	backlog := a.backlog
	a.backlog = nil
	a.mu.Unlock()

	done := make(chan struct{})
	var wg conc.WaitGroup
	wg.Go(func() {
		for _, msg := range backlog {
			a.program.Send(msg)
		}
	})
	wg.Go(func() {
		select {
		case <-ctx.Done():
			a.logger.Info("quitting ui", "reason", context.Cause(ctx))
			a.program.Quit()
		case <-done:
		}
	})

	_, err := a.program.Run()
	close(done)
	wg.Wait()

	a.mu.Lock()
	a.running = false
	a.finished = true
	a.mu.Unlock()

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// Cleanup drops the bus subscriptions. Pumps are stopped by RemoveProtocol.
func (a *App) Cleanup() {
	a.mu.Lock()
	subs := a.busSubs
	a.busSubs = nil
	a.mu.Unlock()

	for _, id := range subs {
		a.opts.Bus.Unsubscribe(id)
	}
	a.logger.Debug("ui cleaned up")
}

var _ UI = (*App)(nil)
