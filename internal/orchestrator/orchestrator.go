// Package orchestrator runs one nchat session: it takes the config
// directory lock, loads main.conf, then either runs setup mode or starts the
// enabled protocols under the configured UI, and finally tears everything
// down in a fixed order.
//
// Run is meant to be called from the main goroutine. Signals are expected to
// cancel the context passed to Run; the UI then returns from its loop and
// teardown proceeds as after a normal exit.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Iron-Ham/nchat/internal/config"
	"github.com/Iron-Ham/nchat/internal/errors"
	"github.com/Iron-Ham/nchat/internal/event"
	"github.com/Iron-Ham/nchat/internal/logging"
	"github.com/Iron-Ham/nchat/internal/protocol"
	"github.com/Iron-Ham/nchat/internal/protocol/telegram"
	"github.com/Iron-Ham/nchat/internal/session"
	"github.com/Iron-Ham/nchat/internal/setup"
	"github.com/Iron-Ham/nchat/internal/tui"
	"github.com/Iron-Ham/nchat/internal/version"
)

const configDirMode = 0o700

// Options configure a session.
type Options struct {
	ConfigDir string
	Verbose   bool
	Setup     bool

	// Protocols defaults to DefaultProtocols.
	Protocols *protocol.Registry
	// UIs defaults to tui.DefaultRegistry.
	UIs *tui.Registry

	// Prompter is used by setup mode. Defaults to a prompter on
	// stdin/stdout.
	Prompter protocol.Prompter
	// Stdout receives user facing lines. Defaults to os.Stdout.
	Stdout io.Writer

	// Headless runs the UI without terminal input or output.
	Headless bool
}

// DefaultProtocols returns the registry of built-in protocols, in start
// order.
func DefaultProtocols() *protocol.Registry {
	return protocol.NewRegistry(telegram.Factory)
}

func (o Options) withDefaults() Options {
	if o.ConfigDir == "" {
		o.ConfigDir = config.DefaultDir()
	}
	if o.Protocols == nil {
		o.Protocols = DefaultProtocols()
	}
	if o.UIs == nil {
		o.UIs = tui.DefaultRegistry()
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Setup && o.Prompter == nil {
		o.Prompter = setup.NewPrompter(os.Stdin, o.Stdout)
	}
	return o
}

// Session is the state owned by one Run.
type Session struct {
	opts   Options
	id     string
	lock   *session.DirLock
	store  *config.Store
	logger *logging.Logger
	bus    *event.Bus

	ui        tui.UI
	protocols []*protocol.Descriptor
	started   []*protocol.Descriptor
}

// Run executes one session and returns when it is over. Fatal startup
// failures are returned as *errors.StartupError; errors.ExitCode maps the
// result to the process exit status.
func Run(ctx context.Context, opts Options) error {
	opts = opts.withDefaults()
	dir := opts.ConfigDir

	if err := os.MkdirAll(dir, configDirMode); err != nil {
		return errors.NewStartupError(errors.StageConfigDir, err).
			WithMessage(fmt.Sprintf("error: cannot create config dir %s", dir))
	}

	lock, err := session.Acquire(dir)
	if err != nil {
		return errors.NewStartupError(errors.StageLock, err).
			WithMessage(fmt.Sprintf("error: unable to acquire lock for %s, only one nchat session per config dir is supported", dir))
	}
	defer func() { _ = lock.Release() }()

	store, err := config.Load(filepath.Join(dir, config.FileName), config.Defaults(opts.Protocols.Names()))
	if err != nil {
		return errors.NewStartupError(errors.StageConfig, err).
			WithMessage(fmt.Sprintf("error: cannot read %s", filepath.Join(dir, config.FileName)))
	}

	logger, err := newLogger(dir, store, opts.Verbose)
	if err != nil {
		return errors.NewStartupError(errors.StageLogging, err)
	}
	defer func() { _ = logger.Close() }()

	s := &Session{
		opts:  opts,
		id:    uuid.NewString(),
		lock:  lock,
		store: store,
	}
	s.logger = logger.WithSession(s.id)
	s.bus = event.NewBus(s.logger)
	event.LogEvents(s.bus, s.logger.WithComponent("events"))

	s.logger.Info("starting nchat", "version", version.Version)
	s.logger.Info("using", "platform", version.Platform())
	s.logger.Debug("config dir", "path", dir, "setup", opts.Setup)
	for _, ve := range store.Validate() {
		s.logger.Warn("invalid config value", "key", ve.Field, "value", ve.Value, "error", ve.Message)
	}

	if opts.Setup {
		return s.runSetup(ctx)
	}
	return s.run(ctx)
}

func newLogger(dir string, store *config.Store, verbose bool) (*logging.Logger, error) {
	level := store.Get(config.KeyLogLevel)
	if verbose {
		level = logging.LevelDebug
	}
	def := logging.DefaultRotationConfig()
	return logging.NewLogger(logging.Options{
		Path:  filepath.Join(dir, logging.DefaultFileName),
		Level: level,
		Rotation: logging.RotationConfig{
			MaxSizeMB:  store.Int(config.KeyLogMaxSizeMB, def.MaxSizeMB),
			MaxBackups: store.Int(config.KeyLogMaxBackups, def.MaxBackups),
			Compress:   def.Compress,
		},
	})
}

func (s *Session) env() protocol.Env {
	return protocol.Env{
		ConfigDir: s.opts.ConfigDir,
		Logger:    s.logger,
		Verbose:   s.opts.Verbose,
		Setup:     s.opts.Setup,
		Prompter:  s.opts.Prompter,
	}
}

// runSetup runs setup mode. main.conf is written only when setup succeeds.
func (s *Session) runSetup(ctx context.Context) error {
	s.protocols = s.opts.Protocols.Construct(s.env())

	name, err := setup.Run(ctx, s.protocols, s.store, s.opts.Prompter, s.logger)
	if err != nil {
		s.logger.Error("setup failed", "error", err)
		return errors.NewStartupError(errors.StageSetup, err).WithMessage("error: setup failed")
	}

	path := s.store.Path()
	fmt.Fprintf(s.opts.Stdout, "Saving to %s\n", path)
	if err := s.store.Save(path); err != nil {
		s.bus.Publish(event.NewConfigSavedEvent(path, err))
		return errors.NewStartupError(errors.StageSetup, err).
			WithMessage(fmt.Sprintf("error: cannot save %s", path))
	}
	s.bus.Publish(event.NewConfigSavedEvent(path, nil))
	s.logger.Info("setup complete", "protocol", name)
	return nil
}

// run is the interactive session: UI init, protocol start, UI loop and
// teardown.
func (s *Session) run(ctx context.Context) error {
	uiName := s.store.Get(config.KeyUI)
	factory, ok := s.opts.UIs.Lookup(uiName)
	if !ok {
		s.logger.Error("unknown ui", "ui", uiName, "known", s.opts.UIs.Names())
		return errors.NewStartupError(errors.StageUI, errors.ErrUnknownUI).
			WithMessage(fmt.Sprintf("error: unknown ui %q", uiName))
	}

	s.ui = factory.New(tui.Options{
		ConfigDir: s.opts.ConfigDir,
		Theme:     s.store.Get(config.KeyTheme),
		Logger:    s.logger,
		Bus:       s.bus,
		Headless:  s.opts.Headless,
	})
	if err := s.ui.Init(); err != nil {
		return errors.NewStartupError(errors.StageUI, err).
			WithMessage(fmt.Sprintf("error: cannot initialize ui %q", uiName))
	}
	s.logger.Info("ui initialized", "ui", s.ui.Name())

	s.protocols = s.opts.Protocols.Construct(s.env())
	s.startProtocols(ctx)

	watcher, err := config.Watch(s.store.Path(),
		func(path string) { s.bus.Publish(event.NewConfigChangedEvent(path)) },
		func(err error) { s.logger.Warn("config watch error", "error", err) },
	)
	if err != nil {
		s.logger.Warn("cannot watch config file", "error", err)
	}

	runErr := s.ui.Run(ctx)

	reason := "user"
	switch {
	case runErr != nil:
		reason = "error"
		s.logger.Error("ui failed", "error", runErr)
	case ctx.Err() != nil:
		reason = "signal"
	}
	s.bus.Publish(event.NewSessionShutdownEvent(reason))

	// Stop watching before our own save rewrites the file.
	if watcher != nil {
		watcher.Stop()
	}
	saveErr := s.save()
	s.ui.Cleanup()
	s.stopProtocols()

	if runErr != nil {
		return errors.NewStartupError(errors.StageRun, runErr)
	}
	if saveErr != nil {
		return fmt.Errorf("save config: %w", saveErr)
	}
	s.logger.Info("session ended")
	return nil
}

// startProtocols starts every enabled protocol in declaration order and
// hands it to the UI. A protocol that fails to start is reported and left
// out of the session.
func (s *Session) startProtocols(ctx context.Context) {
	for _, d := range s.protocols {
		name := d.Name()
		if !s.store.Bool(config.EnabledKey(name)) {
			s.logger.Debug("protocol disabled", "protocol", name)
			continue
		}
		if err := d.Start(ctx); err != nil {
			s.bus.Publish(event.NewProtocolFailedEvent(name, err))
			continue
		}
		s.ui.AddProtocol(d.Protocol)
		s.started = append(s.started, d)
		s.bus.Publish(event.NewProtocolStartedEvent(name))
	}
	if len(s.started) == 0 {
		s.logger.Warn("no protocol running, run nchat --setup to add an account")
	}
}

// stopProtocols detaches each started protocol from the UI, then stops it.
func (s *Session) stopProtocols() {
	for _, d := range s.started {
		s.ui.RemoveProtocol(d.Protocol)
		err := d.Stop()
		s.bus.Publish(event.NewProtocolStoppedEvent(d.Name(), err))
	}
	s.started = nil
}

func (s *Session) save() error {
	path := s.store.Path()
	err := s.store.Save(path)
	s.bus.Publish(event.NewConfigSavedEvent(path, err))
	return err
}
