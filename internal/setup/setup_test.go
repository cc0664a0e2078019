package setup

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/nchat/internal/config"
	"github.com/Iron-Ham/nchat/internal/errors"
	"github.com/Iron-Ham/nchat/internal/protocol"
	"github.com/Iron-Ham/nchat/internal/testutil"
)

func newStore(t *testing.T, names ...string) *config.Store {
	t.Helper()
	s, err := config.Load(filepath.Join(t.TempDir(), config.FileName), config.Defaults(names))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return s
}

func descriptors(ps ...*testutil.FakeProtocol) []*protocol.Descriptor {
	out := make([]*protocol.Descriptor, len(ps))
	for i, p := range ps {
		out[i] = protocol.NewDescriptor(p)
	}
	return out
}

func TestRun(t *testing.T) {
	tests := []struct {
		name      string
		answer    string
		setupErr  error
		want      string
		wantErr   bool
		wantSetup []int // setup calls per protocol
	}{
		{name: "first", answer: "1\n", want: "alpha", wantSetup: []int{1, 0}},
		{name: "second without newline", answer: "2", want: "beta", wantSetup: []int{0, 1}},
		{name: "padded", answer: " 2 \n", want: "beta", wantSetup: []int{0, 1}},
		{name: "exit", answer: "0\n", wantErr: true, wantSetup: []int{0, 0}},
		{name: "out of range", answer: "3\n", wantErr: true, wantSetup: []int{0, 0}},
		{name: "not a number", answer: "telegram\n", wantErr: true, wantSetup: []int{0, 0}},
		{name: "no answer", answer: "", wantErr: true, wantSetup: []int{0, 0}},
		{name: "setup fails", answer: "1\n", setupErr: errors.New("bad token"), wantErr: true, wantSetup: []int{1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alpha := testutil.NewFakeProtocol("alpha")
			alpha.SetupErr = tt.setupErr
			beta := testutil.NewFakeProtocol("beta")
			store := newStore(t, "alpha", "beta")
			var out bytes.Buffer

			got, err := Run(context.Background(), descriptors(alpha, beta), store, NewLinePrompter(strings.NewReader(tt.answer), &out), nil)

			if tt.wantErr {
				if !errors.Is(err, errors.ErrSetupFailed) {
					t.Fatalf("Run() error = %v, want ErrSetupFailed", err)
				}
				if tt.setupErr != nil && !errors.Is(err, tt.setupErr) {
					t.Errorf("Run() error = %v, want it to wrap %v", err, tt.setupErr)
				}
				for _, name := range []string{"alpha", "beta"} {
					if store.Bool(config.EnabledKey(name)) {
						t.Errorf("%s enabled after failed setup", name)
					}
				}
			} else {
				if err != nil {
					t.Fatalf("Run() error = %v", err)
				}
				if got != tt.want {
					t.Errorf("Run() = %q, want %q", got, tt.want)
				}
				if !store.Bool(config.EnabledKey(tt.want)) {
					t.Errorf("%s not enabled", tt.want)
				}
			}

			for i, p := range []*testutil.FakeProtocol{alpha, beta} {
				if n := p.Count("Setup"); n != tt.wantSetup[i] {
					t.Errorf("%s Setup calls = %d, want %d", p.Name(), n, tt.wantSetup[i])
				}
				if n := p.Count("Start"); n != 0 {
					t.Errorf("%s started during setup", p.Name())
				}
			}

			listing := out.String()
			for _, want := range []string{"1. alpha", "2. beta", "0. Exit", "Select protocol: "} {
				if !strings.Contains(listing, want) {
					t.Errorf("output missing %q:\n%s", want, listing)
				}
			}
		})
	}
}

func TestRun_NoProtocols(t *testing.T) {
	_, err := Run(context.Background(), nil, newStore(t), NewLinePrompter(strings.NewReader("1\n"), &bytes.Buffer{}), nil)
	if !errors.Is(err, errors.ErrSetupFailed) {
		t.Errorf("Run() error = %v, want ErrSetupFailed", err)
	}
}

func TestRun_SetupPromptsThroughPrompter(t *testing.T) {
	p := testutil.NewFakeProtocol("alpha")
	var out bytes.Buffer
	prompter := NewLinePrompter(strings.NewReader("1\nsecret-token\n"), &out)

	var token string
	p.OnSetup = func(ctx context.Context) error {
		var err error
		token, err = prompter.Prompt(ctx, "Token: ", true)
		return err
	}

	if _, err := Run(context.Background(), descriptors(p), newStore(t, "alpha"), prompter, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if token != "secret-token" {
		t.Errorf("token = %q", token)
	}
}

func TestLinePrompter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewLinePrompter(strings.NewReader("1\n"), &bytes.Buffer{})
	if _, err := p.Prompt(ctx, "x: ", false); !errors.Is(err, context.Canceled) {
		t.Errorf("Prompt() error = %v, want context.Canceled", err)
	}
}

func TestPromptModel(t *testing.T) {
	step := func(m promptModel, msg tea.Msg) (promptModel, tea.Cmd) {
		next, cmd := m.Update(msg)
		return next.(promptModel), cmd
	}

	t.Run("enter submits", func(t *testing.T) {
		m := newPromptModel("Token: ", false)
		m, _ = step(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("abc")})
		if !strings.Contains(m.View(), "abc") {
			t.Errorf("view = %q, want typed text", m.View())
		}
		m, cmd := step(m, tea.KeyMsg{Type: tea.KeyEnter})
		if !m.done || m.input.Value() != "abc" {
			t.Errorf("done = %v, value = %q", m.done, m.input.Value())
		}
		if cmd == nil {
			t.Fatal("enter returned no command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("enter did not quit")
		}
		if m.View() != "" {
			t.Errorf("view after submit = %q, want empty", m.View())
		}
	})

	t.Run("secret is masked", func(t *testing.T) {
		m := newPromptModel("Token: ", true)
		m, _ = step(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hunter2")})
		if strings.Contains(m.View(), "hunter2") {
			t.Errorf("secret shown in view: %q", m.View())
		}
		if m.input.Value() != "hunter2" {
			t.Errorf("value = %q", m.input.Value())
		}
	})

	t.Run("escape cancels", func(t *testing.T) {
		m := newPromptModel("Token: ", false)
		m, _ = step(m, tea.KeyMsg{Type: tea.KeyEsc})
		if !m.cancelled {
			t.Error("escape did not cancel")
		}
	})
}
