package setup

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/Iron-Ham/nchat/internal/errors"
	"github.com/Iron-Ham/nchat/internal/protocol"
)

// ErrCancelled is returned by a prompt the user aborted.
var ErrCancelled = errors.New("prompt cancelled")

// NewPrompter returns a terminal prompter when in is a terminal and a line
// based prompter otherwise.
func NewPrompter(in *os.File, out io.Writer) protocol.Prompter {
	if term.IsTerminal(int(in.Fd())) {
		return &TerminalPrompter{in: in, out: out}
	}
	return NewLinePrompter(in, out)
}

// LinePrompter reads answers line by line. Secret input is read the same
// way; it is meant for pipes and tests.
type LinePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLinePrompter returns a prompter reading from in and writing to out.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: bufio.NewReader(in), out: out}
}

// Prompt writes label and reads one line without its newline.
func (p *LinePrompter) Prompt(ctx context.Context, label string, _ bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(p.out, label)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Printf writes one line.
func (p *LinePrompter) Printf(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// TerminalPrompter asks with a one-line bubbletea program per prompt.
type TerminalPrompter struct {
	in  io.Reader
	out io.Writer
}

// Prompt runs a textinput until Enter. Esc and Ctrl-c cancel.
func (p *TerminalPrompter) Prompt(ctx context.Context, label string, secret bool) (string, error) {
	prog := tea.NewProgram(newPromptModel(label, secret),
		tea.WithContext(ctx),
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
	)
	final, err := prog.Run()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("prompt: %w", err)
	}
	m, ok := final.(promptModel)
	if !ok || m.cancelled {
		return "", ErrCancelled
	}
	shown := m.input.Value()
	if secret {
		shown = strings.Repeat("*", len([]rune(shown)))
	}
	fmt.Fprintf(p.out, "%s%s\n", label, shown)
	return m.input.Value(), nil
}

// Printf writes one line.
func (p *TerminalPrompter) Printf(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

type promptModel struct {
	input     textinput.Model
	done      bool
	cancelled bool
}

func newPromptModel(label string, secret bool) promptModel {
	ti := textinput.New()
	ti.Prompt = label
	ti.CharLimit = 1024
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '*'
	}
	ti.Focus()
	return promptModel{input: ti}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	return m.input.View()
}
