// Package keymap provides key binding definitions and lookup for the TUI.
// Bindings are declarative so that the help text printed by --help and the
// keys handled by the UI come from the same table.
package keymap

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"
)

// Command represents a named action that can be triggered by a key binding.
type Command string

const (
	// Navigation
	CmdNextChat   Command = "next_chat"
	CmdPrevChat   Command = "prev_chat"
	CmdNextUnread Command = "next_unread"
	CmdPageUp     Command = "page_up"
	CmdPageDown   Command = "page_down"

	// Messages
	CmdSend         Command = "send"
	CmdSendFile     Command = "send_file"
	CmdReceiveFile  Command = "receive_file"
	CmdToggleEmoji  Command = "toggle_emoji"
	CmdToggleMsgIDs Command = "toggle_msg_ids"

	// Exit
	CmdQuit Command = "quit"
)

// Modifier represents keyboard modifiers. Ctrl is folded into the key type
// by bubbletea, so only Alt is matched separately.
type Modifier uint8

const (
	ModNone Modifier = 0
	ModAlt  Modifier = 1 << iota
)

// KeyBinding represents a single key binding.
type KeyBinding struct {
	// KeyType is the key. For rune keys use tea.KeyRunes and set Rune.
	KeyType tea.KeyType

	// Rune is the character for rune-based keys.
	Rune rune

	Modifiers Modifier

	Command Command

	// Description is shown in help output.
	Description string

	// Category groups related bindings in help output.
	Category string
}

// Matches checks if a tea.KeyMsg matches this binding.
func (kb KeyBinding) Matches(msg tea.KeyMsg) bool {
	wantAlt := kb.Modifiers&ModAlt != 0
	if msg.Alt != wantAlt {
		return false
	}
	if kb.KeyType != tea.KeyRunes {
		return msg.Type == kb.KeyType
	}
	if msg.Type != tea.KeyRunes || len(msg.Runes) == 0 {
		return false
	}
	return msg.Runes[0] == kb.Rune
}

// String returns a human-readable representation of the key, in the form
// used by the help text ("Ctrl-q", "PgUp").
func (kb KeyBinding) String() string {
	prefix := ""
	if kb.Modifiers&ModAlt != 0 {
		prefix = "Alt-"
	}
	if kb.KeyType == tea.KeyRunes {
		return prefix + string(kb.Rune)
	}
	if kb.KeyType >= tea.KeyCtrlA && kb.KeyType <= tea.KeyCtrlZ &&
		kb.KeyType != tea.KeyTab && kb.KeyType != tea.KeyEnter {
		return prefix + "Ctrl-" + string(rune('a'+kb.KeyType-tea.KeyCtrlA))
	}
	switch kb.KeyType {
	case tea.KeyTab:
		return prefix + "Tab"
	case tea.KeyShiftTab:
		return prefix + "Shift-Tab"
	case tea.KeyEnter:
		return prefix + "Enter"
	case tea.KeyPgUp:
		return prefix + "PageUp"
	case tea.KeyPgDown:
		return prefix + "PageDown"
	default:
		return prefix + kb.KeyType.String()
	}
}

// Keymap is an ordered set of bindings. The first match wins.
type Keymap struct {
	Name     string
	Bindings []KeyBinding
}

// GetBinding looks up the command for a key.
func (km *Keymap) GetBinding(msg tea.KeyMsg) (Command, bool) {
	for _, binding := range km.Bindings {
		if binding.Matches(msg) {
			return binding.Command, true
		}
	}
	return "", false
}

// GetBindingsForCommand returns all bindings that trigger cmd.
func (km *Keymap) GetBindingsForCommand(cmd Command) []KeyBinding {
	var result []KeyBinding
	for _, binding := range km.Bindings {
		if binding.Command == cmd {
			result = append(result, binding)
		}
	}
	return result
}

// HelpLines renders one line per command in binding order, for example
// "    Ctrl-x, Enter  send message".
func (km *Keymap) HelpLines() []string {
	type entry struct {
		keys []string
		desc string
	}
	var order []Command
	entries := make(map[Command]*entry)
	for _, b := range km.Bindings {
		e, ok := entries[b.Command]
		if !ok {
			e = &entry{desc: b.Description}
			entries[b.Command] = e
			order = append(order, b.Command)
		}
		e.keys = append(e.keys, b.String())
	}

	width := 0
	for _, c := range order {
		width = max(width, len(strings.Join(entries[c].keys, ", ")))
	}
	lines := make([]string, 0, len(order))
	for _, c := range order {
		e := entries[c]
		lines = append(lines, fmt.Sprintf("    %-*s  %s", width, strings.Join(e.keys, ", "), e.desc))
	}
	return lines
}

// KeymapConfig is a user keymap file. Bindings listed for a command replace
// that command's default bindings.
type KeymapConfig struct {
	Bindings map[string][]string `yaml:"bindings"`
}

// LoadFile reads a keymap file at path and applies it on top of base. A
// missing file returns base unchanged.
func LoadFile(path string, base *Keymap) (*Keymap, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return base, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading keymap file: %w", err)
	}

	var cfg KeymapConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing keymap file: %w", err)
	}

	known := make(map[Command]KeyBinding)
	for _, b := range base.Bindings {
		if _, ok := known[b.Command]; !ok {
			known[b.Command] = b
		}
	}

	overrides := make(map[Command][]KeyBinding)
	for name, specs := range cfg.Bindings {
		tmpl, ok := known[Command(name)]
		if !ok {
			return nil, fmt.Errorf("unknown command in keymap: %s", name)
		}
		for _, spec := range specs {
			kt, r, mods, err := ParseKeySpec(spec)
			if err != nil {
				return nil, err
			}
			b := tmpl
			b.KeyType, b.Rune, b.Modifiers = kt, r, mods
			overrides[tmpl.Command] = append(overrides[tmpl.Command], b)
		}
	}

	out := &Keymap{Name: "custom"}
	emitted := make(map[Command]bool)
	for _, b := range base.Bindings {
		repl, ok := overrides[b.Command]
		if !ok {
			out.Bindings = append(out.Bindings, b)
			continue
		}
		if !emitted[b.Command] {
			out.Bindings = append(out.Bindings, repl...)
			emitted[b.Command] = true
		}
	}
	return out, nil
}

// ParseKeySpec parses a key specification such as "ctrl+r", "shift+tab",
// "pgup" or "j".
func ParseKeySpec(spec string) (keyType tea.KeyType, r rune, mods Modifier, err error) {
	remaining := strings.ToLower(strings.TrimSpace(spec))
	ctrl, shift := false, false
modifiers:
	for {
		switch {
		case strings.HasPrefix(remaining, "ctrl+") && len(remaining) > 5:
			ctrl = true
			remaining = remaining[5:]
		case strings.HasPrefix(remaining, "alt+") && len(remaining) > 4:
			mods |= ModAlt
			remaining = remaining[4:]
		case strings.HasPrefix(remaining, "shift+") && len(remaining) > 6:
			shift = true
			remaining = remaining[6:]
		default:
			break modifiers
		}
	}

	switch remaining {
	case "enter":
		return tea.KeyEnter, 0, mods, nil
	case "tab":
		if shift {
			return tea.KeyShiftTab, 0, mods, nil
		}
		return tea.KeyTab, 0, mods, nil
	case "esc", "escape":
		return tea.KeyEsc, 0, mods, nil
	case "up":
		return tea.KeyUp, 0, mods, nil
	case "down":
		return tea.KeyDown, 0, mods, nil
	case "pgup", "pageup":
		return tea.KeyPgUp, 0, mods, nil
	case "pgdown", "pagedown":
		return tea.KeyPgDown, 0, mods, nil
	}

	if ctrl && len(remaining) == 1 {
		ch := remaining[0]
		if ch >= 'a' && ch <= 'z' {
			return tea.KeyCtrlA + tea.KeyType(ch-'a'), 0, mods, nil
		}
	}
	if !ctrl && len(remaining) == 1 {
		return tea.KeyRunes, rune(remaining[0]), mods, nil
	}

	return 0, 0, 0, fmt.Errorf("unrecognized key spec: %s", spec)
}
