package tui

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/nchat/internal/event"
	"github.com/Iron-Ham/nchat/internal/protocol"
	"github.com/Iron-Ham/nchat/internal/tui/keymap"
	"github.com/Iron-Ham/nchat/internal/tui/styles"
)

// Page sizes used when requesting chats and message history.
const (
	chatPageSize    = 50
	messagePageSize = 50
)

// Layout selects how the chat list and the message pane are arranged.
type Layout int

const (
	// LayoutSidebar shows the chat list next to the message pane.
	LayoutSidebar Layout = iota
	// LayoutSingle shows only the current chat; the list is reached with
	// the chat switching keys.
	LayoutSingle
)

type chatKey struct {
	proto string
	id    protocol.ChatID
}

type chatEntry struct {
	key      chatKey
	chat     protocol.Chat
	messages []protocol.Message // newest first

	requested bool // first history page requested
	loading   bool
	complete  bool // no older history
}

func (e *chatEntry) find(id protocol.MessageID) int {
	for i := range e.messages {
		if e.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// merge inserts msgs, replacing known ids, and keeps newest first order.
func (e *chatEntry) merge(msgs ...protocol.Message) {
	for _, m := range msgs {
		if m.ID == 0 {
			continue
		}
		if i := e.find(m.ID); i >= 0 {
			e.messages[i] = m
			continue
		}
		e.messages = append(e.messages, m)
	}
	slices.SortFunc(e.messages, func(a, b protocol.Message) int {
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
	if len(e.messages) > 0 && e.messages[0].ID > e.chat.LastMessageID {
		e.chat.LastMessageID = e.messages[0].ID
	}
}

// unread returns the ids of incoming messages not yet read.
func (e *chatEntry) unread() []protocol.MessageID {
	var ids []protocol.MessageID
	for _, m := range e.messages {
		if !m.Read && !m.Outgoing {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// Model is the bubbletea model shared by both UIs.
type Model struct {
	layout Layout
	styles *styles.Styles
	keys   *keymap.Keymap

	protocols map[string]protocol.Protocol
	online    map[string]bool
	chats     map[chatKey]*chatEntry
	order     []chatKey

	current    chatKey
	hasCurrent bool

	input    textinput.Model
	viewport viewport.Model

	emoji   bool
	showIDs bool
	blink   bool

	status    string
	statusErr bool

	width  int
	height int
}

// NewModel returns an empty model. Nil styles or keys use the defaults.
func NewModel(layout Layout, st *styles.Styles, keys *keymap.Keymap) Model {
	if st == nil {
		st = styles.New(nil)
	}
	if keys == nil {
		keys = keymap.DefaultKeymap()
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message"
	ti.CharLimit = 4096
	ti.PromptStyle = st.InputPrompt
	ti.Focus()

	m := Model{
		layout:    layout,
		styles:    st,
		keys:      keys,
		protocols: make(map[string]protocol.Protocol),
		online:    make(map[string]bool),
		chats:     make(map[chatKey]*chatEntry),
		input:     ti,
		viewport:  viewport.New(0, 0),
		emoji:     true,
		blink:     true,
		width:     80,
		height:    24,
	}
	m.resize()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	if !m.blink {
		return nil
	}
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()

	case tea.KeyMsg:
		cmd, ok := m.keys.GetBinding(msg)
		if !ok {
			var c tea.Cmd
			m.input, c = m.input.Update(msg)
			return m, c
		}
		if cmd == keymap.CmdQuit {
			return m, tea.Quit
		}
		m.runCommand(cmd)

	case protocolAddedMsg:
		m.addProtocol(msg.proto)

	case protocolRemovedMsg:
		m.removeProtocol(msg.name)

	case eventMsg:
		m.handleEvent(msg.ev)

	case sessionEventMsg:
		m.handleSessionEvent(msg.ev)

	default:
		var c tea.Cmd
		m.input, c = m.input.Update(msg)
		return m, c
	}

	m.refresh()
	return m, nil
}

func (m *Model) runCommand(cmd keymap.Command) {
	switch cmd {
	case keymap.CmdNextChat:
		m.selectOffset(1)
	case keymap.CmdPrevChat:
		m.selectOffset(-1)
	case keymap.CmdNextUnread:
		m.selectNextUnread()
	case keymap.CmdPageUp:
		m.pageUp()
	case keymap.CmdPageDown:
		m.viewport.HalfViewDown()
	case keymap.CmdToggleEmoji:
		m.emoji = !m.emoji
	case keymap.CmdToggleMsgIDs:
		m.showIDs = !m.showIDs
	case keymap.CmdSend:
		m.send()
	case keymap.CmdSendFile:
		m.sendFile()
	case keymap.CmdReceiveFile:
		m.receiveFile()
	}
}

func (m *Model) setStatus(format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.statusErr = false
}

func (m *Model) setError(format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.statusErr = true
}

func (m *Model) addProtocol(p protocol.Protocol) {
	name := p.Name()
	m.protocols[name] = p
	p.RequestChats(chatPageSize, true, protocol.DefaultCursor())
}

func (m *Model) removeProtocol(name string) {
	delete(m.protocols, name)
	delete(m.online, name)
	for k := range m.chats {
		if k.proto == name {
			delete(m.chats, k)
		}
	}
	m.order = slices.DeleteFunc(m.order, func(k chatKey) bool { return k.proto == name })
	if m.hasCurrent && m.current.proto == name {
		m.hasCurrent = false
		if len(m.order) > 0 {
			m.selectChat(m.order[0])
		}
	}
}

func (m *Model) currentEntry() *chatEntry {
	if !m.hasCurrent {
		return nil
	}
	return m.chats[m.current]
}

func (m *Model) entry(proto string, id protocol.ChatID) (*chatEntry, bool) {
	k := chatKey{proto: proto, id: id}
	if e, ok := m.chats[k]; ok {
		return e, false
	}
	e := &chatEntry{key: k, chat: protocol.Chat{ID: id}}
	m.chats[k] = e
	m.order = append(m.order, k)
	return e, true
}

// sortChats orders the chat list most recent first.
func (m *Model) sortChats() {
	slices.SortStableFunc(m.order, func(a, b chatKey) int {
		ca, cb := m.chats[a].chat, m.chats[b].chat
		switch {
		case ca.Order != cb.Order:
			if ca.Order > cb.Order {
				return -1
			}
			return 1
		case a.proto != b.proto:
			return strings.Compare(a.proto, b.proto)
		case a.id > b.id:
			return -1
		case a.id < b.id:
			return 1
		}
		return 0
	})
}

func (m *Model) upsertChat(proto string, c protocol.Chat) *chatEntry {
	e, _ := m.entry(proto, c.ID)
	name := e.chat.Name
	e.chat = c
	if e.chat.Name == "" {
		e.chat.Name = name
	}
	m.sortChats()
	return e
}

func (m *Model) selectChat(k chatKey) {
	e, ok := m.chats[k]
	if !ok {
		return
	}
	m.current = k
	m.hasCurrent = true
	m.viewport.GotoBottom()

	p := m.protocols[k.proto]
	if p == nil {
		return
	}
	if !e.requested {
		e.requested = true
		e.loading = true
		p.RequestMessages(k.id, protocol.Newest, messagePageSize)
	}
	m.markRead(e)
}

func (m *Model) selectOffset(delta int) {
	if len(m.order) == 0 {
		return
	}
	i := 0
	if m.hasCurrent {
		i = slices.Index(m.order, m.current)
		i = (i + delta + len(m.order)) % len(m.order)
	}
	m.selectChat(m.order[i])
}

func (m *Model) selectNextUnread() {
	start := -1
	if m.hasCurrent {
		start = slices.Index(m.order, m.current)
	}
	for n := 1; n <= len(m.order); n++ {
		k := m.order[(start+n+len(m.order))%len(m.order)]
		if k != m.current && m.chats[k].chat.UnreadCount > 0 {
			m.selectChat(k)
			return
		}
	}
	m.setStatus("no unread chats")
}

// markRead marks the known unread messages of e as read, locally and on
// the backend.
func (m *Model) markRead(e *chatEntry) {
	ids := e.unread()
	if len(ids) == 0 {
		if e.requested && !e.loading {
			e.chat.UnreadCount = 0
		}
		return
	}
	for i := range e.messages {
		if !e.messages[i].Outgoing {
			e.messages[i].Read = true
		}
	}
	e.chat.UnreadCount = 0
	if p := m.protocols[e.key.proto]; p != nil {
		p.MarkRead(e.key.id, ids)
	}
}

func (m *Model) pageUp() {
	e := m.currentEntry()
	if e != nil && m.viewport.AtTop() && !e.loading && !e.complete && len(e.messages) > 0 {
		if p := m.protocols[e.key.proto]; p != nil {
			e.loading = true
			oldest := e.messages[len(e.messages)-1].ID
			p.RequestMessages(e.key.id, oldest, messagePageSize)
			m.setStatus("loading history...")
		}
	}
	m.viewport.HalfViewUp()
}

func (m *Model) currentProtocol() (protocol.Protocol, *chatEntry) {
	e := m.currentEntry()
	if e == nil {
		m.setError("no chat selected")
		return nil, nil
	}
	p := m.protocols[e.key.proto]
	if p == nil {
		m.setError("%s is not running", e.key.proto)
		return nil, nil
	}
	return p, e
}

func (m *Model) send() {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return
	}
	p, e := m.currentProtocol()
	if p == nil {
		return
	}
	p.SendMessage(e.key.id, text, protocol.NoReply)
	m.input.Reset()
	m.setStatus("sending...")
}

func (m *Model) sendFile() {
	path := strings.TrimSpace(m.input.Value())
	if path == "" {
		m.setStatus("type a file path, then press %s", m.keyName(keymap.CmdSendFile))
		return
	}
	p, e := m.currentProtocol()
	if p == nil {
		return
	}
	p.SendFile(e.key.id, path)
	m.input.Reset()
	m.setStatus("sending %s...", filepath.Base(path))
}

func (m *Model) receiveFile() {
	p, e := m.currentProtocol()
	if p == nil {
		return
	}
	for _, msg := range e.messages {
		if msg.File == nil {
			continue
		}
		p.DownloadFile(e.key.id, msg.File.ID)
		m.setStatus("downloading %s...", msg.File.Name)
		return
	}
	m.setStatus("no file in this chat")
}

func (m *Model) keyName(cmd keymap.Command) string {
	if b := m.keys.GetBindingsForCommand(cmd); len(b) > 0 {
		return b[0].String()
	}
	return string(cmd)
}

func (m *Model) handleEvent(ev protocol.Event) {
	name := ev.Protocol()
	if err := ev.Err(); err != nil {
		m.setError("%v", err)
		if r, ok := ev.(protocol.MessagesResult); ok {
			if e, ok := m.chats[chatKey{proto: name, id: r.ChatID}]; ok {
				e.loading = false
			}
		}
		return
	}

	switch e := ev.(type) {
	case protocol.ChatsResult:
		for _, c := range e.Chats {
			m.upsertChat(name, c)
		}
		if len(e.Chats) >= chatPageSize && e.Next != e.Cursor {
			if p := m.protocols[name]; p != nil {
				p.RequestChats(chatPageSize, e.PostInit, e.Next)
			}
		}
		if !m.hasCurrent && len(m.order) > 0 {
			m.selectChat(m.order[0])
		}

	case protocol.ChatUpdated:
		entry := m.upsertChat(name, e.Chat)
		if m.hasCurrent && m.current == entry.key {
			m.markRead(entry)
		}
		if !m.hasCurrent {
			m.selectChat(entry.key)
		}

	case protocol.MessagesResult:
		entry, _ := m.entry(name, e.ChatID)
		entry.requested = true
		entry.loading = false
		entry.merge(e.Messages...)
		if len(e.Messages) < messagePageSize {
			entry.complete = true
		}
		if e.FromMsg != protocol.Newest && m.status == "loading history..." {
			m.setStatus("")
		}
		if m.hasCurrent && m.current == entry.key {
			m.markRead(entry)
		}

	case protocol.NewMessage:
		entry, created := m.entry(name, e.Message.ChatID)
		entry.merge(e.Message)
		if created {
			if p := m.protocols[name]; p != nil {
				p.RequestChatUpdate(e.Message.ChatID)
			}
		}
		if m.hasCurrent && m.current == entry.key {
			m.markRead(entry)
		} else if !m.hasCurrent {
			m.selectChat(entry.key)
		}

	case protocol.SendResult:
		if entry, ok := m.chats[chatKey{proto: name, id: e.ChatID}]; ok {
			entry.merge(e.Message)
		}
		m.setStatus("")

	case protocol.FileSent:
		if entry, ok := m.chats[chatKey{proto: name, id: e.ChatID}]; ok {
			entry.merge(e.Message)
		}
		m.setStatus("sent %s", filepath.Base(e.Path))

	case protocol.FileDownloaded:
		if entry, ok := m.chats[chatKey{proto: name, id: e.ChatID}]; ok {
			for i := range entry.messages {
				if f := entry.messages[i].File; f != nil && f.ID == e.FileID {
					cp := *f
					cp.LocalPath = e.Path
					entry.messages[i].File = &cp
				}
			}
		}
		m.setStatus("saved %s", e.Path)

	case protocol.StatusChanged:
		m.online[name] = e.Online
	}
}

func (m *Model) handleSessionEvent(ev event.Event) {
	switch e := ev.(type) {
	case event.ProtocolFailedEvent:
		m.setError("%s failed to start: %v", e.Protocol, e.Err)
	case event.ProtocolStartedEvent:
		m.setStatus("%s started", e.Protocol)
	case event.ConfigChangedEvent:
		m.setStatus("%s changed on disk, it will be overwritten on exit", filepath.Base(e.Path))
	}
}

// resize recomputes component sizes from the terminal size.
func (m *Model) resize() {
	d := computeLayout(m.layout, m.width, m.height)
	m.viewport.Width = d.paneWidth
	m.viewport.Height = d.paneHeight
	m.input.Width = max(d.paneWidth-len(m.input.Prompt)-1, 1)
}

// refresh re-renders the message pane, following new messages when the
// view is already at the bottom.
func (m *Model) refresh() {
	follow := m.viewport.AtBottom() || m.viewport.TotalLineCount() <= m.viewport.Height
	m.viewport.SetContent(m.renderMessages(m.viewport.Width))
	if follow {
		m.viewport.GotoBottom()
	}
}
