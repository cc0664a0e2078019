package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/nchat/internal/protocol"
	"github.com/Iron-Ham/nchat/internal/tui/keymap"
	"github.com/Iron-Ham/nchat/internal/util"
)

const (
	maxSidebarWidth = 32
	minPaneWidth    = 20

	headerHeight = 2 // title and its bottom border
	inputHeight  = 2 // top border and the input line
	statusHeight = 1
)

// dimensions are the inner sizes of the layout regions.
type dimensions struct {
	sidebarWidth int // 0 when there is no sidebar
	paneWidth    int
	paneHeight   int
}

func computeLayout(layout Layout, width, height int) dimensions {
	var d dimensions
	d.paneWidth = width
	if layout == LayoutSidebar {
		d.sidebarWidth = min(maxSidebarWidth, width/3)
		// The sidebar's rounded border and padding take four columns.
		d.paneWidth = width - d.sidebarWidth - 4
	}
	d.paneWidth = max(d.paneWidth, minPaneWidth)
	d.paneHeight = max(height-headerHeight-inputHeight-statusHeight, 1)
	return d
}

// View implements tea.Model.
func (m Model) View() string {
	d := computeLayout(m.layout, m.width, m.height)

	pane := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(d.paneWidth),
		m.viewport.View(),
		m.styles.Input.Width(d.paneWidth).Render(m.input.View()),
	)

	body := pane
	if m.layout == LayoutSidebar && d.sidebarWidth > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(d.sidebarWidth, d.paneHeight+headerHeight+inputHeight-2), pane)
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderStatus(m.width))
}

func (m Model) renderHeader(width int) string {
	title := "nchat"
	if e := m.currentEntry(); e != nil {
		title = chatTitle(e)
		if len(m.protocols) > 1 {
			title += " (" + e.key.proto + ")"
		}
	}
	return m.styles.Header.Width(width).Render(util.TruncateANSI(title, width))
}

func chatTitle(e *chatEntry) string {
	if e.chat.Name != "" {
		return e.chat.Name
	}
	return fmt.Sprintf("%d", e.chat.ID)
}

func (m Model) renderSidebar(width, height int) string {
	var b strings.Builder
	b.WriteString(m.styles.SidebarTitle.Render("Chats"))

	rows := 1
	for _, k := range m.order {
		if rows >= height {
			break
		}
		e := m.chats[k]
		label := chatTitle(e)
		suffix := ""
		if e.chat.UnreadCount > 0 {
			suffix = fmt.Sprintf(" (%d)", e.chat.UnreadCount)
		}
		label = util.TruncateANSI(label, width-lipgloss.Width(suffix)) + suffix
		label = util.PadRight(label, width)

		style := m.styles.SidebarItem
		switch {
		case m.hasCurrent && k == m.current:
			style = m.styles.SidebarItemActive
		case e.chat.UnreadCount > 0:
			style = m.styles.SidebarItemUnread
		}
		b.WriteString("\n")
		b.WriteString(style.Render(label))
		rows++
	}
	return m.styles.Sidebar.Width(width + 2).Height(height).Render(b.String())
}

// renderMessages renders the current chat oldest first, wrapped to width.
func (m Model) renderMessages(width int) string {
	e := m.currentEntry()
	if e == nil {
		if len(m.protocols) == 0 {
			return m.styles.Muted.Render("No protocol is running. Run nchat --setup to add an account.")
		}
		return m.styles.Muted.Render("No chats yet.")
	}
	if len(e.messages) == 0 {
		if e.loading {
			return m.styles.Muted.Render("Loading...")
		}
		return m.styles.Muted.Render("No messages.")
	}

	lines := make([]string, 0, len(e.messages))
	for i := len(e.messages) - 1; i >= 0; i-- {
		lines = append(lines, util.Wrap(m.renderMessage(e.messages[i]), width))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderMessage(msg protocol.Message) string {
	var b strings.Builder
	if !msg.Time.IsZero() {
		b.WriteString(m.styles.Timestamp.Render(msg.Time.Format("15:04")))
		b.WriteString(" ")
	}
	if m.showIDs {
		b.WriteString(m.styles.MessageID.Render(fmt.Sprintf("#%d", msg.ID)))
		b.WriteString(" ")
	}

	if msg.Outgoing {
		b.WriteString(m.styles.SenderSelf.Render("me"))
	} else {
		sender := msg.SenderName
		if sender == "" {
			sender = fmt.Sprintf("%d", msg.SenderID)
		}
		b.WriteString(m.styles.Sender.Render(sender))
	}
	b.WriteString(": ")

	if msg.ReplyTo != protocol.NoReply && m.showIDs {
		b.WriteString(m.styles.MessageID.Render(fmt.Sprintf("re #%d ", msg.ReplyTo)))
	}

	text := msg.Text
	if m.emoji {
		text = util.Emojize(text)
	}
	b.WriteString(text)

	if f := msg.File; f != nil {
		if text != "" {
			b.WriteString(" ")
		}
		label := fmt.Sprintf("[%s, %s]", f.Name, util.FormatSize(f.Size))
		if f.LocalPath != "" {
			label = fmt.Sprintf("[%s, saved to %s]", f.Name, f.LocalPath)
		}
		b.WriteString(m.styles.Attachment.Render(label))
	}
	return b.String()
}

func (m Model) renderStatus(width int) string {
	names := make([]string, 0, len(m.protocols))
	for name := range m.protocols {
		names = append(names, name)
	}
	sort.Strings(names)

	var right []string
	for _, name := range names {
		if m.online[name] {
			right = append(right, m.styles.Online.Render("● "+name))
		} else {
			right = append(right, m.styles.Offline.Render("○ "+name))
		}
	}
	rightText := strings.Join(right, " ")

	left := m.status
	style := m.styles.StatusBar
	if m.statusErr {
		style = m.styles.StatusError
	}
	if left == "" {
		left = fmt.Sprintf("%s quit  %s next chat", m.keyName(keymap.CmdQuit), m.keyName(keymap.CmdNextChat))
	}

	// Two columns of padding from the status style.
	inner := max(width-2, 0)
	leftWidth := max(inner-lipgloss.Width(rightText)-1, 0)
	line := util.PadRight(util.TruncateANSI(left, leftWidth), leftWidth) + " " + rightText
	return style.Render(util.TruncateANSI(line, inner))
}
