// Package styles holds the lipgloss styles of the chat UIs and the theme
// files they are built from.
package styles

import "github.com/charmbracelet/lipgloss"

// Styles is the full set of styles derived from one palette.
type Styles struct {
	Palette *ColorPalette

	// Sidebar (uidefault only)
	Sidebar           lipgloss.Style
	SidebarTitle      lipgloss.Style
	SidebarItem       lipgloss.Style
	SidebarItemActive lipgloss.Style
	SidebarItemUnread lipgloss.Style

	// Chat header
	Header lipgloss.Style

	// Message pane
	MessagePane lipgloss.Style
	Timestamp   lipgloss.Style
	MessageID   lipgloss.Style
	Sender      lipgloss.Style
	SenderSelf  lipgloss.Style
	Attachment  lipgloss.Style

	// Input line
	Input       lipgloss.Style
	InputPrompt lipgloss.Style

	// Status bar
	StatusBar   lipgloss.Style
	StatusError lipgloss.Style
	Online      lipgloss.Style
	Offline     lipgloss.Style

	Muted lipgloss.Style
}

// New builds styles from p. A nil palette uses the default.
func New(p *ColorPalette) *Styles {
	if p == nil {
		p = DefaultPalette()
	}
	return &Styles{
		Palette: p,

		Sidebar: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Border).
			Padding(0, 1),
		SidebarTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Primary),
		SidebarItem: lipgloss.NewStyle().
			Foreground(p.Text),
		SidebarItemActive: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Text).
			Background(p.Primary),
		SidebarItemUnread: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Unread),

		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Primary).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(p.Border),

		MessagePane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Border),
		Timestamp: lipgloss.NewStyle().Foreground(p.Muted),
		MessageID: lipgloss.NewStyle().Foreground(p.Muted).Italic(true),
		Sender:    lipgloss.NewStyle().Bold(true).Foreground(p.Sender),
		SenderSelf: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Secondary),
		Attachment: lipgloss.NewStyle().Foreground(p.Warning),

		Input: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(p.Border),
		InputPrompt: lipgloss.NewStyle().Foreground(p.Primary),

		StatusBar: lipgloss.NewStyle().
			Foreground(p.Text).
			Background(p.Surface).
			Padding(0, 1),
		StatusError: lipgloss.NewStyle().
			Foreground(p.Error).
			Background(p.Surface).
			Bold(true).
			Padding(0, 1),
		Online:  lipgloss.NewStyle().Foreground(p.Secondary),
		Offline: lipgloss.NewStyle().Foreground(p.Error),

		Muted: lipgloss.NewStyle().Foreground(p.Muted),
	}
}
