package styles

import (
	"slices"

	"github.com/charmbracelet/lipgloss"
)

// ThemeName represents a named color theme.
type ThemeName string

// Available theme names.
const (
	ThemeDefault        ThemeName = "default"         // Purple/green dark theme
	ThemeNord           ThemeName = "nord"            // Nord theme - cool blue-gray
	ThemeSolarizedLight ThemeName = "solarized-light" // Solarized Light variant
)

// BuiltinThemes returns all built-in theme names.
func BuiltinThemes() []string {
	return []string{
		string(ThemeDefault),
		string(ThemeNord),
		string(ThemeSolarizedLight),
	}
}

// IsBuiltinTheme reports whether name is a built-in theme.
func IsBuiltinTheme(name string) bool {
	return slices.Contains(BuiltinThemes(), name)
}

// ColorPalette defines the color scheme for a theme.
type ColorPalette struct {
	// Primary accent color (active chat, titles)
	Primary lipgloss.Color
	// Secondary accent color (own messages, online status)
	Secondary lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	// Muted color (timestamps, message ids, hints)
	Muted   lipgloss.Color
	Surface lipgloss.Color
	Text    lipgloss.Color
	Border  lipgloss.Color

	// Unread marks chats with unread messages.
	Unread lipgloss.Color
	// Sender colors the names of other participants.
	Sender lipgloss.Color
}

// DefaultPalette returns the default purple/green dark palette.
func DefaultPalette() *ColorPalette {
	return &ColorPalette{
		Primary:   lipgloss.Color("#A78BFA"), // Purple (violet-400)
		Secondary: lipgloss.Color("#10B981"), // Green
		Warning:   lipgloss.Color("#F59E0B"), // Amber
		Error:     lipgloss.Color("#F87171"), // Red (red-400)
		Muted:     lipgloss.Color("#9CA3AF"), // Gray
		Surface:   lipgloss.Color("#1F2937"), // Dark surface
		Text:      lipgloss.Color("#F9FAFB"), // Light text
		Border:    lipgloss.Color("#6B7280"), // Gray-500
		Unread:    lipgloss.Color("#FBBF24"), // Yellow
		Sender:    lipgloss.Color("#60A5FA"), // Blue
	}
}

// NordPalette returns the Nord palette.
func NordPalette() *ColorPalette {
	return &ColorPalette{
		Primary:   lipgloss.Color("#88C0D0"),
		Secondary: lipgloss.Color("#A3BE8C"),
		Warning:   lipgloss.Color("#EBCB8B"),
		Error:     lipgloss.Color("#BF616A"),
		Muted:     lipgloss.Color("#8FBCBB"),
		Surface:   lipgloss.Color("#3B4252"),
		Text:      lipgloss.Color("#ECEFF4"),
		Border:    lipgloss.Color("#4C566A"),
		Unread:    lipgloss.Color("#EBCB8B"),
		Sender:    lipgloss.Color("#81A1C1"),
	}
}

// SolarizedLightPalette returns the Solarized Light palette.
func SolarizedLightPalette() *ColorPalette {
	return &ColorPalette{
		Primary:   lipgloss.Color("#268BD2"),
		Secondary: lipgloss.Color("#859900"),
		Warning:   lipgloss.Color("#B58900"),
		Error:     lipgloss.Color("#DC322F"),
		Muted:     lipgloss.Color("#657B83"),
		Surface:   lipgloss.Color("#EEE8D5"),
		Text:      lipgloss.Color("#073642"),
		Border:    lipgloss.Color("#93A1A1"),
		Unread:    lipgloss.Color("#CB4B16"),
		Sender:    lipgloss.Color("#6C71C4"),
	}
}

// GetPalette returns the palette for a built-in theme, or nil.
func GetPalette(name ThemeName) *ColorPalette {
	switch name {
	case ThemeDefault:
		return DefaultPalette()
	case ThemeNord:
		return NordPalette()
	case ThemeSolarizedLight:
		return SolarizedLightPalette()
	default:
		return nil
	}
}
