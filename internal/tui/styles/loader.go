package styles

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// ThemesDirName is the directory under the config dir holding custom
// theme files named <theme>.yaml.
const ThemesDirName = "themes"

// ThemeFile represents a custom theme definition loaded from YAML.
type ThemeFile struct {
	Name        string      `yaml:"name"`
	Author      string      `yaml:"author,omitempty"`
	Description string      `yaml:"description,omitempty"`
	Version     string      `yaml:"version"`
	Colors      ThemeColors `yaml:"colors"`
}

// ThemeColors contains all color definitions for a theme, in #RRGGBB or
// #RGB form.
type ThemeColors struct {
	Primary   string `yaml:"primary"`
	Secondary string `yaml:"secondary"`
	Warning   string `yaml:"warning"`
	Error     string `yaml:"error"`
	Muted     string `yaml:"muted"`
	Surface   string `yaml:"surface"`
	Text      string `yaml:"text"`
	Border    string `yaml:"border"`

	// Optional; default to warning and primary.
	Unread string `yaml:"unread,omitempty"`
	Sender string `yaml:"sender,omitempty"`
}

var hexColorRegex = regexp.MustCompile(`^#([0-9A-Fa-f]{3}|[0-9A-Fa-f]{6})$`)

// LoadThemeFile loads a theme from a YAML file.
func LoadThemeFile(path string) (*ThemeFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading theme file: %w", err)
	}

	var theme ThemeFile
	if err := yaml.Unmarshal(data, &theme); err != nil {
		return nil, fmt.Errorf("parsing theme file: %w", err)
	}

	if err := theme.Validate(); err != nil {
		return nil, fmt.Errorf("invalid theme: %w", err)
	}

	return &theme, nil
}

// Validate checks that the theme file is well-formed.
func (t *ThemeFile) Validate() error {
	if t.Name == "" {
		return errors.New("theme name is required")
	}
	if t.Version != "1" {
		return fmt.Errorf("unsupported theme version: %q (supported: 1)", t.Version)
	}

	required := []struct{ name, value string }{
		{"primary", t.Colors.Primary},
		{"secondary", t.Colors.Secondary},
		{"warning", t.Colors.Warning},
		{"error", t.Colors.Error},
		{"muted", t.Colors.Muted},
		{"surface", t.Colors.Surface},
		{"text", t.Colors.Text},
		{"border", t.Colors.Border},
	}
	for _, c := range required {
		if c.value == "" {
			return fmt.Errorf("color '%s' is required", c.name)
		}
		if !isValidHexColor(c.value) {
			return fmt.Errorf("color '%s' has invalid format: %s (expected #RGB or #RRGGBB)", c.name, c.value)
		}
	}

	optional := []struct{ name, value string }{
		{"unread", t.Colors.Unread},
		{"sender", t.Colors.Sender},
	}
	for _, c := range optional {
		if c.value != "" && !isValidHexColor(c.value) {
			return fmt.Errorf("color '%s' has invalid format: %s (expected #RGB or #RRGGBB)", c.name, c.value)
		}
	}
	return nil
}

func isValidHexColor(color string) bool {
	return hexColorRegex.MatchString(color)
}

// ToPalette converts the theme file to a ColorPalette.
func (t *ThemeFile) ToPalette() *ColorPalette {
	return &ColorPalette{
		Primary:   lipgloss.Color(t.Colors.Primary),
		Secondary: lipgloss.Color(t.Colors.Secondary),
		Warning:   lipgloss.Color(t.Colors.Warning),
		Error:     lipgloss.Color(t.Colors.Error),
		Muted:     lipgloss.Color(t.Colors.Muted),
		Surface:   lipgloss.Color(t.Colors.Surface),
		Text:      lipgloss.Color(t.Colors.Text),
		Border:    lipgloss.Color(t.Colors.Border),
		Unread:    colorOrDefault(t.Colors.Unread, t.Colors.Warning),
		Sender:    colorOrDefault(t.Colors.Sender, t.Colors.Primary),
	}
}

func colorOrDefault(color, defaultColor string) lipgloss.Color {
	if color != "" {
		return lipgloss.Color(color)
	}
	return lipgloss.Color(defaultColor)
}

// Resolve returns the palette for name: a built-in theme, or
// <configDir>/themes/<name>.yaml. An empty name is the default theme.
func Resolve(name, configDir string) (*ColorPalette, error) {
	if name == "" {
		name = string(ThemeDefault)
	}
	if p := GetPalette(ThemeName(name)); p != nil {
		return p, nil
	}
	if filepath.Base(name) != name {
		return nil, fmt.Errorf("invalid theme name: %q", name)
	}
	theme, err := LoadThemeFile(filepath.Join(configDir, ThemesDirName, name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("theme %q: %w", name, err)
	}
	return theme.ToPalette(), nil
}
