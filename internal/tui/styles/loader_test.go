package styles

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestIsValidHexColor(t *testing.T) {
	tests := []struct {
		name     string
		color    string
		expected bool
	}{
		{"valid 6-digit hex", "#A78BFA", true},
		{"valid 6-digit hex lowercase", "#a78bfa", true},
		{"valid 3-digit hex", "#ABC", true},
		{"invalid - no hash", "A78BFA", false},
		{"invalid - 4 digits", "#ABCD", false},
		{"invalid - bad characters", "#GHIJKL", false},
		{"empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isValidHexColor(tt.color); got != tt.expected {
				t.Errorf("isValidHexColor(%q) = %v, want %v", tt.color, got, tt.expected)
			}
		})
	}
}

func validTheme() ThemeFile {
	return ThemeFile{
		Name:    "Test Theme",
		Version: "1",
		Colors: ThemeColors{
			Primary:   "#A78BFA",
			Secondary: "#10B981",
			Warning:   "#F59E0B",
			Error:     "#F87171",
			Muted:     "#9CA3AF",
			Surface:   "#1F2937",
			Text:      "#F9FAFB",
			Border:    "#6B7280",
		},
	}
}

func TestThemeFileValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ThemeFile)
		errMsg string
	}{
		{name: "valid minimal theme", mutate: func(*ThemeFile) {}},
		{name: "missing name", mutate: func(f *ThemeFile) { f.Name = "" }, errMsg: "name is required"},
		{name: "wrong version", mutate: func(f *ThemeFile) { f.Version = "2" }, errMsg: "unsupported theme version"},
		{name: "missing color", mutate: func(f *ThemeFile) { f.Colors.Border = "" }, errMsg: "'border' is required"},
		{name: "bad color", mutate: func(f *ThemeFile) { f.Colors.Text = "white" }, errMsg: "'text' has invalid format"},
		{name: "bad optional color", mutate: func(f *ThemeFile) { f.Colors.Unread = "#12" }, errMsg: "'unread' has invalid format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			theme := validTheme()
			tt.mutate(&theme)
			err := theme.Validate()
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestToPalette_OptionalDefaults(t *testing.T) {
	theme := validTheme()
	p := theme.ToPalette()
	if p.Unread != lipgloss.Color(theme.Colors.Warning) {
		t.Errorf("Unread = %v, want warning color", p.Unread)
	}
	if p.Sender != lipgloss.Color(theme.Colors.Primary) {
		t.Errorf("Sender = %v, want primary color", p.Sender)
	}

	theme.Colors.Unread = "#000000"
	if got := theme.ToPalette().Unread; got != lipgloss.Color("#000000") {
		t.Errorf("explicit Unread = %v", got)
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	themes := filepath.Join(dir, ThemesDirName)
	if err := os.MkdirAll(themes, 0o700); err != nil {
		t.Fatal(err)
	}
	custom := `name: Mine
version: "1"
colors:
  primary: "#111111"
  secondary: "#222222"
  warning: "#333333"
  error: "#444444"
  muted: "#555555"
  surface: "#666666"
  text: "#777777"
  border: "#888888"
`
	if err := os.WriteFile(filepath.Join(themes, "mine.yaml"), []byte(custom), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Run("empty name is default", func(t *testing.T) {
		p, err := Resolve("", dir)
		if err != nil || p.Primary != DefaultPalette().Primary {
			t.Errorf("Resolve(\"\") = %v, %v", p, err)
		}
	})

	t.Run("builtin", func(t *testing.T) {
		p, err := Resolve("nord", dir)
		if err != nil || p.Primary != NordPalette().Primary {
			t.Errorf("Resolve(nord) = %v, %v", p, err)
		}
	})

	t.Run("custom file", func(t *testing.T) {
		p, err := Resolve("mine", dir)
		if err != nil {
			t.Fatalf("Resolve(mine): %v", err)
		}
		if p.Primary != lipgloss.Color("#111111") {
			t.Errorf("Primary = %v", p.Primary)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := Resolve("missing", dir); err == nil {
			t.Error("Resolve(missing) succeeded")
		}
	})

	t.Run("path traversal rejected", func(t *testing.T) {
		if _, err := Resolve("../mine", dir); err == nil {
			t.Error("Resolve(../mine) succeeded")
		}
	})
}
