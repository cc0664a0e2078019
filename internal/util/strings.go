// Package util provides text helpers shared by the terminal UIs.
package util

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// TruncateANSI truncates s to maxWidth visual columns, adding "..." if
// truncated. Escape sequences and wide characters are accounted for.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	// ansi.Truncate counts the tail in the final width.
	return ansi.Truncate(s, maxWidth, "...")
}

// PadRight fits s into exactly width columns, truncating or padding with
// spaces.
func PadRight(s string, width int) string {
	if width <= 0 {
		return ""
	}
	w := ansi.StringWidth(s)
	if w > width {
		return ansi.Truncate(s, width, "")
	}
	return s + strings.Repeat(" ", width-w)
}

// Wrap word-wraps s to width columns, breaking words longer than a line.
func Wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	return ansi.Wrap(s, width, "")
}

var emojiReplacer = strings.NewReplacer(
	":-)", "🙂",
	":)", "🙂",
	":-(", "🙁",
	":(", "🙁",
	":D", "😃",
	";)", "😉",
	":P", "😛",
	":O", "😮",
	"<3", "❤️",
	":+1:", "👍",
	":-1:", "👎",
)

// Emojize replaces common text emoticons with emoji.
func Emojize(s string) string {
	return emojiReplacer.Replace(s)
}

// FormatSize renders a byte count with a binary unit.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
