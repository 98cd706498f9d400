package components

import (
	"strings"

	"github.com/theirongolddev/adpulse/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// Status is what the bottom bar reports.
type Status struct {
	// Info is shown on the right, e.g. record counts and data age.
	Info        string
	Message     string // transient notice, e.g. an export path
	Err         string // last load error; takes precedence over Message
	Refreshing  bool
	AutoRefresh bool
}

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, st Status) string {
	t := theme.Active

	base := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	keyStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	errStyle := lipgloss.NewStyle().Foreground(t.Red).Background(t.Surface).Bold(true)
	noteStyle := lipgloss.NewStyle().Foreground(t.Yellow).Background(t.Surface)

	left := base.Render(" ") + keyStyle.Render("?") + base.Render(" help  ") +
		keyStyle.Render("f") + base.Render(" filter  ") +
		keyStyle.Render("r") + base.Render(" refresh  ") +
		keyStyle.Render("q") + base.Render(" quit")

	switch {
	case st.Err != "":
		left += base.Render("  ") + errStyle.Render("✗ "+st.Err)
	case st.Message != "":
		left += base.Render("  ") + noteStyle.Render(st.Message)
	}

	var right strings.Builder
	if st.Refreshing {
		right.WriteString("refreshing… ")
	} else if st.AutoRefresh {
		right.WriteString("auto ")
	}
	right.WriteString(st.Info)
	right.WriteString(" ")
	rightStr := base.Render(right.String())

	gap := width - lipgloss.Width(left) - lipgloss.Width(rightStr)
	if gap < 1 {
		// Drop the right side before letting the bar wrap.
		return lipgloss.NewStyle().MaxWidth(width).Render(left)
	}
	return left + base.Render(strings.Repeat(" ", gap)) + rightStr
}
