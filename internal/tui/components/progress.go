package components

import (
	"fmt"

	"github.com/theirongolddev/adpulse/internal/tui/theme"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

func clampRatio(pct float64) float64 {
	return min(max(pct, 0), 1)
}

// ProgressBar renders a load progress bar followed by its percentage.
func ProgressBar(pct float64, width int) string {
	t := theme.Active
	pct = clampRatio(pct)

	barColor := t.Cyan
	switch {
	case pct >= 0.8:
		barColor = t.AccentBright
	case pct >= 0.5:
		barColor = t.Accent
	}

	bar := progress.New(
		progress.WithSolidFill(string(barColor)),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(t.TextDim)

	pctStyle := lipgloss.NewStyle().Foreground(barColor).Background(t.Surface).Bold(true)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)

	return bar.ViewAs(pct) + spaceStyle.Render(" ") + pctStyle.Render(fmt.Sprintf("%.0f%%", pct*100))
}

// ShareBar renders a fixed-width bar for a share of total, without a label.
func ShareBar(share float64, width int, color lipgloss.Color) string {
	t := theme.Active
	if width < 1 {
		return ""
	}
	bar := progress.New(
		progress.WithSolidFill(string(color)),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(t.SurfaceBright)
	return bar.ViewAs(clampRatio(share))
}
