package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/adpulse/internal/cli"
	"github.com/theirongolddev/adpulse/internal/model"
	"github.com/theirongolddev/adpulse/internal/tui/components"
	"github.com/theirongolddev/adpulse/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// breakdownExtras are shown next to the selected metric on wide terminals.
var breakdownExtras = []model.Metric{
	model.MetricClicks, model.MetricCost, model.MetricRevenue, model.MetricROAS,
}

func (a App) renderBreakdownTab(cw, h int) string {
	t := theme.Active
	d := a.derived
	m := d.Query.Metric
	innerW := components.CardInnerWidth(cw)

	headStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	cellStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	space := lipgloss.NewStyle().Background(t.Surface).Render(" ")

	var extras []model.Metric
	if !a.isCompactLayout() {
		for _, e := range breakdownExtras {
			if e != m {
				extras = append(extras, e)
			}
		}
	}

	valueCol := column{m.Label(), 14, false}
	extraCols := make([]column, len(extras))
	for i, e := range extras {
		extraCols[i] = column{e.Label(), 12, false}
	}
	fixed := valueCol.width + 1
	for _, c := range extraCols {
		fixed += c.width + 1
	}
	barW := max(innerW/5, 8)
	nameCol := column{d.Query.Dimension.Label(), max(innerW-fixed-barW-1, 10), true}

	header := renderCell(headStyle, nameCol.title, nameCol) + space +
		renderCell(headStyle, valueCol.title, valueCol) + space +
		headStyle.Render(padRight("Share", barW))
	for _, c := range extraCols {
		header += space + renderCell(headStyle, c.title, c)
	}
	lines := []string{header, dimStyle.Render(strings.Repeat("─", innerW))}

	// The bar is relative to the largest group so small shares stay visible.
	top := 0.0
	for _, g := range d.Dimension {
		top = max(top, g.Summary.Value(m))
	}

	visible := max(h-6, 1)
	end := min(a.scroll+visible, len(d.Dimension))
	for _, g := range d.Dimension[a.scroll:end] {
		name := g.Value
		if name == "" {
			name = "(none)"
		}
		ratio := 0.0
		if top > 0 {
			ratio = g.Summary.Value(m) / top
		}
		line := renderCell(cellStyle, name, nameCol) + space +
			renderCell(cellStyle, cli.FormatMetric(m, g.Summary.Value(m)), valueCol) + space +
			components.ShareBar(ratio, barW, t.Accent)
		for i, e := range extras {
			line += space + renderCell(dimStyle, cli.FormatMetric(e, g.Summary.Value(e)), extraCols[i])
		}
		lines = append(lines, line)
	}
	if len(d.Dimension) == 0 {
		lines = append(lines, dimStyle.Render("no records match the current filters"))
	}

	title := fmt.Sprintf("%s by %s", m.Label(), d.Query.Dimension.Label())
	if len(d.Dimension) > visible {
		title += fmt.Sprintf(" (%d-%d of %d)", a.scroll+1, end, len(d.Dimension))
	}
	return components.ContentCard(title, strings.Join(lines, "\n"), cw)
}
