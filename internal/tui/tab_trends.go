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

type column struct {
	title string
	width int
	left  bool
}

func renderCell(style lipgloss.Style, s string, c column) string {
	s = truncStr(s, c.width)
	if c.left {
		return style.Render(padRight(s, c.width))
	}
	return style.Render(padLeft(s, c.width))
}

func optionalValue(m model.Metric, v *float64) string {
	if v == nil {
		return "n/a"
	}
	return cli.FormatMetric(m, *v)
}

// trendColumns drops the comparison period keys on narrow terminals.
func (a App) trendColumns() []column {
	m := a.derived.Query.Metric
	if a.isCompactLayout() {
		return []column{
			{"Period", 10, true},
			{m.Label(), 13, false},
			{"Previous", 13, false},
			{"Change", 10, false},
			{"Last year", 13, false},
			{"YoY", 10, false},
		}
	}
	return []column{
		{"Period", 10, true},
		{m.Label(), 14, false},
		{"Prev period", 11, true},
		{"Previous", 14, false},
		{"Change", 11, false},
		{"LY period", 11, true},
		{"Last year", 14, false},
		{"YoY", 11, false},
	}
}

func (a App) trendCells(row model.ComparisonRow) []string {
	m := a.derived.Query.Metric
	if a.isCompactLayout() {
		return []string{
			row.Key,
			cli.FormatMetric(m, row.Current),
			optionalValue(m, row.Previous),
			cli.FormatChange(row.PreviousPct),
			optionalValue(m, row.LastYear),
			cli.FormatChange(row.YearOverYear),
		}
	}
	return []string{
		row.Key,
		cli.FormatMetric(m, row.Current),
		row.PreviousKey,
		optionalValue(m, row.Previous),
		cli.FormatChange(row.PreviousPct),
		row.LastYearKey,
		optionalValue(m, row.LastYear),
		cli.FormatChange(row.YearOverYear),
	}
}

func (a App) renderTrendsTab(cw, h int) string {
	t := theme.Active
	d := a.derived
	m := d.Query.Metric
	var b strings.Builder

	// Sparkline of the whole series, oldest first.
	vals := make([]float64, len(d.TimeSeries))
	for i, bk := range d.TimeSeries {
		vals[i] = bk.Summary.Value(m)
	}
	spark := components.Sparkline(vals, t.Accent)
	if len(vals) > components.CardInnerWidth(cw) {
		spark = components.Sparkline(vals[len(vals)-components.CardInnerWidth(cw):], t.Accent)
	}
	b.WriteString(components.ContentCard(
		fmt.Sprintf("%s trend (%d periods)", m.Label(), len(vals)), spark, cw))
	b.WriteString("\n")

	cols := a.trendColumns()
	headStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	cellStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	space := lipgloss.NewStyle().Background(t.Surface).Render(" ")

	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = renderCell(headStyle, c.title, c)
	}
	lines := []string{
		strings.Join(headers, space),
		dimStyle.Render(strings.Repeat("─", min(components.CardInnerWidth(cw), tableWidth(cols)))),
	}

	visible := max(h-lipgloss.Height(b.String())-5, 1)
	rows := d.Comparison
	end := min(a.scroll+visible, len(rows))
	for _, row := range rows[a.scroll:end] {
		cells := a.trendCells(row)
		out := make([]string, len(cols))
		for i, c := range cols {
			style := cellStyle
			switch c.title {
			case "Change":
				style = cellStyle.Foreground(t.Trend(row.PreviousPct, m.LowerIsBetter()))
			case "YoY":
				style = cellStyle.Foreground(t.Trend(row.YearOverYear, m.LowerIsBetter()))
			case "Prev period", "LY period":
				style = dimStyle
			}
			out[i] = renderCell(style, cells[i], c)
		}
		lines = append(lines, strings.Join(out, space))
	}
	if len(rows) == 0 {
		lines = append(lines, dimStyle.Render("no periods in range"))
	}

	title := "Period comparison"
	if len(rows) > visible {
		title = fmt.Sprintf("Period comparison (%d-%d of %d)", a.scroll+1, end, len(rows))
	}
	b.WriteString(components.ContentCard(title, strings.Join(lines, "\n"), cw))
	return b.String()
}

func tableWidth(cols []column) int {
	w := len(cols) - 1
	for _, c := range cols {
		w += c.width
	}
	return w
}
