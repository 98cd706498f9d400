package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/adpulse/internal/cli"
	"github.com/theirongolddev/adpulse/internal/model"
	"github.com/theirongolddev/adpulse/internal/pipeline"
	"github.com/theirongolddev/adpulse/internal/tui/components"
	"github.com/theirongolddev/adpulse/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

const (
	tabOverview = iota
	tabTrends
	tabBreakdown
)

// kpiMetrics are the overview cards, two rows of four.
var kpiMetrics = [][]model.Metric{
	{model.MetricRevenue, model.MetricCost, model.MetricProfit, model.MetricROAS},
	{model.MetricClicks, model.MetricCTR, model.MetricConversions, model.MetricCPA},
}

const topGroups = 5

// latestChange compares the newest bucket of the series with its
// predecessor. A nil change means the predecessor has no data.
func latestChange(series []model.Bucket, g model.Granularity) (latest model.Bucket, prev *model.Summary, ok bool) {
	if len(series) == 0 {
		return model.Bucket{}, nil, false
	}
	latest = series[len(series)-1]
	prevKey, err := pipeline.Predecessor(latest.Key, g)
	if err != nil {
		return latest, nil, true
	}
	for i := len(series) - 2; i >= 0; i-- {
		if series[i].Key == prevKey {
			s := series[i].Summary
			return latest, &s, true
		}
	}
	return latest, nil, true
}

func (a App) kpiCards(metrics []model.Metric) []components.KPI {
	t := theme.Active
	d := a.derived
	latest, prev, haveLatest := latestChange(d.TimeSeries, d.Query.Granularity)

	cards := make([]components.KPI, 0, len(metrics))
	for _, m := range metrics {
		k := components.KPI{
			Label: m.Label(),
			Value: cli.FormatMetric(m, d.Summary.Value(m)),
		}
		if haveLatest {
			var pct *float64
			if prev != nil {
				v := pipeline.PercentChange(latest.Summary.Value(m), prev.Value(m))
				pct = &v
			}
			k.Delta = latest.Key + " " + cli.FormatChange(pct)
			k.DeltaColor = t.Trend(pct, m.LowerIsBetter())
		}
		cards = append(cards, k)
	}
	return cards
}

func (a App) renderOverviewTab(cw int) string {
	t := theme.Active
	d := a.derived
	var b strings.Builder

	// KPI cards
	for _, row := range kpiMetrics {
		if a.isCompactLayout() {
			b.WriteString(components.MetricCardRow(a.kpiCards(row[:2]), cw))
			b.WriteString("\n")
			b.WriteString(components.MetricCardRow(a.kpiCards(row[2:]), cw))
		} else {
			b.WriteString(components.MetricCardRow(a.kpiCards(row), cw))
		}
		b.WriteString("\n")
	}

	if d.Summary.Records == 0 {
		b.WriteString(components.ContentCard("No data",
			lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).
				Render("No records match the current filters. Press c to clear them."),
			cw))
		return b.String()
	}

	// Metric over time
	if len(d.TimeSeries) > 0 {
		vals := make([]float64, len(d.TimeSeries))
		labels := make([]string, len(d.TimeSeries))
		for i, bk := range d.TimeSeries {
			vals[i] = bk.Summary.Value(d.Query.Metric)
			labels[i] = bk.Key
		}
		chartH := 10
		if a.isCompactLayout() {
			chartH = 7
		}
		b.WriteString(components.ContentCard(
			fmt.Sprintf("%s by %s", d.Query.Metric.Label(), strings.ToLower(d.Query.Granularity.Label())),
			components.BarChart(vals, labels, func(v float64) string { return cli.FormatAxis(d.Query.Metric, v) },
				t.Blue, components.CardInnerWidth(cw), chartH),
			cw,
		))
		b.WriteString("\n")
	}

	// Top groups and sources
	if a.isCompactLayout() {
		b.WriteString(a.renderTopGroups(cw))
		b.WriteString("\n")
		b.WriteString(a.renderSources(cw))
	} else {
		halves := components.LayoutRow(cw, 2)
		b.WriteString(components.CardRow([]string{
			a.renderTopGroups(halves[0]),
			a.renderSources(halves[1]),
		}))
	}

	return b.String()
}

// renderTopGroups lists the largest groups of the breakdown dimension with
// their share of the total.
func (a App) renderTopGroups(outerW int) string {
	t := theme.Active
	d := a.derived
	m := d.Query.Metric
	innerW := components.CardInnerWidth(outerW)

	nameStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	space := lipgloss.NewStyle().Background(t.Surface).Render(" ")

	total := d.Summary.Value(m)
	valueW := 14
	barW := max(innerW/4, 4)
	nameW := max(innerW-valueW-barW-2, 6)

	var rows []string
	for i, g := range d.Dimension {
		if i == topGroups {
			break
		}
		share := 0.0
		if total > 0 {
			share = g.Summary.Value(m) / total
		}
		name := g.Value
		if name == "" {
			name = "(none)"
		}
		rows = append(rows,
			nameStyle.Render(padRight(truncStr(name, nameW), nameW))+space+
				valueStyle.Render(padLeft(cli.FormatMetric(m, g.Summary.Value(m)), valueW))+space+
				components.ShareBar(share, barW, t.Accent))
	}
	title := fmt.Sprintf("Top %s by %s", d.Query.Dimension.Label(), m.Label())
	return components.ContentCard(title, strings.Join(rows, "\n"), outerW)
}

func (a App) renderSources(outerW int) string {
	t := theme.Active
	labelStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	warnStyle := lipgloss.NewStyle().Foreground(t.Orange).Background(t.Surface)

	if a.result == nil {
		return components.ContentCard("Sources", dimStyle.Render("not loaded"), outerW)
	}
	var rows []string
	for _, s := range a.result.Sources {
		line := labelStyle.Render(fmt.Sprintf("%-10s", s.Name)) +
			dimStyle.Render(fmt.Sprintf(" %s records · %s · %s",
				cli.FormatNumber(float64(s.Records)),
				cli.FormatCompact(float64(s.Bytes))+"B",
				cli.FormatDuration(s.Elapsed)))
		if s.Dropped > 0 {
			line += warnStyle.Render(fmt.Sprintf(" · %d dropped", s.Dropped))
		}
		rows = append(rows, line)
	}
	rows = append(rows, dimStyle.Render(fmt.Sprintf("loaded in %s", cli.FormatDuration(a.result.LoadTime))))
	return components.ContentCard("Sources", strings.Join(rows, "\n"), outerW)
}

func padRight(s string, w int) string {
	if n := lipgloss.Width(s); n < w {
		return s + strings.Repeat(" ", w-n)
	}
	return s
}

func padLeft(s string, w int) string {
	if n := lipgloss.Width(s); n < w {
		return strings.Repeat(" ", w-n) + s
	}
	return s
}
