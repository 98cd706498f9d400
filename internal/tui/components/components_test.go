package components

import (
	"fmt"
	"strings"
	"testing"

	"github.com/theirongolddev/adpulse/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func init() {
	// Force TrueColor output so ANSI codes are generated in tests
	lipgloss.SetColorProfile(termenv.TrueColor)
	theme.SetActive("flexoki-dark")
}

func TestLayoutRow(t *testing.T) {
	got := LayoutRow(10, 3)
	if len(got) != 3 || got[0] != 4 || got[1] != 3 || got[2] != 3 {
		t.Errorf("LayoutRow(10, 3) = %v", got)
	}
	if LayoutRow(10, 0) != nil {
		t.Error("LayoutRow with no columns should be nil")
	}
}

func TestCardRowBackgroundFill(t *testing.T) {
	shortCard := ContentCard("Short", "Content", 22)
	tallCard := ContentCard("Tall", "Line 1\nLine 2\nLine 3\nLine 4\nLine 5", 22)

	shortLines := lipgloss.Height(shortCard)
	tallLines := lipgloss.Height(tallCard)
	if shortLines >= tallLines {
		t.Fatal("short card should be shorter than tall card")
	}

	lines := strings.Split(CardRow([]string{tallCard, shortCard}), "\n")
	if len(lines) != tallLines {
		t.Fatalf("joined height = %d, want %d", len(lines), tallLines)
	}
	for i, line := range lines {
		if lipgloss.Width(line) != 44 {
			t.Errorf("line %d width = %d, want 44", i, lipgloss.Width(line))
		}
		// Rows below the short card are padding and must still be styled.
		if i >= shortLines && !strings.Contains(line, "\x1b[") {
			t.Errorf("line %d has no ANSI codes", i)
		}
	}
}

func TestMetricCardRowWidth(t *testing.T) {
	row := MetricCardRow([]KPI{
		{Label: "Revenue", Value: "€ 1.000", Delta: "+10,00%", DeltaColor: theme.Active.Green},
		{Label: "Cost", Value: "€ 400"},
		{Label: "ROAS", Value: "250%"},
	}, 61)
	for i, line := range strings.Split(row, "\n") {
		if w := lipgloss.Width(line); w != 61 {
			t.Errorf("line %d width = %d, want 61", i, w)
		}
	}
	if !strings.Contains(row, "+10,00%") {
		t.Error("delta missing from card")
	}
}

func TestTabBar(t *testing.T) {
	bar := RenderTabBar(0, 80)
	if w := lipgloss.Width(bar); w != 80 {
		t.Errorf("tab bar width = %d, want 80", w)
	}
	plain := stripANSI(bar)
	for _, want := range []string{"Overview", "[T]rends", "[B]reakdown"} {
		if !strings.Contains(plain, want) {
			t.Errorf("tab bar missing %q: %q", want, plain)
		}
	}
	if TabIdxByKey('b') != 2 || TabIdxByKey('z') != -1 {
		t.Error("TabIdxByKey mismatch")
	}
	if TabVisualWidth(Tabs[1], false) != len("Trends")+4 || TabVisualWidth(Tabs[1], true) != len("Trends")+2 {
		t.Error("TabVisualWidth mismatch")
	}
}

func TestStatusBar(t *testing.T) {
	bar := RenderStatusBar(100, Status{Info: "120 records", Err: "fetch failed"})
	if w := lipgloss.Width(bar); w != 100 {
		t.Errorf("status bar width = %d, want 100", w)
	}
	plain := stripANSI(bar)
	if !strings.Contains(plain, "fetch failed") || !strings.Contains(plain, "120 records") {
		t.Errorf("status bar = %q", plain)
	}

	narrow := RenderStatusBar(30, Status{Info: "120 records"})
	if strings.Contains(stripANSI(narrow), "120 records") {
		t.Error("right side should be dropped when it does not fit")
	}
}

func TestSparklineNegative(t *testing.T) {
	got := []rune(stripANSI(Sparkline([]float64{-10, 0, 10}, theme.Active.Blue)))
	if len(got) != 3 || got[0] != '▁' || got[2] != '█' {
		t.Errorf("sparkline = %q", string(got))
	}
}

func TestBarChart(t *testing.T) {
	chart := BarChart([]float64{100, -50, 250}, []string{"Jan", "Feb", "Mar"}, nil, theme.Active.Blue, 40, 6)
	plain := stripANSI(chart)
	if !strings.Contains(plain, "Jan") || !strings.Contains(plain, "Mar") {
		t.Errorf("labels missing:\n%s", plain)
	}
	if !strings.Contains(plain, "█") {
		t.Errorf("no bars drawn:\n%s", plain)
	}
	if got := BarChart(nil, nil, nil, theme.Active.Blue, 40, 6); got != "" {
		t.Errorf("empty chart = %q", got)
	}
}

func TestBarChartNegativeBarsBelowZero(t *testing.T) {
	// Axis runs -200..400 in steps of 200, two rows per step.
	plain := stripANSI(BarChart([]float64{100, -50, 250}, nil, nil, theme.Active.Blue, 40, 6))
	lines := strings.Split(plain, "\n")
	if len(lines) != 7 {
		t.Fatalf("lines = %d, want 6 rows + axis:\n%s", len(lines), plain)
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[6]), "-200└") {
		t.Errorf("axis line = %q", lines[6])
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[4]), "0│") {
		t.Errorf("zero tick row = %q", lines[4])
	}
	// The zero tick tops the row spanning -100..0; -50 fills its upper half.
	if !strings.Contains(lines[4], "▀") || strings.ContainsAny(lines[5], "▀▔█") {
		t.Errorf("negative bar misplaced:\n%s", plain)
	}
	for _, l := range lines[:4] {
		if strings.ContainsAny(l, "▀▔") {
			t.Errorf("negative glyph above zero: %q", l)
		}
	}
}

func TestBarChartFormatsAxis(t *testing.T) {
	euro := func(v float64) string { return "€" + formatChartLabel(v) }
	plain := stripANSI(BarChart([]float64{1000, 2000}, nil, euro, theme.Active.Blue, 40, 6))
	if !strings.Contains(plain, "€2,0K") || !strings.Contains(plain, "€0└") {
		t.Errorf("axis not formatted:\n%s", plain)
	}
}

func TestBarChartKeepsNewestPeriods(t *testing.T) {
	var vals []float64
	var labels []string
	for i := 1; i <= 30; i++ {
		vals = append(vals, float64(i))
		labels = append(labels, fmt.Sprintf("P%d", i))
	}
	plain := stripANSI(BarChart(vals, labels, nil, theme.Active.Blue, 20, 6))
	last := plain[strings.LastIndex(plain, "\n")+1:]
	if !strings.HasSuffix(last, "P30") {
		t.Errorf("newest period not labeled: %q", last)
	}
	if strings.Contains(last, "P1 ") {
		t.Errorf("oldest period kept: %q", last)
	}
}

func TestFormatChartLabel(t *testing.T) {
	tests := map[float64]string{
		0.5:       "0,50",
		20:        "20",
		1500:      "1,5K",
		2_000_000: "2,0M",
	}
	for in, want := range tests {
		if got := formatChartLabel(in); got != want {
			t.Errorf("formatChartLabel(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestProgressBar(t *testing.T) {
	if !strings.HasSuffix(stripANSI(ProgressBar(0.5, 20)), "50%") {
		t.Error("progress bar should end with its percentage")
	}
	if w := lipgloss.Width(ShareBar(2, 10, theme.Active.Accent)); w != 10 {
		t.Errorf("share bar width = %d, want 10", w)
	}
}

// stripANSI removes SGR escape sequences.
func stripANSI(s string) string {
	var b strings.Builder
	inEsc := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEsc = true
		case inEsc:
			if r >= '@' && r <= '~' && r != '[' {
				inEsc = false
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
