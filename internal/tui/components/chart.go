package components

import (
	"math"
	"strings"

	"github.com/theirongolddev/adpulse/internal/cli"
	"github.com/theirongolddev/adpulse/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// Sparkline renders a unicode sparkline from values. Series that dip below
// zero (profit) are scaled from their minimum.
func Sparkline(values []float64, color lipgloss.Color) string {
	if len(values) == 0 {
		return ""
	}
	t := theme.Active

	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := min(values[0], 0), values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	style := lipgloss.NewStyle().Foreground(color).Background(t.Surface)

	var buf strings.Builder
	buf.Grow(len(values) * 3)
	for _, v := range values {
		idx := int((v - lo) / span * float64(len(blocks)-1))
		idx = min(max(idx, 0), len(blocks)-1)
		buf.WriteRune(blocks[idx])
	}

	return style.Render(buf.String())
}

// BarChart renders one bar per period over a value axis that always
// includes zero. Bars for negative values, such as a loss-making period's
// profit, hang below the zero line in red. The newest period is drawn in the
// bright accent. format renders the axis ticks; nil uses compact numbers.
// When the periods do not fit, the most recent ones are kept.
func BarChart(values []float64, labels []string, format func(float64) string, color lipgloss.Color, width, height int) string {
	if len(values) == 0 {
		return ""
	}
	if width < 15 || height < 3 {
		return Sparkline(values, color)
	}
	if format == nil {
		format = formatChartLabel
	}
	if len(labels) != len(values) {
		labels = nil
	}

	t := theme.Active
	ax := newValueAxis(values, height)

	// A tick labels the top edge of every rowsPerTick-th row.
	ticks := make(map[int]string, ax.intervals)
	labelW := lipgloss.Width(format(ax.bottom))
	for i := 1; i <= ax.intervals; i++ {
		s := format(ax.bottom + ax.step*float64(i))
		ticks[i*ax.rowsPerTick] = s
		labelW = max(labelW, lipgloss.Width(s))
	}

	plotW := max(width-labelW-1, 5)
	barW, gap := barLayout(len(values), plotW)
	if barW == 0 {
		keep := max((plotW+1)/3, 1)
		values = values[len(values)-keep:]
		if labels != nil {
			labels = labels[len(labels)-keep:]
		}
		barW, gap = 2, 1
	}
	axisLen := len(values)*barW + (len(values)-1)*gap

	surface := lipgloss.NewStyle().Background(t.Surface)
	axisStyle := surface.Foreground(t.TextDim)
	styles := [...]lipgloss.Style{
		surface.Foreground(color),
		surface.Foreground(t.AccentBright),
		surface.Foreground(t.Red),
	}
	pad := func(s string) string {
		return strings.Repeat(" ", labelW-lipgloss.Width(s)) + s
	}

	var b strings.Builder
	unit := ax.unit()
	for row := ax.rows(); row >= 1; row-- {
		low := ax.bottom + float64(row-1)*unit
		high := low + unit

		b.WriteString(axisStyle.Render(pad(ticks[row]) + "│"))
		for i, v := range values {
			if i > 0 {
				b.WriteString(surface.Render(strings.Repeat(" ", gap)))
			}
			cell, style := barCell(v, low, high), styles[0]
			switch {
			case v < 0:
				style = styles[2]
			case i == len(values)-1:
				style = styles[1]
			}
			b.WriteString(style.Render(strings.Repeat(string(cell), barW)))
		}
		b.WriteString("\n")
	}

	b.WriteString(axisStyle.Render(pad(format(ax.bottom)) + "└" + strings.Repeat("─", axisLen)))
	if labels != nil {
		b.WriteString("\n")
		b.WriteString(surface.Render(strings.Repeat(" ", labelW+1)))
		b.WriteString(axisStyle.Render(periodLabels(labels, barW+gap, axisLen)))
	}
	return b.String()
}

// valueAxis is a tick grid running from bottom (zero or below) in steps.
type valueAxis struct {
	bottom, step           float64
	intervals, rowsPerTick int
}

func newValueAxis(values []float64, height int) valueAxis {
	lo, hi := 0.0, 0.0
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if hi == lo {
		hi = 1
	}

	step := chartTickStep(hi - lo)
	maxIntervals := max(height/2, 2)
	var top, bottom float64
	for {
		top = math.Ceil(hi/step) * step
		bottom = math.Floor(lo/step) * step
		if int(math.Round((top-bottom)/step)) <= maxIntervals {
			break
		}
		step *= 2
	}
	n := max(int(math.Round((top-bottom)/step)), 1)
	return valueAxis{bottom: bottom, step: step, intervals: n, rowsPerTick: max(height/n, 2)}
}

func (ax valueAxis) rows() int { return ax.intervals * ax.rowsPerTick }
func (ax valueAxis) unit() float64 { return ax.step / float64(ax.rowsPerTick) }

// barLayout sizes bars to fill width. It returns a zero width when n bars
// cannot each get two columns.
func barLayout(n, width int) (barW, gap int) {
	if n == 1 {
		return min(width, 6), 0
	}
	barW = (width - (n - 1)) / n
	if barW < 2 {
		return 0, 1
	}
	return min(barW, 6), 1
}

var eighths = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// barCell is the glyph for value v in the row spanning [low, high].
// Positive bars grow up from zero, negative ones grow down.
func barCell(v, low, high float64) rune {
	switch {
	case v > 0 && high > 0:
		if v >= high {
			return '█'
		}
		if v > low {
			return eighths[min(max(int((v-low)/(high-low)*8), 1), 8)]
		}
	case v < 0 && low < 0:
		if v <= low {
			return '█'
		}
		if v < high {
			switch frac := (high - v) / (high - low); {
			case frac >= 0.875:
				return '█'
			case frac >= 0.375:
				return '▀'
			default:
				return '▔'
			}
		}
	}
	return ' '
}

// periodLabels lays out bucket keys under their bars. The newest period is
// always labeled; earlier ones fill in from the left where they fit.
func periodLabels(labels []string, pitch, width int) string {
	buf := []byte(strings.Repeat(" ", width))

	last := labels[len(labels)-1]
	if len(last) > width {
		last = last[:width]
	}
	lastPos := min((len(labels)-1)*pitch, width-len(last))
	copy(buf[lastPos:], last)

	end := -1
	for i, lbl := range labels[:len(labels)-1] {
		pos := i * pitch
		if pos <= end {
			continue
		}
		if pos+len(lbl) >= lastPos {
			break
		}
		copy(buf[pos:], lbl)
		end = pos + len(lbl)
	}
	return strings.TrimRight(string(buf), " ")
}

// chartTickStep computes a nice tick interval targeting ~5 ticks.
func chartTickStep(maxVal float64) float64 {
	if maxVal <= 0 {
		return 1
	}
	rough := maxVal / 5
	exp := math.Floor(math.Log10(rough))
	base := math.Pow(10, exp)
	frac := rough / base

	switch {
	case frac < 1.5:
		return base
	case frac < 3.5:
		return 2 * base
	default:
		return 5 * base
	}
}

func formatChartLabel(v float64) string {
	if v > 0 && v < 1 {
		return cli.FormatDecimal(v, 2)
	}
	return cli.FormatCompact(v)
}
