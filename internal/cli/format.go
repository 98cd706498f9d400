// Package cli provides locale-aware formatting and rendering utilities for terminal output.
package cli

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/theirongolddev/adpulse/internal/model"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultLocale is used until SetLocale picks another one.
const DefaultLocale = "nl"

var (
	mu      sync.RWMutex
	printer = message.NewPrinter(language.Dutch)
)

// SetLocale switches number formatting to a BCP 47 locale such as "nl" or "en-GB".
func SetLocale(code string) error {
	tag, err := language.Parse(code)
	if err != nil {
		return fmt.Errorf("invalid locale %q: %w", code, err)
	}
	mu.Lock()
	printer = message.NewPrinter(tag)
	mu.Unlock()
	return nil
}

func decimal(v float64, digits int) string {
	mu.RLock()
	p := printer
	mu.RUnlock()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	// Round half away from zero before handing over to the locale printer.
	pow := math.Pow10(digits)
	v = math.Round(v*pow) / pow
	if v == 0 {
		v = 0 // drop negative zero
	}
	return p.Sprint(number.Decimal(v, number.Scale(digits)))
}

// FormatEuro formats a currency amount as whole euros.
// e.g., 1234.56 -> "€ 1.235"
func FormatEuro(v float64) string {
	return "€ " + decimal(v, 0)
}

// FormatEuroCents formats a per-unit currency amount (CPC, CPA, CLV) with cents.
// e.g., 0.456 -> "€ 0,46"
func FormatEuroCents(v float64) string {
	return "€ " + decimal(v, 2)
}

// FormatPercent formats a 0-1 ratio as a percentage with two decimals.
// e.g., 0.1234 -> "12,34%"
func FormatPercent(ratio float64) string {
	return decimal(ratio*100, 2) + "%"
}

// FormatROAS shows return on ad spend as a percentage rather than a multiplier.
// e.g., 1.5 -> "150%"
func FormatROAS(ratio float64) string {
	return decimal(ratio*100, 0) + "%"
}

// FormatChange formats a percent change with an explicit sign. A nil change
// means there was nothing to compare against and renders as "n/a", never as
// "0,00%".
func FormatChange(pct *float64) string {
	if pct == nil {
		return "n/a"
	}
	s := decimal(*pct, 2) + "%"
	if math.Round(*pct*100) > 0 {
		return "+" + s
	}
	return s
}

// FormatNumber formats a count with locale grouping and no decimals.
// e.g., 1234567 -> "1.234.567"
func FormatNumber(v float64) string {
	return decimal(v, 0)
}

// FormatDecimal formats v with a fixed number of fraction digits.
func FormatDecimal(v float64, digits int) string {
	return decimal(v, digits)
}

// FormatMetric formats v the way metric m is displayed everywhere: money in
// euros, rates as percentages and counts as plain numbers.
func FormatMetric(m model.Metric, v float64) string {
	switch m {
	case model.MetricCost, model.MetricRevenue, model.MetricProfit:
		return FormatEuro(v)
	case model.MetricCPC, model.MetricCPA, model.MetricCLV:
		return FormatEuroCents(v)
	case model.MetricCTR, model.MetricConversionRate:
		return FormatPercent(v)
	case model.MetricROAS:
		return FormatROAS(v)
	default:
		return FormatNumber(v)
	}
}

// FormatCompact abbreviates large values for chart axes.
// e.g., 1234 -> "1,2K", 2500000 -> "2,5M"
func FormatCompact(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000_000:
		return decimal(v/1_000_000_000, 1) + "B"
	case abs >= 1_000_000:
		return decimal(v/1_000_000, 1) + "M"
	case abs >= 1_000:
		return decimal(v/1_000, 1) + "K"
	default:
		return decimal(v, 0)
	}
}

// FormatAxis formats a chart tick for metric m, shorter than FormatMetric:
// 1500 euros is "€1,5K", a 0.025 CTR is "2,50%".
func FormatAxis(m model.Metric, v float64) string {
	switch m {
	case model.MetricCost, model.MetricRevenue, model.MetricProfit,
		model.MetricCPC, model.MetricCPA, model.MetricCLV:
		if v < 0 {
			return "-€" + axisNumber(-v)
		}
		return "€" + axisNumber(v)
	case model.MetricCTR, model.MetricConversionRate, model.MetricROAS:
		return axisNumber(v*100) + "%"
	default:
		return axisNumber(v)
	}
}

// axisNumber keeps fractional ticks below 1000 readable ("2,50" rather than
// a rounded "3") and abbreviates the rest.
func axisNumber(v float64) string {
	if math.Abs(v) < 1000 && v != math.Trunc(v) {
		return decimal(v, 2)
	}
	return FormatCompact(v)
}

// FormatDuration formats an elapsed time compactly.
// e.g., 3725s -> "1h 2m", 125s -> "2m 5s", 1.2s -> "1.2s", 340ms -> "340ms"
func FormatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// FormatDate renders a calendar date the way the Dutch exports write it.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02-01-2006")
}
