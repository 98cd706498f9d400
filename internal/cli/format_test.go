package cli

import (
	"testing"
	"time"

	"github.com/theirongolddev/adpulse/internal/model"
)

func f(v float64) *float64 { return &v }

func TestFormatEuro(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "€ 0"},
		{12.4, "€ 12"},
		{1234.56, "€ 1.235"},
		{1234567.2, "€ 1.234.567"},
		{-50.2, "€ -50"},
	}
	for _, tt := range tests {
		if got := FormatEuro(tt.in); got != tt.want {
			t.Errorf("FormatEuro(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatEuroCents(t *testing.T) {
	if got := FormatEuroCents(0.456); got != "€ 0,46" {
		t.Errorf("got %q", got)
	}
	if got := FormatEuroCents(1500); got != "€ 1.500,00" {
		t.Errorf("got %q", got)
	}
}

func TestFormatPercent(t *testing.T) {
	if got := FormatPercent(0.1234); got != "12,34%" {
		t.Errorf("got %q", got)
	}
	if got := FormatPercent(0); got != "0,00%" {
		t.Errorf("got %q", got)
	}
}

func TestFormatROAS(t *testing.T) {
	if got := FormatROAS(1.5); got != "150%" {
		t.Errorf("FormatROAS(1.5) = %q, want 150%%", got)
	}
	if got := FormatROAS(12.34); got != "1.234%" {
		t.Errorf("FormatROAS(12.34) = %q", got)
	}
}

func TestFormatChange(t *testing.T) {
	tests := []struct {
		name string
		in   *float64
		want string
	}{
		{"missing", nil, "n/a"},
		{"zero", f(0), "0,00%"},
		{"up", f(12.5), "+12,50%"},
		{"down", f(-3), "-3,00%"},
		{"rounds to zero", f(0.001), "0,00%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatChange(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	if got := FormatNumber(1234567); got != "1.234.567" {
		t.Errorf("got %q", got)
	}
	if got := FormatNumber(999); got != "999" {
		t.Errorf("got %q", got)
	}
}

func TestFormatMetric(t *testing.T) {
	tests := []struct {
		m    model.Metric
		v    float64
		want string
	}{
		{model.MetricRevenue, 1234.56, "€ 1.235"},
		{model.MetricCPA, 12.346, "€ 12,35"},
		{model.MetricCTR, 0.05, "5,00%"},
		{model.MetricROAS, 2.5, "250%"},
		{model.MetricClicks, 12000, "12.000"},
	}
	for _, tt := range tests {
		if got := FormatMetric(tt.m, tt.v); got != tt.want {
			t.Errorf("FormatMetric(%s, %v) = %q, want %q", tt.m, tt.v, got, tt.want)
		}
	}
}

func TestFormatCompact(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{950, "950"},
		{1200, "1,2K"},
		{2_500_000, "2,5M"},
		{3_100_000_000, "3,1B"},
	}
	for _, tt := range tests {
		if got := FormatCompact(tt.in); got != tt.want {
			t.Errorf("FormatCompact(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSetLocale(t *testing.T) {
	t.Cleanup(func() { _ = SetLocale(DefaultLocale) })

	if err := SetLocale("en"); err != nil {
		t.Fatal(err)
	}
	if got := FormatEuroCents(1234.5); got != "€ 1,234.50" {
		t.Errorf("en: got %q", got)
	}
	if err := SetLocale("not a locale!"); err == nil {
		t.Error("expected error for invalid locale")
	}
}

func TestFormatNonFinite(t *testing.T) {
	var zero float64
	if got := FormatDecimal(zero/zero, 2); got != "n/a" {
		t.Errorf("NaN = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{340 * time.Millisecond, "340ms"},
		{1200 * time.Millisecond, "1.2s"},
		{125 * time.Second, "2m 5s"},
		{3725 * time.Second, "1h 2m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate(time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)); got != "07-03-2024" {
		t.Errorf("got %q", got)
	}
	if got := FormatDate(time.Time{}); got != "-" {
		t.Errorf("zero = %q", got)
	}
}

func TestFormatAxis(t *testing.T) {
	tests := []struct {
		m    model.Metric
		v    float64
		want string
	}{
		{model.MetricRevenue, 1500, "€1,5K"},
		{model.MetricProfit, -2000, "-€2,0K"},
		{model.MetricCPC, 0.5, "€0,50"},
		{model.MetricCTR, 0.025, "2,50%"},
		{model.MetricROAS, 2, "200%"},
		{model.MetricClicks, 40, "40"},
	}
	for _, tt := range tests {
		if got := FormatAxis(tt.m, tt.v); got != tt.want {
			t.Errorf("FormatAxis(%s, %v) = %q, want %q", tt.m, tt.v, got, tt.want)
		}
	}
}
