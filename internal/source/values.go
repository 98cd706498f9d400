// Package source maps published ad-platform CSV exports onto canonical records.
package source

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// numberNoise strips currency symbols and the whitespace variants
// spreadsheets put around them.
var numberNoise = strings.NewReplacer(
	"€", "",
	"$", "",
	" ", "",
	" ", "",
	" ", "",
)

// ParseNumeric converts a currency-formatted cell into a number. Both
// "€1,234.50" and the Dutch "€1.234,56" are understood.
// Empty or unparseable input yields 0; it never fails.
func ParseNumeric(s string) float64 {
	s = normalizeSeparators(numberNoise.Replace(strings.TrimSpace(s)))
	// Cells are plain decimals; exponent notation is treated as garbage.
	if s == "" || strings.ContainsAny(s, "eE") {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) {
		return 0
	}
	return f
}

// normalizeSeparators rewrites s so '.' is the only decimal mark and no
// grouping separators remain. With both marks present the last one is the
// decimal mark. A lone comma followed by one or two digits ("12,5") is a
// decimal comma; any other comma groups thousands.
func normalizeSeparators(s string) string {
	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case comma < 0:
		return s
	case dot > comma:
		return strings.ReplaceAll(s, ",", "")
	case dot >= 0:
		return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
	}
	if tail := len(s) - comma - 1; strings.Count(s, ",") == 1 && tail >= 1 && tail <= 2 {
		return strings.Replace(s, ",", ".", 1)
	}
	return strings.ReplaceAll(s, ",", "")
}

// ParsePercentage converts "12.5%" into 0.125. Empty input and the "--"
// placeholder yield 0, as does anything unparseable.
func ParsePercentage(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "--" {
		return 0
	}
	return ParseNumeric(strings.TrimSuffix(s, "%")) / 100
}
