// Package export writes derived dashboard tables to CSV and XLSX files.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/theirongolddev/adpulse/internal/model"
	"github.com/theirongolddev/adpulse/internal/pipeline"
)

// Format is an output file format.
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// ParseFormat accepts "csv" or "xlsx"; an empty string infers the format
// from the file extension of path.
func ParseFormat(s, path string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		s = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch Format(s) {
	case CSV, XLSX:
		return Format(s), nil
	case "":
		return CSV, nil
	}
	return "", fmt.Errorf("unknown export format %q (want csv or xlsx)", s)
}

// Table is one exported sheet. Cells are string, float64, int or nil for a
// missing comparison value.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]any
}

var summaryHeaders = []string{
	"Records", "Impressions", "Clicks", "Cost", "Conversions", "Revenue", "Profit",
	"CTR", "CPC", "CPA", "Conversion rate", "ROAS", "CLV",
}

func summaryCells(s model.Summary) []any {
	return []any{
		s.Records, s.Impressions, s.Clicks, s.Cost, s.Conversions, s.Revenue, s.Profit,
		s.CTR, s.CPC, s.CPA, s.ConversionRate, s.ROAS, s.CLV,
	}
}

// TimeSeriesTable lists every bucket oldest first.
func TimeSeriesTable(d pipeline.Derived) Table {
	t := Table{
		Name:    "Time series",
		Headers: append([]string{d.Query.Granularity.Label()}, summaryHeaders...),
	}
	for _, b := range d.TimeSeries {
		t.Rows = append(t.Rows, append([]any{b.Key}, summaryCells(b.Summary)...))
	}
	return t
}

// ComparisonTable lists the period comparison newest first.
func ComparisonTable(d pipeline.Derived) Table {
	t := Table{
		Name: "Comparison",
		Headers: []string{
			d.Query.Granularity.Label(), d.Query.Metric.Label(),
			"Previous period", "Previous", "Change %",
			"Last year period", "Last year", "YoY %",
		},
	}
	for _, r := range d.Comparison {
		t.Rows = append(t.Rows, []any{
			r.Key, r.Current,
			r.PreviousKey, optional(r.Previous), optional(r.PreviousPct),
			r.LastYearKey, optional(r.LastYear), optional(r.YearOverYear),
		})
	}
	return t
}

// DimensionTable lists the breakdown by the query dimension.
func DimensionTable(d pipeline.Derived) Table {
	t := Table{
		Name:    "Breakdown",
		Headers: append([]string{d.Query.Dimension.Label()}, summaryHeaders...),
	}
	for _, g := range d.Dimension {
		t.Rows = append(t.Rows, append([]any{g.Value}, summaryCells(g.Summary)...))
	}
	return t
}

func optional(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// Write renders d in the given format. CSV carries the time series and the
// comparison; XLSX adds the dimension breakdown as its own sheet.
func Write(w io.Writer, format Format, d pipeline.Derived) error {
	switch format {
	case XLSX:
		return WriteXLSX(w, TimeSeriesTable(d), ComparisonTable(d), DimensionTable(d))
	default:
		return WriteCSV(w, TimeSeriesTable(d), ComparisonTable(d))
	}
}

// WriteFile writes d to path, replacing any existing file.
func WriteFile(path string, format Format, d pipeline.Derived) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := Write(f, format, d); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
