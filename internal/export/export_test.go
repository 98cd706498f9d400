package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/theirongolddev/adpulse/internal/model"
	"github.com/theirongolddev/adpulse/internal/pipeline"

	"github.com/xuri/excelize/v2"
)

func derived(t *testing.T) pipeline.Derived {
	t.Helper()
	day := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC) }
	records := pipeline.WithMetrics([]model.Record{
		{Campaign: "a", Account: "Shop NL", Date: day(2, 10), Cost: 50, Revenue: 100, Clicks: 10, Impressions: 100, Conversions: 2},
		{Campaign: "a", Account: "Shop DE", Date: day(3, 1), Cost: 100, Revenue: 150, Clicks: 20, Impressions: 200, Conversions: 5},
		{Campaign: "b", Account: "Shop NL", Date: day(3, 2), Cost: 50, Revenue: 0, Clicks: 10, Impressions: 100},
	})
	return pipeline.DeriveAll(records, model.Query{})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		format, path string
		want         Format
		wantErr      bool
	}{
		{"csv", "", CSV, false},
		{"XLSX", "out.csv", XLSX, false},
		{"", "report.xlsx", XLSX, false},
		{"", "report", CSV, false},
		{"pdf", "", "", true},
		{"", "report.pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.format, tt.path)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q, %q) = %q, %v", tt.format, tt.path, got, err)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, CSV, derived(t)); err != nil {
		t.Fatal(err)
	}

	blocks := strings.Split(buf.String(), "\n\n")
	if len(blocks) != 2 {
		t.Fatalf("blocks = %d, want time series and comparison:\n%s", len(blocks), buf.String())
	}

	series, err := csv.NewReader(strings.NewReader(blocks[0])).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if series[0][0] != "Month" || series[0][4] != "Cost" {
		t.Errorf("series header = %v", series[0])
	}
	if len(series) != 3 || series[2][0] != "2024-3" || series[2][4] != "150" {
		t.Errorf("series rows = %v", series[1:])
	}

	cmp, err := csv.NewReader(strings.NewReader(blocks[1])).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	// Newest first; March compares against February, February against nothing.
	if cmp[1][0] != "2024-3" || cmp[1][3] != "100" || cmp[1][4] != "50" {
		t.Errorf("March row = %v", cmp[1])
	}
	if cmp[2][0] != "2024-2" || cmp[2][3] != "" || cmp[2][4] != "" {
		t.Errorf("February row should have empty previous cells: %v", cmp[2])
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, XLSX, derived(t)); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if got := f.GetSheetList(); !slices.Equal(got, []string{"Time series", "Comparison", "Breakdown"}) {
		t.Fatalf("sheets = %v", got)
	}

	rows, err := f.GetRows("Breakdown")
	if err != nil {
		t.Fatal(err)
	}
	if rows[0][0] != "Account name" || len(rows) != 3 {
		t.Errorf("breakdown = %v", rows)
	}
	// Sorted by revenue: Shop DE (150) before Shop NL (100).
	if rows[1][0] != "Shop DE" {
		t.Errorf("first group = %q", rows[1][0])
	}

	v, err := f.GetCellValue("Comparison", "D3")
	if err != nil {
		t.Fatal(err)
	}
	if v != "" {
		t.Errorf("missing previous value written as %q", v)
	}
	v, _ = f.GetCellValue("Comparison", "B2")
	if v != "150" {
		t.Errorf("March revenue = %q", v)
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	if err := WriteFile(path, CSV, derived(t)); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "Month,Records,") {
		t.Errorf("file starts with %q", string(data[:20]))
	}
}
