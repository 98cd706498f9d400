package export

import (
	"encoding/csv"
	"io"
	"strconv"
)

// WriteCSV writes the tables one after another, separated by an empty line.
// Numbers use a dot decimal separator so spreadsheets and scripts can
// re-import them regardless of locale.
func WriteCSV(w io.Writer, tables ...Table) error {
	cw := csv.NewWriter(w)
	for i, t := range tables {
		if i > 0 {
			if err := cw.Write(nil); err != nil {
				return err
			}
		}
		if err := cw.Write(t.Headers); err != nil {
			return err
		}
		row := make([]string, 0, len(t.Headers))
		for _, cells := range t.Rows {
			row = row[:0]
			for _, c := range cells {
				row = append(row, csvCell(c))
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}
