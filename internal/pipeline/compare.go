package pipeline

import (
	"sort"

	"github.com/theirongolddev/adpulse/internal/model"
)

// ComparePeriods builds one comparison row per bucket of series. Predecessor
// and same-period-last-year values are looked up in series first, then in
// complete, which should be the same records aggregated without the date
// range so that periods just outside the range still resolve. Rows are
// returned newest first.
func ComparePeriods(series, complete []model.Bucket, g model.Granularity, m model.Metric) []model.ComparisonRow {
	filtered := indexBuckets(series)
	all := indexBuckets(complete)

	lookup := func(key string) (float64, bool) {
		if s, ok := filtered[key]; ok {
			return s.Value(m), true
		}
		if s, ok := all[key]; ok {
			return s.Value(m), true
		}
		return 0, false
	}

	rows := make([]model.ComparisonRow, 0, len(series))
	for _, b := range series {
		row := model.ComparisonRow{
			Key:     b.Key,
			Current: b.Summary.Value(m),
		}

		if prevKey, err := Predecessor(b.Key, g); err == nil {
			row.PreviousKey = prevKey
			if v, ok := lookup(prevKey); ok {
				row.Previous = ptr(v)
				row.PreviousPct = ptr(PercentChange(row.Current, v))
			}
		}
		if lyKey, err := SamePeriodLastYear(b.Key, g); err == nil {
			row.LastYearKey = lyKey
			if v, ok := lookup(lyKey); ok {
				row.LastYear = ptr(v)
				row.YearOverYear = ptr(PercentChange(row.Current, v))
			}
		}
		rows = append(rows, row)
	}

	less := KeyLess(g)
	sort.SliceStable(rows, func(i, j int) bool {
		return less(rows[j].Key, rows[i].Key)
	})
	return rows
}

// PercentChange is (current-previous)/previous*100, or 0 when previous is 0.
func PercentChange(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

func indexBuckets(buckets []model.Bucket) map[string]model.Summary {
	m := make(map[string]model.Summary, len(buckets))
	for _, b := range buckets {
		m[b.Key] = b.Summary
	}
	return m
}

func ptr(v float64) *float64 { return &v }
