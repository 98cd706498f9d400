package pipeline

import (
	"sort"
	"time"

	"github.com/theirongolddev/adpulse/internal/model"

	"github.com/samber/lo"
)

// FilterByDimensions keeps records matching every restricted dimension. An
// empty selection list leaves its dimension unrestricted.
func FilterByDimensions(records []model.Record, f model.Filters) []model.Record {
	if f.IsEmpty() {
		return records
	}
	return lo.Filter(records, func(r model.Record, _ int) bool {
		for _, d := range model.Dimensions {
			sel := f.For(d)
			if len(sel) > 0 && !lo.Contains(sel, r.Dim(d)) {
				return false
			}
		}
		return true
	})
}

// RangeBounds normalizes a date range to the start of its first day and the
// last millisecond of its last day, in UTC. Zero bounds stay zero.
func RangeBounds(dr model.DateRange) (start, end time.Time) {
	if !dr.Start.IsZero() {
		y, m, d := dr.Start.Date()
		start = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	if !dr.End.IsZero() {
		y, m, d := dr.End.Date()
		end = time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	}
	return start, end
}

// FilterByDateRange keeps records dated within the inclusive range.
func FilterByDateRange(records []model.Record, dr model.DateRange) []model.Record {
	if dr.IsZero() {
		return records
	}
	start, end := RangeBounds(dr)
	return lo.Filter(records, func(r model.Record, _ int) bool {
		if !start.IsZero() && r.Date.Before(start) {
			return false
		}
		if !end.IsZero() && r.Date.After(end) {
			return false
		}
		return true
	})
}

// FilterOptions lists the distinct non-empty values of every dimension,
// sorted, as selectable filter choices.
func FilterOptions(records []model.Record) model.Filters {
	distinct := func(d model.Dimension) []string {
		vals := lo.Uniq(lo.FilterMap(records, func(r model.Record, _ int) (string, bool) {
			v := r.Dim(d)
			return v, v != ""
		}))
		sort.Strings(vals)
		return vals
	}
	return model.Filters{
		Accounts:      distinct(model.DimAccount),
		Languages:     distinct(model.DimLanguage),
		CampaignTypes: distinct(model.DimCampaignType),
		Domains:       distinct(model.DimDomain),
	}
}
