package pipeline

import "github.com/theirongolddev/adpulse/internal/model"

// Derived is everything a dashboard view renders for one query.
type Derived struct {
	Query      model.Query           `json:"query"`
	Summary    model.Summary         `json:"summary"`
	TimeSeries []model.Bucket        `json:"time_series"`
	Comparison []model.ComparisonRow `json:"comparison"`
	Dimension  []model.Group         `json:"dimension"`
}

// Normalize fills unset query fields with the dashboard defaults: month,
// account name and revenue.
func Normalize(q model.Query) model.Query {
	if q.Granularity == "" {
		q.Granularity = model.Month
	}
	if q.Dimension == "" {
		q.Dimension = model.DimAccount
	}
	if q.Metric == "" {
		q.Metric = model.MetricRevenue
	}
	return q
}

// DeriveAll recomputes every view from the full record set. It is pure: the
// input slice is not modified and the same input always yields the same
// output.
//
// The time series is sorted oldest first, the comparison newest first and
// the dimension breakdown by the query metric, largest first.
func DeriveAll(records []model.Record, q model.Query) Derived {
	q = Normalize(q)

	byDimension := FilterByDimensions(records, q.Filters)
	filtered := FilterByDateRange(byDimension, q.Range)

	series := AggregateByTime(filtered, q.Granularity)
	SortBuckets(series, q.Granularity, false)

	complete := series
	if !q.Range.IsZero() {
		complete = AggregateByTime(byDimension, q.Granularity)
	}

	groups := AggregateByDimension(filtered, q.Dimension)
	SortGroups(groups, q.Metric)

	return Derived{
		Query:      q,
		Summary:    Summarize(filtered),
		TimeSeries: series,
		Comparison: ComparePeriods(series, complete, q.Granularity, q.Metric),
		Dimension:  groups,
	}
}
