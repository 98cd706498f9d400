// Package pipeline turns canonical ad records into summaries, time series and
// period comparisons, and loads those records from the configured sources.
package pipeline

import (
	"sort"

	"github.com/theirongolddev/adpulse/internal/model"
)

// AggregateByTime groups records into calendar buckets. Buckets come back in
// first-seen order; use SortBuckets before display.
func AggregateByTime(records []model.Record, g model.Granularity) []model.Bucket {
	index := make(map[string]int)
	var keys []string
	var groups []*totals

	for _, r := range records {
		key := BucketKey(r.Date, g)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			keys = append(keys, key)
			groups = append(groups, &totals{})
		}
		groups[i].add(r)
	}

	buckets := make([]model.Bucket, len(groups))
	for i, t := range groups {
		buckets[i] = model.Bucket{Key: keys[i], Summary: t.summary()}
	}
	return buckets
}

// AggregateByDimension groups records by the literal value of a dimension.
// Groups come back in first-seen order.
func AggregateByDimension(records []model.Record, d model.Dimension) []model.Group {
	index := make(map[string]int)
	var values []string
	var groups []*totals

	for _, r := range records {
		v := r.Dim(d)
		i, ok := index[v]
		if !ok {
			i = len(groups)
			index[v] = i
			values = append(values, v)
			groups = append(groups, &totals{})
		}
		groups[i].add(r)
	}

	out := make([]model.Group, len(groups))
	for i, t := range groups {
		out[i] = model.Group{Value: values[i], Summary: t.summary()}
	}
	return out
}

// SortGroups orders groups by a metric, largest first, breaking ties by name.
func SortGroups(groups []model.Group, m model.Metric) {
	sort.SliceStable(groups, func(i, j int) bool {
		vi, vj := groups[i].Summary.Value(m), groups[j].Summary.Value(m)
		if vi != vj {
			return vi > vj
		}
		return groups[i].Value < groups[j].Value
	})
}
