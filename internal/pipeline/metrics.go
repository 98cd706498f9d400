package pipeline

import "github.com/theirongolddev/adpulse/internal/model"

// safeDivide returns 0 instead of NaN or Inf when the denominator is 0.
func safeDivide(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// ComputeMetrics derives a record's rates from its raw counters.
func ComputeMetrics(r model.Record) model.Metrics {
	return model.Metrics{
		CTR:            safeDivide(r.Clicks, r.Impressions),
		CPC:            safeDivide(r.Cost, r.Clicks),
		CPA:            safeDivide(r.Cost, r.Conversions),
		ConversionRate: safeDivide(r.Conversions, r.Clicks),
		ROAS:           safeDivide(r.Revenue, r.Cost),
		Profit:         r.Revenue - r.Cost,
		CLV:            safeDivide(r.Revenue, r.Conversions),
	}
}

// WithMetrics returns a copy of records with derived metrics recomputed,
// overwriting whatever the records carried.
func WithMetrics(records []model.Record) []model.Record {
	out := make([]model.Record, len(records))
	for i, r := range records {
		r.Metrics = ComputeMetrics(r)
		out[i] = r
	}
	return out
}

// totals accumulates raw counters for one group.
type totals struct {
	records     int
	impressions float64
	clicks      float64
	cost        float64
	conversions float64
	revenue     float64
}

func (t *totals) add(r model.Record) {
	t.records++
	t.impressions += r.Impressions
	t.clicks += r.Clicks
	t.cost += r.Cost
	t.conversions += r.Conversions
	t.revenue += r.Revenue
}

// summary applies the rate formulas to the summed counters. Group rates are
// ratios of sums, not means of per-record rates.
func (t *totals) summary() model.Summary {
	return model.Summary{
		Records:        t.records,
		Impressions:    t.impressions,
		Clicks:         t.clicks,
		Cost:           t.cost,
		Conversions:    t.conversions,
		Revenue:        t.revenue,
		CTR:            safeDivide(t.clicks, t.impressions),
		CPC:            safeDivide(t.cost, t.clicks),
		CPA:            safeDivide(t.cost, t.conversions),
		ConversionRate: safeDivide(t.conversions, t.clicks),
		ROAS:           safeDivide(t.revenue, t.cost),
		CLV:            safeDivide(t.revenue, t.conversions),
		Profit:         t.revenue - t.cost,
	}
}

// Summarize computes the KPI summary over records.
func Summarize(records []model.Record) model.Summary {
	var t totals
	for _, r := range records {
		t.add(r)
	}
	return t.summary()
}
