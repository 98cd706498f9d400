package model

// Summary is the KPI summary over a group of records: the summed raw
// counters plus rates computed from those sums (never averaged per record).
type Summary struct {
	Records int `json:"records"`

	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	Cost        float64 `json:"cost"`
	Conversions float64 `json:"conversions"`
	Revenue     float64 `json:"revenue"`

	CTR            float64 `json:"ctr"`
	CPC            float64 `json:"cpc"`
	CPA            float64 `json:"cpa"`
	ConversionRate float64 `json:"conversion_rate"`
	ROAS           float64 `json:"roas"`
	CLV            float64 `json:"clv"`
	Profit         float64 `json:"profit"`
}

// Value returns the summary's value for the given metric.
func (s Summary) Value(m Metric) float64 {
	switch m {
	case MetricImpressions:
		return s.Impressions
	case MetricClicks:
		return s.Clicks
	case MetricCost:
		return s.Cost
	case MetricConversions:
		return s.Conversions
	case MetricProfit:
		return s.Profit
	case MetricCTR:
		return s.CTR
	case MetricCPC:
		return s.CPC
	case MetricCPA:
		return s.CPA
	case MetricConversionRate:
		return s.ConversionRate
	case MetricROAS:
		return s.ROAS
	case MetricCLV:
		return s.CLV
	default:
		return s.Revenue
	}
}

// Bucket is one entry of a time-bucketed series.
type Bucket struct {
	Key     string  `json:"key"`
	Summary Summary `json:"summary"`
}

// Group is one entry of a dimension-bucketed series.
type Group struct {
	Value   string  `json:"value"`
	Summary Summary `json:"summary"`
}

// ComparisonRow holds one period's value next to its previous period and the
// same period one year earlier. A nil pointer means no comparison record
// exists, which is distinct from a 0% change.
type ComparisonRow struct {
	Key          string   `json:"key"`
	Current      float64  `json:"current"`
	Previous     *float64 `json:"previous"`
	PreviousKey  string   `json:"previous_key"`
	PreviousPct  *float64 `json:"previous_pct"`
	LastYear     *float64 `json:"last_year"`
	LastYearKey  string   `json:"last_year_key"`
	YearOverYear *float64 `json:"yoy_pct"`
}
