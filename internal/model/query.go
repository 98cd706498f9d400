package model

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is the calendar bucket size for time series.
type Granularity string

const (
	Day     Granularity = "day"
	Week    Granularity = "week"
	Month   Granularity = "month"
	Quarter Granularity = "quarter"
	Year    Granularity = "year"
)

// Granularities lists every granularity in UI order.
var Granularities = []Granularity{Day, Week, Month, Quarter, Year}

// ParseGranularity accepts a granularity name case-insensitively.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Granularities {
		if g == known {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown granularity %q (want day, week, month, quarter or year)", s)
}

// Label is the user-facing name.
func (g Granularity) Label() string {
	if g == "" {
		return ""
	}
	return strings.ToUpper(string(g[:1])) + string(g[1:])
}

// Dimension is a business dimension records can be grouped and filtered by.
type Dimension string

const (
	DimAccount      Dimension = "account"
	DimLanguage     Dimension = "language"
	DimCampaignType Dimension = "campaign_type"
	DimDomain       Dimension = "domain"
)

// Dimensions lists every dimension in UI order.
var Dimensions = []Dimension{DimAccount, DimLanguage, DimCampaignType, DimDomain}

// ParseDimension accepts a dimension name; dashes and spaces are treated as
// underscores and a trailing "_name" is optional ("Account name" works).
func ParseDimension(s string) (Dimension, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	norm = strings.TrimSuffix(norm, "_name")
	for _, d := range Dimensions {
		if Dimension(norm) == d {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown dimension %q (want account, language, campaign_type or domain)", s)
}

// Label is the user-facing name.
func (d Dimension) Label() string {
	switch d {
	case DimAccount:
		return "Account name"
	case DimLanguage:
		return "Language"
	case DimCampaignType:
		return "Campaign type"
	case DimDomain:
		return "Domain name"
	}
	return string(d)
}

// Metric selects the value a comparison table tracks.
type Metric string

const (
	MetricImpressions    Metric = "impressions"
	MetricClicks         Metric = "clicks"
	MetricCost           Metric = "cost"
	MetricConversions    Metric = "conversions"
	MetricRevenue        Metric = "revenue"
	MetricProfit         Metric = "profit"
	MetricCTR            Metric = "ctr"
	MetricCPC            Metric = "cpc"
	MetricCPA            Metric = "cpa"
	MetricConversionRate Metric = "conversion_rate"
	MetricROAS           Metric = "roas"
	MetricCLV            Metric = "clv"
)

// AllMetrics lists every selectable metric.
var AllMetrics = []Metric{
	MetricRevenue, MetricCost, MetricProfit, MetricConversions, MetricClicks, MetricImpressions,
	MetricROAS, MetricCPA, MetricCPC, MetricCTR, MetricConversionRate, MetricCLV,
}

// ParseMetric accepts a metric name case-insensitively.
func ParseMetric(s string) (Metric, error) {
	norm := Metric(strings.NewReplacer("-", "_", " ", "_").Replace(strings.ToLower(strings.TrimSpace(s))))
	for _, m := range AllMetrics {
		if norm == m {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

var metricLabels = map[Metric]string{
	MetricImpressions:    "Impressions",
	MetricClicks:         "Clicks",
	MetricCost:           "Cost",
	MetricConversions:    "Conversions",
	MetricRevenue:        "Revenue",
	MetricProfit:         "Profit",
	MetricCTR:            "CTR",
	MetricCPC:            "CPC",
	MetricCPA:            "CPA",
	MetricConversionRate: "Conversion rate",
	MetricROAS:           "ROAS",
	MetricCLV:            "CLV",
}

// Label is the user-facing name.
func (m Metric) Label() string {
	if l, ok := metricLabels[m]; ok {
		return l
	}
	return string(m)
}

// LowerIsBetter reports whether a decrease in m is an improvement.
func (m Metric) LowerIsBetter() bool {
	return m == MetricCost || m == MetricCPC || m == MetricCPA
}

// Filters holds the multi-select inclusion lists per dimension. An empty
// list places no restriction on that dimension.
type Filters struct {
	Accounts      []string `json:"accounts,omitempty"`
	Languages     []string `json:"languages,omitempty"`
	CampaignTypes []string `json:"campaign_types,omitempty"`
	Domains       []string `json:"domains,omitempty"`
}

// For returns the selection list for a dimension.
func (f Filters) For(d Dimension) []string {
	switch d {
	case DimLanguage:
		return f.Languages
	case DimCampaignType:
		return f.CampaignTypes
	case DimDomain:
		return f.Domains
	default:
		return f.Accounts
	}
}

// IsEmpty reports whether no dimension is restricted.
func (f Filters) IsEmpty() bool {
	return len(f.Accounts) == 0 && len(f.Languages) == 0 &&
		len(f.CampaignTypes) == 0 && len(f.Domains) == 0
}

// DateRange is an inclusive calendar date range. A zero bound is open.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// IsZero reports whether both bounds are open.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Query is everything a dashboard view needs to derive its output.
type Query struct {
	Filters     Filters
	Range       DateRange
	Granularity Granularity
	Dimension   Dimension
	Metric      Metric
}
