// Package model defines domain types for adpulse records, summaries and comparisons.
package model

import "time"

// Metrics holds the derived per-record metrics. They are always recomputed
// from the raw counters; values supplied by a source feed are never trusted.
type Metrics struct {
	CTR            float64 `json:"ctr"`
	CPC            float64 `json:"cpc"`
	CPA            float64 `json:"cpa"`
	ConversionRate float64 `json:"conversion_rate"`
	ROAS           float64 `json:"roas"`
	Profit         float64 `json:"profit"`
	CLV            float64 `json:"clv"`
}

// Record is one row of advertising performance data in canonical shape,
// independent of the export format it came from.
type Record struct {
	Source       string    `json:"source"`
	Campaign     string    `json:"campaign"`
	Domain       string    `json:"domain"`
	Account      string    `json:"account"`
	Language     string    `json:"language"`
	CampaignType string    `json:"campaign_type"`
	Status       string    `json:"status"`
	Date         time.Time `json:"date"`

	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	Cost        float64 `json:"cost"`
	Conversions float64 `json:"conversions"`
	Revenue     float64 `json:"revenue"`

	Metrics Metrics `json:"metrics"`
}

// Dim returns the record's value for a grouping dimension.
func (r Record) Dim(d Dimension) string {
	switch d {
	case DimLanguage:
		return r.Language
	case DimCampaignType:
		return r.CampaignType
	case DimDomain:
		return r.Domain
	default:
		return r.Account
	}
}
