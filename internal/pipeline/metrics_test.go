package pipeline

import (
	"math"
	"testing"

	"github.com/theirongolddev/adpulse/internal/model"
)

func TestComputeMetrics(t *testing.T) {
	r := model.Record{Impressions: 200, Clicks: 20, Cost: 100, Conversions: 5, Revenue: 150}
	m := ComputeMetrics(r)

	want := model.Metrics{CTR: 0.1, CPC: 5, CPA: 20, ConversionRate: 0.25, ROAS: 1.5, Profit: 50, CLV: 30}
	if m != want {
		t.Errorf("ComputeMetrics = %+v, want %+v", m, want)
	}
}

func TestComputeMetrics_ZeroDenominators(t *testing.T) {
	m := ComputeMetrics(model.Record{Revenue: 10})
	for name, v := range map[string]float64{
		"CTR": m.CTR, "CPC": m.CPC, "CPA": m.CPA, "ConversionRate": m.ConversionRate,
		"ROAS": m.ROAS, "CLV": m.CLV,
	} {
		if v != 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s = %v, want 0", name, v)
		}
	}
	if m.Profit != 10 {
		t.Errorf("Profit = %v, want 10", m.Profit)
	}
}

func TestWithMetrics_Idempotent(t *testing.T) {
	records := []model.Record{
		rec(t, "2024-03-01", 100, 150, 5, 20, 200),
		rec(t, "2024-03-02", 50, 0, 0, 10, 100),
	}
	records[0].Metrics.ROAS = 99 // a bogus source-provided value

	once := WithMetrics(records)
	twice := WithMetrics(once)
	for i := range once {
		if once[i].Metrics != twice[i].Metrics {
			t.Errorf("record %d: %+v != %+v", i, once[i].Metrics, twice[i].Metrics)
		}
	}
	if once[0].Metrics.ROAS != 1.5 {
		t.Errorf("ROAS = %v, want recomputed 1.5", once[0].Metrics.ROAS)
	}
	if records[0].Metrics.ROAS != 99 {
		t.Error("WithMetrics modified its input")
	}
}

func TestSummarize_RatiosOfSums(t *testing.T) {
	records := []model.Record{
		rec(t, "2024-03-01", 100, 400, 4, 10, 100), // ROAS 4
		rec(t, "2024-03-02", 300, 300, 1, 30, 100), // ROAS 1
	}
	s := Summarize(records)
	if !approx(s.ROAS, 700.0/400.0) {
		t.Errorf("ROAS = %v, want %v (not the mean 2.5)", s.ROAS, 700.0/400.0)
	}
	if s.Records != 2 || s.Cost != 400 || s.Revenue != 700 || s.Profit != 300 {
		t.Errorf("summary = %+v", s)
	}
	if !approx(s.CLV, 140) || !approx(s.CPC, 10) {
		t.Errorf("CLV/CPC = %v/%v", s.CLV, s.CPC)
	}

	empty := Summarize(nil)
	if empty != (model.Summary{}) {
		t.Errorf("empty summary = %+v", empty)
	}
}
