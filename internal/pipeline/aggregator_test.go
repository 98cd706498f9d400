package pipeline

import (
	"slices"
	"testing"

	"github.com/theirongolddev/adpulse/internal/model"
)

func TestAggregateByTime_MarchScenario(t *testing.T) {
	records := []model.Record{
		rec(t, "2024-03-01", 100, 150, 5, 20, 200),
		rec(t, "2024-03-02", 50, 0, 0, 10, 100),
	}

	buckets := AggregateByTime(records, model.Month)
	if len(buckets) != 1 || buckets[0].Key != "2024-3" {
		t.Fatalf("buckets = %+v", buckets)
	}
	s := buckets[0].Summary
	if s.Cost != 150 || s.Revenue != 150 {
		t.Errorf("cost/revenue = %v/%v, want 150/150", s.Cost, s.Revenue)
	}
	if !approx(s.ROAS, 1.0) {
		t.Errorf("ROAS = %v, want 1.0", s.ROAS)
	}
	if !approx(s.CPA, 30) {
		t.Errorf("CPA = %v, want 30", s.CPA)
	}
	if !approx(s.ConversionRate, 5.0/30.0) {
		t.Errorf("ConversionRate = %v, want %v", s.ConversionRate, 5.0/30.0)
	}
	if !approx(s.CTR, 0.1) {
		t.Errorf("CTR = %v, want 0.1", s.CTR)
	}
}

func TestAggregateByTime_ROASIsRatioOfSums(t *testing.T) {
	records := []model.Record{
		rec(t, "2024-05-01", 10, 100, 1, 1, 1), // ROAS 10
		rec(t, "2024-05-20", 90, 90, 1, 1, 1),  // ROAS 1
		rec(t, "2024-05-31", 100, 10, 1, 1, 1), // ROAS 0.1
	}
	buckets := AggregateByTime(WithMetrics(records), model.Month)
	if len(buckets) != 1 {
		t.Fatalf("buckets = %d", len(buckets))
	}
	if !approx(buckets[0].Summary.ROAS, 200.0/200.0) {
		t.Errorf("ROAS = %v, want 1 (sum revenue / sum cost)", buckets[0].Summary.ROAS)
	}
}

func TestAggregateByTime_FirstSeenOrder(t *testing.T) {
	records := []model.Record{
		rec(t, "2024-03-10", 1, 0, 0, 0, 0),
		rec(t, "2024-01-10", 1, 0, 0, 0, 0),
		rec(t, "2024-03-20", 1, 0, 0, 0, 0),
		rec(t, "2023-12-31", 1, 0, 0, 0, 0),
	}
	got := keys(AggregateByTime(records, model.Month))
	want := []string{"2024-3", "2024-1", "2023-12"}
	if !slices.Equal(got, want) {
		t.Errorf("keys = %v, want %v", got, want)
	}
}

func TestAggregateByTime_Granularities(t *testing.T) {
	records := []model.Record{
		rec(t, "2023-12-31", 1, 0, 0, 0, 0),
		rec(t, "2024-01-01", 1, 0, 0, 0, 0),
		rec(t, "2024-04-01", 1, 0, 0, 0, 0),
	}
	counts := map[model.Granularity]int{
		model.Day:     3,
		model.Week:    3, // 2023-52, 2024-1, 2024-14
		model.Month:   3,
		model.Quarter: 3,
		model.Year:    2,
	}
	for g, want := range counts {
		if got := len(AggregateByTime(records, g)); got != want {
			t.Errorf("%s buckets = %d, want %d", g, got, want)
		}
	}
}

func TestAggregateByDimension(t *testing.T) {
	a := rec(t, "2024-03-01", 10, 20, 1, 5, 50)
	a.Language = "NL"
	b := rec(t, "2024-03-02", 30, 30, 1, 5, 50)
	b.Language = "DE"
	c := rec(t, "2024-03-03", 10, 50, 2, 10, 100)
	c.Language = "NL"

	groups := AggregateByDimension([]model.Record{a, b, c}, model.DimLanguage)
	if len(groups) != 2 || groups[0].Value != "NL" || groups[1].Value != "DE" {
		t.Fatalf("groups = %+v", groups)
	}
	if groups[0].Summary.Records != 2 || groups[0].Summary.Cost != 20 || groups[0].Summary.Revenue != 70 {
		t.Errorf("NL summary = %+v", groups[0].Summary)
	}

	SortGroups(groups, model.MetricCost)
	if groups[0].Value != "DE" {
		t.Errorf("sorted by cost = %+v", groups)
	}
}
