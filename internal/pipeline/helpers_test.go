package pipeline

import (
	"math"
	"testing"
	"time"

	"github.com/theirongolddev/adpulse/internal/model"
)

func mustDate(t testing.TB, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func rec(t testing.TB, date string, cost, revenue, conversions, clicks, impressions float64) model.Record {
	t.Helper()
	return model.Record{
		Campaign:    "c",
		Account:     "acct",
		Date:        mustDate(t, date),
		Cost:        cost,
		Revenue:     revenue,
		Conversions: conversions,
		Clicks:      clicks,
		Impressions: impressions,
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
