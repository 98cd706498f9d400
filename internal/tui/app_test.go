package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/theirongolddev/adpulse/internal/config"
	"github.com/theirongolddev/adpulse/internal/model"
	"github.com/theirongolddev/adpulse/internal/pipeline"
	"github.com/theirongolddev/adpulse/internal/tui/components"

	tea "github.com/charmbracelet/bubbletea"
)

var fixedNow = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

func record(date, account, language string, cost, revenue float64) model.Record {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return model.Record{
		Source:       "google",
		Campaign:     account + "-search",
		Account:      account,
		Language:     language,
		CampaignType: "Search",
		Domain:       account + ".nl",
		Date:         d,
		Impressions:  1000,
		Clicks:       100,
		Cost:         cost,
		Conversions:  4,
		Revenue:      revenue,
	}
}

func testRecords() []model.Record {
	return []model.Record{
		record("2024-04-10", "acme", "NL", 100, 300),
		record("2024-05-10", "acme", "NL", 100, 400),
		record("2024-05-20", "globex", "DE", 50, 100),
		record("2024-06-01", "acme", "NL", 200, 500),
	}
}

func newTestApp(t *testing.T, opts Options) App {
	t.Helper()
	if opts.Config.Sources == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Load == nil {
		opts.Load = func(context.Context, config.Config, pipeline.ProgressFunc) (*pipeline.LoadResult, error) {
			return &pipeline.LoadResult{Records: testRecords()}, nil
		}
	}
	a := NewApp(opts)
	a.now = func() time.Time { return fixedNow }
	return a
}

func update(t *testing.T, a App, msg tea.Msg) App {
	t.Helper()
	m, _ := a.Update(msg)
	out, ok := m.(App)
	if !ok {
		t.Fatalf("Update returned %T", m)
	}
	return out
}

func press(t *testing.T, a App, keys ...string) App {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "right":
			msg = tea.KeyMsg{Type: tea.KeyRight}
		case "left":
			msg = tea.KeyMsg{Type: tea.KeyLeft}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		a = update(t, a, msg)
	}
	return a
}

func loadedApp(t *testing.T) App {
	t.Helper()
	a := newTestApp(t, Options{})
	return update(t, a, DataLoadedMsg{Result: &pipeline.LoadResult{
		Records: testRecords(),
		Sources: []pipeline.SourceStats{{Name: "google", Schema: "google", Records: 4}},
	}})
}

func TestTabAtXMatchesTabWidths(t *testing.T) {
	n := len(components.Tabs)
	for active := 0; active < n; active++ {
		a := App{activeTab: active}
		pos := 0
		for i, tab := range components.Tabs {
			w := components.TabVisualWidth(tab, i == active)
			x := pos + w/2 // midpoint inside this tab
			if got := a.tabAtX(x); got != i {
				t.Fatalf("active=%d x=%d -> tab=%d, want %d", active, x, got, i)
			}
			pos += w + 1
		}
		if got := a.tabAtX(pos + 5); got != -1 {
			t.Errorf("active=%d: x past the last tab -> %d, want -1", active, got)
		}
	}
}

func TestDataLoaded(t *testing.T) {
	a := loadedApp(t)
	if !a.loaded {
		t.Fatal("app not marked loaded")
	}
	if got := a.derived.Summary.Records; got != 4 {
		t.Errorf("records = %d, want 4", got)
	}
	if got := a.derived.Summary.Revenue; got != 1300 {
		t.Errorf("revenue = %v, want 1300", got)
	}
	if len(a.options.Accounts) != 2 {
		t.Errorf("account options = %v", a.options.Accounts)
	}
}

func TestLoadErrorKeepsData(t *testing.T) {
	a := loadedApp(t)
	a.refreshing = true
	a = update(t, a, DataLoadedMsg{Err: errors.New("fetching google: status 500")})

	if a.refreshing {
		t.Error("refreshing still set after a failed load")
	}
	if !strings.Contains(a.lastErr, "status 500") {
		t.Errorf("lastErr = %q", a.lastErr)
	}
	if a.derived.Summary.Records != 4 {
		t.Errorf("data dropped after failed refresh: %d records", a.derived.Summary.Records)
	}

	a = update(t, a, DataLoadedMsg{Result: &pipeline.LoadResult{Records: testRecords()[:1]}})
	if a.lastErr != "" {
		t.Errorf("lastErr not cleared: %q", a.lastErr)
	}
	if a.derived.Summary.Records != 1 {
		t.Errorf("records = %d, want 1", a.derived.Summary.Records)
	}
}

func TestSupersededLoadIgnored(t *testing.T) {
	a := loadedApp(t)
	a.refreshing = true
	a = update(t, a, DataLoadedMsg{Err: pipeline.ErrSuperseded})
	if !a.refreshing || a.lastErr != "" {
		t.Errorf("superseded load changed state: refreshing=%v err=%q", a.refreshing, a.lastErr)
	}
}

func TestViewSelectorKeys(t *testing.T) {
	a := loadedApp(t)
	if a.query.Granularity != model.Month || a.query.Dimension != model.DimAccount || a.query.Metric != model.MetricRevenue {
		t.Fatalf("unexpected defaults: %+v", a.query)
	}

	a = press(t, a, "g")
	if a.query.Granularity != model.Quarter {
		t.Errorf("g: granularity = %s, want quarter", a.query.Granularity)
	}
	a = press(t, a, "G", "G")
	if a.query.Granularity != model.Week {
		t.Errorf("G G: granularity = %s, want week", a.query.Granularity)
	}
	if a.derived.Query.Granularity != model.Week {
		t.Error("derived view not recomputed after granularity change")
	}

	a = press(t, a, "d")
	if a.query.Dimension != model.DimLanguage {
		t.Errorf("d: dimension = %s, want language", a.query.Dimension)
	}

	a = press(t, a, "M")
	want := cycle(model.AllMetrics, model.MetricRevenue, -1)
	if a.query.Metric != want {
		t.Errorf("M: metric = %s, want %s", a.query.Metric, want)
	}
}

func TestTabKeys(t *testing.T) {
	a := loadedApp(t)
	a = press(t, a, "b")
	if a.activeTab != tabBreakdown {
		t.Errorf("b: tab = %d", a.activeTab)
	}
	a = press(t, a, "right")
	if a.activeTab != tabOverview {
		t.Errorf("right from last tab: tab = %d, want wrap to overview", a.activeTab)
	}
	a = press(t, a, "left")
	if a.activeTab != tabBreakdown {
		t.Errorf("left from first tab: tab = %d", a.activeTab)
	}
	a = press(t, a, "t")
	if a.activeTab != tabTrends {
		t.Errorf("t: tab = %d", a.activeTab)
	}
}

func TestDatePresets(t *testing.T) {
	a := loadedApp(t)
	if a.preset != 0 || a.rangeLabel() != "All time" {
		t.Fatalf("initial preset = %d (%s)", a.preset, a.rangeLabel())
	}

	a = press(t, a, "p")
	wantStart := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	if !a.query.Range.Start.Equal(wantStart) || !a.query.Range.End.Equal(wantEnd) {
		t.Errorf("last 30 days = %v..%v", a.query.Range.Start, a.query.Range.End)
	}
	if a.rangeLabel() != "Last 30 days" {
		t.Errorf("label = %q", a.rangeLabel())
	}
	// 2024-05-20 and 2024-06-01 fall inside.
	if a.derived.Summary.Records != 2 {
		t.Errorf("records in last 30 days = %d, want 2", a.derived.Summary.Records)
	}

	a = press(t, a, "P")
	if !a.query.Range.IsZero() {
		t.Errorf("P back to all time: range = %+v", a.query.Range)
	}
}

func TestClearFilters(t *testing.T) {
	a := loadedApp(t)
	a.query.Filters.Accounts = []string{"globex"}
	a.recompute()
	if a.derived.Summary.Records != 1 {
		t.Fatalf("filtered records = %d, want 1", a.derived.Summary.Records)
	}
	a = press(t, a, "c")
	if !a.query.Filters.IsEmpty() || a.derived.Summary.Records != 4 {
		t.Errorf("filters not cleared: %+v, %d records", a.query.Filters, a.derived.Summary.Records)
	}
}

func TestFilterFormEscCloses(t *testing.T) {
	a := loadedApp(t)
	a = press(t, a, "f")
	if a.filterForm == nil {
		t.Fatal("f did not open the filter form")
	}
	a = press(t, a, "esc")
	if a.filterForm != nil {
		t.Error("esc did not close the filter form")
	}
}

func TestFilterValuesApply(t *testing.T) {
	v := &filterValues{
		Accounts: []string{"acme"},
		From:     "2024-05-01",
		To:       "31-05-2024",
	}
	var q model.Query
	if err := v.apply(&q); err != nil {
		t.Fatal(err)
	}
	if len(q.Filters.Accounts) != 1 || q.Filters.Accounts[0] != "acme" {
		t.Errorf("accounts = %v", q.Filters.Accounts)
	}
	if !q.Range.End.Equal(time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v", q.Range.End)
	}

	v = &filterValues{From: "2024-02-30"}
	if err := v.apply(&q); err == nil {
		t.Error("expected error for invalid date")
	}
}

func TestFilterValuesValidateTo(t *testing.T) {
	v := &filterValues{From: "2024-05-10"}
	if err := v.validateTo("2024-05-01"); err == nil {
		t.Error("end before start accepted")
	}
	if err := v.validateTo("2024-05-10"); err != nil {
		t.Errorf("same-day range rejected: %v", err)
	}
	if err := v.validateTo(""); err != nil {
		t.Errorf("open end rejected: %v", err)
	}
}

func TestAutoRefreshToggleSaves(t *testing.T) {
	var saved *config.Config
	a := newTestApp(t, Options{
		Config: config.DefaultConfig(),
		SaveConfig: func(edit func(*config.Config)) error {
			c := config.Config{}
			edit(&c)
			saved = &c
			return nil
		},
	})
	a = update(t, a, DataLoadedMsg{Result: &pipeline.LoadResult{Records: testRecords()}})
	if !a.autoRefresh {
		t.Fatal("auto-refresh should default on")
	}
	a = press(t, a, "R")
	if a.autoRefresh {
		t.Error("R did not turn auto-refresh off")
	}
	if saved == nil || saved.Refresh.Auto {
		t.Errorf("config not saved with auto=false: %+v", saved)
	}
}

func TestTickTriggersAutoRefresh(t *testing.T) {
	a := loadedApp(t)
	a.lastRefresh = fixedNow.Add(-time.Hour)
	a = update(t, a, tickMsg{})
	if !a.refreshing {
		t.Error("stale data did not trigger a refresh")
	}

	b := loadedApp(t)
	b.autoRefresh = false
	b.lastRefresh = fixedNow.Add(-time.Hour)
	b = update(t, b, tickMsg{})
	if b.refreshing {
		t.Error("refresh started with auto-refresh off")
	}
}

func TestMessageExpires(t *testing.T) {
	a := loadedApp(t)
	a.setMessage("exported x.xlsx")
	a.now = func() time.Time { return fixedNow.Add(messageTTL) }
	a = update(t, a, tickMsg{})
	if a.message != "" {
		t.Errorf("message not cleared: %q", a.message)
	}
}

func TestLatestChange(t *testing.T) {
	series := []model.Bucket{
		{Key: "2024-04", Summary: model.Summary{Revenue: 100}},
		{Key: "2024-05", Summary: model.Summary{Revenue: 150}},
	}
	latest, prev, ok := latestChange(series, model.Month)
	if !ok || latest.Key != "2024-05" || prev == nil || prev.Revenue != 100 {
		t.Fatalf("latest=%v prev=%v ok=%v", latest.Key, prev, ok)
	}

	// A gap month has no predecessor data.
	series[0].Key = "2024-03"
	_, prev, ok = latestChange(series, model.Month)
	if !ok || prev != nil {
		t.Errorf("gap: prev = %v, want nil", prev)
	}

	if _, _, ok := latestChange(nil, model.Month); ok {
		t.Error("empty series reported ok")
	}
}

func TestScrollClamps(t *testing.T) {
	a := loadedApp(t)
	a.height = 40
	a = press(t, a, "t")
	a = press(t, a, "j", "j", "j", "j", "j", "j", "j", "j")
	if last := len(a.derived.Comparison) - 1; a.scroll != last {
		t.Errorf("scroll = %d, want %d", a.scroll, last)
	}
	a = press(t, a, "o")
	if a.scroll != 0 {
		t.Errorf("scroll not reset on tab switch: %d", a.scroll)
	}
}

func TestViewRendersTabs(t *testing.T) {
	a := loadedApp(t)
	a = update(t, a, tea.WindowSizeMsg{Width: 140, Height: 45})

	for _, key := range []string{"o", "t", "b"} {
		a = press(t, a, key)
		out := a.View()
		if !strings.Contains(out, "Revenue") {
			t.Errorf("tab %s: view does not mention the metric", key)
		}
		if h := strings.Count(out, "\n") + 1; h != 45 {
			t.Errorf("tab %s: view height = %d, want 45", key, h)
		}
	}

	a = update(t, a, tea.WindowSizeMsg{Width: 60, Height: 20})
	if !strings.Contains(a.View(), "too narrow") {
		t.Error("narrow terminal not reported")
	}
}

func TestValidateSourceURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "google.csv")
	if err := os.WriteFile(path, []byte("a,b\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, ok := range []string{"", "https://docs.google.com/x/pub?output=csv", path, "file://" + path} {
		if err := ValidateSourceURL(ok); err != nil {
			t.Errorf("ValidateSourceURL(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"https://", filepath.Join(dir, "missing.csv"), "ftp-ish nonsense"} {
		if err := ValidateSourceURL(bad); err == nil {
			t.Errorf("ValidateSourceURL(%q) accepted", bad)
		}
	}
}

func TestApplySetup(t *testing.T) {
	cfg := config.DefaultConfig()
	ApplySetup(&cfg, &SetupValues{
		GoogleURL:   "https://docs.google.com/spreadsheets/d/abc123/edit#gid=7",
		Theme:       "tokyo-night",
		Granularity: "week",
	})

	want := "https://docs.google.com/spreadsheets/d/abc123/export?format=csv&gid=7"
	if got := sourceURL(cfg, "google"); got != want {
		t.Errorf("google url = %q, want %q", got, want)
	}
	if cfg.Appearance.Theme != "tokyo-night" || cfg.General.DefaultGranularity != "week" {
		t.Errorf("appearance/general not applied: %+v %+v", cfg.Appearance, cfg.General)
	}
	if len(cfg.ConfiguredSources()) != 1 {
		t.Errorf("configured sources = %d, want 1", len(cfg.ConfiguredSources()))
	}
}
