package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/theirongolddev/adpulse/internal/model"
	"github.com/theirongolddev/adpulse/internal/pipeline"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeLoad returns whatever records are currently set, or err.
type fakeLoad struct {
	mu      sync.Mutex
	records []model.Record
	err     error
}

func (f *fakeLoad) set(records []model.Record, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records, f.err = records, err
}

func (f *fakeLoad) load(context.Context) (*pipeline.LoadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.LoadResult{
		Records: pipeline.WithMetrics(f.records),
		Sources: []pipeline.SourceStats{{Name: "google", Bytes: 42, Records: len(f.records)}},
		Dropped: 1,
	}, nil
}

func sampleRecords() []model.Record {
	return []model.Record{
		{Campaign: "a", Account: "Shop NL", Language: "NL", Date: day(2, 10), Cost: 50, Revenue: 100, Clicks: 10, Impressions: 100, Conversions: 2},
		{Campaign: "a", Account: "Shop DE", Language: "DE", Date: day(3, 1), Cost: 100, Revenue: 150, Clicks: 20, Impressions: 200, Conversions: 5},
	}
}

func newTestService(t *testing.T, f *fakeLoad) *Service {
	t.Helper()
	s := New(Config{Load: f.load, EventsBuffer: 10, Logger: quietLogger()})
	t.Cleanup(s.shutdown)
	return s
}

func TestDiffSnapshots(t *testing.T) {
	prev := Snapshot{
		Records: 10,
		Summary: model.Summary{Impressions: 1000, Clicks: 100, Cost: 10.5, Conversions: 4, Revenue: 40},
	}
	curr := Snapshot{
		Records: 12,
		Summary: model.Summary{Impressions: 1250, Clicks: 112, Cost: 13.1, Conversions: 4, Revenue: 55},
	}

	delta := diffSnapshots(prev, curr)
	if delta.Records != 2 {
		t.Fatalf("Records delta = %d, want 2", delta.Records)
	}
	if delta.Impressions != 250 || delta.Clicks != 12 {
		t.Fatalf("traffic delta = %+v", delta)
	}
	if math.Abs(delta.Cost-2.6) > 1e-9 {
		t.Fatalf("Cost delta = %.2f, want 2.60", delta.Cost)
	}
	if delta.Conversions != 0 || delta.Revenue != 15 {
		t.Fatalf("outcome delta = %+v", delta)
	}
	if delta.isZero() {
		t.Fatal("delta unexpectedly reported as zero")
	}
	if !diffSnapshots(curr, curr).isZero() {
		t.Fatal("identical snapshots should have a zero delta")
	}
}

func TestPublishEventRingBuffer(t *testing.T) {
	s := New(Config{EventsBuffer: 2, Logger: quietLogger()})

	s.publishEvent(Event{ID: 1})
	s.publishEvent(Event{ID: 2})
	s.publishEvent(Event{ID: 3})

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.events) != 2 {
		t.Fatalf("events len = %d, want 2", len(s.events))
	}
	if s.events[0].ID != 2 || s.events[1].ID != 3 {
		t.Fatalf("events ring contains IDs [%d, %d], want [2, 3]", s.events[0].ID, s.events[1].ID)
	}
}

func TestPollOnce_Events(t *testing.T) {
	f := &fakeLoad{}
	f.set(sampleRecords(), nil)
	s := newTestService(t, f)
	ctx := context.Background()

	s.PollOnce(ctx)
	s.PollOnce(ctx) // unchanged data publishes nothing

	more := append(sampleRecords(), model.Record{Campaign: "b", Account: "Shop NL", Date: day(3, 2), Cost: 50})
	f.set(more, nil)
	s.PollOnce(ctx)

	f.set(nil, errors.New("sheet unreachable"))
	s.PollOnce(ctx)

	events := s.eventsSince(0)
	if len(events) != 3 {
		t.Fatalf("events = %d, want snapshot, delta and error", len(events))
	}
	if events[0].Type != EventSnapshot || events[1].Type != EventDelta || events[2].Type != EventError {
		t.Errorf("types = %s, %s, %s", events[0].Type, events[1].Type, events[2].Type)
	}
	if events[1].Delta.Records != 1 || events[1].Delta.Cost != 50 {
		t.Errorf("delta = %+v", events[1].Delta)
	}
	if _, err := uuid.Parse(events[0].UUID); err != nil {
		t.Errorf("event uuid %q: %v", events[0].UUID, err)
	}
	if events[2].Error != "sheet unreachable" {
		t.Errorf("error event = %+v", events[2])
	}

	st := s.snapshotStatus()
	if st.PollCount != 4 || st.LastError != "sheet unreachable" {
		t.Errorf("status = %+v", st)
	}
	// A failed poll keeps serving the last good data.
	if len(s.Records()) != 3 || st.Summary.Records != 3 {
		t.Errorf("records after failure = %d", len(s.Records()))
	}
	if st.Summary.Latest == nil || st.Summary.Latest.Key != "2024-3" {
		t.Errorf("latest comparison = %+v", st.Summary.Latest)
	}
	if got := s.eventsSince(events[1].ID); len(got) != 1 || got[0].ID != events[2].ID {
		t.Errorf("eventsSince = %+v", got)
	}
}

func TestHandler(t *testing.T) {
	f := &fakeLoad{}
	f.set(sampleRecords(), nil)
	s := newTestService(t, f)
	s.PollOnce(context.Background())

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	get := func(t *testing.T, path string) *http.Response {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	t.Run("healthz", func(t *testing.T) {
		resp := get(t, "/healthz")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if _, err := uuid.Parse(resp.Header.Get(RequestIDHeader)); err != nil {
			t.Errorf("request id = %q", resp.Header.Get(RequestIDHeader))
		}
	})

	t.Run("status", func(t *testing.T) {
		var st Status
		if err := json.NewDecoder(get(t, "/v1/status").Body).Decode(&st); err != nil {
			t.Fatal(err)
		}
		if st.Granularity != model.Month || st.Summary.Records != 2 || len(st.Sources) != 1 {
			t.Errorf("status = %+v", st)
		}
	})

	t.Run("derive", func(t *testing.T) {
		v := url.Values{}
		v.Set("dimension", "language")
		v.Set("metric", "cost")
		v.Add("account", "Shop DE")
		resp := get(t, "/v1/derive?"+v.Encode())
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var d pipeline.Derived
		if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
			t.Fatal(err)
		}
		if d.Summary.Cost != 100 || len(d.Dimension) != 1 || d.Dimension[0].Value != "DE" {
			t.Errorf("derived = %+v", d)
		}
	})

	t.Run("derive rejects bad granularity", func(t *testing.T) {
		if resp := get(t, "/v1/derive?granularity=fortnight"); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("filters", func(t *testing.T) {
		var opts model.Filters
		if err := json.NewDecoder(get(t, "/v1/filters").Body).Decode(&opts); err != nil {
			t.Fatal(err)
		}
		if len(opts.Accounts) != 2 || opts.Accounts[0] != "Shop DE" {
			t.Errorf("filters = %+v", opts)
		}
	})

	t.Run("events", func(t *testing.T) {
		var events []Event
		if err := json.NewDecoder(get(t, "/v1/events").Body).Decode(&events); err != nil {
			t.Fatal(err)
		}
		if len(events) != 1 || events[0].Type != EventSnapshot {
			t.Errorf("events = %+v", events)
		}
		if resp := get(t, "/v1/events?after=x"); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("bad after status = %d", resp.StatusCode)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		body, err := io.ReadAll(get(t, "/metrics").Body)
		if err != nil {
			t.Fatal(err)
		}
		for _, want := range []string{
			`adpulse_polls_total{result="ok"} 1`,
			"adpulse_records 2",
			`adpulse_summary{metric="revenue"} 250`,
			`adpulse_http_requests_total{code="200",route="/healthz"}`,
		} {
			if !strings.Contains(string(body), want) {
				t.Errorf("metrics missing %q", want)
			}
		}
	})
}

func TestRequestIDPassthrough(t *testing.T) {
	s := newTestService(t, &fakeLoad{})
	rid := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, rid)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != rid {
		t.Errorf("request id = %q, want %q", got, rid)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got == "not-a-uuid" {
		t.Error("malformed request id was echoed")
	}
}

func TestWriteSSE(t *testing.T) {
	rec := httptest.NewRecorder()
	writeSSE(rec, Event{ID: 7, Type: EventDelta})
	out := rec.Body.String()
	if !strings.HasPrefix(out, "id: 7\nevent: data_delta\ndata: {") || !strings.HasSuffix(out, "}\n\n") {
		t.Errorf("sse frame = %q", out)
	}
}

func TestQueryFromValues(t *testing.T) {
	def := pipeline.Normalize(model.Query{})
	v := url.Values{
		"granularity": {"Week"},
		"from":        {"2024-01-01"},
		"to":          {"31-03-2024"},
		"language":    {"NL,DE", " FR "},
	}
	q, err := QueryFromValues(v, def)
	if err != nil {
		t.Fatal(err)
	}
	if q.Granularity != model.Week || q.Metric != model.MetricRevenue {
		t.Errorf("query = %+v", q)
	}
	if !q.Range.Start.Equal(day(1, 1)) || !q.Range.End.Equal(day(3, 31)) {
		t.Errorf("range = %+v", q.Range)
	}
	if len(q.Filters.Languages) != 3 || q.Filters.Languages[2] != "FR" {
		t.Errorf("languages = %v", q.Filters.Languages)
	}

	for _, bad := range []url.Values{
		{"metric": {"likes"}},
		{"dimension": {"country"}},
		{"from": {"yesterday-ish"}},
		{"from": {"2024-03-01"}, "to": {"2024-02-01"}},
	} {
		if _, err := QueryFromValues(bad, def); err == nil {
			t.Errorf("QueryFromValues(%v) accepted", bad)
		}
	}
}

func TestManualRefreshRateLimited(t *testing.T) {
	f := &fakeLoad{}
	f.set(sampleRecords(), nil)
	s := New(Config{Load: f.load, RefreshEvery: time.Minute, Logger: quietLogger()})
	t.Cleanup(s.shutdown)
	h := s.Handler()

	post := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/refresh", nil))
		return rec
	}

	if rec := post(); rec.Code != http.StatusAccepted {
		t.Fatalf("first refresh = %d, want 202", rec.Code)
	}
	rec := post()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second refresh = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
}
