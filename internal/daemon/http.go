package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/theirongolddev/adpulse/internal/model"
	"github.com/theirongolddev/adpulse/internal/pipeline"
	"github.com/theirongolddev/adpulse/internal/source"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ctxKey string

const requestIDKey ctxKey = "rid"

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// Handler returns the daemon's HTTP API.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", s.metrics.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/derive", s.handleDerive)
		r.Get("/filters", s.handleFilters)
		r.Get("/events", s.handleEvents)
		r.Get("/stream", s.handleStream)
		r.Post("/refresh", s.handleRefresh)
	})
	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(rid); err != nil {
			rid = uuid.NewString()
		}
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, rid))
		w.Header().Set(RequestIDHeader, rid)
		next.ServeHTTP(w, r)
	})
}

// RequestID returns the ID assigned to the request carrying ctx.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// instrument logs each request and records it under its route pattern.
func (s *Service) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		latency := time.Since(start)
		s.metrics.RecordRequest(route, status, latency)
		s.log.WithFields(logrus.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"status":  status,
			"rid":     RequestID(r.Context()),
			"latency": latency.String(),
		}).Debug("http")
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotStatus())
}

func (s *Service) handleDerive(w http.ResponseWriter, r *http.Request) {
	q, err := QueryFromValues(r.URL.Query(), s.cfg.Query)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, pipeline.DeriveAll(s.Records(), q))
}

func (s *Service) handleFilters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, pipeline.FilterOptions(s.Records()))
}

func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	var after int64
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid after %q", v))
			return
		}
		after = n
	}
	writeJSON(w, http.StatusOK, s.eventsSince(after))
}

func (s *Service) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	if !s.manual.Allow() {
		retry := max(int(s.cfg.RefreshEvery.Round(time.Second)/time.Second), 1)
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		writeError(w, http.StatusTooManyRequests, errors.New("refresh requested too soon"))
		return
	}
	go s.PollOnce(s.base)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	// A reconnecting client gets what it missed; a new one gets the
	// current snapshot.
	if last, err := strconv.ParseInt(r.Header.Get("Last-Event-ID"), 10, 64); err == nil {
		for _, ev := range s.eventsSince(last) {
			writeSSE(w, ev)
		}
	} else {
		writeSSE(w, Event{
			UUID:      uuid.NewString(),
			Type:      EventSnapshot,
			Timestamp: time.Now(),
			Snapshot:  s.snapshotStatus().Summary,
		})
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.base.Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if ev.ID > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", ev.ID)
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// QueryFromValues builds a query from URL parameters, starting from def.
// Filter parameters may repeat or hold comma-separated values.
func QueryFromValues(v url.Values, def model.Query) (model.Query, error) {
	q := def
	var err error
	if s := v.Get("granularity"); s != "" {
		if q.Granularity, err = model.ParseGranularity(s); err != nil {
			return q, err
		}
	}
	if s := v.Get("dimension"); s != "" {
		if q.Dimension, err = model.ParseDimension(s); err != nil {
			return q, err
		}
	}
	if s := v.Get("metric"); s != "" {
		if q.Metric, err = model.ParseMetric(s); err != nil {
			return q, err
		}
	}
	if s := v.Get("from"); s != "" {
		d, ok := source.ParseDate(s)
		if !ok {
			return q, fmt.Errorf("invalid from date %q", s)
		}
		q.Range.Start = d
	}
	if s := v.Get("to"); s != "" {
		d, ok := source.ParseDate(s)
		if !ok {
			return q, fmt.Errorf("invalid to date %q", s)
		}
		q.Range.End = d
	}
	if !q.Range.Start.IsZero() && !q.Range.End.IsZero() && q.Range.End.Before(q.Range.Start) {
		return q, errors.New("date range ends before it starts")
	}

	lists := map[string]*[]string{
		"account":       &q.Filters.Accounts,
		"language":      &q.Filters.Languages,
		"campaign_type": &q.Filters.CampaignTypes,
		"domain":        &q.Filters.Domains,
	}
	for key, dst := range lists {
		if vals := splitValues(v[key]); len(vals) > 0 {
			*dst = vals
		}
	}
	return q, nil
}

func splitValues(raw []string) []string {
	var out []string
	for _, r := range raw {
		for _, p := range strings.Split(r, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
