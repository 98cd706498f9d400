// Package daemon provides the long-running poller that keeps ad performance
// data fresh and serves it over HTTP.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/theirongolddev/adpulse/internal/model"
	"github.com/theirongolddev/adpulse/internal/pipeline"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Config controls the daemon runtime behavior.
type Config struct {
	// Load fetches and parses every configured source.
	Load pipeline.LoadFunc
	// Query is the view summarized into snapshots and the default for /v1/derive.
	Query        model.Query
	Sources      []string
	Interval     time.Duration
	Addr         string
	EventsBuffer int
	// RefreshEvery is the minimum gap between manual refreshes via POST
	// /v1/refresh; each one refetches every source.
	RefreshEvery time.Duration
	Logger       logrus.FieldLogger
}

// Snapshot is a compact KPI state for status and event payloads.
type Snapshot struct {
	At      time.Time     `json:"at"`
	Records int           `json:"records"`
	Dropped int           `json:"dropped"`
	Summary model.Summary `json:"summary"`
	// Latest compares the newest period in the configured query with its
	// predecessor and the same period last year.
	Latest *model.ComparisonRow `json:"latest,omitempty"`
}

// Delta captures snapshot deltas between polls.
type Delta struct {
	Records     int     `json:"records"`
	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	Cost        float64 `json:"cost"`
	Conversions float64 `json:"conversions"`
	Revenue     float64 `json:"revenue"`
}

func (d Delta) isZero() bool {
	return d.Records == 0 &&
		d.Impressions == 0 &&
		d.Clicks == 0 &&
		d.Cost == 0 &&
		d.Conversions == 0 &&
		d.Revenue == 0
}

// Event types.
const (
	EventSnapshot = "snapshot"
	EventDelta    = "data_delta"
	EventError    = "poll_error"
)

// Event is emitted whenever the data changes or a poll fails.
type Event struct {
	ID        int64     `json:"id"`
	UUID      string    `json:"uuid"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  Snapshot  `json:"snapshot"`
	Delta     Delta     `json:"delta"`
	Error     string    `json:"error,omitempty"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time              `json:"started_at"`
	LastPollAt      time.Time              `json:"last_poll_at"`
	LastSuccessAt   time.Time              `json:"last_success_at"`
	PollIntervalSec int                    `json:"poll_interval_sec"`
	PollCount       int64                  `json:"poll_count"`
	Sources         []pipeline.SourceStats `json:"sources"`
	Granularity     model.Granularity      `json:"granularity"`
	Dimension       model.Dimension        `json:"dimension"`
	Metric          model.Metric           `json:"metric"`
	Filters         model.Filters          `json:"filters"`
	Summary         Snapshot               `json:"summary"`
	LastError       string                 `json:"last_error,omitempty"`
	EventCount      int                    `json:"event_count"`
	SubscriberCount int                    `json:"subscriber_count"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg       Config
	log       logrus.FieldLogger
	metrics   *Metrics
	refresher *pipeline.Refresher
	// manual throttles POST /v1/refresh.
	manual *rate.Limiter
	// base outlives requests and is canceled on shutdown.
	base     context.Context
	shutdown context.CancelFunc

	mu            sync.RWMutex
	startedAt     time.Time
	lastPollAt    time.Time
	lastSuccessAt time.Time
	pollCount     int64
	lastError     string
	hasSnapshot   bool
	snapshot      Snapshot
	records       []model.Record
	sources       []pipeline.SourceStats
	nextEventID   int64
	events        []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a new daemon service with the provided config.
func New(cfg Config) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	if cfg.RefreshEvery <= 0 {
		cfg.RefreshEvery = 10 * time.Second
	}
	if cfg.Load == nil {
		cfg.Load = func(context.Context) (*pipeline.LoadResult, error) {
			return nil, errors.New("no sources configured")
		}
	}
	cfg.Query = pipeline.Normalize(cfg.Query)

	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	base, shutdown := context.WithCancel(context.Background())
	return &Service{
		cfg:       cfg,
		log:       log.WithField("component", "daemon"),
		metrics:   NewMetrics(),
		refresher: pipeline.NewRefresher(cfg.Load),
		manual:    rate.NewLimiter(rate.Every(cfg.RefreshEvery), 1),
		base:      base,
		shutdown:  shutdown,
		startedAt: time.Now(),
		subs:      make(map[int]chan Event),
	}
}

// Metrics returns the service's Prometheus instruments.
func (s *Service) Metrics() *Metrics { return s.metrics }

// Run starts HTTP endpoints and polling until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.WithFields(logrus.Fields{
		"addr":     s.cfg.Addr,
		"interval": s.cfg.Interval.String(),
		"sources":  s.cfg.Sources,
	}).Info("daemon started")

	// Seed initial snapshot so status is useful immediately.
	s.PollOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			s.refresher.Stop()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.PollOnce(ctx)
		case err := <-errCh:
			s.shutdown()
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

// PollOnce reloads every source and publishes an event when the data
// changed. A poll overtaken by a newer one is discarded silently.
func (s *Service) PollOnce(ctx context.Context) {
	start := time.Now()
	res, err := s.refresher.Refresh(ctx)
	if errors.Is(err, pipeline.ErrSuperseded) {
		s.metrics.RecordPoll("superseded", time.Since(start))
		return
	}
	if ctx.Err() != nil {
		return
	}
	now := time.Now()
	if err != nil {
		s.metrics.RecordPoll("error", time.Since(start))
		s.log.WithError(err).Warn("poll failed")

		s.mu.Lock()
		s.lastError = err.Error()
		s.lastPollAt = now
		s.pollCount++
		snap := s.snapshot
		ev := s.newEventLocked(EventError, now, snap, Delta{})
		ev.Error = err.Error()
		s.mu.Unlock()

		s.publishEvent(ev)
		return
	}
	s.metrics.RecordPoll("ok", time.Since(start))

	d := pipeline.DeriveAll(res.Records, s.cfg.Query)
	snap := snapshotFromDerived(d, res, now)

	s.metrics.Records.Set(float64(len(res.Records)))
	s.metrics.DroppedRows.Set(float64(res.Dropped))
	for _, st := range res.Sources {
		s.metrics.SourceBytes.WithLabelValues(st.Name).Set(float64(st.Bytes))
	}
	s.metrics.RecordSummary(d.Summary)

	var (
		ev      Event
		publish bool
	)

	s.mu.Lock()
	prev := s.snapshot
	prevExists := s.hasSnapshot

	s.hasSnapshot = true
	s.snapshot = snap
	s.records = res.Records
	s.sources = res.Sources
	s.lastPollAt = now
	s.lastSuccessAt = now
	s.pollCount++
	s.lastError = ""

	if !prevExists {
		ev = s.newEventLocked(EventSnapshot, now, snap, Delta{})
		publish = true
	} else if delta := diffSnapshots(prev, snap); !delta.isZero() {
		ev = s.newEventLocked(EventDelta, now, snap, delta)
		publish = true
	}
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"records": len(res.Records),
		"dropped": res.Dropped,
		"elapsed": res.LoadTime.String(),
	}).Debug("poll complete")

	if publish {
		s.publishEvent(ev)
	}
}

// newEventLocked assigns the next event ID. Callers hold s.mu.
func (s *Service) newEventLocked(typ string, at time.Time, snap Snapshot, delta Delta) Event {
	s.nextEventID++
	return Event{
		ID:        s.nextEventID,
		UUID:      uuid.NewString(),
		Type:      typ,
		Timestamp: at,
		Snapshot:  snap,
		Delta:     delta,
	}
}

func snapshotFromDerived(d pipeline.Derived, res *pipeline.LoadResult, at time.Time) Snapshot {
	snap := Snapshot{
		At:      at,
		Records: len(res.Records),
		Dropped: res.Dropped,
		Summary: d.Summary,
	}
	if len(d.Comparison) > 0 {
		latest := d.Comparison[0]
		snap.Latest = &latest
	}
	return snap
}

func diffSnapshots(prev, curr Snapshot) Delta {
	return Delta{
		Records:     curr.Records - prev.Records,
		Impressions: curr.Summary.Impressions - prev.Summary.Impressions,
		Clicks:      curr.Summary.Clicks - prev.Summary.Clicks,
		Cost:        curr.Summary.Cost - prev.Summary.Cost,
		Conversions: curr.Summary.Conversions - prev.Summary.Conversions,
		Revenue:     curr.Summary.Revenue - prev.Summary.Revenue,
	}
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

// Records returns the record set of the last successful poll. The slice is
// replaced, never mutated, by later polls.
func (s *Service) Records() []model.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := s.cfg.Query
	return Status{
		StartedAt:       s.startedAt,
		LastPollAt:      s.lastPollAt,
		LastSuccessAt:   s.lastSuccessAt,
		PollIntervalSec: int(s.cfg.Interval.Seconds()),
		PollCount:       s.pollCount,
		Sources:         s.sources,
		Granularity:     q.Granularity,
		Dimension:       q.Dimension,
		Metric:          q.Metric,
		Filters:         q.Filters,
		Summary:         s.snapshot,
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func (s *Service) eventsSince(after int64) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, 0, len(s.events))
	for _, ev := range s.events {
		if ev.ID > after {
			out = append(out, ev)
		}
	}
	return out
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	s.metrics.Subscribers.Set(float64(len(s.subs)))
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
	s.metrics.Subscribers.Set(float64(len(s.subs)))
}
