package daemon

import (
	"net/http"
	"strconv"
	"time"

	"github.com/theirongolddev/adpulse/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "adpulse"

// Metrics holds the Prometheus instruments for one service. Each service
// owns its registry so tests can run several side by side.
type Metrics struct {
	registry *prometheus.Registry

	Polls        *prometheus.CounterVec
	PollDuration prometheus.Histogram
	Records      prometheus.Gauge
	DroppedRows  prometheus.Gauge
	SourceBytes  *prometheus.GaugeVec
	Summary      *prometheus.GaugeVec
	LastSuccess  prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
	Subscribers  prometheus.Gauge
}

// NewMetrics creates and registers all instruments on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Polls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polls_total",
				Help:      "Source polls by result",
			},
			[]string{"result"},
		),
		PollDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Time to fetch and parse all sources",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		Records: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "Records held after the last successful poll",
		}),
		DroppedRows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dropped_rows",
			Help:      "Rows dropped for a missing campaign or unparseable date in the last poll",
		}),
		SourceBytes: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "source_bytes",
				Help:      "Size of each source's CSV body in the last poll",
			},
			[]string{"source"},
		),
		Summary: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "summary",
				Help:      "KPI summary for the daemon's configured query",
			},
			[]string{"metric"},
		),
		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful poll",
		}),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		HTTPLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Connected event stream clients",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.registry }

var summaryMetrics = []model.Metric{
	model.MetricImpressions, model.MetricClicks, model.MetricCost, model.MetricConversions,
	model.MetricRevenue, model.MetricProfit, model.MetricROAS, model.MetricCPA,
}

// RecordPoll updates the poll instruments.
func (m *Metrics) RecordPoll(result string, elapsed time.Duration) {
	m.Polls.WithLabelValues(result).Inc()
	if result == "ok" {
		m.PollDuration.Observe(elapsed.Seconds())
		m.LastSuccess.SetToCurrentTime()
	}
}

// RecordSummary publishes the summary KPIs as gauges.
func (m *Metrics) RecordSummary(s model.Summary) {
	for _, metric := range summaryMetrics {
		m.Summary.WithLabelValues(string(metric)).Set(s.Value(metric))
	}
}

// RecordRequest counts one HTTP request.
func (m *Metrics) RecordRequest(route string, code int, latency time.Duration) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(latency.Seconds())
}
