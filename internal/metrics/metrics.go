// Package metrics provides Prometheus metrics for notionbolt.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	NotionRequestsTotal   *prometheus.CounterVec
	NotionRequestDuration *prometheus.HistogramVec

	SlackEventsTotal *prometheus.CounterVec

	SummariesTotal *prometheus.CounterVec
	JobsInFlight   prometheus.Gauge
}

// New registers every metric with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		NotionRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notionbolt_notion_requests_total",
				Help: "Total number of Notion API requests",
			},
			[]string{"operation", "status"},
		),
		NotionRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notionbolt_notion_request_duration_seconds",
				Help:    "Duration of Notion API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		SlackEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notionbolt_slack_events_total",
				Help: "Total number of Slack envelopes handled",
			},
			[]string{"kind", "outcome"},
		),
		SummariesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notionbolt_summaries_total",
				Help: "Total number of LLM summaries produced",
			},
			[]string{"kind", "status"},
		),
		JobsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "notionbolt_jobs_in_flight",
				Help: "Number of review jobs currently running",
			},
		),
	}
}

func (m *Metrics) ObserveNotion(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.NotionRequestsTotal.WithLabelValues(operation, status).Inc()
	m.NotionRequestDuration.WithLabelValues(operation).Observe(seconds)
}

func (m *Metrics) SlackEvent(kind, outcome string) {
	if m == nil {
		return
	}
	m.SlackEventsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Summary(kind, status string) {
	if m == nil {
		return
	}
	m.SummariesTotal.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.JobsInFlight.Inc()
}

func (m *Metrics) JobFinished() {
	if m == nil {
		return
	}
	m.JobsInFlight.Dec()
}
