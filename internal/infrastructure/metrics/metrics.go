// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every instrument the service records. Construct one per
// process with NewMetrics; tests pass their own registry to keep collectors
// isolated.
type Metrics struct {
	WebhooksReceived  *prometheus.CounterVec
	CallbacksReceived *prometheus.CounterVec
	OrdersIngested    *prometheus.CounterVec

	JobsInFlight prometheus.Gauge
	JobsTotal    *prometheus.CounterVec
	JobDuration  *prometheus.HistogramVec

	MenuSyncTransitions *prometheus.CounterVec
	POSRequestDuration  *prometheus.HistogramVec
}

// NewMetrics registers all instruments against the given registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		WebhooksReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orderbridge_webhooks_received_total",
				Help: "Total number of platform webhooks received",
			},
			[]string{"platform", "outcome"},
		),
		CallbacksReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orderbridge_callbacks_received_total",
				Help: "Total number of catalog callbacks received",
			},
			[]string{"platform", "outcome"},
		),
		OrdersIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orderbridge_orders_ingested_total",
				Help: "Total number of orders accepted for processing",
			},
			[]string{"platform", "outcome"},
		),
		JobsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "orderbridge_jobs_in_flight",
				Help: "Number of jobs currently being processed",
			},
		),
		JobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orderbridge_jobs_total",
				Help: "Total number of job attempts by type and outcome",
			},
			[]string{"job_type", "outcome"},
		),
		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orderbridge_job_duration_seconds",
				Help:    "Duration of job attempts in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job_type"},
		),
		MenuSyncTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orderbridge_menu_sync_transitions_total",
				Help: "Total number of menu sync state transitions",
			},
			[]string{"platform", "to_status"},
		),
		POSRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orderbridge_pos_request_duration_seconds",
				Help:    "Duration of POS backend requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
	}
}

// RecordWebhook counts an inbound order webhook
func (m *Metrics) RecordWebhook(platform, outcome string) {
	m.WebhooksReceived.WithLabelValues(platform, outcome).Inc()
}

// RecordCallback counts an inbound catalog callback
func (m *Metrics) RecordCallback(platform, outcome string) {
	m.CallbacksReceived.WithLabelValues(platform, outcome).Inc()
}

// RecordOrderIngested counts an order ingestion attempt
func (m *Metrics) RecordOrderIngested(platform, outcome string) {
	m.OrdersIngested.WithLabelValues(platform, outcome).Inc()
}

// RecordMenuSyncTransition counts a menu link status change
func (m *Metrics) RecordMenuSyncTransition(platform, toStatus string) {
	m.MenuSyncTransitions.WithLabelValues(platform, toStatus).Inc()
}

// JobStarted marks a job attempt as started
func (m *Metrics) JobStarted(jobType string) {
	m.JobsInFlight.Inc()
}

// JobFinished records the outcome and duration of a job attempt
func (m *Metrics) JobFinished(jobType string, outcome string, took time.Duration) {
	m.JobsInFlight.Dec()
	m.JobsTotal.WithLabelValues(jobType, outcome).Inc()
	m.JobDuration.WithLabelValues(jobType).Observe(took.Seconds())
}
