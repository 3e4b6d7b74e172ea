// Package metrics exposes the daemon's Prometheus instrumentation. All
// collectors are registered once at construction and shared by injection,
// never through package globals.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics: the settlement pipeline's counters and gauges.
type Metrics struct {
	Registry *prometheus.Registry

	IngestJobs        *prometheus.CounterVec // outcome: completed|failed|retried|duplicate|invalid
	SnapshotsStored   prometheus.Counter
	FraudAssessments  *prometheus.CounterVec // action: none|monitor|warning|ban
	PayoutsComputed   *prometheus.CounterVec // status: completed|failed
	PaymentsProcessed *prometheus.CounterVec // status: completed|failed
	PaymentRetries    prometheus.Counter
	RateLimitRejected *prometheus.CounterVec // platform
	TokenRefreshes    *prometheus.CounterVec // outcome: ok|reauth|transient
	BatchRunning      prometheus.Gauge
	BatchTotalAmount  prometheus.Gauge
}

// New creates and registers every collector on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		IngestJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contentboost", Subsystem: "ingest",
			Name: "jobs_total", Help: "Collection jobs by outcome.",
		}, []string{"outcome"}),
		SnapshotsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "contentboost", Subsystem: "ingest",
			Name: "snapshots_stored_total", Help: "Snapshots persisted.",
		}),
		FraudAssessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contentboost", Subsystem: "fraud",
			Name: "assessments_total", Help: "Fraud assessments by recommended action.",
		}, []string{"action"}),
		PayoutsComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contentboost", Subsystem: "payout",
			Name: "computed_total", Help: "Payout calculations by status.",
		}, []string{"status"}),
		PaymentsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contentboost", Subsystem: "payment",
			Name: "processed_total", Help: "Payments by terminal status.",
		}, []string{"status"}),
		PaymentRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "contentboost", Subsystem: "payment",
			Name: "retries_total", Help: "Payment retry attempts.",
		}),
		RateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contentboost", Subsystem: "socialclient",
			Name: "rate_limited_total", Help: "Requests rejected by the platform window.",
		}, []string{"platform"}),
		TokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contentboost", Subsystem: "credentials",
			Name: "refreshes_total", Help: "Token refreshes by outcome.",
		}, []string{"outcome"}),
		BatchRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "contentboost", Subsystem: "payout",
			Name: "batch_running", Help: "1 while a settlement batch is in progress.",
		}),
		BatchTotalAmount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "contentboost", Subsystem: "payout",
			Name: "batch_total_amount_rupiah", Help: "Net amount of the last settlement batch.",
		}),
	}

	registry.MustRegister(
		m.IngestJobs, m.SnapshotsStored, m.FraudAssessments, m.PayoutsComputed,
		m.PaymentsProcessed, m.PaymentRetries, m.RateLimitRejected,
		m.TokenRefreshes, m.BatchRunning, m.BatchTotalAmount,
	)
	return m
}
