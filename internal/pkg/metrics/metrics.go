package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	GenerationRequests *prometheus.CounterVec
	LedgerOperations   *prometheus.CounterVec
	DispatchAttempts   *prometheus.CounterVec
	ReconcilePolls     *prometheus.CounterVec
	WebhookEvents      *prometheus.CounterVec
	ProviderLatency    *prometheus.HistogramVec
	ActiveJobs         prometheus.Gauge
}

// namespace prefixes every collector name.
const namespace = "jadeframe"

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton on first use.
func Registry() *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			GenerationRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_requests_total",
				Help:      "Total generation requests by mode and outcome.",
			}, []string{"mode", "outcome"}),
			LedgerOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_operations_total",
				Help:      "Total ledger credits/debits by operation and outcome.",
			}, []string{"op", "outcome"}),
			DispatchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_attempts_total",
				Help:      "Total provider dispatch attempts by outcome.",
			}, []string{"outcome"}),
			ReconcilePolls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_polls_total",
				Help:      "Total status reconciliation polls by result.",
			}, []string{"result"}),
			WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_events_total",
				Help:      "Total inbound payment webhook events by type and outcome.",
			}, []string{"type", "outcome"}),
			ProviderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_request_duration_seconds",
				Help:      "Latency distribution for compute provider calls.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"call", "status"}),
			ActiveJobs: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_jobs",
				Help:      "Jobs currently holding an admission slot.",
			}),
		}

		prometheus.MustRegister(
			metricsInstance.GenerationRequests,
			metricsInstance.LedgerOperations,
			metricsInstance.DispatchAttempts,
			metricsInstance.ReconcilePolls,
			metricsInstance.WebhookEvents,
			metricsInstance.ProviderLatency,
			metricsInstance.ActiveJobs,
		)
	})
	return metricsInstance
}
