package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	WorkItemsProcessed *prometheus.CounterVec
	Deliveries         *prometheus.CounterVec
	DeliveryLatency    *prometheus.HistogramVec
	DuplicateEvents    *prometheus.CounterVec
	StaleTokensPruned  prometheus.Counter
	QueueDepth         *prometheus.GaugeVec
}

// New registers all instruments with the given Prometheus registerer.
// A custom registry keeps tests isolated from global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WorkItemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "work_items_processed_total",
			Help: "Queue documents moved to a terminal status, by pipeline.",
		}, []string{"pipeline", "status"}),

		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deliveries_total",
			Help: "Per-target delivery attempts, by channel and result.",
		}, []string{"channel", "result"}),

		DeliveryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "delivery_latency_seconds",
			Help:    "Time spent in a single channel sender call.",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),

		DuplicateEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "duplicate_events_total",
			Help: "Trigger deliveries skipped by the idempotency guard.",
		}, []string{"pipeline"}),

		StaleTokensPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stale_tokens_pruned_total",
			Help: "Push tokens removed after the transport rejected them.",
		}),

		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Current number of items in each in-process queue tier.",
		}, []string{"tier"}),
	}

	reg.MustRegister(
		m.WorkItemsProcessed,
		m.Deliveries,
		m.DeliveryLatency,
		m.DuplicateEvents,
		m.StaleTokensPruned,
		m.QueueDepth,
	)

	return m
}

// SetQueueDepths records a snapshot of the three queue tiers.
func (m *Metrics) SetQueueDepths(high, normal, low int) {
	m.QueueDepth.WithLabelValues("high").Set(float64(high))
	m.QueueDepth.WithLabelValues("normal").Set(float64(normal))
	m.QueueDepth.WithLabelValues("low").Set(float64(low))
}

// DeliveryHooks returns the callbacks the dispatcher invokes after each send.
// Centralises the prometheus calls so the dispatcher stays import-free.
func (m *Metrics) DeliveryHooks() (
	onDelivery func(domain.Channel, domain.OutcomeResult, time.Duration),
	onPruned func(n int),
) {
	onDelivery = func(ch domain.Channel, result domain.OutcomeResult, latency time.Duration) {
		m.Deliveries.WithLabelValues(string(ch), string(result)).Inc()
		if result != domain.OutcomeSkipped {
			m.DeliveryLatency.WithLabelValues(string(ch)).Observe(latency.Seconds())
		}
	}
	onPruned = func(n int) {
		m.StaleTokensPruned.Add(float64(n))
	}
	return
}

// PipelineHooks returns the callbacks the queue processors invoke.
func (m *Metrics) PipelineHooks() (
	onProcessed func(pipeline string, status domain.Status),
	onDuplicate func(pipeline string),
) {
	onProcessed = func(pipeline string, status domain.Status) {
		m.WorkItemsProcessed.WithLabelValues(pipeline, string(status)).Inc()
	}
	onDuplicate = func(pipeline string) {
		m.DuplicateEvents.WithLabelValues(pipeline).Inc()
	}
	return
}
