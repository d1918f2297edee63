// Package telemetry holds the Prometheus metrics shared by the core
// loops, grounded on this codebase's promauto vector pattern.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric the mediator exposes.
type Metrics struct {
	StorageWritesTotal *prometheus.CounterVec
	PriorityCacheSize  prometheus.GaugeFunc
	BatchFlushesTotal  *prometheus.CounterVec
	BatchSize          prometheus.Histogram
	TimersPending      prometheus.GaugeFunc
	AgentInvocations   *prometheus.CounterVec
	FallbackInvocations *prometheus.CounterVec
	ChainSendsTotal    *prometheus.CounterVec
}

// New creates and registers all metrics against the default Prometheus
// registry. sizeFn/timersFn are sampled live by the returned GaugeFuncs.
func New(sizeFn func() float64, timersFn func() float64) *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer, sizeFn, timersFn)
}

// NewWithRegisterer creates and registers all metrics against reg. Tests
// pass a fresh prometheus.NewRegistry() so repeated calls within the same
// process don't collide on the default registry.
func NewWithRegisterer(reg prometheus.Registerer, sizeFn func() float64, timersFn func() float64) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StorageWritesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustmesh_storage_writes_total",
				Help: "Total number of escrow/shipment events persisted, by key prefix.",
			},
			[]string{"prefix"},
		),

		PriorityCacheSize: factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "trustmesh_priority_cache_size",
				Help: "Current number of entries in the priority cache.",
			},
			sizeFn,
		),

		BatchFlushesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustmesh_batch_flushes_total",
				Help: "Total number of batch flushes, by outcome.",
			},
			[]string{"outcome"}, // success, failure
		),

		BatchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "trustmesh_batch_size",
				Help:    "Size of batches handed to the decision layer.",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
			},
		),

		TimersPending: factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "trustmesh_timers_pending",
				Help: "Current number of pending scheduled timers.",
			},
			timersFn,
		),

		AgentInvocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustmesh_agent_invocations_total",
				Help: "Total number of Agent.Invoke calls, by outcome.",
			},
			[]string{"outcome"}, // success, failure
		),

		FallbackInvocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustmesh_fallback_invocations_total",
				Help: "Total number of FallbackPolicy runs, by triggering source.",
			},
			[]string{"trigger"}, // timer, batch
		),

		ChainSendsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustmesh_chain_sends_total",
				Help: "Total number of outbound chain transactions, by function and outcome.",
			},
			[]string{"function", "outcome"},
		),
	}
}
