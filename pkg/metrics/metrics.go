// Package metrics provides Prometheus instrumentation for goworkq components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "goworkq"

// Registry holds all metric instances for goworkq components. Every metric
// carries a "name" label identifying the queue, pool or coordinator.
type Registry struct {
	// Queue Metrics
	QueueDepth    *prometheus.GaugeVec
	QueuePending  *prometheus.GaugeVec
	QueueWaiting  *prometheus.GaugeVec
	QueuePuts     *prometheus.CounterVec
	QueueGets     *prometheus.CounterVec
	QueueTimeouts *prometheus.CounterVec

	// Worker Pool Metrics
	TasksSubmitted *prometheus.CounterVec
	TasksRejected  *prometheus.CounterVec
	TasksCompleted *prometheus.CounterVec
	TasksFailed    *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec
	PoolWorkers    *prometheus.GaugeVec
	PoolActive     *prometheus.GaugeVec

	// Coordinator Metrics
	ItemsProduced *prometheus.CounterVec
	ItemsConsumed *prometheus.CounterVec
	RunFailures   *prometheus.CounterVec
}

// NewRegistry creates a metrics registry registering its collectors with reg.
// A nil reg creates collectors that are not registered anywhere.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "depth",
				Help:      "Number of items currently held in the queue",
			},
			[]string{"name"},
		),

		QueuePending: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "pending",
				Help:      "Number of retrieved items not yet marked done",
			},
			[]string{"name"},
		),

		QueueWaiting: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "waiting",
				Help:      "Number of goroutines blocked on the queue",
			},
			[]string{"name", "op"},
		),

		QueuePuts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "puts_total",
				Help:      "Total number of items successfully enqueued",
			},
			[]string{"name"},
		),

		QueueGets: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "gets_total",
				Help:      "Total number of items successfully dequeued",
			},
			[]string{"name"},
		),

		QueueTimeouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "timeouts_total",
				Help:      "Total number of put or get calls that hit their wait bound",
			},
			[]string{"name", "op"},
		),

		TasksSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "tasks_submitted_total",
				Help:      "Total number of tasks accepted by the pool",
			},
			[]string{"name"},
		),

		TasksRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "tasks_rejected_total",
				Help:      "Total number of submissions rejected by the pool",
			},
			[]string{"name", "reason"},
		),

		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "tasks_completed_total",
				Help:      "Total number of tasks that finished without error",
			},
			[]string{"name"},
		),

		TasksFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "tasks_failed_total",
				Help:      "Total number of tasks that returned an error or panicked",
			},
			[]string{"name"},
		),

		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "task_duration_seconds",
				Help:      "Task execution duration",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"name"},
		),

		PoolWorkers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "workers",
				Help:      "Number of live worker goroutines",
			},
			[]string{"name"},
		),

		PoolActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "active_workers",
				Help:      "Number of workers currently executing a task",
			},
			[]string{"name"},
		),

		ItemsProduced: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "coordinator",
				Name:      "items_produced_total",
				Help:      "Total number of items emitted by producers",
			},
			[]string{"name"},
		),

		ItemsConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "coordinator",
				Name:      "items_consumed_total",
				Help:      "Total number of items processed by consumers",
			},
			[]string{"name"},
		),

		RunFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "coordinator",
				Name:      "failures_total",
				Help:      "Total number of producer or consumer failures",
			},
			[]string{"name", "role"},
		),
	}
}

// NewIsolated creates a registry backed by its own prometheus.Registry, for
// components that should not share the default registerer
func NewIsolated() (*Registry, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewRegistry(reg), reg
}
