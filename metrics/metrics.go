package metrics

import (
	"github.com/jirevwe/threadpool"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports a pool's events as Prometheus metrics. It is a
// threadpool.Observer.
type Metrics struct {
	TasksSubmitted prometheus.Counter
	TasksCompleted prometheus.Counter
	TasksPanicked  prometheus.Counter
	TasksAbandoned prometheus.Counter
	LiveWorkers    prometheus.Gauge
	TaskLatency    prometheus.Histogram
}

var _ threadpool.Observer = (*Metrics)(nil)

// New creates the pool metrics and registers them with reg.
func New(reg prometheus.Registerer, namespace, subsystem string) (*Metrics, error) {
	m := &Metrics{
		TasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_submitted_total",
			Help:      "Total number of work items submitted to the pool",
		}),
		TasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_completed_total",
			Help:      "Total number of work items that ran to completion",
		}),
		TasksPanicked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_panicked_total",
			Help:      "Total number of work items that panicked",
		}),
		TasksAbandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_abandoned_total",
			Help:      "Total number of work items still queued when the pool was shut down",
		}),
		LiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "live_workers",
			Help:      "Current number of running workers",
		}),
		TaskLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "task_latency_seconds",
			Help:      "Histogram of work item execution latency",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{
		m.TasksSubmitted,
		m.TasksCompleted,
		m.TasksPanicked,
		m.TasksAbandoned,
		m.LiveWorkers,
		m.TaskLatency,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) Observe(ev threadpool.Event) {
	switch ev.Kind {
	case threadpool.EventWorkerStarted:
		m.LiveWorkers.Inc()
	case threadpool.EventWorkerStopped:
		m.LiveWorkers.Dec()
	case threadpool.EventSubmitted:
		m.TasksSubmitted.Inc()
	case threadpool.EventFinished:
		m.TasksCompleted.Inc()
		m.TaskLatency.Observe(ev.Duration.Seconds())
	case threadpool.EventPanicked:
		m.TasksPanicked.Inc()
		m.TaskLatency.Observe(ev.Duration.Seconds())
	case threadpool.EventAbandoned:
		m.TasksAbandoned.Inc()
	}
}
