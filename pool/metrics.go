package pool

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus collectors for pool runs. A nil *Metrics records
// nothing.
type Metrics struct {
	TasksFed     prometheus.Counter
	TaskOutcomes *prometheus.CounterVec
	TaskDuration prometheus.Histogram
	BusyWorkers  prometheus.Gauge
	Runs         *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer to expose them globally.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		TasksFed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "tasks_fed_total",
			Help:      "Tasks pushed onto the input channel by the feeder.",
		}),
		TaskOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "task_outcomes_total",
			Help:      "Tasks finished by workers, by outcome.",
		}, []string{"outcome"}),
		TaskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "task_duration_seconds",
			Help:      "Time spent on one task including retries.",
			Buckets:   prometheus.DefBuckets,
		}),
		BusyWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "busy_workers",
			Help:      "Workers currently processing a task.",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "runs_total",
			Help:      "Completed runs, by status.",
		}, []string{"status"}),
	}

	for _, c := range []prometheus.Collector{m.TasksFed, m.TaskOutcomes, m.TaskDuration, m.BusyWorkers, m.Runs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) fed() {
	if m == nil {
		return
	}
	m.TasksFed.Inc()
}

func (m *Metrics) busy(delta float64) {
	if m == nil {
		return
	}
	m.BusyWorkers.Add(delta)
}

func (m *Metrics) observe(kind OutcomeKind, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.TaskOutcomes.WithLabelValues(kind.String()).Inc()
	m.TaskDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) finished(status string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(status).Inc()
}
