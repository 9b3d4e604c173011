package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	schedulerQueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "queued_total",
		Help:      "Count of deferred tasks queued.",
	}, []string{"task", "status"})
	schedulerTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "tasks_total",
		Help:      "Count of deferred tasks run.",
	}, []string{"task", "status"})
	schedulerTaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "task_duration_seconds",
		Help:      "Duration of deferred tasks.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"task", "status"})
	schedulerBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "batch_size",
		Help:      "Number of deferred tasks run per batch.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})
)

// Scheduler tracks the deferred task scheduler.
type Scheduler struct{}

// NewScheduler constructs a Scheduler collector.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// ObserveQueued records an attempt to queue a task.
func (Scheduler) ObserveQueued(task string, err error) {
	schedulerQueuedTotal.WithLabelValues(label(task), status(err)).Inc()
}

// ObserveTask records one task run.
func (Scheduler) ObserveTask(task string, err error, started time.Time) {
	s := status(err)
	schedulerTasksTotal.WithLabelValues(label(task), s).Inc()
	schedulerTaskDuration.WithLabelValues(label(task), s).Observe(time.Since(started).Seconds())
}

// ObserveBatch records how many tasks a flush ran.
func (Scheduler) ObserveBatch(size int) {
	schedulerBatchSize.Observe(float64(size))
}
