package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Count of chain store operations.",
	}, []string{"operation", "network", "status"})
	storeOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Duration of chain store operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "network", "status"})
)

// Store tracks chain store repository calls.
type Store struct {
	network string
}

// NewStore constructs a Store collector for network.
func NewStore(network string) *Store {
	return &Store{network: label(network)}
}

// Observe records one repository call.
func (m Store) Observe(operation string, err error, started time.Time) {
	s := status(err)
	storeOperationsTotal.WithLabelValues(operation, m.network, s).Inc()
	storeOperationDuration.WithLabelValues(operation, m.network, s).Observe(time.Since(started).Seconds())
}
