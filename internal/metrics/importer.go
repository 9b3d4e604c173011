package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importerBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "importer",
		Name:      "blocks_total",
		Help:      "Count of blocks imported from the node.",
	}, []string{"network", "status"})
	importerBlockDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "importer",
		Name:      "block_duration_seconds",
		Help:      "Duration of fetching and persisting one block.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})
	importerReorgsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "importer",
		Name:      "reorgs_total",
		Help:      "Count of local tip blocks moved to the side chain.",
	}, []string{"network"})
	importerHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "importer",
		Name:      "height",
		Help:      "Depth of the last imported main chain block.",
	}, []string{"network"})
)

// Importer tracks the node importer.
type Importer struct {
	network string
}

// NewImporter constructs an Importer collector for network.
func NewImporter(network string) *Importer {
	return &Importer{network: label(network)}
}

// ObserveBlock records one imported block and, on success, its depth.
func (m Importer) ObserveBlock(err error, depth int64, started time.Time) {
	s := status(err)
	importerBlocksTotal.WithLabelValues(m.network, s).Inc()
	importerBlockDuration.WithLabelValues(m.network, s).Observe(time.Since(started).Seconds())
	if err == nil {
		importerHeight.WithLabelValues(m.network).Set(float64(depth))
	}
}

// ObserveReorg records a stale tip block being moved off the main chain.
func (m Importer) ObserveReorg() {
	importerReorgsTotal.WithLabelValues(m.network).Inc()
}
