package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"blobscribe/internal/app/model"
)

// Metrics exposes pipeline counters for the observability sink. A nil
// *Metrics records nothing.
type Metrics struct {
	outcomes     *prometheus.CounterVec
	batchSize    prometheus.Gauge
	itemDuration prometheus.Histogram
}

// NewMetrics registers pipeline metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blobscribe_items_total",
			Help: "Processed items by terminal status.",
		}, []string{"status"}),
		batchSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blobscribe_batch_size",
			Help: "Current adaptive batch size.",
		}),
		itemDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blobscribe_item_duration_seconds",
			Help:    "Wall time spent per item.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
	reg.MustRegister(m.outcomes, m.batchSize, m.itemDuration)
	return m
}

func (m *Metrics) observeOutcome(outcome model.ProcessingOutcome, duration time.Duration) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(string(outcome.Status)).Inc()
	m.itemDuration.Observe(duration.Seconds())
}

func (m *Metrics) setBatchSize(size int) {
	if m == nil {
		return
	}
	m.batchSize.Set(float64(size))
}
