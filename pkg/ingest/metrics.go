package ingest

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nicktill/renderscope/pkg/config"
	"github.com/nicktill/renderscope/pkg/storage"
)

const (
	resultAccepted = "accepted"
	resultRejected = "rejected"
	resultFailed   = "failed"
)

// Metrics instruments the ingestion service. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ingested   *prometheus.CounterVec
	duration   prometheus.Histogram
	retrievals prometheus.Counter
}

// NewMetrics registers the service metrics on reg. The log size gauge reads
// store stats on every scrape.
func NewMetrics(reg prometheus.Registerer, store storage.Store) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		ingested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "renderscope_ingested_records_total",
			Help: "Performance records received, by result (accepted, rejected, failed).",
		}, []string{"result"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "renderscope_ingest_duration_seconds",
			Help:    "Time to validate and append one performance record.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		retrievals: factory.NewCounter(prometheus.CounterOpts{
			Name: "renderscope_retrievals_total",
			Help: "Full log retrievals served.",
		}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "renderscope_log_records",
		Help: "Records currently held by the log store.",
	}, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), config.StatsTimeout)
		defer cancel()
		stats, err := store.Stats(ctx)
		if err != nil {
			return -1
		}
		return float64(stats.TotalRecords)
	})

	return m
}

func (m *Metrics) observeIngest(result string, start time.Time) {
	if m == nil {
		return
	}
	m.ingested.WithLabelValues(result).Inc()
	m.duration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeRetrieve() {
	if m == nil {
		return
	}
	m.retrievals.Inc()
}
