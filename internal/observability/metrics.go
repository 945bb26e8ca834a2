package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	entryAppendGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "deeds_service",
		Subsystem: "ledger",
		Name:      "last_entry_appended_timestamp_seconds",
		Help:      "Unix timestamp of the most recent entry appended to the ledger.",
	})
	entriesAppendedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "deeds_service",
		Subsystem: "ledger",
		Name:      "entries_appended_total",
		Help:      "Number of entries appended to the ledger.",
	})
	insightReportedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deeds_service",
		Subsystem: "insights",
		Name:      "correlation_reported_total",
		Help:      "Number of correlation insights strong enough to surface, per deed.",
	}, []string{"deed"})
	insightCoefficientGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "deeds_service",
		Subsystem: "insights",
		Name:      "correlation_coefficient",
		Help:      "Coefficient of the most recently surfaced correlation insight, per deed.",
	}, []string{"deed"})
	insightSampleGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "deeds_service",
		Subsystem: "insights",
		Name:      "correlation_sample_days",
		Help:      "Overlapping app-day count behind the most recent insight, per deed.",
	}, []string{"deed"})
)

func init() {
	prometheus.MustRegister(
		entryAppendGauge,
		entriesAppendedCounter,
		insightReportedCounter,
		insightCoefficientGauge,
		insightSampleGauge,
	)
}

// RecordEntryAppended updates the ledger watermark metrics.
func RecordEntryAppended(ts time.Time) {
	entriesAppendedCounter.Inc()
	if ts.IsZero() {
		return
	}
	entryAppendGauge.Set(float64(ts.Unix()))
}

// InsightSink publishes surfaced correlation insights as Prometheus metrics.
// The correlation analyzer calls it exactly once per reported insight and
// never for rejected computations.
type InsightSink struct{}

// RecordCorrelation implements domain.InsightSink.
func (InsightSink) RecordCorrelation(deedName string, coefficient float64, sampleCount int) {
	insightReportedCounter.WithLabelValues(deedName).Inc()
	insightCoefficientGauge.WithLabelValues(deedName).Set(coefficient)
	insightSampleGauge.WithLabelValues(deedName).Set(float64(sampleCount))
}
