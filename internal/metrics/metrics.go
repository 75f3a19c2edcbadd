// Package metrics defines the Prometheus instruments for import, export,
// fetch and backup.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "contentcal"

// Metrics holds all service metrics. A nil *Metrics is valid and records
// nothing, so callers never need to guard.
type Metrics struct {
	ImportBatches  *prometheus.CounterVec
	ImportItems    *prometheus.CounterVec
	ImportDuration *prometheus.HistogramVec

	Exports     *prometheus.CounterVec
	ExportBytes *prometheus.HistogramVec

	FetchRequests *prometheus.CounterVec

	BackupRuns    *prometheus.CounterVec
	BackupLastRun prometheus.Gauge
}

// New creates and registers all metrics on reg (the default registerer when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{}
	m.initImport(factory)
	m.initExport(factory)
	m.initFetch(factory)
	m.initBackup(factory)
	return m
}

func (m *Metrics) initImport(factory promauto.Factory) {
	m.ImportBatches = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "import",
		Name:      "batches_total",
		Help:      "Import batches by format and outcome (completed, rejected, cancelled)",
	}, []string{"format", "outcome"})

	m.ImportItems = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "import",
		Name:      "items_total",
		Help:      "Imported candidate items by format and result (created, failed)",
	}, []string{"format", "result"})

	m.ImportDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "import",
		Name:      "duration_seconds",
		Help:      "Wall time of one import batch",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"format"})
}

func (m *Metrics) initExport(factory promauto.Factory) {
	m.Exports = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "export",
		Name:      "total",
		Help:      "Export requests by format and outcome (ok, empty, failed)",
	}, []string{"format", "outcome"})

	m.ExportBytes = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "export",
		Name:      "bytes",
		Help:      "Size of produced export artifacts",
		Buckets:   prometheus.ExponentialBuckets(512, 4, 8),
	}, []string{"format"})
}

func (m *Metrics) initFetch(factory promauto.Factory) {
	m.FetchRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fetch",
		Name:      "requests_total",
		Help:      "Remote calendar fetches by result (fresh, not_modified, cached, error)",
	}, []string{"result"})
}

func (m *Metrics) initBackup(factory promauto.Factory) {
	m.BackupRuns = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "backup",
		Name:      "runs_total",
		Help:      "Scheduled backup runs by outcome (written, skipped, failed)",
	}, []string{"outcome"})

	m.BackupLastRun = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "backup",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last written backup",
	})
}

// ImportBatch records the outcome of one batch.
func (m *Metrics) ImportBatch(format, outcome string, created, failed int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ImportBatches.WithLabelValues(format, outcome).Inc()
	if created > 0 {
		m.ImportItems.WithLabelValues(format, "created").Add(float64(created))
	}
	if failed > 0 {
		m.ImportItems.WithLabelValues(format, "failed").Add(float64(failed))
	}
	if outcome != "rejected" {
		m.ImportDuration.WithLabelValues(format).Observe(elapsed.Seconds())
	}
}

// Export records one export attempt; size is ignored unless outcome is "ok".
func (m *Metrics) Export(format, outcome string, size int) {
	if m == nil {
		return
	}
	m.Exports.WithLabelValues(format, outcome).Inc()
	if outcome == "ok" {
		m.ExportBytes.WithLabelValues(format).Observe(float64(size))
	}
}

func (m *Metrics) Fetch(result string) {
	if m == nil {
		return
	}
	m.FetchRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) Backup(outcome string, at time.Time) {
	if m == nil {
		return
	}
	m.BackupRuns.WithLabelValues(outcome).Inc()
	if outcome == "written" {
		m.BackupLastRun.Set(float64(at.Unix()))
	}
}
