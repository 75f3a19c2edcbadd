package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"contentcal/internal/metrics"
)

func TestImportBatch(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ImportBatch("csv", "completed", 4, 1, 2*time.Second)
	m.ImportBatch("csv", "rejected", 0, 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImportBatches.WithLabelValues("csv", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImportBatches.WithLabelValues("csv", "rejected")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ImportItems.WithLabelValues("csv", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImportItems.WithLabelValues("csv", "failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ImportDuration))
}

func TestExportAndBackup(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.Export("ics", "ok", 2048)
	m.Export("ics", "empty", 0)
	m.Backup("written", time.Unix(1700000000, 0))
	m.Backup("skipped", time.Now())
	m.Fetch("not_modified")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Exports.WithLabelValues("ics", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Exports.WithLabelValues("ics", "empty")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.BackupLastRun))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackupRuns.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchRequests.WithLabelValues("not_modified")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ImportBatch("json", "completed", 1, 0, time.Second)
		m.Export("json", "ok", 10)
		m.Fetch("fresh")
		m.Backup("failed", time.Now())
	})
}
