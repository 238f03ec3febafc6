package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_RecordCycle(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())
	finished := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	m.RecordCycle(StatusSuccess, 2*time.Second, finished)
	m.RecordCycle(StatusFailed, time.Second, finished.Add(time.Hour))
	m.RecordCycle(StatusSkipped, 0, finished.Add(2*time.Hour))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues(StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues(StatusFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues(StatusSkipped)))
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(m.LastSuccessfulCycle))
}

func TestMetrics_RecordSnapshotsAndDerived(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordSnapshots(3, 2)
	m.RecordDerived(3, nil, nil)
	m.RecordDerived(0, errors.New("boom"), nil)
	m.RecordDerived(2, nil, errors.New("mirror down"))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.SnapshotsInserted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SnapshotsIgnored))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.DerivedRowsWritten))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CalculationFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MirrorFailures))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCycle(StatusSuccess, time.Second, time.Now())
		m.RecordSnapshots(1, 1)
		m.RecordDerived(1, nil, nil)
		m.RecordFetch("earnings", time.Second)
	})
}
