package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveFrame(true)
	m.ObserveFrame(false)
	m.ObserveFrame(false)
	m.ObserveReport(true)
	m.ObserveStage("faces", "ok", time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Frames.WithLabelValues("true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Frames.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reports.WithLabelValues("pass")))

	n, err := testutil.GatherAndCount(reg, "sincerity_stage_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFrame(true)
		m.ObserveReport(false)
		m.ObserveStage("audio", "degraded", time.Now())
	})
}
