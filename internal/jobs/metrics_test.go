package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("daily_close").End(nil))
	boom := errors.New("boom")
	assert.Equal(t, boom, m.Track("daily_close").End(boom))
	m.SetClosedBills("daily_close", 12)

	families, err := reg.Gather()
	require.NoError(t, err)
	got := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "status" {
					key += ":" + lp.GetValue()
				}
			}
			switch {
			case metric.GetCounter() != nil:
				got[key] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				got[key] = metric.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, got["pos_jobs_total:success"])
	assert.Equal(t, 1.0, got["pos_jobs_total:failure"])
	assert.Equal(t, 1.0, got["pos_jobs_failures_total"])
	assert.Equal(t, 12.0, got["pos_closed_day_bills"])
}

func TestNilMetricsTrackerPassesErrorThrough(t *testing.T) {
	var m *Metrics
	boom := errors.New("boom")
	assert.Equal(t, boom, m.Track("daily_close").End(boom))
	m.SetClosedBills("daily_close", 1)
}
