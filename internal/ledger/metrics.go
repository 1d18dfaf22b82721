package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for ledger operations. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	recorded       prometheus.Counter
	failures       *prometheus.CounterVec
	reportDuration *prometheus.HistogramVec
}

// NewMetrics registers the ledger collectors against registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	recorded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pos_bills_recorded_total",
		Help: "Bills committed to the ledger.",
	})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_bill_failures_total",
		Help: "Bills rejected or rolled back, by failure kind.",
	}, []string{"kind"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_report_duration_seconds",
		Help:    "Duration of report queries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"report"})
	registerer.MustRegister(recorded, failures, duration)
	return &Metrics{recorded: recorded, failures: failures, reportDuration: duration}
}

func (m *Metrics) billRecorded() {
	if m == nil {
		return
	}
	m.recorded.Inc()
}

func (m *Metrics) billFailed(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeReport(report string, start time.Time) {
	if m == nil {
		return
	}
	m.reportDuration.WithLabelValues(report).Observe(time.Since(start).Seconds())
}
