package zonesync

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	zones   *prometheus.CounterVec
	records *prometheus.CounterVec
	lastRun prometheus.Gauge
}

// NewMetrics registers the sync counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		zones: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zonesync_zones_total",
			Help: "The number of zones handled, by outcome",
		}, []string{"outcome"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zonesync_records_total",
			Help: "The number of records handled, by outcome",
		}, []string{"outcome"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zonesync_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
	reg.MustRegister(m.zones, m.records, m.lastRun)
	return m
}

func (m *Metrics) zone(o Outcome) {
	if m != nil {
		m.zones.WithLabelValues(string(o)).Inc()
	}
}

func (m *Metrics) record(outcome string) {
	if m != nil {
		m.records.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) finished(s *Summary) {
	if m != nil {
		m.lastRun.Set(float64(s.FinishedAt.Unix()))
	}
}
