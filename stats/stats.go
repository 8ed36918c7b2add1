// Package stats exposes the relay's Prometheus metrics (SPEC_FULL.md Domain
// Stack), mirroring the shape of the teacher's own stats package
// (stats/target_stats.go: per-target counters registered once at startup).
package stats

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the relay's metric set. Zero value is unusable; build one with
// New and register it with a prometheus.Registerer (cmd/relay does this
// against prometheus.DefaultRegisterer, exposed at /metrics).
type Metrics struct {
	ShardsPolled      *prometheus.CounterVec
	RecordsForwarded  *prometheus.CounterVec
	ListenerFailures  *prometheus.CounterVec
	CycleDuration     *prometheus.HistogramVec
	ActiveListeners   *prometheus.GaugeVec
}

// New builds an unregistered Metrics set.
func New() *Metrics {
	return &Metrics{
		ShardsPolled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streamrelay",
			Name:      "shards_polled_total",
			Help:      "Number of shards successfully polled for records, by table.",
		}, []string{"table"}),
		RecordsForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streamrelay",
			Name:      "records_forwarded_total",
			Help:      "Number of change records successfully delivered to a destination, by table.",
		}, []string{"table"}),
		ListenerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streamrelay",
			Name:      "listener_delivery_failures_total",
			Help:      "Number of failed webhook deliveries, by table.",
		}, []string{"table"}),
		CycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "streamrelay",
			Name:      "poller_cycle_duration_seconds",
			Help:      "Wall-clock duration of one StreamPoller cycle, by table.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table"}),
		ActiveListeners: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "streamrelay",
			Name:      "active_listeners",
			Help:      "Number of currently registered listeners, by table.",
		}, []string{"table"}),
	}
}

// MustRegister registers every collector in m against reg, panicking on a
// registration conflict (only ever called once, at startup, from
// cmd/relay - matching the teacher's own MustRegister-at-init pattern).
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.ShardsPolled, m.RecordsForwarded, m.ListenerFailures, m.CycleDuration, m.ActiveListeners)
}
