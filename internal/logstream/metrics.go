package logstream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the consumer's prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	events      *prometheus.CounterVec
	connections *prometheus.CounterVec
	reconnects  prometheus.Counter
	visible     prometheus.Gauge
	pending     prometheus.Gauge
}

// NewMetrics registers the consumer collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logtail",
			Subsystem: "stream",
			Name:      "events_total",
			Help:      "Stream events received, by outcome (record, heartbeat, malformed).",
		}, []string{"outcome"}),
		connections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logtail",
			Subsystem: "stream",
			Name:      "connections_total",
			Help:      "Stream connection attempts, by result (open, error).",
		}, []string{"result"}),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: "logtail",
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Reconnects issued after a stream error.",
		}),
		visible: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "logtail",
			Subsystem: "stream",
			Name:      "visible_records",
			Help:      "Records in the visible history.",
		}),
		pending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "logtail",
			Subsystem: "stream",
			Name:      "pending_records",
			Help:      "Records buffered while paused.",
		}),
	}
}

func (m *Metrics) event(outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(outcome).Inc()
}

func (m *Metrics) connection(result string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(result).Inc()
}

func (m *Metrics) reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) sizes(visible, pending int) {
	if m == nil {
		return
	}
	m.visible.Set(float64(visible))
	m.pending.Set(float64(pending))
}
