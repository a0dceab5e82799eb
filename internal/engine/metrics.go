package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "tba"

// Metrics are the Prometheus instruments of a Tour. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	InternalEvents  *prometheus.CounterVec
	NarrativeEvents *prometheus.CounterVec
	RemoteFailures  *prometheus.CounterVec
	ActiveFeeds     prometheus.Gauge
	QueueDepth      prometheus.Gauge
	MonitorSwitches prometheus.Counter
	RecordFailures  prometheus.Counter
}

// NewMetrics creates and registers the instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		InternalEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "internal_events_total",
			Help:      "Internal events processed by the control loop, by kind",
		}, []string{"kind"}),
		NarrativeEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "narrative_events_total",
			Help:      "Narrative events announced, by kind",
		}, []string{"kind"}),
		RemoteFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "remote_failures_total",
			Help:      "Failed platform calls, by operation",
		}, []string{"op"}),
		ActiveFeeds: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_feeds",
			Help:      "Game streams currently open",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "queue_depth",
			Help:      "Internal events waiting for the control loop",
		}),
		MonitorSwitches: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "monitor_switches_total",
			Help:      "Switches from a single stream to polled batches",
		}),
		RecordFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "record_failures_total",
			Help:      "Narrative events that could not be recorded",
		}),
	}
}

func (m *Metrics) internal(kind string) {
	if m == nil {
		return
	}
	m.InternalEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) narrative(kind string) {
	if m == nil {
		return
	}
	m.NarrativeEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) remoteFailure(op RemoteOp) {
	if m == nil {
		return
	}
	m.RemoteFailures.WithLabelValues(string(op)).Inc()
}

func (m *Metrics) feedOpened() {
	if m == nil {
		return
	}
	m.ActiveFeeds.Inc()
}

func (m *Metrics) feedClosed() {
	if m == nil {
		return
	}
	m.ActiveFeeds.Dec()
}

func (m *Metrics) queueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) switched() {
	if m == nil {
		return
	}
	m.MonitorSwitches.Inc()
}

func (m *Metrics) recordFailed() {
	if m == nil {
		return
	}
	m.RecordFailures.Inc()
}
