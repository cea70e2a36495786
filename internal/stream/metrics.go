package stream

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricFramesDelivered = "stream_frames_delivered_total"
	MetricFramesDropped   = "stream_frames_dropped_total"
	MetricSubscribers     = "stream_subscribers"
)

// Metrics contains Prometheus metrics for the realtime fan-out.
// All operations are thread-safe.
type Metrics struct {
	framesDelivered *prometheus.CounterVec
	framesDropped   *prometheus.CounterVec
	subscribers     prometheus.Gauge
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register them
// with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		framesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricFramesDelivered,
			Help: "Total number of event frames written to subscribers",
		}, []string{"codec"}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricFramesDropped,
			Help: "Total number of event frames that failed to encode or write",
		}, []string{"codec"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricSubscribers,
			Help: "Current number of websocket subscribers across all map areas",
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.framesDelivered,
		m.framesDropped,
		m.subscribers,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) frameDelivered(codec string) {
	if m == nil {
		return
	}
	m.framesDelivered.WithLabelValues(codec).Inc()
}

func (m *Metrics) frameDropped(codec string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(codec).Inc()
}

func (m *Metrics) subscriberAdded() {
	if m == nil {
		return
	}
	m.subscribers.Inc()
}

func (m *Metrics) subscriberRemoved() {
	if m == nil {
		return
	}
	m.subscribers.Dec()
}
