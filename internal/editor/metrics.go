package editor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricTransitionsTotal  = "editor_transitions_total"
	MetricRejectionsTotal   = "editor_rejections_total"
	MetricRenderSetSize     = "editor_render_set_size"
	MetricOpenSessions      = "editor_open_sessions"
	MetricContainmentChecks = "editor_containment_checks_total"
)

// Metrics contains Prometheus metrics for the editor engine.
// All operations are thread-safe.
type Metrics struct {
	transitions       *prometheus.CounterVec
	rejections        *prometheus.CounterVec
	renderSetSize     prometheus.Gauge
	openSessions      prometheus.Gauge
	containmentChecks *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to attach them to a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricTransitionsTotal,
				Help: "Total number of completed state machine transitions by operation and result",
			},
			[]string{"op", "result"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRejectionsTotal,
				Help: "Total number of rejected transitions by error kind",
			},
			[]string{"op", "kind"},
		),
		renderSetSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: MetricRenderSetSize,
				Help: "Number of drawables in the most recently built render set",
			},
		),
		openSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: MetricOpenSessions,
				Help: "Number of currently open editor sessions",
			},
		),
		containmentChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricContainmentChecks,
				Help: "Total number of boundary containment checks by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Register registers all collectors with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.transitions,
		m.rejections,
		m.renderSetSize,
		m.openSessions,
		m.containmentChecks,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// observeTransition records a completed or failed transition.
func (m *Metrics) observeTransition(op, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(op, result).Inc()
}

// observeRejection records a rejected transition by error kind.
func (m *Metrics) observeRejection(op string, kind ErrorKind) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(op, kind.String()).Inc()
}

// observeRenderSet records the current render set size.
func (m *Metrics) observeRenderSet(size int) {
	if m == nil {
		return
	}
	m.renderSetSize.Set(float64(size))
}

// sessionOpened increments the open session gauge.
func (m *Metrics) sessionOpened() {
	if m == nil {
		return
	}
	m.openSessions.Inc()
}

// sessionClosed decrements the open session gauge.
func (m *Metrics) sessionClosed() {
	if m == nil {
		return
	}
	m.openSessions.Dec()
}

// observeContainment records a containment check outcome.
func (m *Metrics) observeContainment(contained bool) {
	if m == nil {
		return
	}
	outcome := "contained"
	if !contained {
		outcome = "rejected"
	}
	m.containmentChecks.WithLabelValues(outcome).Inc()
}
