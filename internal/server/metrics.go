package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type relayMetrics struct {
	activeConns     prometheus.Gauge
	connTotal       prometheus.Counter
	framesDelivered *prometheus.CounterVec
	framesDropped   *prometheus.CounterVec
	presenceEvents  *prometheus.CounterVec
	routerErrors    *prometheus.CounterVec
	frameLatency    *prometheus.HistogramVec
}

func newRelayMetrics(reg prometheus.Registerer) *relayMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &relayMetrics{
		activeConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "iris_connections_active",
			Help: "Current number of bound websocket connections.",
		}),
		connTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iris_connections_total",
			Help: "Total number of connections bound since start.",
		}),
		framesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iris_frames_delivered_total",
			Help: "Frames pushed to a recipient's outbound queue, by type.",
		}, []string{"type"}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iris_frames_dropped_total",
			Help: "Frames dropped without delivery, by reason.",
		}, []string{"reason"}),
		presenceEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iris_presence_events_total",
			Help: "Presence notifications fanned out, by status.",
		}, []string{"status"}),
		routerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iris_router_errors_total",
			Help: "Frame validation or routing errors, by code.",
		}, []string{"code"}),
		frameLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "iris_router_latency_seconds",
			Help:    "Latency for handling inbound frames.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),
	}

	reg.MustRegister(
		m.activeConns,
		m.connTotal,
		m.framesDelivered,
		m.framesDropped,
		m.presenceEvents,
		m.routerErrors,
		m.frameLatency,
	)
	return m
}

func (m *relayMetrics) incConn() {
	if m == nil {
		return
	}
	m.activeConns.Inc()
	m.connTotal.Inc()
}

func (m *relayMetrics) decConn() {
	if m == nil {
		return
	}
	m.activeConns.Dec()
}

func (m *relayMetrics) recordDelivery(frameType string) {
	if m == nil {
		return
	}
	m.framesDelivered.WithLabelValues(frameType).Inc()
}

func (m *relayMetrics) recordDrop(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

func (m *relayMetrics) recordPresence(status string) {
	if m == nil {
		return
	}
	m.presenceEvents.WithLabelValues(status).Inc()
}

func (m *relayMetrics) recordError(code string) {
	if m == nil {
		return
	}
	m.routerErrors.WithLabelValues(code).Inc()
}

func (m *relayMetrics) observeLatency(op string, dur time.Duration) {
	if m == nil || op == "" {
		return
	}
	m.frameLatency.WithLabelValues(op).Observe(dur.Seconds())
}
