// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/holomush/syncgate/internal/gate"
)

// Metrics contains the syncgate Prometheus collectors. It satisfies
// relay.Metrics and gate.Metrics.
type Metrics struct {
	ConnectionsTotal  *prometheus.CounterVec
	SessionsActive    prometheus.Gauge
	MessagesTotal     *prometheus.CounterVec
	AuthAttemptsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the syncgate metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncgate_connections_total",
				Help: "Total number of connection attempts by result",
			},
			[]string{"result"},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "syncgate_sessions_active",
				Help: "Number of open gated sessions",
			},
		),
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncgate_messages_total",
				Help: "Total number of inbound frames by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncgate_auth_attempts_total",
				Help: "Total number of credential checks by source and result",
			},
			[]string{"source", "result"},
		),
	}

	reg.MustRegister(m.ConnectionsTotal, m.SessionsActive, m.MessagesTotal, m.AuthAttemptsTotal)
	return m
}

// ConnectionHandled counts a connection attempt.
func (m *Metrics) ConnectionHandled(result string) {
	m.ConnectionsTotal.WithLabelValues(result).Inc()
}

// MessageHandled counts one inbound frame.
func (m *Metrics) MessageHandled(kind string, outcome gate.Outcome) {
	m.MessagesTotal.WithLabelValues(kind, string(outcome)).Inc()
}

// AuthAttempt counts one credential check.
func (m *Metrics) AuthAttempt(source, result string) {
	m.AuthAttemptsTotal.WithLabelValues(source, result).Inc()
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() { m.SessionsActive.Inc() }

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() { m.SessionsActive.Dec() }
