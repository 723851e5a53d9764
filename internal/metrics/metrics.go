// Package metrics exposes session and transaction counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tixly/tixly/pkg/types"
)

const namespace = "tixly"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	sessionState    *prometheus.GaugeVec
	connectAttempts *prometheus.CounterVec
	handshakePolls  prometheus.Counter
	balanceRefresh  *prometheus.CounterVec
	transactions    *prometheus.CounterVec
}

// New registers the collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "1 for the current session state, 0 otherwise.",
		}, []string{"state"}),
		connectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Connect and restore attempts by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		handshakePolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshake_polls_total",
			Help:      "Account polls made during external wallet handshakes.",
		}),
		balanceRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_refresh_total",
			Help:      "Balance refreshes by outcome.",
		}, []string{"outcome"}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Contract write submissions and confirmations by method and outcome.",
		}, []string{"method", "outcome"}),
	}

	m.registry.MustRegister(
		m.sessionState,
		m.connectAttempts,
		m.handshakePolls,
		m.balanceRefresh,
		m.transactions,
	)

	for _, s := range types.AllSessionStatuses() {
		m.sessionState.WithLabelValues(string(s)).Set(0)
	}

	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetSessionState marks state as current
func (m *Metrics) SetSessionState(state types.SessionStatus) {
	if m == nil {
		return
	}
	for _, s := range types.AllSessionStatuses() {
		v := 0.0
		if s == state {
			v = 1
		}
		m.sessionState.WithLabelValues(string(s)).Set(v)
	}
}

// ConnectAttempt records a finished connect or restore
func (m *Metrics) ConnectAttempt(strategy types.StrategyKind, outcome string) {
	if m == nil {
		return
	}
	m.connectAttempts.WithLabelValues(string(strategy), outcome).Inc()
}

// HandshakePolls adds n account polls
func (m *Metrics) HandshakePolls(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.handshakePolls.Add(float64(n))
}

// BalanceRefresh records a balance refresh outcome
func (m *Metrics) BalanceRefresh(outcome string) {
	if m == nil {
		return
	}
	m.balanceRefresh.WithLabelValues(outcome).Inc()
}

// Transaction records a contract write event
func (m *Metrics) Transaction(method, outcome string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(method, outcome).Inc()
}
