package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "console"

// ConsoleMetrics exposes counters/histograms for the console's remote calls
// and the operator actions that trigger them.
type ConsoleMetrics struct {
	platformCalls   *prometheus.CounterVec
	platformLatency *prometheus.HistogramVec
	settingsSaves   *prometheus.CounterVec
	toggles         *prometheus.CounterVec
	selections      *prometheus.CounterVec
}

// NewConsoleMetrics registers the console collectors on reg (the default
// registerer when nil).
func NewConsoleMetrics(reg prometheus.Registerer) *ConsoleMetrics {
	m := &ConsoleMetrics{
		platformCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "platform",
			Name:      "requests_total",
			Help:      "Total requests sent to the chatbot platform API",
		}, []string{"operation", "status"}),
		platformLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "platform",
			Name:      "request_latency_seconds",
			Help:      "Latency of chatbot platform API requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		settingsSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settings",
			Name:      "saves_total",
			Help:      "Settings saves by outcome (success, failure, stale)",
		}, []string{"outcome"}),
		toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "integrations",
			Name:      "toggles_total",
			Help:      "Integration connect/disconnect attempts",
		}, []string{"provider", "action", "status"}),
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "selections_total",
			Help:      "Tenant selections by source (user, fallback, create)",
		}, []string{"source"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.platformCalls, m.platformLatency, m.settingsSaves, m.toggles, m.selections)
	return m
}

// ObservePlatformCall records one platform request.
func (m *ConsoleMetrics) ObservePlatformCall(operation, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.platformCalls.WithLabelValues(operation, status).Inc()
	m.platformLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveSave records how a settings save ended.
func (m *ConsoleMetrics) ObserveSave(outcome string) {
	if m == nil {
		return
	}
	m.settingsSaves.WithLabelValues(outcome).Inc()
}

// ObserveToggle records an integration toggle.
func (m *ConsoleMetrics) ObserveToggle(provider string, connect bool, status string) {
	if m == nil {
		return
	}
	action := "disconnect"
	if connect {
		action = "connect"
	}
	m.toggles.WithLabelValues(provider, action, status).Inc()
}

// ObserveSelection records a tenant selection change.
func (m *ConsoleMetrics) ObserveSelection(source string) {
	if m == nil {
		return
	}
	m.selections.WithLabelValues(source).Inc()
}
