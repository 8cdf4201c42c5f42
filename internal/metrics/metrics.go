// Package metrics exposes gatekeeper counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gatekeeper's collectors on a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	decisions   *prometheus.CounterVec
	sideEffects *prometheus.CounterVec
	resolutions *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_decisions_total",
			Help: "Approve and reject attempts by result.",
		}, []string{"action", "result"}),
		sideEffects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_side_effects_total",
			Help: "Subscriber side effects by event and result.",
		}, []string{"subscriber", "event", "result"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_resolutions_total",
			Help: "Project resolutions by strategy.",
		}, []string{"strategy"}),
	}

	m.registry.MustRegister(
		m.decisions,
		m.sideEffects,
		m.resolutions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveDecision counts a decision attempt. result is "ok" or an error class.
func (m *Metrics) ObserveDecision(action, result string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(action, result).Inc()
}

func (m *Metrics) ObserveSideEffect(subscriber, event string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.sideEffects.WithLabelValues(subscriber, event, result).Inc()
}

func (m *Metrics) ObserveResolution(strategy string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(strategy).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
