// Package metrics provides Prometheus metrics for compiler invocations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for InvocationsTotal.
const (
	OutcomeOK         = "ok"
	OutcomeDiagnostic = "diagnostic"
	OutcomeNotFound   = "not_found"
	OutcomeTimeout    = "timeout"
	OutcomeSpawn      = "spawn"
)

// Metrics records invocation counts, durations and section hits on its
// own registry.
type Metrics struct {
	registry    *prometheus.Registry
	invocations *prometheus.CounterVec
	duration    prometheus.Histogram
	sections    *prometheus.CounterVec
}

// New creates a Metrics with a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ccinspect",
			Name:      "invocations_total",
			Help:      "Compiler invocations by outcome",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ccinspect",
			Name:      "invocation_duration_seconds",
			Help:      "Wall time of completed compiler invocations",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		sections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ccinspect",
			Name:      "sections_total",
			Help:      "Sections found in compiler output",
		}, []string{"section"}),
	}
	reg.MustRegister(m.invocations, m.duration, m.sections)
	return m
}

// ObserveInvocation counts one invocation. d is only recorded for
// invocations that ran to completion.
func (m *Metrics) ObserveInvocation(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.duration.Observe(d.Seconds())
	}
}

// ObserveSection counts one section seen in compiler output.
func (m *Metrics) ObserveSection(section string) {
	if m == nil {
		return
	}
	m.sections.WithLabelValues(section).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
