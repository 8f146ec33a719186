// Package telemetry exposes Prometheus metrics for the study assistant.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "studysync"

// Metrics owns a private registry. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	generationAttempts *prometheus.CounterVec
	generationRequests *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	synthesis          *prometheus.CounterVec
	captureRestarts    *prometheus.CounterVec
}

// New creates the metric set. withRuntime adds Go and process collectors.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generationAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_attempts_total",
				Help:      "Outbound generation attempts by kind and outcome",
			},
			[]string{"kind", "outcome"}, // outcome: success, retryable, rejected
		),
		generationRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_requests_total",
				Help:      "Generation requests by kind and final result",
			},
			[]string{"kind", "result"}, // result: success, fallback, exhausted, rejected, malformed
		),
		generationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Wall time of a generation request including retries",
				Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 20, 40},
			},
			[]string{"kind"},
		),
		synthesis: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "synthesis_total",
				Help:      "Speech synthesis outcomes per tier",
			},
			[]string{"tier", "outcome"}, // tier: remote, local; outcome: success, error, cancelled
		),
		captureRestarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capture_restarts_total",
				Help:      "Automatic recognizer restarts by triggering reason",
			},
			[]string{"reason"},
		),
	}

	m.registry.MustRegister(
		m.generationAttempts,
		m.generationRequests,
		m.generationDuration,
		m.synthesis,
		m.captureRestarts,
	)
	if withRuntime {
		m.registry.MustRegister(collectors.NewGoCollector())
		m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) GenerationAttempt(kind string, outcome string) {
	if m == nil {
		return
	}
	m.generationAttempts.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) GenerationRequest(kind string, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.generationRequests.WithLabelValues(kind, result).Inc()
	m.generationDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) Synthesis(tier string, outcome string) {
	if m == nil {
		return
	}
	m.synthesis.WithLabelValues(tier, outcome).Inc()
}

func (m *Metrics) CaptureRestart(reason string) {
	if m == nil {
		return
	}
	m.captureRestarts.WithLabelValues(reason).Inc()
}
