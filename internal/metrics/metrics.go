// Package metrics exposes pipeline instrumentation in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "irtune"

// Metrics holds the collectors for one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration   *prometheus.HistogramVec
	compileDuration *prometheus.HistogramVec
	failures        *prometheus.CounterVec
	cycles          *prometheus.CounterVec
	benchmark       *prometheus.GaugeVec
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent generating each optimization stage.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stage", "status"}),
		compileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_duration_seconds",
			Help:      "Time spent compiling IR to a shared object.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Pipeline failures by error kind.",
		}, []string{"kind"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_cycles_total",
			Help:      "Verification cycles by outcome.",
		}, []string{"problem", "outcome"}),
		benchmark: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "benchmark_milliseconds",
			Help:      "Most recent benchmark total per problem and variant.",
		}, []string{"problem", "variant"}),
	}
	m.registry.MustRegister(
		m.stageDuration,
		m.compileDuration,
		m.failures,
		m.cycles,
		m.benchmark,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveStage records one stage's latency.
func (m *Metrics) ObserveStage(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, status(err)).Observe(d.Seconds())
}

// ObserveCompile records one compilation's latency.
func (m *Metrics) ObserveCompile(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.compileDuration.WithLabelValues(status(err)).Observe(d.Seconds())
}

// Failure counts a failure of the given kind.
func (m *Metrics) Failure(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.failures.WithLabelValues(kind).Inc()
}

// Cycle counts a verification cycle outcome.
func (m *Metrics) Cycle(problem, outcome string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(problem, outcome).Inc()
}

// Benchmark sets the latest measurement for a variant.
func (m *Metrics) Benchmark(problem, variant string, ms float64) {
	if m == nil {
		return
	}
	m.benchmark.WithLabelValues(problem, variant).Set(ms)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
