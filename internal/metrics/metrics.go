package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/plancheck/internal/model"
)

// Metrics provides observability for drawing checks and rule generation.
// Each instance owns its registry so tests and multiple servers never collide.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ChecksTotal    *prometheus.CounterVec
	RulesEvaluated *prometheus.CounterVec
	CheckDuration  prometheus.Histogram
	RulesExtracted *prometheus.CounterVec
	LLMCompletions *prometheus.CounterVec
	LLMDuration    *prometheus.HistogramVec
}

// New creates a Metrics instance with every collector registered
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "plancheck_checks_total",
			Help: "Drawing checks by outcome (compliant, noncompliant, error)",
		}, []string{"outcome"}),
		RulesEvaluated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "plancheck_rules_evaluated_total",
			Help: "Rule evaluations by result status",
		}, []string{"status"}),
		CheckDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "plancheck_check_duration_seconds",
			Help:    "Duration of a drawing check, text extraction included",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		RulesExtracted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "plancheck_rules_extracted_total",
			Help: "Rules generated from code documents by authority",
		}, []string{"authority"}),
		LLMCompletions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "plancheck_llm_completions_total",
			Help: "LLM completions by provider and outcome (ok, error)",
		}, []string{"provider", "outcome"}),
		LLMDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "plancheck_llm_completion_duration_seconds",
			Help:    "Duration of LLM completion calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"provider"}),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveCheck records a finished drawing check.
// Call with time.Now() at the start of the check.
func (m *Metrics) ObserveCheck(start time.Time, report *model.CheckReport, err error) {
	if m == nil {
		return
	}
	m.CheckDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil || report == nil:
		m.ChecksTotal.WithLabelValues("error").Inc()
		return
	case report.Summary.Failed > 0:
		m.ChecksTotal.WithLabelValues("noncompliant").Inc()
	default:
		m.ChecksTotal.WithLabelValues("compliant").Inc()
	}

	for _, res := range report.Results {
		m.RulesEvaluated.WithLabelValues(string(res.Status)).Inc()
	}
}

// AddRulesExtracted records rules generated for an authority
func (m *Metrics) AddRulesExtracted(authority string, n int) {
	if m == nil {
		return
	}
	m.RulesExtracted.WithLabelValues(authority).Add(float64(n))
}

// ObserveCompletion records one LLM call.
// Call with time.Now() at the start of the call.
func (m *Metrics) ObserveCompletion(provider string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.LLMCompletions.WithLabelValues(provider, outcome).Inc()
	m.LLMDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}
