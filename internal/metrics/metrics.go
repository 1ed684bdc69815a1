// Package metrics holds the Prometheus collectors for conversions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a set of collectors registered on their own registry.
type Metrics struct {
	registry *prometheus.Registry

	DocumentsParsed *prometheus.CounterVec
	RubricsEmitted  prometheus.Counter
	RemediesEmitted prometheus.Counter
	FetchErrors     *prometheus.CounterVec
	ParseDuration   prometheus.Histogram
	JobsFinished    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		DocumentsParsed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kentetl_documents_parsed_total",
				Help: "Total number of documents parsed",
			},
			[]string{"section"},
		),
		RubricsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kentetl_rubrics_emitted_total",
			Help: "Total number of rubrics emitted at all depths",
		}),
		RemediesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kentetl_remedies_emitted_total",
			Help: "Total number of graded remedies emitted",
		}),
		FetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kentetl_fetch_errors_total",
				Help: "Total number of failed fetches",
			},
			[]string{"kind"},
		),
		ParseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kentetl_parse_duration_seconds",
			Help:    "Time spent parsing one document",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		}),
		JobsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kentetl_jobs_finished_total",
				Help: "Total number of batch jobs by final status",
			},
			[]string{"status"},
		),
	}
	m.registry.MustRegister(
		m.DocumentsParsed,
		m.RubricsEmitted,
		m.RemediesEmitted,
		m.FetchErrors,
		m.ParseDuration,
		m.JobsFinished,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveParse records one parsed document.
func (m *Metrics) ObserveParse(section string, rubrics, remedies int, d time.Duration) {
	if m == nil {
		return
	}
	m.DocumentsParsed.WithLabelValues(section).Inc()
	m.RubricsEmitted.Add(float64(rubrics))
	m.RemediesEmitted.Add(float64(remedies))
	m.ParseDuration.Observe(d.Seconds())
}

// FetchFailed counts a fetch error by kind ("not_found", "status", "transport").
func (m *Metrics) FetchFailed(kind string) {
	if m == nil {
		return
	}
	m.FetchErrors.WithLabelValues(kind).Inc()
}

// JobFinished counts a job reaching a final status.
func (m *Metrics) JobFinished(status string) {
	if m == nil {
		return
	}
	m.JobsFinished.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
