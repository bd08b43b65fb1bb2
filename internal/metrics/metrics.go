// Package metrics exposes Prometheus instrumentation for the HTTP and
// engine layers, scoped to a private registry rather than the global
// default so this service's metrics never collide with a library's.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters and histograms this service records.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	AppendsTotal    *prometheus.CounterVec
	EventsAppended  prometheus.Counter
	AppendDuration  prometheus.Histogram
}

// New constructs a Metrics instance registered on a fresh, private
// registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hematite_requests_total",
			Help: "HTTP requests served, by route, method, and status.",
		}, []string{"route", "method", "status"}),
		AppendsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hematite_appends_total",
			Help: "Append operations, by result.",
		}, []string{"result"}),
		EventsAppended: factory.NewCounter(prometheus.CounterOpts{
			Name: "hematite_events_appended_total",
			Help: "Total individual events appended across all streams.",
		}),
		AppendDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hematite_append_duration_seconds",
			Help:    "Latency of append operations.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Handler returns the /metrics exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
