package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts scoring requests and their latency per strategy and
// status. Each instance owns its registry so servers can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	factors  prometheus.Histogram
}

// NewMetrics registers the scoring metrics and the Go runtime collector.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "featurescore_requests_total",
			Help: "Scoring requests by strategy and status",
		}, []string{"strategy", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "featurescore_request_duration_seconds",
			Help:    "Scoring request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"strategy"}),
		factors: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "featurescore_factors_scored",
			Help:    "Number of factors ranked per successful request",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(strategy, status string, elapsed time.Duration) {
	m.requests.WithLabelValues(strategy, status).Inc()
	m.duration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}
