package rest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records per-request counters and latencies for one client.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates collectors registered on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "arrayops",
				Name:      "requests_total",
				Help:      "Array management requests by method, resource type and outcome.",
			},
			[]string{"method", "resource", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "arrayops",
				Name:      "request_duration_seconds",
				Help:      "Array management request latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "resource"},
		),
	}
	m.registry.MustRegister(m.requests, m.duration)
	return m
}

// Registry exposes the collectors, e.g. for promhttp.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current values in the Prometheus text format,
// e.g. for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) observe(method, resource, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, resource, outcome).Inc()
	m.duration.WithLabelValues(method, resource).Observe(elapsed.Seconds())
}

func outcomeOf(resp *Response, err error) string {
	switch {
	case err != nil:
		return "transport_error"
	case resp.IsOK():
		return "ok"
	default:
		return "array_error"
	}
}
