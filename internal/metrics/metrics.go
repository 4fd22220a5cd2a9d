package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests and multiple servers in one
// process never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec   // http_requests_total{method,route,status}
	HTTPDuration    *prometheus.HistogramVec // http_request_duration_seconds{method,route}
	Transitions     *prometheus.CounterVec   // order_transitions_total{operation,outcome}
	PaymentRequests *prometheus.CounterVec   // payment_gateway_requests_total{endpoint,outcome}
}

func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Order state machine operations by outcome.",
		}, []string{"operation", "outcome"}),
		PaymentRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_gateway_requests_total",
			Help:      "Calls to the external payment processor by outcome.",
		}, []string{"endpoint", "outcome"}),
	}
	reg.MustRegister(
		m.HTTPRequests, m.HTTPDuration, m.Transitions, m.PaymentRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveTransition is nil-safe so services can run without metrics in tests.
func (m *Metrics) ObserveTransition(operation, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObservePayment(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.PaymentRequests.WithLabelValues(endpoint, outcome).Inc()
}
