// Package metrics provides Prometheus collectors for a single client.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hippie"

// Metrics holds the collectors of one client. Collectors are registered on
// the Registerer passed to New, never on the global default registry.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ErrorsTotal     *prometheus.CounterVec
	RedirectsTotal  prometheus.Counter
	RetriesTotal    *prometheus.CounterVec
	Connections     prometheus.Gauge
	RateLimitWait   prometheus.Histogram

	registry prometheus.Gatherer
}

// New creates and registers the collectors on reg. A nil reg gets a private
// registry, reachable through Gatherer.
func New(reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Completed HTTP exchanges by method and status code",
			},
			[]string{"method", "code"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of single HTTP exchanges",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
			},
			[]string{"method"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Failed HTTP exchanges by error kind",
			},
			[]string{"kind"},
		),
		RedirectsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "redirects_followed_total",
				Help:      "Redirect hops followed automatically",
			},
		),
		RetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Retries scheduled after transient failures, by error kind",
			},
			[]string{"kind"},
		),
		Connections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pooled_connections",
				Help:      "Connections currently held in the pool",
			},
		),
		RateLimitWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rate_limit_wait_seconds",
				Help:      "Time spent waiting for the outbound rate limiter",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
		),
		registry: gatherer,
	}
}

// Gatherer returns the registry the collectors live in, or nil if the
// Registerer given to New cannot gather.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// RecordRequest records a completed exchange.
func (m *Metrics) RecordRequest(method string, statusCode int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// RecordError records a failed exchange.
func (m *Metrics) RecordError(method, kind string, elapsed time.Duration) {
	m.ErrorsTotal.WithLabelValues(kind).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// RecordRedirect counts one followed hop.
func (m *Metrics) RecordRedirect() {
	m.RedirectsTotal.Inc()
}

// RecordRetry counts one scheduled retry.
func (m *Metrics) RecordRetry(kind string) {
	m.RetriesTotal.WithLabelValues(kind).Inc()
}

// SetConnections updates the pool size gauge.
func (m *Metrics) SetConnections(n int) {
	m.Connections.Set(float64(n))
}

// ObserveRateLimitWait records time blocked on the limiter.
func (m *Metrics) ObserveRateLimitWait(d time.Duration) {
	m.RateLimitWait.Observe(d.Seconds())
}
