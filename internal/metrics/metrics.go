// Package metrics holds the storefront's Prometheus collectors on a private
// registry served at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

type Metrics struct {
	registry *prometheus.Registry

	CartRecoveries    prometheus.Counter
	WebhookRejections prometheus.Counter
	CommissionCredits prometheus.Counter
	ChatExchanges     prometheus.Counter
	ChatFailures      prometheus.Counter
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
}

// New registers all collectors, including Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		CartRecoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cart", Name: "recoveries_total",
			Help: "Carts recreated after the backend rejected the persisted id.",
		}),
		WebhookRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "webhook", Name: "rejections_total",
			Help: "Order webhooks rejected for a bad signature.",
		}),
		CommissionCredits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "commission", Name: "credits_total",
			Help: "Affiliate commissions credited.",
		}),
		ChatExchanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "chat", Name: "exchanges_total",
			Help: "Chat replies streamed to completion.",
		}),
		ChatFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "chat", Name: "failures_total",
			Help: "Chat replies interrupted by a provider error.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CartRecoveries,
		m.WebhookRejections,
		m.CommissionCredits,
		m.ChatExchanges,
		m.ChatFailures,
		m.requests,
		m.requestDuration,
	)
	return m
}

// ObserveRequest records one served request. route is the matched pattern, not the raw path.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Gatherer exposes the registry, e.g. for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry:            m.registry,
		ErrorHandling:       promhttp.ContinueOnError,
		MaxRequestsInFlight: 5,
	})
}
