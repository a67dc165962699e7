// Package metrics exposes Prometheus counters for the checkout, webhook and
// entitlement paths.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector is what the services record against.
type MetricsCollector interface {
	RecordCheckout(outcome string)
	RecordWebhookEvent(eventType, outcome string)
	RecordResolve(source string, entitled bool)
	RecordProviderLatency(op string, duration time.Duration)
}

type Collector struct {
	checkouts       *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	resolves        *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paywall",
			Name:      "checkout_sessions_total",
			Help:      "Checkout session creation attempts by outcome.",
		}, []string{"outcome"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paywall",
			Name:      "webhook_events_total",
			Help:      "Provider webhook deliveries by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		resolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paywall",
			Name:      "entitlement_resolves_total",
			Help:      "Entitlement status checks by answering source and result.",
		}, []string{"source", "entitled"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "paywall",
			Name:      "provider_request_duration_seconds",
			Help:      "Payment provider API latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}

	reg.MustRegister(c.checkouts, c.webhookEvents, c.resolves, c.providerLatency)
	return c
}

func (c *Collector) RecordCheckout(outcome string) {
	c.checkouts.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordWebhookEvent(eventType, outcome string) {
	c.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (c *Collector) RecordResolve(source string, entitled bool) {
	c.resolves.WithLabelValues(source, strconv.FormatBool(entitled)).Inc()
}

func (c *Collector) RecordProviderLatency(op string, duration time.Duration) {
	c.providerLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
