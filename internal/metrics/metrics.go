// Package metrics collects and exposes Prometheus metrics for the relay.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the relay's Prometheus metrics. The webhook pipeline and
// the dispatcher record into it; /metrics exposes it.
type Collector struct {
	registry *prometheus.Registry

	webhooksReceived prometheus.Counter
	webhooksAccepted prometheus.Counter
	webhooksRejected *prometheus.CounterVec
	dispatchSuccess  prometheus.Counter
	dispatchFailure  prometheus.Counter
	dispatchLatency  prometheus.Histogram
}

// NewCollector creates a Collector with its own registry. A dedicated
// registry (rather than the global default) keeps tests isolated — each
// test gets fresh counters.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		webhooksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_webhooks_received_total",
			Help: "Total inbound checkin webhooks, valid or not.",
		}),
		webhooksAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_webhooks_accepted_total",
			Help: "Webhooks that authenticated and scheduled a notification.",
		}),
		webhooksRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_webhooks_rejected_total",
			Help: "Webhooks rejected, by internal reason.",
		}, []string{"reason"}),
		dispatchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_dispatch_success_total",
			Help: "Notifications delivered to the Discord webhook.",
		}),
		dispatchFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_dispatch_failure_total",
			Help: "Notification deliveries that failed.",
		}),
		dispatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_dispatch_latency_seconds",
			Help:    "Latency of successful Discord webhook deliveries.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	c.registry.MustRegister(
		c.webhooksReceived,
		c.webhooksAccepted,
		c.webhooksRejected,
		c.dispatchSuccess,
		c.dispatchFailure,
		c.dispatchLatency,
	)
	return c
}

// RecordWebhookReceived counts an inbound webhook before any validation.
func (c *Collector) RecordWebhookReceived() {
	c.webhooksReceived.Inc()
}

// RecordWebhookAccepted counts a webhook that passed the full pipeline.
func (c *Collector) RecordWebhookAccepted() {
	c.webhooksAccepted.Inc()
}

// RecordWebhookRejected counts a rejected webhook. The reason label is an
// INTERNAL dimension only — external callers still see the uniform 200.
func (c *Collector) RecordWebhookRejected(reason string) {
	c.webhooksRejected.WithLabelValues(reason).Inc()
}

// RecordDispatchSuccess counts a delivered notification and its latency.
func (c *Collector) RecordDispatchSuccess(d time.Duration) {
	c.dispatchSuccess.Inc()
	c.dispatchLatency.Observe(d.Seconds())
}

// RecordDispatchFailure counts a failed delivery.
func (c *Collector) RecordDispatchFailure() {
	c.dispatchFailure.Inc()
}

// Handler returns the HTTP handler serving this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
