package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for monitoring webhook ingestion and order creation
var (
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total number of Stripe webhook events received, by event type",
		},
		[]string{"type"},
	)

	WebhookEventsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_rejected_total",
			Help: "Total number of webhook events rejected, by reason",
		},
		[]string{"reason"},
	)

	WebhookFallbackEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_fallback_events_total",
			Help: "Total number of webhook events verified with the default signing secret",
		},
	)

	OrdersCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders created, by source",
		},
		[]string{"source"},
	)

	OrderWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "order_write_failures_total",
			Help: "Total number of order rows that failed to persist",
		},
	)

	WebhookProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webhook_processing_duration_seconds",
			Help:    "Duration of webhook event processing",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register registers all Prometheus metrics
func Register() {
	prometheus.MustRegister(WebhookEventsTotal)
	prometheus.MustRegister(WebhookEventsRejectedTotal)
	prometheus.MustRegister(WebhookFallbackEventsTotal)
	prometheus.MustRegister(OrdersCreatedTotal)
	prometheus.MustRegister(OrderWriteFailuresTotal)
	prometheus.MustRegister(WebhookProcessingDuration)
}
