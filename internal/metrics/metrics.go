package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkoutSessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_sessions_created_total",
			Help: "Total checkout sessions created with the payment processor",
		},
	)

	checkoutFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_failures_total",
			Help: "Total checkout initiation failures by reason",
		},
		[]string{"reason"},
	)

	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total webhook events received by type and result",
		},
		[]string{"type", "result"},
	)

	ordersFulfilled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_fulfilled_total",
			Help: "Total orders fulfilled",
		},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Total tickets issued",
		},
	)

	fulfillmentFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fulfillment_failures_total",
			Help: "Total fulfillment failures by reason",
		},
		[]string{"reason"},
	)

	enrichmentFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_failures_total",
			Help: "Total post-fulfillment enrichment failures by stage",
		},
		[]string{"stage"},
	)

	fulfillmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fulfillment_duration_seconds",
			Help:    "Duration of fulfillment transactions",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func CheckoutSessionCreated()       { checkoutSessionsCreated.Inc() }
func CheckoutFailed(reason string)  { checkoutFailures.WithLabelValues(reason).Inc() }
func OrderFulfilled(tickets int)    { ordersFulfilled.Inc(); ticketsIssued.Add(float64(tickets)) }
func FulfillmentFailed(reason string) { fulfillmentFailures.WithLabelValues(reason).Inc() }
func EnrichmentFailed(stage string) { enrichmentFailures.WithLabelValues(stage).Inc() }

func WebhookEvent(eventType, result string) {
	webhookEvents.WithLabelValues(eventType, result).Inc()
}

func ObserveFulfillment(d time.Duration) {
	fulfillmentDuration.Observe(d.Seconds())
}

func HTTPRequest(method, path, status string, d time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
