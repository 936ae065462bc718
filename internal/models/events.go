package models

import "time"

// NATS Event Types
const (
	EventCheckoutCreated   = "checkout.created"
	EventOrderFulfilled    = "order.fulfilled"
	EventPaymentFailed     = "payment.failed"
	EventFulfillmentFailed = "fulfillment.failed"
	EventEnrichmentFailed  = "enrichment.failed"
)

// CheckoutCreatedEvent represents a checkout session creation event
type CheckoutCreatedEvent struct {
	SessionID string    `json:"session_id"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Subtotal  string    `json:"subtotal"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderFulfilledEvent represents a completed fulfillment
type OrderFulfilledEvent struct {
	OrderID     string    `json:"order_id"`
	SessionID   string    `json:"session_id"`
	EventID     string    `json:"event_id"`
	TicketCount int       `json:"ticket_count"`
	TotalAmount string    `json:"total_amount"`
	Timestamp   time.Time `json:"timestamp"`
}

// PaymentFailedEvent represents a failed payment reported by the processor
type PaymentFailedEvent struct {
	PaymentIntentID string    `json:"payment_intent_id"`
	Reason          string    `json:"reason"`
	Timestamp       time.Time `json:"timestamp"`
}

// FulfillmentFailedEvent is the out-of-band remediation signal for a paid
// session that could not be fulfilled. The buyer has been charged; this
// event must be consumed by a repair process or an operator.
type FulfillmentFailedEvent struct {
	SessionID string    `json:"session_id"`
	EventID   string    `json:"event_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// EnrichmentFailedEvent represents a best-effort post-fulfillment step
// failure (receipt fetch, confirmation email)
type EnrichmentFailedEvent struct {
	OrderID   string    `json:"order_id"`
	Stage     string    `json:"stage"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}
