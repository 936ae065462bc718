package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "empiria/internal/errors"
	"empiria/internal/external"
	"empiria/internal/logger"
	"empiria/internal/messaging"
	"empiria/internal/metrics"
	"empiria/internal/models"
)

// FulfillmentService turns a verified completed-checkout event into a
// durable order with its items and tickets, exactly once per session.
type FulfillmentService struct {
	orders     OrderStore
	enrichment *EnrichmentService
	natsClient *messaging.NATSClient
}

func NewFulfillmentService(orders OrderStore, enrichment *EnrichmentService, natsClient *messaging.NATSClient) *FulfillmentService {
	return &FulfillmentService{
		orders:     orders,
		enrichment: enrichment,
		natsClient: natsClient,
	}
}

// HandleCheckoutCompleted reconciles one completed checkout session.
//
// The lookup by session id is only a fast path; the real idempotency
// boundary is the unique constraint hit inside CreateFulfillment, which
// also covers two deliveries racing past the lookup concurrently.
// Monetary figures and unit prices come from the metadata frozen at
// session-build time and are never recomputed from current tier state.
func (s *FulfillmentService) HandleCheckoutCompleted(ctx context.Context, session *external.CheckoutSession) (*models.Order, []models.Ticket, error) {
	existing, err := s.orders.GetBySessionID(ctx, session.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up order: %w", err)
	}
	if existing != nil {
		logger.WithContext(ctx).Info("Order already exists for session, skipping",
			"session_id", session.ID,
			"order_id", existing.ID)
		return existing, nil, nil
	}

	meta := models.MetadataFromMap(session.Metadata)
	if meta.EventID == "" || meta.TierSelections == "" {
		return nil, nil, fmt.Errorf("session %s is missing fulfillment metadata", session.ID)
	}

	selections, err := meta.Selections()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode tier selections: %w", err)
	}

	subtotal, err := decimal.NewFromString(meta.Subtotal)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid subtotal %q: %w", meta.Subtotal, err)
	}
	platformFee, err := decimal.NewFromString(meta.PlatformFee)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid platform fee %q: %w", meta.PlatformFee, err)
	}
	organizerPayout, err := decimal.NewFromString(meta.OrganizerPayout)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid organizer payout %q: %w", meta.OrganizerPayout, err)
	}

	buyerEmail := meta.UserEmail
	if buyerEmail == "" {
		buyerEmail = session.CustomerEmail
	}

	userID := meta.UserID
	if userID == "" {
		userID = "guest:" + buyerEmail
	}

	currency := session.Currency
	if currency == "" {
		currency = "cad"
	}

	order := &models.Order{
		ID:                      uuid.New().String(),
		UserID:                  userID,
		EventID:                 meta.EventID,
		StripePaymentIntentID:   session.PaymentIntentID,
		StripeCheckoutSessionID: session.ID,
		TotalAmount:             subtotal,
		PlatformFeeAmount:       platformFee,
		OrganizerPayoutAmount:   organizerPayout,
		Currency:                currency,
		PayoutBreakdown: models.PayoutBreakdown{
			PlatformFeePercent: meta.PlatformFeePercent,
			PlatformFeeFixed:   meta.PlatformFeeFixed,
			Subtotal:           meta.Subtotal,
			PlatformFee:        meta.PlatformFee,
			OrganizerPayout:    meta.OrganizerPayout,
		},
		Status:    models.OrderStatusCompleted,
		SourceApp: meta.SourceApp,
		CreatedAt: time.Now(),
	}
	if order.SourceApp == "" {
		order.SourceApp = "shop"
	}

	items := make([]models.OrderItem, 0, len(selections))
	tickets := make([]models.Ticket, 0)

	for _, sel := range selections {
		unitPrice, err := decimal.NewFromString(sel.UnitPrice)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid unit price %q for tier %s: %w", sel.UnitPrice, sel.TierID, err)
		}

		items = append(items, models.OrderItem{
			ID:        uuid.New().String(),
			OrderID:   order.ID,
			TierID:    sel.TierID,
			Quantity:  sel.Quantity,
			UnitPrice: unitPrice,
			Subtotal:  unitPrice.Mul(decimal.NewFromInt(int64(sel.Quantity))),
		})

		// One ticket per admission unit, each with its own unguessable
		// credential. Credentials are generated here, not by the storage
		// layer, so the fulfillment unit is testable in isolation.
		for i := 0; i < sel.Quantity; i++ {
			tickets = append(tickets, models.Ticket{
				ID:            uuid.New().String(),
				EventID:       meta.EventID,
				TierID:        sel.TierID,
				OrderID:       order.ID,
				UserID:        userID,
				AttendeeName:  meta.UserName,
				AttendeeEmail: buyerEmail,
				Status:        models.TicketStatusValid,
				QRCodeSecret:  uuid.New().String(),
				TierName:      sel.TierName,
			})
		}
	}

	start := time.Now()
	err = s.orders.CreateFulfillment(ctx, order, items, tickets)
	metrics.ObserveFulfillment(time.Since(start))

	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyFulfilled) {
			// Lost the insert race against a concurrent delivery of the
			// same session; the other delivery owns fulfillment.
			logger.WithContext(ctx).Info("Concurrent delivery already fulfilled session",
				"session_id", session.ID)
			existing, lookupErr := s.orders.GetBySessionID(ctx, session.ID)
			if lookupErr != nil || existing == nil {
				return nil, nil, fmt.Errorf("failed to load concurrently fulfilled order: %v", lookupErr)
			}
			return existing, nil, nil
		}

		reason := "storage"
		if errors.Is(err, apperrors.ErrInsufficientInventory) {
			reason = "insufficient_inventory"
		}
		metrics.FulfillmentFailed(reason)

		if pubErr := s.natsClient.Publish(models.EventFulfillmentFailed, models.FulfillmentFailedEvent{
			SessionID: session.ID,
			EventID:   meta.EventID,
			Reason:    err.Error(),
			Timestamp: time.Now(),
		}); pubErr != nil {
			logger.WithContext(ctx).Error("Failed to publish fulfillment failed event",
				"error", pubErr,
				"session_id", session.ID)
		}

		return nil, nil, fmt.Errorf("fulfillment failed for session %s: %w", session.ID, err)
	}

	metrics.OrderFulfilled(len(tickets))

	if err := s.natsClient.Publish(models.EventOrderFulfilled, models.OrderFulfilledEvent{
		OrderID:     order.ID,
		SessionID:   session.ID,
		EventID:     meta.EventID,
		TicketCount: len(tickets),
		TotalAmount: meta.Subtotal,
		Timestamp:   time.Now(),
	}); err != nil {
		logger.WithContext(ctx).Error("Failed to publish order fulfilled event",
			"error", err,
			"order_id", order.ID)
	}

	// Strictly downstream of the committed fulfillment; can never undo it.
	if s.enrichment != nil {
		s.enrichment.Process(ctx, order, items, tickets, session)
	}

	return order, tickets, nil
}

// HandlePaymentFailed records a processor-reported payment failure.
// Failed attempts leave no order; there is nothing to mutate.
func (s *FulfillmentService) HandlePaymentFailed(ctx context.Context, intent *external.PaymentIntent) {
	logger.WithContext(ctx).Warn("Payment failed",
		"payment_intent_id", intent.ID,
		"reason", intent.LastPaymentError.Message)

	if err := s.natsClient.Publish(models.EventPaymentFailed, models.PaymentFailedEvent{
		PaymentIntentID: intent.ID,
		Reason:          intent.LastPaymentError.Message,
		Timestamp:       time.Now(),
	}); err != nil {
		logger.WithContext(ctx).Error("Failed to publish payment failed event",
			"error", err,
			"payment_intent_id", intent.ID)
	}
}

// Status reports whether a session has been fulfilled yet. The
// confirmation page polls this with bounded retries and falls back to a
// "processing" display, never an error, while webhook delivery is pending.
func (s *FulfillmentService) Status(ctx context.Context, sessionID string) (*models.CheckoutStatusResponse, error) {
	order, err := s.orders.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up order: %w", err)
	}

	if order == nil {
		return &models.CheckoutStatusResponse{Status: "processing"}, nil
	}

	return &models.CheckoutStatusResponse{Status: "completed", OrderID: order.ID}, nil
}
