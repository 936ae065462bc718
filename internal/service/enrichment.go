package service

import (
	"context"
	"errors"
	"time"

	"empiria/internal/external"
	"empiria/internal/logger"
	"empiria/internal/messaging"
	"empiria/internal/metrics"
	"empiria/internal/models"
)

// EnrichmentService runs the best-effort steps after an order is
// committed: receipt and invoice lookup, then the confirmation email.
// Nothing here may fail fulfillment. Every step degrades independently;
// a failed receipt fetch still sends the email, just without the link.
type EnrichmentService struct {
	processor  PaymentProcessor
	mailer     Mailer
	events     EventStore
	natsClient *messaging.NATSClient
}

func NewEnrichmentService(processor PaymentProcessor, mailer Mailer, events EventStore, natsClient *messaging.NATSClient) *EnrichmentService {
	return &EnrichmentService{
		processor:  processor,
		mailer:     mailer,
		events:     events,
		natsClient: natsClient,
	}
}

// Process enriches a freshly fulfilled order. All failures are logged,
// counted and published; none propagate to the caller.
func (s *EnrichmentService) Process(ctx context.Context, order *models.Order, items []models.OrderItem, tickets []models.Ticket, session *external.CheckoutSession) {
	log := logger.WithContext(ctx)

	var receiptURL string
	if order.StripePaymentIntentID != "" {
		pi, err := s.processor.GetPaymentIntent(ctx, order.StripePaymentIntentID)
		if err != nil {
			s.reportFailure(ctx, order.ID, "receipt", err)
		} else {
			receiptURL = pi.LatestCharge.ReceiptURL
		}
	}

	var invoiceURL, invoicePDF string
	if session.InvoiceID != "" {
		inv, err := s.processor.GetInvoice(ctx, session.InvoiceID)
		if err != nil {
			s.reportFailure(ctx, order.ID, "invoice", err)
		} else {
			invoiceURL = inv.HostedInvoiceURL
			invoicePDF = inv.InvoicePDF
		}
	}

	event, err := s.events.GetByID(ctx, order.EventID)
	if err != nil || event == nil {
		s.reportFailure(ctx, order.ID, "event_lookup", err)
		// Without event details the email cannot be rendered sensibly.
		return
	}

	emailItems := make([]external.EmailLineItem, len(items))
	tierNames := make(map[string]string, len(items))
	for i, item := range items {
		emailItems[i] = external.EmailLineItem{
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
		}
		tierNames[item.TierID] = ""
	}

	emailTickets := make([]external.EmailTicket, len(tickets))
	for i, t := range tickets {
		emailTickets[i] = external.EmailTicket{
			ID:       t.ID,
			Secret:   t.QRCodeSecret,
			TierName: t.TierName,
		}
		tierNames[t.TierID] = t.TierName
	}
	for i, item := range items {
		emailItems[i].TierName = tierNames[item.TierID]
	}

	attendeeName := ""
	attendeeEmail := ""
	if len(tickets) > 0 {
		attendeeName = tickets[0].AttendeeName
		attendeeEmail = tickets[0].AttendeeEmail
	}
	if attendeeEmail == "" {
		attendeeEmail = session.CustomerEmail
	}
	if attendeeEmail == "" {
		s.reportFailure(ctx, order.ID, "email", errNoRecipient)
		return
	}

	email := &external.OrderEmail{
		To:           attendeeEmail,
		AttendeeName: attendeeName,
		OrderID:      order.ID,
		EventTitle:   event.Title,
		EventDate:    event.StartAt,
		EventEndDate: &event.EndAt,
		VenueName:    event.VenueName,
		City:         event.City,
		LineItems:    emailItems,
		Total:        order.TotalAmount.StringFixed(2),
		Currency:     order.Currency,
		Tickets:      emailTickets,
		ReceiptURL:   receiptURL,
		InvoiceURL:   invoiceURL,
		InvoicePDF:   invoicePDF,
	}

	if err := s.mailer.SendOrderConfirmation(ctx, email); err != nil {
		s.reportFailure(ctx, order.ID, "email", err)
		return
	}

	log.Info("Order confirmation sent",
		"order_id", order.ID,
		"recipient", attendeeEmail,
		"tickets", len(tickets))
}

func (s *EnrichmentService) reportFailure(ctx context.Context, orderID, stage string, err error) {
	reason := "unknown"
	if err != nil {
		reason = err.Error()
	}

	logger.WithContext(ctx).Warn("Enrichment step failed",
		"order_id", orderID,
		"stage", stage,
		"error", reason)

	metrics.EnrichmentFailed(stage)

	if pubErr := s.natsClient.Publish(models.EventEnrichmentFailed, models.EnrichmentFailedEvent{
		OrderID:   orderID,
		Stage:     stage,
		Reason:    reason,
		Timestamp: time.Now(),
	}); pubErr != nil {
		logger.WithContext(ctx).Error("Failed to publish enrichment failed event",
			"error", pubErr,
			"order_id", orderID)
	}
}

var errNoRecipient = errors.New("no recipient email available")
