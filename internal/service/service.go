package service

import (
	"context"
	"time"

	"empiria/internal/external"
	"empiria/internal/messaging"
	"empiria/internal/models"
	"empiria/internal/repository"
)

// EventStore reads event, organizer and tier state. Implemented by
// repository.EventRepository.
type EventStore interface {
	GetByID(ctx context.Context, id string) (*models.Event, error)
	GetOrganizer(ctx context.Context, id string) (*models.Organizer, error)
	GetTiers(ctx context.Context, eventID string, tierIDs []string) ([]models.TicketTier, error)
}

// OrderStore persists fulfillment state. Implemented by
// repository.OrderRepository. CreateFulfillment must be atomic: either
// the order, its items, its tickets and the inventory decrements all
// commit, or none do.
type OrderStore interface {
	GetBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	CreateFulfillment(ctx context.Context, order *models.Order, items []models.OrderItem, tickets []models.Ticket) error
}

// PaymentProcessor is the external payment collaborator. Implemented by
// external.StripeClient.
type PaymentProcessor interface {
	CreateCheckoutSession(ctx context.Context, params *external.CheckoutSessionParams) (*external.CheckoutSession, error)
	GetPaymentIntent(ctx context.Context, id string) (*external.PaymentIntent, error)
	GetInvoice(ctx context.Context, id string) (*external.Invoice, error)
}

// Mailer dispatches transactional mail. Implemented by
// external.MailClient.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, email *external.OrderEmail) error
}

type Services struct {
	Checkout    *CheckoutService
	Fulfillment *FulfillmentService
	Enrichment  *EnrichmentService
}

func NewServices(repos *repository.Repositories, natsClient *messaging.NATSClient,
	stripeClient *external.StripeClient, mailClient *external.MailClient,
	appBaseURL string, checkoutTTL time.Duration) *Services {

	enrichment := NewEnrichmentService(stripeClient, mailClient, repos.Events, natsClient)
	checkout := NewCheckoutService(repos.Events, stripeClient, natsClient, appBaseURL, checkoutTTL)
	fulfillment := NewFulfillmentService(repos.Orders, enrichment, natsClient)

	return &Services{
		Checkout:    checkout,
		Fulfillment: fulfillment,
		Enrichment:  enrichment,
	}
}
