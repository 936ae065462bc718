package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "empiria/internal/errors"
	"empiria/internal/external"
	"empiria/internal/logger"
	"empiria/internal/messaging"
	"empiria/internal/metrics"
	"empiria/internal/models"
	"empiria/internal/money"
)

// CheckoutService builds processor checkout sessions. It is the
// authoritative boundary where monetary figures are frozen: prices are
// re-read from tier state, never taken from the client, and the computed
// figures are serialized into session metadata for the reconciler.
type CheckoutService struct {
	events      EventStore
	processor   PaymentProcessor
	natsClient  *messaging.NATSClient
	appBaseURL  string
	checkoutTTL time.Duration
	now         func() time.Time
}

func NewCheckoutService(events EventStore, processor PaymentProcessor, natsClient *messaging.NATSClient,
	appBaseURL string, checkoutTTL time.Duration) *CheckoutService {
	return &CheckoutService{
		events:      events,
		processor:   processor,
		natsClient:  natsClient,
		appBaseURL:  appBaseURL,
		checkoutTTL: checkoutTTL,
		now:         time.Now,
	}
}

// CreateSession validates the selection against fresh event and tier
// state, computes the quote, and creates the processor-hosted session.
// It writes nothing locally; a session that is never paid leaves no trace.
func (s *CheckoutService) CreateSession(ctx context.Context, req *models.CreateCheckoutRequest) (*models.CreateCheckoutResponse, error) {
	if len(req.Tiers) == 0 {
		return nil, fmt.Errorf("%w: no tiers selected", apperrors.ErrTierNotFound)
	}

	event, err := s.events.GetByID(ctx, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, apperrors.ErrEventNotFound
	}

	now := s.now()
	if !event.Purchasable(now) {
		return nil, apperrors.ErrEventUnavailable
	}

	organizer, err := s.events.GetOrganizer(ctx, event.OrganizerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get organizer: %w", err)
	}
	if organizer == nil || organizer.StripeAccountID == "" || !organizer.StripeOnboardingCompleted {
		return nil, apperrors.ErrPayoutNotConfigured
	}

	tierIDs := make([]string, len(req.Tiers))
	for i, sel := range req.Tiers {
		tierIDs[i] = sel.TierID
	}

	tiers, err := s.events.GetTiers(ctx, req.EventID, tierIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiers: %w", err)
	}

	tierMap := make(map[string]models.TicketTier, len(tiers))
	for _, t := range tiers {
		tierMap[t.ID] = t
	}

	validated, err := validateSelections(tierMap, req.Tiers, now)
	if err != nil {
		return nil, err
	}

	lines := make([]money.Line, len(validated))
	lineItems := make([]external.LineItemParams, len(validated))
	for i, sel := range validated {
		tier := tierMap[sel.TierID]
		lines[i] = money.Line{UnitPrice: tier.Price, Quantity: sel.Quantity}

		item := external.LineItemParams{
			Name:       fmt.Sprintf("%s — %s", tier.Name, event.Title),
			Currency:   event.Currency,
			UnitAmount: money.ToMinorUnits(tier.Price, event.Currency),
			Quantity:   sel.Quantity,
		}
		if tier.Description != nil {
			item.Description = *tier.Description
		}
		lineItems[i] = item
	}

	quote := money.ComputeQuote(lines, event.PlatformFeePercent, event.PlatformFeeFixed)

	feePercent := money.DefaultFeePercent
	if event.PlatformFeePercent != nil {
		feePercent = *event.PlatformFeePercent
	}

	selectionsJSON, err := json.Marshal(validated)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal selections: %w", err)
	}

	metadata := &models.CheckoutMetadata{
		EventID:            event.ID,
		UserID:             req.UserID,
		UserEmail:          req.ContactEmail,
		UserName:           req.ContactName,
		TierSelections:     string(selectionsJSON),
		Subtotal:           quote.Subtotal.StringFixed(2),
		PlatformFee:        quote.PlatformFee.StringFixed(2),
		OrganizerPayout:    quote.OrganizerPayout.StringFixed(2),
		PlatformFeePercent: feePercent.String(),
		PlatformFeeFixed:   event.PlatformFeeFixed.StringFixed(2),
		SourceApp:          "shop",
	}

	params := &external.CheckoutSessionParams{
		LineItems:            lineItems,
		CustomerEmail:        req.ContactEmail,
		ApplicationFeeAmount: money.ToMinorUnits(quote.PlatformFee, event.Currency),
		DestinationAccountID: organizer.StripeAccountID,
		Metadata:             metadata.ToMap(),
		SuccessURL:           s.appBaseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:            s.appBaseURL + "/events/" + event.Slug,
		ExpiresAt:            now.Add(s.checkoutTTL).Unix(),
	}

	session, err := s.processor.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	metrics.CheckoutSessionCreated()

	if err := s.natsClient.Publish(models.EventCheckoutCreated, models.CheckoutCreatedEvent{
		SessionID: session.ID,
		EventID:   event.ID,
		UserID:    req.UserID,
		Subtotal:  metadata.Subtotal,
		Timestamp: now,
	}); err != nil {
		logger.WithContext(ctx).Error("Failed to publish checkout created event",
			"error", err,
			"session_id", session.ID)
	}

	return &models.CreateCheckoutResponse{URL: session.URL}, nil
}

// validateSelections checks every requested line against the tier
// snapshot. Any single failure aborts the whole request. Validation does
// not reserve anything: two buyers can both pass for the last unit, and
// the race is resolved by the conditional decrement at fulfillment time.
func validateSelections(tierMap map[string]models.TicketTier, selections []models.TierSelection, now time.Time) ([]models.ValidatedSelection, error) {
	validated := make([]models.ValidatedSelection, 0, len(selections))

	for _, sel := range selections {
		tier, ok := tierMap[sel.TierID]
		if !ok {
			return nil, fmt.Errorf("tier %s: %w", sel.TierID, apperrors.ErrTierNotFound)
		}

		if sel.Quantity < 1 || sel.Quantity > tier.MaxPerOrder {
			return nil, fmt.Errorf("quantity for %q must be between 1 and %d: %w",
				tier.Name, tier.MaxPerOrder, apperrors.ErrQuantityOutOfRange)
		}

		if sel.Quantity > tier.RemainingQuantity {
			return nil, fmt.Errorf("only %d %q tickets remaining: %w",
				tier.RemainingQuantity, tier.Name, apperrors.ErrInsufficientInventory)
		}

		if tier.SalesStartAt != nil && tier.SalesStartAt.After(now) {
			return nil, fmt.Errorf("sales for %q: %w", tier.Name, apperrors.ErrSalesNotStarted)
		}

		if tier.SalesEndAt != nil && tier.SalesEndAt.Before(now) {
			return nil, fmt.Errorf("sales for %q: %w", tier.Name, apperrors.ErrSalesEnded)
		}

		validated = append(validated, models.ValidatedSelection{
			TierID:    tier.ID,
			TierName:  tier.Name,
			Quantity:  sel.Quantity,
			UnitPrice: tier.Price.StringFixed(2),
		})
	}

	return validated, nil
}
