package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	apperrors "empiria/internal/errors"
	"empiria/internal/external"
	"empiria/internal/models"
)

// fakeEventStore serves a fixed event, organizer and tier set.
type fakeEventStore struct {
	event     *models.Event
	organizer *models.Organizer
	tiers     []models.TicketTier
}

func (f *fakeEventStore) GetByID(ctx context.Context, id string) (*models.Event, error) {
	if f.event == nil || f.event.ID != id {
		return nil, nil
	}
	return f.event, nil
}

func (f *fakeEventStore) GetOrganizer(ctx context.Context, id string) (*models.Organizer, error) {
	if f.organizer == nil || f.organizer.ID != id {
		return nil, nil
	}
	return f.organizer, nil
}

func (f *fakeEventStore) GetTiers(ctx context.Context, eventID string, tierIDs []string) ([]models.TicketTier, error) {
	requested := make(map[string]bool, len(tierIDs))
	for _, id := range tierIDs {
		requested[id] = true
	}
	var out []models.TicketTier
	for _, t := range f.tiers {
		if t.EventID == eventID && requested[t.ID] {
			out = append(out, t)
		}
	}
	return out, nil
}

// memOrderStore mimics the storage layer's transactional guarantees in
// memory: one order per session id, conditional inventory decrements,
// and all-or-nothing application of a fulfillment unit.
type memOrderStore struct {
	mu        sync.Mutex
	orders    map[string]*models.Order // keyed by session id
	items     map[string][]models.OrderItem
	tickets   map[string][]models.Ticket
	inventory map[string]int // tier id -> remaining
}

func newMemOrderStore(inventory map[string]int) *memOrderStore {
	inv := make(map[string]int, len(inventory))
	for k, v := range inventory {
		inv[k] = v
	}
	return &memOrderStore{
		orders:    make(map[string]*models.Order),
		items:     make(map[string][]models.OrderItem),
		tickets:   make(map[string][]models.Ticket),
		inventory: inv,
	}
}

func (s *memOrderStore) GetBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order, ok := s.orders[sessionID]; ok {
		copied := *order
		return &copied, nil
	}
	return nil, nil
}

func (s *memOrderStore) CreateFulfillment(ctx context.Context, order *models.Order, items []models.OrderItem, tickets []models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.StripeCheckoutSessionID]; ok {
		return apperrors.ErrAlreadyFulfilled
	}

	for _, item := range items {
		if s.inventory[item.TierID] < item.Quantity {
			return fmt.Errorf("tier %s: %w", item.TierID, apperrors.ErrInsufficientInventory)
		}
	}
	for _, item := range items {
		s.inventory[item.TierID] -= item.Quantity
	}

	copied := *order
	s.orders[order.StripeCheckoutSessionID] = &copied
	s.items[order.ID] = append([]models.OrderItem(nil), items...)
	s.tickets[order.ID] = append([]models.Ticket(nil), tickets...)
	return nil
}

func (s *memOrderStore) remaining(tierID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inventory[tierID]
}

func (s *memOrderStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// fakeProcessor records the last session params and hands back a canned
// session carrying the metadata it was given.
type fakeProcessor struct {
	mu            sync.Mutex
	lastParams    *external.CheckoutSessionParams
	createErr     error
	paymentIntent *external.PaymentIntent
	invoice       *external.Invoice
	intentErr     error
	invoiceErr    error
}

func (f *fakeProcessor) CreateCheckoutSession(ctx context.Context, params *external.CheckoutSessionParams) (*external.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.lastParams = params
	return &external.CheckoutSession{
		ID:            "cs_test_123",
		URL:           "https://checkout.stripe.com/c/pay/cs_test_123",
		CustomerEmail: params.CustomerEmail,
		Metadata:      params.Metadata,
	}, nil
}

func (f *fakeProcessor) GetPaymentIntent(ctx context.Context, id string) (*external.PaymentIntent, error) {
	if f.intentErr != nil {
		return nil, f.intentErr
	}
	if f.paymentIntent != nil {
		return f.paymentIntent, nil
	}
	return &external.PaymentIntent{ID: id}, nil
}

func (f *fakeProcessor) GetInvoice(ctx context.Context, id string) (*external.Invoice, error) {
	if f.invoiceErr != nil {
		return nil, f.invoiceErr
	}
	if f.invoice != nil {
		return f.invoice, nil
	}
	return &external.Invoice{ID: id}, nil
}

// fakeMailer records sent messages and can be told to fail.
type fakeMailer struct {
	mu      sync.Mutex
	sent    []*external.OrderEmail
	sendErr error
}

func (f *fakeMailer) SendOrderConfirmation(ctx context.Context, email *external.OrderEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, email)
	return nil
}

func (f *fakeMailer) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func testEvent() *models.Event {
	return &models.Event{
		ID:               "evt-1",
		Title:            "Holi Festival of Colours",
		Slug:             "holi-festival",
		Status:           models.EventStatusPublished,
		Currency:         "cad",
		PlatformFeeFixed: decimal.Zero,
		StartAt:          testNow.Add(30 * 24 * time.Hour),
		EndAt:            testNow.Add(30*24*time.Hour + 6*time.Hour),
		VenueName:        "Exhibition Place",
		City:             "Toronto",
		OrganizerID:      "org-1",
	}
}

func testOrganizer() *models.Organizer {
	return &models.Organizer{
		ID:                        "org-1",
		Name:                      "Empiria Events",
		Email:                     "organizer@example.com",
		StripeAccountID:           "acct_123",
		StripeOnboardingCompleted: true,
	}
}

func testTier(id string, price string, remaining int) models.TicketTier {
	return models.TicketTier{
		ID:                id,
		EventID:           "evt-1",
		Name:              "General Admission",
		Price:             decimal.RequireFromString(price),
		Currency:          "cad",
		RemainingQuantity: remaining,
		MaxPerOrder:       10,
	}
}
