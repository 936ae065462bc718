package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event statuses. Only published events are purchasable.
const (
	EventStatusDraft     = "draft"
	EventStatusPublished = "published"
	EventStatusArchived  = "archived"
)

// Order statuses.
const (
	OrderStatusCompleted = "completed"
	OrderStatusRefunded  = "refunded"
)

// Ticket statuses.
const (
	TicketStatusValid = "valid"
	TicketStatusVoid  = "void"
	TicketStatusUsed  = "used"
)

// Organizer owns events and receives the payout split of every charge.
type Organizer struct {
	ID                        string `json:"id" db:"id"`
	Name                      string `json:"name" db:"name"`
	Email                     string `json:"email" db:"email"`
	StripeAccountID           string `json:"stripe_account_id" db:"stripe_account_id"`
	StripeOnboardingCompleted bool   `json:"stripe_onboarding_completed" db:"stripe_onboarding_completed"`
}

// Event represents a sellable occasion.
type Event struct {
	ID                 string           `json:"id" db:"id"`
	Title              string           `json:"title" db:"title"`
	Slug               string           `json:"slug" db:"slug"`
	Status             string           `json:"status" db:"status"`
	Currency           string           `json:"currency" db:"currency"`
	PlatformFeePercent *decimal.Decimal `json:"platform_fee_percent" db:"platform_fee_percent"`
	PlatformFeeFixed   decimal.Decimal  `json:"platform_fee_fixed" db:"platform_fee_fixed"`
	StartAt            time.Time        `json:"start_at" db:"start_at"`
	EndAt              time.Time        `json:"end_at" db:"end_at"`
	VenueName          string           `json:"venue_name" db:"venue_name"`
	City               string           `json:"city" db:"city"`
	OrganizerID        string           `json:"organizer_id" db:"organizer_id"`
}

// Purchasable reports whether the event can currently be sold.
func (e *Event) Purchasable(now time.Time) bool {
	return e.Status == EventStatusPublished && now.Before(e.EndAt)
}

// TicketTier is a priced inventory pool scoped to one event.
// RemainingQuantity is never negative; the storage layer enforces it with
// a conditional decrement at fulfillment time.
type TicketTier struct {
	ID                string          `json:"id" db:"id"`
	EventID           string          `json:"event_id" db:"event_id"`
	Name              string          `json:"name" db:"name"`
	Description       *string         `json:"description" db:"description"`
	Price             decimal.Decimal `json:"price" db:"price"`
	Currency          string          `json:"currency" db:"currency"`
	RemainingQuantity int             `json:"remaining_quantity" db:"remaining_quantity"`
	MaxPerOrder       int             `json:"max_per_order" db:"max_per_order"`
	SalesStartAt      *time.Time      `json:"sales_start_at" db:"sales_start_at"`
	SalesEndAt        *time.Time      `json:"sales_end_at" db:"sales_end_at"`
	IsHidden          bool            `json:"is_hidden" db:"is_hidden"`
}

// Order is the durable record of a completed purchase. At most one order
// exists per processor checkout session id.
type Order struct {
	ID                      string          `json:"id" db:"id"`
	UserID                  string          `json:"user_id" db:"user_id"`
	EventID                 string          `json:"event_id" db:"event_id"`
	StripePaymentIntentID   string          `json:"stripe_payment_intent_id" db:"stripe_payment_intent_id"`
	StripeCheckoutSessionID string          `json:"stripe_checkout_session_id" db:"stripe_checkout_session_id"`
	TotalAmount             decimal.Decimal `json:"total_amount" db:"total_amount"`
	PlatformFeeAmount       decimal.Decimal `json:"platform_fee_amount" db:"platform_fee_amount"`
	OrganizerPayoutAmount   decimal.Decimal `json:"organizer_payout_amount" db:"organizer_payout_amount"`
	Currency                string          `json:"currency" db:"currency"`
	PayoutBreakdown         PayoutBreakdown `json:"payout_breakdown" db:"payout_breakdown"`
	Status                  string          `json:"status" db:"status"`
	SourceApp               string          `json:"source_app" db:"source_app"`
	CreatedAt               time.Time       `json:"created_at" db:"created_at"`
}

// PayoutBreakdown is the audit snapshot of fee inputs and outputs stored
// alongside the order.
type PayoutBreakdown struct {
	PlatformFeePercent string `json:"platform_fee_percent"`
	PlatformFeeFixed   string `json:"platform_fee_fixed"`
	Subtotal           string `json:"subtotal"`
	PlatformFee        string `json:"platform_fee"`
	OrganizerPayout    string `json:"organizer_payout"`
}

// OrderItem is one (order, tier) row.
type OrderItem struct {
	ID        string          `json:"id" db:"id"`
	OrderID   string          `json:"order_id" db:"order_id"`
	TierID    string          `json:"tier_id" db:"tier_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal" db:"subtotal"`
}

// Ticket is one individual admission unit. QRCodeSecret is the
// unguessable credential rendered as a scannable code.
type Ticket struct {
	ID            string    `json:"id" db:"id"`
	EventID       string    `json:"event_id" db:"event_id"`
	TierID        string    `json:"tier_id" db:"tier_id"`
	OrderID       string    `json:"order_id" db:"order_id"`
	UserID        string    `json:"user_id" db:"user_id"`
	AttendeeName  string    `json:"attendee_name" db:"attendee_name"`
	AttendeeEmail string    `json:"attendee_email" db:"attendee_email"`
	Status        string    `json:"status" db:"status"`
	QRCodeSecret  string    `json:"-" db:"qr_code_secret"`
	TierName      string    `json:"tier_name,omitempty" db:"-"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
