package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"empiria/internal/database"
	apperrors "empiria/internal/errors"
	"empiria/internal/models"
)

// pq error code for unique_violation
const uniqueViolation = "23505"

type OrderRepository struct {
	db *database.DB
}

func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	order := &models.Order{}
	var breakdown []byte

	query := `
		SELECT id, user_id, event_id, stripe_payment_intent_id, stripe_checkout_session_id,
		       total_amount, platform_fee_amount, organizer_payout_amount, currency,
		       payout_breakdown, status, source_app, created_at
		FROM orders
		WHERE stripe_checkout_session_id = $1`

	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&order.ID,
		&order.UserID,
		&order.EventID,
		&order.StripePaymentIntentID,
		&order.StripeCheckoutSessionID,
		&order.TotalAmount,
		&order.PlatformFeeAmount,
		&order.OrganizerPayoutAmount,
		&order.Currency,
		&breakdown,
		&order.Status,
		&order.SourceApp,
		&order.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &order.PayoutBreakdown); err != nil {
			return nil, fmt.Errorf("invalid payout breakdown on order %s: %w", order.ID, err)
		}
	}

	return order, nil
}

// CreateFulfillment persists an order with its items and tickets as one
// transaction. The unique constraint on stripe_checkout_session_id is the
// idempotency gate: a conflicting insert returns ErrAlreadyFulfilled. Each
// tier's remaining_quantity is decremented conditionally; a decrement that
// would go negative returns ErrInsufficientInventory and rolls back the
// whole unit, leaving no partial state behind.
func (r *OrderRepository) CreateFulfillment(ctx context.Context, order *models.Order, items []models.OrderItem, tickets []models.Ticket) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	breakdown, err := json.Marshal(order.PayoutBreakdown)
	if err != nil {
		return fmt.Errorf("failed to marshal payout breakdown: %w", err)
	}

	insertOrder := `
		INSERT INTO orders (id, user_id, event_id, stripe_payment_intent_id, stripe_checkout_session_id,
		                    total_amount, platform_fee_amount, organizer_payout_amount, currency,
		                    payout_breakdown, status, source_app)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = tx.ExecContext(ctx, insertOrder,
		order.ID, order.UserID, order.EventID,
		order.StripePaymentIntentID, order.StripeCheckoutSessionID,
		order.TotalAmount, order.PlatformFeeAmount, order.OrganizerPayoutAmount,
		order.Currency, breakdown, order.Status, order.SourceApp)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return apperrors.ErrAlreadyFulfilled
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	insertItem := `
		INSERT INTO order_items (id, order_id, tier_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)`

	decrementTier := `
		UPDATE ticket_tiers
		SET remaining_quantity = remaining_quantity - $1
		WHERE id = $2 AND remaining_quantity >= $1`

	for _, item := range items {
		if _, err := tx.ExecContext(ctx, insertItem,
			item.ID, item.OrderID, item.TierID, item.Quantity, item.UnitPrice, item.Subtotal); err != nil {
			return fmt.Errorf("failed to insert order item for tier %s: %w", item.TierID, err)
		}

		result, err := tx.ExecContext(ctx, decrementTier, item.Quantity, item.TierID)
		if err != nil {
			return fmt.Errorf("failed to decrement tier %s: %w", item.TierID, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("tier %s: %w", item.TierID, apperrors.ErrInsufficientInventory)
		}
	}

	insertTicket := `
		INSERT INTO tickets (id, event_id, tier_id, order_id, user_id, attendee_name, attendee_email,
		                     status, qr_code_secret)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for _, ticket := range tickets {
		if _, err := tx.ExecContext(ctx, insertTicket,
			ticket.ID, ticket.EventID, ticket.TierID, ticket.OrderID, ticket.UserID,
			ticket.AttendeeName, ticket.AttendeeEmail, ticket.Status, ticket.QRCodeSecret); err != nil {
			return fmt.Errorf("failed to insert ticket for tier %s: %w", ticket.TierID, err)
		}
	}

	return tx.Commit()
}
