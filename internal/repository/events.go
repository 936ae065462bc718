package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"empiria/internal/database"
	"empiria/internal/models"
)

type EventRepository struct {
	db *database.DB
}

func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	event := &models.Event{}
	var feePercent decimal.NullDecimal

	query := `
		SELECT id, title, slug, status, currency, platform_fee_percent, platform_fee_fixed,
		       start_at, end_at, venue_name, city, organizer_id
		FROM events
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.Title,
		&event.Slug,
		&event.Status,
		&event.Currency,
		&feePercent,
		&event.PlatformFeeFixed,
		&event.StartAt,
		&event.EndAt,
		&event.VenueName,
		&event.City,
		&event.OrganizerID,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if feePercent.Valid {
		event.PlatformFeePercent = &feePercent.Decimal
	}

	return event, nil
}

func (r *EventRepository) GetOrganizer(ctx context.Context, id string) (*models.Organizer, error) {
	organizer := &models.Organizer{}
	var accountID sql.NullString

	query := `
		SELECT id, name, email, stripe_account_id, stripe_onboarding_completed
		FROM organizers
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&organizer.ID,
		&organizer.Name,
		&organizer.Email,
		&accountID,
		&organizer.StripeOnboardingCompleted,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	organizer.StripeAccountID = accountID.String

	return organizer, nil
}

// GetTiers returns the requested tiers scoped to the event. Tiers that do
// not exist or belong to another event are simply absent from the result;
// the validator treats absence as TierNotFound.
func (r *EventRepository) GetTiers(ctx context.Context, eventID string, tierIDs []string) ([]models.TicketTier, error) {
	query := `
		SELECT id, event_id, name, description, price, currency, remaining_quantity,
		       max_per_order, sales_start_at, sales_end_at, is_hidden
		FROM ticket_tiers
		WHERE event_id = $1 AND id = ANY($2)`

	rows, err := r.db.QueryContext(ctx, query, eventID, pq.Array(tierIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiers []models.TicketTier
	for rows.Next() {
		var tier models.TicketTier
		err := rows.Scan(
			&tier.ID,
			&tier.EventID,
			&tier.Name,
			&tier.Description,
			&tier.Price,
			&tier.Currency,
			&tier.RemainingQuantity,
			&tier.MaxPerOrder,
			&tier.SalesStartAt,
			&tier.SalesEndAt,
			&tier.IsHidden,
		)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, tier)
	}

	return tiers, rows.Err()
}
