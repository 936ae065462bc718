package models

import "encoding/json"

// TierSelection - one requested (tier, quantity) pair of a checkout attempt
type TierSelection struct {
	TierID   string `json:"tier_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
}

// CreateCheckoutRequest - buyer-submitted checkout initiation
type CreateCheckoutRequest struct {
	EventID      string          `json:"event_id" binding:"required"`
	Tiers        []TierSelection `json:"tiers" binding:"required"`
	ContactEmail string          `json:"contact_email,omitempty"`
	ContactName  string          `json:"contact_name,omitempty"`
	UserID       string          `json:"-"`
}

// CreateCheckoutResponse - processor-hosted payment page redirect
type CreateCheckoutResponse struct {
	URL string `json:"url"`
}

// CheckoutStatusResponse - polled by the confirmation page while waiting
// for asynchronous webhook delivery
type CheckoutStatusResponse struct {
	Status  string `json:"status"`
	OrderID string `json:"order_id,omitempty"`
}

// ValidatedSelection is a selection line with its unit price locked in at
// session-build time. Serialized into processor metadata; prices are
// decimal strings so replay never recomputes from mutable tier state.
type ValidatedSelection struct {
	TierID    string `json:"tierId"`
	TierName  string `json:"tierName"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
}

// CheckoutMetadata is the payload frozen onto both the checkout session
// and its payment intent. Everything the reconciler needs must be here.
type CheckoutMetadata struct {
	EventID            string `json:"event_id"`
	UserID             string `json:"user_id"`
	UserEmail          string `json:"user_email"`
	UserName           string `json:"user_name"`
	TierSelections     string `json:"tier_selections"`
	Subtotal           string `json:"subtotal"`
	PlatformFee        string `json:"platform_fee"`
	OrganizerPayout    string `json:"organizer_payout"`
	PlatformFeePercent string `json:"platform_fee_percent"`
	PlatformFeeFixed   string `json:"platform_fee_fixed"`
	SourceApp          string `json:"source_app"`
}

// Selections decodes the embedded tier_selections JSON.
func (m *CheckoutMetadata) Selections() ([]ValidatedSelection, error) {
	var out []ValidatedSelection
	if err := json.Unmarshal([]byte(m.TierSelections), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ToMap flattens the metadata for the processor's key-value metadata API.
func (m *CheckoutMetadata) ToMap() map[string]string {
	return map[string]string{
		"event_id":             m.EventID,
		"user_id":              m.UserID,
		"user_email":           m.UserEmail,
		"user_name":            m.UserName,
		"tier_selections":      m.TierSelections,
		"subtotal":             m.Subtotal,
		"platform_fee":         m.PlatformFee,
		"organizer_payout":     m.OrganizerPayout,
		"platform_fee_percent": m.PlatformFeePercent,
		"platform_fee_fixed":   m.PlatformFeeFixed,
		"source_app":           m.SourceApp,
	}
}

// MetadataFromMap rebuilds the frozen metadata from a processor event.
func MetadataFromMap(raw map[string]string) *CheckoutMetadata {
	return &CheckoutMetadata{
		EventID:            raw["event_id"],
		UserID:             raw["user_id"],
		UserEmail:          raw["user_email"],
		UserName:           raw["user_name"],
		TierSelections:     raw["tier_selections"],
		Subtotal:           raw["subtotal"],
		PlatformFee:        raw["platform_fee"],
		OrganizerPayout:    raw["organizer_payout"],
		PlatformFeePercent: raw["platform_fee_percent"],
		PlatformFeeFixed:   raw["platform_fee_fixed"],
		SourceApp:          raw["source_app"],
	}
}
