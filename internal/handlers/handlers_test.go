package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"empiria/internal/external"
	"empiria/internal/models"
	"empiria/internal/service"
)

const testWebhookSecret = "whsec_test_secret"

type stubEventStore struct {
	event     *models.Event
	organizer *models.Organizer
	tiers     []models.TicketTier
}

func (s *stubEventStore) GetByID(ctx context.Context, id string) (*models.Event, error) {
	if s.event != nil && s.event.ID == id {
		return s.event, nil
	}
	return nil, nil
}

func (s *stubEventStore) GetOrganizer(ctx context.Context, id string) (*models.Organizer, error) {
	return s.organizer, nil
}

func (s *stubEventStore) GetTiers(ctx context.Context, eventID string, tierIDs []string) ([]models.TicketTier, error) {
	return s.tiers, nil
}

type stubOrderStore struct {
	orders map[string]*models.Order
}

func (s *stubOrderStore) GetBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	return s.orders[sessionID], nil
}

func (s *stubOrderStore) CreateFulfillment(ctx context.Context, order *models.Order, items []models.OrderItem, tickets []models.Ticket) error {
	s.orders[order.StripeCheckoutSessionID] = order
	return nil
}

type stubProcessor struct{}

func (stubProcessor) CreateCheckoutSession(ctx context.Context, params *external.CheckoutSessionParams) (*external.CheckoutSession, error) {
	return &external.CheckoutSession{
		ID:       "cs_test_123",
		URL:      "https://checkout.stripe.com/c/pay/cs_test_123",
		Metadata: params.Metadata,
	}, nil
}

func (stubProcessor) GetPaymentIntent(ctx context.Context, id string) (*external.PaymentIntent, error) {
	return &external.PaymentIntent{ID: id}, nil
}

func (stubProcessor) GetInvoice(ctx context.Context, id string) (*external.Invoice, error) {
	return &external.Invoice{ID: id}, nil
}

type stubMailer struct{}

func (stubMailer) SendOrderConfirmation(ctx context.Context, email *external.OrderEmail) error {
	return nil
}

func setupRouter(t *testing.T) (*gin.Engine, *stubOrderStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	events := &stubEventStore{
		event: &models.Event{
			ID:       "evt-1",
			Title:    "Holi Festival of Colours",
			Slug:     "holi-festival",
			Status:   models.EventStatusPublished,
			Currency: "cad",
			StartAt:  time.Now().Add(24 * time.Hour),
			EndAt:    time.Now().Add(30 * time.Hour),
		},
		organizer: &models.Organizer{
			ID:                        "org-1",
			StripeAccountID:           "acct_123",
			StripeOnboardingCompleted: true,
		},
		tiers: []models.TicketTier{{
			ID:                "tier-1",
			EventID:           "evt-1",
			Name:              "General Admission",
			Price:             decimal.RequireFromString("50.00"),
			Currency:          "cad",
			RemainingQuantity: 100,
			MaxPerOrder:       10,
		}},
	}

	orders := &stubOrderStore{orders: make(map[string]*models.Order)}

	enrichment := service.NewEnrichmentService(stubProcessor{}, stubMailer{}, events, nil)
	services := &service.Services{
		Checkout:    service.NewCheckoutService(events, stubProcessor{}, nil, "https://shop.example.com", 30*time.Minute),
		Fulfillment: service.NewFulfillmentService(orders, enrichment, nil),
		Enrichment:  enrichment,
	}

	stripeClient := external.NewStripeClient(external.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
	})

	h := NewHandlers(services, stripeClient, nil)

	r := gin.New()
	api := r.Group("/api")
	{
		checkout := api.Group("/checkout")
		{
			checkout.POST("", h.CreateCheckout)
			checkout.GET("/status", h.CheckoutStatus)
		}
		api.POST("/webhooks/stripe", h.StripeWebhook)
	}
	r.GET("/health", h.HealthCheck)

	return r, orders
}

func signWebhook(payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestCreateCheckout(t *testing.T) {
	r, _ := setupRouter(t)

	body, _ := json.Marshal(models.CreateCheckoutRequest{
		EventID:      "evt-1",
		Tiers:        []models.TierSelection{{TierID: "tier-1", Quantity: 2}},
		ContactEmail: "buyer@example.com",
	})

	req, _ := http.NewRequest("POST", "/api/checkout", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.CreateCheckoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_123", resp.URL)
}

func TestCreateCheckoutBadRequest(t *testing.T) {
	r, _ := setupRouter(t)

	req, _ := http.NewRequest("POST", "/api/checkout", bytes.NewBufferString(`{"event_id":"evt-1"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateCheckoutEventNotFound(t *testing.T) {
	r, _ := setupRouter(t)

	body, _ := json.Marshal(models.CreateCheckoutRequest{
		EventID: "evt-missing",
		Tiers:   []models.TierSelection{{TierID: "tier-1", Quantity: 1}},
	})

	req, _ := http.NewRequest("POST", "/api/checkout", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateCheckoutQuantityOutOfRange(t *testing.T) {
	r, _ := setupRouter(t)

	body, _ := json.Marshal(models.CreateCheckoutRequest{
		EventID: "evt-1",
		Tiers:   []models.TierSelection{{TierID: "tier-1", Quantity: 11}},
	})

	req, _ := http.NewRequest("POST", "/api/checkout", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckoutStatusRequiresSessionID(t *testing.T) {
	r, _ := setupRouter(t)

	req, _ := http.NewRequest("GET", "/api/checkout/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckoutStatusProcessing(t *testing.T) {
	r, _ := setupRouter(t)

	req, _ := http.NewRequest("GET", "/api/checkout/status?session_id=cs_pending", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.CheckoutStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "processing", resp.Status)
}

func webhookPayload(t *testing.T, sessionID string) []byte {
	t.Helper()

	meta := &models.CheckoutMetadata{
		EventID:            "evt-1",
		UserEmail:          "buyer@example.com",
		TierSelections:     `[{"tierId":"tier-1","tierName":"General Admission","quantity":2,"unitPrice":"50.00"}]`,
		Subtotal:           "100.00",
		PlatformFee:        "5.00",
		OrganizerPayout:    "95.00",
		PlatformFeePercent: "5",
		PlatformFeeFixed:   "0.00",
	}

	session := map[string]interface{}{
		"id":             sessionID,
		"payment_intent": "pi_123",
		"currency":       "cad",
		"metadata":       meta.ToMap(),
	}
	object, err := json.Marshal(session)
	require.NoError(t, err)

	payload, err := json.Marshal(map[string]interface{}{
		"id":   "evt_wh_1",
		"type": "checkout.session.completed",
		"data": map[string]interface{}{"object": json.RawMessage(object)},
	})
	require.NoError(t, err)
	return payload
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	r, orders := setupRouter(t)

	payload := webhookPayload(t, "cs_sig_test")

	req, _ := http.NewRequest("POST", "/api/webhooks/stripe", bytes.NewBuffer(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, orders.orders)
}

func TestStripeWebhookFulfillsCheckout(t *testing.T) {
	r, orders := setupRouter(t)

	payload := webhookPayload(t, "cs_fulfilled")

	req, _ := http.NewRequest("POST", "/api/webhooks/stripe", bytes.NewBuffer(payload))
	req.Header.Set("Stripe-Signature", signWebhook(payload))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())

	order := orders.orders["cs_fulfilled"]
	require.NotNil(t, order)
	assert.Equal(t, "evt-1", order.EventID)

	// The confirmation page now sees the terminal status.
	statusReq, _ := http.NewRequest("GET", "/api/checkout/status?session_id=cs_fulfilled", nil)
	statusW := httptest.NewRecorder()
	r.ServeHTTP(statusW, statusReq)

	var status models.CheckoutStatusResponse
	require.NoError(t, json.Unmarshal(statusW.Body.Bytes(), &status))
	assert.Equal(t, "completed", status.Status)
	assert.Equal(t, order.ID, status.OrderID)
}

func TestStripeWebhookIgnoresUnknownEventTypes(t *testing.T) {
	r, orders := setupRouter(t)

	payload := []byte(`{"id":"evt_wh_2","type":"customer.created","data":{"object":{}}}`)

	req, _ := http.NewRequest("POST", "/api/webhooks/stripe", bytes.NewBuffer(payload))
	req.Header.Set("Stripe-Signature", signWebhook(payload))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, orders.orders)
}

func TestStripeWebhookPaymentFailed(t *testing.T) {
	r, orders := setupRouter(t)

	payload := []byte(`{"id":"evt_wh_3","type":"payment_intent.payment_failed",` +
		`"data":{"object":{"id":"pi_fail","last_payment_error":{"message":"card declined"}}}}`)

	req, _ := http.NewRequest("POST", "/api/webhooks/stripe", bytes.NewBuffer(payload))
	req.Header.Set("Stripe-Signature", signWebhook(payload))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, orders.orders)
}

func TestHealthCheck(t *testing.T) {
	r, _ := setupRouter(t)

	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
