package external

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "empiria/internal/errors"
)

const testWebhookSecret = "whsec_test_secret"

func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestConstructEventValidSignature(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_123"}}}`)

	event, err := constructEvent(payload, signPayload(payload, testWebhookSecret, now), testWebhookSecret, now)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "checkout.session.completed", event.Type)
	assert.JSONEq(t, `{"id":"cs_123"}`, string(event.Data.Object))
}

func TestConstructEventWrongSecret(t *testing.T) {
	now := time.Now()
	payload := []byte(`{"id":"evt_1","type":"x"}`)

	_, err := constructEvent(payload, signPayload(payload, "whsec_other", now), testWebhookSecret, now)
	assert.ErrorIs(t, err, apperrors.ErrSignatureInvalid)
}

func TestConstructEventTamperedPayload(t *testing.T) {
	now := time.Now()
	payload := []byte(`{"id":"evt_1","type":"x"}`)
	header := signPayload(payload, testWebhookSecret, now)

	_, err := constructEvent([]byte(`{"id":"evt_2","type":"x"}`), header, testWebhookSecret, now)
	assert.ErrorIs(t, err, apperrors.ErrSignatureInvalid)
}

func TestConstructEventStaleTimestamp(t *testing.T) {
	now := time.Now()
	payload := []byte(`{"id":"evt_1","type":"x"}`)
	header := signPayload(payload, testWebhookSecret, now.Add(-6*time.Minute))

	_, err := constructEvent(payload, header, testWebhookSecret, now)
	assert.ErrorIs(t, err, apperrors.ErrSignatureInvalid)
}

func TestConstructEventWithinTolerance(t *testing.T) {
	now := time.Now()
	payload := []byte(`{"id":"evt_1","type":"x"}`)
	header := signPayload(payload, testWebhookSecret, now.Add(-4*time.Minute))

	_, err := constructEvent(payload, header, testWebhookSecret, now)
	assert.NoError(t, err)
}

func TestConstructEventMalformedHeader(t *testing.T) {
	now := time.Now()
	payload := []byte(`{"id":"evt_1","type":"x"}`)

	cases := []string{
		"",
		"garbage",
		"t=abc,v1=deadbeef",
		"v1=deadbeef",
		"t=1234567890",
	}

	for _, header := range cases {
		_, err := constructEvent(payload, header, testWebhookSecret, now)
		assert.ErrorIs(t, err, apperrors.ErrSignatureInvalid, "header %q", header)
	}
}

func TestConstructEventMultipleSignatures(t *testing.T) {
	now := time.Now()
	payload := []byte(`{"id":"evt_1","type":"x"}`)

	// One bogus v1 followed by the real one still verifies.
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	fmt.Fprintf(mac, "%d.", now.Unix())
	mac.Write(payload)
	header := fmt.Sprintf("t=%d,v1=00ff00ff,v1=%s", now.Unix(), hex.EncodeToString(mac.Sum(nil)))

	_, err := constructEvent(payload, header, testWebhookSecret, now)
	assert.NoError(t, err)
}

func TestCreateCheckoutSessionFormEncoding(t *testing.T) {
	var form map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"id":"cs_123","url":"https://checkout.example.com/cs_123"}`)
	}))
	defer srv.Close()

	client := NewStripeClient(StripeConfig{
		BaseURL:   srv.URL,
		SecretKey: "sk_test_123",
	})

	session, err := client.CreateCheckoutSession(context.Background(), &CheckoutSessionParams{
		LineItems: []LineItemParams{
			{Name: "GA — Holi Festival", Currency: "CAD", UnitAmount: 5000, Quantity: 2},
		},
		CustomerEmail:        "buyer@example.com",
		ApplicationFeeAmount: 500,
		DestinationAccountID: "acct_123",
		Metadata:             map[string]string{"event_id": "evt-1", "subtotal": "100.00"},
		SuccessURL:           "https://shop.example.com/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:            "https://shop.example.com/events/holi",
		ExpiresAt:            1774000000,
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_123", session.ID)
	assert.Equal(t, "https://checkout.example.com/cs_123", session.URL)

	get := func(key string) string {
		if v, ok := form[key]; ok && len(v) > 0 {
			return v[0]
		}
		return ""
	}

	assert.Equal(t, "payment", get("mode"))
	assert.Equal(t, "cad", get("line_items[0][price_data][currency]"))
	assert.Equal(t, "GA — Holi Festival", get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "5000", get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "2", get("line_items[0][quantity]"))
	assert.Equal(t, "true", get("invoice_creation[enabled]"))
	assert.Equal(t, "500", get("payment_intent_data[application_fee_amount]"))
	assert.Equal(t, "acct_123", get("payment_intent_data[transfer_data][destination]"))
	assert.Equal(t, "100.00", get("metadata[subtotal]"))
	assert.Equal(t, "100.00", get("payment_intent_data[metadata][subtotal]"),
		"metadata must also ride on the payment intent")
	assert.Equal(t, "1774000000", get("expires_at"))
}

func TestCreateCheckoutSessionAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, `{"error":{"message":"Your card was declined.","type":"card_error"}}`)
	}))
	defer srv.Close()

	client := NewStripeClient(StripeConfig{BaseURL: srv.URL, SecretKey: "sk_test_123"})

	_, err := client.CreateCheckoutSession(context.Background(), &CheckoutSessionParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Your card was declined.")
}

func TestGetPaymentIntentExpandsLatestCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents/pi_123", r.URL.Path)
		assert.Equal(t, "latest_charge", r.URL.Query().Get("expand[]"))
		fmt.Fprint(w, `{"id":"pi_123","status":"succeeded","latest_charge":{"id":"ch_1","receipt_url":"https://pay.example.com/receipt"}}`)
	}))
	defer srv.Close()

	client := NewStripeClient(StripeConfig{BaseURL: srv.URL, SecretKey: "sk_test_123"})

	pi, err := client.GetPaymentIntent(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/receipt", pi.LatestCharge.ReceiptURL)
}
