package external

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "empiria/internal/errors"
)

// StripeClient talks to the payment processor's HTTP API. Only the
// operations the checkout pipeline needs are implemented: hosted checkout
// session creation and the read calls used for receipt enrichment.
type StripeClient struct {
	baseURL       string
	secretKey     string
	webhookSecret string
	httpClient    *http.Client
}

type StripeConfig struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
}

// signatureTolerance bounds how stale a signed webhook timestamp may be.
const signatureTolerance = 5 * time.Minute

// LineItemParams describes one priced line of a checkout session.
// UnitAmount is in the currency's minor units.
type LineItemParams struct {
	Name        string
	Description string
	Currency    string
	UnitAmount  int64
	Quantity    int
}

// CheckoutSessionParams is the outbound session-creation request. The
// metadata map is attached to both the session and its payment intent so
// fulfillment data survives whichever object is inspectable later.
type CheckoutSessionParams struct {
	LineItems            []LineItemParams
	CustomerEmail        string
	ApplicationFeeAmount int64
	DestinationAccountID string
	Metadata             map[string]string
	SuccessURL           string
	CancelURL            string
	ExpiresAt            int64
}

// CheckoutSession mirrors the processor's session object, both as the
// creation response and as the payload of a completed-checkout event.
type CheckoutSession struct {
	ID              string            `json:"id"`
	URL             string            `json:"url"`
	PaymentIntentID string            `json:"payment_intent"`
	InvoiceID       string            `json:"invoice"`
	Currency        string            `json:"currency"`
	CustomerEmail   string            `json:"customer_email"`
	Metadata        map[string]string `json:"metadata"`
}

// PaymentIntent carries the charge reference used for receipt lookup.
type PaymentIntent struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	LatestCharge struct {
		ID         string `json:"id"`
		ReceiptURL string `json:"receipt_url"`
	} `json:"latest_charge"`
	LastPaymentError struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// Invoice carries the hosted invoice links.
type Invoice struct {
	ID               string `json:"id"`
	HostedInvoiceURL string `json:"hosted_invoice_url"`
	InvoicePDF       string `json:"invoice_pdf"`
}

// Event is a verified webhook event envelope.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func NewStripeClient(cfg StripeConfig) *StripeClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stripe.com"
	}

	return &StripeClient{
		baseURL:       cfg.BaseURL,
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// CreateCheckoutSession creates a hosted checkout session and returns the
// processor-issued redirect URL along with the session identifier.
func (sc *StripeClient) CreateCheckoutSession(ctx context.Context, params *CheckoutSessionParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")

	for i, item := range params.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", strings.ToLower(item.Currency))
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
		if item.Description != "" {
			form.Set(prefix+"[price_data][product_data][description]", item.Description)
		}
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitAmount, 10))
		form.Set(prefix+"[quantity]", strconv.Itoa(item.Quantity))
	}

	if params.CustomerEmail != "" {
		form.Set("customer_email", params.CustomerEmail)
	}

	form.Set("invoice_creation[enabled]", "true")

	// Route funds to the organizer's connected payout account.
	form.Set("payment_intent_data[application_fee_amount]", strconv.FormatInt(params.ApplicationFeeAmount, 10))
	form.Set("payment_intent_data[transfer_data][destination]", params.DestinationAccountID)

	// Metadata goes on both the session and the payment intent.
	for k, v := range params.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
		form.Set(fmt.Sprintf("payment_intent_data[metadata][%s]", k), v)
	}

	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	form.Set("expires_at", strconv.FormatInt(params.ExpiresAt, 10))

	var session CheckoutSession
	if err := sc.postForm(ctx, "/v1/checkout/sessions", form, &session); err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &session, nil
}

// GetPaymentIntent retrieves a payment intent with its latest charge
// expanded, used to pick up the receipt URL.
func (sc *StripeClient) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	var pi PaymentIntent
	path := "/v1/payment_intents/" + id + "?expand[]=latest_charge"
	if err := sc.get(ctx, path, &pi); err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}
	return &pi, nil
}

// GetInvoice retrieves the hosted invoice links for a session's invoice.
func (sc *StripeClient) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	var inv Invoice
	if err := sc.get(ctx, "/v1/invoices/"+id, &inv); err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return &inv, nil
}

// ConstructEvent verifies the webhook signature header against the shared
// secret and returns the decoded event. Verification fails closed: any
// parse or comparison problem yields ErrSignatureInvalid.
func (sc *StripeClient) ConstructEvent(payload []byte, sigHeader string) (*Event, error) {
	return constructEvent(payload, sigHeader, sc.webhookSecret, time.Now())
}

func constructEvent(payload []byte, sigHeader, secret string, now time.Time) (*Event, error) {
	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return nil, err
	}

	if now.Sub(time.Unix(timestamp, 0)) > signatureTolerance {
		return nil, fmt.Errorf("%w: timestamp outside tolerance", apperrors.ErrSignatureInvalid)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	verified := false
	for _, sig := range signatures {
		decoded, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			verified = true
			break
		}
	}

	if !verified {
		return nil, fmt.Errorf("%w: no matching v1 signature", apperrors.ErrSignatureInvalid)
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}

	return &event, nil
}

// parseSignatureHeader splits "t=<unix>,v1=<hex>[,v1=<hex>...]".
func parseSignatureHeader(header string) (int64, []string, error) {
	if header == "" {
		return 0, nil, fmt.Errorf("%w: missing signature header", apperrors.ErrSignatureInvalid)
	}

	var timestamp int64
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", apperrors.ErrSignatureInvalid)
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return 0, nil, fmt.Errorf("%w: malformed signature header", apperrors.ErrSignatureInvalid)
	}

	return timestamp, signatures, nil
}

func (sc *StripeClient) postForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sc.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return sc.do(req, out)
}

func (sc *StripeClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sc.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	return sc.do(req, out)
}

func (sc *StripeClient) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+sc.secretKey)

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("processor error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
