package external

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

// MailClient sends transactional mail through an HTTP email API.
type MailClient struct {
	baseURL    string
	apiKey     string
	from       string
	httpClient *http.Client
}

type EmailConfig struct {
	BaseURL string
	APIKey  string
	From    string
	Timeout time.Duration
}

// EmailLineItem is one order-summary row in the confirmation email.
type EmailLineItem struct {
	TierName  string
	Quantity  int
	UnitPrice string
}

// EmailTicket is one per-ticket QR card in the confirmation email.
type EmailTicket struct {
	ID       string
	Secret   string
	TierName string
}

// OrderEmail is everything needed to render and send one order
// confirmation message.
type OrderEmail struct {
	To           string
	AttendeeName string
	OrderID      string
	EventTitle   string
	EventDate    time.Time
	EventEndDate *time.Time
	VenueName    string
	City         string
	LineItems    []EmailLineItem
	Total        string
	Currency     string
	Tickets      []EmailTicket
	ReceiptURL   string
	InvoiceURL   string
	InvoicePDF   string
}

type sendEmailRequest struct {
	From        string            `json:"from"`
	To          []string          `json:"to"`
	Subject     string            `json:"subject"`
	HTML        string            `json:"html"`
	Attachments []emailAttachment `json:"attachments,omitempty"`
}

type emailAttachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id"`
}

type sendEmailResponse struct {
	ID string `json:"id"`
}

func NewMailClient(cfg EmailConfig) *MailClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.resend.com"
	}

	return &MailClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		from:    cfg.From,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// SendOrderConfirmation renders the confirmation message with one QR PNG
// attachment per ticket and dispatches it.
func (mc *MailClient) SendOrderConfirmation(ctx context.Context, email *OrderEmail) error {
	attachments := make([]emailAttachment, 0, len(email.Tickets))
	for _, t := range email.Tickets {
		png, err := qrcode.Encode(t.Secret, qrcode.Medium, 200)
		if err != nil {
			return fmt.Errorf("failed to encode QR code for ticket %s: %w", t.ID, err)
		}
		attachments = append(attachments, emailAttachment{
			Filename:    "qr-" + t.ID + ".png",
			Content:     base64.StdEncoding.EncodeToString(png),
			ContentType: "image/png",
			ContentID:   "qr-" + t.ID,
		})
	}

	req := sendEmailRequest{
		From:        mc.from,
		To:          []string{email.To},
		Subject:     fmt.Sprintf("Your tickets for %s — Order #%s", email.EventTitle, shortID(email.OrderID)),
		HTML:        buildOrderEmailHTML(email),
		Attachments: attachments,
	}

	jsonBody, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, mc.baseURL+"/emails", bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+mc.apiKey)

	resp, err := mc.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("email API returned status %d", resp.StatusCode)
	}

	var result sendEmailResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatEventDate(start time.Time, end *time.Time) string {
	dateStr := start.Format("Monday, January 2, 2006")
	timeStr := start.Format("3:04 PM")
	if end != nil {
		return fmt.Sprintf("%s · %s – %s", dateStr, timeStr, end.Format("3:04 PM"))
	}
	return fmt.Sprintf("%s · %s", dateStr, timeStr)
}

func buildOrderEmailHTML(email *OrderEmail) string {
	var b strings.Builder

	venue := email.VenueName
	if email.City != "" {
		if venue != "" {
			venue += ", "
		}
		venue += email.City
	}

	name := email.AttendeeName
	if name == "" {
		name = "there"
	}

	b.WriteString(`<!DOCTYPE html><html><body style="font-family: sans-serif; color: #111827;">`)
	fmt.Fprintf(&b, `<h2>You're all set, %s!</h2>`, name)
	b.WriteString(`<p>Your order has been confirmed. Here are your tickets and order details.</p>`)

	fmt.Fprintf(&b, `<h3>%s</h3><p>%s</p>`, email.EventTitle, formatEventDate(email.EventDate, email.EventEndDate))
	if venue != "" {
		fmt.Fprintf(&b, `<p>%s</p>`, venue)
	}

	b.WriteString(`<h3>Order Summary</h3><table border="1" cellpadding="6" cellspacing="0">`)
	b.WriteString(`<tr><th>Tier</th><th>Qty</th><th>Price</th></tr>`)
	for _, item := range email.LineItems {
		fmt.Fprintf(&b, `<tr><td>%s</td><td>%d</td><td>%s %s</td></tr>`,
			item.TierName, item.Quantity, item.UnitPrice, strings.ToUpper(email.Currency))
	}
	fmt.Fprintf(&b, `<tr><td colspan="2"><strong>Total</strong></td><td><strong>%s %s</strong></td></tr>`,
		email.Total, strings.ToUpper(email.Currency))
	b.WriteString(`</table>`)
	fmt.Fprintf(&b, `<p>Order #%s</p>`, shortID(email.OrderID))

	b.WriteString(`<h3>Your Tickets</h3><p>Show the QR code at the venue entrance for check-in.</p>`)
	for _, t := range email.Tickets {
		fmt.Fprintf(&b, `<div><img src="cid:qr-%s" width="160" height="160" alt="QR Code"/><p>%s — Ticket #%s</p></div>`,
			t.ID, t.TierName, shortID(t.ID))
	}

	if email.ReceiptURL != "" {
		fmt.Fprintf(&b, `<p><a href="%s">View payment receipt</a></p>`, email.ReceiptURL)
	}
	if email.InvoiceURL != "" {
		fmt.Fprintf(&b, `<p><a href="%s">View invoice</a></p>`, email.InvoiceURL)
	}
	if email.InvoicePDF != "" {
		fmt.Fprintf(&b, `<p><a href="%s">Download invoice PDF</a></p>`, email.InvoicePDF)
	}

	b.WriteString(`</body></html>`)
	return b.String()
}
