package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"empiria/internal/cache"
	apperrors "empiria/internal/errors"
	"empiria/internal/external"
	"empiria/internal/metrics"
	"empiria/internal/models"
	"empiria/internal/service"
)

type Handlers struct {
	services    *service.Services
	stripe      *external.StripeClient
	cacheClient *cache.Client
}

func NewHandlers(services *service.Services, stripe *external.StripeClient, cacheClient *cache.Client) *Handlers {
	return &Handlers{
		services:    services,
		stripe:      stripe,
		cacheClient: cacheClient,
	}
}

// CreateCheckout - POST /api/checkout
// Validate the selection, build the processor session and return its URL.
func (h *Handlers) CreateCheckout(c *gin.Context) {
	var req models.CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Populated by auth middleware when a session user exists; guests
	// proceed with contact email only.
	if userID := c.GetString("user_id"); userID != "" {
		req.UserID = userID
	}

	response, err := h.services.Checkout.CreateSession(c.Request.Context(), &req)
	if err != nil {
		status, reason := checkoutErrorStatus(err)
		metrics.CheckoutFailed(reason)

		if status == http.StatusInternalServerError {
			slog.Error("Failed to create checkout session", "error", err, "event_id", req.EventID)
			c.JSON(status, gin.H{"error": "Failed to create checkout session"})
			return
		}

		slog.Info("Checkout rejected", "reason", reason, "event_id", req.EventID)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, response)
}

// checkoutErrorStatus maps service sentinels to HTTP statuses and a
// metric label. Unknown errors are internal.
func checkoutErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrEventNotFound):
		return http.StatusNotFound, "event_not_found"
	case errors.Is(err, apperrors.ErrEventUnavailable):
		return http.StatusConflict, "event_unavailable"
	case errors.Is(err, apperrors.ErrPayoutNotConfigured):
		return http.StatusConflict, "payout_not_configured"
	case errors.Is(err, apperrors.ErrTierNotFound):
		return http.StatusBadRequest, "tier_not_found"
	case errors.Is(err, apperrors.ErrQuantityOutOfRange):
		return http.StatusBadRequest, "quantity_out_of_range"
	case errors.Is(err, apperrors.ErrInsufficientInventory):
		return http.StatusConflict, "insufficient_inventory"
	case errors.Is(err, apperrors.ErrSalesNotStarted):
		return http.StatusConflict, "sales_not_started"
	case errors.Is(err, apperrors.ErrSalesEnded):
		return http.StatusConflict, "sales_ended"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// CheckoutStatus - GET /api/checkout/status?session_id=...
// Polled by the confirmation page. Returns "processing" until the
// webhook-driven fulfillment commits, then "completed" with the order id.
func (h *Handlers) CheckoutStatus(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	if h.cacheClient != nil {
		if cached, err := h.cacheClient.GetCheckoutStatus(c.Request.Context(), sessionID); err == nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	status, err := h.services.Fulfillment.Status(c.Request.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to look up checkout status", "error", err, "session_id", sessionID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up checkout status"})
		return
	}

	// Completed is terminal and safe to cache; processing must stay fresh.
	if status.Status == "completed" && h.cacheClient != nil {
		if err := h.cacheClient.SetCheckoutStatus(c.Request.Context(), sessionID, status); err != nil {
			slog.Warn("Failed to cache checkout status", "error", err, "session_id", sessionID)
		}
	}

	c.JSON(http.StatusOK, status)
}

// StripeWebhook - POST /api/webhooks/stripe
// Verify the signature over the raw body, dispatch the event, and
// acknowledge. After signature verification the endpoint always returns
// 200: a fulfillment failure is handled out of band, and a non-2xx would
// only trigger redelivery of an event we already know how to handle.
func (h *Handlers) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	event, err := h.stripe.ConstructEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		slog.Warn("Webhook signature verification failed", "error", err)
		metrics.WebhookEvent("unknown", "signature_invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	ctx := c.Request.Context()

	switch event.Type {
	case "checkout.session.completed":
		var session external.CheckoutSession
		if err := json.Unmarshal(event.Data.Object, &session); err != nil {
			slog.Error("Failed to decode checkout session payload", "error", err, "event_id", event.ID)
			metrics.WebhookEvent(event.Type, "decode_error")
			break
		}

		if _, _, err := h.services.Fulfillment.HandleCheckoutCompleted(ctx, &session); err != nil {
			// The buyer has paid and we could not issue tickets. The
			// failure event published by the reconciler drives remediation.
			slog.Error("CRITICAL: fulfillment failed for paid session",
				"error", err,
				"session_id", session.ID,
				"event_id", event.ID)
			metrics.WebhookEvent(event.Type, "fulfillment_failed")
			break
		}
		metrics.WebhookEvent(event.Type, "ok")

	case "payment_intent.payment_failed":
		var intent external.PaymentIntent
		if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
			slog.Error("Failed to decode payment intent payload", "error", err, "event_id", event.ID)
			metrics.WebhookEvent(event.Type, "decode_error")
			break
		}

		h.services.Fulfillment.HandlePaymentFailed(ctx, &intent)
		metrics.WebhookEvent(event.Type, "ok")

	default:
		metrics.WebhookEvent(event.Type, "ignored")
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// HealthCheck - GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
