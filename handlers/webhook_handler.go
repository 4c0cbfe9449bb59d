package handlers

import (
	"io"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"raffle-system/internal/payments"
	"raffle-system/internal/payments/stripepay"
	"raffle-system/models"
	"raffle-system/services"
	"raffle-system/utils"
)

// WebhookHandler turns authenticated Stripe webhook deliveries into
// recorded purchases with freshly minted tickets.
type WebhookHandler struct {
	stripe    *stripepay.Client
	tickets   *services.TicketService
	purchases *services.PurchaseService
	notifier  services.Notifier
}

func NewWebhookHandler(stripe *stripepay.Client, tickets *services.TicketService, purchases *services.PurchaseService, notifier services.Notifier) *WebhookHandler {
	return &WebhookHandler{
		stripe:    stripe,
		tickets:   tickets,
		purchases: purchases,
		notifier:  notifier,
	}
}

// HandleStripeWebhook handles POST /api/webhook/stripe. Stripe retries
// deliveries, so the session id is claimed before any tickets are minted;
// a duplicate delivery short-circuits with the original purchase id.
func (h *WebhookHandler) HandleStripeWebhook(c echo.Context) error {
	if h.stripe == nil {
		log.Println("HandleStripeWebhook: stripe not configured")
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Webhook secret not configured",
		})
	}

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "Failed to read request body",
		})
	}

	event, err := h.stripe.ParseWebhookEvent(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		log.Printf("HandleStripeWebhook: %v", err)
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "Webhook signature verification failed",
		})
	}

	if !stripepay.CompletedSession(event) {
		return c.JSON(http.StatusOK, map[string]any{"received": true})
	}

	session, err := stripepay.SessionFromEvent(event)
	if err != nil {
		log.Printf("HandleStripeWebhook: %v", err)
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "Malformed checkout session",
		})
	}

	ctx := c.Request().Context()

	purchaseID, err := utils.PurchaseID("purchase")
	if err != nil {
		log.Printf("HandleStripeWebhook: purchase id: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Failed to process payment",
		})
	}

	owner, fresh, err := h.purchases.ClaimPayment(ctx, payments.ProviderStripe, session.SessionID, purchaseID)
	if err != nil {
		log.Printf("HandleStripeWebhook: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Failed to process payment",
		})
	}
	if !fresh {
		log.Printf("HandleStripeWebhook: duplicate delivery for session %s, purchase %s", session.SessionID, owner)
		return c.JSON(http.StatusOK, map[string]any{
			"received":   true,
			"purchaseId": owner,
			"duplicate":  true,
		})
	}

	codes, err := h.tickets.AllocateUnique(ctx, session.TicketCount, purchaseID)
	if err != nil {
		log.Printf("HandleStripeWebhook: %v", err)
		h.purchases.ReleasePayment(ctx, payments.ProviderStripe, session.SessionID)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Failed to allocate tickets",
		})
	}

	purchase := &models.Purchase{
		ID:              purchaseID,
		Name:            session.Name,
		Email:           session.Email,
		Amount:          session.AmountCents,
		TicketCount:     session.TicketCount,
		TicketNumbers:   codes,
		Timestamp:       models.Now(time.Now()),
		Provider:        payments.ProviderStripe,
		StripeSessionID: session.SessionID,
		StripePaymentID: session.PaymentID,
		Verified:        true,
		Status:          "completed",
	}

	if err := h.purchases.RecordPurchase(ctx, purchase); err != nil {
		log.Printf("HandleStripeWebhook: %v", err)
		h.tickets.Release(ctx, codes)
		h.purchases.ReleasePayment(ctx, payments.ProviderStripe, session.SessionID)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Failed to record purchase",
		})
	}

	emailSent := sendConfirmation(h.notifier, purchase)
	h.notifier.PublishPurchase(purchase)

	return c.JSON(http.StatusOK, map[string]any{
		"received":   true,
		"purchaseId": purchaseID,
		"emailSent":  emailSent,
	})
}
