package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/shopspring/decimal"

	"raffle-system/internal/payments"
	"raffle-system/models"
	"raffle-system/services"
	"raffle-system/utils"
)

// ConfirmHandler records PayPal purchases after verifying the order
// against PayPal's API. When credentials are absent the purchase is
// recorded unverified rather than rejected, so a misconfigured sandbox
// never drops a real payment on the floor.
type ConfirmHandler struct {
	verifier  payments.Verifier
	breaker   *utils.CircuitBreaker
	tickets   *services.TicketService
	purchases *services.PurchaseService
	notifier  services.Notifier
}

func NewConfirmHandler(verifier payments.Verifier, tickets *services.TicketService, purchases *services.PurchaseService, notifier services.Notifier) *ConfirmHandler {
	return &ConfirmHandler{
		verifier:  verifier,
		breaker:   utils.NewCircuitBreaker("paypal-verify"),
		tickets:   tickets,
		purchases: purchases,
		notifier:  notifier,
	}
}

type confirmRequest struct {
	OrderID     string          `json:"orderId"`
	PayerID     string          `json:"payerId"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Amount      decimal.Decimal `json:"amount"`
	TicketCount int             `json:"ticketCount"`
	// Accepted for backwards compatibility with older clients; codes are
	// always minted server-side.
	TicketNumbers []string `json:"ticketNumbers"`
}

// ConfirmPurchase handles POST /api/purchases/confirm.
func (h *ConfirmHandler) ConfirmPurchase(c echo.Context) error {
	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "Invalid request body",
		})
	}

	if req.OrderID == "" || req.Name == "" || req.Email == "" || req.TicketCount < 1 || !req.Amount.IsPositive() {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":    "Missing required fields",
			"required": []string{"orderId", "name", "email", "amount", "ticketCount"},
		})
	}

	ctx := c.Request().Context()

	verified := false
	payerID := req.PayerID
	if h.verifier == nil {
		log.Printf("ConfirmPurchase: paypal credentials unavailable, recording order %s unverified", req.OrderID)
	} else {
		result, err := h.breaker.Execute(ctx, func() (any, error) {
			return h.verifier.VerifyOrder(ctx, req.OrderID)
		})
		if err != nil {
			log.Printf("ConfirmPurchase: verify %s: %v", req.OrderID, err)
			return c.JSON(http.StatusBadRequest, map[string]any{
				"error": "Payment verification failed",
			})
		}

		order := result.(*payments.VerifiedOrder)
		if !order.Completed() {
			return c.JSON(http.StatusBadRequest, map[string]any{
				"error":  "Payment not completed",
				"status": order.Status,
			})
		}
		if !order.AmountMatches(req.Amount) {
			log.Printf("ConfirmPurchase: amount mismatch for %s: claimed %s, settled %s",
				req.OrderID, req.Amount, order.Amount)
			return c.JSON(http.StatusBadRequest, map[string]any{
				"error":    "Amount mismatch",
				"expected": order.Amount,
				"received": req.Amount,
			})
		}

		verified = true
		if order.PayerID != "" {
			payerID = order.PayerID
		}
	}

	purchaseID, err := utils.PurchaseID("pp")
	if err != nil {
		log.Printf("ConfirmPurchase: purchase id: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Failed to process payment",
		})
	}

	owner, fresh, err := h.purchases.ClaimPayment(ctx, payments.ProviderPayPal, req.OrderID, purchaseID)
	if err != nil {
		log.Printf("ConfirmPurchase: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Failed to process payment",
		})
	}
	if !fresh {
		log.Printf("ConfirmPurchase: order %s already recorded as %s", req.OrderID, owner)
		return c.JSON(http.StatusOK, map[string]any{
			"success":    true,
			"duplicate":  true,
			"purchaseId": owner,
		})
	}

	codes, err := h.tickets.AllocateUnique(ctx, req.TicketCount, purchaseID)
	if err != nil {
		log.Printf("ConfirmPurchase: %v", err)
		h.purchases.ReleasePayment(ctx, payments.ProviderPayPal, req.OrderID)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Failed to allocate tickets",
		})
	}

	purchase := &models.Purchase{
		ID:            purchaseID,
		Name:          req.Name,
		Email:         req.Email,
		Amount:        models.Cents(req.Amount),
		TicketCount:   req.TicketCount,
		TicketNumbers: codes,
		Timestamp:     models.Now(time.Now()),
		Provider:      payments.ProviderPayPal,
		PayPalOrderID: req.OrderID,
		PayPalPayerID: payerID,
		Verified:      verified,
		Status:        "completed",
	}

	if err := h.purchases.RecordPurchase(ctx, purchase); err != nil {
		log.Printf("ConfirmPurchase: %v", err)
		h.tickets.Release(ctx, codes)
		h.purchases.ReleasePayment(ctx, payments.ProviderPayPal, req.OrderID)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Failed to record purchase",
		})
	}

	emailSent := sendConfirmation(h.notifier, purchase)
	h.notifier.PublishPurchase(purchase)

	resp := map[string]any{
		"success":       true,
		"verified":      verified,
		"purchaseId":    purchaseID,
		"ticketNumbers": codes,
		"paypalOrderId": req.OrderID,
		"emailSent":     emailSent,
	}
	if !verified {
		resp["message"] = "Recorded without server-side verification"
	}
	return c.JSON(http.StatusOK, resp)
}
