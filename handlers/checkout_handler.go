package handlers

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v5"

	"raffle-system/internal/payments/stripepay"
	"raffle-system/utils"
)

// ticketPrices maps bundle size to price in cents. Only these bundles are
// sold; anything else is rejected before touching Stripe.
var ticketPrices = map[int]int64{
	1: 1000,
	3: 2000,
	7: 4000,
}

// CheckoutHandler opens Stripe Checkout sessions for ticket bundles.
type CheckoutHandler struct {
	stripe *stripepay.Client
}

func NewCheckoutHandler(stripe *stripepay.Client) *CheckoutHandler {
	return &CheckoutHandler{stripe: stripe}
}

type checkoutRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	TicketCount int    `json:"ticketCount"`
}

// CreateCheckout handles POST /api/checkout.
func (h *CheckoutHandler) CreateCheckout(c echo.Context) error {
	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "Invalid request body",
		})
	}

	if req.Name == "" || req.Email == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":    "Missing required fields",
			"required": []string{"name", "email", "ticketCount"},
		})
	}

	amount, ok := ticketPrices[req.TicketCount]
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "Invalid ticket count, choose 1, 3 or 7",
		})
	}

	if h.stripe == nil {
		log.Println("CreateCheckout: stripe not configured")
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Card payments are not available right now",
		})
	}

	reference, err := utils.PurchaseID("checkout")
	if err != nil {
		log.Printf("CreateCheckout: reference: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Failed to create checkout session",
		})
	}

	session, err := h.stripe.CreateCheckoutSession(stripepay.CheckoutParams{
		Name:        req.Name,
		Email:       req.Email,
		TicketCount: req.TicketCount,
		AmountCents: amount,
		Reference:   reference,
	})
	if err != nil {
		log.Printf("CreateCheckout: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Failed to create checkout session",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"sessionId": session.ID,
		"url":       session.URL,
	})
}
