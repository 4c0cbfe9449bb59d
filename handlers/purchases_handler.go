package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v5"

	"raffle-system/config"
	"raffle-system/internal/status"
	"raffle-system/services"
)

// PurchasesHandler serves the purchase listing and ticket lookups. The
// aggregate summary is public; individual records require the admin token.
type PurchasesHandler struct {
	cfg       *config.Config
	purchases *services.PurchaseService
}

func NewPurchasesHandler(cfg *config.Config, purchases *services.PurchaseService) *PurchasesHandler {
	return &PurchasesHandler{cfg: cfg, purchases: purchases}
}

// ListPurchases handles GET /api/purchases. With ?summary=true it returns
// only the public aggregate; otherwise the full listing, admin only.
func (h *PurchasesHandler) ListPurchases(c echo.Context) error {
	purchases, summary, err := h.purchases.ListPurchases(c.Request().Context())
	if err != nil {
		log.Printf("ListPurchases: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Failed to load purchases",
		})
	}

	if c.QueryParam("summary") == "true" {
		return c.JSON(http.StatusOK, summary)
	}

	if err := requireAdmin(c, h.cfg); err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]any{
			"error":   "Unauthorized",
			"message": "Admin token required for full purchase details",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"purchases": purchases,
		"summary":   summary,
	})
}

// GetTicket handles GET /api/tickets/:code, resolving a ticket code to the
// purchase that holds it. Admin only.
func (h *PurchasesHandler) GetTicket(c echo.Context) error {
	if err := requireAdmin(c, h.cfg); err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]any{
			"error":   "Unauthorized",
			"message": "Admin token required for ticket lookups",
		})
	}

	code := c.PathParam("code")
	purchase, err := h.purchases.FindByTicket(c.Request().Context(), code)
	if errors.Is(err, status.ErrTicketNotFound) {
		return c.JSON(http.StatusNotFound, map[string]any{
			"error": "Ticket not found",
		})
	}
	if err != nil {
		log.Printf("GetTicket: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Failed to look up ticket",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"ticket":   code,
		"purchase": purchase,
	})
}
