package handlers

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/shopspring/decimal"

	"raffle-system/config"
	"raffle-system/models"
	"raffle-system/monitoring"
	"raffle-system/services"
)

// NotificationsHandler lets the admin re-send confirmation emails and send
// winner certificates from the admin console.
type NotificationsHandler struct {
	cfg      *config.Config
	notifier services.Notifier
}

func NewNotificationsHandler(cfg *config.Config, notifier services.Notifier) *NotificationsHandler {
	return &NotificationsHandler{cfg: cfg, notifier: notifier}
}

type sendRequest struct {
	ToEmail     string          `json:"to_email"`
	ToName      string          `json:"to_name"`
	Type        string          `json:"type"`
	TicketImage string          `json:"ticket_image"`
	TicketIDs   []string        `json:"ticket_ids"`
	TicketCount int             `json:"ticket_count"`
	Amount      decimal.Decimal `json:"amount"`
}

// Send handles POST /api/notifications/send. Admin only.
func (h *NotificationsHandler) Send(c echo.Context) error {
	if err := requireAdmin(c, h.cfg); err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]any{
			"error":   "Unauthorized",
			"message": "Admin token required",
		})
	}

	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "Invalid request body",
		})
	}

	if req.ToEmail == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":    "Missing required fields",
			"required": []string{"to_email"},
		})
	}

	if req.Type == "certificate" {
		if req.TicketImage == "" {
			return c.JSON(http.StatusBadRequest, map[string]any{
				"error":    "Missing required fields",
				"required": []string{"ticket_image"},
			})
		}

		err := h.notifier.SendCertificate(req.ToEmail, req.ToName, req.TicketImage)
		monitoring.TrackEmail("certificate", err == nil)
		if err != nil {
			log.Printf("Send: certificate to %s: %v", req.ToEmail, err)
			return c.JSON(http.StatusInternalServerError, map[string]any{
				"error": "Failed to send certificate",
			})
		}
		return c.JSON(http.StatusOK, map[string]any{"sent": true})
	}

	count := req.TicketCount
	if count == 0 {
		count = len(req.TicketIDs)
	}
	purchase := &models.Purchase{
		Name:          req.ToName,
		Email:         req.ToEmail,
		Amount:        models.Cents(req.Amount),
		TicketCount:   count,
		TicketNumbers: req.TicketIDs,
	}

	err := h.notifier.SendConfirmation(purchase)
	monitoring.TrackEmail("confirmation", err == nil)
	if err != nil {
		log.Printf("Send: confirmation to %s: %v", req.ToEmail, err)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Failed to send confirmation",
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"sent": true})
}
