package handlers

import (
	"fmt"
	"log"
	"strings"

	"github.com/labstack/echo/v5"

	"raffle-system/config"
	"raffle-system/internal/status"
	"raffle-system/models"
	"raffle-system/monitoring"
	"raffle-system/services"
	"raffle-system/utils"
)

// requireAdmin checks the admin bearer token on the request. A bcrypt
// hash, when configured, wins over the plaintext token.
func requireAdmin(c echo.Context, cfg *config.Config) error {
	token, ok := strings.CutPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return fmt.Errorf("requireAdmin: no bearer token: %w", status.ErrUnauthorized)
	}

	if cfg.AdminTokenHash != "" {
		if !utils.CompareTokenHash(cfg.AdminTokenHash, token) {
			return fmt.Errorf("requireAdmin: %w", status.ErrUnauthorized)
		}
		return nil
	}
	if cfg.AdminToken != "" {
		if !utils.CompareToken(cfg.AdminToken, token) {
			return fmt.Errorf("requireAdmin: %w", status.ErrUnauthorized)
		}
		return nil
	}
	return fmt.Errorf("requireAdmin: no admin token configured: %w", status.ErrUnauthorized)
}

// sendConfirmation emails the buyer and reports whether it worked. Email
// failure never fails the purchase; the tickets are already theirs.
func sendConfirmation(n services.Notifier, p *models.Purchase) bool {
	err := n.SendConfirmation(p)
	if err != nil {
		log.Printf("sendConfirmation: %s: %v", p.ID, err)
	}
	monitoring.TrackEmail("confirmation", err == nil)
	return err == nil
}
