package paypalpay

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"

	"raffle-system/internal/payments"
	"raffle-system/internal/status"
)

type Config struct {
	ClientID string
	Secret   string
	Mode     string
}

// Configured reports whether PayPal credentials are present. Without them
// the confirm endpoint falls back to recording unverified purchases.
func (c Config) Configured() bool {
	return c.ClientID != "" && c.Secret != ""
}

// Client verifies PayPal orders server-side instead of trusting the amounts
// and statuses the browser reports.
type Client struct {
	pp *paypal.Client
}

func New(cfg Config) (*Client, error) {
	base := paypal.APIBaseSandBox
	if cfg.Mode == "live" {
		base = paypal.APIBaseLive
	}

	pp, err := paypal.NewClient(cfg.ClientID, cfg.Secret, base)
	if err != nil {
		return nil, fmt.Errorf("New: %w", err)
	}
	pp.Client = &http.Client{Timeout: 10 * time.Second}

	if _, err := pp.GetAccessToken(context.Background()); err != nil {
		return nil, fmt.Errorf("New: access token: %w", err)
	}

	return &Client{pp: pp}, nil
}

// VerifyOrder fetches the order from PayPal and returns its settled state.
func (c *Client) VerifyOrder(ctx context.Context, orderID string) (*payments.VerifiedOrder, error) {
	order, err := c.pp.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("VerifyOrder: %v: %w", err, status.ErrPaymentVerificationFailed)
	}

	verified := &payments.VerifiedOrder{
		OrderID: order.ID,
		Status:  order.Status,
	}
	if order.Payer != nil {
		verified.PayerID = order.Payer.PayerID
	}

	if len(order.PurchaseUnits) == 0 || order.PurchaseUnits[0].Amount == nil {
		return nil, fmt.Errorf("VerifyOrder: order %s has no purchase amount: %w", orderID, status.ErrPaymentVerificationFailed)
	}
	amount, err := decimal.NewFromString(order.PurchaseUnits[0].Amount.Value)
	if err != nil {
		return nil, fmt.Errorf("VerifyOrder: parse amount %q: %w", order.PurchaseUnits[0].Amount.Value, status.ErrPaymentVerificationFailed)
	}
	verified.Amount = amount

	return verified, nil
}
