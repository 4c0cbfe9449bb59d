package payments

import (
	"context"

	"github.com/shopspring/decimal"
)

const (
	ProviderStripe = "stripe"
	ProviderPayPal = "paypal"
)

// amountTolerance is the largest allowed difference between the amount the
// client claims and the amount the provider settled.
var amountTolerance = decimal.NewFromFloat(0.01)

// VerifiedOrder is the provider's view of an order after server-side
// verification.
type VerifiedOrder struct {
	OrderID string
	Status  string
	Amount  decimal.Decimal
	PayerID string
}

// Completed reports whether the provider considers the order paid.
func (o *VerifiedOrder) Completed() bool {
	return o.Status == "COMPLETED" || o.Status == "APPROVED"
}

// AmountMatches reports whether the claimed amount agrees with the settled
// amount within a one-cent tolerance.
func (o *VerifiedOrder) AmountMatches(claimed decimal.Decimal) bool {
	return o.Amount.Sub(claimed).Abs().LessThanOrEqual(amountTolerance)
}

// Verifier fetches an order from a payment provider for server-side
// verification.
type Verifier interface {
	VerifyOrder(ctx context.Context, orderID string) (*VerifiedOrder, error)
}
