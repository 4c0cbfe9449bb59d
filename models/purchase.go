package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase is the persisted record of one completed (or provisionally
// accepted) raffle purchase. Amount is stored in cents to keep the ledger
// free of float drift.
type Purchase struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Amount          int64    `json:"amount"`
	TicketCount     int      `json:"ticketCount"`
	TicketNumbers   []string `json:"ticketNumbers"`
	Timestamp       string   `json:"timestamp"`
	Provider        string   `json:"provider"`
	StripeSessionID string   `json:"stripeSessionId,omitempty"`
	StripePaymentID string   `json:"stripePaymentId,omitempty"`
	PayPalOrderID   string   `json:"paypalOrderId,omitempty"`
	PayPalPayerID   string   `json:"paypalPayerId,omitempty"`
	Verified        bool     `json:"verified"`
	Status          string   `json:"status"`
}

// Summary is the public aggregate over all purchases. TotalRevenue is in
// currency units (dollars), converted from the cent-denominated records.
type Summary struct {
	TotalRevenue   float64 `json:"totalRevenue"`
	TotalTickets   int     `json:"totalTickets"`
	TotalPurchases int     `json:"totalPurchases"`
}

// Cents converts a currency amount to integer cents, rounding half away
// from zero so 19.995 lands on 2000 rather than 1999.
func Cents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Now formats the given instant the way purchase records store timestamps.
func Now(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
