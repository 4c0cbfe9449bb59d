package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPurchase_JSONFieldNames(t *testing.T) {
	p := Purchase{
		ID:              "purchase_1757410096123_k3j9x2m4q",
		Name:            "Jordan Blake",
		Email:           "jordan@example.com",
		Amount:          2000,
		TicketCount:     3,
		TicketNumbers:   []string{"CALABA-ABCDE", "CALABA-FGHJK", "CALABA-MNPQR"},
		Timestamp:       "2026-03-01T12:00:00Z",
		Provider:        "stripe",
		StripeSessionID: "cs_test_123",
		Verified:        true,
		Status:          "completed",
	}

	data, err := json.Marshal(p)
	assert.NoError(t, err)

	var m map[string]any
	assert.NoError(t, json.Unmarshal(data, &m))

	assert.Equal(t, float64(2000), m["amount"])
	assert.Equal(t, float64(3), m["ticketCount"])
	assert.Equal(t, "cs_test_123", m["stripeSessionId"])
	assert.NotContains(t, m, "paypalOrderId")
}

func TestCents(t *testing.T) {
	cases := []struct {
		amount string
		want   int64
	}{
		{"20.00", 2000},
		{"20.004", 2000},
		{"19.98", 1998},
		{"19.995", 2000},
		{"10", 1000},
	}

	for _, tc := range cases {
		amount, err := decimal.NewFromString(tc.amount)
		assert.NoError(t, err)
		assert.Equal(t, tc.want, Cents(amount), "amount %s", tc.amount)
	}
}

func TestNow_RFC3339UTC(t *testing.T) {
	at := time.Date(2026, 3, 1, 7, 30, 0, 0, time.FixedZone("PST", -8*3600))
	assert.Equal(t, "2026-03-01T15:30:00Z", Now(at))
}
