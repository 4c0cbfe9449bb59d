package stripepay

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/checkout/session"
	"github.com/stripe/stripe-go/v78/webhook"

	"raffle-system/internal/status"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// Configured reports whether enough credentials are present to talk to
// Stripe at all. The webhook secret is checked separately at parse time.
func (c Config) Configured() bool {
	return c.SecretKey != ""
}

// Client wraps the Stripe SDK for the two operations the raffle needs:
// creating Checkout sessions and authenticating webhook deliveries.
type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	return &Client{cfg: cfg}
}

// CheckoutParams describes one hosted-checkout purchase.
type CheckoutParams struct {
	Name        string
	Email       string
	TicketCount int
	AmountCents int64
	Reference   string
}

// CreateCheckoutSession opens a hosted Stripe Checkout session. The ticket
// count and buyer identity travel in session metadata so the webhook can
// mint tickets without a second lookup.
func (c *Client) CreateCheckoutSession(p CheckoutParams) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(p.Email),
		SuccessURL:    stripe.String(c.cfg.SuccessURL),
		CancelURL:     stripe.String(c.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Raffle Tickets (%d)", p.TicketCount)),
					},
					UnitAmount: stripe.Int64(p.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(p.Reference),
	}
	params.AddMetadata("ticketCount", strconv.Itoa(p.TicketCount))
	params.AddMetadata("customerName", p.Name)
	params.AddMetadata("customerEmail", p.Email)
	params.AddMetadata("purpose", "raffle-tickets")

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("CreateCheckoutSession: %w", err)
	}
	return s, nil
}

// ParseWebhookEvent authenticates a webhook delivery against the signing
// secret and decodes the event envelope.
func (c *Client) ParseWebhookEvent(payload []byte, signature string) (*stripe.Event, error) {
	if c.cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("ParseWebhookEvent: webhook secret not configured: %w", status.ErrPaymentCredentialsUnavailable)
	}
	event, err := webhook.ConstructEvent(payload, signature, c.cfg.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("ParseWebhookEvent: %v: %w", err, status.ErrPaymentVerificationFailed)
	}
	return &event, nil
}

// CompletedSession reports whether the event is the one delivery we act on.
func CompletedSession(event *stripe.Event) bool {
	return event.Type == stripe.EventTypeCheckoutSessionCompleted
}

// SessionDetails is the slice of a completed Checkout session the purchase
// recorder needs.
type SessionDetails struct {
	SessionID   string
	PaymentID   string
	Name        string
	Email       string
	TicketCount int
	AmountCents int64
}

// SessionFromEvent extracts purchase details from a completed-session event.
func SessionFromEvent(event *stripe.Event) (*SessionDetails, error) {
	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("SessionFromEvent: decode session: %v: %w", err, status.ErrValidation)
	}

	count, err := strconv.Atoi(s.Metadata["ticketCount"])
	if err != nil || count < 1 {
		return nil, fmt.Errorf("SessionFromEvent: bad ticketCount %q: %w", s.Metadata["ticketCount"], status.ErrValidation)
	}

	email := s.Metadata["customerEmail"]
	if email == "" {
		email = s.CustomerEmail
	}

	details := &SessionDetails{
		SessionID:   s.ID,
		Name:        s.Metadata["customerName"],
		Email:       email,
		TicketCount: count,
		AmountCents: s.AmountTotal,
	}
	if s.PaymentIntent != nil {
		details.PaymentID = s.PaymentIntent.ID
	}
	return details, nil
}
