package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/redis/go-redis/v9"

	"raffle-system/internal/status"
	"raffle-system/models"
	"raffle-system/monitoring"
)

const purchaseListKey = "purchases:list"

func purchaseKey(id string) string {
	return fmt.Sprintf("purchase:%s", id)
}

func paymentRefKey(provider, externalID string) string {
	return fmt.Sprintf("payment_ref:%s:%s", provider, externalID)
}

// PurchaseService persists purchase records in Redis: one JSON value per
// purchase plus a newest-first id list for the admin listing. It also owns
// the payment-reference claims that make webhook retries idempotent.
type PurchaseService struct {
	redis *redis.Client
}

func NewPurchaseService(client *redis.Client) *PurchaseService {
	return &PurchaseService{redis: client}
}

// ClaimPayment marks a provider payment reference as being processed under
// purchaseID. It returns the owning purchase id and whether this caller won
// the claim; a lost claim means the payment was already handled (or is being
// handled) and the caller should return the existing result instead of
// minting tickets again.
func (s *PurchaseService) ClaimPayment(ctx context.Context, provider, externalID, purchaseID string) (string, bool, error) {
	key := paymentRefKey(provider, externalID)

	ok, err := s.redis.SetNX(ctx, key, purchaseID, 0).Result()
	if err != nil {
		return "", false, fmt.Errorf("ClaimPayment: %s: %v: %w", key, err, status.ErrStorageFailure)
	}
	if ok {
		return purchaseID, true, nil
	}

	existing, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return "", false, fmt.Errorf("ClaimPayment: read existing claim %s: %v: %w", key, err, status.ErrStorageFailure)
	}
	return existing, false, nil
}

// ReleasePayment withdraws a claim so a later retry of the same payment can
// start over. Called when processing fails after the claim was won.
func (s *PurchaseService) ReleasePayment(ctx context.Context, provider, externalID string) {
	if err := s.redis.Del(ctx, paymentRefKey(provider, externalID)).Err(); err != nil {
		log.Printf("ReleasePayment: %s/%s: %v", provider, externalID, err)
	}
}

// RecordPurchase writes the purchase record and prepends its id to the
// listing index.
func (s *PurchaseService) RecordPurchase(ctx context.Context, p *models.Purchase) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("RecordPurchase: marshal %s: %v: %w", p.ID, err, status.ErrStorageFailure)
	}

	if err := s.redis.Set(ctx, purchaseKey(p.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("RecordPurchase: store %s: %v: %w", p.ID, err, status.ErrStorageFailure)
	}

	if err := s.redis.LPush(ctx, purchaseListKey, p.ID).Err(); err != nil {
		return fmt.Errorf("RecordPurchase: index %s: %v: %w", p.ID, err, status.ErrStorageFailure)
	}

	monitoring.TrackPurchase(p.Provider, p.Status)
	return nil
}

// GetPurchase returns the purchase record, or (nil, nil) when no record
// exists under that id.
func (s *PurchaseService) GetPurchase(ctx context.Context, id string) (*models.Purchase, error) {
	data, err := s.redis.Get(ctx, purchaseKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetPurchase: %s: %v: %w", id, err, status.ErrStorageFailure)
	}

	var p models.Purchase
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("GetPurchase: decode %s: %v: %w", id, err, status.ErrStorageFailure)
	}
	return &p, nil
}

// ListPurchases loads every purchase, newest first, and computes the
// aggregate summary. Index entries whose record has vanished are skipped.
func (s *PurchaseService) ListPurchases(ctx context.Context) ([]*models.Purchase, *models.Summary, error) {
	ids, err := s.redis.LRange(ctx, purchaseListKey, 0, -1).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("ListPurchases: index: %v: %w", err, status.ErrStorageFailure)
	}

	purchases := make([]*models.Purchase, 0, len(ids))
	summary := &models.Summary{}
	var revenueCents int64

	for _, id := range ids {
		p, err := s.GetPurchase(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("ListPurchases: %w", err)
		}
		if p == nil {
			log.Printf("ListPurchases: index entry %s has no record, skipping", id)
			continue
		}
		purchases = append(purchases, p)
		revenueCents += p.Amount
		summary.TotalTickets += p.TicketCount
	}

	sort.SliceStable(purchases, func(i, j int) bool {
		return purchases[i].Timestamp > purchases[j].Timestamp
	})

	summary.TotalRevenue = float64(revenueCents) / 100
	summary.TotalPurchases = len(purchases)
	return purchases, summary, nil
}

// FindByTicket resolves a ticket code to the purchase that holds it.
func (s *PurchaseService) FindByTicket(ctx context.Context, code string) (*models.Purchase, error) {
	purchaseID, err := s.redis.Get(ctx, ticketKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("FindByTicket: %s: %w", code, status.ErrTicketNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("FindByTicket: %s: %v: %w", code, err, status.ErrStorageFailure)
	}

	p, err := s.GetPurchase(ctx, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("FindByTicket: %w", err)
	}
	if p == nil {
		// Reserved during an in-flight purchase; the record lands shortly.
		return nil, fmt.Errorf("FindByTicket: %s reserved but unrecorded: %w", code, status.ErrTicketNotFound)
	}
	return p, nil
}
