package services

import (
	"context"
	"fmt"
	"log"
	"math/rand"

	"github.com/redis/go-redis/v9"

	"raffle-system/internal/status"
	"raffle-system/monitoring"
	"raffle-system/utils"
)

// attemptsPerTicket bounds the allocation loop at 10 candidate draws per
// requested ticket. At 33.5M possible codes the budget only matters when
// the index is nearly saturated.
const attemptsPerTicket = 10

func ticketKey(code string) string {
	return fmt.Sprintf("ticket:%s", code)
}

// TicketService allocates unique ticket codes by reserving each candidate
// in Redis with SETNX. The reservation doubles as the ticket index entry,
// so two concurrent purchases can never hold the same code.
type TicketService struct {
	redis *redis.Client
	seed  func() int64
}

func NewTicketService(client *redis.Client) *TicketService {
	return &TicketService{
		redis: client,
		seed:  utils.Seed,
	}
}

// AllocateUnique reserves count fresh ticket codes for purchaseID. On any
// failure the codes reserved so far are released before the error returns.
func (s *TicketService) AllocateUnique(ctx context.Context, count int, purchaseID string) ([]string, error) {
	if count < 1 {
		return nil, fmt.Errorf("AllocateUnique: count %d: %w", count, status.ErrValidation)
	}

	rnd := rand.New(rand.NewSource(s.seed()))
	budget := count * attemptsPerTicket

	accepted := make(map[string]struct{}, count)
	codes := make([]string, 0, count)

	for attempt := 0; attempt < budget && len(codes) < count; attempt++ {
		code := utils.TicketCode(rnd)
		if _, dup := accepted[code]; dup {
			continue
		}

		ok, err := s.redis.SetNX(ctx, ticketKey(code), purchaseID, 0).Result()
		if err != nil {
			s.Release(ctx, codes)
			return nil, fmt.Errorf("AllocateUnique: reserve %s: %v: %w", code, err, status.ErrStorageFailure)
		}
		if !ok {
			monitoring.TrackAllocationConflict()
			continue
		}

		accepted[code] = struct{}{}
		codes = append(codes, code)
	}

	if len(codes) < count {
		s.Release(ctx, codes)
		return nil, fmt.Errorf("AllocateUnique: %d of %d after %d attempts: %w",
			len(codes), count, budget, status.ErrAllocationExhausted)
	}

	monitoring.TrackTicketsIssued(count)
	return codes, nil
}

// Release frees previously reserved ticket codes. Used when a purchase
// fails after allocation; best effort, the orphaned reservation is only a
// cosmetic leak if the DEL itself fails.
func (s *TicketService) Release(ctx context.Context, codes []string) {
	if len(codes) == 0 {
		return
	}

	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = ticketKey(code)
	}

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		log.Printf("Release: %d ticket reservations: %v", len(codes), err)
	}
}
