package monitoring

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	purchasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raffle_purchases_total",
		Help: "Completed purchase recordings by provider and status",
	}, []string{"provider", "status"})

	ticketsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raffle_tickets_issued_total",
		Help: "Ticket codes successfully reserved",
	})

	allocationConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raffle_allocation_conflicts_total",
		Help: "Candidate ticket codes rejected because the code was already taken",
	})

	emailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raffle_emails_total",
		Help: "Outbound email attempts by kind and status",
	}, []string{"kind", "status"})

	purchaseRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "raffle_purchase_records",
		Help: "Length of the purchase index list",
	})
)

func TrackPurchase(provider, status string) {
	purchasesTotal.WithLabelValues(provider, status).Inc()
}

func TrackTicketsIssued(n int) {
	ticketsIssued.Add(float64(n))
}

func TrackAllocationConflict() {
	allocationConflicts.Inc()
}

func TrackEmail(kind string, ok bool) {
	status := "sent"
	if !ok {
		status = "failed"
	}
	emailsTotal.WithLabelValues(kind, status).Inc()
}

// Monitor samples the purchase index length every 30 seconds until the
// context is cancelled.
func Monitor(ctx context.Context, client *redis.Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := client.LLen(ctx, "purchases:list").Result()
			if err != nil {
				log.Printf("Monitor: sample purchase records: %v", err)
				continue
			}
			purchaseRecords.Set(float64(n))
		}
	}
}
