package security

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles the purchase endpoints per client IP using a
// fixed one-minute window counter in Redis.
type RateLimiter struct {
	redis *redis.Client
	limit int
}

func NewRateLimiter(client *redis.Client, perMinute int) *RateLimiter {
	return &RateLimiter{redis: client, limit: perMinute}
}

// PurchaseRateLimit returns the middleware for the payment endpoints.
func (rl *RateLimiter) PurchaseRateLimit() echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: &redisStore{redis: rl.redis, limit: rl.limit},
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"error": "Too many requests, slow down",
			})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"error": "Too many requests, slow down",
			})
		},
	})
}

type redisStore struct {
	redis *redis.Client
	limit int
}

// Allow counts the request against the identifier's current minute window.
// Storage errors fail open: a Redis hiccup should not block sales.
func (s *redisStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := fmt.Sprintf("ratelimit:%s:%d", identifier, time.Now().Unix()/60)

	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("Allow: %s: %v", identifier, err)
		return true, nil
	}
	if count == 1 {
		if err := s.redis.Expire(ctx, key, time.Minute).Err(); err != nil {
			log.Printf("Allow: expire %s: %v", key, err)
		}
	}

	return count <= int64(s.limit), nil
}
