package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"raffle-system/config"
	"raffle-system/handlers"
	"raffle-system/internal/payments"
	"raffle-system/internal/payments/paypalpay"
	"raffle-system/internal/payments/stripepay"
	"raffle-system/monitoring"
	"raffle-system/security"
	"raffle-system/services"
	"raffle-system/utils"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	// Initialize payment providers
	var stripeClient *stripepay.Client
	if cfg.Stripe.Configured() {
		stripeClient = stripepay.New(cfg.Stripe)
	} else {
		log.Println("Stripe credentials not set, card checkout disabled")
	}

	var paypalVerifier payments.Verifier
	if cfg.PayPal.Configured() {
		pp, err := paypalpay.New(cfg.PayPal)
		if err != nil {
			log.Printf("PayPal client init failed, purchases will be recorded unverified: %v", err)
		} else {
			paypalVerifier = pp
		}
	} else {
		log.Println("PayPal credentials not set, purchases will be recorded unverified")
	}

	// Initialize services
	ticketService := services.NewTicketService(redisClient)
	purchaseService := services.NewPurchaseService(redisClient)
	notifier := services.NewEmailNotifier(cfg)

	// Initialize handlers
	checkoutHandler := handlers.NewCheckoutHandler(stripeClient)
	webhookHandler := handlers.NewWebhookHandler(stripeClient, ticketService, purchaseService, notifier)
	confirmHandler := handlers.NewConfirmHandler(paypalVerifier, ticketService, purchaseService, notifier)
	purchasesHandler := handlers.NewPurchasesHandler(cfg, purchaseService)
	notificationsHandler := handlers.NewNotificationsHandler(cfg, notifier)

	rateLimiter := security.NewRateLimiter(redisClient, cfg.RateLimitPerMinute)

	// Create context for background tasks
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.EnableMetrics {
		go monitoring.Monitor(ctx, redisClient)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Printf("Metrics listening on :%s", cfg.MetricsPort)
			if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil {
				log.Printf("Metrics server: %v", err)
			}
		}()
	}

	// Register routes
	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", "Authorization", "Stripe-Signature"},
	}))

	purchaseLimit := rateLimiter.PurchaseRateLimit()

	// Payment endpoints
	e.POST("/api/checkout", checkoutHandler.CreateCheckout, purchaseLimit)
	e.POST("/api/webhook/stripe", webhookHandler.HandleStripeWebhook)
	e.POST("/api/purchases/confirm", confirmHandler.ConfirmPurchase, purchaseLimit)

	// Reporting endpoints
	e.GET("/api/purchases", purchasesHandler.ListPurchases)
	e.GET("/api/tickets/:code", purchasesHandler.GetTicket)

	// Admin endpoints
	e.POST("/api/notifications/send", notificationsHandler.Send)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		if err := utils.RedisHealthCheck(redisClient); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Setup graceful shutdown
	go handleShutdown(cancel, server, cfg.ShutdownTimeout)

	log.Printf("Server listening on :%s (%s)", cfg.Port, cfg.Environment)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc, server *http.Server, timeout time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), timeout)
	defer cancelTimeout()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}
