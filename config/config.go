package config

import (
	"os"
	"strconv"
	"time"

	"raffle-system/internal/payments/paypalpay"
	"raffle-system/internal/payments/stripepay"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL string

	// Admin access for the full purchase listing. AdminTokenHash, when set,
	// takes precedence and is a bcrypt hash of the token.
	AdminToken     string
	AdminTokenHash string

	// Payment providers
	Stripe stripepay.Config
	PayPal paypalpay.Config

	// Email configuration
	SMTPHost      string
	SMTPPort      string
	SMTPUser      string
	SMTPPassword  string
	EmailFrom     string
	EmailFromName string

	// Raffle presentation used in emails
	RaffleName   string
	EventDetails string

	// PubNub configuration (optional realtime purchase feed)
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubUUID         string
	PubNubChannel      string

	// Rate limiting
	RateLimitPerMinute int

	// Timeout configuration
	ShutdownTimeout time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "localhost:6379"),

		// Admin
		AdminToken:     getEnv("ADMIN_TOKEN", ""),
		AdminTokenHash: getEnv("ADMIN_TOKEN_HASH", ""),

		// Stripe
		Stripe: stripepay.Config{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SuccessURL:    getEnv("CHECKOUT_SUCCESS_URL", "https://localhost/success.html?session_id={CHECKOUT_SESSION_ID}"),
			CancelURL:     getEnv("CHECKOUT_CANCEL_URL", "https://localhost/index.html?canceled=true"),
		},

		// PayPal
		PayPal: paypalpay.Config{
			ClientID: getEnv("PAYPAL_CLIENT_ID", ""),
			Secret:   getEnv("PAYPAL_SECRET", ""),
			Mode:     getEnv("PAYPAL_MODE", "sandbox"),
		},

		// Email
		SMTPHost:      getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:      getEnv("SMTP_PORT", "587"),
		SMTPUser:      getEnv("SMTP_USER", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		EmailFrom:     getEnv("EMAIL_FROM", ""),
		EmailFromName: getEnv("EMAIL_FROM_NAME", "Raffle Desk"),

		// Raffle presentation
		RaffleName:   getEnv("RAFFLE_NAME", "CalABA 2026"),
		EventDetails: getEnv("EVENT_DETAILS", "March 5-7, 2026 - Sacramento Convention Center"),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubUUID:         getEnv("PUBNUB_UUID", "raffle-backend"),
		PubNubChannel:      getEnv("PUBNUB_CHANNEL", "raffle-purchases"),

		// Rate limiting
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),

		// Timeouts
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", "10s"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, fall back to the default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
