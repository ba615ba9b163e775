package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the ticket shop service.
type Config struct {
	Port string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	RedisURL         string
	PendingCouponTTL time.Duration

	KafkaBrokers    []string
	KafkaOrderTopic string

	// SNS topic for order events (best-effort, optional)
	OrderSNSTopicARN string

	StripeSecretKey     string
	StripeWebhookSecret string

	CryptoPayBaseURL       string
	CryptoPayAPIKey        string
	CryptoPayWebhookSecret string

	InvoiceServiceURL string
	ChatGatewayURL    string
	ChatBotToken      string

	// PublicBaseURL is where providers reach this service for callbacks.
	PublicBaseURL string
}

// LoadConfig reads configuration from environment variables, with .env
// fallback for local development.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8095"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),

		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		PendingCouponTTL: getDurationEnv("PENDING_COUPON_TTL", 24*time.Hour),

		KafkaBrokers:    strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		KafkaOrderTopic: getEnv("KAFKA_ORDER_TOPIC", "order-events"),

		OrderSNSTopicARN: os.Getenv("ORDER_SNS_TOPIC_ARN"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		CryptoPayBaseURL:       os.Getenv("CRYPTOPAY_BASE_URL"),
		CryptoPayAPIKey:        os.Getenv("CRYPTOPAY_API_KEY"),
		CryptoPayWebhookSecret: os.Getenv("CRYPTOPAY_WEBHOOK_SECRET"),

		InvoiceServiceURL: os.Getenv("INVOICE_SERVICE_URL"),
		ChatGatewayURL:    os.Getenv("CHAT_GATEWAY_URL"),
		ChatBotToken:      os.Getenv("CHAT_BOT_TOKEN"),

		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8095"),
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
