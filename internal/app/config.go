package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config — настройки запуска приложения. Источник: переменные окружения,
// локально дополняемые файлом .env.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	// PostgresDSN пустой — хранилище в памяти.
	PostgresDSN string
	// RedisAddr пустой — idempotency-ключи в памяти.
	RedisAddr string
	// KafkaBrokers пустой — события остаются в outbox.
	KafkaBrokers []string

	JWTSecret string

	SendGridAPIKey  string
	EmailSender     string
	EmailSenderName string

	CartTTL            time.Duration
	CartSweepInterval  time.Duration
	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
}

// LoadConfig читает конфигурацию из окружения. Файл .env подхватывается,
// если есть; его отсутствие не ошибка.
func LoadConfig() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Debug("no .env file loaded")
	}

	return Config{
		HTTPAddr:    envString("HTTP_ADDR", ":8080"),
		MetricsAddr: envString("METRICS_ADDR", ":9090"),

		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),

		JWTSecret: envString("JWT_SECRET", "insecure-dev-secret"),

		SendGridAPIKey:  os.Getenv("SENDGRID_API_KEY"),
		EmailSender:     envString("EMAIL_SENDER", "orders@marketplace.local"),
		EmailSenderName: envString("EMAIL_SENDER_NAME", "Marketplace"),

		CartTTL:            envDuration("CART_TTL", 72*time.Hour),
		CartSweepInterval:  envDuration("CART_SWEEP_INTERVAL", 30*time.Minute),
		IdempotencyTTL:     envDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		OutboxPollInterval: envDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
	}
}

func envString(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		log.WithField("name", name).WithField("value", raw).Warn("invalid duration, using default")
		return fallback
	}
	return value
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
