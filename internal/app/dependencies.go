package app

import (
	"context"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/idempotency"
	"github.com/vladislavdragonenkov/marketplace/internal/mailer"
	"github.com/vladislavdragonenkov/marketplace/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/marketplace/internal/service/payment"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/postgres"
)

// Dependencies — внешние зависимости приложения. Каждая опциональная
// интеграция деградирует до локальной реализации: memory-хранилище вместо
// postgres, in-memory idempotency вместо redis, noop-мейлер вместо sendgrid.
type Dependencies struct {
	Store       domain.Store
	Postgres    *postgres.Store
	Gateway     domain.PaymentGateway
	Mailer      domain.Mailer
	Idempotency domain.IdempotencyStore

	Redis         *redis.Client
	KafkaProducer *kafka.Producer
	Publisher     domain.OutboxPublisher
	DLQPublisher  domain.OutboxPublisher

	Logger *log.Entry
}

// NewDependencies инициализирует зависимости по конфигурации.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	deps := &Dependencies{Logger: logger}

	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		deps.Postgres = store
		deps.Store = store
		logger.Info("postgres store initialized")
	} else {
		deps.Store = memory.NewStore()
		logger.Info("using in-memory store")
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis is unreachable, falling back to in-memory idempotency")
			_ = client.Close()
		} else {
			deps.Redis = client
			deps.Idempotency = idempotency.NewRedisStore(client, cfg.IdempotencyTTL)
			logger.WithField("addr", cfg.RedisAddr).Info("redis idempotency store initialized")
		}
	}
	if deps.Idempotency == nil {
		deps.Idempotency = idempotency.NewMemoryStore(cfg.IdempotencyTTL)
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, events will stay in the outbox")
		} else {
			deps.KafkaProducer = producer
			deps.Publisher = kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents)
			deps.DLQPublisher = kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)
			logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")
		}
	}

	if cfg.SendGridAPIKey != "" {
		deps.Mailer = mailer.NewSendGridMailer(cfg.SendGridAPIKey, cfg.EmailSenderName, cfg.EmailSender, nil)
		logger.Info("sendgrid mailer initialized")
	} else {
		deps.Mailer = mailer.NewNoop(nil)
	}

	deps.Gateway = payment.NewMockGateway(nil)

	return deps, nil
}

// Close освобождает внешние подключения.
func (d *Dependencies) Close() {
	if d.KafkaProducer != nil {
		if err := d.KafkaProducer.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close kafka producer")
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if d.Postgres != nil {
		if err := d.Postgres.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}
