package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const (
	// keyOrderCreate: idem:order:create:{key} -> order_id.
	keyOrderCreate = "idem:order:create:%s"
	// claimMarker хранится под ключом, пока оформление ещё идёт.
	claimMarker = "__claimed__"

	defaultTTL = 24 * time.Hour
)

// RedisStore хранит idempotency-ключи оформления заказа в Redis.
// Захват ключа выполняется через SET NX, поэтому два конкурентных запроса
// с одним ключом не смогут оформить заказ дважды.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore создаёт хранилище ключей поверх клиента Redis.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Claim пытается захватить ключ. Если ключ уже хранит id заказа, возвращает
// его; если ключ захвачен, но заказ ещё оформляется, claimed=false без id.
func (s *RedisStore) Claim(ctx context.Context, key string) (string, bool, error) {
	redisKey := fmt.Sprintf(keyOrderCreate, key)

	ok, err := s.client.SetNX(ctx, redisKey, claimMarker, s.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return "", true, nil
	}

	value, err := s.client.Get(ctx, redisKey).Result()
	if err == redis.Nil {
		// Ключ истёк между SetNX и Get; пусть вызывающий повторит запрос.
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read idempotency key: %w", err)
	}
	if value == claimMarker {
		return "", false, nil
	}
	return value, false, nil
}

// Store записывает id заказа для ключа после успешного оформления.
func (s *RedisStore) Store(ctx context.Context, key, orderID string) error {
	redisKey := fmt.Sprintf(keyOrderCreate, key)
	if err := s.client.Set(ctx, redisKey, orderID, s.ttl).Err(); err != nil {
		return fmt.Errorf("store idempotency key: %w", err)
	}
	return nil
}

// Release освобождает ключ после неудачного оформления.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	redisKey := fmt.Sprintf(keyOrderCreate, key)
	if err := s.client.Del(ctx, redisKey).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

var _ domain.IdempotencyStore = (*RedisStore)(nil)
