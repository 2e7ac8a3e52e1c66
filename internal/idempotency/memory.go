package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// memoryEntry — запись о ключе: id заказа (пустой, пока оформление идёт)
// и срок жизни.
type memoryEntry struct {
	orderID   string
	expiresAt time.Time
}

// MemoryStore — in-memory реализация idempotency-хранилища для тестов и
// запуска без Redis. Семантика совпадает с RedisStore.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

// NewMemoryStore создаёт in-memory хранилище ключей.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryStore{ttl: ttl, entries: make(map[string]memoryEntry)}
}

// Claim пытается захватить ключ.
func (s *MemoryStore) Claim(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.orderID, false, nil
	}

	s.entries[key] = memoryEntry{expiresAt: time.Now().Add(s.ttl)}
	return "", true, nil
}

// Store записывает id заказа для ключа.
func (s *MemoryStore) Store(ctx context.Context, key, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{orderID: orderID, expiresAt: time.Now().Add(s.ttl)}
	return nil
}

// Release освобождает ключ.
func (s *MemoryStore) Release(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

var _ domain.IdempotencyStore = (*MemoryStore)(nil)
