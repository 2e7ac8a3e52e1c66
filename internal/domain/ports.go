package domain

import (
	"context"
	"time"
)

// PaymentResult — результат обращения к платёжному провайдеру.
type PaymentResult struct {
	Status        PaymentStatus
	TransactionID string
}

// PaymentGateway описывает взаимодействие с платёжным провайдером.
// Интеграция с реальным шлюзом вне скоупа: контракт — внешний коллаборатор.
type PaymentGateway interface {
	// Charge инициирует списание средств по заказу.
	Charge(ctx context.Context, order Order) (PaymentResult, error)
	// Refund инициирует возврат средств при отмене заказа.
	Refund(ctx context.Context, order Order, amountMinor int64) (PaymentResult, error)
}

// Mailer отправляет транзакционные письма. Ошибки отправки не должны
// откатывать уже зафиксированный заказ.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, to string, order Order) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// IdempotencyStore защищает оформление заказа от повторной обработки
// одного и того же запроса.
type IdempotencyStore interface {
	// Claim пытается захватить ключ. Возвращает id ранее созданного заказа,
	// если ключ уже использован, и claimed=true при успешном захвате.
	Claim(ctx context.Context, key string) (orderID string, claimed bool, err error)
	// Store записывает id заказа для ключа после успешного оформления.
	Store(ctx context.Context, key, orderID string) error
	// Release освобождает ключ, если оформление завершилось ошибкой.
	Release(ctx context.Context, key string) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
