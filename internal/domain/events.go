package domain

// Типы доменных событий, публикуемых через transactional outbox.
const (
	EventOrderPlaced    = "order.placed"
	EventOrderCancelled = "order.cancelled"
	EventOrderFulfilled = "order.fulfilled"
)

// Типы агрегатов для атрибуции событий в outbox.
const (
	AggregateOrder = "order"
)
