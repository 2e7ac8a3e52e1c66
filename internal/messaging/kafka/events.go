package kafka

// Topics для событий маркетплейса.
const (
	// TopicOrderEvents — события жизненного цикла заказа (placed, cancelled,
	// fulfilled) из transactional outbox.
	TopicOrderEvents = "marketplace.order.events"
	// TopicDeadLetterQueue — события, которые не удалось опубликовать после
	// всех повторов.
	TopicDeadLetterQueue = "marketplace.dlq"
)

// Kafka headers, сопровождающие сообщения в DLQ.
const (
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)
