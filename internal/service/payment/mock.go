package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// MockGateway — платёжный шлюз-заглушка: всегда подтверждает списание и
// возврат и выдаёт фиктивные идентификаторы транзакций. Используется в
// окружениях без реального провайдера и в тестах.
type MockGateway struct {
	logger *log.Entry
}

// NewMockGateway создаёт платёжный шлюз-заглушку.
func NewMockGateway(logger *log.Entry) *MockGateway {
	if logger == nil {
		logger = log.WithField("component", "payment-mock")
	}
	return &MockGateway{logger: logger}
}

// Charge подтверждает списание средств по заказу.
func (g *MockGateway) Charge(ctx context.Context, order domain.Order) (domain.PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.PaymentResult{}, err
	}

	txnID := fmt.Sprintf("MOCK-TXN-%s", uuid.NewString())
	g.logger.WithFields(log.Fields{
		"order_id":       order.ID,
		"amount_minor":   order.TotalMinor,
		"currency":       order.Currency,
		"transaction_id": txnID,
	}).Debug("mock charge approved")

	return domain.PaymentResult{
		Status:        domain.PaymentStatusPaid,
		TransactionID: txnID,
	}, nil
}

// Refund подтверждает возврат средств по заказу.
func (g *MockGateway) Refund(ctx context.Context, order domain.Order, amountMinor int64) (domain.PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.PaymentResult{}, err
	}

	txnID := fmt.Sprintf("MOCK-REFUND-%s", uuid.NewString())
	g.logger.WithFields(log.Fields{
		"order_id":       order.ID,
		"amount_minor":   amountMinor,
		"transaction_id": txnID,
	}).Debug("mock refund approved")

	return domain.PaymentResult{
		Status:        domain.PaymentStatusRefunded,
		TransactionID: txnID,
	}, nil
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
