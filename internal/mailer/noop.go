package mailer

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// Noop — заглушка mailer для окружений без почтового провайдера.
// Пишет факт отправки в лог и ничего не отправляет.
type Noop struct {
	logger *log.Entry
}

// NewNoop создаёт mailer-заглушку.
func NewNoop(logger *log.Entry) *Noop {
	if logger == nil {
		logger = log.WithField("component", "mailer-noop")
	}
	return &Noop{logger: logger}
}

// SendOrderConfirmation логирует письмо вместо отправки.
func (m *Noop) SendOrderConfirmation(_ context.Context, to string, order domain.Order) error {
	m.logger.WithFields(log.Fields{
		"to":       to,
		"order_id": order.ID,
	}).Info("order confirmation email skipped: mailer disabled")
	return nil
}

var _ domain.Mailer = (*Noop)(nil)
