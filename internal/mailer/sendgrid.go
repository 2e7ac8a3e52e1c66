package mailer

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// SendGridMailer отправляет транзакционные письма через SendGrid.
type SendGridMailer struct {
	client     *sendgrid.Client
	senderName string
	senderAddr string
	logger     *log.Entry
}

// NewSendGridMailer создаёт mailer поверх SendGrid API.
func NewSendGridMailer(apiKey, senderName, senderAddr string, logger *log.Entry) *SendGridMailer {
	if logger == nil {
		logger = log.WithField("component", "mailer")
	}
	return &SendGridMailer{
		client:     sendgrid.NewSendClient(apiKey),
		senderName: senderName,
		senderAddr: senderAddr,
		logger:     logger,
	}
}

// SendOrderConfirmation отправляет письмо-подтверждение оформленного заказа.
func (m *SendGridMailer) SendOrderConfirmation(ctx context.Context, to string, order domain.Order) error {
	subject := fmt.Sprintf("Order %s confirmed", order.ID)
	plain := fmt.Sprintf(
		"Thank you for your purchase!\nOrder %s has been placed successfully.\nTotal: %s",
		order.ID, formatAmount(order.TotalMinor, order.Currency),
	)
	html := fmt.Sprintf(
		"<strong>Thank you for your purchase!</strong><br><br>Order <strong>%s</strong> has been placed successfully.<br>Total: <strong>%s</strong>",
		order.ID, formatAmount(order.TotalMinor, order.Currency),
	)

	message := mail.NewSingleEmail(
		mail.NewEmail(m.senderName, m.senderAddr),
		subject,
		mail.NewEmail("", to),
		plain,
		html,
	)

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("send order confirmation: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("send order confirmation: sendgrid returned %d", resp.StatusCode)
	}

	m.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"status":   resp.StatusCode,
	}).Debug("order confirmation email sent")
	return nil
}

// formatAmount форматирует сумму в минимальных единицах как десятичную.
func formatAmount(minor int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", minor/100, minor%100, currency)
}

var _ domain.Mailer = (*SendGridMailer)(nil)
