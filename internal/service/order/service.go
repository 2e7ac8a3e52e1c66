package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

var (
	cancellationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_order_cancellations_total",
		Help: "Total number of order cancellation attempts grouped by result.",
	}, []string{"result"})
	fulfillmentUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_order_fulfillment_updates_total",
		Help: "Total number of fulfillment status updates grouped by target status.",
	}, []string{"status"})
)

// Service управляет жизненным циклом заказа после оформления: отмена с
// возвратом остатков и исполнение позиций продавцами.
type Service struct {
	store   domain.Store
	gateway domain.PaymentGateway
	logger  *log.Entry
}

// NewService создаёт сервис жизненного цикла заказов.
func NewService(store domain.Store, gateway domain.PaymentGateway, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "order")
	}
	return &Service{store: store, gateway: gateway, logger: logger}
}

// Get возвращает заказ с учётом роли: покупатель видит только свои заказы,
// продавец — заказы со своими позициями, администратор — любые.
func (s *Service) Get(ctx context.Context, identity domain.Identity, orderID string) (domain.Order, error) {
	if err := identity.Require(domain.CapViewOwnOrders); err != nil {
		return domain.Order{}, err
	}

	var order domain.Order
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		var err error
		order, err = tx.Orders().Get(orderID)
		if err != nil {
			return err
		}
		return s.checkAccess(identity, order)
	})
	return order, err
}

// List возвращает заказы, видимые identity: свои для покупателя, заказы с
// позициями продавца для продавца, все для администратора.
func (s *Service) List(ctx context.Context, identity domain.Identity, limit int) ([]domain.Order, error) {
	if err := identity.Require(domain.CapViewOwnOrders); err != nil {
		return nil, err
	}

	var orders []domain.Order
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		var err error
		switch {
		case identity.Can(domain.CapViewAllOrders):
			orders, err = tx.Orders().List(limit)
		case identity.Can(domain.CapViewVendorOrders):
			orders, err = tx.Orders().ListByVendor(identity.UserID, limit)
		default:
			orders, err = tx.Orders().ListByCustomer(identity.UserID, limit)
		}
		return err
	})
	return orders, err
}

// Cancel отменяет заказ: возвращает остатки на склад по каждой позиции,
// помечает позиции отменёнными, добавляет платёжную запись возврата и
// ставит событие order.cancelled в outbox. Всё в одной транзакции;
// повторная отмена и отмена после отгрузки отклоняются без мутаций.
func (s *Service) Cancel(ctx context.Context, identity domain.Identity, orderID string) (domain.Order, error) {
	if err := identity.Require(domain.CapCancelOrder); err != nil {
		return domain.Order{}, err
	}

	var order domain.Order
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		var err error
		order, err = tx.Orders().Get(orderID)
		if err != nil {
			return err
		}
		if order.UserID != identity.UserID && !identity.Can(domain.CapViewAllOrders) {
			return domain.ErrForbidden
		}
		if err := order.Cancellable(); err != nil {
			return err
		}

		// Возврат остатков строго по количествам позиций заказа.
		for _, item := range order.Items {
			if item.Fulfillment == domain.FulfillmentCancelled {
				continue
			}
			inv, err := tx.Catalog().InventoryForUpdate(item.VariantID)
			if err != nil {
				return err
			}
			inv.Quantity += item.Quantity
			if err := tx.Catalog().SaveInventory(inv); err != nil {
				return err
			}
			if err := tx.Orders().SetItemFulfillment(item.ID, domain.FulfillmentCancelled); err != nil {
				return err
			}
		}

		if order.PaymentStatus == domain.PaymentStatusPaid {
			result, err := s.gateway.Refund(ctx, order, order.TotalMinor)
			if err != nil {
				return err
			}
			if err := tx.Orders().AddPayment(domain.Payment{
				ID:            uuid.NewString(),
				OrderID:       order.ID,
				Provider:      paymentProvider(order),
				AmountMinor:   order.TotalMinor,
				Currency:      order.Currency,
				Status:        domain.PaymentStatusRefunded,
				TransactionID: result.TransactionID,
				CreatedAt:     time.Now().UTC(),
			}); err != nil {
				return err
			}
			if err := tx.Orders().SetPaymentStatus(order.ID, domain.PaymentStatusRefunded); err != nil {
				return err
			}
		}

		if err := tx.Orders().SetStatus(order.ID, domain.OrderStatusCancelled); err != nil {
			return err
		}

		payload, err := json.Marshal(map[string]any{
			"order_id":     order.ID,
			"user_id":      order.UserID,
			"amount_minor": order.TotalMinor,
			"currency":     order.Currency,
		})
		if err != nil {
			return err
		}
		if _, err := tx.Outbox().Enqueue(domain.OutboxMessage{
			AggregateType: domain.AggregateOrder,
			AggregateID:   order.ID,
			EventType:     domain.EventOrderCancelled,
			Payload:       payload,
		}); err != nil {
			return err
		}

		order, err = tx.Orders().Get(order.ID)
		return err
	})
	if err != nil {
		if domain.IsConflict(err) {
			cancellationsTotal.WithLabelValues("conflict").Inc()
		} else {
			cancellationsTotal.WithLabelValues("error").Inc()
		}
		return domain.Order{}, err
	}

	cancellationsTotal.WithLabelValues("ok").Inc()
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
	}).Info("order cancelled, stock restored")
	return order, nil
}

// UpdateFulfillment переводит позицию заказа на следующий шаг исполнения.
// Продавец управляет только своими позициями; администратор любыми.
// Статус заказа агрегируется из статусов позиций.
func (s *Service) UpdateFulfillment(ctx context.Context, identity domain.Identity, orderID, itemID string, status domain.FulfillmentStatus) (domain.Order, error) {
	if err := identity.Require(domain.CapUpdateFulfillment); err != nil {
		return domain.Order{}, err
	}

	var order domain.Order
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		var err error
		order, err = tx.Orders().Get(orderID)
		if err != nil {
			return err
		}

		var item domain.OrderItem
		found := false
		for _, it := range order.Items {
			if it.ID == itemID {
				item = it
				found = true
				break
			}
		}
		if !found {
			return domain.ErrOrderItemNotFound
		}
		if item.VendorID != identity.UserID && !identity.Can(domain.CapViewAllOrders) {
			return domain.ErrForbidden
		}
		if !domain.CanAdvanceFulfillment(item.Fulfillment, status) {
			return domain.ErrFulfillmentTransition
		}

		if err := tx.Orders().SetItemFulfillment(itemID, status); err != nil {
			return err
		}

		order, err = tx.Orders().Get(orderID)
		if err != nil {
			return err
		}
		if rollup := order.RollupStatus(); rollup != order.Status {
			if err := tx.Orders().SetStatus(orderID, rollup); err != nil {
				return err
			}
			order.Status = rollup

			// Событие исполнения публикуется только на смене статуса заказа,
			// не на каждом шаге отдельной позиции.
			payload, err := json.Marshal(map[string]any{
				"order_id": order.ID,
				"user_id":  order.UserID,
				"status":   string(rollup),
				"item_id":  itemID,
			})
			if err != nil {
				return err
			}
			if _, err := tx.Outbox().Enqueue(domain.OutboxMessage{
				AggregateType: domain.AggregateOrder,
				AggregateID:   order.ID,
				EventType:     domain.EventOrderFulfilled,
				Payload:       payload,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	fulfillmentUpdatesTotal.WithLabelValues(string(status)).Inc()
	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"item_id":  itemID,
		"status":   status,
	}).Info("fulfillment updated")
	return order, nil
}

// SalesReport агрегирует продажи по товарам: штук продано и выручка за
// период. Продавец видит только свои товары; администратор может запросить
// отчёт любого продавца или всех сразу. Отменённые заказы и позиции в отчёт
// не входят.
func (s *Service) SalesReport(ctx context.Context, identity domain.Identity, vendorID string, from, to time.Time) ([]domain.SalesReportRow, error) {
	if err := identity.Require(domain.CapViewSalesReport); err != nil {
		return nil, err
	}
	if !identity.Can(domain.CapViewAllOrders) {
		if vendorID == "" {
			vendorID = identity.UserID
		}
		if vendorID != identity.UserID {
			return nil, domain.ErrForbidden
		}
	}

	var rows []domain.SalesReportRow
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		var err error
		rows, err = tx.Orders().SalesReport(domain.SalesReportFilter{
			VendorID: vendorID,
			From:     from,
			To:       to,
		})
		return err
	})
	return rows, err
}

// checkAccess проверяет право identity видеть заказ.
func (s *Service) checkAccess(identity domain.Identity, order domain.Order) error {
	switch {
	case order.UserID == identity.UserID:
		return nil
	case identity.Can(domain.CapViewAllOrders):
		return nil
	case identity.Can(domain.CapViewVendorOrders) && order.ContainsVendor(identity.UserID):
		return nil
	default:
		// Чужой заказ неотличим от несуществующего.
		return domain.ErrOrderNotFound
	}
}

// paymentProvider возвращает провайдера исходного платежа заказа, чтобы
// возврат был атрибуцирован тому же провайдеру.
func paymentProvider(order domain.Order) string {
	for _, p := range order.Payments {
		if p.Status == domain.PaymentStatusPaid {
			return p.Provider
		}
	}
	return "mockpay"
}
