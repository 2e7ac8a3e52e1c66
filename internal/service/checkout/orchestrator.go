package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

var (
	checkoutTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_checkout_total",
		Help: "Total number of checkout attempts grouped by result.",
	}, []string{"result"})
	checkoutDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketplace_checkout_duration_seconds",
		Help:    "Checkout transaction duration in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	checkoutOrderItems = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketplace_checkout_order_items",
		Help:    "Number of line items per placed order.",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
	})
)

// Request описывает запрос на оформление заказа. Адреса можно передать
// по идентификатору сохранённого адреса или inline; inline-адрес будет
// сохранён. Пустой BillingAddress означает "совпадает с доставкой".
type Request struct {
	Identity          domain.Identity
	IdempotencyKey    string
	ShippingAddressID string
	BillingAddressID  string
	ShippingAddress   *domain.Address
	BillingAddress    *domain.Address
	ShippingMethodID  string
}

// Options задаёт необязательные зависимости оркестратора.
type Options struct {
	Logger      *log.Entry
	Mailer      domain.Mailer
	Idempotency domain.IdempotencyStore
	Provider    string
}

// Option настраивает Orchestrator.
type Option func(*Options)

// WithLogger задаёт logger оркестратора.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMailer включает отправку письма-подтверждения после оформления.
func WithMailer(mailer domain.Mailer) Option {
	return func(opts *Options) {
		opts.Mailer = mailer
	}
}

// WithIdempotency включает защиту от повторного оформления по ключу.
func WithIdempotency(store domain.IdempotencyStore) Option {
	return func(opts *Options) {
		opts.Idempotency = store
	}
}

// WithProvider задаёт имя платёжного провайдера в платёжных записях.
func WithProvider(provider string) Option {
	return func(opts *Options) {
		opts.Provider = provider
	}
}

// Orchestrator оформляет заказы из корзины. Весь путь от проверки остатков
// до платёжной записи и outbox-события выполняется в одной транзакции:
// либо заказ оформлен целиком, либо ни одна мутация не видна.
type Orchestrator struct {
	store       domain.Store
	gateway     domain.PaymentGateway
	mailer      domain.Mailer
	idempotency domain.IdempotencyStore
	provider    string
	logger      *log.Entry
}

// NewOrchestrator создаёт оркестратор оформления заказов.
func NewOrchestrator(store domain.Store, gateway domain.PaymentGateway, options ...Option) *Orchestrator {
	opts := Options{Provider: "mockpay"}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "checkout")
	}

	return &Orchestrator{
		store:       store,
		gateway:     gateway,
		mailer:      opts.Mailer,
		idempotency: opts.Idempotency,
		provider:    opts.Provider,
		logger:      logger,
	}
}

// PlaceOrder оформляет заказ из активной корзины пользователя.
//
// Внутри одной транзакции: блокировка остатков по каждой позиции, проверка
// достаточности, расчёт сумм по снимкам цен, создание заказа с позициями,
// списание остатков, платёж, перевод корзины в ordered и постановка события
// order.placed в outbox. Нехватка остатка по любой позиции откатывает всё.
func (o *Orchestrator) PlaceOrder(ctx context.Context, req Request) (domain.Order, error) {
	if err := req.Identity.Require(domain.CapCheckout); err != nil {
		return domain.Order{}, err
	}

	if req.IdempotencyKey != "" && o.idempotency != nil {
		orderID, claimed, err := o.idempotency.Claim(ctx, req.IdempotencyKey)
		if err != nil {
			return domain.Order{}, err
		}
		if !claimed {
			if orderID == "" {
				return domain.Order{}, domain.ErrCheckoutInProgress
			}
			return o.loadOrder(ctx, orderID)
		}
	}

	started := time.Now()
	order, err := o.placeOrderTx(ctx, req)
	checkoutDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		checkoutTotal.WithLabelValues(resultLabel(err)).Inc()
		if req.IdempotencyKey != "" && o.idempotency != nil {
			if relErr := o.idempotency.Release(ctx, req.IdempotencyKey); relErr != nil {
				o.logger.WithError(relErr).Warn("failed to release idempotency key")
			}
		}
		return domain.Order{}, err
	}

	checkoutTotal.WithLabelValues("ok").Inc()
	checkoutOrderItems.Observe(float64(len(order.Items)))

	if req.IdempotencyKey != "" && o.idempotency != nil {
		if err := o.idempotency.Store(ctx, req.IdempotencyKey, order.ID); err != nil {
			o.logger.WithError(err).Warn("failed to store idempotency key")
		}
	}

	// Письмо-подтверждение не влияет на уже зафиксированный заказ.
	if o.mailer != nil && req.Identity.Email != "" {
		if err := o.mailer.SendOrderConfirmation(ctx, req.Identity.Email, order); err != nil {
			o.logger.WithError(err).WithField("order_id", order.ID).
				Warn("failed to send order confirmation email")
		}
	}

	o.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"user_id":     order.UserID,
		"total_minor": order.TotalMinor,
		"items":       len(order.Items),
	}).Info("order placed")
	return order, nil
}

func (o *Orchestrator) placeOrderTx(ctx context.Context, req Request) (domain.Order, error) {
	userID := req.Identity.UserID

	var order domain.Order
	err := o.store.Atomic(ctx, func(tx domain.Tx) error {
		cart, err := tx.Carts().ActiveByOwner(domain.UserOwner(userID))
		if err != nil {
			if errors.Is(err, domain.ErrCartNotFound) {
				return domain.ErrCartEmpty
			}
			return err
		}
		if len(cart.Items) == 0 {
			return domain.ErrCartEmpty
		}

		shippingAddr, err := o.resolveAddress(tx, userID, req.ShippingAddressID, req.ShippingAddress)
		if err != nil {
			return err
		}
		billingAddr := shippingAddr
		if req.BillingAddressID != "" || req.BillingAddress != nil {
			billingAddr, err = o.resolveAddress(tx, userID, req.BillingAddressID, req.BillingAddress)
			if err != nil {
				return err
			}
		}

		method, err := o.resolveShippingMethod(tx, req.ShippingMethodID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		orderID := uuid.NewString()

		// Блокируем остатки по всем позициям до каких-либо мутаций: одной
		// позиции без остатка достаточно, чтобы откатить весь заказ.
		inventories := make([]domain.Inventory, 0, len(cart.Items))
		items := make([]domain.OrderItem, 0, len(cart.Items))
		var subtotal int64
		currency := ""
		for _, cartItem := range cart.Items {
			inv, err := tx.Catalog().InventoryForUpdate(cartItem.VariantID)
			if err != nil {
				return err
			}
			if inv.Quantity < cartItem.Quantity {
				return fmt.Errorf("%w: variant %s has %d, requested %d",
					domain.ErrInsufficientStock, cartItem.VariantID, inv.Quantity, cartItem.Quantity)
			}
			inv.Quantity -= cartItem.Quantity
			inventories = append(inventories, inv)

			variant, err := tx.Catalog().Variant(cartItem.VariantID)
			if err != nil {
				return err
			}
			product, err := tx.Catalog().Product(variant.ProductID)
			if err != nil {
				return err
			}
			if currency == "" {
				currency = product.Currency
			}

			lineTotal := int64(cartItem.Quantity) * cartItem.UnitPriceMinor
			subtotal += lineTotal
			items = append(items, domain.OrderItem{
				ID:             uuid.NewString(),
				OrderID:        orderID,
				ProductID:      product.ID,
				VariantID:      variant.ID,
				VendorID:       product.VendorID,
				SKU:            variant.SKU,
				Quantity:       cartItem.Quantity,
				UnitPriceMinor: cartItem.UnitPriceMinor,
				TotalMinor:     lineTotal,
				Fulfillment:    domain.FulfillmentPending,
				CreatedAt:      now,
			})
		}

		order = domain.Order{
			ID:                orderID,
			UserID:            userID,
			Status:            domain.OrderStatusPending,
			PaymentStatus:     domain.PaymentStatusUnpaid,
			Currency:          currency,
			SubtotalMinor:     subtotal,
			ShippingMinor:     method.PriceMinor,
			TotalMinor:        subtotal + method.PriceMinor,
			ShippingMethodID:  method.ID,
			ShippingAddressID: shippingAddr.ID,
			BillingAddressID:  billingAddr.ID,
			Items:             items,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if errs := order.ValidateInvariants(); len(errs) > 0 {
			return errs[0]
		}
		if err := tx.Orders().Create(order); err != nil {
			return err
		}

		for _, inv := range inventories {
			if err := tx.Catalog().SaveInventory(inv); err != nil {
				return err
			}
		}

		result, err := o.gateway.Charge(ctx, order)
		if err != nil {
			return err
		}
		if result.Status != domain.PaymentStatusPaid {
			return domain.ErrPaymentDeclined
		}
		if err := tx.Orders().AddPayment(domain.Payment{
			ID:            uuid.NewString(),
			OrderID:       orderID,
			Provider:      o.provider,
			AmountMinor:   order.TotalMinor,
			Currency:      order.Currency,
			Status:        domain.PaymentStatusPaid,
			TransactionID: result.TransactionID,
			CreatedAt:     now,
		}); err != nil {
			return err
		}
		if err := tx.Orders().SetStatus(orderID, domain.OrderStatusPaid); err != nil {
			return err
		}
		if err := tx.Orders().SetPaymentStatus(orderID, domain.PaymentStatusPaid); err != nil {
			return err
		}

		if err := tx.Carts().SetStatus(cart.ID, domain.CartStatusOrdered); err != nil {
			return err
		}

		payload, err := json.Marshal(orderEventPayload{
			OrderID:    orderID,
			UserID:     userID,
			TotalMinor: order.TotalMinor,
			Currency:   order.Currency,
		})
		if err != nil {
			return err
		}
		if _, err := tx.Outbox().Enqueue(domain.OutboxMessage{
			AggregateType: domain.AggregateOrder,
			AggregateID:   orderID,
			EventType:     domain.EventOrderPlaced,
			Payload:       payload,
		}); err != nil {
			return err
		}

		order, err = tx.Orders().Get(orderID)
		return err
	})
	return order, err
}

// resolveAddress возвращает сохранённый адрес пользователя либо сохраняет
// inline-адрес. Чужой адрес неотличим от несуществующего.
func (o *Orchestrator) resolveAddress(tx domain.Tx, userID, addressID string, inline *domain.Address) (domain.Address, error) {
	if addressID != "" {
		addr, err := tx.Addresses().Get(addressID)
		if err != nil {
			return domain.Address{}, err
		}
		if addr.UserID != userID {
			return domain.Address{}, domain.ErrAddressNotFound
		}
		return addr, nil
	}

	if inline == nil {
		return domain.Address{}, domain.ErrAddressIncomplete
	}
	addr := *inline
	if err := addr.Validate(); err != nil {
		return domain.Address{}, err
	}
	addr.ID = uuid.NewString()
	addr.UserID = userID
	addr.CreatedAt = time.Now().UTC()
	if err := tx.Addresses().Create(addr); err != nil {
		return domain.Address{}, err
	}
	return addr, nil
}

func (o *Orchestrator) resolveShippingMethod(tx domain.Tx, methodID string) (domain.ShippingMethod, error) {
	if methodID != "" {
		return tx.Shipping().Get(methodID)
	}
	return tx.Shipping().FirstActive()
}

func (o *Orchestrator) loadOrder(ctx context.Context, orderID string) (domain.Order, error) {
	var order domain.Order
	err := o.store.Atomic(ctx, func(tx domain.Tx) error {
		var err error
		order, err = tx.Orders().Get(orderID)
		return err
	})
	return order, err
}

// orderEventPayload — полезная нагрузка событий заказа в outbox.
type orderEventPayload struct {
	OrderID    string `json:"order_id"`
	UserID     string `json:"user_id"`
	TotalMinor int64  `json:"total_minor"`
	Currency   string `json:"currency"`
}

func resultLabel(err error) string {
	switch {
	case domain.IsConflict(err):
		return "conflict"
	case domain.IsValidation(err) || domain.IsNotFound(err):
		return "rejected"
	default:
		return "error"
	}
}
