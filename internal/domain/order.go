package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, оплата ещё не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid — оплата подтверждена.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusProcessing — хотя бы одна позиция взята продавцом в работу.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — все позиции отгружены.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — все позиции доставлены.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён; остатки возвращены на склад.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus описывает состояние оплаты заказа и платёжных записей.
type PaymentStatus string

const (
	// PaymentStatusUnpaid — оплата не выполнена.
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	// PaymentStatusPaid — средства списаны.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusRefunded — средства возвращены (симуляция).
	PaymentStatusRefunded PaymentStatus = "refunded"
	// PaymentStatusFailed — провайдер отклонил платёж.
	PaymentStatusFailed PaymentStatus = "failed"
)

// FulfillmentStatus описывает исполнение одной позиции заказа продавцом.
type FulfillmentStatus string

const (
	FulfillmentPending   FulfillmentStatus = "pending"
	FulfillmentFulfilled FulfillmentStatus = "fulfilled"
	FulfillmentShipped   FulfillmentStatus = "shipped"
	FulfillmentDelivered FulfillmentStatus = "delivered"
	FulfillmentCancelled FulfillmentStatus = "cancelled"
)

// fulfillmentRank задаёт порядок прямых переходов исполнения позиции.
var fulfillmentRank = map[FulfillmentStatus]int{
	FulfillmentPending:   0,
	FulfillmentFulfilled: 1,
	FulfillmentShipped:   2,
	FulfillmentDelivered: 3,
}

// CanAdvanceFulfillment отвечает, допустим ли переход from → to.
// Допустим только следующий шаг вперёд; cancelled достижим только через
// отмену заказа целиком.
func CanAdvanceFulfillment(from, to FulfillmentStatus) bool {
	fromRank, ok := fulfillmentRank[from]
	if !ok {
		return false
	}
	toRank, ok := fulfillmentRank[to]
	if !ok {
		return false
	}
	return toRank == fromRank+1
}

// OrderItem — снимок позиции заказа на момент покупки. VendorID копируется
// из товара для последующих выборок продавца.
type OrderItem struct {
	ID             string
	OrderID        string
	ProductID      string
	VariantID      string
	VendorID       string
	SKU            string
	Quantity       int32
	UnitPriceMinor int64
	TotalMinor     int64
	Fulfillment    FulfillmentStatus
	CreatedAt      time.Time
}

// Payment — платёжная запись заказа.
type Payment struct {
	ID            string
	OrderID       string
	Provider      string
	AmountMinor   int64
	Currency      string
	Status        PaymentStatus
	TransactionID string
	CreatedAt     time.Time
}

// Order агрегирует заказ, его позиции и платежи.
type Order struct {
	ID                string
	UserID            string
	Status            OrderStatus
	PaymentStatus     PaymentStatus
	Currency          string
	SubtotalMinor     int64
	ShippingMinor     int64
	TotalMinor        int64
	ShippingMethodID  string
	ShippingAddressID string
	BillingAddressID  string
	Items             []OrderItem
	Payments          []Payment
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Cancellable отвечает, может ли заказ быть отменён из текущего статуса.
// После отгрузки или доставки отмена запрещена.
func (o Order) Cancellable() error {
	switch o.Status {
	case OrderStatusPending, OrderStatusPaid, OrderStatusProcessing:
		return nil
	case OrderStatusCancelled:
		return ErrOrderAlreadyCancelled
	default:
		return ErrOrderNotCancellable
	}
}

// ContainsVendor отвечает, есть ли в заказе позиции данного продавца.
func (o Order) ContainsVendor(vendorID string) bool {
	for _, item := range o.Items {
		if item.VendorID == vendorID {
			return true
		}
	}
	return false
}

// RollupStatus выводит статус заказа из статусов позиций: если все активные
// позиции отгружены — заказ отгружен, если доставлены — доставлен, если
// хотя бы одна в работе — processing. Возвращает текущий статус, когда
// агрегировать нечего.
func (o Order) RollupStatus() OrderStatus {
	if len(o.Items) == 0 {
		return o.Status
	}

	allShipped := true
	allDelivered := true
	anyStarted := false
	for _, item := range o.Items {
		if item.Fulfillment == FulfillmentCancelled {
			continue
		}
		if item.Fulfillment != FulfillmentDelivered {
			allDelivered = false
		}
		if item.Fulfillment != FulfillmentShipped && item.Fulfillment != FulfillmentDelivered {
			allShipped = false
		}
		if item.Fulfillment != FulfillmentPending {
			anyStarted = true
		}
	}

	switch {
	case allDelivered:
		return OrderStatusDelivered
	case allShipped:
		return OrderStatusShipped
	case anyStarted:
		return OrderStatusProcessing
	default:
		return o.Status
	}
}

// QualifiesForReview отвечает, даёт ли статус заказа право на отзыв:
// покупка должна быть оплаченной и не отменённой.
func (s OrderStatus) QualifiesForReview() bool {
	switch s {
	case OrderStatusPaid, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered:
		return true
	default:
		return false
	}
}

// SalesReportFilter задаёт границы отчёта о продажах. Нулевое время не
// фильтрует; пустой VendorID охватывает всех продавцов.
type SalesReportFilter struct {
	VendorID string
	From     time.Time
	To       time.Time
}

// SalesReportRow — агрегат продаж одного товара: сколько штук продано и на
// какую сумму. Отменённые заказы и отменённые позиции в отчёт не входят.
type SalesReportRow struct {
	ProductID    string
	ProductName  string
	QuantitySold int64
	RevenueMinor int64
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	// Сверяем сумму заказа с суммой позиций плюс доставка.
	var calc int64
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrQuantityInvalid)
		}
		if item.UnitPriceMinor < 0 {
			errs = append(errs, ErrPriceInvalid)
		}
		calc += int64(item.Quantity) * item.UnitPriceMinor
	}
	if calc != o.SubtotalMinor || calc+o.ShippingMinor != o.TotalMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
