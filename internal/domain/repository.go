package domain

import (
	"context"
	"time"
)

// Store — единая точка входа в хранилище. Atomic исполняет fn в одной
// транзакции: любая ошибка fn откатывает все мутации, включая списания
// остатков. Это контракт begin/commit/rollback всего checkout-пути.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}

// Tx выдаёт репозитории, привязанные к текущей транзакции.
type Tx interface {
	Catalog() CatalogRepository
	Carts() CartRepository
	Orders() OrderRepository
	Reviews() ReviewRepository
	Addresses() AddressRepository
	Shipping() ShippingMethodRepository
	Outbox() OutboxRepository
}

// CatalogRepository — товары, варианты, категории и остатки.
type CatalogRepository interface {
	CreateCategory(category Category) error
	Categories() ([]Category, error)
	CreateProduct(product Product) error
	UpdateProduct(product Product) error
	// DeleteProduct удаляет товар вместе с вариантами, остатками и
	// позициями открытых корзин; снимки в позициях заказов сохраняются.
	DeleteProduct(id string) error
	Product(id string) (Product, error)
	ListProducts(filter ProductFilter) ([]Product, error)
	CreateVariant(variant Variant) error
	Variant(id string) (Variant, error)
	VariantsByProduct(productID string) ([]Variant, error)
	UpsertInventory(inv Inventory) error
	Inventory(variantID string) (Inventory, error)
	// InventoryForUpdate читает остаток с блокировкой строки до конца
	// транзакции. Обязательна на checkout-пути: без неё параллельные
	// оформления могут продать больше, чем есть на складе.
	InventoryForUpdate(variantID string) (Inventory, error)
	SaveInventory(inv Inventory) error
	LowStock(vendorID string) ([]LowStockEntry, error)
}

// CartRepository — корзины и их позиции.
type CartRepository interface {
	Create(cart Cart) error
	// ActiveByOwner возвращает активную корзину владельца вместе с позициями
	// или ErrCartNotFound.
	ActiveByOwner(owner CartOwner) (Cart, error)
	Get(id string) (Cart, error)
	Item(itemID string) (CartItem, error)
	UpsertItem(item CartItem) error
	DeleteItem(itemID string) error
	ClearItems(cartID string) error
	SetStatus(cartID string, status CartStatus) error
	// AbandonGuestCartsBefore помечает гостевые корзины без активности
	// после cutoff как abandoned; возвращает число обработанных.
	AbandonGuestCartsBefore(cutoff time.Time, limit int) (int, error)
}

// OrderRepository — заказы, позиции и платежи.
type OrderRepository interface {
	// Create сохраняет заказ вместе с позициями.
	Create(order Order) error
	Get(id string) (Order, error)
	ListByCustomer(userID string, limit int) ([]Order, error)
	ListByVendor(vendorID string, limit int) ([]Order, error)
	List(limit int) ([]Order, error)
	SetStatus(orderID string, status OrderStatus) error
	SetPaymentStatus(orderID string, status PaymentStatus) error
	SetItemFulfillment(itemID string, status FulfillmentStatus) error
	AddPayment(payment Payment) error
	// HasQualifyingPurchase отвечает, покупал ли пользователь товар в заказе,
	// статус которого даёт право на отзыв.
	HasQualifyingPurchase(userID, productID string) (bool, error)
	// SalesReport агрегирует продажи по товарам за период.
	SalesReport(filter SalesReportFilter) ([]SalesReportRow, error)
}

// ReviewRepository — отзывы о товарах.
type ReviewRepository interface {
	Create(review Review) error
	Get(id string) (Review, error)
	ExistsForUserProduct(userID, productID string) (bool, error)
	ListApprovedByProduct(productID string, offset, limit int) ([]Review, int, error)
	ListPending(limit int) ([]Review, error)
	SetApproved(id string) error
}

// AddressRepository — адреса пользователей.
type AddressRepository interface {
	Create(address Address) error
	Get(id string) (Address, error)
}

// ShippingMethodRepository — способы доставки.
type ShippingMethodRepository interface {
	Create(method ShippingMethod) error
	Get(id string) (ShippingMethod, error)
	FirstActive() (ShippingMethod, error)
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}
