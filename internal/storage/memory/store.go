package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// Store — транзакционное in-memory хранилище для локальной разработки и
// тестов. Atomic исполняет fn над копией состояния; успешное завершение
// подменяет состояние целиком, ошибка отбрасывает копию. Глобальный mutex
// даёт сериализуемую изоляцию: параллельные checkout-транзакции не могут
// обе пройти проверку остатков.
type Store struct {
	mu sync.Mutex
	st *state
}

// state — всё содержимое хранилища. Клонируется на каждую транзакцию.
type state struct {
	categories  map[string]domain.Category
	products    map[string]domain.Product
	variants    map[string]domain.Variant
	inventories map[string]domain.Inventory
	carts       map[string]domain.Cart
	orders      map[string]domain.Order
	reviews     map[string]domain.Review
	addresses   map[string]domain.Address
	shipping    map[string]domain.ShippingMethod
	outbox      map[string]outboxRecord
	outboxSeq   int64
}

func newState() *state {
	return &state{
		categories:  make(map[string]domain.Category),
		products:    make(map[string]domain.Product),
		variants:    make(map[string]domain.Variant),
		inventories: make(map[string]domain.Inventory),
		carts:       make(map[string]domain.Cart),
		orders:      make(map[string]domain.Order),
		reviews:     make(map[string]domain.Review),
		addresses:   make(map[string]domain.Address),
		shipping:    make(map[string]domain.ShippingMethod),
		outbox:      make(map[string]outboxRecord),
	}
}

// clone делает глубокую копию состояния. Вложенные слайсы (позиции корзин
// и заказов, платежи) копируются, чтобы транзакция не мутировала оригинал.
func (s *state) clone() *state {
	c := &state{
		categories:  make(map[string]domain.Category, len(s.categories)),
		products:    make(map[string]domain.Product, len(s.products)),
		variants:    make(map[string]domain.Variant, len(s.variants)),
		inventories: make(map[string]domain.Inventory, len(s.inventories)),
		carts:       make(map[string]domain.Cart, len(s.carts)),
		orders:      make(map[string]domain.Order, len(s.orders)),
		reviews:     make(map[string]domain.Review, len(s.reviews)),
		addresses:   make(map[string]domain.Address, len(s.addresses)),
		shipping:    make(map[string]domain.ShippingMethod, len(s.shipping)),
		outbox:      make(map[string]outboxRecord, len(s.outbox)),
		outboxSeq:   s.outboxSeq,
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.variants {
		c.variants[k] = cloneVariant(v)
	}
	for k, v := range s.inventories {
		c.inventories[k] = v
	}
	for k, v := range s.carts {
		v.Items = append([]domain.CartItem(nil), v.Items...)
		c.carts[k] = v
	}
	for k, v := range s.orders {
		v.Items = append([]domain.OrderItem(nil), v.Items...)
		v.Payments = append([]domain.Payment(nil), v.Payments...)
		c.orders[k] = v
	}
	for k, v := range s.reviews {
		c.reviews[k] = v
	}
	for k, v := range s.addresses {
		c.addresses[k] = v
	}
	for k, v := range s.shipping {
		c.shipping[k] = v
	}
	for k, v := range s.outbox {
		c.outbox[k] = v
	}
	return c
}

func cloneVariant(v domain.Variant) domain.Variant {
	if v.Attributes != nil {
		attrs := make(map[string]string, len(v.Attributes))
		for k, val := range v.Attributes {
			attrs[k] = val
		}
		v.Attributes = attrs
	}
	return v
}

// NewStore возвращает пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{st: newState()}
}

// Atomic исполняет fn в одной транзакции над копией состояния.
func (s *Store) Atomic(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.st.clone()
	if err := fn(&memTx{st: draft}); err != nil {
		return err
	}
	s.st = draft
	return nil
}

// memTx выдаёт репозитории над черновиком состояния.
type memTx struct {
	st *state
}

func (t *memTx) Catalog() domain.CatalogRepository         { return &catalogRepository{st: t.st} }
func (t *memTx) Carts() domain.CartRepository              { return &cartRepository{st: t.st} }
func (t *memTx) Orders() domain.OrderRepository            { return &orderRepository{st: t.st} }
func (t *memTx) Reviews() domain.ReviewRepository          { return &reviewRepository{st: t.st} }
func (t *memTx) Addresses() domain.AddressRepository       { return &addressRepository{st: t.st} }
func (t *memTx) Shipping() domain.ShippingMethodRepository { return &shippingRepository{st: t.st} }
func (t *memTx) Outbox() domain.OutboxRepository           { return &outboxRepository{st: t.st} }

var _ domain.Store = (*Store)(nil)
var _ domain.Tx = (*memTx)(nil)
