package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// Service управляет корзинами покупателей и гостей.
//
// Политика остатков: при добавлении в корзину остаток НЕ проверяется.
// Единственная точка истины по стоку — оформление заказа; проверка на
// добавлении всё равно не защитила бы от гонок.
type Service struct {
	store  domain.Store
	logger *log.Entry
}

// NewService создаёт сервис корзин.
func NewService(store domain.Store, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "cart")
	}
	return &Service{store: store, logger: logger}
}

// Get возвращает активную корзину владельца, создавая её при первом обращении.
func (s *Service) Get(ctx context.Context, owner domain.CartOwner) (domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return domain.Cart{}, err
	}

	var cart domain.Cart
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		var err error
		cart, err = s.findOrCreate(tx, owner)
		return err
	})
	return cart, err
}

// AddItem добавляет вариант в корзину владельца. Если позиция для варианта
// уже есть, количество суммируется; иначе создаётся новая позиция со
// снимком текущей цены варианта.
func (s *Service) AddItem(ctx context.Context, owner domain.CartOwner, variantID string, quantity int32) (domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return domain.Cart{}, err
	}
	if quantity <= 0 {
		return domain.Cart{}, domain.ErrQuantityInvalid
	}

	var cart domain.Cart
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		variant, err := tx.Catalog().Variant(variantID)
		if err != nil {
			return err
		}
		product, err := tx.Catalog().Product(variant.ProductID)
		if err != nil {
			return err
		}

		cart, err = s.findOrCreate(tx, owner)
		if err != nil {
			return err
		}

		if existing, ok := cart.ItemForVariant(variantID); ok {
			existing.Quantity += quantity
			if err := tx.Carts().UpsertItem(existing); err != nil {
				return err
			}
		} else {
			item := domain.CartItem{
				ID:             uuid.NewString(),
				CartID:         cart.ID,
				VariantID:      variantID,
				Quantity:       quantity,
				UnitPriceMinor: variant.EffectivePriceMinor(product),
				CreatedAt:      time.Now().UTC(),
			}
			if err := tx.Carts().UpsertItem(item); err != nil {
				return err
			}
		}

		cart, err = tx.Carts().ActiveByOwner(owner)
		return err
	})
	if err != nil {
		return domain.Cart{}, err
	}

	s.logger.WithFields(log.Fields{
		"cart_id":    cart.ID,
		"variant_id": variantID,
		"quantity":   quantity,
	}).Debug("item added to cart")
	return cart, nil
}

// UpdateItem меняет количество позиции. Количество <= 0 удаляет позицию.
func (s *Service) UpdateItem(ctx context.Context, owner domain.CartOwner, itemID string, quantity int32) (domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return domain.Cart{}, err
	}

	var cart domain.Cart
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		item, err := tx.Carts().Item(itemID)
		if err != nil {
			return err
		}
		owned, err := s.checkOwnership(tx, item.CartID, owner)
		if err != nil {
			return err
		}

		if quantity <= 0 {
			if err := tx.Carts().DeleteItem(itemID); err != nil {
				return err
			}
		} else {
			item.Quantity = quantity
			if err := tx.Carts().UpsertItem(item); err != nil {
				return err
			}
		}

		cart, err = tx.Carts().Get(owned.ID)
		return err
	})
	return cart, err
}

// RemoveItem удаляет позицию из корзины владельца.
func (s *Service) RemoveItem(ctx context.Context, owner domain.CartOwner, itemID string) (domain.Cart, error) {
	return s.UpdateItem(ctx, owner, itemID, 0)
}

// Merge сливает активную гостевую корзину в корзину пользователя:
// совпадающие варианты суммируются (снимок цены пользователя сохраняется),
// остальные позиции переносятся. Гостевая корзина очищается и помечается
// abandoned. Отсутствие гостевой корзины ошибкой не считается; любая другая
// ошибка возвращается вызывающему.
func (s *Service) Merge(ctx context.Context, userID, sessionID string) (domain.Cart, error) {
	if userID == "" || sessionID == "" {
		return domain.Cart{}, domain.ErrCartOwnerInvalid
	}

	var cart domain.Cart
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		userCart, err := s.findOrCreate(tx, domain.UserOwner(userID))
		if err != nil {
			return err
		}

		guestCart, err := tx.Carts().ActiveByOwner(domain.GuestOwner(sessionID))
		if err != nil {
			if errors.Is(err, domain.ErrCartNotFound) {
				cart = userCart
				return nil
			}
			return err
		}

		for _, guestItem := range guestCart.Items {
			if existing, ok := userCart.ItemForVariant(guestItem.VariantID); ok {
				existing.Quantity += guestItem.Quantity
				if err := tx.Carts().UpsertItem(existing); err != nil {
					return err
				}
				continue
			}
			moved := domain.CartItem{
				ID:             uuid.NewString(),
				CartID:         userCart.ID,
				VariantID:      guestItem.VariantID,
				Quantity:       guestItem.Quantity,
				UnitPriceMinor: guestItem.UnitPriceMinor,
				CreatedAt:      guestItem.CreatedAt,
			}
			if err := tx.Carts().UpsertItem(moved); err != nil {
				return err
			}
		}

		if err := tx.Carts().ClearItems(guestCart.ID); err != nil {
			return err
		}
		if err := tx.Carts().SetStatus(guestCart.ID, domain.CartStatusAbandoned); err != nil {
			return err
		}

		cart, err = tx.Carts().ActiveByOwner(domain.UserOwner(userID))
		return err
	})
	if err != nil {
		return domain.Cart{}, err
	}

	s.logger.WithFields(log.Fields{
		"user_id":    userID,
		"session_id": sessionID,
		"cart_id":    cart.ID,
	}).Info("guest cart merged")
	return cart, nil
}

// findOrCreate возвращает активную корзину владельца, создавая её лениво.
func (s *Service) findOrCreate(tx domain.Tx, owner domain.CartOwner) (domain.Cart, error) {
	cart, err := tx.Carts().ActiveByOwner(owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, domain.ErrCartNotFound) {
		return domain.Cart{}, err
	}

	now := time.Now().UTC()
	cart = domain.Cart{
		ID:        uuid.NewString(),
		UserID:    owner.UserID,
		SessionID: owner.SessionID,
		Status:    domain.CartStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.Carts().Create(cart); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

// checkOwnership возвращает корзину позиции, если она принадлежит владельцу.
func (s *Service) checkOwnership(tx domain.Tx, cartID string, owner domain.CartOwner) (domain.Cart, error) {
	cart, err := tx.Carts().Get(cartID)
	if err != nil {
		return domain.Cart{}, err
	}
	if !cart.OwnedBy(owner) {
		return domain.Cart{}, domain.ErrForbidden
	}
	return cart, nil
}
