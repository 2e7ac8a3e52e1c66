package catalog

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// ProductView — товар вместе с вариантами и остатками для витрины.
type ProductView struct {
	Product  domain.Product
	Variants []VariantView
}

// VariantView — вариант товара с текущим остатком. InStock считается по
// фактическому остатку; отсутствие записи остатков трактуется как ноль.
type VariantView struct {
	Variant    domain.Variant
	PriceMinor int64
	Quantity   int32
	InStock    bool
}

// Service отвечает за чтение каталога: карточки товаров, выборки по
// категориям с поддеревом и отчёт о низких остатках для продавца.
type Service struct {
	store  domain.Store
	logger *log.Entry
}

// NewService создаёт сервис каталога.
func NewService(store domain.Store, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog")
	}
	return &Service{store: store, logger: logger}
}

// Product возвращает карточку товара с вариантами и остатками.
func (s *Service) Product(ctx context.Context, productID string) (ProductView, error) {
	var view ProductView
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		var err error
		view, err = productView(tx, productID)
		return err
	})
	if err != nil {
		return ProductView{}, err
	}
	return view, nil
}

// productView собирает карточку товара внутри открытой транзакции.
func productView(tx domain.Tx, productID string) (ProductView, error) {
	product, err := tx.Catalog().Product(productID)
	if err != nil {
		return ProductView{}, err
	}
	view := ProductView{Product: product}

	variants, err := tx.Catalog().VariantsByProduct(productID)
	if err != nil {
		return ProductView{}, err
	}
	view.Variants = make([]VariantView, 0, len(variants))
	for _, variant := range variants {
		vv := VariantView{
			Variant:    variant,
			PriceMinor: variant.EffectivePriceMinor(product),
		}
		inv, err := tx.Catalog().Inventory(variant.ID)
		switch {
		case err == nil:
			vv.Quantity = inv.Quantity
			vv.InStock = inv.Quantity > 0
		case errors.Is(err, domain.ErrInventoryNotFound):
			// Без записи остатков вариант считается распроданным.
		default:
			return ProductView{}, err
		}
		view.Variants = append(view.Variants, vv)
	}
	return view, nil
}

// ListByCategory возвращает товары категории и всех её подкатегорий.
func (s *Service) ListByCategory(ctx context.Context, categoryID string, limit int) ([]domain.Product, error) {
	var products []domain.Product
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		categories, err := tx.Catalog().Categories()
		if err != nil {
			return err
		}
		found := false
		for _, c := range categories {
			if c.ID == categoryID {
				found = true
				break
			}
		}
		if !found {
			return domain.ErrCategoryNotFound
		}

		products, err = tx.Catalog().ListProducts(domain.ProductFilter{
			CategoryIDs: domain.CategorySubtree(categories, categoryID),
			Limit:       limit,
		})
		return err
	})
	return products, err
}

// ListByVendor возвращает товары одного продавца.
func (s *Service) ListByVendor(ctx context.Context, vendorID string, limit int) ([]domain.Product, error) {
	var products []domain.Product
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		var err error
		products, err = tx.Catalog().ListProducts(domain.ProductFilter{
			VendorID: vendorID,
			Limit:    limit,
		})
		return err
	})
	return products, err
}

// LowStock возвращает позиции продавца с остатком не выше порога.
// Продавец видит только свой отчёт; администратор может запросить любого.
func (s *Service) LowStock(ctx context.Context, identity domain.Identity, vendorID string) ([]domain.LowStockEntry, error) {
	if err := identity.Require(domain.CapViewLowStock); err != nil {
		return nil, err
	}
	if vendorID != identity.UserID && !identity.Can(domain.CapViewAllOrders) {
		return nil, domain.ErrForbidden
	}

	var entries []domain.LowStockEntry
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		var err error
		entries, err = tx.Catalog().LowStock(vendorID)
		return err
	})
	return entries, err
}
