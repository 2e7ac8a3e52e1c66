package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// VariantInput — вариант товара при создании. Quantity задаёт стартовый
// остаток; ноль допустим.
type VariantInput struct {
	SKU               string
	PriceMinor        int64
	Attributes        map[string]string
	Quantity          int32
	LowStockThreshold int32
}

// ProductInput — данные нового товара.
type ProductInput struct {
	CategoryID  string
	Name        string
	Description string
	PriceMinor  int64
	Currency    string
	Variants    []VariantInput
}

// ProductPatch — частичное обновление товара; nil-поле не меняется.
type ProductPatch struct {
	CategoryID  *string
	Name        *string
	Description *string
	PriceMinor  *int64
	Currency    *string
}

// CreateProduct создаёт товар продавца вместе с вариантами и стартовыми
// остатками. Товар принадлежит identity; администратор создаёт так же от
// своего имени.
func (s *Service) CreateProduct(ctx context.Context, identity domain.Identity, input ProductInput) (ProductView, error) {
	if err := identity.Require(domain.CapManageProducts); err != nil {
		return ProductView{}, err
	}
	if err := validateProductInput(input); err != nil {
		return ProductView{}, err
	}

	var view ProductView
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		if err := categoryExists(tx, input.CategoryID); err != nil {
			return err
		}

		product := domain.Product{
			ID:          uuid.NewString(),
			VendorID:    identity.UserID,
			CategoryID:  input.CategoryID,
			Name:        input.Name,
			Description: input.Description,
			PriceMinor:  input.PriceMinor,
			Currency:    input.Currency,
			CreatedAt:   time.Now().UTC(),
		}
		if err := tx.Catalog().CreateProduct(product); err != nil {
			return err
		}
		for _, vi := range input.Variants {
			if err := createVariant(tx, product.ID, vi); err != nil {
				return err
			}
		}

		var err error
		view, err = productView(tx, product.ID)
		return err
	})
	if err != nil {
		return ProductView{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": view.Product.ID,
		"vendor_id":  view.Product.VendorID,
		"variants":   len(view.Variants),
	}).Info("product created")
	return view, nil
}

// UpdateProduct обновляет поля товара. Продавец меняет только свои товары.
func (s *Service) UpdateProduct(ctx context.Context, identity domain.Identity, productID string, patch ProductPatch) (ProductView, error) {
	if err := identity.Require(domain.CapManageProducts); err != nil {
		return ProductView{}, err
	}

	var view ProductView
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		product, err := s.ownedProduct(tx, identity, productID)
		if err != nil {
			return err
		}

		if patch.CategoryID != nil {
			if err := categoryExists(tx, *patch.CategoryID); err != nil {
				return err
			}
			product.CategoryID = *patch.CategoryID
		}
		if patch.Name != nil {
			if *patch.Name == "" {
				return domain.ErrProductNameRequired
			}
			product.Name = *patch.Name
		}
		if patch.Description != nil {
			product.Description = *patch.Description
		}
		if patch.PriceMinor != nil {
			if *patch.PriceMinor < 0 {
				return domain.ErrPriceInvalid
			}
			product.PriceMinor = *patch.PriceMinor
		}
		if patch.Currency != nil {
			if *patch.Currency == "" {
				return domain.ErrCurrencyRequired
			}
			product.Currency = *patch.Currency
		}

		if err := tx.Catalog().UpdateProduct(product); err != nil {
			return err
		}
		view, err = productView(tx, productID)
		return err
	})
	if err != nil {
		return ProductView{}, err
	}

	s.logger.WithField("product_id", productID).Info("product updated")
	return view, nil
}

// AddVariant добавляет вариант к существующему товару продавца.
func (s *Service) AddVariant(ctx context.Context, identity domain.Identity, productID string, input VariantInput) (ProductView, error) {
	if err := identity.Require(domain.CapManageProducts); err != nil {
		return ProductView{}, err
	}
	if err := validateVariantInput(input); err != nil {
		return ProductView{}, err
	}

	var view ProductView
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		if _, err := s.ownedProduct(tx, identity, productID); err != nil {
			return err
		}
		if err := createVariant(tx, productID, input); err != nil {
			return err
		}

		var err error
		view, err = productView(tx, productID)
		return err
	})
	if err != nil {
		return ProductView{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": productID,
		"sku":        input.SKU,
	}).Info("variant added")
	return view, nil
}

// DeleteProduct удаляет товар продавца вместе с вариантами и остатками.
// Позиции уже оформленных заказов хранят снимки и не затрагиваются.
func (s *Service) DeleteProduct(ctx context.Context, identity domain.Identity, productID string) error {
	if err := identity.Require(domain.CapManageProducts); err != nil {
		return err
	}

	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		if _, err := s.ownedProduct(tx, identity, productID); err != nil {
			return err
		}
		return tx.Catalog().DeleteProduct(productID)
	})
	if err != nil {
		return err
	}

	s.logger.WithField("product_id", productID).Info("product deleted")
	return nil
}

// ownedProduct возвращает товар, если identity вправе им управлять:
// продавец — только своими, администратор — любыми.
func (s *Service) ownedProduct(tx domain.Tx, identity domain.Identity, productID string) (domain.Product, error) {
	product, err := tx.Catalog().Product(productID)
	if err != nil {
		return domain.Product{}, err
	}
	if product.VendorID != identity.UserID && !identity.Can(domain.CapManageAllProducts) {
		return domain.Product{}, domain.ErrForbidden
	}
	return product, nil
}

func categoryExists(tx domain.Tx, categoryID string) error {
	categories, err := tx.Catalog().Categories()
	if err != nil {
		return err
	}
	for _, c := range categories {
		if c.ID == categoryID {
			return nil
		}
	}
	return domain.ErrCategoryNotFound
}

func createVariant(tx domain.Tx, productID string, input VariantInput) error {
	variant := domain.Variant{
		ID:         uuid.NewString(),
		ProductID:  productID,
		SKU:        input.SKU,
		PriceMinor: input.PriceMinor,
		Attributes: input.Attributes,
	}
	if err := tx.Catalog().CreateVariant(variant); err != nil {
		return err
	}
	return tx.Catalog().UpsertInventory(domain.Inventory{
		VariantID:         variant.ID,
		Quantity:          input.Quantity,
		LowStockThreshold: input.LowStockThreshold,
	})
}

func validateProductInput(input ProductInput) error {
	if input.Name == "" {
		return domain.ErrProductNameRequired
	}
	if input.PriceMinor < 0 {
		return domain.ErrPriceInvalid
	}
	if input.Currency == "" {
		return domain.ErrCurrencyRequired
	}
	for _, vi := range input.Variants {
		if err := validateVariantInput(vi); err != nil {
			return err
		}
	}
	return nil
}

func validateVariantInput(input VariantInput) error {
	if input.SKU == "" {
		return domain.ErrSKURequired
	}
	if input.PriceMinor < 0 {
		return domain.ErrPriceInvalid
	}
	if input.Quantity < 0 {
		return domain.ErrInventoryUnderflow
	}
	return nil
}
