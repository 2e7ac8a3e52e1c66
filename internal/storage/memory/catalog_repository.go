package memory

import (
	"sort"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// catalogRepository — in-memory реализация CatalogRepository.
type catalogRepository struct {
	st *state
}

func (r *catalogRepository) CreateCategory(category domain.Category) error {
	r.st.categories[category.ID] = category
	return nil
}

func (r *catalogRepository) Categories() ([]domain.Category, error) {
	result := make([]domain.Category, 0, len(r.st.categories))
	for _, c := range r.st.categories {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *catalogRepository) CreateProduct(product domain.Product) error {
	r.st.products[product.ID] = product
	return nil
}

func (r *catalogRepository) UpdateProduct(product domain.Product) error {
	if _, ok := r.st.products[product.ID]; !ok {
		return domain.ErrProductNotFound
	}
	r.st.products[product.ID] = product
	return nil
}

// DeleteProduct каскадно убирает товар: варианты, их остатки, позиции
// открытых корзин и отзывы. Снимки в позициях заказов не трогаются.
func (r *catalogRepository) DeleteProduct(id string) error {
	if _, ok := r.st.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(r.st.products, id)

	removed := make(map[string]struct{})
	for variantID, v := range r.st.variants {
		if v.ProductID != id {
			continue
		}
		removed[variantID] = struct{}{}
		delete(r.st.variants, variantID)
		delete(r.st.inventories, variantID)
	}

	for cartID, cart := range r.st.carts {
		kept := cart.Items[:0]
		for _, item := range cart.Items {
			if _, gone := removed[item.VariantID]; !gone {
				kept = append(kept, item)
			}
		}
		if len(kept) != len(cart.Items) {
			cart.Items = kept
			r.st.carts[cartID] = cart
		}
	}

	for reviewID, review := range r.st.reviews {
		if review.ProductID == id {
			delete(r.st.reviews, reviewID)
		}
	}
	return nil
}

func (r *catalogRepository) Product(id string) (domain.Product, error) {
	product, ok := r.st.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

func (r *catalogRepository) ListProducts(filter domain.ProductFilter) ([]domain.Product, error) {
	categorySet := make(map[string]struct{}, len(filter.CategoryIDs))
	for _, id := range filter.CategoryIDs {
		categorySet[id] = struct{}{}
	}

	result := make([]domain.Product, 0)
	for _, p := range r.st.products {
		if filter.VendorID != "" && p.VendorID != filter.VendorID {
			continue
		}
		if len(categorySet) > 0 {
			if _, ok := categorySet[p.CategoryID]; !ok {
				continue
			}
		}
		result = append(result, p)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *catalogRepository) CreateVariant(variant domain.Variant) error {
	r.st.variants[variant.ID] = cloneVariant(variant)
	return nil
}

func (r *catalogRepository) Variant(id string) (domain.Variant, error) {
	variant, ok := r.st.variants[id]
	if !ok {
		return domain.Variant{}, domain.ErrVariantNotFound
	}
	return cloneVariant(variant), nil
}

func (r *catalogRepository) VariantsByProduct(productID string) ([]domain.Variant, error) {
	result := make([]domain.Variant, 0)
	for _, v := range r.st.variants {
		if v.ProductID == productID {
			result = append(result, cloneVariant(v))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SKU < result[j].SKU })
	return result, nil
}

func (r *catalogRepository) UpsertInventory(inv domain.Inventory) error {
	if inv.UpdatedAt.IsZero() {
		inv.UpdatedAt = time.Now().UTC()
	}
	r.st.inventories[inv.VariantID] = inv
	return nil
}

func (r *catalogRepository) Inventory(variantID string) (domain.Inventory, error) {
	inv, ok := r.st.inventories[variantID]
	if !ok {
		return domain.Inventory{}, domain.ErrInventoryNotFound
	}
	return inv, nil
}

// InventoryForUpdate эквивалентен Inventory: глобальный mutex хранилища уже
// даёт транзакции эксклюзивный доступ к строке.
func (r *catalogRepository) InventoryForUpdate(variantID string) (domain.Inventory, error) {
	return r.Inventory(variantID)
}

func (r *catalogRepository) SaveInventory(inv domain.Inventory) error {
	if _, ok := r.st.inventories[inv.VariantID]; !ok {
		return domain.ErrInventoryNotFound
	}
	if inv.Quantity < 0 {
		return domain.ErrInventoryUnderflow
	}
	inv.UpdatedAt = time.Now().UTC()
	r.st.inventories[inv.VariantID] = inv
	return nil
}

func (r *catalogRepository) LowStock(vendorID string) ([]domain.LowStockEntry, error) {
	result := make([]domain.LowStockEntry, 0)
	for _, inv := range r.st.inventories {
		if !inv.Low() {
			continue
		}
		variant, ok := r.st.variants[inv.VariantID]
		if !ok {
			continue
		}
		product, ok := r.st.products[variant.ProductID]
		if !ok {
			continue
		}
		if vendorID != "" && product.VendorID != vendorID {
			continue
		}
		result = append(result, domain.LowStockEntry{
			ProductID:   product.ID,
			ProductName: product.Name,
			VariantID:   variant.ID,
			SKU:         variant.SKU,
			Quantity:    inv.Quantity,
			Threshold:   inv.LowStockThreshold,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SKU < result[j].SKU })
	return result, nil
}

var _ domain.CatalogRepository = (*catalogRepository)(nil)
