package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// catalogRepository — PostgreSQL-реализация CatalogRepository поверх
// открытой транзакции.
type catalogRepository struct {
	t *pgTx
}

func (r *catalogRepository) CreateCategory(category domain.Category) error {
	_, err := r.t.tx.ExecContext(r.t.ctx, `
		INSERT INTO categories (id, parent_id, name)
		VALUES ($1, NULLIF($2, ''), $3)
		ON CONFLICT (id) DO UPDATE SET parent_id = EXCLUDED.parent_id, name = EXCLUDED.name
	`, category.ID, category.ParentID, category.Name)
	if err != nil {
		return fmt.Errorf("upsert category: %w", err)
	}
	return nil
}

func (r *catalogRepository) Categories() ([]domain.Category, error) {
	rows, err := r.t.tx.QueryContext(r.t.ctx, `
		SELECT id, COALESCE(parent_id, ''), name
		FROM categories
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Category, 0)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.ParentID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return result, nil
}

func (r *catalogRepository) CreateProduct(product domain.Product) error {
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	_, err := r.t.tx.ExecContext(r.t.ctx, `
		INSERT INTO products (id, vendor_id, category_id, name, description, price_minor, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			category_id = EXCLUDED.category_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price_minor = EXCLUDED.price_minor,
			currency = EXCLUDED.currency
	`, product.ID, product.VendorID, product.CategoryID, product.Name,
		product.Description, product.PriceMinor, product.Currency, product.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

func (r *catalogRepository) UpdateProduct(product domain.Product) error {
	res, err := r.t.tx.ExecContext(r.t.ctx, `
		UPDATE products
		SET category_id = $2, name = $3, description = $4, price_minor = $5, currency = $6
		WHERE id = $1
	`, product.ID, product.CategoryID, product.Name, product.Description,
		product.PriceMinor, product.Currency)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// DeleteProduct удаляет товар; варианты, остатки, позиции корзин и отзывы
// уходят каскадом по FK. Позиции заказов ссылок на товар не держат.
func (r *catalogRepository) DeleteProduct(id string) error {
	res, err := r.t.tx.ExecContext(r.t.ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *catalogRepository) Product(id string) (domain.Product, error) {
	var p domain.Product
	err := r.t.tx.QueryRowContext(r.t.ctx, `
		SELECT id, vendor_id, category_id, name, description, price_minor, currency, created_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.VendorID, &p.CategoryID, &p.Name, &p.Description, &p.PriceMinor, &p.Currency, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("query product: %w", err)
	}
	return p, nil
}

func (r *catalogRepository) ListProducts(filter domain.ProductFilter) ([]domain.Product, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, vendor_id, category_id, name, description, price_minor, currency, created_at
		FROM products
		WHERE 1=1
	`)
	args := make([]any, 0, 3)
	if filter.VendorID != "" {
		args = append(args, filter.VendorID)
		fmt.Fprintf(&query, " AND vendor_id = $%d", len(args))
	}
	if len(filter.CategoryIDs) > 0 {
		args = append(args, filter.CategoryIDs)
		fmt.Fprintf(&query, " AND category_id = ANY($%d)", len(args))
	}
	query.WriteString(" ORDER BY created_at DESC, id DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&query, " LIMIT $%d", len(args))
	}

	rows, err := r.t.tx.QueryContext(r.t.ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.VendorID, &p.CategoryID, &p.Name, &p.Description,
			&p.PriceMinor, &p.Currency, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return result, nil
}

func (r *catalogRepository) CreateVariant(variant domain.Variant) error {
	attrs, err := json.Marshal(variant.Attributes)
	if err != nil {
		return fmt.Errorf("marshal variant attributes: %w", err)
	}
	if variant.Attributes == nil {
		attrs = []byte("{}")
	}
	if _, err := r.t.tx.ExecContext(r.t.ctx, `
		INSERT INTO product_variants (id, product_id, sku, price_minor, attributes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			sku = EXCLUDED.sku,
			price_minor = EXCLUDED.price_minor,
			attributes = EXCLUDED.attributes
	`, variant.ID, variant.ProductID, variant.SKU, variant.PriceMinor, attrs); err != nil {
		return fmt.Errorf("upsert variant: %w", err)
	}
	return nil
}

func (r *catalogRepository) Variant(id string) (domain.Variant, error) {
	var (
		v     domain.Variant
		attrs []byte
	)
	err := r.t.tx.QueryRowContext(r.t.ctx, `
		SELECT id, product_id, sku, price_minor, attributes
		FROM product_variants
		WHERE id = $1
	`, id).Scan(&v.ID, &v.ProductID, &v.SKU, &v.PriceMinor, &attrs)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Variant{}, domain.ErrVariantNotFound
	}
	if err != nil {
		return domain.Variant{}, fmt.Errorf("query variant: %w", err)
	}
	if err := json.Unmarshal(attrs, &v.Attributes); err != nil {
		return domain.Variant{}, fmt.Errorf("unmarshal variant attributes: %w", err)
	}
	return v, nil
}

func (r *catalogRepository) VariantsByProduct(productID string) ([]domain.Variant, error) {
	rows, err := r.t.tx.QueryContext(r.t.ctx, `
		SELECT id, product_id, sku, price_minor, attributes
		FROM product_variants
		WHERE product_id = $1
		ORDER BY sku
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("query variants: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Variant, 0)
	for rows.Next() {
		var (
			v     domain.Variant
			attrs []byte
		)
		if err := rows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.PriceMinor, &attrs); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		if err := json.Unmarshal(attrs, &v.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal variant attributes: %w", err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variants: %w", err)
	}
	return result, nil
}

func (r *catalogRepository) UpsertInventory(inv domain.Inventory) error {
	_, err := r.t.tx.ExecContext(r.t.ctx, `
		INSERT INTO inventories (variant_id, quantity, low_stock_threshold, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (variant_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			low_stock_threshold = EXCLUDED.low_stock_threshold,
			updated_at = NOW()
	`, inv.VariantID, inv.Quantity, inv.LowStockThreshold)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrInventoryUnderflow
		}
		return fmt.Errorf("upsert inventory: %w", err)
	}
	return nil
}

func (r *catalogRepository) Inventory(variantID string) (domain.Inventory, error) {
	return r.inventory(variantID, false)
}

// InventoryForUpdate читает остаток с SELECT ... FOR UPDATE: строка остаётся
// заблокированной до конца транзакции, параллельные checkout ждут.
func (r *catalogRepository) InventoryForUpdate(variantID string) (domain.Inventory, error) {
	return r.inventory(variantID, true)
}

func (r *catalogRepository) inventory(variantID string, forUpdate bool) (domain.Inventory, error) {
	query := `
		SELECT variant_id, quantity, low_stock_threshold, updated_at
		FROM inventories
		WHERE variant_id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var inv domain.Inventory
	err := r.t.tx.QueryRowContext(r.t.ctx, query, variantID).
		Scan(&inv.VariantID, &inv.Quantity, &inv.LowStockThreshold, &inv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Inventory{}, domain.ErrInventoryNotFound
	}
	if err != nil {
		return domain.Inventory{}, fmt.Errorf("query inventory: %w", err)
	}
	return inv, nil
}

func (r *catalogRepository) SaveInventory(inv domain.Inventory) error {
	if inv.Quantity < 0 {
		return domain.ErrInventoryUnderflow
	}
	res, err := r.t.tx.ExecContext(r.t.ctx, `
		UPDATE inventories
		SET quantity = $2, low_stock_threshold = $3, updated_at = NOW()
		WHERE variant_id = $1
	`, inv.VariantID, inv.Quantity, inv.LowStockThreshold)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrInventoryUnderflow
		}
		return fmt.Errorf("update inventory: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update inventory rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrInventoryNotFound
	}
	return nil
}

func (r *catalogRepository) LowStock(vendorID string) ([]domain.LowStockEntry, error) {
	query := `
		SELECT p.id, p.name, v.id, v.sku, i.quantity, i.low_stock_threshold
		FROM inventories i
		JOIN product_variants v ON v.id = i.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE i.quantity <= i.low_stock_threshold
	`
	args := make([]any, 0, 1)
	if vendorID != "" {
		args = append(args, vendorID)
		query += " AND p.vendor_id = $1"
	}
	query += " ORDER BY v.sku"

	rows, err := r.t.tx.QueryContext(r.t.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query low stock: %w", err)
	}
	defer rows.Close()

	result := make([]domain.LowStockEntry, 0)
	for rows.Next() {
		var e domain.LowStockEntry
		if err := rows.Scan(&e.ProductID, &e.ProductName, &e.VariantID, &e.SKU, &e.Quantity, &e.Threshold); err != nil {
			return nil, fmt.Errorf("scan low stock entry: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate low stock entries: %w", err)
	}
	return result, nil
}

var _ domain.CatalogRepository = (*catalogRepository)(nil)
