package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// orderRepository — PostgreSQL-реализация OrderRepository. Заказ хранится в
// трёх таблицах: orders, order_items и payments; Create пишет все три в
// рамках объемлющей транзакции.
type orderRepository struct {
	t *pgTx
}

func (r *orderRepository) Create(order domain.Order) error {
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}

	if _, err := r.t.tx.ExecContext(r.t.ctx, `
		INSERT INTO orders (
			id, user_id, status, payment_status, currency,
			subtotal_minor, shipping_minor, total_minor,
			shipping_method_id, shipping_address_id, billing_address_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, order.ID, order.UserID, string(order.Status), string(order.PaymentStatus), order.Currency,
		order.SubtotalMinor, order.ShippingMinor, order.TotalMinor,
		order.ShippingMethodID, order.ShippingAddressID, order.BillingAddressID,
		order.CreatedAt, order.UpdatedAt); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		if item.CreatedAt.IsZero() {
			item.CreatedAt = order.CreatedAt
		}
		if item.Fulfillment == "" {
			item.Fulfillment = domain.FulfillmentPending
		}
		if _, err := r.t.tx.ExecContext(r.t.ctx, `
			INSERT INTO order_items (
				id, order_id, product_id, variant_id, vendor_id, sku,
				quantity, unit_price_minor, total_minor, fulfillment, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, item.ID, order.ID, item.ProductID, item.VariantID, item.VendorID, item.SKU,
			item.Quantity, item.UnitPriceMinor, item.TotalMinor, string(item.Fulfillment), item.CreatedAt); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	for _, payment := range order.Payments {
		if err := r.AddPayment(payment); err != nil {
			return err
		}
	}
	return nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	var (
		order         domain.Order
		status        string
		paymentStatus string
	)
	err := r.t.tx.QueryRowContext(r.t.ctx, `
		SELECT id, user_id, status, payment_status, currency,
		       subtotal_minor, shipping_minor, total_minor,
		       shipping_method_id, shipping_address_id, billing_address_id,
		       created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.UserID, &status, &paymentStatus, &order.Currency,
		&order.SubtotalMinor, &order.ShippingMinor, &order.TotalMinor,
		&order.ShippingMethodID, &order.ShippingAddressID, &order.BillingAddressID,
		&order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("query order: %w", err)
	}
	order.Status = domain.OrderStatus(status)
	order.PaymentStatus = domain.PaymentStatus(paymentStatus)

	if order.Items, err = r.loadItems(order.ID); err != nil {
		return domain.Order{}, err
	}
	if order.Payments, err = r.loadPayments(order.ID); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (r *orderRepository) ListByCustomer(userID string, limit int) ([]domain.Order, error) {
	return r.list(`WHERE user_id = $1`, limit, userID)
}

func (r *orderRepository) ListByVendor(vendorID string, limit int) ([]domain.Order, error) {
	return r.list(`
		WHERE EXISTS (
			SELECT 1 FROM order_items oi WHERE oi.order_id = orders.id AND oi.vendor_id = $1
		)
	`, limit, vendorID)
}

func (r *orderRepository) List(limit int) ([]domain.Order, error) {
	return r.list("", limit)
}

func (r *orderRepository) list(where string, limit int, args ...any) ([]domain.Order, error) {
	query := `
		SELECT id FROM orders
	` + where + `
		ORDER BY created_at DESC, id DESC
	`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.t.tx.QueryContext(r.t.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	result := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		order, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		result = append(result, order)
	}
	return result, nil
}

func (r *orderRepository) SetStatus(orderID string, status domain.OrderStatus) error {
	return r.updateOrder(orderID, `status = $2`, string(status))
}

func (r *orderRepository) SetPaymentStatus(orderID string, status domain.PaymentStatus) error {
	return r.updateOrder(orderID, `payment_status = $2`, string(status))
}

func (r *orderRepository) updateOrder(orderID, set string, value string) error {
	res, err := r.t.tx.ExecContext(r.t.ctx, `
		UPDATE orders SET `+set+`, updated_at = NOW() WHERE id = $1
	`, orderID, value)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) SetItemFulfillment(itemID string, status domain.FulfillmentStatus) error {
	var orderID string
	err := r.t.tx.QueryRowContext(r.t.ctx, `
		UPDATE order_items SET fulfillment = $2 WHERE id = $1 RETURNING order_id
	`, itemID, string(status)).Scan(&orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrOrderItemNotFound
	}
	if err != nil {
		return fmt.Errorf("update order item fulfillment: %w", err)
	}

	if _, err := r.t.tx.ExecContext(r.t.ctx, `
		UPDATE orders SET updated_at = NOW() WHERE id = $1
	`, orderID); err != nil {
		return fmt.Errorf("touch order: %w", err)
	}
	return nil
}

func (r *orderRepository) AddPayment(payment domain.Payment) error {
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	_, err := r.t.tx.ExecContext(r.t.ctx, `
		INSERT INTO payments (id, order_id, provider, amount_minor, currency, status, transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, payment.ID, payment.OrderID, payment.Provider, payment.AmountMinor,
		payment.Currency, string(payment.Status), payment.TransactionID, payment.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *orderRepository) HasQualifyingPurchase(userID, productID string) (bool, error) {
	var exists bool
	err := r.t.tx.QueryRowContext(r.t.ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM orders o
			JOIN order_items oi ON oi.order_id = o.id
			WHERE o.user_id = $1
			  AND oi.product_id = $2
			  AND oi.fulfillment <> 'cancelled'
			  AND o.status IN ('paid', 'processing', 'shipped', 'delivered')
		)
	`, userID, productID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query qualifying purchase: %w", err)
	}
	return exists, nil
}

func (r *orderRepository) loadItems(orderID string) ([]domain.OrderItem, error) {
	rows, err := r.t.tx.QueryContext(r.t.ctx, `
		SELECT id, order_id, product_id, variant_id, vendor_id, sku,
		       quantity, unit_price_minor, total_minor, fulfillment, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var (
			item        domain.OrderItem
			fulfillment string
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.VariantID, &item.VendorID,
			&item.SKU, &item.Quantity, &item.UnitPriceMinor, &item.TotalMinor, &fulfillment, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.Fulfillment = domain.FulfillmentStatus(fulfillment)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

func (r *orderRepository) loadPayments(orderID string) ([]domain.Payment, error) {
	rows, err := r.t.tx.QueryContext(r.t.ctx, `
		SELECT id, order_id, provider, amount_minor, currency, status, transaction_id, created_at
		FROM payments
		WHERE order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		var (
			payment domain.Payment
			status  string
		)
		if err := rows.Scan(&payment.ID, &payment.OrderID, &payment.Provider, &payment.AmountMinor,
			&payment.Currency, &status, &payment.TransactionID, &payment.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payment.Status = domain.PaymentStatus(status)
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return payments, nil
}

func (r *orderRepository) SalesReport(filter domain.SalesReportFilter) ([]domain.SalesReportRow, error) {
	// LEFT JOIN: товар мог быть удалён после продажи, снимок позиции остаётся.
	query := strings.Builder{}
	query.WriteString(`
		SELECT oi.product_id, COALESCE(MAX(p.name), MAX(oi.sku)),
		       SUM(oi.quantity)::bigint, SUM(oi.total_minor)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.fulfillment <> 'cancelled'
		  AND o.status <> 'cancelled'
	`)
	args := make([]any, 0, 3)
	if filter.VendorID != "" {
		args = append(args, filter.VendorID)
		fmt.Fprintf(&query, " AND oi.vendor_id = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		fmt.Fprintf(&query, " AND o.created_at >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		fmt.Fprintf(&query, " AND o.created_at <= $%d", len(args))
	}
	query.WriteString(" GROUP BY oi.product_id ORDER BY 2, 1")

	rows, err := r.t.tx.QueryContext(r.t.ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query sales report: %w", err)
	}
	defer rows.Close()

	result := make([]domain.SalesReportRow, 0)
	for rows.Next() {
		var row domain.SalesReportRow
		if err := rows.Scan(&row.ProductID, &row.ProductName, &row.QuantitySold, &row.RevenueMinor); err != nil {
			return nil, fmt.Errorf("scan sales report row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales report rows: %w", err)
	}
	return result, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
