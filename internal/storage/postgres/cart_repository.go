package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// cartRepository — PostgreSQL-реализация CartRepository.
type cartRepository struct {
	t *pgTx
}

func (r *cartRepository) Create(cart domain.Cart) error {
	if err := cart.Owner().Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	if cart.UpdatedAt.IsZero() {
		cart.UpdatedAt = now
	}
	if cart.Status == "" {
		cart.Status = domain.CartStatusActive
	}

	if _, err := r.t.tx.ExecContext(r.t.ctx, `
		INSERT INTO carts (id, user_id, session_id, status, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6)
	`, cart.ID, cart.UserID, cart.SessionID, string(cart.Status), cart.CreatedAt, cart.UpdatedAt); err != nil {
		return fmt.Errorf("insert cart: %w", err)
	}

	for _, item := range cart.Items {
		if err := r.UpsertItem(item); err != nil {
			return err
		}
	}
	return nil
}

func (r *cartRepository) ActiveByOwner(owner domain.CartOwner) (domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return domain.Cart{}, err
	}

	query := `
		SELECT id, COALESCE(user_id, ''), COALESCE(session_id, ''), status, created_at, updated_at
		FROM carts
		WHERE status = 'active' AND user_id = $1
	`
	arg := owner.UserID
	if owner.SessionID != "" {
		query = `
			SELECT id, COALESCE(user_id, ''), COALESCE(session_id, ''), status, created_at, updated_at
			FROM carts
			WHERE status = 'active' AND session_id = $1
		`
		arg = owner.SessionID
	}

	cart, err := r.scanCart(r.t.tx.QueryRowContext(r.t.ctx, query, arg))
	if err != nil {
		return domain.Cart{}, err
	}
	cart.Items, err = r.loadItems(cart.ID)
	if err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

func (r *cartRepository) Get(id string) (domain.Cart, error) {
	cart, err := r.scanCart(r.t.tx.QueryRowContext(r.t.ctx, `
		SELECT id, COALESCE(user_id, ''), COALESCE(session_id, ''), status, created_at, updated_at
		FROM carts
		WHERE id = $1
	`, id))
	if err != nil {
		return domain.Cart{}, err
	}
	cart.Items, err = r.loadItems(cart.ID)
	if err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

func (r *cartRepository) Item(itemID string) (domain.CartItem, error) {
	var item domain.CartItem
	err := r.t.tx.QueryRowContext(r.t.ctx, `
		SELECT id, cart_id, variant_id, quantity, unit_price_minor, created_at
		FROM cart_items
		WHERE id = $1
	`, itemID).Scan(&item.ID, &item.CartID, &item.VariantID, &item.Quantity, &item.UnitPriceMinor, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CartItem{}, domain.ErrCartItemNotFound
	}
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("query cart item: %w", err)
	}
	return item, nil
}

func (r *cartRepository) UpsertItem(item domain.CartItem) error {
	if item.Quantity <= 0 {
		return domain.ErrQuantityInvalid
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	res, err := r.t.tx.ExecContext(r.t.ctx, `
		INSERT INTO cart_items (id, cart_id, variant_id, quantity, unit_price_minor, created_at)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE EXISTS (SELECT 1 FROM carts WHERE id = $2)
		ON CONFLICT (cart_id, variant_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			unit_price_minor = EXCLUDED.unit_price_minor
	`, item.ID, item.CartID, item.VariantID, item.Quantity, item.UnitPriceMinor, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("upsert cart item rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrCartNotFound
	}

	return r.touch(item.CartID)
}

func (r *cartRepository) DeleteItem(itemID string) error {
	var cartID string
	err := r.t.tx.QueryRowContext(r.t.ctx, `
		DELETE FROM cart_items WHERE id = $1 RETURNING cart_id
	`, itemID).Scan(&cartID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrCartItemNotFound
	}
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return r.touch(cartID)
}

func (r *cartRepository) ClearItems(cartID string) error {
	if _, err := r.t.tx.ExecContext(r.t.ctx, `
		DELETE FROM cart_items WHERE cart_id = $1
	`, cartID); err != nil {
		return fmt.Errorf("clear cart items: %w", err)
	}
	return r.touch(cartID)
}

func (r *cartRepository) SetStatus(cartID string, status domain.CartStatus) error {
	res, err := r.t.tx.ExecContext(r.t.ctx, `
		UPDATE carts SET status = $2, updated_at = NOW() WHERE id = $1
	`, cartID, string(status))
	if err != nil {
		return fmt.Errorf("update cart status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update cart status rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrCartNotFound
	}
	return nil
}

func (r *cartRepository) AbandonGuestCartsBefore(cutoff time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	res, err := r.t.tx.ExecContext(r.t.ctx, `
		UPDATE carts SET status = 'abandoned'
		WHERE id IN (
			SELECT id FROM carts
			WHERE status = 'active' AND session_id IS NOT NULL AND updated_at < $1
			ORDER BY updated_at
			LIMIT $2
		)
	`, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("abandon guest carts: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("abandon guest carts rows affected: %w", err)
	}
	return int(affected), nil
}

func (r *cartRepository) scanCart(row *sql.Row) (domain.Cart, error) {
	var (
		cart   domain.Cart
		status string
	)
	err := row.Scan(&cart.ID, &cart.UserID, &cart.SessionID, &status, &cart.CreatedAt, &cart.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("scan cart: %w", err)
	}
	cart.Status = domain.CartStatus(status)
	return cart, nil
}

func (r *cartRepository) loadItems(cartID string) ([]domain.CartItem, error) {
	rows, err := r.t.tx.QueryContext(r.t.ctx, `
		SELECT id, cart_id, variant_id, quantity, unit_price_minor, created_at
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY created_at, id
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.CartItem, 0)
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.VariantID, &item.Quantity,
			&item.UnitPriceMinor, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart items: %w", err)
	}
	return items, nil
}

func (r *cartRepository) touch(cartID string) error {
	if _, err := r.t.tx.ExecContext(r.t.ctx, `
		UPDATE carts SET updated_at = NOW() WHERE id = $1
	`, cartID); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}

var _ domain.CartRepository = (*cartRepository)(nil)
