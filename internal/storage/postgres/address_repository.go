package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// addressRepository — PostgreSQL-реализация AddressRepository.
type addressRepository struct {
	t *pgTx
}

func (r *addressRepository) Create(address domain.Address) error {
	if err := address.Validate(); err != nil {
		return err
	}
	if address.CreatedAt.IsZero() {
		address.CreatedAt = time.Now().UTC()
	}
	_, err := r.t.tx.ExecContext(r.t.ctx, `
		INSERT INTO addresses (id, user_id, full_name, line1, line2, city, state, postal_code, country, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, address.ID, address.UserID, address.FullName, address.Line1, address.Line2,
		address.City, address.State, address.PostalCode, address.Country, address.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	return nil
}

func (r *addressRepository) Get(id string) (domain.Address, error) {
	var address domain.Address
	err := r.t.tx.QueryRowContext(r.t.ctx, `
		SELECT id, user_id, full_name, line1, line2, city, state, postal_code, country, created_at
		FROM addresses
		WHERE id = $1
	`, id).Scan(&address.ID, &address.UserID, &address.FullName, &address.Line1, &address.Line2,
		&address.City, &address.State, &address.PostalCode, &address.Country, &address.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Address{}, domain.ErrAddressNotFound
	}
	if err != nil {
		return domain.Address{}, fmt.Errorf("query address: %w", err)
	}
	return address, nil
}

// shippingRepository — PostgreSQL-реализация ShippingMethodRepository.
// Get отдаёт только активные способы доставки, выключенные методы для
// оформления заказа не существуют.
type shippingRepository struct {
	t *pgTx
}

func (r *shippingRepository) Create(method domain.ShippingMethod) error {
	_, err := r.t.tx.ExecContext(r.t.ctx, `
		INSERT INTO shipping_methods (id, name, price_minor, estimated_days, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price_minor = EXCLUDED.price_minor,
			estimated_days = EXCLUDED.estimated_days,
			active = EXCLUDED.active
	`, method.ID, method.Name, method.PriceMinor, method.EstimatedDays, method.Active)
	if err != nil {
		return fmt.Errorf("upsert shipping method: %w", err)
	}
	return nil
}

func (r *shippingRepository) Get(id string) (domain.ShippingMethod, error) {
	return r.scanOne(r.t.tx.QueryRowContext(r.t.ctx, `
		SELECT id, name, price_minor, estimated_days, active
		FROM shipping_methods
		WHERE id = $1 AND active
	`, id))
}

func (r *shippingRepository) FirstActive() (domain.ShippingMethod, error) {
	return r.scanOne(r.t.tx.QueryRowContext(r.t.ctx, `
		SELECT id, name, price_minor, estimated_days, active
		FROM shipping_methods
		WHERE active
		ORDER BY id
		LIMIT 1
	`))
}

func (r *shippingRepository) scanOne(row *sql.Row) (domain.ShippingMethod, error) {
	var method domain.ShippingMethod
	err := row.Scan(&method.ID, &method.Name, &method.PriceMinor, &method.EstimatedDays, &method.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ShippingMethod{}, domain.ErrShippingMethodNotFound
	}
	if err != nil {
		return domain.ShippingMethod{}, fmt.Errorf("query shipping method: %w", err)
	}
	return method, nil
}

var (
	_ domain.AddressRepository        = (*addressRepository)(nil)
	_ domain.ShippingMethodRepository = (*shippingRepository)(nil)
)
