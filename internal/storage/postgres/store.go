package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
)

// Store оборачивает SQL-подключение к PostgreSQL и реализует domain.Store:
// все мутации каталога, корзин и заказов идут через Atomic.
type Store struct {
	db *sql.DB
}

// Open открывает подключение к PostgreSQL и проверяет доступность базы.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{db: db}, nil
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Atomic исполняет fn в одной SQL-транзакции. Ошибка fn откатывает
// транзакцию целиком; блокировки строк (SELECT ... FOR UPDATE в
// InventoryForUpdate) удерживаются до commit/rollback.
func (s *Store) Atomic(ctx context.Context, fn func(tx domain.Tx) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&pgTx{ctx: ctx, tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// pgTx выдаёт репозитории, привязанные к открытой транзакции.
type pgTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *pgTx) Catalog() domain.CatalogRepository        { return &catalogRepository{t} }
func (t *pgTx) Carts() domain.CartRepository             { return &cartRepository{t} }
func (t *pgTx) Orders() domain.OrderRepository           { return &orderRepository{t} }
func (t *pgTx) Reviews() domain.ReviewRepository         { return &reviewRepository{t} }
func (t *pgTx) Addresses() domain.AddressRepository      { return &addressRepository{t} }
func (t *pgTx) Shipping() domain.ShippingMethodRepository { return &shippingRepository{t} }
func (t *pgTx) Outbox() domain.OutboxRepository          { return &outboxRepository{t} }

var (
	_ domain.Store = (*Store)(nil)
	_ domain.Tx    = (*pgTx)(nil)
)
