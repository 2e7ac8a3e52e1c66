package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

func seedVariant(t *testing.T, store *Store, variantID string, qty int32) {
	t.Helper()

	err := store.Atomic(context.Background(), func(tx domain.Tx) error {
		if err := tx.Catalog().CreateProduct(domain.Product{
			ID: "product-1", VendorID: "vendor-1", Name: "Widget",
			PriceMinor: 1000, Currency: "USD", CreatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		if err := tx.Catalog().CreateVariant(domain.Variant{
			ID: variantID, ProductID: "product-1", SKU: "sku-" + variantID,
		}); err != nil {
			return err
		}
		return tx.Catalog().UpsertInventory(domain.Inventory{VariantID: variantID, Quantity: qty})
	})
	if err != nil {
		t.Fatalf("seed variant: %v", err)
	}
}

func TestAtomicRollbackDiscardsAllMutations(t *testing.T) {
	store := NewStore()
	seedVariant(t, store, "variant-1", 5)

	boom := errors.New("boom")
	err := store.Atomic(context.Background(), func(tx domain.Tx) error {
		inv, err := tx.Catalog().InventoryForUpdate("variant-1")
		if err != nil {
			return err
		}
		inv.Quantity -= 3
		if err := tx.Catalog().SaveInventory(inv); err != nil {
			return err
		}
		if err := tx.Orders().Create(domain.Order{ID: "order-1", UserID: "u-1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	err = store.Atomic(context.Background(), func(tx domain.Tx) error {
		inv, err := tx.Catalog().Inventory("variant-1")
		if err != nil {
			return err
		}
		if inv.Quantity != 5 {
			t.Errorf("inventory after rollback = %d, want 5", inv.Quantity)
		}
		if _, err := tx.Orders().Get("order-1"); !errors.Is(err, domain.ErrOrderNotFound) {
			t.Errorf("order after rollback: got %v, want ErrOrderNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestAtomicCommitPersists(t *testing.T) {
	store := NewStore()
	seedVariant(t, store, "variant-1", 5)

	err := store.Atomic(context.Background(), func(tx domain.Tx) error {
		inv, err := tx.Catalog().InventoryForUpdate("variant-1")
		if err != nil {
			return err
		}
		inv.Quantity -= 2
		return tx.Catalog().SaveInventory(inv)
	})
	if err != nil {
		t.Fatalf("atomic: %v", err)
	}

	_ = store.Atomic(context.Background(), func(tx domain.Tx) error {
		inv, err := tx.Catalog().Inventory("variant-1")
		if err != nil {
			return err
		}
		if inv.Quantity != 3 {
			t.Errorf("inventory = %d, want 3", inv.Quantity)
		}
		return nil
	})
}

func TestSaveInventoryRejectsNegative(t *testing.T) {
	store := NewStore()
	seedVariant(t, store, "variant-1", 1)

	err := store.Atomic(context.Background(), func(tx domain.Tx) error {
		inv, err := tx.Catalog().InventoryForUpdate("variant-1")
		if err != nil {
			return err
		}
		inv.Quantity = -1
		return tx.Catalog().SaveInventory(inv)
	})
	if !errors.Is(err, domain.ErrInventoryUnderflow) {
		t.Fatalf("got %v, want ErrInventoryUnderflow", err)
	}
}

func TestAtomicSerializesConcurrentDecrements(t *testing.T) {
	store := NewStore()
	seedVariant(t, store, "variant-1", 1)

	// Две конкурирующие транзакции пытаются списать последнюю единицу.
	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.Atomic(context.Background(), func(tx domain.Tx) error {
				inv, err := tx.Catalog().InventoryForUpdate("variant-1")
				if err != nil {
					return err
				}
				if inv.Quantity < 1 {
					return domain.ErrInsufficientStock
				}
				inv.Quantity--
				return tx.Catalog().SaveInventory(inv)
			})
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, domain.ErrInsufficientStock) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("succeeded = %d, want exactly 1", succeeded)
	}
}

func TestAtomicRespectsCancelledContext(t *testing.T) {
	store := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Atomic(ctx, func(tx domain.Tx) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestOutboxOrderingAndStats(t *testing.T) {
	store := NewStore()

	err := store.Atomic(context.Background(), func(tx domain.Tx) error {
		for _, et := range []string{"first", "second", "third"} {
			if _, err := tx.Outbox().Enqueue(domain.OutboxMessage{
				AggregateType: "order", AggregateID: "order-1", EventType: et,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	_ = store.Atomic(context.Background(), func(tx domain.Tx) error {
		pending, err := tx.Outbox().PullPending(10)
		if err != nil {
			return err
		}
		if len(pending) != 3 {
			t.Fatalf("pending = %d, want 3", len(pending))
		}
		if pending[0].EventType != "first" || pending[2].EventType != "third" {
			t.Fatalf("pending out of order: %v", pending)
		}
		if err := tx.Outbox().MarkSent(pending[0].ID); err != nil {
			return err
		}
		stats, err := tx.Outbox().Stats()
		if err != nil {
			return err
		}
		if stats.PendingCount != 2 {
			t.Fatalf("stats.PendingCount = %d, want 2", stats.PendingCount)
		}
		return nil
	})
}
