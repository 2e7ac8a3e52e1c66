package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/service/payment"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
)

func customer(userID string) domain.Identity {
	return domain.Identity{UserID: userID, Role: domain.RoleCustomer}
}

func vendor(userID string) domain.Identity {
	return domain.Identity{UserID: userID, Role: domain.RoleVendor}
}

func admin() domain.Identity {
	return domain.Identity{UserID: "admin-1", Role: domain.RoleAdmin}
}

// seedPaidOrder создаёт оплаченный заказ пользователя user-1 на две единицы
// variant-1 (продавец vendor-1) с остатком на складе после списания.
func seedPaidOrder(t *testing.T, store *memory.Store, orderID string, stockAfter int32) {
	t.Helper()

	err := store.Atomic(context.Background(), func(tx domain.Tx) error {
		now := time.Now().UTC()
		if _, err := tx.Catalog().Product("product-1"); errors.Is(err, domain.ErrProductNotFound) {
			if err := tx.Catalog().CreateProduct(domain.Product{
				ID: "product-1", VendorID: "vendor-1", Name: "Widget",
				PriceMinor: 1000, Currency: "USD", CreatedAt: now,
			}); err != nil {
				return err
			}
			if err := tx.Catalog().CreateVariant(domain.Variant{
				ID: "variant-1", ProductID: "product-1", SKU: "sku-1",
			}); err != nil {
				return err
			}
		}
		if err := tx.Catalog().UpsertInventory(domain.Inventory{VariantID: "variant-1", Quantity: stockAfter}); err != nil {
			return err
		}

		order := domain.Order{
			ID: orderID, UserID: "user-1",
			Status: domain.OrderStatusPaid, PaymentStatus: domain.PaymentStatusPaid,
			Currency: "USD", SubtotalMinor: 2000, ShippingMinor: 500, TotalMinor: 2500,
			Items: []domain.OrderItem{{
				ID: orderID + "-item-1", OrderID: orderID,
				ProductID: "product-1", VariantID: "variant-1", VendorID: "vendor-1",
				SKU: "sku-1", Quantity: 2, UnitPriceMinor: 1000, TotalMinor: 2000,
				Fulfillment: domain.FulfillmentPending, CreatedAt: now,
			}},
			Payments: []domain.Payment{{
				ID: orderID + "-pay-1", OrderID: orderID, Provider: "mockpay",
				AmountMinor: 2500, Currency: "USD", Status: domain.PaymentStatusPaid,
				TransactionID: "MOCK-TXN-1", CreatedAt: now,
			}},
			CreatedAt: now, UpdatedAt: now,
		}
		return tx.Orders().Create(order)
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}
}

func TestCancel_RestoresStockAndRefunds(t *testing.T) {
	store := memory.NewStore()
	seedPaidOrder(t, store, "order-1", 3)
	svc := NewService(store, payment.NewMockGateway(nil), nil)

	order, err := svc.Cancel(context.Background(), customer("user-1"), "order-1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if order.Status != domain.OrderStatusCancelled {
		t.Fatalf("status = %s, want cancelled", order.Status)
	}
	if order.PaymentStatus != domain.PaymentStatusRefunded {
		t.Fatalf("payment status = %s, want refunded", order.PaymentStatus)
	}
	if order.Items[0].Fulfillment != domain.FulfillmentCancelled {
		t.Fatalf("item fulfillment = %s, want cancelled", order.Items[0].Fulfillment)
	}

	refunds := 0
	for _, p := range order.Payments {
		if p.Status == domain.PaymentStatusRefunded {
			refunds++
			if p.AmountMinor != 2500 {
				t.Errorf("refund amount = %d, want 2500", p.AmountMinor)
			}
		}
	}
	if refunds != 1 {
		t.Fatalf("refund rows = %d, want 1", refunds)
	}

	_ = store.Atomic(context.Background(), func(tx domain.Tx) error {
		inv, err := tx.Catalog().Inventory("variant-1")
		if err != nil {
			return err
		}
		if inv.Quantity != 5 {
			t.Errorf("inventory = %d, want 3+2 restored", inv.Quantity)
		}
		pending, _ := tx.Outbox().PullPending(10)
		if len(pending) != 1 || pending[0].EventType != domain.EventOrderCancelled {
			t.Errorf("outbox = %+v, want one order.cancelled event", pending)
		}
		return nil
	})
}

func TestCancel_SecondCancelConflicts(t *testing.T) {
	store := memory.NewStore()
	seedPaidOrder(t, store, "order-1", 3)
	svc := NewService(store, payment.NewMockGateway(nil), nil)

	if _, err := svc.Cancel(context.Background(), customer("user-1"), "order-1"); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), customer("user-1"), "order-1"); !errors.Is(err, domain.ErrOrderAlreadyCancelled) {
		t.Fatalf("second cancel: got %v, want ErrOrderAlreadyCancelled", err)
	}

	// Остаток возвращён ровно один раз.
	_ = store.Atomic(context.Background(), func(tx domain.Tx) error {
		inv, err := tx.Catalog().Inventory("variant-1")
		if err != nil {
			return err
		}
		if inv.Quantity != 5 {
			t.Errorf("inventory = %d, want 5", inv.Quantity)
		}
		return nil
	})
}

func TestCancel_ShippedOrderRejected(t *testing.T) {
	store := memory.NewStore()
	seedPaidOrder(t, store, "order-1", 3)
	_ = store.Atomic(context.Background(), func(tx domain.Tx) error {
		return tx.Orders().SetStatus("order-1", domain.OrderStatusShipped)
	})
	svc := NewService(store, payment.NewMockGateway(nil), nil)

	if _, err := svc.Cancel(context.Background(), customer("user-1"), "order-1"); !errors.Is(err, domain.ErrOrderNotCancellable) {
		t.Fatalf("got %v, want ErrOrderNotCancellable", err)
	}
}

func TestCancel_ForeignOrderForbidden(t *testing.T) {
	store := memory.NewStore()
	seedPaidOrder(t, store, "order-1", 3)
	svc := NewService(store, payment.NewMockGateway(nil), nil)

	if _, err := svc.Cancel(context.Background(), customer("user-2"), "order-1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
}

func TestCancel_AdminMayCancelAnyOrder(t *testing.T) {
	store := memory.NewStore()
	seedPaidOrder(t, store, "order-1", 3)
	svc := NewService(store, payment.NewMockGateway(nil), nil)

	if _, err := svc.Cancel(context.Background(), admin(), "order-1"); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
}

func TestUpdateFulfillment_AdvancesAndRollsUp(t *testing.T) {
	store := memory.NewStore()
	seedPaidOrder(t, store, "order-1", 3)
	svc := NewService(store, payment.NewMockGateway(nil), nil)
	ctx := context.Background()
	itemID := "order-1-item-1"

	order, err := svc.UpdateFulfillment(ctx, vendor("vendor-1"), "order-1", itemID, domain.FulfillmentFulfilled)
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if order.Status != domain.OrderStatusProcessing {
		t.Fatalf("status after fulfilled = %s, want processing", order.Status)
	}

	order, err = svc.UpdateFulfillment(ctx, vendor("vendor-1"), "order-1", itemID, domain.FulfillmentShipped)
	if err != nil {
		t.Fatalf("ship: %v", err)
	}
	if order.Status != domain.OrderStatusShipped {
		t.Fatalf("status after shipped = %s, want shipped", order.Status)
	}

	order, err = svc.UpdateFulfillment(ctx, vendor("vendor-1"), "order-1", itemID, domain.FulfillmentDelivered)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if order.Status != domain.OrderStatusDelivered {
		t.Fatalf("status after delivered = %s, want delivered", order.Status)
	}
}

func TestUpdateFulfillment_SkippingStepRejected(t *testing.T) {
	store := memory.NewStore()
	seedPaidOrder(t, store, "order-1", 3)
	svc := NewService(store, payment.NewMockGateway(nil), nil)

	_, err := svc.UpdateFulfillment(context.Background(), vendor("vendor-1"), "order-1", "order-1-item-1", domain.FulfillmentShipped)
	if !errors.Is(err, domain.ErrFulfillmentTransition) {
		t.Fatalf("got %v, want ErrFulfillmentTransition", err)
	}
}

func TestUpdateFulfillment_ForeignVendorForbidden(t *testing.T) {
	store := memory.NewStore()
	seedPaidOrder(t, store, "order-1", 3)
	svc := NewService(store, payment.NewMockGateway(nil), nil)

	_, err := svc.UpdateFulfillment(context.Background(), vendor("vendor-2"), "order-1", "order-1-item-1", domain.FulfillmentFulfilled)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
}

func TestUpdateFulfillment_CustomerForbidden(t *testing.T) {
	store := memory.NewStore()
	seedPaidOrder(t, store, "order-1", 3)
	svc := NewService(store, payment.NewMockGateway(nil), nil)

	_, err := svc.UpdateFulfillment(context.Background(), customer("user-1"), "order-1", "order-1-item-1", domain.FulfillmentFulfilled)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
}

func TestUpdateFulfillment_EmitsEventOnStatusChange(t *testing.T) {
	store := memory.NewStore()
	err := store.Atomic(context.Background(), func(tx domain.Tx) error {
		now := time.Now().UTC()
		return tx.Orders().Create(domain.Order{
			ID: "order-1", UserID: "user-1",
			Status: domain.OrderStatusPaid, PaymentStatus: domain.PaymentStatusPaid,
			Currency: "USD", SubtotalMinor: 2000, TotalMinor: 2000,
			Items: []domain.OrderItem{
				{
					ID: "item-1", OrderID: "order-1", ProductID: "product-1",
					VariantID: "variant-1", VendorID: "vendor-1", SKU: "sku-1",
					Quantity: 1, UnitPriceMinor: 1000, TotalMinor: 1000,
					Fulfillment: domain.FulfillmentPending, CreatedAt: now,
				},
				{
					ID: "item-2", OrderID: "order-1", ProductID: "product-1",
					VariantID: "variant-2", VendorID: "vendor-1", SKU: "sku-2",
					Quantity: 1, UnitPriceMinor: 1000, TotalMinor: 1000,
					Fulfillment: domain.FulfillmentPending, CreatedAt: now,
				},
			},
			CreatedAt: now, UpdatedAt: now,
		})
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}
	svc := NewService(store, payment.NewMockGateway(nil), nil)
	ctx := context.Background()

	// Первая позиция двигает заказ paid -> processing: одно событие.
	order, err := svc.UpdateFulfillment(ctx, vendor("vendor-1"), "order-1", "item-1", domain.FulfillmentFulfilled)
	if err != nil {
		t.Fatalf("fulfill item-1: %v", err)
	}
	if order.Status != domain.OrderStatusProcessing {
		t.Fatalf("status = %s, want processing", order.Status)
	}

	// Вторая позиция статус заказа не меняет: нового события нет.
	order, err = svc.UpdateFulfillment(ctx, vendor("vendor-1"), "order-1", "item-2", domain.FulfillmentFulfilled)
	if err != nil {
		t.Fatalf("fulfill item-2: %v", err)
	}
	if order.Status != domain.OrderStatusProcessing {
		t.Fatalf("status = %s, want still processing", order.Status)
	}

	_ = store.Atomic(ctx, func(tx domain.Tx) error {
		pending, err := tx.Outbox().PullPending(10)
		if err != nil {
			return err
		}
		fulfilled := 0
		for _, msg := range pending {
			if msg.EventType == domain.EventOrderFulfilled {
				fulfilled++
				if msg.AggregateID != "order-1" {
					t.Errorf("aggregate = %s, want order-1", msg.AggregateID)
				}
			}
		}
		if fulfilled != 1 {
			t.Errorf("fulfillment events = %d, want exactly 1", fulfilled)
		}
		return nil
	})
}

func TestGetAndList_RoleScoped(t *testing.T) {
	store := memory.NewStore()
	seedPaidOrder(t, store, "order-1", 3)
	svc := NewService(store, payment.NewMockGateway(nil), nil)
	ctx := context.Background()

	if _, err := svc.Get(ctx, customer("user-1"), "order-1"); err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if _, err := svc.Get(ctx, vendor("vendor-1"), "order-1"); err != nil {
		t.Fatalf("vendor get: %v", err)
	}
	if _, err := svc.Get(ctx, admin(), "order-1"); err != nil {
		t.Fatalf("admin get: %v", err)
	}
	// Чужой заказ неотличим от несуществующего.
	if _, err := svc.Get(ctx, customer("user-2"), "order-1"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("foreign get: got %v, want ErrOrderNotFound", err)
	}
	if _, err := svc.Get(ctx, vendor("vendor-2"), "order-1"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("foreign vendor get: got %v, want ErrOrderNotFound", err)
	}

	for _, tc := range []struct {
		name     string
		identity domain.Identity
		want     int
	}{
		{"owner", customer("user-1"), 1},
		{"other customer", customer("user-2"), 0},
		{"vendor", vendor("vendor-1"), 1},
		{"other vendor", vendor("vendor-2"), 0},
		{"admin", admin(), 1},
	} {
		orders, err := svc.List(ctx, tc.identity, 10)
		if err != nil {
			t.Fatalf("%s list: %v", tc.name, err)
		}
		if len(orders) != tc.want {
			t.Errorf("%s list = %d orders, want %d", tc.name, len(orders), tc.want)
		}
	}
}
