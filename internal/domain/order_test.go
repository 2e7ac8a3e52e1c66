package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:            "order-1",
		UserID:        "user-1",
		Status:        domain.OrderStatusPaid,
		PaymentStatus: domain.PaymentStatusPaid,
		Currency:      "USD",
		SubtotalMinor: 500,
		ShippingMinor: 100,
		TotalMinor:    600,
		Items: []domain.OrderItem{
			{
				ID:             "item-1",
				OrderID:        "order-1",
				ProductID:      "product-1",
				VariantID:      "variant-1",
				VendorID:       "vendor-1",
				SKU:            "sku-1",
				Quantity:       5,
				UnitPriceMinor: 100,
				TotalMinor:     500,
				Fulfillment:    domain.FulfillmentPending,
				CreatedAt:      now,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no customer",
			mut: func(o *domain.Order) {
				o.UserID = ""
			},
		},
		{
			name: "no currency",
			mut: func(o *domain.Order) {
				o.Currency = ""
			},
		},
		{
			name: "no items",
			mut: func(o *domain.Order) {
				o.Items = nil
			},
		},
		{
			name: "zero quantity",
			mut: func(o *domain.Order) {
				o.Items[0].Quantity = 0
			},
		},
		{
			name: "total does not include shipping",
			mut: func(o *domain.Order) {
				o.TotalMinor = o.SubtotalMinor
			},
		},
		{
			name: "subtotal mismatch",
			mut: func(o *domain.Order) {
				o.SubtotalMinor = 1
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)
			if errs := order.ValidateInvariants(); len(errs) == 0 {
				t.Fatalf("expected validation errors, got none")
			}
		})
	}
}

func TestOrderCancellable(t *testing.T) {
	cases := []struct {
		status  domain.OrderStatus
		wantErr error
	}{
		{domain.OrderStatusPending, nil},
		{domain.OrderStatusPaid, nil},
		{domain.OrderStatusProcessing, nil},
		{domain.OrderStatusShipped, domain.ErrOrderNotCancellable},
		{domain.OrderStatusDelivered, domain.ErrOrderNotCancellable},
		{domain.OrderStatusCancelled, domain.ErrOrderAlreadyCancelled},
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			order := makeOrder()
			order.Status = tc.status
			if err := order.Cancellable(); err != tc.wantErr {
				t.Fatalf("Cancellable() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestCanAdvanceFulfillment(t *testing.T) {
	cases := []struct {
		from, to domain.FulfillmentStatus
		want     bool
	}{
		{domain.FulfillmentPending, domain.FulfillmentFulfilled, true},
		{domain.FulfillmentFulfilled, domain.FulfillmentShipped, true},
		{domain.FulfillmentShipped, domain.FulfillmentDelivered, true},
		{domain.FulfillmentPending, domain.FulfillmentShipped, false},
		{domain.FulfillmentShipped, domain.FulfillmentFulfilled, false},
		{domain.FulfillmentPending, domain.FulfillmentCancelled, false},
		{domain.FulfillmentCancelled, domain.FulfillmentShipped, false},
	}

	for _, tc := range cases {
		if got := domain.CanAdvanceFulfillment(tc.from, tc.to); got != tc.want {
			t.Errorf("CanAdvanceFulfillment(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestOrderRollupStatus(t *testing.T) {
	set := func(statuses ...domain.FulfillmentStatus) domain.Order {
		order := makeOrder()
		order.Items = nil
		for i, s := range statuses {
			order.Items = append(order.Items, domain.OrderItem{
				ID:             "item",
				Quantity:       1,
				UnitPriceMinor: 100,
				Fulfillment:    s,
			})
			order.Items[i].ID = order.Items[i].ID + string(rune('a'+i))
		}
		return order
	}

	cases := []struct {
		name     string
		statuses []domain.FulfillmentStatus
		want     domain.OrderStatus
	}{
		{"all pending keeps current", []domain.FulfillmentStatus{domain.FulfillmentPending, domain.FulfillmentPending}, domain.OrderStatusPaid},
		{"one fulfilled is processing", []domain.FulfillmentStatus{domain.FulfillmentFulfilled, domain.FulfillmentPending}, domain.OrderStatusProcessing},
		{"all shipped", []domain.FulfillmentStatus{domain.FulfillmentShipped, domain.FulfillmentShipped}, domain.OrderStatusShipped},
		{"shipped and delivered is shipped", []domain.FulfillmentStatus{domain.FulfillmentShipped, domain.FulfillmentDelivered}, domain.OrderStatusShipped},
		{"all delivered", []domain.FulfillmentStatus{domain.FulfillmentDelivered, domain.FulfillmentDelivered}, domain.OrderStatusDelivered},
		{"cancelled items are ignored", []domain.FulfillmentStatus{domain.FulfillmentCancelled, domain.FulfillmentShipped}, domain.OrderStatusShipped},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := set(tc.statuses...)
			if got := order.RollupStatus(); got != tc.want {
				t.Fatalf("RollupStatus() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestOrderStatusQualifiesForReview(t *testing.T) {
	qualifying := []domain.OrderStatus{
		domain.OrderStatusPaid, domain.OrderStatusProcessing,
		domain.OrderStatusShipped, domain.OrderStatusDelivered,
	}
	for _, s := range qualifying {
		if !s.QualifiesForReview() {
			t.Errorf("status %s should qualify for review", s)
		}
	}
	for _, s := range []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusCancelled} {
		if s.QualifiesForReview() {
			t.Errorf("status %s must not qualify for review", s)
		}
	}
}
