package memory

import (
	"sort"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// orderRepository — in-memory реализация OrderRepository.
type orderRepository struct {
	st *state
}

func (r *orderRepository) Create(order domain.Order) error {
	// Сохраняем копии слайсов, чтобы избежать непредсказуемых мутаций извне.
	order.Items = append([]domain.OrderItem(nil), order.Items...)
	order.Payments = append([]domain.Payment(nil), order.Payments...)
	r.st.orders[order.ID] = order
	return nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	order, ok := r.st.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order.Items = append([]domain.OrderItem(nil), order.Items...)
	order.Payments = append([]domain.Payment(nil), order.Payments...)
	return order, nil
}

func (r *orderRepository) ListByCustomer(userID string, limit int) ([]domain.Order, error) {
	return r.list(limit, func(o domain.Order) bool { return o.UserID == userID })
}

func (r *orderRepository) ListByVendor(vendorID string, limit int) ([]domain.Order, error) {
	return r.list(limit, func(o domain.Order) bool { return o.ContainsVendor(vendorID) })
}

func (r *orderRepository) List(limit int) ([]domain.Order, error) {
	return r.list(limit, func(domain.Order) bool { return true })
}

func (r *orderRepository) list(limit int, match func(domain.Order) bool) ([]domain.Order, error) {
	result := make([]domain.Order, 0)
	for _, order := range r.st.orders {
		if !match(order) {
			continue
		}
		order.Items = append([]domain.OrderItem(nil), order.Items...)
		order.Payments = append([]domain.Payment(nil), order.Payments...)
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *orderRepository) SetStatus(orderID string, status domain.OrderStatus) error {
	order, ok := r.st.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	r.st.orders[orderID] = order
	return nil
}

func (r *orderRepository) SetPaymentStatus(orderID string, status domain.PaymentStatus) error {
	order, ok := r.st.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.PaymentStatus = status
	order.UpdatedAt = time.Now().UTC()
	r.st.orders[orderID] = order
	return nil
}

func (r *orderRepository) SetItemFulfillment(itemID string, status domain.FulfillmentStatus) error {
	for orderID, order := range r.st.orders {
		for i := range order.Items {
			if order.Items[i].ID != itemID {
				continue
			}
			order.Items[i].Fulfillment = status
			order.UpdatedAt = time.Now().UTC()
			r.st.orders[orderID] = order
			return nil
		}
	}
	return domain.ErrOrderItemNotFound
}

func (r *orderRepository) AddPayment(payment domain.Payment) error {
	order, ok := r.st.orders[payment.OrderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.Payments = append(order.Payments, payment)
	r.st.orders[payment.OrderID] = order
	return nil
}

func (r *orderRepository) HasQualifyingPurchase(userID, productID string) (bool, error) {
	for _, order := range r.st.orders {
		if order.UserID != userID || !order.Status.QualifiesForReview() {
			continue
		}
		for _, item := range order.Items {
			if item.ProductID == productID && item.Fulfillment != domain.FulfillmentCancelled {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *orderRepository) SalesReport(filter domain.SalesReportFilter) ([]domain.SalesReportRow, error) {
	byProduct := make(map[string]*domain.SalesReportRow)
	for _, order := range r.st.orders {
		if order.Status == domain.OrderStatusCancelled {
			continue
		}
		if !filter.From.IsZero() && order.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && order.CreatedAt.After(filter.To) {
			continue
		}
		for _, item := range order.Items {
			if item.Fulfillment == domain.FulfillmentCancelled {
				continue
			}
			if filter.VendorID != "" && item.VendorID != filter.VendorID {
				continue
			}
			row, ok := byProduct[item.ProductID]
			if !ok {
				name := item.SKU
				if product, found := r.st.products[item.ProductID]; found {
					name = product.Name
				}
				row = &domain.SalesReportRow{ProductID: item.ProductID, ProductName: name}
				byProduct[item.ProductID] = row
			}
			row.QuantitySold += int64(item.Quantity)
			row.RevenueMinor += item.TotalMinor
		}
	}

	result := make([]domain.SalesReportRow, 0, len(byProduct))
	for _, row := range byProduct {
		result = append(result, *row)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ProductName != result[j].ProductName {
			return result[i].ProductName < result[j].ProductName
		}
		return result[i].ProductID < result[j].ProductID
	})
	return result, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
