package http

import (
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/service/catalog"
)

type cartItemDTO struct {
	ID             string `json:"id"`
	VariantID      string `json:"variant_id"`
	Quantity       int32  `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
}

type cartDTO struct {
	ID            string        `json:"id"`
	Status        string        `json:"status"`
	Items         []cartItemDTO `json:"items"`
	SubtotalMinor int64         `json:"subtotal_minor"`
}

func toCartDTO(cart domain.Cart) cartDTO {
	items := make([]cartItemDTO, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemDTO{
			ID:             item.ID,
			VariantID:      item.VariantID,
			Quantity:       item.Quantity,
			UnitPriceMinor: item.UnitPriceMinor,
		})
	}
	return cartDTO{
		ID:            cart.ID,
		Status:        string(cart.Status),
		Items:         items,
		SubtotalMinor: cart.SubtotalMinor(),
	}
}

type orderItemDTO struct {
	ID             string `json:"id"`
	ProductID      string `json:"product_id"`
	VariantID      string `json:"variant_id"`
	VendorID       string `json:"vendor_id"`
	SKU            string `json:"sku"`
	Quantity       int32  `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	TotalMinor     int64  `json:"total_minor"`
	Fulfillment    string `json:"fulfillment"`
}

type paymentDTO struct {
	ID            string `json:"id"`
	Provider      string `json:"provider"`
	AmountMinor   int64  `json:"amount_minor"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
}

type orderDTO struct {
	ID                string         `json:"id"`
	UserID            string         `json:"user_id"`
	Status            string         `json:"status"`
	PaymentStatus     string         `json:"payment_status"`
	Currency          string         `json:"currency"`
	SubtotalMinor     int64          `json:"subtotal_minor"`
	ShippingMinor     int64          `json:"shipping_minor"`
	TotalMinor        int64          `json:"total_minor"`
	ShippingMethodID  string         `json:"shipping_method_id"`
	ShippingAddressID string         `json:"shipping_address_id"`
	BillingAddressID  string         `json:"billing_address_id"`
	Items             []orderItemDTO `json:"items"`
	Payments          []paymentDTO   `json:"payments"`
	CreatedAt         time.Time      `json:"created_at"`
}

func toOrderDTO(order domain.Order) orderDTO {
	items := make([]orderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDTO{
			ID:             item.ID,
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			VendorID:       item.VendorID,
			SKU:            item.SKU,
			Quantity:       item.Quantity,
			UnitPriceMinor: item.UnitPriceMinor,
			TotalMinor:     item.TotalMinor,
			Fulfillment:    string(item.Fulfillment),
		})
	}
	payments := make([]paymentDTO, 0, len(order.Payments))
	for _, payment := range order.Payments {
		payments = append(payments, paymentDTO{
			ID:            payment.ID,
			Provider:      payment.Provider,
			AmountMinor:   payment.AmountMinor,
			Currency:      payment.Currency,
			Status:        string(payment.Status),
			TransactionID: payment.TransactionID,
		})
	}
	return orderDTO{
		ID:                order.ID,
		UserID:            order.UserID,
		Status:            string(order.Status),
		PaymentStatus:     string(order.PaymentStatus),
		Currency:          order.Currency,
		SubtotalMinor:     order.SubtotalMinor,
		ShippingMinor:     order.ShippingMinor,
		TotalMinor:        order.TotalMinor,
		ShippingMethodID:  order.ShippingMethodID,
		ShippingAddressID: order.ShippingAddressID,
		BillingAddressID:  order.BillingAddressID,
		Items:             items,
		Payments:          payments,
		CreatedAt:         order.CreatedAt,
	}
}

type orderListDTO struct {
	Orders []orderDTO `json:"orders"`
}

func toOrderListDTO(orders []domain.Order) orderListDTO {
	result := orderListDTO{Orders: make([]orderDTO, 0, len(orders))}
	for _, order := range orders {
		result.Orders = append(result.Orders, toOrderDTO(order))
	}
	return result
}

type reviewDTO struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Rating    int32     `json:"rating"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"created_at"`
}

func toReviewDTO(review domain.Review) reviewDTO {
	return reviewDTO{
		ID:        review.ID,
		UserID:    review.UserID,
		ProductID: review.ProductID,
		Rating:    review.Rating,
		Title:     review.Title,
		Body:      review.Body,
		Approved:  review.Approved,
		CreatedAt: review.CreatedAt,
	}
}

type reviewListDTO struct {
	Reviews []reviewDTO `json:"reviews"`
	Total   int         `json:"total"`
}

type variantDTO struct {
	ID         string            `json:"id"`
	SKU        string            `json:"sku"`
	PriceMinor int64             `json:"price_minor"`
	Quantity   int32             `json:"quantity"`
	InStock    bool              `json:"in_stock"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type productDTO struct {
	ID          string       `json:"id"`
	VendorID    string       `json:"vendor_id"`
	CategoryID  string       `json:"category_id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	PriceMinor  int64        `json:"price_minor"`
	Currency    string       `json:"currency"`
	Variants    []variantDTO `json:"variants,omitempty"`
}

func toProductDTO(view catalog.ProductView) productDTO {
	dto := toProductSummaryDTO(view.Product)
	dto.Variants = make([]variantDTO, 0, len(view.Variants))
	for _, v := range view.Variants {
		dto.Variants = append(dto.Variants, variantDTO{
			ID:         v.Variant.ID,
			SKU:        v.Variant.SKU,
			PriceMinor: v.PriceMinor,
			Quantity:   v.Quantity,
			InStock:    v.InStock,
			Attributes: v.Variant.Attributes,
		})
	}
	return dto
}

func toProductSummaryDTO(product domain.Product) productDTO {
	return productDTO{
		ID:          product.ID,
		VendorID:    product.VendorID,
		CategoryID:  product.CategoryID,
		Name:        product.Name,
		Description: product.Description,
		PriceMinor:  product.PriceMinor,
		Currency:    product.Currency,
	}
}

type productListDTO struct {
	Products []productDTO `json:"products"`
}

func toProductListDTO(products []domain.Product) productListDTO {
	result := productListDTO{Products: make([]productDTO, 0, len(products))}
	for _, p := range products {
		result.Products = append(result.Products, toProductSummaryDTO(p))
	}
	return result
}

type lowStockEntryDTO struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	VariantID   string `json:"variant_id"`
	SKU         string `json:"sku"`
	Quantity    int32  `json:"quantity"`
	Threshold   int32  `json:"threshold"`
}

type lowStockDTO struct {
	Entries []lowStockEntryDTO `json:"entries"`
}

func toLowStockDTO(entries []domain.LowStockEntry) lowStockDTO {
	result := lowStockDTO{Entries: make([]lowStockEntryDTO, 0, len(entries))}
	for _, e := range entries {
		result.Entries = append(result.Entries, lowStockEntryDTO{
			ProductID:   e.ProductID,
			ProductName: e.ProductName,
			VariantID:   e.VariantID,
			SKU:         e.SKU,
			Quantity:    e.Quantity,
			Threshold:   e.Threshold,
		})
	}
	return result
}

type variantInputDTO struct {
	SKU               string            `json:"sku"`
	PriceMinor        int64             `json:"price_minor"`
	Attributes        map[string]string `json:"attributes"`
	Quantity          int32             `json:"quantity"`
	LowStockThreshold int32             `json:"low_stock_threshold"`
}

func (v variantInputDTO) toInput() catalog.VariantInput {
	return catalog.VariantInput{
		SKU:               v.SKU,
		PriceMinor:        v.PriceMinor,
		Attributes:        v.Attributes,
		Quantity:          v.Quantity,
		LowStockThreshold: v.LowStockThreshold,
	}
}

type productInputDTO struct {
	CategoryID  string            `json:"category_id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	PriceMinor  int64             `json:"price_minor"`
	Currency    string            `json:"currency"`
	Variants    []variantInputDTO `json:"variants"`
}

func (p productInputDTO) toInput() catalog.ProductInput {
	input := catalog.ProductInput{
		CategoryID:  p.CategoryID,
		Name:        p.Name,
		Description: p.Description,
		PriceMinor:  p.PriceMinor,
		Currency:    p.Currency,
		Variants:    make([]catalog.VariantInput, 0, len(p.Variants)),
	}
	for _, v := range p.Variants {
		input.Variants = append(input.Variants, v.toInput())
	}
	return input
}

type salesReportRowDTO struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	QuantitySold int64  `json:"quantity_sold"`
	RevenueMinor int64  `json:"revenue_minor"`
}

type salesReportDTO struct {
	Rows []salesReportRowDTO `json:"rows"`
}

func toSalesReportDTO(rows []domain.SalesReportRow) salesReportDTO {
	result := salesReportDTO{Rows: make([]salesReportRowDTO, 0, len(rows))}
	for _, row := range rows {
		result.Rows = append(result.Rows, salesReportRowDTO{
			ProductID:    row.ProductID,
			ProductName:  row.ProductName,
			QuantitySold: row.QuantitySold,
			RevenueMinor: row.RevenueMinor,
		})
	}
	return result
}

type addressDTO struct {
	FullName   string `json:"full_name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (a *addressDTO) toDomain() *domain.Address {
	if a == nil {
		return nil
	}
	return &domain.Address{
		FullName:   a.FullName,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}
