package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
	"github.com/vladislavdragonenkov/marketplace/internal/service/cart"
	"github.com/vladislavdragonenkov/marketplace/internal/service/catalog"
	"github.com/vladislavdragonenkov/marketplace/internal/service/checkout"
	"github.com/vladislavdragonenkov/marketplace/internal/service/order"
	"github.com/vladislavdragonenkov/marketplace/internal/service/review"
)

const requestTimeout = 30 * time.Second

// Handler связывает HTTP-маршруты с сервисами маркетплейса.
type Handler struct {
	carts    *cart.Service
	checkout *checkout.Orchestrator
	orders   *order.Service
	reviews  *review.Service
	catalog  *catalog.Service
	logger   *log.Entry
}

// NewHandler создаёт HTTP-обработчик поверх сервисного слоя.
func NewHandler(
	carts *cart.Service,
	orchestrator *checkout.Orchestrator,
	orders *order.Service,
	reviews *review.Service,
	catalogSvc *catalog.Service,
	logger *log.Entry,
) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	return &Handler{
		carts:    carts,
		checkout: orchestrator,
		orders:   orders,
		reviews:  reviews,
		catalog:  catalogSvc,
		logger:   logger,
	}
}

// Router собирает chi-маршрутизатор со всеми middleware и маршрутами API.
func (h *Handler) Router(auth *Authenticator, httpMetrics *metrics.HTTPMetrics) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	if httpMetrics != nil {
		r.Use(httpMetrics.Middleware)
	}
	r.Use(auth.Middleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/products", h.createProduct)
		r.Get("/products/{productID}", h.getProduct)
		r.Patch("/products/{productID}", h.updateProduct)
		r.Delete("/products/{productID}", h.deleteProduct)
		r.Post("/products/{productID}/variants", h.addVariant)
		r.Get("/products/{productID}/reviews", h.listReviews)
		r.Post("/products/{productID}/reviews", h.createReview)
		r.Get("/categories/{categoryID}/products", h.listByCategory)
		r.Get("/vendors/{vendorID}/products", h.listByVendor)
		r.Get("/inventory/low-stock", h.lowStock)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Post("/items", h.addCartItem)
			r.Patch("/items/{itemID}", h.updateCartItem)
			r.Delete("/items/{itemID}", h.removeCartItem)
			r.Post("/merge", h.mergeCart)
		})

		r.Post("/checkout", h.placeOrder)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.listOrders)
			r.Get("/{orderID}", h.getOrder)
			r.Post("/{orderID}/cancel", h.cancelOrder)
			r.Patch("/{orderID}/items/{itemID}/fulfillment", h.updateFulfillment)
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/pending", h.listPendingReviews)
			r.Post("/{reviewID}/approve", h.approveReview)
		})

		r.Get("/reports/sales", h.salesReport)
	})

	return r
}

// --- Корзина ---

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	owner, err := cartOwnerFrom(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	result, err := h.carts.Get(r.Context(), owner)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartDTO(result))
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VariantID string `json:"variant_id"`
		Quantity  int32  `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	owner, err := cartOwnerFrom(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	result, err := h.carts.AddItem(r.Context(), owner, req.VariantID, req.Quantity)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartDTO(result))
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int32 `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	owner, err := cartOwnerFrom(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	result, err := h.carts.UpdateItem(r.Context(), owner, chi.URLParam(r, "itemID"), req.Quantity)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartDTO(result))
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	owner, err := cartOwnerFrom(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	result, err := h.carts.RemoveItem(r.Context(), owner, chi.URLParam(r, "itemID"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartDTO(result))
}

func (h *Handler) mergeCart(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	if !identity.Authenticated() {
		respondError(w, h.logger, domain.ErrUnauthenticated)
		return
	}
	sessionID := sessionFrom(r.Context())
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "X-Session-ID header is required for merge")
		return
	}

	result, err := h.carts.Merge(r.Context(), identity.UserID, sessionID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartDTO(result))
}

// --- Оформление заказа ---

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShippingAddressID string      `json:"shipping_address_id"`
		BillingAddressID  string      `json:"billing_address_id"`
		ShippingAddress   *addressDTO `json:"shipping_address"`
		BillingAddress    *addressDTO `json:"billing_address"`
		ShippingMethodID  string      `json:"shipping_method_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.checkout.PlaceOrder(r.Context(), checkout.Request{
		Identity:          identityFrom(r.Context()),
		IdempotencyKey:    r.Header.Get("Idempotency-Key"),
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		ShippingAddress:   req.ShippingAddress.toDomain(),
		BillingAddress:    req.BillingAddress.toDomain(),
		ShippingMethodID:  req.ShippingMethodID,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDTO(result))
}

// --- Заказы ---

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	result, err := h.orders.List(r.Context(), identityFrom(r.Context()), queryInt(r, "limit", 50))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderListDTO(result))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.orders.Get(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(result))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.orders.Cancel(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(result))
}

func (h *Handler) updateFulfillment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.orders.UpdateFulfillment(
		r.Context(),
		identityFrom(r.Context()),
		chi.URLParam(r, "orderID"),
		chi.URLParam(r, "itemID"),
		domain.FulfillmentStatus(req.Status),
	)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(result))
}

// --- Отзывы ---

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) {
	reviews, total, err := h.reviews.ListApproved(
		r.Context(),
		chi.URLParam(r, "productID"),
		queryInt(r, "page", 1),
		queryInt(r, "per_page", 20),
	)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	result := reviewListDTO{Reviews: make([]reviewDTO, 0, len(reviews)), Total: total}
	for _, rv := range reviews {
		result.Reviews = append(result.Reviews, toReviewDTO(rv))
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) createReview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rating int32  `json:"rating"`
		Title  string `json:"title"`
		Body   string `json:"body"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.reviews.Create(
		r.Context(),
		identityFrom(r.Context()),
		chi.URLParam(r, "productID"),
		req.Rating, req.Title, req.Body,
	)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReviewDTO(result))
}

func (h *Handler) listPendingReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.reviews.ListPending(r.Context(), identityFrom(r.Context()), queryInt(r, "limit", 50))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	result := reviewListDTO{Reviews: make([]reviewDTO, 0, len(reviews)), Total: len(reviews)}
	for _, rv := range reviews {
		result.Reviews = append(result.Reviews, toReviewDTO(rv))
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) approveReview(w http.ResponseWriter, r *http.Request) {
	result, err := h.reviews.Approve(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "reviewID"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toReviewDTO(result))
}

// --- Каталог ---

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	view, err := h.catalog.Product(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(view))
}

func (h *Handler) listByCategory(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListByCategory(r.Context(), chi.URLParam(r, "categoryID"), queryInt(r, "limit", 50))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductListDTO(products))
}

func (h *Handler) listByVendor(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListByVendor(r.Context(), chi.URLParam(r, "vendorID"), queryInt(r, "limit", 50))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductListDTO(products))
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productInputDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.catalog.CreateProduct(r.Context(), identityFrom(r.Context()), req.toInput())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(view))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CategoryID  *string `json:"category_id"`
		Name        *string `json:"name"`
		Description *string `json:"description"`
		PriceMinor  *int64  `json:"price_minor"`
		Currency    *string `json:"currency"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.catalog.UpdateProduct(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "productID"), catalog.ProductPatch{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		PriceMinor:  req.PriceMinor,
		Currency:    req.Currency,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(view))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteProduct(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "productID")); err != nil {
		respondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addVariant(w http.ResponseWriter, r *http.Request) {
	var req variantInputDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.catalog.AddVariant(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "productID"), req.toInput())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(view))
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	entries, err := h.catalog.LowStock(r.Context(), identityFrom(r.Context()), r.URL.Query().Get("vendor_id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toLowStockDTO(entries))
}

// --- Отчёты ---

func (h *Handler) salesReport(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date")
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date")
		return
	}

	rows, err := h.orders.SalesReport(
		r.Context(),
		identityFrom(r.Context()),
		r.URL.Query().Get("vendor_id"),
		from, to,
	)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toSalesReportDTO(rows))
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// queryTime разбирает дату из query-параметра: RFC3339 либо YYYY-MM-DD.
// Пустое значение означает отсутствие границы.
func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
