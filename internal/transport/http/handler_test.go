package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/service/cart"
	"github.com/vladislavdragonenkov/marketplace/internal/service/catalog"
	"github.com/vladislavdragonenkov/marketplace/internal/service/checkout"
	"github.com/vladislavdragonenkov/marketplace/internal/service/order"
	"github.com/vladislavdragonenkov/marketplace/internal/service/payment"
	"github.com/vladislavdragonenkov/marketplace/internal/service/review"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
)

const testSecret = "test-secret"

type testEnv struct {
	store  *memory.Store
	auth   *Authenticator
	router chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	gateway := payment.NewMockGateway(nil)
	auth := NewAuthenticator(testSecret)

	handler := NewHandler(
		cart.NewService(store, nil),
		checkout.NewOrchestrator(store, gateway),
		order.NewService(store, gateway, nil),
		review.NewService(store, nil),
		catalog.NewService(store, nil),
		nil,
	)

	env := &testEnv{
		store:  store,
		auth:   auth,
		router: handler.Router(auth, nil),
	}
	env.seed(t)
	return env
}

// seed создаёт каталог: категория, товар vendor-1 за 1000, вариант variant-a
// с остатком 5 и активный способ доставки за 500.
func (e *testEnv) seed(t *testing.T) {
	t.Helper()

	err := e.store.Atomic(context.Background(), func(tx domain.Tx) error {
		if err := tx.Catalog().CreateCategory(domain.Category{ID: "cat-1", Name: "Electronics"}); err != nil {
			return err
		}
		if err := tx.Catalog().CreateProduct(domain.Product{
			ID:         "product-1",
			VendorID:   "vendor-1",
			CategoryID: "cat-1",
			Name:       "Wireless Headphones",
			PriceMinor: 1000,
			Currency:   "USD",
		}); err != nil {
			return err
		}
		if err := tx.Catalog().CreateVariant(domain.Variant{
			ID:        "variant-a",
			ProductID: "product-1",
			SKU:       "WH-BLACK",
		}); err != nil {
			return err
		}
		if err := tx.Catalog().UpsertInventory(domain.Inventory{
			VariantID: "variant-a",
			Quantity:  5,
		}); err != nil {
			return err
		}
		return tx.Shipping().Create(domain.ShippingMethod{
			ID:         "ship-std",
			Name:       "Standard",
			PriceMinor: 500,
			Active:     true,
		})
	})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
}

func (e *testEnv) token(t *testing.T, userID string, role domain.Role) string {
	t.Helper()
	token, err := e.auth.IssueToken(domain.Identity{
		UserID: userID,
		Email:  userID + "@example.com",
		Role:   role,
	}, time.Now().Add(time.Hour).Unix())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token, sessionID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if sessionID != "" {
		req.Header.Set(sessionHeader, sessionID)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var result T
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return result
}

func TestGuestCartFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", "", "session-1", map[string]any{
		"variant_id": "variant-a",
		"quantity":   2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	result := decodeBody[cartDTO](t, rec)
	if len(result.Items) != 1 || result.Items[0].Quantity != 2 {
		t.Fatalf("unexpected cart items: %+v", result.Items)
	}
	if result.SubtotalMinor != 2000 {
		t.Fatalf("expected subtotal 2000, got %d", result.SubtotalMinor)
	}
}

func TestCartWithoutOwnerRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/cart", "", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for request without user or session, got %d", rec.Code)
	}
}

func TestCheckoutRequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/checkout", "", "session-1", map[string]any{})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", rec.Code)
	}
}

func TestCheckoutHappyPath(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "user-1", domain.RoleCustomer)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", token, "", map[string]any{
		"variant_id": "variant-a",
		"quantity":   2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add item: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/v1/checkout", token, "", map[string]any{
		"shipping_address": map[string]any{
			"line1":       "1 Main St",
			"city":        "Springfield",
			"postal_code": "12345",
		},
		"shipping_method_id": "ship-std",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	placed := decodeBody[orderDTO](t, rec)
	if placed.Status != "paid" || placed.PaymentStatus != "paid" {
		t.Fatalf("unexpected order statuses: %s / %s", placed.Status, placed.PaymentStatus)
	}
	if placed.TotalMinor != 2500 {
		t.Fatalf("expected total 2500, got %d", placed.TotalMinor)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/products/product-1", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get product: expected 200, got %d", rec.Code)
	}
	product := decodeBody[productDTO](t, rec)
	if len(product.Variants) != 1 || product.Variants[0].Quantity != 3 {
		t.Fatalf("expected remaining quantity 3, got %+v", product.Variants)
	}
}

func TestCheckoutInsufficientStockConflict(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "user-1", domain.RoleCustomer)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", token, "", map[string]any{
		"variant_id": "variant-a",
		"quantity":   50,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add item: expected 200, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/checkout", token, "", map[string]any{
		"shipping_address": map[string]any{
			"line1":       "1 Main St",
			"city":        "Springfield",
			"postal_code": "12345",
		},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for insufficient stock, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOrderCancelFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "user-1", domain.RoleCustomer)

	env.do(t, http.MethodPost, "/api/v1/cart/items", token, "", map[string]any{
		"variant_id": "variant-a",
		"quantity":   1,
	})
	rec := env.do(t, http.MethodPost, "/api/v1/checkout", token, "", map[string]any{
		"shipping_address": map[string]any{
			"line1":       "1 Main St",
			"city":        "Springfield",
			"postal_code": "12345",
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	placed := decodeBody[orderDTO](t, rec)

	rec = env.do(t, http.MethodPost, "/api/v1/orders/"+placed.ID+"/cancel", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	cancelled := decodeBody[orderDTO](t, rec)
	if cancelled.Status != "cancelled" || cancelled.PaymentStatus != "refunded" {
		t.Fatalf("unexpected statuses after cancel: %s / %s", cancelled.Status, cancelled.PaymentStatus)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/orders/"+placed.ID+"/cancel", token, "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second cancel: expected 409, got %d", rec.Code)
	}
}

func TestForeignOrderHiddenAsNotFound(t *testing.T) {
	env := newTestEnv(t)
	owner := env.token(t, "user-1", domain.RoleCustomer)
	stranger := env.token(t, "user-2", domain.RoleCustomer)

	env.do(t, http.MethodPost, "/api/v1/cart/items", owner, "", map[string]any{
		"variant_id": "variant-a",
		"quantity":   1,
	})
	rec := env.do(t, http.MethodPost, "/api/v1/checkout", owner, "", map[string]any{
		"shipping_address": map[string]any{
			"line1":       "1 Main St",
			"city":        "Springfield",
			"postal_code": "12345",
		},
	})
	placed := decodeBody[orderDTO](t, rec)

	rec = env.do(t, http.MethodGet, "/api/v1/orders/"+placed.ID, stranger, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign order, got %d", rec.Code)
	}
}

func TestReviewWithoutPurchaseForbidden(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "user-1", domain.RoleCustomer)

	rec := env.do(t, http.MethodPost, "/api/v1/products/product-1/reviews", token, "", map[string]any{
		"rating": 5,
		"title":  "Great",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without purchase, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestReviewModerationFlow(t *testing.T) {
	env := newTestEnv(t)
	customer := env.token(t, "user-1", domain.RoleCustomer)
	admin := env.token(t, "admin-1", domain.RoleAdmin)

	env.do(t, http.MethodPost, "/api/v1/cart/items", customer, "", map[string]any{
		"variant_id": "variant-a",
		"quantity":   1,
	})
	rec := env.do(t, http.MethodPost, "/api/v1/checkout", customer, "", map[string]any{
		"shipping_address": map[string]any{
			"line1":       "1 Main St",
			"city":        "Springfield",
			"postal_code": "12345",
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: expected 201, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/products/product-1/reviews", customer, "", map[string]any{
		"rating": 4,
		"title":  "Solid",
		"body":   "Does the job.",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create review: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[reviewDTO](t, rec)
	if created.Approved {
		t.Fatal("new review must await moderation")
	}

	// До одобрения публичный список пуст.
	rec = env.do(t, http.MethodGet, "/api/v1/products/product-1/reviews", "", "", nil)
	listed := decodeBody[reviewListDTO](t, rec)
	if listed.Total != 0 {
		t.Fatalf("expected no approved reviews yet, got %d", listed.Total)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/reviews/"+created.ID+"/approve", admin, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/products/product-1/reviews", "", "", nil)
	listed = decodeBody[reviewListDTO](t, rec)
	if listed.Total != 1 || len(listed.Reviews) != 1 {
		t.Fatalf("expected one approved review, got %+v", listed)
	}

	// Покупатель не может одобрять отзывы.
	rec = env.do(t, http.MethodPost, "/api/v1/reviews/"+created.ID+"/approve", customer, "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("customer approve: expected 403, got %d", rec.Code)
	}
}

func TestUnknownProductNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/products/missing", "", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestLowStockRoleScoping(t *testing.T) {
	env := newTestEnv(t)
	vendor := env.token(t, "vendor-1", domain.RoleVendor)
	customer := env.token(t, "user-1", domain.RoleCustomer)

	rec := env.do(t, http.MethodGet, "/api/v1/inventory/low-stock?vendor_id=vendor-1", vendor, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("vendor low stock: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/inventory/low-stock?vendor_id=vendor-1", customer, "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("customer low stock: expected 403, got %d", rec.Code)
	}
}

func TestProductManagementFlow(t *testing.T) {
	env := newTestEnv(t)
	vendor := env.token(t, "vendor-2", domain.RoleVendor)

	rec := env.do(t, http.MethodPost, "/api/v1/products", vendor, "", map[string]any{
		"category_id": "cat-1",
		"name":        "USB Microphone",
		"price_minor": 4500,
		"currency":    "USD",
		"variants": []map[string]any{
			{"sku": "MIC-1", "quantity": 3},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[productDTO](t, rec)
	if created.VendorID != "vendor-2" || len(created.Variants) != 1 {
		t.Fatalf("unexpected created product: %+v", created)
	}
	if created.Variants[0].Quantity != 3 || !created.Variants[0].InStock {
		t.Fatalf("expected seeded stock 3, got %+v", created.Variants[0])
	}

	rec = env.do(t, http.MethodPatch, "/api/v1/products/"+created.ID, vendor, "", map[string]any{
		"price_minor": 4000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch product: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	patched := decodeBody[productDTO](t, rec)
	if patched.PriceMinor != 4000 || patched.Name != "USB Microphone" {
		t.Fatalf("unexpected patched product: %+v", patched)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/products/"+created.ID+"/variants", vendor, "", map[string]any{
		"sku":      "MIC-2",
		"quantity": 1,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add variant: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodDelete, "/api/v1/products/"+created.ID, vendor, "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete product: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodGet, "/api/v1/products/"+created.ID, "", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted product still served: %d", rec.Code)
	}
}

func TestProductManagementOwnershipAndRoles(t *testing.T) {
	env := newTestEnv(t)
	stranger := env.token(t, "vendor-2", domain.RoleVendor)
	customer := env.token(t, "user-1", domain.RoleCustomer)

	rec := env.do(t, http.MethodPatch, "/api/v1/products/product-1", stranger, "", map[string]any{
		"name": "Hijacked",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign vendor patch: expected 403, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/v1/products", customer, "", map[string]any{
		"category_id": "cat-1",
		"name":        "Nope",
		"price_minor": 100,
		"currency":    "USD",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("customer create: expected 403, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/api/v1/products/product-1", stranger, "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign vendor delete: expected 403, got %d", rec.Code)
	}
}

func TestSalesReportOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	customer := env.token(t, "user-1", domain.RoleCustomer)
	vendor := env.token(t, "vendor-1", domain.RoleVendor)

	env.do(t, http.MethodPost, "/api/v1/cart/items", customer, "", map[string]any{
		"variant_id": "variant-a",
		"quantity":   2,
	})
	rec := env.do(t, http.MethodPost, "/api/v1/checkout", customer, "", map[string]any{
		"shipping_address": map[string]any{
			"line1":       "1 Main St",
			"city":        "Springfield",
			"postal_code": "12345",
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/reports/sales", vendor, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("vendor report: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	report := decodeBody[salesReportDTO](t, rec)
	if len(report.Rows) != 1 {
		t.Fatalf("expected one report row, got %+v", report.Rows)
	}
	row := report.Rows[0]
	if row.ProductID != "product-1" || row.QuantitySold != 2 || row.RevenueMinor != 2000 {
		t.Fatalf("unexpected report row: %+v", row)
	}

	// Диапазон дат сужает отчёт; будущий from отсекает всё.
	rec = env.do(t, http.MethodGet, "/api/v1/reports/sales?from=2099-01-01", vendor, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dated report: expected 200, got %d", rec.Code)
	}
	report = decodeBody[salesReportDTO](t, rec)
	if len(report.Rows) != 0 {
		t.Fatalf("expected empty report for future window, got %+v", report.Rows)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/reports/sales?from=not-a-date", vendor, "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date: expected 400, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/reports/sales", customer, "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("customer report: expected 403, got %d", rec.Code)
	}
}

func TestMergeRequiresSessionHeader(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "user-1", domain.RoleCustomer)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/merge", token, "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without session header, got %d", rec.Code)
	}
}

func TestMergeCartsOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "user-1", domain.RoleCustomer)

	env.do(t, http.MethodPost, "/api/v1/cart/items", "", "session-1", map[string]any{
		"variant_id": "variant-a",
		"quantity":   2,
	})
	env.do(t, http.MethodPost, "/api/v1/cart/items", token, "", map[string]any{
		"variant_id": "variant-a",
		"quantity":   1,
	})

	rec := env.do(t, http.MethodPost, "/api/v1/cart/merge", token, "session-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("merge: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	merged := decodeBody[cartDTO](t, rec)
	if len(merged.Items) != 1 || merged.Items[0].Quantity != 3 {
		t.Fatalf("expected merged quantity 3, got %+v", merged.Items)
	}
}
