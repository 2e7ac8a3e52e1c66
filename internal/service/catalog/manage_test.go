package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

func vendorIdentity(userID string) domain.Identity {
	return domain.Identity{UserID: userID, Role: domain.RoleVendor}
}

func TestCreateProduct_WithVariantsAndStock(t *testing.T) {
	svc := NewService(seedCatalog(t), nil)

	view, err := svc.CreateProduct(context.Background(), vendorIdentity("vendor-3"), ProductInput{
		CategoryID:  "audio",
		Name:        "Turntable",
		Description: "Belt drive",
		PriceMinor:  30000,
		Currency:    "USD",
		Variants: []VariantInput{
			{SKU: "TT-BLACK", Quantity: 4, LowStockThreshold: 2},
			{SKU: "TT-WALNUT", PriceMinor: 32000, Quantity: 0},
		},
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	if view.Product.VendorID != "vendor-3" {
		t.Fatalf("vendor = %s, want creator vendor-3", view.Product.VendorID)
	}
	if view.Product.CategoryID != "audio" || view.Product.PriceMinor != 30000 {
		t.Fatalf("product = %+v", view.Product)
	}
	if len(view.Variants) != 2 {
		t.Fatalf("variants = %d, want 2", len(view.Variants))
	}
	byShelf := map[string]VariantView{}
	for _, v := range view.Variants {
		byShelf[v.Variant.SKU] = v
	}
	black := byShelf["TT-BLACK"]
	if black.Quantity != 4 || !black.InStock || black.PriceMinor != 30000 {
		t.Fatalf("TT-BLACK = %+v, want qty 4 in stock at base price", black)
	}
	walnut := byShelf["TT-WALNUT"]
	if walnut.InStock || walnut.PriceMinor != 32000 {
		t.Fatalf("TT-WALNUT = %+v, want out of stock at override price", walnut)
	}
}

func TestCreateProduct_Validation(t *testing.T) {
	svc := NewService(seedCatalog(t), nil)
	ctx := context.Background()
	valid := ProductInput{CategoryID: "audio", Name: "Speaker", PriceMinor: 100, Currency: "USD"}

	for _, tc := range []struct {
		name    string
		mutate  func(*ProductInput)
		wantErr error
	}{
		{"missing name", func(p *ProductInput) { p.Name = "" }, domain.ErrProductNameRequired},
		{"negative price", func(p *ProductInput) { p.PriceMinor = -1 }, domain.ErrPriceInvalid},
		{"missing currency", func(p *ProductInput) { p.Currency = "" }, domain.ErrCurrencyRequired},
		{"unknown category", func(p *ProductInput) { p.CategoryID = "missing" }, domain.ErrCategoryNotFound},
		{"variant without sku", func(p *ProductInput) { p.Variants = []VariantInput{{}} }, domain.ErrSKURequired},
		{"negative stock", func(p *ProductInput) {
			p.Variants = []VariantInput{{SKU: "S-1", Quantity: -1}}
		}, domain.ErrInventoryUnderflow},
	} {
		input := valid
		tc.mutate(&input)
		if _, err := svc.CreateProduct(ctx, vendorIdentity("vendor-1"), input); !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.wantErr)
		}
	}

	if _, err := svc.CreateProduct(ctx, domain.Identity{UserID: "user-1", Role: domain.RoleCustomer}, valid); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("customer create: got %v, want ErrForbidden", err)
	}
}

func TestUpdateProduct_PartialPatch(t *testing.T) {
	svc := NewService(seedCatalog(t), nil)

	name := "Tube Amplifier"
	price := int64(25000)
	view, err := svc.UpdateProduct(context.Background(), vendorIdentity("vendor-1"), "p-amp", ProductPatch{
		Name:       &name,
		PriceMinor: &price,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if view.Product.Name != "Tube Amplifier" || view.Product.PriceMinor != 25000 {
		t.Fatalf("patched product = %+v", view.Product)
	}
	// Непереданные поля остаются прежними.
	if view.Product.CategoryID != "audio" || view.Product.Currency != "USD" {
		t.Fatalf("untouched fields changed: %+v", view.Product)
	}
}

func TestUpdateProduct_OwnershipScoped(t *testing.T) {
	svc := NewService(seedCatalog(t), nil)
	ctx := context.Background()
	name := "Renamed"

	if _, err := svc.UpdateProduct(ctx, vendorIdentity("vendor-2"), "p-amp", ProductPatch{Name: &name}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("foreign vendor update: got %v, want ErrForbidden", err)
	}
	if _, err := svc.UpdateProduct(ctx, domain.Identity{UserID: "admin-1", Role: domain.RoleAdmin}, "p-amp", ProductPatch{Name: &name}); err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if _, err := svc.UpdateProduct(ctx, vendorIdentity("vendor-1"), "missing", ProductPatch{Name: &name}); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("unknown product: got %v, want ErrProductNotFound", err)
	}
}

func TestAddVariant(t *testing.T) {
	svc := NewService(seedCatalog(t), nil)

	view, err := svc.AddVariant(context.Background(), vendorIdentity("vendor-1"), "p-amp", VariantInput{
		SKU:      "AMP-2",
		Quantity: 7,
	})
	if err != nil {
		t.Fatalf("add variant: %v", err)
	}
	if len(view.Variants) != 2 {
		t.Fatalf("variants = %d, want 2", len(view.Variants))
	}
	for _, v := range view.Variants {
		if v.Variant.SKU == "AMP-2" && (v.Quantity != 7 || !v.InStock) {
			t.Fatalf("new variant stock = %+v, want qty 7 in stock", v)
		}
	}

	if _, err := svc.AddVariant(context.Background(), vendorIdentity("vendor-2"), "p-amp", VariantInput{SKU: "AMP-3"}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("foreign vendor add variant: got %v, want ErrForbidden", err)
	}
}

func TestDeleteProduct_CascadesToStockAndCarts(t *testing.T) {
	store := seedCatalog(t)
	ctx := context.Background()

	// Открытая корзина держит удаляемый вариант.
	err := store.Atomic(ctx, func(tx domain.Tx) error {
		now := time.Now().UTC()
		if err := tx.Carts().Create(domain.Cart{
			ID: "cart-1", UserID: "user-1", Status: domain.CartStatusActive,
			CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			return err
		}
		return tx.Carts().UpsertItem(domain.CartItem{
			ID: "ci-1", CartID: "cart-1", VariantID: "v-amp",
			Quantity: 1, UnitPriceMinor: 20000, CreatedAt: now,
		})
	})
	if err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	svc := NewService(store, nil)
	if err := svc.DeleteProduct(ctx, vendorIdentity("vendor-1"), "p-amp"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	_ = store.Atomic(ctx, func(tx domain.Tx) error {
		if _, err := tx.Catalog().Product("p-amp"); !errors.Is(err, domain.ErrProductNotFound) {
			t.Errorf("product survived delete: %v", err)
		}
		if _, err := tx.Catalog().Variant("v-amp"); !errors.Is(err, domain.ErrVariantNotFound) {
			t.Errorf("variant survived delete: %v", err)
		}
		if _, err := tx.Catalog().Inventory("v-amp"); !errors.Is(err, domain.ErrInventoryNotFound) {
			t.Errorf("inventory survived delete: %v", err)
		}
		cart, err := tx.Carts().Get("cart-1")
		if err != nil {
			return err
		}
		if len(cart.Items) != 0 {
			t.Errorf("cart items = %d, want 0 after product delete", len(cart.Items))
		}
		return nil
	})
}

func TestDeleteProduct_OwnershipScoped(t *testing.T) {
	svc := NewService(seedCatalog(t), nil)
	ctx := context.Background()

	if err := svc.DeleteProduct(ctx, vendorIdentity("vendor-2"), "p-amp"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("foreign vendor delete: got %v, want ErrForbidden", err)
	}
	if err := svc.DeleteProduct(ctx, domain.Identity{UserID: "admin-1", Role: domain.RoleAdmin}, "p-amp"); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}
