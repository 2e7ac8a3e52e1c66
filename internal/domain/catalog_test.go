package domain_test

import (
	"sort"
	"testing"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

func TestCategorySubtree(t *testing.T) {
	all := []domain.Category{
		{ID: "root", Name: "All"},
		{ID: "clothes", ParentID: "root", Name: "Clothes"},
		{ID: "shoes", ParentID: "clothes", Name: "Shoes"},
		{ID: "sneakers", ParentID: "shoes", Name: "Sneakers"},
		{ID: "electronics", ParentID: "root", Name: "Electronics"},
	}

	got := domain.CategorySubtree(all, "clothes")
	sort.Strings(got)
	want := []string{"clothes", "shoes", "sneakers"}
	if len(got) != len(want) {
		t.Fatalf("subtree = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("subtree = %v, want %v", got, want)
		}
	}
}

func TestCategorySubtree_CycleTerminates(t *testing.T) {
	// Повреждённое дерево: a → b → a. Обход обязан завершиться.
	all := []domain.Category{
		{ID: "a", ParentID: "b"},
		{ID: "b", ParentID: "a"},
	}

	got := domain.CategorySubtree(all, "a")
	if len(got) != 2 {
		t.Fatalf("subtree over cycle = %v, want both nodes exactly once", got)
	}
}

func TestVariantEffectivePrice(t *testing.T) {
	product := domain.Product{ID: "p", PriceMinor: 1000}

	withOverride := domain.Variant{ProductID: "p", PriceMinor: 1500}
	if got := withOverride.EffectivePriceMinor(product); got != 1500 {
		t.Fatalf("override price = %d, want 1500", got)
	}

	noOverride := domain.Variant{ProductID: "p"}
	if got := noOverride.EffectivePriceMinor(product); got != 1000 {
		t.Fatalf("base price = %d, want 1000", got)
	}
}

func TestInventoryLow(t *testing.T) {
	inv := domain.Inventory{Quantity: 3, LowStockThreshold: 5}
	if !inv.Low() {
		t.Fatal("quantity below threshold must report low")
	}
	inv.Quantity = 6
	if inv.Low() {
		t.Fatal("quantity above threshold must not report low")
	}
}
