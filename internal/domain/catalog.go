package domain

import "time"

// Category — узел дерева категорий. Дерево связано через ParentID;
// пустой ParentID означает корневую категорию.
type Category struct {
	ID       string
	ParentID string
	Name     string
}

// CategorySubtree возвращает id категории rootID и всех её потомков.
// Обход итеративный (BFS) с защитой от циклов: повреждённая связь
// parent/child завершает обход, а не уводит в бесконечную рекурсию.
func CategorySubtree(all []Category, rootID string) []string {
	children := make(map[string][]string, len(all))
	for _, c := range all {
		if c.ParentID != "" {
			children[c.ParentID] = append(children[c.ParentID], c.ID)
		}
	}

	visited := map[string]struct{}{rootID: {}}
	result := []string{rootID}
	queue := []string{rootID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range children[current] {
			if _, seen := visited[child]; seen {
				continue
			}
			visited[child] = struct{}{}
			result = append(result, child)
			queue = append(queue, child)
		}
	}
	return result
}

// Product — карточка товара продавца. Цена хранится в минимальных
// денежных единицах и служит базовой ценой для вариантов.
type Product struct {
	ID          string
	VendorID    string
	CategoryID  string
	Name        string
	Description string
	PriceMinor  int64
	Currency    string
	CreatedAt   time.Time
}

// Variant — конкретное исполнение товара (SKU). PriceMinor > 0 переопределяет
// базовую цену товара.
type Variant struct {
	ID         string
	ProductID  string
	SKU        string
	PriceMinor int64
	Attributes map[string]string
}

// EffectivePriceMinor возвращает цену варианта: собственную, если задана,
// иначе базовую цену товара.
func (v Variant) EffectivePriceMinor(p Product) int64 {
	if v.PriceMinor > 0 {
		return v.PriceMinor
	}
	return p.PriceMinor
}

// Inventory — счётчик остатков, 1:1 с вариантом.
// Инвариант: Quantity >= 0 всегда. Остаток уменьшает только оформление
// заказа и увеличивает только отмена с возвратом на склад.
type Inventory struct {
	VariantID         string
	Quantity          int32
	LowStockThreshold int32
	UpdatedAt         time.Time
}

// Low сообщает, достиг ли остаток порога пополнения.
func (i Inventory) Low() bool {
	return i.Quantity <= i.LowStockThreshold
}

// LowStockEntry — строка отчёта по товарам с низким остатком.
type LowStockEntry struct {
	ProductID   string
	ProductName string
	VariantID   string
	SKU         string
	Quantity    int32
	Threshold   int32
}

// ProductFilter задаёт параметры выборки товаров.
type ProductFilter struct {
	// CategoryIDs — список категорий (обычно поддерево); пустой список не фильтрует.
	CategoryIDs []string
	// VendorID ограничивает выборку товарами одного продавца.
	VendorID string
	// Limit ограничивает размер выборки; 0 — без ограничения.
	Limit int
}
