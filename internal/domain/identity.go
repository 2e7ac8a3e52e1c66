package domain

// Role задаёт роль пользователя в системе.
type Role string

const (
	// RoleCustomer — обычный покупатель.
	RoleCustomer Role = "customer"
	// RoleVendor — продавец, управляет своими товарами и исполнением позиций.
	RoleVendor Role = "vendor"
	// RoleAdmin — администратор маркетплейса.
	RoleAdmin Role = "admin"
)

// Capability — именованное право на операцию. Проверка прав выполняется
// явно в начале каждой операции, без наследования ролей.
type Capability string

const (
	CapManageCart        Capability = "cart:manage"
	CapCheckout          Capability = "order:checkout"
	CapCancelOrder       Capability = "order:cancel"
	CapViewOwnOrders     Capability = "order:view_own"
	CapViewVendorOrders  Capability = "order:view_vendor"
	CapViewAllOrders     Capability = "order:view_all"
	CapUpdateFulfillment Capability = "order:update_fulfillment"
	CapCreateReview      Capability = "review:create"
	CapApproveReview     Capability = "review:approve"
	CapViewLowStock      Capability = "catalog:low_stock"
	CapManageProducts    Capability = "catalog:manage"
	CapManageAllProducts Capability = "catalog:manage_all"
	CapViewSalesReport   Capability = "reports:sales"
)

// Identity — верифицированная личность запроса: кто и с какой ролью.
// Выдача и проверка токенов — внешний контракт; домен видит уже
// проверенные значения.
type Identity struct {
	UserID string
	Email  string
	Role   Role
}

// roleCapabilities перечисляет права каждой роли.
var roleCapabilities = map[Role]map[Capability]struct{}{
	RoleCustomer: {
		CapManageCart:    {},
		CapCheckout:      {},
		CapCancelOrder:   {},
		CapViewOwnOrders: {},
		CapCreateReview:  {},
	},
	RoleVendor: {
		CapManageCart:        {},
		CapCheckout:          {},
		CapCancelOrder:       {},
		CapViewOwnOrders:     {},
		CapViewVendorOrders:  {},
		CapUpdateFulfillment: {},
		CapCreateReview:      {},
		CapViewLowStock:      {},
		CapManageProducts:    {},
		CapViewSalesReport:   {},
	},
	RoleAdmin: {
		CapManageCart:        {},
		CapCheckout:          {},
		CapCancelOrder:       {},
		CapViewOwnOrders:     {},
		CapViewVendorOrders:  {},
		CapViewAllOrders:     {},
		CapUpdateFulfillment: {},
		CapCreateReview:      {},
		CapApproveReview:     {},
		CapViewLowStock:      {},
		CapManageProducts:    {},
		CapManageAllProducts: {},
		CapViewSalesReport:   {},
	},
}

// Authenticated сообщает, представляет ли identity вошедшего пользователя.
func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

// Can отвечает, разрешена ли операция для роли identity.
func (i Identity) Can(c Capability) bool {
	caps, ok := roleCapabilities[i.Role]
	if !ok {
		return false
	}
	_, ok = caps[c]
	return ok
}

// Require возвращает ошибку авторизации, если операция не разрешена.
func (i Identity) Require(c Capability) error {
	if !i.Authenticated() {
		return ErrUnauthenticated
	}
	if !i.Can(c) {
		return ErrForbidden
	}
	return nil
}
