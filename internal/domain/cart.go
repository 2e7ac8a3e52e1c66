package domain

import "time"

// CartStatus описывает жизненный цикл корзины.
type CartStatus string

const (
	// CartStatusActive — корзина принимает изменения.
	CartStatusActive CartStatus = "active"
	// CartStatusOrdered — из корзины оформлен заказ; история сохраняется.
	CartStatusOrdered CartStatus = "ordered"
	// CartStatusAbandoned — корзина брошена (слита при логине или протухла).
	CartStatusAbandoned CartStatus = "abandoned"
)

// CartOwner идентифицирует владельца корзины: пользователь или гостевая
// сессия, ровно один из двух.
type CartOwner struct {
	UserID    string
	SessionID string
}

// UserOwner возвращает владельца-пользователя.
func UserOwner(userID string) CartOwner {
	return CartOwner{UserID: userID}
}

// GuestOwner возвращает владельца-гостевую сессию.
func GuestOwner(sessionID string) CartOwner {
	return CartOwner{SessionID: sessionID}
}

// Validate проверяет инвариант XOR владельца.
func (o CartOwner) Validate() error {
	if (o.UserID == "") == (o.SessionID == "") {
		return ErrCartOwnerInvalid
	}
	return nil
}

// CartItem — позиция корзины. UnitPriceMinor — снимок цены варианта на
// момент добавления; дальнейшие изменения цены на позицию не влияют.
type CartItem struct {
	ID             string
	CartID         string
	VariantID      string
	Quantity       int32
	UnitPriceMinor int64
	CreatedAt      time.Time
}

// Cart агрегирует позиции корзины одного владельца.
type Cart struct {
	ID        string
	UserID    string
	SessionID string
	Status    CartStatus
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Owner возвращает владельца корзины.
func (c Cart) Owner() CartOwner {
	return CartOwner{UserID: c.UserID, SessionID: c.SessionID}
}

// OwnedBy отвечает, принадлежит ли корзина данному владельцу.
func (c Cart) OwnedBy(owner CartOwner) bool {
	if owner.UserID != "" {
		return c.UserID == owner.UserID
	}
	return owner.SessionID != "" && c.SessionID == owner.SessionID
}

// SubtotalMinor возвращает сумму позиций по снимкам цен.
func (c Cart) SubtotalMinor() int64 {
	var total int64
	for _, item := range c.Items {
		total += int64(item.Quantity) * item.UnitPriceMinor
	}
	return total
}

// ItemForVariant возвращает позицию корзины для варианта, если она есть.
func (c Cart) ItemForVariant(variantID string) (CartItem, bool) {
	for _, item := range c.Items {
		if item.VariantID == variantID {
			return item, true
		}
	}
	return CartItem{}, false
}
