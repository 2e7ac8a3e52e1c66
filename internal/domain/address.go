package domain

import "time"

// Address — адрес доставки или оплаты, принадлежит пользователю.
type Address struct {
	ID         string
	UserID     string
	FullName   string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	CreatedAt  time.Time
}

// Validate проверяет обязательные поля адреса.
func (a *Address) Validate() error {
	if a.Line1 == "" || a.City == "" || a.PostalCode == "" {
		return ErrAddressIncomplete
	}
	return nil
}

// ShippingMethod — способ доставки с фиксированной ценой.
type ShippingMethod struct {
	ID            string
	Name          string
	PriceMinor    int64
	EstimatedDays int32
	Active        bool
}
