package domain

import "errors"

var (
	// Ошибка некорректного количества товара (<= 0).
	ErrQuantityInvalid = errors.New("quantity must be greater than zero")
	// Ошибка некорректной оценки отзыва.
	ErrRatingInvalid = errors.New("rating must be between 1 and 5")
	// Ошибка владельца корзины: нужен ровно один из user_id / session_id.
	ErrCartOwnerInvalid = errors.New("cart owner requires exactly one of user_id or session_id")
	// Ошибка неполного адреса доставки.
	ErrAddressIncomplete = errors.New("address requires line1, city and postal code")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer id is required")
	// Ошибка отсутствия позиций в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order total does not match items sum plus shipping")
	// Ошибка отрицательной цены позиции.
	ErrPriceInvalid = errors.New("price must be non-negative")
	// Ошибка пустой корзины при оформлении заказа.
	ErrCartEmpty = errors.New("cart is empty")
	// Ошибка пустого названия товара.
	ErrProductNameRequired = errors.New("product name is required")
	// Ошибка пустого кода SKU варианта.
	ErrSKURequired = errors.New("variant sku is required")

	// ErrCategoryNotFound возвращается, если категория не найдена.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrVariantNotFound возвращается, если вариант товара не найден.
	ErrVariantNotFound = errors.New("product variant not found")
	// ErrInventoryNotFound возвращается, если у варианта нет записи остатков.
	ErrInventoryNotFound = errors.New("inventory record not found")
	// ErrCartNotFound возвращается, если активная корзина не найдена.
	ErrCartNotFound = errors.New("cart not found")
	// ErrCartItemNotFound возвращается, если позиция корзины не найдена.
	ErrCartItemNotFound = errors.New("cart item not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderItemNotFound возвращается, если позиция заказа не найдена.
	ErrOrderItemNotFound = errors.New("order item not found")
	// ErrAddressNotFound возвращается, если адрес не найден или принадлежит другому пользователю.
	ErrAddressNotFound = errors.New("address not found")
	// ErrShippingMethodNotFound возвращается, если способ доставки не найден или отключён.
	ErrShippingMethodNotFound = errors.New("shipping method not found")
	// ErrReviewNotFound возвращается, если отзыв не найден.
	ErrReviewNotFound = errors.New("review not found")

	// ErrInsufficientStock — запрошенное количество превышает остаток.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInventoryUnderflow — списание увело бы остаток ниже нуля; нарушение инварианта.
	ErrInventoryUnderflow = errors.New("inventory quantity must never go negative")
	// ErrOrderNotCancellable — заказ уже отгружен или доставлен.
	ErrOrderNotCancellable = errors.New("order can no longer be cancelled")
	// ErrOrderAlreadyCancelled — повторная отмена отклоняется.
	ErrOrderAlreadyCancelled = errors.New("order is already cancelled")
	// ErrDuplicateReview — у пользователя уже есть отзыв на этот товар.
	ErrDuplicateReview = errors.New("review already exists for this product")
	// ErrFulfillmentTransition — недопустимый переход статуса исполнения позиции.
	ErrFulfillmentTransition = errors.New("fulfillment status transition is not allowed")
	// ErrCheckoutInProgress — по этому idempotency-ключу уже идёт оформление.
	ErrCheckoutInProgress = errors.New("checkout with this idempotency key is already in progress")

	// ErrUnauthenticated — операция требует аутентифицированного пользователя.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden — у пользователя нет прав на операцию или чужой ресурс.
	ErrForbidden = errors.New("operation is not permitted")
	// ErrPurchaseRequired — отзыв доступен только покупателям товара.
	ErrPurchaseRequired = errors.New("purchase required to review this product")

	// ErrPaymentDeclined — платёж отклонён провайдером.
	ErrPaymentDeclined = errors.New("payment declined")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsValidation проверяет, относится ли ошибка к ошибкам валидации запроса.
func IsValidation(err error) bool {
	return isAny(err,
		ErrQuantityInvalid, ErrRatingInvalid, ErrCartOwnerInvalid,
		ErrAddressIncomplete, ErrCurrencyRequired, ErrCustomerRequired,
		ErrItemsRequired, ErrAmountMismatch, ErrPriceInvalid, ErrCartEmpty,
		ErrProductNameRequired, ErrSKURequired,
	)
}

// IsNotFound проверяет, относится ли ошибка к классу "не найдено".
func IsNotFound(err error) bool {
	return isAny(err,
		ErrCategoryNotFound, ErrProductNotFound, ErrVariantNotFound,
		ErrInventoryNotFound, ErrCartNotFound, ErrCartItemNotFound,
		ErrOrderNotFound, ErrOrderItemNotFound, ErrAddressNotFound,
		ErrShippingMethodNotFound, ErrReviewNotFound,
	)
}

// IsConflict проверяет, относится ли ошибка к конфликтам состояния.
// Для всего checkout-пути конфликт означает: транзакция откатана, мутаций нет.
func IsConflict(err error) bool {
	return isAny(err,
		ErrInsufficientStock, ErrInventoryUnderflow, ErrOrderNotCancellable,
		ErrOrderAlreadyCancelled, ErrDuplicateReview, ErrFulfillmentTransition,
		ErrCheckoutInProgress,
	)
}

// IsForbidden проверяет, относится ли ошибка к ошибкам авторизации.
func IsForbidden(err error) bool {
	return isAny(err, ErrForbidden, ErrPurchaseRequired)
}

// IsUnauthenticated проверяет, требует ли ошибка аутентификации.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

func isAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
