package domain

import "time"

// Review — отзыв пользователя о товаре. На пару (user, product) допускается
// не более одного отзыва; новые отзывы ждут модерации.
type Review struct {
	ID        string
	UserID    string
	ProductID string
	Rating    int32
	Title     string
	Body      string
	Approved  bool
	CreatedAt time.Time
}

// Validate проверяет корректность полей отзыва.
func (r *Review) Validate() []error {
	var errs []error

	if r.UserID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if r.ProductID == "" {
		errs = append(errs, ErrProductNotFound)
	}
	if r.Rating < 1 || r.Rating > 5 {
		errs = append(errs, ErrRatingInvalid)
	}

	return errs
}
