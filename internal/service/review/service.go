package review

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// Service управляет отзывами: создание с проверкой факта покупки,
// модерация администратором и публичная выдача одобренных отзывов.
type Service struct {
	store  domain.Store
	logger *log.Entry
}

// NewService создаёт сервис отзывов.
func NewService(store domain.Store, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "review")
	}
	return &Service{store: store, logger: logger}
}

// Create создаёт отзыв о товаре. Отзыв доступен только покупателю товара:
// нужна хотя бы одна позиция в неотменённом оплаченном заказе. Один отзыв
// на пару (пользователь, товар); новые отзывы не одобрены до модерации.
func (s *Service) Create(ctx context.Context, identity domain.Identity, productID string, rating int32, title, body string) (domain.Review, error) {
	if err := identity.Require(domain.CapCreateReview); err != nil {
		return domain.Review{}, err
	}

	review := domain.Review{
		ID:        uuid.NewString(),
		UserID:    identity.UserID,
		ProductID: productID,
		Rating:    rating,
		Title:     title,
		Body:      body,
		Approved:  false,
		CreatedAt: time.Now().UTC(),
	}
	if errs := review.Validate(); len(errs) > 0 {
		return domain.Review{}, errs[0]
	}

	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		if _, err := tx.Catalog().Product(productID); err != nil {
			return err
		}

		purchased, err := tx.Orders().HasQualifyingPurchase(identity.UserID, productID)
		if err != nil {
			return err
		}
		if !purchased {
			return domain.ErrPurchaseRequired
		}

		exists, err := tx.Reviews().ExistsForUserProduct(identity.UserID, productID)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrDuplicateReview
		}

		return tx.Reviews().Create(review)
	})
	if err != nil {
		return domain.Review{}, err
	}

	s.logger.WithFields(log.Fields{
		"review_id":  review.ID,
		"product_id": productID,
		"rating":     rating,
	}).Info("review submitted for moderation")
	return review, nil
}

// Approve одобряет отзыв. Доступно только администратору.
func (s *Service) Approve(ctx context.Context, identity domain.Identity, reviewID string) (domain.Review, error) {
	if err := identity.Require(domain.CapApproveReview); err != nil {
		return domain.Review{}, err
	}

	var review domain.Review
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		if err := tx.Reviews().SetApproved(reviewID); err != nil {
			return err
		}
		var err error
		review, err = tx.Reviews().Get(reviewID)
		return err
	})
	if err != nil {
		return domain.Review{}, err
	}

	s.logger.WithField("review_id", reviewID).Info("review approved")
	return review, nil
}

// ListPending возвращает отзывы, ожидающие модерации. Только администратор.
func (s *Service) ListPending(ctx context.Context, identity domain.Identity, limit int) ([]domain.Review, error) {
	if err := identity.Require(domain.CapApproveReview); err != nil {
		return nil, err
	}

	var reviews []domain.Review
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		var err error
		reviews, err = tx.Reviews().ListPending(limit)
		return err
	})
	return reviews, err
}

// ListApproved возвращает страницу одобренных отзывов о товаре и общее
// их количество. Выдача публичная, аутентификация не требуется.
func (s *Service) ListApproved(ctx context.Context, productID string, page, perPage int) ([]domain.Review, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var (
		reviews []domain.Review
		total   int
	)
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		if _, err := tx.Catalog().Product(productID); err != nil {
			return err
		}
		var err error
		reviews, total, err = tx.Reviews().ListApprovedByProduct(productID, (page-1)*perPage, perPage)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}
