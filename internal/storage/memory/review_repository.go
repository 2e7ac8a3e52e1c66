package memory

import (
	"sort"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// reviewRepository — in-memory реализация ReviewRepository.
type reviewRepository struct {
	st *state
}

func (r *reviewRepository) Create(review domain.Review) error {
	for _, existing := range r.st.reviews {
		if existing.UserID == review.UserID && existing.ProductID == review.ProductID {
			return domain.ErrDuplicateReview
		}
	}
	r.st.reviews[review.ID] = review
	return nil
}

func (r *reviewRepository) Get(id string) (domain.Review, error) {
	review, ok := r.st.reviews[id]
	if !ok {
		return domain.Review{}, domain.ErrReviewNotFound
	}
	return review, nil
}

func (r *reviewRepository) ExistsForUserProduct(userID, productID string) (bool, error) {
	for _, review := range r.st.reviews {
		if review.UserID == userID && review.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (r *reviewRepository) ListApprovedByProduct(productID string, offset, limit int) ([]domain.Review, int, error) {
	all := make([]domain.Review, 0)
	for _, review := range r.st.reviews {
		if review.ProductID == productID && review.Approved {
			all = append(all, review)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	total := len(all)
	if offset >= total {
		return []domain.Review{}, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (r *reviewRepository) ListPending(limit int) ([]domain.Review, error) {
	result := make([]domain.Review, 0)
	for _, review := range r.st.reviews {
		if !review.Approved {
			result = append(result, review)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *reviewRepository) SetApproved(id string) error {
	review, ok := r.st.reviews[id]
	if !ok {
		return domain.ErrReviewNotFound
	}
	review.Approved = true
	r.st.reviews[id] = review
	return nil
}

var _ domain.ReviewRepository = (*reviewRepository)(nil)
