package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// reviewRepository — PostgreSQL-реализация ReviewRepository. Единственность
// отзыва на пару (user, product) обеспечивает уникальный индекс.
type reviewRepository struct {
	t *pgTx
}

func (r *reviewRepository) Create(review domain.Review) error {
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	_, err := r.t.tx.ExecContext(r.t.ctx, `
		INSERT INTO reviews (id, user_id, product_id, rating, title, body, approved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, review.ID, review.UserID, review.ProductID, review.Rating,
		review.Title, review.Body, review.Approved, review.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateReview
		}
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (r *reviewRepository) Get(id string) (domain.Review, error) {
	var review domain.Review
	err := r.t.tx.QueryRowContext(r.t.ctx, `
		SELECT id, user_id, product_id, rating, title, body, approved, created_at
		FROM reviews
		WHERE id = $1
	`, id).Scan(&review.ID, &review.UserID, &review.ProductID, &review.Rating,
		&review.Title, &review.Body, &review.Approved, &review.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Review{}, domain.ErrReviewNotFound
	}
	if err != nil {
		return domain.Review{}, fmt.Errorf("query review: %w", err)
	}
	return review, nil
}

func (r *reviewRepository) ExistsForUserProduct(userID, productID string) (bool, error) {
	var exists bool
	err := r.t.tx.QueryRowContext(r.t.ctx, `
		SELECT EXISTS (SELECT 1 FROM reviews WHERE user_id = $1 AND product_id = $2)
	`, userID, productID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query review existence: %w", err)
	}
	return exists, nil
}

func (r *reviewRepository) ListApprovedByProduct(productID string, offset, limit int) ([]domain.Review, int, error) {
	var total int
	if err := r.t.tx.QueryRowContext(r.t.ctx, `
		SELECT COUNT(*) FROM reviews WHERE product_id = $1 AND approved
	`, productID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count approved reviews: %w", err)
	}

	rows, err := r.t.tx.QueryContext(r.t.ctx, `
		SELECT id, user_id, product_id, rating, title, body, approved, created_at
		FROM reviews
		WHERE product_id = $1 AND approved
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3
	`, productID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("query approved reviews: %w", err)
	}
	defer rows.Close()

	reviews, err := scanReviews(rows)
	if err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

func (r *reviewRepository) ListPending(limit int) ([]domain.Review, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.t.tx.QueryContext(r.t.ctx, `
		SELECT id, user_id, product_id, rating, title, body, approved, created_at
		FROM reviews
		WHERE NOT approved
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending reviews: %w", err)
	}
	defer rows.Close()
	return scanReviews(rows)
}

func (r *reviewRepository) SetApproved(id string) error {
	res, err := r.t.tx.ExecContext(r.t.ctx, `
		UPDATE reviews SET approved = TRUE WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("approve review: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("approve review rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrReviewNotFound
	}
	return nil
}

func scanReviews(rows *sql.Rows) ([]domain.Review, error) {
	reviews := make([]domain.Review, 0)
	for rows.Next() {
		var review domain.Review
		if err := rows.Scan(&review.ID, &review.UserID, &review.ProductID, &review.Rating,
			&review.Title, &review.Body, &review.Approved, &review.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return reviews, nil
}

var _ domain.ReviewRepository = (*reviewRepository)(nil)
