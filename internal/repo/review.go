package repo

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AddReview stores a review and refreshes the product's derived rating in the
// same transaction.
func (r *GormRepo) AddReview(ctx context.Context, review *models.Review) (*models.Product, error) {
	var prod models.Product
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("id = ?", review.ProductID).First(&prod).Error; err != nil {
			return notFound(err, ErrProductNotFound)
		}
		if err := tx.Create(review).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("user already reviewed product: %w", ErrConflict)
			}
			return err
		}
		return recomputeRating(tx, &prod)
	})
	if err != nil {
		return nil, err
	}
	return &prod, nil
}

func (r *GormRepo) GetReview(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&review).Error; err != nil {
		return nil, notFound(err, ErrReviewNotFound)
	}
	return &review, nil
}

// UpdateReview saves the rating and comment of an existing review and
// refreshes the product's rating.
func (r *GormRepo) UpdateReview(ctx context.Context, review *models.Review) (*models.Product, error) {
	var prod models.Product
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("id = ?", review.ProductID).First(&prod).Error; err != nil {
			return notFound(err, ErrProductNotFound)
		}
		res := tx.Model(&models.Review{}).
			Where("id = ?", review.ID).
			Updates(map[string]any{"rating": review.Rating, "comment": review.Comment})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrReviewNotFound
		}
		return recomputeRating(tx, &prod)
	})
	if err != nil {
		return nil, err
	}
	return &prod, nil
}

func (r *GormRepo) DeleteReview(ctx context.Context, review *models.Review) (*models.Product, error) {
	var prod models.Product
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("id = ?", review.ProductID).First(&prod).Error; err != nil {
			return notFound(err, ErrProductNotFound)
		}
		res := tx.Where("id = ?", review.ID).Delete(&models.Review{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrReviewNotFound
		}
		return recomputeRating(tx, &prod)
	})
	if err != nil {
		return nil, err
	}
	return &prod, nil
}

// ListReviews returns a product's reviews, newest first.
func (r *GormRepo) ListReviews(ctx context.Context, productID uuid.UUID, offset, limit int) (int64, []models.Review, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Review{}).
		Where("product_id = ?", productID).
		Count(&total).Error; err != nil {
		return 0, nil, err
	}

	reviews := make([]models.Review, 0, limit)
	if err := r.DB.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC, id ASC").
		Offset(offset).Limit(limit).
		Find(&reviews).Error; err != nil {
		return 0, nil, err
	}
	return total, reviews, nil
}

func recomputeRating(tx *gorm.DB, prod *models.Product) error {
	var agg struct {
		Avg   float64
		Count int
	}
	if err := tx.Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS avg, COUNT(*) AS count").
		Where("product_id = ?", prod.ID).
		Scan(&agg).Error; err != nil {
		return err
	}

	prod.Rating = agg.Avg
	prod.ReviewCount = agg.Count
	return tx.Model(prod).Updates(map[string]any{
		"rating":       agg.Avg,
		"review_count": agg.Count,
	}).Error
}
