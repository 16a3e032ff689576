package repo

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AddToCart merges quantity into the user's line for productID. The merged
// quantity is checked against current stock before anything is written.
func (r *GormRepo) AddToCart(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartItem, error) {
	var item models.CartItem
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prod models.Product
		if err := forUpdate(tx).Where("id = ?", productID).First(&prod).Error; err != nil {
			return notFound(err, ErrProductNotFound)
		}

		existing := 0
		res := tx.Where("user_id = ? AND product_id = ?", userID, productID).Limit(1).Find(&item)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			existing = item.Quantity
		}

		total := existing + quantity
		if total > prod.Stock {
			return &StockError{ProductID: productID, Requested: total, Available: prod.Stock}
		}

		if existing > 0 {
			item.Quantity = total
			return tx.Model(&item).Update("quantity", total).Error
		}

		item = models.CartItem{
			UserID:    userID,
			ProductID: productID,
			Quantity:  quantity,
			UnitPrice: prod.Price,
		}
		if err := tx.Create(&item).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("cart line created concurrently: %w", ErrConflict)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateQuantity replaces the quantity of one of the user's lines.
func (r *GormRepo) UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*models.CartItem, error) {
	var item models.CartItem
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", itemID, userID).Take(&item).Error; err != nil {
			return notFound(err, ErrCartItemNotFound)
		}

		var prod models.Product
		if err := forUpdate(tx).Where("id = ?", item.ProductID).First(&prod).Error; err != nil {
			return notFound(err, ErrProductNotFound)
		}
		if quantity > prod.Stock {
			return &StockError{ProductID: prod.ID, Requested: quantity, Available: prod.Stock}
		}

		item.Quantity = quantity
		return tx.Model(&item).Update("quantity", quantity).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *GormRepo) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", itemID, userID).Take(&item).Error; err != nil {
			return notFound(err, ErrCartItemNotFound)
		}
		return tx.Delete(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *GormRepo) ClearCart(ctx context.Context, userID uuid.UUID) error {
	return r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}

// RemovePurchased takes the bought quantities out of the user's cart. Lines
// that grew after the snapshot keep the difference; lines added after it are
// left alone.
func (r *GormRepo) RemovePurchased(ctx context.Context, userID uuid.UUID, lines []models.CartLine) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, line := range lines {
			res := tx.Model(&models.CartItem{}).
				Where("id = ? AND user_id = ? AND quantity > ?", line.ID, userID, line.Quantity).
				Update("quantity", gorm.Expr("quantity - ?", line.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				continue
			}
			err := tx.Where("id = ? AND user_id = ?", line.ID, userID).Delete(&models.CartItem{}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// CartLines returns the user's lines joined with their products, oldest first.
func (r *GormRepo) CartLines(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error) {
	lines := []models.CartLine{}
	err := r.DB.WithContext(ctx).
		Table("cart_items AS ci").
		Select("ci.id, ci.user_id, ci.product_id, ci.quantity, ci.unit_price, ci.added_at, p.name AS product_name, p.stock AS stock").
		Joins("JOIN products AS p ON p.id = ci.product_id").
		Where("ci.user_id = ?", userID).
		Order("ci.added_at ASC, ci.id ASC").
		Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}
