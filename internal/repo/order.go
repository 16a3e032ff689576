package repo

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateOrder inserts the header and its lines atomically. Line IDs and the
// order reference are filled in on return.
func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order, lines []models.OrderItem) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createOrder(tx, order, lines)
	})
}

func createOrder(tx *gorm.DB, order *models.Order, lines []models.OrderItem) error {
	if err := tx.Omit("Items").Create(order).Error; err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	for i := range lines {
		lines[i].OrderID = order.ID
	}
	if len(lines) > 0 {
		if err := tx.Create(&lines).Error; err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
	}
	order.Items = lines
	return nil
}

// PlaceOrder turns cart lines into a confirmed order. Stock is re-checked and
// decremented under row locks in the same transaction that writes the order,
// so either all of it is visible or none of it is.
func (r *GormRepo) PlaceOrder(ctx context.Context, userID uuid.UUID, cart []models.CartLine) (*models.Order, error) {
	lines := make([]models.CartLine, len(cart))
	copy(lines, cart)
	// fixed lock order across concurrent checkouts
	sort.Slice(lines, func(i, j int) bool {
		return bytes.Compare(lines[i].ProductID[:], lines[j].ProductID[:]) < 0
	})

	order := &models.Order{
		UserID:      userID,
		Status:      models.OrderStatusPending,
		TotalAmount: decimal.Zero,
	}
	items := make([]models.OrderItem, 0, len(lines))

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, l := range lines {
			var prod models.Product
			if err := forUpdate(tx).Where("id = ?", l.ProductID).First(&prod).Error; err != nil {
				return notFound(err, ErrProductNotFound)
			}
			if l.Quantity > prod.Stock {
				return &StockError{ProductID: l.ProductID, Requested: l.Quantity, Available: prod.Stock}
			}
			items = append(items, models.OrderItem{
				ProductID:        l.ProductID,
				Quantity:         l.Quantity,
				PriceAtOrderTime: l.UnitPrice,
			})
			order.TotalAmount = order.TotalAmount.Add(l.LineTotal())
		}

		if err := createOrder(tx, order, items); err != nil {
			return err
		}
		for _, it := range items {
			if err := decreaseStock(tx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		order.Status = models.OrderStatusConfirmed
		return tx.Model(order).Update("status", order.Status).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateOrderTotal sets the order total to the sum of its lines.
func (r *GormRepo) UpdateOrderTotal(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("id = ?", orderID).First(&order).Error; err != nil {
			return notFound(err, ErrOrderNotFound)
		}
		if err := tx.Where("order_id = ?", orderID).Find(&order.Items).Error; err != nil {
			return err
		}

		total := decimal.Zero
		for _, it := range order.Items {
			total = total.Add(it.LineTotal())
		}
		order.TotalAmount = total
		return tx.Model(&order).Update("total_amount", total).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).Preload("Items").Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	return &order, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) (int64, []models.Order, error) {
	return r.listOrders(ctx, "user_id = ?", userID, limit, offset)
}

// ListOrdersByStatus returns every user's orders in status, newest first.
func (r *GormRepo) ListOrdersByStatus(ctx context.Context, status models.OrderStatus, limit, offset int) (int64, []models.Order, error) {
	return r.listOrders(ctx, "status = ?", status, limit, offset)
}

func (r *GormRepo) listOrders(ctx context.Context, where string, arg any, limit, offset int) (int64, []models.Order, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Order{}).Where(where, arg).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	orders := make([]models.Order, 0, limit)
	if err := r.DB.WithContext(ctx).
		Preload("Items").
		Where(where, arg).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&orders).Error; err != nil {
		return 0, nil, err
	}
	return total, orders, nil
}

func (r *GormRepo) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, next models.OrderStatus) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("id = ?", orderID).First(&order).Error; err != nil {
			return notFound(err, ErrOrderNotFound)
		}
		if !order.Status.CanTransition(next) {
			return fmt.Errorf("%s -> %s: %w", order.Status, next, ErrInvalidTransition)
		}
		order.Status = next
		return tx.Model(&order).Update("status", next).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}
