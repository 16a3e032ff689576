package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
)

// CanTransition reports whether an order may move from s to next.
// Orders only move forward: PENDING -> CONFIRMED -> DELIVERED.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusConfirmed
	case OrderStatusConfirmed:
		return next == OrderStatusDelivered
	default:
		return false
	}
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusDelivered:
		return true
	}
	return false
}

type Product struct {
	ID          uuid.UUID       `gorm:"type:varchar(36);primaryKey"      json:"id"`
	Name        string          `gorm:"not null"                         json:"name"`
	Description string          `gorm:"not null;default:''"              json:"description"`
	Category    string          `gorm:"index;not null;default:''"        json:"category"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null"      json:"price"`
	Stock       int             `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	Rating      float64         `gorm:"not null;default:0"               json:"rating"`
	ReviewCount int             `gorm:"not null;default:0"               json:"review_count"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type CartItem struct {
	ID        uuid.UUID       `gorm:"type:varchar(36);primaryKey"                            json:"id"`
	UserID    uuid.UUID       `gorm:"type:varchar(36);uniqueIndex:idx_user_product;not null" json:"user_id"`
	ProductID uuid.UUID       `gorm:"type:varchar(36);uniqueIndex:idx_user_product;not null" json:"product_id"`
	Quantity  int             `gorm:"not null;check:quantity > 0"                            json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"                            json:"unit_price"`
	AddedAt   time.Time       `gorm:"not null"                                               json:"added_at"`
}

// CartLine is a cart item joined with the current state of its product.
type CartLine struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	AddedAt     time.Time       `json:"added_at"`
	ProductName string          `json:"product_name"`
	Stock       int             `json:"stock"`
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Order struct {
	ID          uuid.UUID       `gorm:"type:varchar(36);primaryKey"           json:"id"`
	UserID      uuid.UUID       `gorm:"type:varchar(36);index;not null"       json:"user_id"`
	CreatedAt   time.Time       `gorm:"index"                                 json:"created_at"`
	Status      OrderStatus     `gorm:"type:varchar(16);not null;index"       json:"status"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(12,2);not null"           json:"total_amount"`
	Items       []OrderItem     `gorm:"foreignKey:OrderID"                    json:"items,omitempty"`
}

type OrderItem struct {
	ID               uuid.UUID       `gorm:"type:varchar(36);primaryKey"     json:"id"`
	OrderID          uuid.UUID       `gorm:"type:varchar(36);index;not null" json:"order_id"`
	ProductID        uuid.UUID       `gorm:"type:varchar(36);not null"       json:"product_id"`
	Quantity         int             `gorm:"not null;check:quantity > 0"     json:"quantity"`
	PriceAtOrderTime decimal.Decimal `gorm:"type:decimal(12,2);not null"     json:"price_at_order_time"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.PriceAtOrderTime.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Review struct {
	ID        uuid.UUID `gorm:"type:varchar(36);primaryKey"                              json:"id"`
	ProductID uuid.UUID `gorm:"type:varchar(36);uniqueIndex:idx_review_user_product;not null" json:"product_id"`
	UserID    uuid.UUID `gorm:"type:varchar(36);uniqueIndex:idx_review_user_product;not null" json:"user_id"`
	Rating    int       `gorm:"not null;check:rating BETWEEN 1 AND 5"                    json:"rating"`
	Comment   string    `gorm:"not null;default:''"                                      json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.AddedAt.IsZero() {
		c.AddedAt = tx.NowFunc()
	}
	return nil
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = OrderStatusPending
	}
	return nil
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (CartItem) TableName() string {
	return "cart_items"
}

func (OrderItem) TableName() string {
	return "order_items"
}
