package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/pkg/session"
	"github.com/google/uuid"
)

type OrderStore interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) (int64, []models.Order, error)
	ListOrdersByStatus(ctx context.Context, status models.OrderStatus, limit, offset int) (int64, []models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, next models.OrderStatus) (*models.Order, error)
	UpdateOrderTotal(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type OrderService struct {
	Store  OrderStore
	Events mykafka.Publisher
	Now    func() time.Time
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// GetOrder returns the order if it belongs to the caller. Admins see every
// order.
func (s *OrderService) GetOrder(ctx context.Context, sess *session.Session, orderID uuid.UUID) (*models.Order, error) {
	if err := sess.Validate(s.now()); err != nil {
		return nil, err
	}
	order, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, storeErr("get order", err)
	}
	if order.UserID != sess.UserID && !sess.IsAdmin() {
		return nil, fmt.Errorf("get order %s: %w", orderID, ErrOrderNotFound)
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, sess *session.Session, offset, limit int) (int64, []models.Order, error) {
	if err := sess.Validate(s.now()); err != nil {
		return 0, nil, err
	}
	total, orders, err := s.Store.ListOrders(ctx, sess.UserID, limit, offset)
	return total, orders, storeErr("list orders", err)
}

// ListOrdersByStatus lists every user's orders in one status.
func (s *OrderService) ListOrdersByStatus(ctx context.Context, sess *session.Session, status string, offset, limit int) (int64, []models.Order, error) {
	if err := s.admin(sess); err != nil {
		return 0, nil, err
	}
	st := models.OrderStatus(status)
	if !st.Valid() {
		return 0, nil, fmt.Errorf("unknown status %q: %w", status, ErrValidation)
	}
	total, orders, err := s.Store.ListOrdersByStatus(ctx, st, limit, offset)
	return total, orders, storeErr("list orders by status", err)
}

func (s *OrderService) UpdateOrderStatus(ctx context.Context, sess *session.Session, orderID uuid.UUID, status string) (*models.Order, error) {
	if err := s.admin(sess); err != nil {
		return nil, err
	}
	next := models.OrderStatus(status)
	if !next.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", status, ErrValidation)
	}

	order, err := s.Store.UpdateOrderStatus(ctx, orderID, next)
	if err != nil {
		return nil, storeErr("update order status", err)
	}
	publish(ctx, s.Events, mykafka.TopicOrderEvents, order.ID.String(), orderEvent(EventOrderStatusChanged, order, s.now().UTC()))
	return order, nil
}

// RecalculateTotal recomputes an order's total from its lines.
func (s *OrderService) RecalculateTotal(ctx context.Context, sess *session.Session, orderID uuid.UUID) (*models.Order, error) {
	if err := s.admin(sess); err != nil {
		return nil, err
	}
	order, err := s.Store.UpdateOrderTotal(ctx, orderID)
	if err != nil {
		return nil, storeErr("recalculate order total", err)
	}
	publish(ctx, s.Events, mykafka.TopicOrderEvents, order.ID.String(), orderEvent(EventOrderTotalRecounted, order, s.now().UTC()))
	return order, nil
}

func (s *OrderService) admin(sess *session.Session) error {
	if err := sess.Validate(s.now()); err != nil {
		return err
	}
	if !sess.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
