package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Skotchmaster/storefront/internal/cartview"
	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/internal/worker"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/session"
	"github.com/google/uuid"
)

type CartStore interface {
	AddToCart(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartItem, error)
	UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*models.CartItem, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*models.CartItem, error)
	ClearCart(ctx context.Context, userID uuid.UUID) error
	RemovePurchased(ctx context.Context, userID uuid.UUID, lines []models.CartLine) error
	CartLines(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error)
}

type ChangeNotifier interface {
	CartChanged(ctx context.Context, userID uuid.UUID)
}

// CartService owns every cart mutation. Mutations for one user run one at a
// time on the cart pool.
type CartService struct {
	Store    CartStore
	Pool     *worker.Pool
	View     *cartview.View
	Notifier ChangeNotifier
	Events   mykafka.Publisher
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

func (s *CartService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *CartService) AddToCart(ctx context.Context, sess *session.Session, productID uuid.UUID, quantity int) (*models.CartItem, error) {
	if err := sess.Validate(s.now()); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		s.Metrics.CartOp("add", KindInvalidQuantity)
		return nil, fmt.Errorf("add %d: %w", quantity, ErrInvalidQuantity)
	}
	if productID == uuid.Nil {
		return nil, fmt.Errorf("product_id required: %w", ErrValidation)
	}

	item, err := worker.Do(s.Pool, ctx, sess.UserID.String(), func(ctx context.Context) (*models.CartItem, error) {
		return s.Store.AddToCart(ctx, sess.UserID, productID, quantity)
	})
	err = storeErr("add to cart", err)
	s.done(ctx, "add", sess.UserID, err, transport.CartEvent{
		Type:      EventCartItemAdded,
		ProductID: productID,
		Quantity:  quantity,
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateQuantity sets the quantity of a cart line; it does not add to it.
func (s *CartService) UpdateQuantity(ctx context.Context, sess *session.Session, itemID uuid.UUID, quantity int) (*models.CartItem, error) {
	if err := sess.Validate(s.now()); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		s.Metrics.CartOp("update", KindInvalidQuantity)
		return nil, fmt.Errorf("update to %d: %w", quantity, ErrInvalidQuantity)
	}

	item, err := worker.Do(s.Pool, ctx, sess.UserID.String(), func(ctx context.Context) (*models.CartItem, error) {
		return s.Store.UpdateQuantity(ctx, sess.UserID, itemID, quantity)
	})
	err = storeErr("update cart item", err)
	ev := transport.CartEvent{Type: EventCartItemUpdated, ItemID: itemID, Quantity: quantity}
	if item != nil {
		ev.ProductID = item.ProductID
	}
	s.done(ctx, "update", sess.UserID, err, ev)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *CartService) RemoveItem(ctx context.Context, sess *session.Session, itemID uuid.UUID) error {
	if err := sess.Validate(s.now()); err != nil {
		return err
	}

	item, err := worker.Do(s.Pool, ctx, sess.UserID.String(), func(ctx context.Context) (*models.CartItem, error) {
		return s.Store.RemoveItem(ctx, sess.UserID, itemID)
	})
	err = storeErr("remove cart item", err)
	ev := transport.CartEvent{Type: EventCartItemRemoved, ItemID: itemID}
	if item != nil {
		ev.ProductID = item.ProductID
	}
	s.done(ctx, "remove", sess.UserID, err, ev)
	return err
}

func (s *CartService) ClearCart(ctx context.Context, sess *session.Session) error {
	if err := sess.Validate(s.now()); err != nil {
		return err
	}
	_, err := worker.Do(s.Pool, ctx, sess.UserID.String(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.Store.ClearCart(ctx, sess.UserID)
	})
	err = storeErr("clear cart", err)
	s.done(ctx, "clear", sess.UserID, err, transport.CartEvent{Type: EventCartCleared})
	return err
}

// removePurchased takes a checked-out snapshot out of userID's cart without a
// session check. It runs on the user's cart key, so it is ordered with the
// user's other cart mutations.
func (s *CartService) removePurchased(ctx context.Context, userID uuid.UUID, lines []models.CartLine) error {
	_, err := worker.Do(s.Pool, ctx, userID.String(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.Store.RemovePurchased(ctx, userID, lines)
	})
	err = storeErr("remove purchased lines", err)
	s.done(ctx, "checkout_remove", userID, err, transport.CartEvent{Type: EventCartCheckedOut})
	return err
}

func (s *CartService) GetCart(ctx context.Context, sess *session.Session) (cartview.CartState, error) {
	if err := sess.Validate(s.now()); err != nil {
		return cartview.CartState{}, err
	}
	st, err := s.View.Snapshot(ctx, sess.UserID)
	if err != nil {
		return cartview.CartState{}, storeErr("get cart", err)
	}
	return st, nil
}

func (s *CartService) WatchCart(ctx context.Context, sess *session.Session) (<-chan cartview.CartState, error) {
	if err := sess.Validate(s.now()); err != nil {
		return nil, err
	}
	return s.View.Watch(ctx, sess.UserID), nil
}

func (s *CartService) done(ctx context.Context, op string, userID uuid.UUID, err error, ev transport.CartEvent) {
	l := logging.FromContext(ctx)
	if err != nil {
		s.Metrics.CartOp(op, Kind(err))
		if Kind(err) == KindPersistence || Kind(err) == KindUnknown {
			l.Error("cart_"+op+"_error", "user_id", userID, "error", err)
		} else {
			l.Warn("cart_"+op+"_rejected", "user_id", userID, "reason", Kind(err), "error", err)
		}
		return
	}
	s.Metrics.CartOp(op, "ok")

	if s.Notifier != nil {
		s.Notifier.CartChanged(ctx, userID)
	}
	ev.UserID = userID
	ev.At = s.now().UTC()
	publish(ctx, s.Events, mykafka.TopicCartEvents, userID.String(), ev)
}
