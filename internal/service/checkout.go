package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/watch"
	"github.com/Skotchmaster/storefront/internal/worker"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/session"
	"github.com/google/uuid"
)

type CheckoutState string

const (
	CheckoutIdle       CheckoutState = "IDLE"
	CheckoutProcessing CheckoutState = "PROCESSING"
	CheckoutCompleted  CheckoutState = "COMPLETED"
	CheckoutError      CheckoutState = "ERROR"
)

const (
	MsgCartEmpty         = "Cart is empty"
	MsgInsufficientStock = "Insufficient stock"
	MsgOrderFailed       = "Failed to create order"
	msgClearCartWarning  = "Order placed successfully but failed to clear cart: "
)

// defaultRetain matches the access token lifetime: no session that started a
// checkout outlives its outcome.
const defaultRetain = 15 * time.Minute

type CheckoutResult struct {
	Success bool          `json:"success"`
	OrderID uuid.UUID     `json:"order_id,omitempty"`
	Order   *models.Order `json:"order,omitempty"`
	Warning string        `json:"warning,omitempty"`
	Error   string        `json:"error,omitempty"`
}

type CheckoutStatus struct {
	State  CheckoutState   `json:"state"`
	Result *CheckoutResult `json:"result,omitempty"`
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, lines []models.CartLine) (*models.Order, error)
}

type ProductReindexer interface {
	GetProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type ProductIndexer interface {
	IndexProduct(ctx context.Context, p *models.Product) error
}

// CheckoutService turns a user's cart into an order. Each user has one
// checkout state machine: IDLE -> PROCESSING -> COMPLETED | ERROR, and a new
// checkout may start from any state except PROCESSING. A finished outcome is
// kept for Retain and then the user reads IDLE again.
type CheckoutService struct {
	Cart     *CartService
	Orders   OrderPlacer
	Pool     *worker.Pool
	Events   mykafka.Publisher
	Metrics  *metrics.Metrics
	Products ProductReindexer
	Index    ProductIndexer
	// Retain bounds how long finished outcomes are kept. Zero means 15m.
	Retain time.Duration

	mu     sync.Mutex
	status map[uuid.UUID]checkoutEntry
	hub    *watch.Hub[uuid.UUID]
	once   sync.Once
}

type checkoutEntry struct {
	CheckoutStatus
	finishedAt time.Time
}

func (s *CheckoutService) init() {
	s.once.Do(func() {
		s.status = make(map[uuid.UUID]checkoutEntry)
		s.hub = watch.NewHub[uuid.UUID]()
	})
}

func (s *CheckoutService) retain() time.Duration {
	if s.Retain > 0 {
		return s.Retain
	}
	return defaultRetain
}

func (e checkoutEntry) expired(now time.Time, retain time.Duration) bool {
	return e.State != CheckoutProcessing && now.Sub(e.finishedAt) >= retain
}

// sweep drops expired outcomes. Caller holds s.mu.
func (s *CheckoutService) sweep(now time.Time) {
	retain := s.retain()
	for id, e := range s.status {
		if e.expired(now, retain) {
			delete(s.status, id)
		}
	}
}

// Checkout starts processing the caller's cart. An invalid session is
// returned without touching the state machine. Once started the checkout runs
// to completion even if ctx is cancelled; the outcome is delivered through
// the returned Future and the user's status.
func (s *CheckoutService) Checkout(ctx context.Context, sess *session.Session) (*worker.Future[CheckoutResult], error) {
	s.init()
	if err := sess.Validate(s.Cart.now()); err != nil {
		return nil, err
	}
	userID := sess.UserID

	s.mu.Lock()
	if s.status[userID].State == CheckoutProcessing {
		s.mu.Unlock()
		return nil, ErrCheckoutInProgress
	}
	s.status[userID] = checkoutEntry{CheckoutStatus: CheckoutStatus{State: CheckoutProcessing}}
	s.mu.Unlock()
	s.hub.Notify(userID)

	runCtx := context.WithoutCancel(ctx)
	f := worker.Submit(s.Pool, runCtx, userID.String(), func(ctx context.Context) (res CheckoutResult, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logging.FromContext(ctx).Error("checkout_panic", "user_id", userID, "panic", r)
				res = failed(fmt.Sprint(r))
			}
			s.finish(ctx, userID, res, time.Since(start))
		}()
		return s.run(ctx, userID), nil
	})

	select {
	case <-f.Done():
		if _, err := f.Wait(runCtx); err != nil {
			s.finish(runCtx, userID, failed(err.Error()), 0)
			return nil, fmt.Errorf("start checkout: %w: %w", ErrUnknown, err)
		}
	default:
	}
	return f, nil
}

func failed(msg string) CheckoutResult {
	return CheckoutResult{Success: false, Error: msg}
}

func (s *CheckoutService) run(ctx context.Context, userID uuid.UUID) CheckoutResult {
	l := logging.FromContext(ctx).With("user_id", userID)

	cart, err := s.Cart.View.Snapshot(ctx, userID)
	if err != nil {
		l.Error("checkout_load_cart_error", "error", err)
		return failed(err.Error())
	}
	if cart.IsEmpty {
		return failed(MsgCartEmpty)
	}

	for _, line := range cart.Items {
		if line.Quantity > line.Stock {
			l.Warn("checkout_stock_rejected", "product_id", line.ProductID, "requested", line.Quantity, "available", line.Stock)
			return failed(MsgInsufficientStock)
		}
	}

	order, err := s.Orders.PlaceOrder(ctx, userID, cart.Items)
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			l.Warn("checkout_stock_rejected", "error", err)
			return failed(MsgInsufficientStock)
		}
		l.Error("checkout_place_order_error", "error", err)
		return failed(MsgOrderFailed)
	}

	res := CheckoutResult{Success: true, OrderID: order.ID, Order: order}
	if err := s.Cart.removePurchased(ctx, userID, cart.Items); err != nil {
		l.Error("checkout_clear_cart_error", "order_id", order.ID, "error", err)
		res.Warning = msgClearCartWarning + err.Error()
	}

	publish(ctx, s.Events, mykafka.TopicOrderEvents, order.ID.String(), orderEvent(EventOrderCreated, order, time.Now().UTC()))
	s.reindex(ctx, order)

	l.Info("checkout_completed", "order_id", order.ID, "total", order.TotalAmount.String())
	return res
}

func (s *CheckoutService) reindex(ctx context.Context, order *models.Order) {
	if s.Index == nil || s.Products == nil {
		return
	}
	ids := make([]uuid.UUID, 0, len(order.Items))
	for _, it := range order.Items {
		ids = append(ids, it.ProductID)
	}
	l := logging.FromContext(ctx)
	prods, err := s.Products.GetProducts(ctx, ids)
	if err != nil {
		l.Error("checkout_reindex_error", "order_id", order.ID, "error", err)
		return
	}
	for i := range prods {
		if err := s.Index.IndexProduct(ctx, &prods[i]); err != nil {
			l.Error("checkout_reindex_error", "product_id", prods[i].ID, "error", err)
		}
	}
}

func (s *CheckoutService) finish(ctx context.Context, userID uuid.UUID, res CheckoutResult, d time.Duration) {
	state := CheckoutCompleted
	outcome := "completed"
	if !res.Success {
		state = CheckoutError
		outcome = "error"
		logging.FromContext(ctx).Warn("checkout_failed", "user_id", userID, "reason", res.Error)
	} else if res.Warning != "" {
		outcome = "completed_with_warning"
	}
	s.Metrics.Checkout(outcome, d)

	now := s.Cart.now()
	s.mu.Lock()
	s.sweep(now)
	s.status[userID] = checkoutEntry{CheckoutStatus: CheckoutStatus{State: state, Result: &res}, finishedAt: now}
	s.mu.Unlock()
	s.hub.Notify(userID)
}

func (s *CheckoutService) Status(userID uuid.UUID) CheckoutStatus {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.status[userID]
	if !ok || e.expired(s.Cart.now(), s.retain()) {
		return CheckoutStatus{State: CheckoutIdle}
	}
	return e.CheckoutStatus
}

func (s *CheckoutService) State(userID uuid.UUID) CheckoutState {
	return s.Status(userID).State
}

// Result returns the outcome of the user's last finished checkout.
func (s *CheckoutService) Result(userID uuid.UUID) (CheckoutResult, bool) {
	st := s.Status(userID)
	if st.Result == nil {
		return CheckoutResult{}, false
	}
	return *st.Result, true
}

// Watch emits the current status and then every change until ctx is done.
func (s *CheckoutService) Watch(ctx context.Context, userID uuid.UUID) <-chan CheckoutStatus {
	s.init()
	out := make(chan CheckoutStatus)
	sub := s.hub.Subscribe(userID)

	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case out <- s.Status(userID):
			case <-ctx.Done():
				return
			}
			select {
			case <-sub.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
