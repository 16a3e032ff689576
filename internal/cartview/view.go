// Package cartview derives the aggregate cart state shown to a shopper.
package cartview

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/watch"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartState struct {
	Items     []models.CartLine `json:"items"`
	Total     decimal.Decimal   `json:"total"`
	ItemCount int               `json:"item_count"`
	IsEmpty   bool              `json:"is_empty"`
}

type LineSource interface {
	CartLines(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error)
}

type View struct {
	Lines LineSource
	Hub   *watch.Hub[uuid.UUID]
	Log   *slog.Logger
}

func New(lines LineSource, hub *watch.Hub[uuid.UUID], log *slog.Logger) *View {
	if log == nil {
		log = slog.Default()
	}
	return &View{Lines: lines, Hub: hub, Log: log}
}

// Compute folds cart lines into a CartState.
func Compute(lines []models.CartLine) CartState {
	if lines == nil {
		lines = []models.CartLine{}
	}
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal())
	}
	return CartState{
		Items:     lines,
		Total:     total,
		ItemCount: len(lines),
		IsEmpty:   len(lines) == 0,
	}
}

func (v *View) Snapshot(ctx context.Context, userID uuid.UUID) (CartState, error) {
	lines, err := v.Lines.CartLines(ctx, userID)
	if err != nil {
		return CartState{}, fmt.Errorf("load cart lines: %w", err)
	}
	return Compute(lines), nil
}

// CartChanged tells local watchers of userID's cart to recompute.
func (v *View) CartChanged(_ context.Context, userID uuid.UUID) {
	v.Hub.Notify(userID)
}

// Watch emits the current state, then a fresh state after every change to
// userID's cart. The channel closes when ctx is done.
func (v *View) Watch(ctx context.Context, userID uuid.UUID) <-chan CartState {
	out := make(chan CartState)
	sub := v.Hub.Subscribe(userID)

	go func() {
		defer close(out)
		defer sub.Close()

		emit := func() bool {
			st, err := v.Snapshot(ctx, userID)
			if err != nil {
				if ctx.Err() == nil {
					v.Log.Error("cart_view_recompute_error", "user_id", userID, "error", err)
				}
				return ctx.Err() == nil
			}
			select {
			case out <- st:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.C:
				if !emit() {
					return
				}
			}
		}
	}()
	return out
}
