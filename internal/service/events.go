package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

const (
	EventCartItemAdded       = "cart_item_added"
	EventCartItemUpdated     = "cart_item_updated"
	EventCartItemRemoved     = "cart_item_removed"
	EventCartCleared         = "cart_cleared"
	EventCartCheckedOut      = "cart_checked_out"
	EventOrderCreated        = "order_created"
	EventOrderStatusChanged  = "order_status_changed"
	EventOrderTotalRecounted = "order_total_recalculated"
)

func publish(ctx context.Context, events mykafka.Publisher, topic, key string, event any) {
	if events == nil {
		return
	}
	if err := events.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(ctx).Error("publish_event_error", "topic", topic, "key", key, "error", err)
	}
}

func orderEvent(typ string, o *models.Order, at time.Time) transport.OrderEvent {
	ev := transport.OrderEvent{
		Type:    typ,
		OrderID: o.ID,
		UserID:  o.UserID,
		Status:  string(o.Status),
		Total:   o.TotalAmount,
		At:      at,
	}
	for _, it := range o.Items {
		ev.Items = append(ev.Items, transport.OrderEventItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.PriceAtOrderTime,
		})
	}
	return ev
}
