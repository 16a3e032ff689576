// Package pgnotify carries cart change signals between instances over
// postgres LISTEN/NOTIFY.
package pgnotify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const Channel = "storefront_cart_changed"

// Notifier announces cart changes to every listening instance, this one
// included.
type Notifier struct {
	DB  *gorm.DB
	Log *slog.Logger
}

func (n *Notifier) CartChanged(ctx context.Context, userID uuid.UUID) {
	if err := n.DB.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", Channel, userID.String()).Error; err != nil {
		n.Log.Error("pg_notify_error", "user_id", userID, "error", err)
	}
}

func parsePayload(extra string) (uuid.UUID, error) {
	id, err := uuid.Parse(extra)
	if err != nil {
		return uuid.Nil, fmt.Errorf("bad notify payload %q: %w", extra, err)
	}
	return id, nil
}

// Listen forwards notifications on Channel to onChange until ctx is done.
func Listen(ctx context.Context, dsn string, log *slog.Logger, onChange func(uuid.UUID)) error {
	l := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("pg_listener_event", "event", int(ev), "error", err)
		}
	})
	defer l.Close()

	if err := l.Listen(Channel); err != nil {
		return fmt.Errorf("listen %s: %w", Channel, err)
	}
	log.Info("pg_listener_started", "channel", Channel)

	ticker := time.NewTicker(90 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-l.Notify:
			// nil after a reconnect; state may have changed while disconnected
			if n == nil {
				continue
			}
			id, err := parsePayload(n.Extra)
			if err != nil {
				log.Warn("pg_notify_payload_error", "error", err)
				continue
			}
			onChange(id)
		case <-ticker.C:
			if err := l.Ping(); err != nil {
				log.Warn("pg_listener_ping_error", "error", err)
			}
		}
	}
}
