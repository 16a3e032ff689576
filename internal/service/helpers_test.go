package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Skotchmaster/storefront/internal/cartview"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/testutil"
	"github.com/Skotchmaster/storefront/internal/watch"
	"github.com/Skotchmaster/storefront/internal/worker"
	"github.com/Skotchmaster/storefront/pkg/session"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type published struct {
	Topic string
	Key   string
	Event any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Topic: topic, Key: key, Event: event})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

type testEnv struct {
	DB       *gorm.DB
	Repo     *repo.GormRepo
	Events   *recordingPublisher
	Cart     *CartService
	Checkout *CheckoutService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb := testutil.NewDB(t)
	r := repo.New(gdb)
	events := &recordingPublisher{}

	cartPool := worker.NewPool("cart", 4, 64, nil)
	checkoutPool := worker.NewPool("checkout", 2, 64, nil)
	t.Cleanup(func() {
		_ = checkoutPool.Close()
		_ = cartPool.Close()
	})

	view := cartview.New(r, watch.NewHub[uuid.UUID](), nil)
	cart := &CartService{
		Store:    r,
		Pool:     cartPool,
		View:     view,
		Notifier: view,
		Events:   events,
	}
	checkout := &CheckoutService{
		Cart:     cart,
		Orders:   r,
		Pool:     checkoutPool,
		Events:   events,
		Products: r,
	}
	return &testEnv{DB: gdb, Repo: r, Events: events, Cart: cart, Checkout: checkout}
}

func userSession() *session.Session {
	return session.New(uuid.New(), session.RoleUser, time.Now().Add(time.Hour))
}

func adminSession() *session.Session {
	return session.New(uuid.New(), session.RoleAdmin, time.Now().Add(time.Hour))
}
