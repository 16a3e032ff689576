package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/storefront/internal/cartview"
	"github.com/Skotchmaster/storefront/internal/config"
	"github.com/Skotchmaster/storefront/internal/es"
	"github.com/Skotchmaster/storefront/internal/httpserver"
	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/pgnotify"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/watch"
	"github.com/Skotchmaster/storefront/internal/worker"
	"github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/middleware/csrf"
	loggingmw "github.com/Skotchmaster/storefront/pkg/middleware/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Default().Error("storefront_exit", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.IntoContext(ctx, logger)

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DatabaseURL)
	if err == nil {
		err = repo.Migrate(initCtx, gdb)
	}
	cancel()
	if err != nil {
		return fmt.Errorf("db init: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	store := repo.New(gdb)

	events := mykafka.New(cfg.KafkaBrokers)
	defer func() {
		if err := events.Close(); err != nil {
			logger.Error("kafka_close_error", "error", err)
		}
	}()

	var index *es.ProductIndex
	if cfg.SearchEnabled() {
		client, err := es.NewClient(ctx, es.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword})
		if err != nil {
			logger.Error("elasticsearch_unavailable", "error", err)
		} else {
			index = es.NewProductIndex(client, cfg.ESIndex)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, cfg.ServiceName)

	cartPool := worker.NewPool("cart", cfg.CartWorkers, 256, logger)
	checkoutPool := worker.NewPool("checkout", cfg.CheckoutWorkers, 256, logger)

	hub := watch.NewHub[uuid.UUID]()
	view := cartview.New(store, hub, logger)

	cart := &service.CartService{
		Store:   store,
		Pool:    cartPool,
		View:    view,
		Events:  events,
		Metrics: m,
	}
	checkout := &service.CheckoutService{
		Cart:     cart,
		Orders:   store,
		Pool:     checkoutPool,
		Events:   events,
		Metrics:  m,
		Products: store,
		Retain:   cfg.CheckoutRetain,
	}
	catalog := &service.CatalogService{Store: store}
	if index != nil {
		catalog.Index = index
		checkout.Index = index
	}
	orders := &service.OrderService{Store: store, Events: events}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.PGNotify && db.IsPostgres(cfg.DatabaseURL) {
		cart.Notifier = &pgnotify.Notifier{DB: gdb, Log: logger}
		g.Go(func() error {
			return pgnotify.Listen(gctx, cfg.DatabaseURL, logger, hub.Notify)
		})
	} else {
		cart.Notifier = view
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(m.Middleware())

	httpserver.Register(e, &httpserver.Deps{
		CatalogHandler:  &httpserver.CatalogHTTP{Svc: catalog},
		CartHandler:     &httpserver.CartHTTP{Svc: cart},
		CheckoutHandler: &httpserver.CheckoutHTTP{Svc: checkout},
		OrderHandler:    &httpserver.OrderHTTP{Svc: orders},
		JWTSecret:       cfg.JWTAccessSecret,
		CSRF:            csrf.Config{Secure: cfg.CookieSecure},
		Metrics:         m,
		Gatherer:        reg,
		Ready:           sqlDB.PingContext,
	})

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.ServerPort)
		logger.Info("server_starting", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("echo start: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server_shutting_down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error("echo_shutdown_error", "error", err)
		}
		// checkouts in flight finish before their carts are released
		if err := checkoutPool.Close(); err != nil {
			logger.Error("checkout_pool_close_error", "error", err)
		}
		if err := cartPool.Close(); err != nil {
			logger.Error("cart_pool_close_error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown_complete")
	return nil
}
