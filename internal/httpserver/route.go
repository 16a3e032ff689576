package httpserver

import (
	"context"
	"net/http"

	"github.com/Skotchmaster/storefront/internal/metrics"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/Skotchmaster/storefront/pkg/middleware/csrf"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type Deps struct {
	CatalogHandler  *CatalogHTTP
	CartHandler     *CartHTTP
	CheckoutHandler *CheckoutHTTP
	OrderHandler    *OrderHTTP

	JWTSecret []byte
	// CSRF guards cookie-authenticated writes; zero value uses the defaults.
	CSRF     csrf.Config
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	// Ready reports whether dependencies are reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			}
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(d.Gatherer)))
	}

	authMW := middleware.NewSessionMiddleware(d.JWTSecret)
	csrfMW := csrf.Middleware(d.CSRF)

	products := e.Group("/catalog/products", csrfMW)
	products.GET("/search", d.CatalogHandler.SearchProducts)
	products.GET("", d.CatalogHandler.GetProducts)
	products.GET("/:id", d.CatalogHandler.GetProduct)
	products.GET("/:id/reviews", d.CatalogHandler.ListReviews)
	products.POST("/:id/reviews", d.CatalogHandler.AddReview, authMW.RequireAuth)
	products.PATCH("/:id/reviews/:review_id", d.CatalogHandler.UpdateReview, authMW.RequireAuth)
	products.DELETE("/:id/reviews/:review_id", d.CatalogHandler.DeleteReview, authMW.RequireAuth)

	adminProducts := products.Group("", authMW.RequireAdmin)
	adminProducts.POST("", d.CatalogHandler.CreateProduct)
	adminProducts.PATCH("/:id", d.CatalogHandler.PatchProduct)

	cart := e.Group("/cart", csrfMW, authMW.RequireAuth)
	cart.GET("", d.CartHandler.GetCart)
	cart.GET("/stream", d.CartHandler.StreamCart)
	cart.POST("", d.CartHandler.AddToCart)
	cart.PATCH("/items/:id", d.CartHandler.UpdateItem)
	cart.DELETE("/items/:id", d.CartHandler.RemoveItem)
	cart.DELETE("", d.CartHandler.ClearCart)

	checkout := e.Group("/checkout", csrfMW, authMW.RequireAuth)
	checkout.POST("", d.CheckoutHandler.Checkout)
	checkout.GET("", d.CheckoutHandler.GetStatus)
	checkout.GET("/stream", d.CheckoutHandler.StreamStatus)

	orders := e.Group("/orders", csrfMW, authMW.RequireAuth)
	orders.GET("", d.OrderHandler.ListOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)

	admin := e.Group("/admin", csrfMW, authMW.RequireAdmin)
	admin.GET("/orders", d.OrderHandler.ListByStatus)
	admin.PATCH("/orders/:id/status", d.OrderHandler.UpdateStatus)
	admin.POST("/orders/:id/recalculate", d.OrderHandler.Recalculate)
}
