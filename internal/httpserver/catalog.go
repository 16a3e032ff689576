package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/internal/util"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type CatalogHTTP struct {
	Svc *service.CatalogService
}

func (h *CatalogHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_product")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "get_product_failed", "id not a uuid", err)
	}

	product, err := h.Svc.GetProduct(ctx, id)
	if err != nil {
		return fail(l, "get_product_failed", err)
	}
	return c.JSON(http.StatusOK, product)
}

func (h *CatalogHTTP) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_products")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	filter, err := productFilter(c)
	if err != nil {
		return badRequest(l, "get_products_error", err.Error(), err)
	}

	total, items, err := h.Svc.ListProducts(ctx, filter, offset, limit)
	if err != nil {
		return fail(l, "get_products_error", err)
	}
	return c.JSON(http.StatusOK, transport.Page[models.Product]{
		Data: items,
		Meta: util.NewMeta(page, offset, limit, total),
	})
}

func (h *CatalogHTTP) SearchProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.search")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, items, err := h.Svc.SearchProducts(ctx, c.QueryParam("q"), offset, limit)
	if err != nil {
		return fail(l, "search_products_error", err)
	}
	return c.JSON(http.StatusOK, transport.Page[models.Product]{
		Data: items,
		Meta: util.NewMeta(page, offset, limit, total),
	})
}

func (h *CatalogHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.create_product")

	var req transport.CreateProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "product_create_error", "invalid body", err)
	}

	prod, err := h.Svc.CreateProduct(ctx, req)
	if err != nil {
		return fail(l, "product_create_error", err)
	}

	l.Info("create_product_success", "product_id", prod.ID)
	return c.JSON(http.StatusCreated, prod)
}

func (h *CatalogHTTP) PatchProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.patch_product")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "product_patch_error", "id not a uuid", err)
	}
	var req transport.PatchProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "product_patch_error", "invalid body", err)
	}

	prod, err := h.Svc.PatchProduct(ctx, id, req)
	if err != nil {
		return fail(l, "product_patch_error", err)
	}

	l.Info("patch_product_success", "product_id", prod.ID)
	return c.JSON(http.StatusOK, prod)
}

func (h *CatalogHTTP) AddReview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.add_review")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "add_review_error", "id not a uuid", err)
	}
	var req transport.AddReviewRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "add_review_error", "invalid body", err)
	}

	prod, err := h.Svc.AddReview(ctx, currentSession(c), id, req)
	if err != nil {
		return fail(l, "add_review_error", err)
	}
	return c.JSON(http.StatusCreated, prod)
}

func (h *CatalogHTTP) ListReviews(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.list_reviews")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "list_reviews_error", "id not a uuid", err)
	}
	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, reviews, err := h.Svc.ListReviews(ctx, id, offset, limit)
	if err != nil {
		return fail(l, "list_reviews_error", err)
	}
	return c.JSON(http.StatusOK, transport.Page[models.Review]{
		Data: reviews,
		Meta: util.NewMeta(page, offset, limit, total),
	})
}

func (h *CatalogHTTP) UpdateReview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.update_review")

	id, err := uuid.Parse(c.Param("review_id"))
	if err != nil {
		return badRequest(l, "update_review_error", "review_id not a uuid", err)
	}
	var req transport.UpdateReviewRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_review_error", "invalid body", err)
	}

	prod, err := h.Svc.UpdateReview(ctx, currentSession(c), id, req)
	if err != nil {
		return fail(l, "update_review_error", err)
	}
	return c.JSON(http.StatusOK, prod)
}

func (h *CatalogHTTP) DeleteReview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.delete_review")

	id, err := uuid.Parse(c.Param("review_id"))
	if err != nil {
		return badRequest(l, "delete_review_error", "review_id not a uuid", err)
	}
	if _, err := h.Svc.DeleteReview(ctx, currentSession(c), id); err != nil {
		return fail(l, "delete_review_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// productFilter reads category, min_price, max_price, in_stock and sort.
func productFilter(c echo.Context) (transport.ProductFilter, error) {
	f := transport.ProductFilter{
		Category: c.QueryParam("category"),
		Sort:     c.QueryParam("sort"),
	}
	for _, p := range []struct {
		name string
		dst  **decimal.Decimal
	}{{"min_price", &f.MinPrice}, {"max_price", &f.MaxPrice}} {
		raw := c.QueryParam(p.name)
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return f, fmt.Errorf("%s not a number", p.name)
		}
		*p.dst = &v
	}
	if raw := c.QueryParam("in_stock"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fmt.Errorf("in_stock not a bool")
		}
		f.InStock = v
	}
	return f, nil
}
