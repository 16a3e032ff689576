package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/session"
	"github.com/google/uuid"
)

type CatalogStore interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, f transport.ProductFilter, offset, limit int) (int64, []models.Product, error)
	CreateProduct(ctx context.Context, prod *models.Product) (*models.Product, error)
	PatchProduct(ctx context.Context, id uuid.UUID, req transport.PatchProductRequest) (*models.Product, error)
	SearchProducts(ctx context.Context, q string, offset, limit int) (int64, []models.Product, error)
	AddReview(ctx context.Context, review *models.Review) (*models.Product, error)
	GetReview(ctx context.Context, id uuid.UUID) (*models.Review, error)
	UpdateReview(ctx context.Context, review *models.Review) (*models.Product, error)
	DeleteReview(ctx context.Context, review *models.Review) (*models.Product, error)
	ListReviews(ctx context.Context, productID uuid.UUID, offset, limit int) (int64, []models.Review, error)
}

type ProductSearchIndex interface {
	ProductIndexer
	Search(ctx context.Context, query string, from, size int) (int64, []models.Product, error)
}

type CatalogService struct {
	Store CatalogStore
	// Index is optional; without it search falls back to the store.
	Index ProductSearchIndex
	Now   func() time.Time
}

func (s *CatalogService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := s.Store.GetProduct(ctx, id)
	return p, storeErr("get product", err)
}

func (s *CatalogService) ListProducts(ctx context.Context, f transport.ProductFilter, offset, limit int) (int64, []models.Product, error) {
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return 0, nil, fmt.Errorf("min_price above max_price: %w", ErrValidation)
	}
	switch f.Sort {
	case "", transport.SortNewest, transport.SortTopRated, transport.SortPriceAsc, transport.SortPriceDesc:
	default:
		return 0, nil, fmt.Errorf("unknown sort %q: %w", f.Sort, ErrValidation)
	}
	f.Category = strings.TrimSpace(f.Category)

	total, items, err := s.Store.ListProducts(ctx, f, offset, limit)
	return total, items, storeErr("list products", err)
}

func (s *CatalogService) CreateProduct(ctx context.Context, req transport.CreateProductRequest) (*models.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("name required: %w", ErrValidation)
	}
	if req.Price.IsNegative() {
		return nil, fmt.Errorf("price cannot be negative: %w", ErrValidation)
	}
	if req.Stock < 0 {
		return nil, fmt.Errorf("stock cannot be negative: %w", ErrValidation)
	}

	prod, err := s.Store.CreateProduct(ctx, &models.Product{
		Name:        name,
		Description: req.Description,
		Category:    strings.TrimSpace(req.Category),
		Price:       req.Price,
		Stock:       req.Stock,
	})
	if err != nil {
		return nil, storeErr("create product", err)
	}
	s.index(ctx, prod)
	return prod, nil
}

func (s *CatalogService) PatchProduct(ctx context.Context, id uuid.UUID, req transport.PatchProductRequest) (*models.Product, error) {
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, fmt.Errorf("name cannot be empty: %w", ErrValidation)
	}
	if req.Price != nil && req.Price.IsNegative() {
		return nil, fmt.Errorf("price cannot be negative: %w", ErrValidation)
	}
	if req.Stock != nil && *req.Stock < 0 {
		return nil, fmt.Errorf("stock cannot be negative: %w", ErrValidation)
	}

	prod, err := s.Store.PatchProduct(ctx, id, req)
	if err != nil {
		return nil, storeErr("patch product", err)
	}
	s.index(ctx, prod)
	return prod, nil
}

func (s *CatalogService) SearchProducts(ctx context.Context, q string, offset, limit int) (int64, []models.Product, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return 0, nil, fmt.Errorf("query required: %w", ErrValidation)
	}

	if s.Index != nil {
		total, items, err := s.Index.Search(ctx, q, offset, limit)
		if err == nil {
			return total, items, nil
		}
		logging.FromContext(ctx).Error("search_index_error", "query", q, "error", err)
	}

	total, items, err := s.Store.SearchProducts(ctx, q, offset, limit)
	return total, items, storeErr("search products", err)
}

func (s *CatalogService) AddReview(ctx context.Context, sess *session.Session, productID uuid.UUID, req transport.AddReviewRequest) (*models.Product, error) {
	if err := sess.Validate(s.now()); err != nil {
		return nil, err
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, fmt.Errorf("rating must be between 1 and 5: %w", ErrValidation)
	}

	prod, err := s.Store.AddReview(ctx, &models.Review{
		ProductID: productID,
		UserID:    sess.UserID,
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(req.Comment),
	})
	if err != nil {
		return nil, storeErr("add review", err)
	}
	s.index(ctx, prod)
	return prod, nil
}

// UpdateReview changes the caller's own review.
func (s *CatalogService) UpdateReview(ctx context.Context, sess *session.Session, reviewID uuid.UUID, req transport.UpdateReviewRequest) (*models.Product, error) {
	if err := sess.Validate(s.now()); err != nil {
		return nil, err
	}
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		return nil, fmt.Errorf("rating must be between 1 and 5: %w", ErrValidation)
	}

	review, err := s.ownReview(ctx, sess, reviewID, false)
	if err != nil {
		return nil, err
	}
	if req.Rating != nil {
		review.Rating = *req.Rating
	}
	if req.Comment != nil {
		review.Comment = strings.TrimSpace(*req.Comment)
	}

	prod, err := s.Store.UpdateReview(ctx, review)
	if err != nil {
		return nil, storeErr("update review", err)
	}
	s.index(ctx, prod)
	return prod, nil
}

// DeleteReview removes a review. Admins may remove any review.
func (s *CatalogService) DeleteReview(ctx context.Context, sess *session.Session, reviewID uuid.UUID) (*models.Product, error) {
	if err := sess.Validate(s.now()); err != nil {
		return nil, err
	}
	review, err := s.ownReview(ctx, sess, reviewID, true)
	if err != nil {
		return nil, err
	}

	prod, err := s.Store.DeleteReview(ctx, review)
	if err != nil {
		return nil, storeErr("delete review", err)
	}
	s.index(ctx, prod)
	return prod, nil
}

// ownReview loads a review the caller may change. Other users' reviews look
// missing.
func (s *CatalogService) ownReview(ctx context.Context, sess *session.Session, reviewID uuid.UUID, adminOK bool) (*models.Review, error) {
	review, err := s.Store.GetReview(ctx, reviewID)
	if err != nil {
		return nil, storeErr("get review", err)
	}
	if review.UserID != sess.UserID && !(adminOK && sess.IsAdmin()) {
		return nil, fmt.Errorf("review %s: %w", reviewID, ErrReviewNotFound)
	}
	return review, nil
}

func (s *CatalogService) ListReviews(ctx context.Context, productID uuid.UUID, offset, limit int) (int64, []models.Review, error) {
	total, reviews, err := s.Store.ListReviews(ctx, productID, offset, limit)
	return total, reviews, storeErr("list reviews", err)
}

func (s *CatalogService) index(ctx context.Context, prod *models.Product) {
	if s.Index == nil {
		return
	}
	if err := s.Index.IndexProduct(ctx, prod); err != nil {
		logging.FromContext(ctx).Error("index_product_error", "product_id", prod.ID, "error", err)
	}
}
