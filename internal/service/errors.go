package service

import (
	"errors"
	"fmt"

	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/pkg/session"
)

var (
	ErrInsufficientStock = repo.ErrInsufficientStock
	ErrProductNotFound   = repo.ErrProductNotFound
	ErrCartItemNotFound  = repo.ErrCartItemNotFound
	ErrOrderNotFound     = repo.ErrOrderNotFound
	ErrReviewNotFound    = repo.ErrReviewNotFound
	ErrInvalidTransition = repo.ErrInvalidTransition
	ErrConflict          = repo.ErrConflict

	ErrInvalidQuantity    = errors.New("quantity must be greater than zero")
	ErrValidation         = errors.New("validation")
	ErrForbidden          = errors.New("forbidden")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrPersistence        = errors.New("persistence failure")
	ErrUnknown            = errors.New("unknown error")
)

// StockError carries the product and quantities of a rejected request.
type StockError = repo.StockError

const (
	KindNotLoggedIn        = "not_logged_in"
	KindSessionExpired     = "session_expired"
	KindForbidden          = "forbidden"
	KindInvalidQuantity    = "invalid_quantity"
	KindValidation         = "validation"
	KindInsufficientStock  = "insufficient_stock"
	KindProductNotFound    = "product_not_found"
	KindCartItemNotFound   = "cart_item_not_found"
	KindOrderNotFound      = "order_not_found"
	KindReviewNotFound     = "review_not_found"
	KindInvalidTransition  = "invalid_transition"
	KindConflict           = "conflict"
	KindCheckoutInProgress = "checkout_in_progress"
	KindPersistence        = "persistence"
	KindUnknown            = "unknown"
)

var kinds = []struct {
	err  error
	kind string
}{
	{session.ErrNotLoggedIn, KindNotLoggedIn},
	{session.ErrSessionExpired, KindSessionExpired},
	{ErrForbidden, KindForbidden},
	{ErrInvalidQuantity, KindInvalidQuantity},
	{ErrValidation, KindValidation},
	{ErrInsufficientStock, KindInsufficientStock},
	{ErrProductNotFound, KindProductNotFound},
	{ErrCartItemNotFound, KindCartItemNotFound},
	{ErrOrderNotFound, KindOrderNotFound},
	{ErrReviewNotFound, KindReviewNotFound},
	{ErrInvalidTransition, KindInvalidTransition},
	{ErrConflict, KindConflict},
	{ErrCheckoutInProgress, KindCheckoutInProgress},
	{ErrPersistence, KindPersistence},
}

// Kind maps err onto a stable code. It returns "" for nil.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// storeErr keeps domain errors as they are and marks everything else coming
// out of a store as a persistence failure.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != KindUnknown {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
