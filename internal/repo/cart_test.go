package repo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddToCart_MergesQuantity(t *testing.T) {
	t.Parallel()
	gdb := testutil.NewDB(t)
	r := repo.New(gdb)
	ctx := context.Background()
	user := uuid.New()
	p := testutil.SeedProduct(t, gdb, "mug", "19.99", 5)

	_, err := r.AddToCart(ctx, user, p.ID, 2)
	require.NoError(t, err)
	item, err := r.AddToCart(ctx, user, p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)
	assert.True(t, decimal.RequireFromString("19.99").Equal(item.UnitPrice))

	lines, err := r.CartLines(ctx, user)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.Equal(t, "mug", lines[0].ProductName)
	assert.Equal(t, 5, lines[0].Stock)

	assert.Equal(t, 5, testutil.Stock(t, gdb, p.ID), "adding to cart must not touch inventory")
}

func TestAddToCart_RejectsMergedQuantityOverStock(t *testing.T) {
	t.Parallel()
	gdb := testutil.NewDB(t)
	r := repo.New(gdb)
	ctx := context.Background()
	user := uuid.New()
	p := testutil.SeedProduct(t, gdb, "lamp", "10", 5)

	_, err := r.AddToCart(ctx, user, p.ID, 3)
	require.NoError(t, err)

	_, err = r.AddToCart(ctx, user, p.ID, 3)
	require.ErrorIs(t, err, repo.ErrInsufficientStock)

	var se *repo.StockError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 6, se.Requested)
	assert.Equal(t, 5, se.Available)

	lines, err := r.CartLines(ctx, user)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity, "rejected add must leave the line untouched")
}

func TestAddToCart_UnknownProduct(t *testing.T) {
	t.Parallel()
	r := repo.New(testutil.NewDB(t))

	_, err := r.AddToCart(context.Background(), uuid.New(), uuid.New(), 1)
	require.ErrorIs(t, err, repo.ErrProductNotFound)
}

func TestUpdateQuantity(t *testing.T) {
	t.Parallel()
	gdb := testutil.NewDB(t)
	r := repo.New(gdb)
	ctx := context.Background()
	user := uuid.New()
	p := testutil.SeedProduct(t, gdb, "pen", "1.50", 4)

	item, err := r.AddToCart(ctx, user, p.ID, 1)
	require.NoError(t, err)

	updated, err := r.UpdateQuantity(ctx, user, item.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)

	_, err = r.UpdateQuantity(ctx, user, item.ID, 5)
	require.ErrorIs(t, err, repo.ErrInsufficientStock)

	_, err = r.UpdateQuantity(ctx, uuid.New(), item.ID, 1)
	require.ErrorIs(t, err, repo.ErrCartItemNotFound, "other users' lines are invisible")
}

func TestRemoveItemAndClearCart(t *testing.T) {
	t.Parallel()
	gdb := testutil.NewDB(t)
	r := repo.New(gdb)
	ctx := context.Background()
	user := uuid.New()
	a := testutil.SeedProduct(t, gdb, "a", "1", 10)
	b := testutil.SeedProduct(t, gdb, "b", "2", 10)

	itemA, err := r.AddToCart(ctx, user, a.ID, 1)
	require.NoError(t, err)
	_, err = r.AddToCart(ctx, user, b.ID, 1)
	require.NoError(t, err)

	_, err = r.RemoveItem(ctx, user, itemA.ID)
	require.NoError(t, err)
	_, err = r.RemoveItem(ctx, user, itemA.ID)
	require.ErrorIs(t, err, repo.ErrCartItemNotFound)

	lines, err := r.CartLines(ctx, user)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, b.ID, lines[0].ProductID)

	require.NoError(t, r.ClearCart(ctx, user))
	lines, err = r.CartLines(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestCartLines_OrderedByInsertion(t *testing.T) {
	t.Parallel()
	gdb := testutil.NewDB(t)
	r := repo.New(gdb)
	ctx := context.Background()
	user := uuid.New()

	names := []string{"first", "second", "third"}
	for _, n := range names {
		p := testutil.SeedProduct(t, gdb, n, "1", 10)
		_, err := r.AddToCart(ctx, user, p.ID, 1)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	lines, err := r.CartLines(ctx, user)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	for i, n := range names {
		assert.Equal(t, n, lines[i].ProductName)
	}
}

func TestRemovePurchased_KeepsLaterChanges(t *testing.T) {
	t.Parallel()
	gdb := testutil.NewDB(t)
	r := repo.New(gdb)
	ctx := context.Background()
	user := uuid.New()
	a := testutil.SeedProduct(t, gdb, "a", "1", 10)
	b := testutil.SeedProduct(t, gdb, "b", "2", 10)
	c := testutil.SeedProduct(t, gdb, "c", "3", 10)

	_, err := r.AddToCart(ctx, user, a.ID, 2)
	require.NoError(t, err)
	_, err = r.AddToCart(ctx, user, b.ID, 1)
	require.NoError(t, err)
	snapshot, err := r.CartLines(ctx, user)
	require.NoError(t, err)
	require.Len(t, snapshot, 2)

	_, err = r.AddToCart(ctx, user, a.ID, 3)
	require.NoError(t, err)
	_, err = r.AddToCart(ctx, user, c.ID, 4)
	require.NoError(t, err)

	require.NoError(t, r.RemovePurchased(ctx, user, snapshot))

	lines, err := r.CartLines(ctx, user)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, a.ID, lines[0].ProductID)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, c.ID, lines[1].ProductID)
	assert.Equal(t, 4, lines[1].Quantity)
}
