// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/pkg/db"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const PostgresDSNEnv = "STOREFRONT_TEST_DATABASE_URL"

// NewDB returns a migrated in-memory sqlite database private to t.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	return open(t, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
}

// NewPostgresDB returns a migrated postgres database or skips t when
// STOREFRONT_TEST_DATABASE_URL is unset.
func NewPostgresDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}
	return open(t, dsn)
}

func open(t testing.TB, dsn string) *gorm.DB {
	gdb, err := db.Open(context.Background(), dsn)
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(context.Background(), gdb))

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func SeedProduct(t testing.TB, gdb *gorm.DB, name, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:        name,
		Description: name + " description",
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
	}
	require.NoError(t, gdb.Create(p).Error)
	return p
}

func Stock(t testing.TB, gdb *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, gdb.Where("id = ?", productID).First(&p).Error)
	return p.Stock
}
