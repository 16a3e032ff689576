package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestIsPostgres(t *testing.T) {
	assert.True(t, IsPostgres("postgres://u:p@localhost:5432/shop?sslmode=disable"))
	assert.True(t, IsPostgres("postgresql://localhost/shop"))
	assert.True(t, IsPostgres("host=localhost user=postgres dbname=shop"))
	assert.False(t, IsPostgres("file:storefront.db"))
	assert.False(t, IsPostgres("file:test?mode=memory&cache=shared"))
}

func TestSqliteDSN_AddsPragmas(t *testing.T) {
	assert.Equal(t, "file:a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("file:a.db"))
	assert.Equal(t, "file:a?mode=memory&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("file:a?mode=memory"))
	assert.Equal(t, "file:a?_pragma=journal_mode(WAL)", sqliteDSN("file:a?_pragma=journal_mode(WAL)"))
}

func TestOpen(t *testing.T) {
	_, err := Open(context.Background(), "")
	require.Error(t, err)

	db, err := Open(context.Background(), "file:open_test?mode=memory&cache=shared")
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	require.NoError(t, sqlDB.Close())
}

func TestQueryLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.IntoContext(context.Background(), logging.NewWithWriter(&buf, "debug"))
	q := newQueryLogger()
	fc := func() (string, int64) { return "SELECT 1", 0 }

	q.Trace(ctx, time.Now(), fc, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String(), "missing rows are not logged")

	q.Trace(ctx, time.Now(), fc, nil)
	assert.Empty(t, buf.String(), "fast queries stay quiet at warn level")

	q.Trace(ctx, time.Now(), fc, errors.New("syntax error"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "db_query_error", entry["msg"])
	assert.Equal(t, "SELECT 1", entry["sql"])

	buf.Reset()
	q.Trace(ctx, time.Now().Add(-time.Second), fc, nil)
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	assert.Equal(t, "db_slow_query", entry["msg"])

	buf.Reset()
	q.LogMode(logger.Silent).Trace(ctx, time.Now(), fc, errors.New("boom"))
	assert.Empty(t, buf.String())
}

func TestOpen_MissingRowIsSilent(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.IntoContext(context.Background(), logging.NewWithWriter(&buf, "debug"))

	db, err := Open(ctx, "file:missing_row_test?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	type row struct{ ID int }
	require.NoError(t, db.WithContext(ctx).AutoMigrate(&row{}))
	err = db.WithContext(ctx).Take(&row{}, 1).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())
}
