package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/storefront/pkg/logging"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQuery = 200 * time.Millisecond

// queryLogger routes gorm output through the slog logger carried by the
// query's context. Missing rows are an expected outcome and are not logged.
type queryLogger struct {
	level logger.LogLevel
	slow  time.Duration
}

func newQueryLogger() *queryLogger {
	return &queryLogger{level: logger.Warn, slow: slowQuery}
}

func (q *queryLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *q
	cp.level = level
	return &cp
}

func (q *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	if q.level >= logger.Info {
		logging.FromContext(ctx).Info("db_info", "message", fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	if q.level >= logger.Warn {
		logging.FromContext(ctx).Warn("db_warn", "message", fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	if q.level >= logger.Error {
		logging.FromContext(ctx).Error("db_error", "message", fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && q.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		logging.FromContext(ctx).Error("db_query_error", "sql", sql, "rows", rows, "elapsed", elapsed, "error", err)
	case q.slow > 0 && elapsed > q.slow && q.level >= logger.Warn:
		sql, rows := fc()
		logging.FromContext(ctx).Warn("db_slow_query", "sql", sql, "rows", rows, "elapsed", elapsed)
	case q.level >= logger.Info:
		sql, rows := fc()
		logging.FromContext(ctx).Debug("db_query", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
