package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// slowQueryThreshold is the duration above which a query is logged at warn level.
const slowQueryThreshold = 500 * time.Millisecond

// maxSQLLength bounds SQL text in log lines.
const maxSQLLength = 200

// slogGormLogger routes GORM's logging to the default slog logger. Queries
// are logged at debug level, slow queries at warn level and failures at error
// level. gorm.ErrRecordNotFound is a normal result and never logged as an error.
type slogGormLogger struct {
	slow time.Duration
}

func newSlogGormLogger() slogGormLogger {
	return slogGormLogger{slow: slowQueryThreshold}
}

// LogMode is a no-op; slog decides what is emitted.
func (l slogGormLogger) LogMode(logger.LogLevel) logger.Interface { return l }

// Info logs informational messages from GORM.
func (l slogGormLogger) Info(ctx context.Context, msg string, args ...any) {
	slog.InfoContext(ctx, fmt.Sprintf(msg, args...))
}

// Warn logs warnings from GORM.
func (l slogGormLogger) Warn(ctx context.Context, msg string, args ...any) {
	slog.WarnContext(ctx, fmt.Sprintf(msg, args...))
}

// Error logs errors from GORM.
func (l slogGormLogger) Error(ctx context.Context, msg string, args ...any) {
	slog.ErrorContext(ctx, fmt.Sprintf(msg, args...))
}

// Trace is called by GORM after every statement.
func (l slogGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		slog.ErrorContext(ctx, "sql error", "sql", truncateSQL(sql), "rows", rows, "duration", elapsed, "error", err)
	case l.slow > 0 && elapsed > l.slow:
		sql, rows := fc()
		slog.WarnContext(ctx, "slow sql", "sql", truncateSQL(sql), "rows", rows, "duration", elapsed)
	case slog.Default().Enabled(ctx, slog.LevelDebug):
		sql, rows := fc()
		slog.DebugContext(ctx, "sql", "sql", truncateSQL(sql), "rows", rows, "duration", elapsed)
	}
}

func truncateSQL(sql string) string {
	if len(sql) <= maxSQLLength {
		return sql
	}
	half := (maxSQLLength - 3) / 2
	return sql[:half] + "..." + sql[len(sql)-half:]
}
