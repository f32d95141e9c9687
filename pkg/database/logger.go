package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/weiawesome/wes-io-polls/pkg/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// zerologLogger routes gorm's SQL logging through the context logger so
// queries carry request and connection ids.
type zerologLogger struct {
	level         logger.LogLevel
	slowThreshold time.Duration
}

// NewLogger returns a gorm logger backed by pkg/log. level is one of
// silent, error, warn, info (default warn).
func NewLogger(level string, slowThreshold time.Duration) logger.Interface {
	if slowThreshold <= 0 {
		slowThreshold = 200 * time.Millisecond
	}
	return &zerologLogger{level: parseLogLevel(level), slowThreshold: slowThreshold}
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func (l *zerologLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *zerologLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Info {
		lg := log.Ctx(ctx)
		lg.Info().Msgf(msg, args...)
	}
}

func (l *zerologLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Warn {
		lg := log.Ctx(ctx)
		lg.Warn().Msgf(msg, args...)
	}
}

func (l *zerologLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Error {
		lg := log.Ctx(ctx)
		lg.Error().Msgf(msg, args...)
	}
}

func (l *zerologLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	lg := log.Ctx(ctx)

	switch {
	case err != nil && l.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		lg.Error().Err(err).Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("query failed")
	case elapsed > l.slowThreshold && l.level >= logger.Warn:
		sql, rows := fc()
		lg.Warn().Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("slow query")
	case l.level >= logger.Info:
		sql, rows := fc()
		lg.Debug().Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("query")
	}
}
