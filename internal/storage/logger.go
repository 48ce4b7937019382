package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bnema/tranquilize/internal/logging"
)

const slowQueryThreshold = time.Second

// GormLogger routes gorm's logging into zap
type GormLogger struct {
	log      *zap.Logger
	LogLevel logger.LogLevel
}

// NewGormLogger creates a gorm logger that only reports warnings and errors
func NewGormLogger(l *zap.Logger) *GormLogger {
	l = logging.OrNop(l)
	return &GormLogger{
		log:      l.Named("sqlite"),
		LogLevel: logger.Warn,
	}
}

// LogMode sets the log level
func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

// Info prints info level messages
func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Info {
		l.log.Sugar().Infof(msg, data...)
	}
}

// Warn prints warn level messages
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Warn {
		l.log.Sugar().Warnf(msg, data...)
	}
}

// Error prints error level messages
func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Error {
		l.log.Sugar().Errorf(msg, data...)
	}
}

// Trace prints SQL statements
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.LogLevel >= logger.Error:
		l.log.Error("sql failed", append(fields, zap.Error(err))...)
	case elapsed > slowQueryThreshold && l.LogLevel >= logger.Warn:
		l.log.Warn("slow sql", append(fields, zap.String("threshold", fmt.Sprint(slowQueryThreshold)))...)
	case l.LogLevel == logger.Info:
		l.log.Debug("sql", fields...)
	}
}
