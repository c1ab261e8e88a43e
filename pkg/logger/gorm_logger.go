// File: pkg/logger/gorm_logger.go
package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger 는 gorm 의 logger.Interface 를 zap 으로 구현합니다.
type GormLogger struct {
	logger *zap.Logger
	// LogLevel 기록할 최소 레벨 (Silent, Error, Warn, Info)
	LogLevel gormlogger.LogLevel
	// SlowThreshold 이 시간을 넘는 쿼리는 Warn 으로 기록합니다. 0 이면 사용하지 않습니다.
	SlowThreshold time.Duration
	// IgnoreRecordNotFoundError true 이면 gorm.ErrRecordNotFound 는 에러로 기록하지 않습니다.
	IgnoreRecordNotFoundError bool
}

// NewGormLogger 는 zap 로거를 사용하는 gorm 로거를 생성합니다.
func NewGormLogger(logger *zap.Logger, level gormlogger.LogLevel, slowThreshold time.Duration, ignoreRecordNotFound bool) *GormLogger {
	return &GormLogger{
		logger:                    logger.With(zap.String("component", "gorm")),
		LogLevel:                  level,
		SlowThreshold:             slowThreshold,
		IgnoreRecordNotFoundError: ignoreRecordNotFound,
	}
}

// LogMode 는 레벨만 바꾼 복사본을 반환합니다.
func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *g
	clone.LogLevel = level
	return &clone
}

func (g *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if g.LogLevel >= gormlogger.Info {
		g.logger.Sugar().Infof(msg, data...)
	}
}

func (g *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if g.LogLevel >= gormlogger.Warn {
		g.logger.Sugar().Warnf(msg, data...)
	}
}

func (g *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if g.LogLevel >= gormlogger.Error {
		g.logger.Sugar().Errorf(msg, data...)
	}
}

// Trace 는 쿼리마다 호출되며 에러, slow query, 일반 쿼리 순으로 판단합니다.
func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	switch {
	case err != nil && g.LogLevel >= gormlogger.Error &&
		!(g.IgnoreRecordNotFoundError && errors.Is(err, gorm.ErrRecordNotFound)):
		g.logger.Error("GORM query error", append(fields, zap.Error(err))...)
	case g.SlowThreshold != 0 && elapsed > g.SlowThreshold && g.LogLevel >= gormlogger.Warn:
		g.logger.Warn("GORM slow query", append(fields, zap.Duration("threshold", g.SlowThreshold))...)
	case g.LogLevel >= gormlogger.Info:
		g.logger.Debug("GORM query", fields...)
	}
}
