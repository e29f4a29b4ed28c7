package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// GormLoggerConfig configures the GORM zap logger.
type GormLoggerConfig struct {
	Level                gormlogger.LogLevel
	SlowThreshold        time.Duration
	IgnoreRecordNotFound bool
	// LogParams keeps bound values in logged SQL. Subscriber references are
	// personal data, so this stays off outside local debugging.
	LogParams bool
}

// DefaultGormLoggerConfig warns on statements slower than the usage hot path
// tolerates.
func DefaultGormLoggerConfig() GormLoggerConfig {
	return GormLoggerConfig{
		Level:                gormlogger.Warn,
		SlowThreshold:        200 * time.Millisecond,
		IgnoreRecordNotFound: true,
	}
}

// GormLogger routes GORM output through the request-scoped zap logger.
type GormLogger struct {
	cfg GormLoggerConfig
}

func NewGormLogger(cfg GormLoggerConfig) *GormLogger {
	return &GormLogger{cfg: cfg}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.cfg.Level = level
	return &next
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) message(ctx context.Context, min gormlogger.LogLevel, level zapcore.Level, msg string, data []interface{}) {
	if l.cfg.Level < min {
		return
	}
	fields := []zap.Field{zap.String("component", "gorm")}
	if len(data) > 0 {
		fields = append(fields, zap.Any("data", data))
	}
	if ce := FromContext(ctx).Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}

// Trace logs failed statements at error, slow ones at warn and the rest at
// debug when the level allows it.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	var level zapcore.Level
	switch {
	case err != nil && l.cfg.Level >= gormlogger.Error && !(l.cfg.IgnoreRecordNotFound && errors.Is(err, gormlogger.ErrRecordNotFound)):
		level = zapcore.ErrorLevel
	case l.cfg.SlowThreshold != 0 && elapsed > l.cfg.SlowThreshold && l.cfg.Level >= gormlogger.Warn:
		level = zapcore.WarnLevel
		err = nil
	case l.cfg.Level >= gormlogger.Info:
		level = zapcore.DebugLevel
		err = nil
	default:
		return
	}

	ce := FromContext(ctx).Check(level, "gorm.query")
	if ce == nil {
		return
	}
	sql, rows := fc()
	fields := []zap.Field{
		zap.String("component", "gorm"),
		zap.String("sql", strings.TrimSpace(sql)),
		zap.String("operation", operationFromSQL(sql)),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}

// ParamsFilter strips bound values unless LogParams is set.
func (l *GormLogger) ParamsFilter(ctx context.Context, sql string, params ...interface{}) (string, []interface{}) {
	_ = ctx
	if l.cfg.LogParams {
		return sql, params
	}
	return sql, nil
}

func operationFromSQL(sql string) string {
	for _, token := range strings.Fields(strings.ToUpper(sql)) {
		switch token = strings.Trim(token, "();"); token {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			return token
		}
	}
	return "UNKNOWN"
}

var _ gormlogger.Interface = (*GormLogger)(nil)
