package tokenstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ambiyansyah-risyal/netguard"
)

const slowQueryThreshold = time.Second

// gormLogger routes gorm's logging into a netguard.Logger.
type gormLogger struct {
	log   netguard.Logger
	level logger.LogLevel
}

func newGormLogger(l netguard.Logger) *gormLogger {
	return &gormLogger{log: l, level: logger.Warn}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Info {
		l.log.Info(msg, "data", data)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Warn {
		l.log.Warn(msg, "data", data)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Error {
		l.log.Error(msg, "data", data)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []interface{}{"sql", sql, "rows", rows, "elapsed", elapsed}

	switch {
	case err != nil && l.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		l.log.Error("SQL failed", append(fields, "error", err.Error())...)
	case elapsed > slowQueryThreshold && l.level >= logger.Warn:
		l.log.Warn("Slow SQL", fields...)
	case l.level >= logger.Info:
		l.log.Debug("SQL", fields...)
	}
}
