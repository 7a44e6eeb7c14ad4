package database

import (
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// zapWriter 把 GORM 日志转发到 zap，统一进入日志文件。
type zapWriter struct {
	log *zap.SugaredLogger
}

func (w zapWriter) Printf(format string, args ...any) {
	w.log.Warnf(format, args...)
}

// newGormLogger 只输出慢查询与真正的错误，查询未命中属于正常分支，不记录。
func newGormLogger(log *zap.SugaredLogger) gormlogger.Interface {
	return gormlogger.New(zapWriter{log: log}, gormlogger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
