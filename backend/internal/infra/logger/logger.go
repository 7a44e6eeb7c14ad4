/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-09 17:53:57
 * @FilePath: \iqupdate\backend\internal\infra\logger\logger.go
 * @LastEditTime: 2025-10-19 22:16:45
 */
package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// disabledFile 作为 LOG_FILE 的取值时关闭文件输出，只保留控制台。
const disabledFile = "-"

var (
	// globalLogger 缓存全局 zap.Logger，避免在业务代码里重复创建实例。
	globalLogger *zap.Logger
	// once 确保初始化逻辑只执行一次。
	once sync.Once
	mu   sync.RWMutex
)

// Options 描述日志初始化时可配置的参数。
type Options struct {
	Level      string
	Encoding   string
	FilePath   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// Init 初始化全局日志记录器，多次调用只构建一次。
// 初始化失败时返回错误，由调用方决定降级还是退出。
func Init() (*zap.Logger, error) {
	var initErr error
	once.Do(func() {
		logger, err := buildLogger(loadOptionsFromEnv())
		if err != nil {
			initErr = err
			return
		}
		mu.Lock()
		globalLogger = logger
		mu.Unlock()
	})

	if initErr != nil {
		return nil, initErr
	}

	mu.RLock()
	defer mu.RUnlock()
	if globalLogger == nil {
		return nil, errors.New("logger not initialized")
	}
	return globalLogger, nil
}

// L 返回全局 zap.Logger，尚未初始化时自动初始化。
func L() *zap.Logger {
	mu.RLock()
	current := globalLogger
	mu.RUnlock()
	if current != nil {
		return current
	}

	logger, err := Init()
	if err != nil {
		panic(fmt.Sprintf("logger init failed: %v", err))
	}
	return logger
}

// S 返回 SugaredLogger，handler/service 中常用 `Infow/Errorw` 输出键值日志。
func S() *zap.SugaredLogger {
	return L().Sugar()
}

// Replace 用指定 logger 替换全局实例，返回恢复函数。测试中可传入 zap.NewNop()。
func Replace(l *zap.Logger) func() {
	once.Do(func() {})
	mu.Lock()
	previous := globalLogger
	globalLogger = l
	mu.Unlock()
	return func() {
		mu.Lock()
		globalLogger = previous
		mu.Unlock()
	}
}

// Sync 刷新缓冲区，通常在进程退出前调用。
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}

// loadOptionsFromEnv 从环境变量解析日志配置，缺失时回退到默认值。
func loadOptionsFromEnv() Options {
	opts := Options{
		Level:      strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),
		Encoding:   strings.ToLower(strings.TrimSpace(os.Getenv("LOG_ENCODING"))),
		FilePath:   strings.TrimSpace(os.Getenv("LOG_FILE")),
		MaxSize:    20,
		MaxBackups: 5,
		MaxAge:     15,
		Compress:   true,
	}

	if opts.Level == "" {
		opts.Level = "info"
	}
	if opts.Encoding == "" {
		opts.Encoding = "json"
	}
	switch opts.FilePath {
	case "":
		opts.FilePath = filepath.Join("logs", "iqupdate.log")
	case disabledFile:
		opts.FilePath = ""
	}

	if parsed, ok := positiveIntEnv("LOG_MAX_SIZE"); ok {
		opts.MaxSize = parsed
	}
	if parsed, ok := positiveIntEnv("LOG_MAX_BACKUPS"); ok {
		opts.MaxBackups = parsed
	}
	if parsed, ok := positiveIntEnv("LOG_MAX_AGE"); ok {
		opts.MaxAge = parsed
	}
	if val := strings.TrimSpace(os.Getenv("LOG_COMPRESS")); val != "" {
		opts.Compress = val == "1" || strings.EqualFold(val, "true")
	}

	return opts
}

// buildLogger 根据 Options 构建 zap.Logger：控制台彩色输出始终开启，
// FilePath 非空时追加带滚动策略的文件输出。
func buildLogger(opts Options) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(opts.Level); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeDuration = zapcore.StringDurationEncoder

	cores := []zapcore.Core{}

	if opts.FilePath != "" {
		if err := ensureDir(filepath.Dir(opts.FilePath)); err != nil {
			return nil, fmt.Errorf("logger create dir: %w", err)
		}
		writer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAge,
			Compress:   opts.Compress,
		})

		var fileEncoder zapcore.Encoder
		if opts.Encoding == "console" {
			fileEncoder = zapcore.NewConsoleEncoder(encoderCfg)
		} else {
			fileEncoder = zapcore.NewJSONEncoder(encoderCfg)
		}
		cores = append(cores, zapcore.NewCore(fileEncoder, writer, lvl))
	}

	consoleEncoderCfg := encoderCfg
	consoleEncoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cores = append(cores, zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEncoderCfg),
		zapcore.AddSync(os.Stdout),
		lvl,
	))

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).
		With(zap.String("service", "iqupdate"))
	return logger, nil
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// positiveIntEnv 读取大于 0 的整数环境变量，非法值直接忽略。
func positiveIntEnv(key string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, false
	}
	return parsed, true
}
