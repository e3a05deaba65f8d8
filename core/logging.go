package core

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggerKey struct{}

var (
	baseLogger *zap.Logger
	baseLevel  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	loggerMu   sync.Mutex
)

// InitLogger builds the process logger. format is "json" or "console".
func InitLogger(level, format string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	baseLevel.SetLevel(lvl)
	cfg.Level = baseLevel

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}

	loggerMu.Lock()
	baseLogger = logger
	loggerMu.Unlock()
	return nil
}

// SetLogger replaces the process logger. Mostly useful in tests.
func SetLogger(logger *zap.Logger) {
	loggerMu.Lock()
	baseLogger = logger
	loggerMu.Unlock()
}

// SyncLogger flushes buffered entries
func SyncLogger() {
	if l := root(); l != nil {
		_ = l.Sync()
	}
}

func root() *zap.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if baseLogger == nil {
		baseLogger, _ = zap.NewProduction(zap.AddCallerSkip(1))
	}
	return baseLogger
}

// WithDefaultLogger attaches a logger tagged with reqId to the context
func WithDefaultLogger(parent context.Context, reqId string) context.Context {
	return context.WithValue(parent, loggerKey{}, root().Sugar().With("req_id", reqId))
}

func logger(ctx context.Context) *zap.SugaredLogger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*zap.SugaredLogger); ok {
			return l
		}
	}
	return root().Sugar()
}

func Infof(ctx context.Context, tpl string, args ...any) {
	logger(ctx).Infof(tpl, args...)
}

func Warnf(ctx context.Context, tpl string, args ...any) {
	logger(ctx).Warnf(tpl, args...)
}

func Errorf(ctx context.Context, tpl string, args ...any) {
	logger(ctx).Errorf(tpl, args...)
}

func Debugf(ctx context.Context, tpl string, args ...any) {
	logger(ctx).Debugf(tpl, args...)
}
