// Package logger wraps zap for the services and commands of pharmastock.
//
// Commands build a Logger with New and install it with SetDefault. Domain and
// storage code logs through the package-level helpers, which tag every entry
// with the request trace and the operator found in the context.
package logger

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appctx "pharmastock/internal/core/context"
)

// Logger is a sugared zap logger.
type Logger struct {
	*zap.SugaredLogger
}

// Config selects the level and the encoder.
type Config struct {
	Level       string // debug, info, warn, error; anything else means info
	Development bool   // colored console output instead of JSON
}

// New builds a Logger writing to stderr.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	// Skip the package-level helpers so callers show up in the caller field.
	z, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &Logger{z.Sugar()}, nil
}

var current atomic.Pointer[Logger]

// SetDefault installs l as the logger behind the package-level helpers.
func SetDefault(l *Logger) {
	current.Store(l)
}

// Default returns the installed logger. Before SetDefault it is a no-op logger.
func Default() *Logger {
	if l := current.Load(); l != nil {
		return l
	}
	return &Logger{zap.NewNop().Sugar()}
}

// WithContext tags entries with the trace and operator carried by ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	s := l.SugaredLogger
	if tr := appctx.GetTrace(ctx); tr != nil {
		s = s.With("trace_id", tr.TraceID, "request_id", tr.RequestID)
	}
	if u := appctx.GetUser(ctx); u != nil {
		s = s.With("user_id", u.UserID)
	}
	return &Logger{s}
}

// WithComponent names the subsystem that owns the entries.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{l.SugaredLogger.With("component", name)}
}

func Debug(ctx context.Context, msg string, keysAndValues ...any) {
	Default().WithContext(ctx).Debugw(msg, keysAndValues...)
}

func Info(ctx context.Context, msg string, keysAndValues ...any) {
	Default().WithContext(ctx).Infow(msg, keysAndValues...)
}

func Warn(ctx context.Context, msg string, keysAndValues ...any) {
	Default().WithContext(ctx).Warnw(msg, keysAndValues...)
}

func Error(ctx context.Context, msg string, keysAndValues ...any) {
	Default().WithContext(ctx).Errorw(msg, keysAndValues...)
}
