// Package logger is the process wide structured logger of the item service. It wraps zap
// so callers never hold a *zap.Logger of their own. The level is shared by every logger
// built with New, and can be changed at runtime with SetLevel.
package logger

import (
	"context"
	"fmt"

	"github.com/naughtygopher/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ContextFields func(ctx context.Context) []zap.Field

var (
	level               = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logHandler          *zap.Logger
	contextFieldsSetter ContextFields
)

func init() { //nolint:gochecknoinits // it is essential for this package
	logHandler, _ = New(false)
	zap.ReplaceGlobals(logHandler)
}

// New builds a JSON logger, or a human friendly console logger if development is true.
func New(development bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = level

	zl, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, errors.Wrap(err, "failed building logger")
	}
	return zl, nil
}

// SetLevel changes the minimum level of all loggers built with New, e.g. "debug", "warn".
func SetLevel(lvl string) error {
	parsed, err := zapcore.ParseLevel(lvl)
	if err != nil {
		return errors.InputBodyf("invalid log level '%s'", lvl)
	}
	level.SetLevel(parsed)
	return nil
}

func Level() zapcore.Level {
	return level.Level()
}

// SetGlobal overwrites the Global logHandler used in this package
func SetGlobal(zl *zap.Logger) {
	logHandler = zl
}

// Sync flushes any buffered log entries, call it right before exiting.
func Sync() {
	_ = logHandler.Sync()
}

// SetContextFieldsSetter registers fn to extract fields (e.g. trace ID) from the context of every *Ctx call
func SetContextFieldsSetter(fn ContextFields) {
	contextFieldsSetter = fn
}

// ErrWithStacktrace logs an error with its stacktrace if available
func ErrWithStacktrace(err error) {
	logHandler.Error(fmt.Sprintf("%+v", err))
}

func Info(msg string, fields ...zap.Field) {
	logHandler.Info(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	logHandler.Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	logHandler.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	logHandler.Error(msg, fields...)
}

// Fatal logs and then exits with os.Exit(1)
func Fatal(msg string, fields ...zap.Field) {
	logHandler.Fatal(msg, fields...)
}

func withContext(ctx context.Context, fields []zap.Field) []zap.Field {
	if contextFieldsSetter == nil || ctx == nil {
		return fields
	}
	return append(fields, contextFieldsSetter(ctx)...)
}

func InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	logHandler.Info(msg, withContext(ctx, fields)...)
}

func DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	logHandler.Debug(msg, withContext(ctx, fields)...)
}

func WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	logHandler.Warn(msg, withContext(ctx, fields)...)
}

func ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	logHandler.Error(msg, withContext(ctx, fields)...)
}

func FatalCtx(ctx context.Context, msg string, fields ...zap.Field) {
	logHandler.Fatal(msg, withContext(ctx, fields)...)
}
