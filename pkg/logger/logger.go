// Package logger is the zap logger carried in request contexts.
package logger

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appctx "lotledger/internal/core/context"
)

// Logger is a sugared zap logger.
type Logger struct {
	*zap.SugaredLogger
}

type loggerKey struct{}

// Config selects level and encoding.
type Config struct {
	Level       string // debug, info, warn, error; info when unparsable
	Development bool   // colored console output
}

// New builds a Logger writing to stderr.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	z, err := zcfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return Wrap(z), nil
}

// Wrap adapts an existing zap logger, e.g. a zaptest observer core.
func Wrap(z *zap.Logger) *Logger {
	return &Logger{z.Sugar()}
}

var (
	defaultOnce   sync.Once
	defaultLogger *Logger
)

// Default is the JSON stdout logger used when a context carries none.
func Default() *Logger {
	defaultOnce.Do(func() {
		zcfg := zap.NewProductionConfig()
		zcfg.OutputPaths = []string{"stdout"}
		z, err := zcfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			z = zap.NewNop()
		}
		defaultLogger = Wrap(z)
	})
	return defaultLogger
}

// WithComponent tags every entry with a component name.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{l.SugaredLogger.With("component", name)}
}

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the context logger, or Default, annotated with the
// request trace and acting user.
func FromContext(ctx context.Context) *Logger {
	l, ok := ctx.Value(loggerKey{}).(*Logger)
	if !ok {
		l = Default()
	}

	sugar := l.SugaredLogger
	if tr := appctx.GetTrace(ctx); tr != nil {
		sugar = sugar.With("trace_id", tr.TraceID, "request_id", tr.RequestID)
	}
	if actor := appctx.GetActor(ctx); actor != nil {
		sugar = sugar.With("actor_id", actor.UserID)
		if actor.SessionID != "" {
			sugar = sugar.With("session_id", actor.SessionID)
		}
	}
	return &Logger{sugar}
}

func Debug(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Debugw(msg, keysAndValues...)
}

func Info(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Infow(msg, keysAndValues...)
}

func Warn(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Warnw(msg, keysAndValues...)
}

func Error(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Errorw(msg, keysAndValues...)
}
