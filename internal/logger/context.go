package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a logger from the context.
// Returns zap.NewNop() if no logger is found.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// With derives a child logger carrying fields and stores it in the returned context.
// When ctx has no logger, base is used as the parent.
func With(ctx context.Context, base *zap.Logger, fields ...zap.Field) (context.Context, *zap.Logger) {
	parent := base
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		parent = l
	}
	if parent == nil {
		parent = zap.NewNop()
	}
	child := parent.With(fields...)
	return ContextWithLogger(ctx, child), child
}
