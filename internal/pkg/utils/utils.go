// nolint: revive
package utils

import (
	"context"
	"time"
)

// CtxDone checks if context is done
func CtxDone(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return nil
}

// Provider - value provider for type T
type Provider[T any] func(ctx context.Context) T

// Const - constant value provider
func Const[T any](v T) Provider[T] {
	return func(_ context.Context) T {
		return v
	}
}

// WithTimeout derives a ctx bounded by the provided timeout. Non-positive timeouts leave ctx unbounded.
func WithTimeout(ctx context.Context, timeout Provider[time.Duration]) (context.Context, context.CancelFunc) {
	if d := timeout(ctx); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
