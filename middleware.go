package commandry

import (
	"context"
	"log/slog"
	"time"
)

// Middleware wraps a function's handler with cross-cutting behavior
// (logging, recovery). The Function is the unwrapped descriptor, for
// metadata access.
type Middleware func(fn *Function, next Handler) Handler

// WithLogging returns a middleware that logs start, end, duration, and
// errors of every dispatch.
func WithLogging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(fn *Function, next Handler) Handler {
		return func(ctx context.Context, args Args) (any, error) {
			logger.Info("function start", "function", fn.Name())
			start := time.Now()
			out, err := next(ctx, args)
			dur := time.Since(start)
			if err != nil {
				logger.Error("function error", "function", fn.Name(), "duration", dur, "error", err)
				return nil, err
			}
			logger.Info("function end", "function", fn.Name(), "duration", dur)
			return out, nil
		}
	}
}

// WithRecovery returns a middleware that recovers handler panics and
// returns them as errors. Redundant when the registry's own recovery is
// on; useful when that is disabled but individual functions still need a
// safety net.
func WithRecovery() Middleware {
	return func(fn *Function, next Handler) Handler {
		return func(ctx context.Context, args Args) (out any, err error) {
			defer func() {
				if p := recover(); p != nil {
					out = nil
					err = &panicError{p: p}
				}
			}()
			return next(ctx, args)
		}
	}
}
