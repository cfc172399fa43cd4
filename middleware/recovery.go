package middleware

import (
	"context"

	"go.uber.org/zap"

	"linkrpc/message"
)

// Recovery converts a handler panic into a handler-error response. Handler
// failures are data for the dispatcher: one bad request must never take down
// the process or the connection.
func Recovery(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Message) (resp *message.Message) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("handler panicked",
						zap.String("method", req.Method),
						zap.Any("panic", r),
						zap.Stack("stack"))
					resp = message.Errorf(message.CodeHandler, "handler panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}
