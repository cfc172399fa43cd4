package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"linkrpc/message"
)

// Logging records method, duration, and outcome of every dispatch.
func Logging(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Message) *message.Message {
			start := time.Now()
			resp := next(ctx, req)
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.Duration("duration", time.Since(start)),
			}
			if resp.Status != nil {
				fields = append(fields,
					zap.String("code", resp.Status.Code.String()),
					zap.String("error", resp.Status.Message))
				logger.Warn("rpc failed", fields...)
			} else {
				logger.Info("rpc served", fields...)
			}
			return resp
		}
	}
}
