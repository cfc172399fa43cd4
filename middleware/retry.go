package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"linkrpc/message"
)

// Retry re-invokes the next handler on transient failures (timeouts,
// transport errors) with exponential backoff. Application errors are final
// and returned immediately.
func Retry(maxRetries int, baseDelay time.Duration, logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Message) *message.Message {
			resp := next(ctx, req)
			for i := 0; i < maxRetries; i++ {
				if resp.Status == nil {
					return resp
				}
				if !retryable(resp.Status.Code) {
					return resp
				}
				logger.Info("retrying request",
					zap.String("method", req.Method),
					zap.Int("attempt", i+1),
					zap.String("code", resp.Status.Code.String()))
				time.Sleep(baseDelay * time.Duration(1<<i))
				resp = next(ctx, req)
			}
			return resp
		}
	}
}

func retryable(code message.Code) bool {
	return code == message.CodeTimeout || code == message.CodeTransport
}
