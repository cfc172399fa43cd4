package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"linkrpc/message"
)

// RateLimit rejects dispatches above a token-bucket rate. r is the steady
// refill rate per second, burst the bucket size.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Message) *message.Message {
			if !limiter.Allow() {
				return message.Errorf(message.CodeRateLimited, "rate limit exceeded")
			}
			return next(ctx, req)
		}
	}
}
