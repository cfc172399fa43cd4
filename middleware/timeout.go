package middleware

import (
	"context"
	"time"

	"linkrpc/message"
)

// Timeout bounds a single dispatch. A handler that never returns still gets
// answered: the caller receives a timeout error envelope and the abandoned
// goroutine's late result is dropped (the done channel is buffered).
func Timeout(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Message) *message.Message {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *message.Message, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				return message.Errorf(message.CodeTimeout, "request timed out after %s", timeout)
			}
		}
	}
}
