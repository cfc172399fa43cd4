package middleware

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"linkrpc/message"
)

func echoHandler(ctx context.Context, req *message.Message) *message.Message {
	return &message.Message{
		Method:  req.Method,
		Payload: []byte("ok"),
	}
}

func slowHandler(ctx context.Context, req *message.Message) *message.Message {
	time.Sleep(200 * time.Millisecond)
	return &message.Message{
		Method:  req.Method,
		Payload: []byte("ok"),
	}
}

func TestLogging(t *testing.T) {
	handler := Logging(zap.NewNop())(echoHandler)

	req := &message.Message{Method: "Arith.Add"}
	resp := handler(context.Background(), req)

	if resp == nil {
		t.Fatal("expect non-nil response")
	}
	if string(resp.Payload) != "ok" {
		t.Fatalf("expect payload 'ok', got '%s'", string(resp.Payload))
	}
}

func TestTimeoutPass(t *testing.T) {
	handler := Timeout(500 * time.Millisecond)(echoHandler)

	req := &message.Message{Method: "Arith.Add"}
	resp := handler(context.Background(), req)

	if resp.Status != nil {
		t.Fatalf("expect no error, got '%s'", resp.Status.Message)
	}
}

func TestTimeoutExceeded(t *testing.T) {
	handler := Timeout(50 * time.Millisecond)(slowHandler)

	req := &message.Message{Method: "Arith.Add"}
	resp := handler(context.Background(), req)

	if resp.Status == nil || resp.Status.Code != message.CodeTimeout {
		t.Fatalf("expect timeout status, got %+v", resp.Status)
	}
}

func TestRateLimit(t *testing.T) {
	// rate=1/s, burst=2: the first two pass immediately, the third is rejected
	handler := RateLimit(1, 2)(echoHandler)
	req := &message.Message{Method: "Arith.Add"}

	for i := 0; i < 2; i++ {
		resp := handler(context.Background(), req)
		if resp.Status != nil {
			t.Fatalf("request %d should pass, got error: %s", i, resp.Status.Message)
		}
	}

	resp := handler(context.Background(), req)
	if resp.Status == nil || resp.Status.Code != message.CodeRateLimited {
		t.Fatalf("request 3 should be rate limited, got %+v", resp.Status)
	}
}

func TestRecovery(t *testing.T) {
	panicky := func(ctx context.Context, req *message.Message) *message.Message {
		panic("boom")
	}
	handler := Recovery(zap.NewNop())(panicky)

	req := &message.Message{Method: "Arith.Add"}
	resp := handler(context.Background(), req)

	if resp.Status == nil || resp.Status.Code != message.CodeHandler {
		t.Fatalf("expect handler-error status after panic, got %+v", resp.Status)
	}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	attempts := 0
	flaky := func(ctx context.Context, req *message.Message) *message.Message {
		attempts++
		if attempts < 3 {
			return message.Errorf(message.CodeTimeout, "request timed out")
		}
		return &message.Message{Method: req.Method, Payload: []byte("ok")}
	}
	handler := Retry(3, time.Millisecond, zap.NewNop())(flaky)

	resp := handler(context.Background(), &message.Message{Method: "Arith.Add"})
	if resp.Status != nil {
		t.Fatalf("expect success after retries, got %+v", resp.Status)
	}
	if attempts != 3 {
		t.Fatalf("expect 3 attempts, got %d", attempts)
	}
}

func TestRetrySkipsApplicationErrors(t *testing.T) {
	attempts := 0
	failing := func(ctx context.Context, req *message.Message) *message.Message {
		attempts++
		return message.Errorf(message.CodeHandler, "division by zero")
	}
	handler := Retry(3, time.Millisecond, zap.NewNop())(failing)

	resp := handler(context.Background(), &message.Message{Method: "Arith.Div"})
	if resp.Status == nil || resp.Status.Code != message.CodeHandler {
		t.Fatalf("expect handler error, got %+v", resp.Status)
	}
	if attempts != 1 {
		t.Fatalf("application errors are final, expect 1 attempt, got %d", attempts)
	}
}

func TestChain(t *testing.T) {
	// Chain order: outermost first
	var order []string
	tag := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *message.Message) *message.Message {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	handler := Chain(tag("a"), tag("b"), tag("c"))(echoHandler)
	resp := handler(context.Background(), &message.Message{Method: "Arith.Add"})

	if resp == nil || resp.Status != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("wrong middleware order: %v", order)
	}
}
