// Package client provides the calling side: discover instances through a
// registry, pick one with a balancer, borrow a multiplexed transport from a
// per-address pool, and run the call with a deadline.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"linkrpc/codec"
	"linkrpc/loadbalance"
	"linkrpc/registry"
	"linkrpc/transport"
)

const (
	defaultPoolSize    = 4
	defaultCallTimeout = 10 * time.Second
	defaultDialTimeout = 3 * time.Second
)

// Client issues RPC calls against instances discovered through a registry.
type Client struct {
	registry  registry.Registry
	balancer  loadbalance.Balancer
	codecType codec.CodecType
	jsonLines bool

	mu    sync.Mutex
	pools map[string]*transport.Pool // per target address

	poolSize    int
	callTimeout time.Duration
	logger      *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithCodec selects the body encoding for the binary framing.
func WithCodec(ct codec.CodecType) Option {
	return func(c *Client) { c.codecType = ct }
}

// WithJSONLines switches the wire framing to newline-delimited JSON.
func WithJSONLines() Option {
	return func(c *Client) { c.jsonLines = true }
}

// WithPoolSize sets how many transports are kept per target address.
func WithPoolSize(n int) Option {
	return func(c *Client) { c.poolSize = n }
}

// WithCallTimeout bounds each Call when the caller's context carries no
// deadline, so a dropped connection or stuck server can never hang a call
// forever. Zero disables the default bound.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) { c.callTimeout = d }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func NewClient(reg registry.Registry, bal loadbalance.Balancer, opts ...Option) *Client {
	c := &Client{
		registry:    reg,
		balancer:    bal,
		codecType:   codec.CodecTypeJSON,
		pools:       make(map[string]*transport.Pool),
		poolSize:    defaultPoolSize,
		callTimeout: defaultCallTimeout,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call invokes "Service.Method" with args and decodes the reply into reply.
// Every call ends in either a decoded success value or a typed error: a
// *message.Status for anything the server answered (unknown method, bad
// args, handler error, ...) or a local/transport error otherwise.
func (c *Client) Call(ctx context.Context, serviceMethod string, args any, reply any) error {
	serviceName, _, ok := strings.Cut(serviceMethod, ".")
	if !ok {
		return fmt.Errorf("invalid service method format: %q", serviceMethod)
	}

	instances, err := c.registry.Discover(serviceName)
	if err != nil {
		return fmt.Errorf("discover %s: %w", serviceName, err)
	}
	instance, err := c.balancer.Pick(instances)
	if err != nil {
		return err
	}

	// The deadline goes in before the pool borrow so a full pool can never
	// stall a call past its budget.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	pool := c.pool(instance.Addr)
	t, err := pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("connect %s: %w", instance.Addr, err)
	}
	defer pool.Put(t)

	seq, ch, err := t.Send(serviceMethod, args)
	if err != nil {
		return fmt.Errorf("send %s: %w", serviceMethod, err)
	}

	select {
	case resp := <-ch:
		if err := resp.Err(); err != nil {
			return err
		}
		if reply != nil {
			if err := json.Unmarshal(resp.Payload, reply); err != nil {
				return fmt.Errorf("decode reply for %s: %w", serviceMethod, err)
			}
		}
		return nil
	case <-ctx.Done():
		t.Forget(seq)
		return fmt.Errorf("call %s: %w", serviceMethod, ctx.Err())
	}
}

// pool returns (or lazily creates) the transport pool for addr.
func (c *Client) pool(addr string) *transport.Pool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pools[addr]; ok {
		return p
	}
	p := transport.NewPool(c.poolSize, func() (*transport.ClientTransport, error) {
		conn, err := net.DialTimeout("tcp", addr, defaultDialTimeout)
		if err != nil {
			return nil, err
		}
		var tr transport.Transport
		if c.jsonLines {
			tr = transport.NewLineTransport(conn)
		} else {
			tr = transport.NewFrameTransport(conn, c.codecType)
		}
		return transport.NewClientTransport(tr, transport.WithTransportLogger(c.logger)), nil
	})
	c.pools[addr] = p
	return p
}

// Close shuts down every pooled transport.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for addr, p := range c.pools {
		p.Close()
		delete(c.pools, addr)
	}
	return nil
}
