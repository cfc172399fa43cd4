// Pool recycles client transports to one address.
//
// A buffered channel is the pool: it is a natural FIFO queue, it is
// goroutine-safe, and blocking on empty is built in. Transports are created
// lazily up to the limit; a transport returned in a dead state is discarded
// and its slot freed. A nil entry on the channel marks a freed slot — it
// wakes one blocked Get, which loops back and dials a replacement.
package transport

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed is returned by Get after Close.
var ErrPoolClosed = errors.New("transport: pool closed")

// Pool manages reusable client transports for a single target address.
type Pool struct {
	mu      sync.Mutex
	idle    chan *ClientTransport // live transports and nil freed-slot markers
	max     int
	cur     int // transports currently alive (idle + borrowed)
	closed  bool
	factory func() (*ClientTransport, error)
}

// NewPool creates a pool with the given capacity. factory dials the target
// and wraps the connection in a ClientTransport.
func NewPool(max int, factory func() (*ClientTransport, error)) *Pool {
	return &Pool{
		idle:    make(chan *ClientTransport, max),
		max:     max,
		factory: factory,
	}
}

// Get borrows a transport.
// Strategy:
//  1. Take an idle one if available (skipping any that died while idle)
//  2. Otherwise create a new one while under the limit
//  3. Otherwise block until a transport is returned, a slot frees up,
//     or ctx is done — a dead return frees its slot, so a blocked Get is
//     always woken when capacity becomes available again
func (p *Pool) Get(ctx context.Context) (*ClientTransport, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		select {
		case t := <-p.idle:
			p.mu.Unlock()
			if t == nil {
				continue // freed slot — retry and create
			}
			if t.Closed() {
				p.discard(t)
				continue
			}
			return t, nil
		default:
		}
		if p.cur < p.max {
			p.cur++
			p.mu.Unlock()
			t, err := p.factory()
			if err != nil {
				p.free()
				return nil, err
			}
			return t, nil
		}
		p.mu.Unlock()

		// At capacity — wait for a return or a freed slot
		select {
		case t, ok := <-p.idle:
			if !ok {
				return nil, ErrPoolClosed
			}
			if t == nil {
				continue
			}
			if t.Closed() {
				p.discard(t)
				continue
			}
			return t, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Put returns a borrowed transport. Dead transports are dropped so the next
// Get can dial a fresh one.
func (p *Pool) Put(t *ClientTransport) {
	if t == nil {
		return
	}
	p.mu.Lock()
	if p.closed || t.Closed() {
		p.mu.Unlock()
		p.discard(t)
		return
	}
	// The send happens under the same lock Close takes before closing the
	// channel, so it can never hit a closed channel. It cannot block either:
	// the buffer has a slot for every live transport.
	select {
	case p.idle <- t:
		p.mu.Unlock()
	default:
		p.mu.Unlock()
		p.discard(t)
	}
}

// discard closes a dead transport and frees its slot.
func (p *Pool) discard(t *ClientTransport) {
	t.Close()
	p.free()
}

// free releases one slot and wakes a blocked Get with a nil entry so the
// freed capacity is actually used.
func (p *Pool) free() {
	p.mu.Lock()
	p.cur--
	if !p.closed {
		select {
		case p.idle <- nil:
		default:
		}
	}
	p.mu.Unlock()
}

// Close shuts the pool, wakes every blocked Get, and closes all idle
// transports. Borrowed transports are closed as they are returned.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.idle)
	p.mu.Unlock()

	for t := range p.idle {
		if t != nil {
			t.Close()
		}
	}
	return nil
}
