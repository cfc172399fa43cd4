package transport

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"linkrpc/message"
)

// ErrTransportClosed is returned by Send after Close.
var ErrTransportClosed = errors.New("transport: client transport closed")

// ClientTransport multiplexes concurrent RPC calls over a single Transport.
//
// Each request gets a unique sequence number, and a background goroutine
// (recvLoop) continuously reads responses and routes them to the correct
// caller via per-request channels:
//
//	goroutine-1 ──Send(seq=1)──┐
//	goroutine-2 ──Send(seq=2)──┼──→ single connection ──→ Server
//	goroutine-3 ──Send(seq=3)──┘
//
//	recvLoop:  ←── response(seq=2) → pending[2] chan → goroutine-2 wakes up
//
// Responses may arrive in any order; the sequence number is the only
// ordering contract.
type ClientTransport struct {
	tr      Transport
	id      string // short unique id, for log correlation
	seq     atomic.Uint32
	pending sync.Map // map[uint32]chan *message.Message
	logger  *zap.Logger
	done    chan struct{}
	closed  atomic.Bool
	once    sync.Once
}

// ClientTransportOption configures a ClientTransport.
type ClientTransportOption func(*clientTransportOptions)

type clientTransportOptions struct {
	logger            *zap.Logger
	heartbeatInterval time.Duration
}

func WithTransportLogger(logger *zap.Logger) ClientTransportOption {
	return func(o *clientTransportOptions) { o.logger = logger }
}

// WithHeartbeatInterval overrides the keepalive probe interval.
// Zero disables heartbeats.
func WithHeartbeatInterval(d time.Duration) ClientTransportOption {
	return func(o *clientTransportOptions) { o.heartbeatInterval = d }
}

// NewClientTransport starts multiplexing over tr. It spawns recvLoop, which
// routes responses to pending callers, and a heartbeat loop that keeps the
// connection alive with empty probe frames.
func NewClientTransport(tr Transport, opts ...ClientTransportOption) *ClientTransport {
	o := clientTransportOptions{
		logger:            zap.NewNop(),
		heartbeatInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	t := &ClientTransport{
		tr:   tr,
		id:   xid.New().String(),
		done: make(chan struct{}),
	}
	t.logger = o.logger.With(zap.String("transport_id", t.id))

	go t.recvLoop()
	if o.heartbeatInterval > 0 {
		go t.heartbeatLoop(o.heartbeatInterval)
	}
	return t
}

// ID returns the transport's log-correlation id.
func (t *ClientTransport) ID() string { return t.id }

// Closed reports whether the transport is no longer usable (explicit Close
// or broken connection). Pools use it to drop dead transports.
func (t *ClientTransport) Closed() bool { return t.closed.Load() }

// Send serializes args with JSON and sends one request frame. It returns the
// assigned sequence number and a buffered channel that will receive exactly
// one response — either the server's answer or a transport-error envelope if
// the connection dies first.
func (t *ClientTransport) Send(method string, args any) (uint32, <-chan *message.Message, error) {
	if t.closed.Load() {
		return 0, nil, ErrTransportClosed
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return 0, nil, err
	}

	seq := t.seq.Add(1)

	// Register the response channel BEFORE sending, so recvLoop cannot see
	// the response of a request it has no channel for.
	respChan := make(chan *message.Message, 1)
	t.pending.Store(seq, respChan)

	f := &Frame{
		Kind: KindRequest,
		Seq:  seq,
		Body: &message.Message{Method: method, Payload: payload},
	}
	if err := t.tr.Send(f); err != nil {
		t.pending.Delete(seq)
		return 0, nil, err
	}

	return seq, respChan, nil
}

// Forget drops the pending entry for seq. Callers use it when they stop
// waiting (context cancelled) so a late response does not leak a channel.
func (t *ClientTransport) Forget(seq uint32) {
	t.pending.Delete(seq)
}

// recvLoop is the single reader. It routes each response to the caller
// registered under its sequence number. A non-fatal decode error fails only
// the affected call; anything else fails every pending call and ends the
// loop.
func (t *ClientTransport) recvLoop() {
	for {
		f, err := t.tr.Receive()
		if err != nil {
			var de *DecodeError
			if errors.As(err, &de) && !de.Fatal {
				t.logger.Warn("dropping undecodable response frame", zap.Error(err))
				if de.Seq != 0 {
					t.deliver(de.Seq, message.Errorf(message.CodeDecode, "undecodable response: %v", de.Err))
				}
				continue
			}
			t.failPending(err)
			t.closed.Store(true)
			return
		}

		if f.Kind != KindResponse {
			continue
		}
		t.deliver(f.Seq, f.Body)
	}
}

func (t *ClientTransport) deliver(seq uint32, msg *message.Message) {
	if ch, ok := t.pending.LoadAndDelete(seq); ok {
		ch.(chan *message.Message) <- msg
	}
}

// failPending is called when the connection breaks. Every pending caller
// gets a transport-error envelope so nobody blocks forever.
func (t *ClientTransport) failPending(err error) {
	t.pending.Range(func(key, value any) bool {
		value.(chan *message.Message) <- message.Errorf(message.CodeTransport, "connection lost: %v", err)
		t.pending.Delete(key)
		return true
	})
}

// heartbeatLoop sends periodic empty probe frames so idle connections are
// not reaped by the peer or by middleboxes.
func (t *ClientTransport) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if err := t.tr.Send(&Frame{Kind: KindHeartbeat}); err != nil {
				return
			}
		}
	}
}

// Close tears down the transport. recvLoop observes the closed connection
// and fails any still-pending calls.
func (t *ClientTransport) Close() error {
	var err error
	t.once.Do(func() {
		t.closed.Store(true)
		close(t.done)
		err = t.tr.Close()
	})
	return err
}
