// Package server implements the RPC server: service registration, a
// middleware chain, parallel request dispatch, and drain-or-force shutdown.
//
// Request processing pipeline:
//
//	Accept conn → handleConn (single goroutine reads frames)
//	  → for each request: go handleRequest (parallel processing)
//	    → Middleware Chain → dispatch (reflect.Call) → transport.Send(response)
//
// Responses leave in completion order, not request order; the frame's
// sequence number is the only correlation contract.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"linkrpc/codec"
	"linkrpc/message"
	"linkrpc/middleware"
	"linkrpc/registry"
	"linkrpc/transport"
)

// ErrDrainTimeout reports that shutdown force-closed connections because
// in-flight requests did not finish within the drain timeout.
var ErrDrainTimeout = errors.New("server: drain timeout exceeded, connections force-closed")

const defaultDrainTimeout = 10 * time.Second

// Server registers services and answers incoming requests.
type Server struct {
	serviceMap  map[string]*service // immutable after Serve starts
	listener    net.Listener
	wg          sync.WaitGroup // tracks in-flight requests for graceful shutdown
	shutdown    atomic.Bool
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc // middleware chain around dispatch

	registry        registry.Registry // nil when not using discovery
	advertiseAddr   string
	registrationTTL int64

	logger       *zap.Logger
	drainTimeout time.Duration

	connMu sync.Mutex
	conns  map[string]net.Conn // live connections, by id, for force-close
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		serviceMap:      make(map[string]*service),
		conns:           make(map[string]net.Conn),
		logger:          zap.NewNop(),
		drainTimeout:    defaultDrainTimeout,
		registrationTTL: 10,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a service receiver (e.g., &Arith{}). Its exported methods of
// the form Method(*Args, *Reply) error become callable as "Arith.Method".
// All registration must happen before Serve.
func (s *Server) Register(rcvr any) error {
	svc, err := newService(rcvr)
	if err != nil {
		return err
	}
	if _, dup := s.serviceMap[svc.name]; dup {
		return fmt.Errorf("rpc: service %s already registered", svc.name)
	}
	s.serviceMap[svc.name] = svc
	return nil
}

// Use appends a middleware. Middlewares run in registration order around
// every dispatch.
func (s *Server) Use(mw middleware.Middleware) {
	s.middlewares = append(s.middlewares, mw)
}

// Serve binds the listening endpoint and runs the accept loop until
// Shutdown. A bind failure (port in use, bad address) is returned
// immediately — it is the one fatal startup error.
func (s *Server) Serve(network, address string) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return fmt.Errorf("bind %s: %w", address, err)
	}
	s.listener = listener

	// Build the middleware chain once, not per request.
	s.handler = middleware.Chain(s.middlewares...)(s.dispatch)

	if s.registry != nil {
		for serviceName := range s.serviceMap {
			if err := s.registry.Register(serviceName, registry.ServiceInstance{
				Addr: s.advertiseAddr,
			}, s.registrationTTL); err != nil {
				s.logger.Warn("registry registration failed",
					zap.String("service", serviceName), zap.Error(err))
			}
		}
	}

	s.logger.Info("serving", zap.String("addr", listener.Addr().String()))

	for {
		conn, err := listener.Accept()
		if err != nil {
			// Shutdown closes the listener, which surfaces here as an
			// accept error; the flag distinguishes that from a real one.
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// Addr returns the bound listen address, once Serve has bound it.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// handleConn drives one connection: a single goroutine reads frames in
// order (frame boundaries require a sequential reader), and each request is
// dispatched to its own goroutine so a slow handler never blocks the rest
// of the connection.
func (s *Server) handleConn(conn net.Conn) {
	connID := xid.New().String()
	logger := s.logger.With(
		zap.String("conn_id", connID),
		zap.String("remote", conn.RemoteAddr().String()))

	s.connMu.Lock()
	if s.shutdown.Load() {
		s.connMu.Unlock()
		conn.Close()
		return
	}
	s.conns[connID] = conn
	s.connMu.Unlock()

	defer func() {
		s.connMu.Lock()
		delete(s.conns, connID)
		s.connMu.Unlock()
		conn.Close()
		logger.Debug("connection closed")
	}()

	tr, err := s.detectTransport(conn)
	if err != nil {
		if err != io.EOF {
			logger.Warn("transport detection failed", zap.Error(err))
		}
		return
	}

	for {
		f, err := tr.Receive()
		if err != nil {
			var de *transport.DecodeError
			switch {
			case errors.As(err, &de) && !de.Fatal:
				// The stream is still frame-synchronized: answer this one
				// request with a decode error and keep the connection.
				logger.Warn("undecodable frame", zap.Error(err))
				s.reply(tr, de.Seq, message.Errorf(message.CodeDecode, "undecodable request: %v", de.Err), logger)
				continue
			case errors.As(err, &de):
				logger.Warn("frame synchronization lost, closing connection", zap.Error(err))
			case err == io.EOF:
				// clean close
			default:
				logger.Debug("connection read failed", zap.Error(err))
			}
			return
		}

		switch f.Kind {
		case transport.KindHeartbeat:
			continue
		case transport.KindRequest:
			// Add before the flag check: a request that sees the flag unset
			// is already counted when Shutdown starts its drain wait.
			s.wg.Add(1)
			if s.shutdown.Load() {
				s.wg.Done()
				s.reply(tr, f.Seq, message.Errorf(message.CodeShutdown, "server is shutting down"), logger)
				continue
			}
			go s.handleRequest(tr, f, logger)
		default:
			logger.Warn("unexpected frame kind", zap.Uint8("kind", uint8(f.Kind)))
		}
	}
}

// detectTransport peeks at the first byte to pick the framing: a JSON-lines
// peer opens with '{', the binary protocol opens with its magic byte.
func (s *Server) detectTransport(conn net.Conn) (transport.Transport, error) {
	br := bufio.NewReader(conn)
	first, err := br.Peek(1)
	if err != nil {
		return nil, err
	}
	if first[0] == '{' {
		return transport.NewLineTransportFrom(br, conn), nil
	}
	// Responses go out JSON-encoded; every frame header declares its own
	// codec, so a binary-codec caller still decodes them correctly.
	return transport.NewFrameTransportFrom(br, conn, codec.CodecTypeJSON), nil
}

// handleRequest runs one request through the middleware chain and writes the
// response. It owns no connection state: the transport serializes concurrent
// writes internally.
func (s *Server) handleRequest(tr transport.Transport, f *transport.Frame, logger *zap.Logger) {
	defer s.wg.Done()
	resp := s.handler(context.Background(), f.Body)
	s.reply(tr, f.Seq, resp, logger)
}

func (s *Server) reply(tr transport.Transport, seq uint32, resp *message.Message, logger *zap.Logger) {
	err := tr.Send(&transport.Frame{
		Kind: transport.KindResponse,
		Seq:  seq, // same seq as the request — the multiplexing contract
		Body: resp,
	})
	if err != nil {
		logger.Warn("failed to write response", zap.Uint32("seq", seq), zap.Error(err))
	}
}

// dispatch is the innermost handler: look up the method, decode the args,
// invoke it, encode the reply. Every failure mode is answered in-band as an
// error envelope — a bad request is data, never a server failure.
func (s *Server) dispatch(ctx context.Context, req *message.Message) *message.Message {
	serviceName, methodName, ok := strings.Cut(req.Method, ".")
	if !ok || serviceName == "" || methodName == "" {
		return message.Errorf(message.CodeUnknownMethod, "invalid method %q, want \"Service.Method\"", req.Method)
	}

	svc, ok := s.serviceMap[serviceName]
	if !ok {
		return message.Errorf(message.CodeUnknownMethod, "unknown service %q", serviceName)
	}
	mType, ok := svc.method[methodName]
	if !ok {
		return message.Errorf(message.CodeUnknownMethod, "unknown method %q on service %q", methodName, serviceName)
	}

	argv := reflect.New(mType.ArgType)
	replyv := reflect.New(mType.ReplyType)

	if err := json.Unmarshal(req.Payload, argv.Interface()); err != nil {
		return message.Errorf(message.CodeBadArgument, "decode args for %s: %v", req.Method, err)
	}

	if err := svc.call(mType, argv, replyv); err != nil {
		return message.Errorf(message.CodeHandler, "%v", err)
	}

	payload, err := json.Marshal(replyv.Interface())
	if err != nil {
		return message.Errorf(message.CodeHandler, "encode reply for %s: %v", req.Method, err)
	}

	return &message.Message{Method: req.Method, Payload: payload}
}

// Shutdown stops the server:
//  1. Deregister from the registry so clients stop routing here
//  2. Set the shutdown flag, then close the listener (order matters: the
//     flag must be visible before Accept fails)
//  3. Wait for in-flight requests up to the drain timeout
//  4. On timeout, force-close every remaining connection
func (s *Server) Shutdown() error {
	if s.registry != nil {
		for serviceName := range s.serviceMap {
			if err := s.registry.Deregister(serviceName, s.advertiseAddr); err != nil {
				s.logger.Warn("deregister failed",
					zap.String("service", serviceName), zap.Error(err))
			}
		}
	}

	s.shutdown.Store(true)
	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.closeConns()
		s.logger.Info("shutdown complete, all requests drained")
		return nil
	case <-time.After(s.drainTimeout):
		n := s.closeConns()
		s.logger.Warn("drain timeout, connections force-closed", zap.Int("conns", n))
		return ErrDrainTimeout
	}
}

func (s *Server) closeConns() int {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	n := len(s.conns)
	for id, conn := range s.conns {
		conn.Close()
		delete(s.conns, id)
	}
	return n
}
