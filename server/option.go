package server

import (
	"time"

	"go.uber.org/zap"

	"linkrpc/registry"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithDrainTimeout bounds graceful shutdown: in-flight requests get this
// long to finish before remaining connections are force-closed.
func WithDrainTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.drainTimeout = d
	}
}

// WithRegistry makes Serve announce every registered service at
// advertiseAddr. advertiseAddr differs from the listen address because
// ":8080" is not routable from other hosts.
func WithRegistry(reg registry.Registry, advertiseAddr string) Option {
	return func(s *Server) {
		s.registry = reg
		s.advertiseAddr = advertiseAddr
	}
}

// WithRegistrationTTL overrides the registry lease TTL in seconds.
func WithRegistrationTTL(ttl int64) Option {
	return func(s *Server) {
		s.registrationTTL = ttl
	}
}
