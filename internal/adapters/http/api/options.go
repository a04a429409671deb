package api

import (
	"github.com/jonboulle/clockwork"
	"github.com/okian/leetstat/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for request logs.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAllowedOrigins sets the CORS allow-list. "*" allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = origins
		}
	}
}

// WithClock sets the clock that anchors contribution windows.
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithExtraRoutes lets callers mount additional routes, such as API docs,
// on the router before it is sealed.
func WithExtraRoutes(mount func(Router)) Option {
	return func(s *Server) {
		if mount != nil {
			s.mounts = append(s.mounts, mount)
		}
	}
}
