// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-redfish.
//
// go-redfish is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package grpc

import (
	"time"

	"github.com/jeremyhahn/go-redfish/pkg/adapters"
	"github.com/jeremyhahn/go-redfish/pkg/audit"
	"github.com/jeremyhahn/go-redfish/pkg/server"
	"github.com/jeremyhahn/go-redfish/pkg/server/middleware"
	"google.golang.org/grpc"
)

// ServerOptions contains configuration options for the metadata server.
type ServerOptions struct {
	// Address is the server address in the format "host:port"
	Address string

	// TLSConfig enables TLS or mTLS when set
	TLSConfig *adapters.TLSConfig

	// MaxConcurrentStreams is the maximum number of concurrent streams per connection
	MaxConcurrentStreams uint32

	// MaxMessageSize bounds both received and sent messages, in bytes
	MaxMessageSize int

	// KeepAliveTime is the duration after which a keepalive ping is sent
	KeepAliveTime time.Duration

	// KeepAliveTimeout is the duration the server waits for keepalive ping ack
	KeepAliveTimeout time.Duration

	// MaxSessions caps concurrently connected sessions
	MaxSessions int

	// MaxHandlesPerSession caps open streams per session
	MaxHandlesPerSession int

	// SessionIdleTimeout disconnects sessions without traffic; zero disables it
	SessionIdleTimeout time.Duration

	EnableHealthCheck bool
	EnableMetrics     bool
	EnableLogging     bool
	EnableRequestID   bool
	EnableRateLimit   bool
	RateLimitConfig   *middleware.RateLimitConfig
	EnableAudit       bool
	AuditLogger       audit.AuditLogger

	// UnaryInterceptors run after the built-in chain
	UnaryInterceptors []grpc.UnaryServerInterceptor

	// StreamInterceptors run after the built-in chain
	StreamInterceptors []grpc.StreamServerInterceptor

	Logger        adapters.Logger
	Authenticator adapters.Authenticator
}

// DefaultServerOptions returns the default server options.
func DefaultServerOptions() *ServerOptions {
	return &ServerOptions{
		Address:              ":50051",
		MaxConcurrentStreams: server.MaxConcurrentStreams,
		MaxMessageSize:       server.MaxMessageSize,
		KeepAliveTime:        2 * time.Hour,
		KeepAliveTimeout:     20 * time.Second,
		MaxSessions:          server.MaxSessions,
		MaxHandlesPerSession: server.MaxHandlesPerSession,
		SessionIdleTimeout:   server.DefaultSessionIdleTimeout,
		EnableHealthCheck:    true,
		EnableMetrics:        true,
		EnableLogging:        true,
		EnableRequestID:      true,
		RateLimitConfig:      middleware.DefaultRateLimitConfig(),
		EnableAudit:          true,
		AuditLogger:          audit.NewDefaultAuditLogger(),
		Logger:               adapters.NewDefaultLogger(),
		Authenticator:        adapters.NewHeaderAuthenticator(),
	}
}

// ServerOption is a function that modifies ServerOptions.
type ServerOption func(*ServerOptions)

// WithAddress sets the server address.
func WithAddress(addr string) ServerOption {
	return func(o *ServerOptions) {
		o.Address = addr
	}
}

// WithTLS enables TLS using the adapter configuration.
func WithTLS(config *adapters.TLSConfig) ServerOption {
	return func(o *ServerOptions) {
		o.TLSConfig = config
	}
}

// WithMaxConcurrentStreams sets the maximum number of concurrent streams.
func WithMaxConcurrentStreams(max uint32) ServerOption {
	return func(o *ServerOptions) {
		o.MaxConcurrentStreams = max
	}
}

// WithMaxMessageSize sets both max receive and send message sizes.
func WithMaxMessageSize(size int) ServerOption {
	return func(o *ServerOptions) {
		o.MaxMessageSize = size
	}
}

// WithKeepAlive sets the keepalive parameters.
func WithKeepAlive(time, timeout time.Duration) ServerOption {
	return func(o *ServerOptions) {
		o.KeepAliveTime = time
		o.KeepAliveTimeout = timeout
	}
}

// WithSessionLimits sets the session and per-session handle caps.
func WithSessionLimits(maxSessions, maxHandles int) ServerOption {
	return func(o *ServerOptions) {
		o.MaxSessions = maxSessions
		o.MaxHandlesPerSession = maxHandles
	}
}

// WithSessionIdleTimeout sets how long a session may stay silent.
func WithSessionIdleTimeout(timeout time.Duration) ServerOption {
	return func(o *ServerOptions) {
		o.SessionIdleTimeout = timeout
	}
}

// WithHealthCheck enables or disables the health check service.
func WithHealthCheck(enable bool) ServerOption {
	return func(o *ServerOptions) {
		o.EnableHealthCheck = enable
	}
}

// WithMetrics enables or disables metrics collection.
func WithMetrics(enable bool) ServerOption {
	return func(o *ServerOptions) {
		o.EnableMetrics = enable
	}
}

// WithLogging enables or disables request logging.
func WithLogging(enable bool) ServerOption {
	return func(o *ServerOptions) {
		o.EnableLogging = enable
	}
}

// WithRequestID enables or disables request ID tracking.
func WithRequestID(enable bool) ServerOption {
	return func(o *ServerOptions) {
		o.EnableRequestID = enable
	}
}

// WithRateLimit enables or disables rate limiting.
func WithRateLimit(enable bool, config *middleware.RateLimitConfig) ServerOption {
	return func(o *ServerOptions) {
		o.EnableRateLimit = enable
		if config != nil {
			o.RateLimitConfig = config
		}
	}
}

// WithAudit enables or disables audit logging.
func WithAudit(enable bool) ServerOption {
	return func(o *ServerOptions) {
		o.EnableAudit = enable
	}
}

// WithAuditLogger sets the audit logger.
func WithAuditLogger(logger audit.AuditLogger) ServerOption {
	return func(o *ServerOptions) {
		o.AuditLogger = logger
	}
}

// WithUnaryInterceptor adds a unary interceptor.
func WithUnaryInterceptor(interceptor grpc.UnaryServerInterceptor) ServerOption {
	return func(o *ServerOptions) {
		o.UnaryInterceptors = append(o.UnaryInterceptors, interceptor)
	}
}

// WithStreamInterceptor adds a stream interceptor.
func WithStreamInterceptor(interceptor grpc.StreamServerInterceptor) ServerOption {
	return func(o *ServerOptions) {
		o.StreamInterceptors = append(o.StreamInterceptors, interceptor)
	}
}

// WithLogger sets the logger adapter.
func WithLogger(logger adapters.Logger) ServerOption {
	return func(o *ServerOptions) {
		o.Logger = logger
	}
}

// WithAuthenticator sets the authentication adapter.
func WithAuthenticator(auth adapters.Authenticator) ServerOption {
	return func(o *ServerOptions) {
		o.Authenticator = auth
	}
}
