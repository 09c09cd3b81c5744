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

// Package grpc serves Redfish sessions to remote clients over gRPC.
package grpc

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/jeremyhahn/go-redfish/pkg/adapters"
	"github.com/jeremyhahn/go-redfish/pkg/audit"
	"github.com/jeremyhahn/go-redfish/pkg/common"
	"github.com/jeremyhahn/go-redfish/pkg/protocol"
	"github.com/jeremyhahn/go-redfish/pkg/server/middleware"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// ErrConnectorRequired is returned by NewServer without a SessionConnector.
var ErrConnectorRequired = errors.New("session connector is required")

// SessionConnector opens a backend session for an authenticated user.
type SessionConnector func(ctx context.Context, user string) (common.Session, error)

// Server exposes a Redfish backend through the metadata service.
type Server struct {
	connect    SessionConnector
	opts       *ServerOptions
	grpcServer *grpc.Server
	health     *health.Server
	metrics    *MetricsCollector
	sessions   *sessionTable

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
	stopOnce sync.Once
}

// NewServer creates a new metadata server instance.
func NewServer(connect SessionConnector, options ...ServerOption) (*Server, error) {
	if connect == nil {
		return nil, ErrConnectorRequired
	}

	opts := DefaultServerOptions()
	for _, opt := range options {
		opt(opts)
	}
	if opts.Logger == nil {
		opts.Logger = adapters.NewNoOpLogger()
	}
	if opts.Authenticator == nil {
		opts.Authenticator = adapters.NewHeaderAuthenticator()
	}

	s := &Server{
		connect: connect,
		opts:    opts,
		metrics: NewMetricsCollector(),
		done:    make(chan struct{}),
	}
	s.sessions = newSessionTable(opts.MaxSessions, s.metrics)

	serverOpts, err := s.buildServerOptions()
	if err != nil {
		return nil, err
	}
	s.grpcServer = grpc.NewServer(serverOpts...)
	protocol.RegisterMetadataServer(s.grpcServer, &metadataService{server: s})

	if opts.EnableHealthCheck {
		s.health = health.NewServer()
		grpc_health_v1.RegisterHealthServer(s.grpcServer, s.health)
		s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		s.health.SetServingStatus(protocol.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	}

	return s, nil
}

// Start listens on the configured address and serves until stopped.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener until the server is stopped.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	if s.opts.SessionIdleTimeout > 0 {
		go s.reapIdle(s.opts.SessionIdleTimeout)
	}

	s.opts.Logger.Info(context.Background(), "Starting metadata server",
		adapters.Field{Key: "address", Value: listener.Addr().String()},
	)
	err := s.grpcServer.Serve(listener)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Stop drains in-flight calls, then disconnects every session.
func (s *Server) Stop() {
	s.shutdown(s.grpcServer.GracefulStop)
}

// ForceStop closes all connections immediately, then disconnects every
// session.
func (s *Server) ForceStop() {
	s.opts.Logger.Warn(context.Background(), "Force stopping metadata server")
	s.shutdown(s.grpcServer.Stop)
}

func (s *Server) shutdown(stop func()) {
	s.stopOnce.Do(func() {
		ctx := context.Background()
		close(s.done)
		if s.health != nil {
			s.health.Shutdown()
		}
		stop()
		if err := closeAll(ctx, s.sessions.drain()); err != nil {
			s.opts.Logger.Warn(ctx, "Session disconnect failed during shutdown", adapters.ErrorField(err))
		}
		s.opts.Logger.Info(ctx, "Metadata server stopped")
	})
}

// reapIdle disconnects sessions that have been silent longer than timeout.
func (s *Server) reapIdle(timeout time.Duration) {
	interval := timeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.expireIdle(now.Add(-timeout))
		}
	}
}

func (s *Server) expireIdle(cutoff time.Time) int {
	ctx := context.Background()
	stale := s.sessions.idle(cutoff)
	for _, rs := range stale {
		s.opts.Logger.Info(ctx, "Disconnecting idle session",
			adapters.Field{Key: "session_id", Value: rs.id},
			adapters.Field{Key: "user", Value: rs.user},
		)
		err := rs.close(ctx)
		if s.opts.EnableAudit && s.opts.AuditLogger != nil {
			result := audit.ResultSuccess
			if err != nil {
				result = audit.ResultFailure
			}
			_ = s.opts.AuditLogger.LogSession(ctx, audit.EventSessionClosed, rs.user, rs.id, "", "", result, err) // #nosec G104 -- best effort
		}
	}
	return len(stale)
}

// GetMetrics returns the current server metrics.
func (s *Server) GetMetrics() map[string]any {
	return s.metrics.GetMetrics()
}

// SessionCount returns the number of connected sessions.
func (s *Server) SessionCount() int {
	return s.sessions.len()
}

// GetAddress returns the server's listening address.
func (s *Server) GetAddress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Address
}

// buildServerOptions constructs the gRPC server options based on configuration.
func (s *Server) buildServerOptions() ([]grpc.ServerOption, error) {
	var opts []grpc.ServerOption

	if s.opts.TLSConfig != nil {
		tlsConfig, err := s.opts.TLSConfig.Build()
		if err != nil {
			return nil, err
		}
		if tlsConfig != nil {
			opts = append(opts, grpc.Creds(credentials.NewTLS(tlsConfig)))
			s.opts.Logger.Info(context.Background(), "gRPC TLS enabled",
				adapters.Field{Key: "tls_mode", Value: s.opts.TLSConfig.Mode.String()},
			)
		}
	}

	opts = append(opts,
		grpc.MaxConcurrentStreams(s.opts.MaxConcurrentStreams),
		grpc.MaxRecvMsgSize(s.opts.MaxMessageSize),
		grpc.MaxSendMsgSize(s.opts.MaxMessageSize),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    s.opts.KeepAliveTime,
			Timeout: s.opts.KeepAliveTimeout,
		}),
	)

	// Order: recovery → request ID → rate limit → audit → auth → logging → metrics → custom
	unary := []grpc.UnaryServerInterceptor{RecoveryUnaryInterceptor()}
	stream := []grpc.StreamServerInterceptor{RecoveryStreamInterceptor()}

	if s.opts.EnableRequestID {
		unary = append(unary, middleware.RequestIDUnaryInterceptor())
		stream = append(stream, middleware.RequestIDStreamInterceptor())
	}
	if s.opts.EnableRateLimit {
		unary = append(unary, middleware.RateLimitUnaryInterceptor(s.opts.RateLimitConfig, s.opts.Logger))
		stream = append(stream, middleware.RateLimitStreamInterceptor(s.opts.RateLimitConfig, s.opts.Logger))
	}

	var auditLogger audit.AuditLogger
	if s.opts.EnableAudit && s.opts.AuditLogger != nil {
		auditLogger = s.opts.AuditLogger
		unary = append(unary, audit.AuditUnaryInterceptor(auditLogger))
		stream = append(stream, audit.AuditStreamInterceptor(auditLogger))
	}

	unary = append(unary, AuthenticationUnaryInterceptor(s.opts.Authenticator, s.opts.Logger, auditLogger))
	stream = append(stream, AuthenticationStreamInterceptor(s.opts.Authenticator, s.opts.Logger, auditLogger))

	if s.opts.EnableLogging {
		unary = append(unary, LoggingUnaryInterceptor(s.opts.Logger))
		stream = append(stream, LoggingStreamInterceptor(s.opts.Logger))
	}
	if s.opts.EnableMetrics {
		unary = append(unary, MetricsUnaryInterceptor(s.metrics))
		stream = append(stream, MetricsStreamInterceptor(s.metrics))
	}

	unary = append(unary, s.opts.UnaryInterceptors...)
	stream = append(stream, s.opts.StreamInterceptors...)

	opts = append(opts,
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	)
	return opts, nil
}
