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
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jeremyhahn/go-redfish/pkg/adapters"
	"github.com/jeremyhahn/go-redfish/pkg/audit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// MetricsCollector holds metrics for the metadata server.
type MetricsCollector struct {
	totalRequests      atomic.Uint64
	successfulRequests atomic.Uint64
	failedRequests     atomic.Uint64
	totalLatencyNanos  atomic.Uint64

	activeStreams  atomic.Int32
	activeSessions atomic.Int64
	openHandles    atomic.Int64
	bytesRead      atomic.Uint64
	bytesWritten   atomic.Uint64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// GetMetrics returns the current metrics.
func (m *MetricsCollector) GetMetrics() map[string]any {
	total := m.totalRequests.Load()
	var avgLatencyMs float64
	if total > 0 {
		avgLatencyMs = float64(m.totalLatencyNanos.Load()) / float64(total) / 1e6
	}

	return map[string]any{
		"total_requests":      total,
		"successful_requests": m.successfulRequests.Load(),
		"failed_requests":     m.failedRequests.Load(),
		"active_streams":      m.activeStreams.Load(),
		"active_sessions":     m.activeSessions.Load(),
		"open_handles":        m.openHandles.Load(),
		"bytes_read":          m.bytesRead.Load(),
		"bytes_written":       m.bytesWritten.Load(),
		"avg_latency_ms":      avgLatencyMs,
	}
}

func (m *MetricsCollector) observe(start time.Time, err error) {
	m.totalRequests.Add(1)
	if nanos := time.Since(start).Nanoseconds(); nanos >= 0 {
		m.totalLatencyNanos.Add(uint64(nanos))
	}
	if err != nil {
		m.failedRequests.Add(1)
	} else {
		m.successfulRequests.Add(1)
	}
}

// LoggingUnaryInterceptor logs unary RPC calls using the logger adapter.
func LoggingUnaryInterceptor(logger adapters.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(ctx, logger, info.FullMethod, start, err)
		return resp, err
	}
}

// LoggingStreamInterceptor logs stream RPC calls using the logger adapter.
func LoggingStreamInterceptor(logger adapters.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logCall(ss.Context(), logger, info.FullMethod, start, err)
		return err
	}
}

func logCall(ctx context.Context, logger adapters.Logger, method string, start time.Time, err error) {
	fields := []adapters.Field{
		{Key: "method", Value: method},
		{Key: "duration", Value: time.Since(start).String()},
		{Key: "code", Value: status.Code(err).String()},
	}
	if p, ok := adapters.PrincipalFromContext(ctx); ok {
		fields = append(fields, adapters.Field{Key: "user", Value: p.User})
	}

	switch status.Code(err) {
	case codes.OK:
		logger.Debug(ctx, "gRPC request completed", fields...)
	case codes.Internal, codes.Unknown, codes.DataLoss:
		logger.Error(ctx, "gRPC request failed", append(fields, adapters.ErrorField(err))...)
	default:
		// Filesystem errors such as missing paths are expected traffic.
		logger.Info(ctx, "gRPC request rejected", append(fields, adapters.ErrorField(err))...)
	}
}

// MetricsUnaryInterceptor collects metrics for unary RPC calls.
func MetricsUnaryInterceptor(collector *MetricsCollector) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		collector.observe(start, err)
		return resp, err
	}
}

// MetricsStreamInterceptor collects metrics for stream RPC calls.
func MetricsStreamInterceptor(collector *MetricsCollector) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		collector.activeStreams.Add(1)
		defer collector.activeStreams.Add(-1)

		err := handler(srv, ss)
		collector.observe(start, err)
		return err
	}
}

// RecoveryUnaryInterceptor recovers from panics in unary RPC calls.
func RecoveryUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "[gRPC] Panic recovered",
					slog.String("method", info.FullMethod),
					slog.Any("panic", r))
				err = status.Errorf(codes.Internal, "internal server error: %v", r)
			}
		}()

		return handler(ctx, req)
	}
}

// RecoveryStreamInterceptor recovers from panics in stream RPC calls.
func RecoveryStreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ss.Context(), "[gRPC Stream] Panic recovered",
					slog.String("method", info.FullMethod),
					slog.Any("panic", r))
				err = status.Errorf(codes.Internal, "internal server error: %v", r)
			}
		}()

		return handler(srv, ss)
	}
}

// authenticate resolves the principal of a call. When the authenticator
// rejects the metadata, a verified client certificate names the user.
func authenticate(ctx context.Context, authenticator adapters.Authenticator) (*adapters.Principal, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		md = metadata.MD{}
	}

	principal, err := authenticator.AuthenticateGRPC(ctx, md)
	if err == nil {
		return principal, nil
	}
	if user := certificateUser(ctx); user != "" {
		return &adapters.Principal{User: user, Method: "mtls"}, nil
	}
	return nil, err
}

func certificateUser(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.AuthInfo == nil {
		return ""
	}
	info, ok := p.AuthInfo.(credentials.TLSInfo)
	if !ok || len(info.State.VerifiedChains) == 0 || len(info.State.VerifiedChains[0]) == 0 {
		return ""
	}
	return info.State.VerifiedChains[0][0].Subject.CommonName
}

func isHealthMethod(fullMethod string) bool {
	return strings.HasPrefix(fullMethod, "/grpc.health.v1.Health/")
}

// AuthenticationUnaryInterceptor attaches the caller's principal to the
// context and rejects unauthenticated calls. Health checks are exempt.
func AuthenticationUnaryInterceptor(authenticator adapters.Authenticator, logger adapters.Logger, auditLogger audit.AuditLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if isHealthMethod(info.FullMethod) {
			return handler(ctx, req)
		}

		principal, err := authenticate(ctx, authenticator)
		if err != nil {
			rejectAuth(ctx, logger, auditLogger, info.FullMethod, err)
			return nil, status.Error(codes.Unauthenticated, "authentication failed")
		}
		return handler(adapters.ContextWithPrincipal(ctx, principal), req)
	}
}

// AuthenticationStreamInterceptor authenticates stream RPC calls.
func AuthenticationStreamInterceptor(authenticator adapters.Authenticator, logger adapters.Logger, auditLogger audit.AuditLogger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if isHealthMethod(info.FullMethod) {
			return handler(srv, ss)
		}

		ctx := ss.Context()
		principal, err := authenticate(ctx, authenticator)
		if err != nil {
			rejectAuth(ctx, logger, auditLogger, info.FullMethod, err)
			return status.Error(codes.Unauthenticated, "authentication failed")
		}
		return handler(srv, &wrappedServerStream{
			ServerStream: ss,
			ctx:          adapters.ContextWithPrincipal(ctx, principal),
		})
	}
}

func rejectAuth(ctx context.Context, logger adapters.Logger, auditLogger audit.AuditLogger, method string, err error) {
	logger.Warn(ctx, "Authentication failed",
		adapters.Field{Key: "method", Value: method},
		adapters.ErrorField(err),
	)
	if auditLogger == nil {
		return
	}
	claimed := ""
	ip := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if users := md.Get(adapters.UserMetadataKey); len(users) > 0 {
			claimed = users[0]
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		ip = p.Addr.String()
	}
	_ = auditLogger.LogAuthFailure(ctx, claimed, ip, audit.GetRequestID(ctx), err.Error()) // #nosec G104 -- audit failures must not mask the rejection
}

// wrappedServerStream wraps a grpc.ServerStream to override the context.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
