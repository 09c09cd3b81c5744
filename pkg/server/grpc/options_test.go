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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"

	"github.com/jeremyhahn/go-redfish/pkg/adapters"
	"github.com/jeremyhahn/go-redfish/pkg/audit"
	"github.com/jeremyhahn/go-redfish/pkg/server"
	"github.com/jeremyhahn/go-redfish/pkg/server/middleware"
)

func TestDefaultServerOptions(t *testing.T) {
	opts := DefaultServerOptions()
	assert.Equal(t, ":50051", opts.Address)
	assert.Equal(t, server.MaxSessions, opts.MaxSessions)
	assert.Equal(t, server.MaxHandlesPerSession, opts.MaxHandlesPerSession)
	assert.Equal(t, server.DefaultSessionIdleTimeout, opts.SessionIdleTimeout)
	assert.Equal(t, server.MaxMessageSize, opts.MaxMessageSize)
	assert.True(t, opts.EnableHealthCheck)
	assert.True(t, opts.EnableAudit)
	assert.False(t, opts.EnableRateLimit)
	assert.NotNil(t, opts.Authenticator)
}

func TestServerOptions(t *testing.T) {
	tlsConfig := &adapters.TLSConfig{Mode: adapters.TLSModeServer}
	rateLimit := &middleware.RateLimitConfig{RequestsPerSecond: 10, Burst: 5, Scope: middleware.ScopeUser}
	auditLogger := audit.NewNoOpAuditLogger()
	auth := adapters.NewTokenAuthenticator(nil)
	logger := adapters.NewNoOpLogger()
	unary := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return handler(ctx, req)
	}
	stream := func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return handler(srv, ss)
	}

	opts := DefaultServerOptions()
	for _, opt := range []ServerOption{
		WithAddress("0.0.0.0:7000"),
		WithTLS(tlsConfig),
		WithMaxConcurrentStreams(16),
		WithMaxMessageSize(1 << 10),
		WithKeepAlive(time.Minute, time.Second),
		WithSessionLimits(2, 3),
		WithSessionIdleTimeout(time.Minute),
		WithHealthCheck(false),
		WithMetrics(false),
		WithLogging(false),
		WithRequestID(false),
		WithRateLimit(true, rateLimit),
		WithAudit(false),
		WithAuditLogger(auditLogger),
		WithUnaryInterceptor(unary),
		WithStreamInterceptor(stream),
		WithLogger(logger),
		WithAuthenticator(auth),
	} {
		opt(opts)
	}

	assert.Equal(t, "0.0.0.0:7000", opts.Address)
	assert.Same(t, tlsConfig, opts.TLSConfig)
	assert.EqualValues(t, 16, opts.MaxConcurrentStreams)
	assert.Equal(t, 1<<10, opts.MaxMessageSize)
	assert.Equal(t, time.Minute, opts.KeepAliveTime)
	assert.Equal(t, time.Second, opts.KeepAliveTimeout)
	assert.Equal(t, 2, opts.MaxSessions)
	assert.Equal(t, 3, opts.MaxHandlesPerSession)
	assert.Equal(t, time.Minute, opts.SessionIdleTimeout)
	assert.False(t, opts.EnableHealthCheck)
	assert.False(t, opts.EnableMetrics)
	assert.False(t, opts.EnableLogging)
	assert.False(t, opts.EnableRequestID)
	assert.True(t, opts.EnableRateLimit)
	assert.Same(t, rateLimit, opts.RateLimitConfig)
	assert.False(t, opts.EnableAudit)
	assert.Equal(t, auditLogger, opts.AuditLogger)
	assert.Len(t, opts.UnaryInterceptors, 1)
	assert.Len(t, opts.StreamInterceptors, 1)
	assert.Equal(t, logger, opts.Logger)
	assert.Same(t, auth, opts.Authenticator)
}
