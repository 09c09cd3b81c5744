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

package middleware

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jeremyhahn/go-redfish/pkg/adapters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

func okHandler(ctx context.Context, req any) (any, error) { return "ok", nil }

func userContext(user string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(adapters.UserMetadataKey, user))
}

func peerContext(addr string) context.Context {
	return peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP(addr), Port: 4000}})
}

func TestDefaultRateLimitConfig(t *testing.T) {
	config := DefaultRateLimitConfig()
	assert.Equal(t, ScopeGlobal, config.Scope)
	assert.Greater(t, config.Burst, 0)
	assert.Greater(t, config.RequestsPerSecond, 0.0)
}

func TestRateLimitUnaryInterceptorGlobal(t *testing.T) {
	interceptor := RateLimitUnaryInterceptor(&RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2, Scope: ScopeGlobal}, adapters.NewNoOpLogger())
	info := &grpc.UnaryServerInfo{FullMethod: "/redfish.v1.Metadata/Open"}

	_, err := interceptor(userContext("alice"), nil, info, okHandler)
	require.NoError(t, err)
	_, err = interceptor(userContext("bob"), nil, info, okHandler)
	require.NoError(t, err)

	_, err = interceptor(userContext("carol"), nil, info, okHandler)
	require.Error(t, err)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestRateLimitUnaryInterceptorPerUser(t *testing.T) {
	interceptor := RateLimitUnaryInterceptor(&RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1, Scope: ScopeUser}, adapters.NewNoOpLogger())
	info := &grpc.UnaryServerInfo{FullMethod: "/redfish.v1.Metadata/Open"}

	_, err := interceptor(userContext("alice"), nil, info, okHandler)
	require.NoError(t, err)
	_, err = interceptor(userContext("alice"), nil, info, okHandler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	_, err = interceptor(userContext("bob"), nil, info, okHandler)
	assert.NoError(t, err)

	ctx := adapters.ContextWithPrincipal(userContext("alice"), &adapters.Principal{User: "carol"})
	_, err = interceptor(ctx, nil, info, okHandler)
	assert.NoError(t, err, "principal takes precedence over the claimed user")
}

func TestRateLimitUnaryInterceptorPerPeer(t *testing.T) {
	interceptor := RateLimitUnaryInterceptor(&RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1, Scope: ScopePeer}, nil)
	info := &grpc.UnaryServerInfo{FullMethod: "/redfish.v1.Metadata/Open"}

	_, err := interceptor(peerContext("10.0.0.1"), nil, info, okHandler)
	require.NoError(t, err)
	_, err = interceptor(peerContext("10.0.0.1"), nil, info, okHandler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
	_, err = interceptor(peerContext("10.0.0.2"), nil, info, okHandler)
	assert.NoError(t, err)
}

func TestRateLimitStreamInterceptor(t *testing.T) {
	interceptor := RateLimitStreamInterceptor(&RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}, adapters.NewNoOpLogger())
	info := &grpc.StreamServerInfo{FullMethod: "/grpc.health.v1.Health/Watch"}
	stream := &mockServerStream{ctx: context.Background()}
	handler := func(srv any, ss grpc.ServerStream) error { return nil }

	require.NoError(t, interceptor(nil, stream, info, handler))
	assert.Equal(t, codes.ResourceExhausted, status.Code(interceptor(nil, stream, info, handler)))
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RateLimitMiddleware(&RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}, adapters.NewNoOpLogger()))
	router.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate limit exceeded")
}
