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
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/jeremyhahn/go-redfish/pkg/adapters"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Scope selects how callers share rate limit buckets.
type Scope string

const (
	// ScopeGlobal shares one bucket between all callers.
	ScopeGlobal Scope = "global"

	// ScopePeer gives each remote address its own bucket.
	ScopePeer Scope = "peer"

	// ScopeUser gives each Redfish user its own bucket.
	ScopeUser Scope = "user"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	Scope             Scope
}

// DefaultRateLimitConfig returns a rate limit config with sensible defaults
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerSecond: 500,
		Burst:             1000,
		Scope:             ScopeGlobal,
	}
}

type rateLimiter struct {
	config   *RateLimitConfig
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

func newRateLimiter(config *RateLimitConfig) *rateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	return &rateLimiter{config: config, limiters: make(map[string]*rate.Limiter)}
}

func (rl *rateLimiter) allow(key string) bool {
	if rl.config.Scope == ScopeGlobal || rl.config.Scope == "" {
		key = string(ScopeGlobal)
	}

	rl.mu.RLock()
	limiter, ok := rl.limiters[key]
	rl.mu.RUnlock()
	if !ok {
		rl.mu.Lock()
		if limiter, ok = rl.limiters[key]; !ok {
			limiter = rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)
			rl.limiters[key] = limiter
		}
		rl.mu.Unlock()
	}
	return limiter.Allow()
}

// grpcKey derives the bucket key for an RPC according to the scope.
func (rl *rateLimiter) grpcKey(ctx context.Context) string {
	switch rl.config.Scope {
	case ScopeUser:
		if p, ok := adapters.PrincipalFromContext(ctx); ok {
			return "user:" + p.User
		}
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if users := md.Get(adapters.UserMetadataKey); len(users) > 0 {
				return "user:" + users[0]
			}
		}
		return "user:" + adapters.AnonymousUser
	case ScopePeer:
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			return "peer:" + p.Addr.String()
		}
		return "peer:unknown"
	}
	return string(ScopeGlobal)
}

// RateLimitMiddleware limits admin HTTP requests.
func RateLimitMiddleware(config *RateLimitConfig, logger adapters.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = adapters.NewDefaultLogger()
	}
	limiter := newRateLimiter(config)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if limiter.allow("peer:" + clientIP) {
			c.Next()
			return
		}

		logger.Warn(c.Request.Context(), "Rate limit exceeded",
			adapters.Field{Key: "client_ip", Value: clientIP},
			adapters.Field{Key: "path", Value: c.Request.URL.Path},
		)
		c.Header("Retry-After", "1")
		c.Header("X-RateLimit-Burst", strconv.Itoa(limiter.config.Burst))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	}
}

// RateLimitUnaryInterceptor rejects RPCs over the configured rate with
// ResourceExhausted.
func RateLimitUnaryInterceptor(config *RateLimitConfig, logger adapters.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = adapters.NewDefaultLogger()
	}
	limiter := newRateLimiter(config)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		key := limiter.grpcKey(ctx)
		if !limiter.allow(key) {
			logger.Warn(ctx, "gRPC rate limit exceeded",
				adapters.Field{Key: "method", Value: info.FullMethod},
				adapters.Field{Key: "bucket", Value: key},
			)
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}

// RateLimitStreamInterceptor is the streaming counterpart of
// RateLimitUnaryInterceptor.
func RateLimitStreamInterceptor(config *RateLimitConfig, logger adapters.Logger) grpc.StreamServerInterceptor {
	if logger == nil {
		logger = adapters.NewDefaultLogger()
	}
	limiter := newRateLimiter(config)

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		key := limiter.grpcKey(ctx)
		if !limiter.allow(key) {
			logger.Warn(ctx, "gRPC stream rate limit exceeded",
				adapters.Field{Key: "method", Value: info.FullMethod},
				adapters.Field{Key: "bucket", Value: key},
			)
			return status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(srv, ss)
	}
}
