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

// Package admin serves the read-only HTTP endpoints of the metadata
// server: health, metrics and version.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jeremyhahn/go-redfish/pkg/adapters"
	"github.com/jeremyhahn/go-redfish/pkg/audit"
	"github.com/jeremyhahn/go-redfish/pkg/server/middleware"
)

// StatusSource reports the state of the metadata server.
// *grpc.Server implements it.
type StatusSource interface {
	GetMetrics() map[string]any
	SessionCount() int
}

// ServerConfig holds admin server configuration.
type ServerConfig struct {
	// Address is the host:port to listen on (default: "127.0.0.1:9090")
	Address string

	// EnableRateLimit enables rate limiting middleware
	EnableRateLimit bool

	// RateLimitConfig is the rate limiting configuration
	RateLimitConfig *middleware.RateLimitConfig

	// SecurityHeadersConfig is the security headers configuration
	SecurityHeadersConfig *middleware.SecurityHeadersConfig

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Mode sets the Gin mode: "debug", "release", or "test" (default: "release")
	Mode string

	Logger      adapters.Logger
	AuditLogger audit.AuditLogger
	TLSConfig   *adapters.TLSConfig
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:               "127.0.0.1:9090",
		RateLimitConfig:       middleware.DefaultRateLimitConfig(),
		SecurityHeadersConfig: middleware.DefaultSecurityHeadersConfig(),
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           60 * time.Second,
		Mode:                  gin.ReleaseMode,
		Logger:                adapters.NewDefaultLogger(),
		AuditLogger:           audit.NewNoOpAuditLogger(),
	}
}

// Server is the admin HTTP server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     *ServerConfig
	started    time.Time
}

// NewServer creates an admin server reporting on source.
func NewServer(source StatusSource, config *ServerConfig) (*Server, error) {
	if source == nil {
		return nil, errors.New("admin: status source is required")
	}
	if config == nil {
		config = DefaultServerConfig()
	}
	if config.Logger == nil {
		config.Logger = adapters.NewDefaultLogger()
	}
	if config.AuditLogger == nil {
		config.AuditLogger = audit.NewNoOpAuditLogger()
	}
	if config.Mode == "" {
		config.Mode = gin.ReleaseMode
	}

	gin.SetMode(config.Mode)
	router := gin.New()

	// recovery → request ID → rate limit → security headers → audit → logging
	router.Use(RecoveryMiddleware(config.Logger))
	router.Use(middleware.RequestIDMiddleware())
	if config.EnableRateLimit {
		router.Use(middleware.RateLimitMiddleware(config.RateLimitConfig, config.Logger))
	}
	router.Use(middleware.SecurityHeadersMiddleware(config.SecurityHeadersConfig))
	router.Use(audit.AuditMiddleware(config.AuditLogger))
	router.Use(LoggingMiddleware(config.Logger))

	s := &Server{
		router: router,
		config: config,
		httpServer: &http.Server{
			Addr:              config.Address,
			Handler:           router,
			ReadTimeout:       config.ReadTimeout,
			ReadHeaderTimeout: config.ReadTimeout,
			WriteTimeout:      config.WriteTimeout,
			IdleTimeout:       config.IdleTimeout,
		},
		started: time.Now(),
	}
	setupRoutes(router, &handler{source: source, started: s.started})
	return s, nil
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("admin: listen on %s: %w", s.config.Address, err)
	}
	return s.Serve(listener)
}

// Serve serves on listener until Shutdown.
func (s *Server) Serve(listener net.Listener) error {
	if s.config.TLSConfig != nil {
		tlsConfig, err := s.config.TLSConfig.Build()
		if err != nil {
			_ = listener.Close()
			return err
		}
		s.httpServer.TLSConfig = tlsConfig

		s.config.Logger.Info(context.Background(), "Starting admin server with TLS",
			adapters.Field{Key: "address", Value: listener.Addr().String()},
		)
		err = s.httpServer.ServeTLS(listener, "", "")
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}

	s.config.Logger.Info(context.Background(), "Starting admin server",
		adapters.Field{Key: "address", Value: listener.Addr().String()},
	)
	err := s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.config.Logger.Info(ctx, "Shutting down admin server")
	return s.httpServer.Shutdown(ctx)
}

// Router returns the underlying Gin router.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.httpServer.Addr
}
