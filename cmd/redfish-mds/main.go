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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-redfish/pkg/adapters"
	"github.com/jeremyhahn/go-redfish/pkg/audit"
	"github.com/jeremyhahn/go-redfish/pkg/common"
	"github.com/jeremyhahn/go-redfish/pkg/config"
	"github.com/jeremyhahn/go-redfish/pkg/factory"
	"github.com/jeremyhahn/go-redfish/pkg/server"
	"github.com/jeremyhahn/go-redfish/pkg/server/admin"
	grpcserver "github.com/jeremyhahn/go-redfish/pkg/server/grpc"
	"github.com/jeremyhahn/go-redfish/pkg/server/middleware"
	"github.com/jeremyhahn/go-redfish/pkg/version"
)

var v = viper.New()

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "redfish-mds",
	Short: "Redfish metadata server",
	Long: `redfish-mds serves a Redfish backend to remote clients over gRPC.

The backend is chosen by the Redfish configuration file (--config), for
example the memory, local, s3, minio, gcs or azure backend. Flags can also be set through
environment variables with the REDFISH_MDS_ prefix.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the metadata server",
	Example: `  redfish-mds serve --config /etc/redfish/backend.yaml
  redfish-mds serve --config backend.yaml --admin-addr 127.0.0.1:9090 --tls-cert mds.pem --tls-key mds-key.pem`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return fmt.Errorf("failed to bind flags: %w", err)
		}
		return serve(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "redfish-mds", version.GetInfo())
	},
}

func serve(ctx context.Context) error {
	level, err := adapters.ParseLogLevel(v.GetString("log-level"))
	if err != nil {
		return err
	}
	logger := adapters.NewLogger(os.Stderr, adapters.LogFormat(v.GetString("log-format")), level)

	backend, err := config.Load(v.GetString("config"))
	if err != nil {
		return err
	}
	if err := checkServable(backend); err != nil {
		return err
	}

	var current atomic.Pointer[config.Config]
	current.Store(backend)
	if v.GetBool("watch-config") {
		watcher, err := config.Watch(backend.Path, config.WatchOptions{
			Logger: logger,
			OnChange: func(cfg *config.Config) {
				if err := checkServable(cfg); err != nil {
					logger.Warn(context.Background(), "Ignoring configuration change", adapters.ErrorField(err))
					return
				}
				current.Store(cfg)
			},
		})
		if err != nil {
			return err
		}
		defer func() { _ = watcher.Close() }()
	}

	connect := func(ctx context.Context, user string) (common.Session, error) {
		cfg := current.Load()
		return factory.NewSession(ctx, cfg.Backend, cfg.Settings, user)
	}

	opts := []grpcserver.ServerOption{
		grpcserver.WithAddress(v.GetString("addr")),
		grpcserver.WithLogger(logger),
		grpcserver.WithSessionLimits(v.GetInt("max-sessions"), v.GetInt("max-handles")),
		grpcserver.WithSessionIdleTimeout(v.GetDuration("idle-timeout")),
		grpcserver.WithAuditLogger(audit.NewAuditLogger(&audit.Config{
			Enabled: true,
			Format:  audit.OutputFormat(v.GetString("log-format")),
			Level:   adapters.InfoLevel,
			Output:  os.Stdout,
		})),
	}
	if rps := v.GetFloat64("rate-limit"); rps > 0 {
		opts = append(opts, grpcserver.WithRateLimit(true, &middleware.RateLimitConfig{
			RequestsPerSecond: rps,
			Burst:             max(int(rps*2), 1),
			Scope:             middleware.ScopeUser,
		}))
	}
	if tokens := v.GetStringMapString("token"); len(tokens) > 0 {
		byToken := make(map[string]string, len(tokens))
		for user, token := range tokens {
			byToken[token] = user
		}
		opts = append(opts, grpcserver.WithAuthenticator(adapters.NewTokenAuthenticator(byToken)))
	}

	tlsConfig := tlsFromFlags()
	if tlsConfig != nil {
		opts = append(opts, grpcserver.WithTLS(tlsConfig))
	}

	mds, err := grpcserver.NewServer(connect, opts...)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() { errCh <- mds.Start() }()

	var adminServer *admin.Server
	if addr := v.GetString("admin-addr"); addr != "" {
		adminConfig := admin.DefaultServerConfig()
		adminConfig.Address = addr
		adminConfig.Logger = logger
		adminConfig.TLSConfig = tlsConfig
		adminServer, err = admin.NewServer(mds, adminConfig)
		if err != nil {
			mds.ForceStop()
			return err
		}
		go func() { errCh <- adminServer.Start() }()
	}

	logger.Info(ctx, "Redfish metadata server running",
		adapters.Field{Key: "backend", Value: backend.Backend},
		adapters.Field{Key: "address", Value: v.GetString("addr")},
		adapters.Field{Key: "version", Value: version.Get()},
	)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err = <-errCh:
	case <-sigCtx.Done():
		logger.Info(ctx, "Shutdown requested")
	}

	if adminServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if serr := adminServer.Shutdown(shutdownCtx); serr != nil {
			err = errors.Join(err, serr)
		}
	}
	mds.Stop()
	return err
}

// checkServable rejects backends the metadata server cannot serve.
func checkServable(cfg *config.Config) error {
	if cfg.Backend == config.BackendGRPC {
		return fmt.Errorf("%w: the metadata server cannot serve the grpc backend", common.ErrConfiguration)
	}
	return nil
}

func tlsFromFlags() *adapters.TLSConfig {
	certFile, keyFile := v.GetString("tls-cert"), v.GetString("tls-key")
	if certFile == "" || keyFile == "" {
		return nil
	}
	tlsConfig := adapters.NewTLSConfig().WithCertFiles(certFile, keyFile)
	if caFile := v.GetString("tls-ca"); caFile != "" {
		tlsConfig = tlsConfig.WithCAFile(caFile)
	}
	return tlsConfig
}

func init() {
	v.SetEnvPrefix("REDFISH_MDS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flags := serveCmd.Flags()
	flags.String("config", "", "Redfish configuration file naming the backend to serve")
	flags.String("addr", ":50051", "gRPC listen address")
	flags.Bool("watch-config", false, "reload the backend configuration when the file changes; open sessions keep their settings")
	flags.String("admin-addr", "", "admin HTTP listen address (disabled when empty)")
	flags.String("tls-cert", "", "TLS certificate file")
	flags.String("tls-key", "", "TLS key file")
	flags.String("tls-ca", "", "CA file; clients must present a certificate signed by it")
	flags.Int("max-sessions", server.MaxSessions, "maximum concurrently connected sessions")
	flags.Int("max-handles", server.MaxHandlesPerSession, "maximum open streams per session")
	flags.Duration("idle-timeout", server.DefaultSessionIdleTimeout, "disconnect sessions idle this long (0 disables)")
	flags.Float64("rate-limit", 0, "requests per second per user (0 disables)")
	flags.StringToString("token", nil, "bearer tokens as user=token pairs; enables token authentication")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "json", "log format (json, text)")

	rootCmd.AddCommand(serveCmd, versionCmd)
}
