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

// Package config loads the Redfish client configuration file.
//
// The file is YAML (any format viper understands works) and names the
// session backend plus a section of settings for it:
//
//	backend: grpc
//	grpc:
//	  address: mds.example:50051
//	  timeout: 30s
//	  tls:
//	    mode: server
//	    ca_file: /etc/redfish/ca.pem
//	log:
//	  level: info
//
// Keys present in the file or in the defaults can be overridden from the
// environment with the REDFISH_ prefix, for example REDFISH_GRPC_ADDRESS.
package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jeremyhahn/go-redfish/pkg/common"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment overrides.
	EnvPrefix = "REDFISH"

	// BackendGRPC is the remote metadata server backend.
	BackendGRPC = "grpc"

	// DefaultBackend is used when the file does not name one.
	DefaultBackend = BackendGRPC

	// DefaultAddress is the metadata server address used by the grpc backend.
	DefaultAddress = "localhost:50051"
)

// ErrBackendNotSet is returned when no backend is configured.
var ErrBackendNotSet = errors.New("backend not set")

// Config is a parsed Redfish configuration file.
type Config struct {
	// Backend names the session implementation (grpc, local, memory, s3).
	Backend string

	// Settings holds the keys of the backend's section, flattened with dots
	// ("tls.mode") and lower-cased.
	Settings map[string]string

	// LogLevel and LogFormat configure the client logger.
	LogLevel  string
	LogFormat string

	// Path is the file the configuration was read from, if any.
	Path string
}

// New returns a viper instance with the Redfish defaults and environment
// binding applied.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("backend", DefaultBackend)
	v.SetDefault("grpc.address", DefaultAddress)
	v.SetDefault("grpc.timeout", "30s")
	v.SetDefault("local.base", "/tmp/stub_base")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the configuration file at path. A missing or unreadable file is
// a configuration error.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: configuration file path is empty", common.ErrConfiguration)
	}

	v := New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", common.ErrConfiguration, path, err)
	}

	cfg, err := FromViper(v)
	if err != nil {
		return nil, err
	}
	cfg.Path = path
	return cfg, nil
}

// FromViper extracts a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	backend := strings.ToLower(strings.TrimSpace(v.GetString("backend")))
	if backend == "" {
		return nil, fmt.Errorf("%w: %w", common.ErrConfiguration, ErrBackendNotSet)
	}

	return &Config{
		Backend:   backend,
		Settings:  sectionSettings(v, backend),
		LogLevel:  v.GetString("log.level"),
		LogFormat: v.GetString("log.format"),
	}, nil
}

// ForHost builds the configuration of the legacy host/port connection mode:
// the grpc backend aimed at host:port.
func ForHost(host string, port int) *Config {
	return &Config{
		Backend: BackendGRPC,
		Settings: map[string]string{
			"address": net.JoinHostPort(host, strconv.Itoa(port)),
		},
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Get returns a backend setting or def when it is unset.
func (c *Config) Get(key, def string) string {
	if v, ok := c.Settings[key]; ok && v != "" {
		return v
	}
	return def
}

func sectionSettings(v *viper.Viper, section string) map[string]string {
	prefix := section + "."
	settings := make(map[string]string)
	for _, key := range v.AllKeys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		settings[strings.TrimPrefix(key, prefix)] = v.GetString(key)
	}
	return settings
}
