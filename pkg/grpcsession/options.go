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

package grpcsession

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jeremyhahn/go-redfish/pkg/adapters"
	"github.com/jeremyhahn/go-redfish/pkg/common"
)

const (
	// DefaultAddress is dialed when the settings name no address.
	DefaultAddress = "localhost:50051"

	// DefaultTimeout bounds each RPC whose context carries no deadline.
	DefaultTimeout = 30 * time.Second
)

// Options configure the connection to a metadata server.
type Options struct {
	Address string
	Timeout time.Duration

	// Token is sent as a bearer token when set.
	Token string

	// TLS is nil for plaintext connections.
	TLS *adapters.TLSConfig
}

// ParseSettings reads Options from the flattened "grpc" section of a
// configuration file.
func ParseSettings(settings map[string]string) (*Options, error) {
	opts := &Options{
		Address: settings["address"],
		Timeout: DefaultTimeout,
		Token:   settings["token"],
	}
	if opts.Address == "" {
		opts.Address = DefaultAddress
	}

	if v := settings["timeout"]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("%w: invalid grpc timeout %q", common.ErrConfiguration, v)
		}
		opts.Timeout = d
	}

	mode := adapters.ParseTLSMode(settings["tls.mode"])
	if mode == adapters.TLSModeDisabled {
		return opts, nil
	}
	tlsConfig := adapters.NewTLSConfig()
	tlsConfig.Mode = mode
	tlsConfig.CAFile = settings["tls.ca_file"]
	tlsConfig.CertFile = settings["tls.cert_file"]
	tlsConfig.KeyFile = settings["tls.key_file"]
	tlsConfig.ServerName = settings["tls.server_name"]
	if v := settings["tls.insecure_skip_verify"]; v != "" {
		skip, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid tls.insecure_skip_verify %q", common.ErrConfiguration, v)
		}
		tlsConfig.InsecureSkipVerify = skip
	}
	opts.TLS = tlsConfig
	return opts, nil
}
