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

package adapters

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"
)

var (
	// ErrInvalidCertificate is returned when a certificate is invalid.
	ErrInvalidCertificate = errors.New("invalid certificate")

	// ErrInvalidCAPool is returned when the CA pool is invalid.
	ErrInvalidCAPool = errors.New("invalid CA pool")
)

// TLSMode defines the TLS configuration mode.
type TLSMode int

const (
	// TLSModeDisabled disables TLS entirely.
	TLSModeDisabled TLSMode = iota

	// TLSModeServer enables TLS with server certificate only.
	TLSModeServer

	// TLSModeMutual enables mTLS (mutual TLS) requiring client certificates.
	TLSModeMutual
)

// String returns the configuration name of the mode.
func (m TLSMode) String() string {
	switch m {
	case TLSModeServer:
		return "server"
	case TLSModeMutual:
		return "mutual"
	default:
		return "disabled"
	}
}

// ParseTLSMode converts "disabled", "server" or "mutual" into a TLSMode.
// Unknown values disable TLS.
func ParseTLSMode(s string) TLSMode {
	switch s {
	case "server", "tls":
		return TLSModeServer
	case "mutual", "mtls":
		return TLSModeMutual
	default:
		return TLSModeDisabled
	}
}

// TLSConfig describes one side of a TLS connection between a Redfish client
// and metadata server. The same description builds either side: CertFile and
// KeyFile are the local identity, CAFile verifies the peer.
type TLSConfig struct {
	// Mode specifies the TLS mode (disabled, server, mutual).
	Mode TLSMode

	// CertFile is the local certificate (PEM).
	CertFile string

	// KeyFile is the local private key (PEM).
	KeyFile string

	// CertPEM and KeyPEM are alternatives to the file fields.
	CertPEM []byte
	KeyPEM  []byte

	// CAFile holds the CA used to verify the peer (PEM).
	CAFile string

	// CAPEM is an alternative to CAFile.
	CAPEM []byte

	// ServerName overrides the name checked against the server certificate.
	ServerName string

	// MinVersion specifies the minimum TLS version (default: TLS 1.2).
	MinVersion uint16

	// InsecureSkipVerify disables peer verification. Test use only.
	InsecureSkipVerify bool
}

// NewTLSConfig creates a TLS configuration with secure defaults.
func NewTLSConfig() *TLSConfig {
	return &TLSConfig{
		Mode:       TLSModeDisabled,
		MinVersion: tls.VersionTLS12,
	}
}

// WithCertFiles sets the local certificate and key and enables TLS.
func (c *TLSConfig) WithCertFiles(certFile, keyFile string) *TLSConfig {
	if c.Mode == TLSModeDisabled {
		c.Mode = TLSModeServer
	}
	c.CertFile = certFile
	c.KeyFile = keyFile
	return c
}

// WithCAFile sets the peer CA and enables mutual TLS.
func (c *TLSConfig) WithCAFile(caFile string) *TLSConfig {
	c.Mode = TLSModeMutual
	c.CAFile = caFile
	return c
}

// Build creates the server-side *tls.Config. It returns nil when TLS is disabled.
func (c *TLSConfig) Build() (*tls.Config, error) {
	if c.Mode == TLSModeDisabled {
		return nil, nil
	}

	cert, err := c.certificate()
	if err != nil {
		return nil, err
	}
	if cert == nil {
		return nil, ErrInvalidCertificate
	}

	config := &tls.Config{
		MinVersion:   c.minVersion(),
		Certificates: []tls.Certificate{*cert},
	}

	if c.Mode == TLSModeMutual {
		pool, err := c.caPool()
		if err != nil {
			return nil, err
		}
		if pool == nil {
			return nil, ErrInvalidCAPool
		}
		config.ClientCAs = pool
		config.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return config, nil
}

// BuildClient creates the client-side *tls.Config. It returns nil when TLS is
// disabled. A client certificate is only presented in mutual mode.
func (c *TLSConfig) BuildClient() (*tls.Config, error) {
	if c.Mode == TLSModeDisabled {
		return nil, nil
	}

	config := &tls.Config{
		MinVersion:         c.minVersion(),
		ServerName:         c.ServerName,
		InsecureSkipVerify: c.InsecureSkipVerify, // #nosec G402 -- opt-in for test clusters
	}

	pool, err := c.caPool()
	if err != nil {
		return nil, err
	}
	config.RootCAs = pool

	if c.Mode == TLSModeMutual {
		cert, err := c.certificate()
		if err != nil {
			return nil, err
		}
		if cert == nil {
			return nil, ErrInvalidCertificate
		}
		config.Certificates = []tls.Certificate{*cert}
	}

	return config, nil
}

func (c *TLSConfig) minVersion() uint16 {
	if c.MinVersion == 0 {
		return tls.VersionTLS12
	}
	return c.MinVersion
}

// certificate loads the local key pair, or returns nil when none is configured.
func (c *TLSConfig) certificate() (*tls.Certificate, error) {
	var (
		cert tls.Certificate
		err  error
	)
	switch {
	case len(c.CertPEM) > 0 && len(c.KeyPEM) > 0:
		cert, err = tls.X509KeyPair(c.CertPEM, c.KeyPEM)
	case c.CertFile != "" && c.KeyFile != "":
		cert, err = tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, ErrInvalidCertificate
	}
	return &cert, nil
}

// caPool loads the peer CA, or returns nil when none is configured.
func (c *TLSConfig) caPool() (*x509.CertPool, error) {
	data := c.CAPEM
	if len(data) == 0 && c.CAFile != "" {
		var err error
		data, err = os.ReadFile(c.CAFile)
		if err != nil {
			return nil, ErrInvalidCAPool
		}
	}
	if len(data) == 0 {
		return nil, nil
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, ErrInvalidCAPool
	}
	return pool, nil
}
