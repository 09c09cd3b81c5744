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

// Package client owns one Redfish session. It enforces the connection
// lifecycle, validates paths before they reach the session and maps session
// failures onto the common error taxonomy.
package client

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/jeremyhahn/go-redfish/pkg/adapters"
	"github.com/jeremyhahn/go-redfish/pkg/common"
	"github.com/jeremyhahn/go-redfish/pkg/config"
	"github.com/jeremyhahn/go-redfish/pkg/factory"
)

// Dialer opens a session for user from a parsed configuration.
type Dialer interface {
	Dial(ctx context.Context, cfg *config.Config, user string) (common.Session, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, cfg *config.Config, user string) (common.Session, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, cfg *config.Config, user string) (common.Session, error) {
	return f(ctx, cfg, user)
}

// FactoryDialer builds sessions through the backend registry.
var FactoryDialer Dialer = DialerFunc(func(ctx context.Context, cfg *config.Config, user string) (common.Session, error) {
	return factory.NewSession(ctx, cfg.Backend, cfg.Settings, user)
})

type state int

const (
	stateIdle state = iota
	stateConnected
	stateDisconnected
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Client is the single point of contact with a Redfish session. A Client
// connects once; after Disconnect every operation fails with
// common.ErrNotConnected.
type Client struct {
	dialer Dialer
	logger adapters.Logger

	mu      sync.RWMutex
	state   state
	session common.Session
	user    string
}

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the backend registry as the source of sessions.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger adapters.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a disconnected client.
func New(opts ...Option) *Client {
	c := &Client{
		dialer: FactoryDialer,
		logger: adapters.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect loads the Redfish configuration file and opens a session for user.
func (c *Client) Connect(ctx context.Context, configFile, user string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	return c.ConnectConfig(ctx, cfg, user)
}

// ConnectHost opens a session for user against the metadata server at
// host:port.
func (c *Client) ConnectHost(ctx context.Context, host string, port int, user string) error {
	if host == "" || port <= 0 || port > 65535 {
		return fmt.Errorf("%w: invalid metadata server %q port %d", common.ErrConfiguration, host, port)
	}
	return c.ConnectConfig(ctx, config.ForHost(host, port), user)
}

// ConnectConfig opens a session for user from an already parsed
// configuration.
func (c *Client) ConnectConfig(ctx context.Context, cfg *config.Config, user string) error {
	if cfg == nil {
		return fmt.Errorf("%w: configuration is nil", common.ErrConfiguration)
	}
	if err := common.ValidateUser("user", user); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateIdle {
		return fmt.Errorf("%w: client is %s", common.ErrIllegalState, c.state)
	}

	session, err := c.dialer.Dial(ctx, cfg, user)
	if err != nil {
		c.logger.Warn(ctx, "Redfish connect failed",
			adapters.Field{Key: "backend", Value: cfg.Backend},
			adapters.Field{Key: "user", Value: user},
			adapters.ErrorField(err),
		)
		if errors.Is(err, common.ErrConfiguration) || errors.Is(err, common.ErrConnection) {
			return err
		}
		return fmt.Errorf("%w: %w", common.ErrConnection, err)
	}

	c.session = session
	c.user = user
	c.state = stateConnected
	c.logger.Info(ctx, "Redfish session connected",
		adapters.Field{Key: "backend", Value: cfg.Backend},
		adapters.Field{Key: "user", Value: user},
	)
	return nil
}

// Disconnect releases the session. Disconnecting an idle client fails with
// common.ErrNotConnected; a second Disconnect is a no-op.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateIdle:
		return common.ErrNotConnected
	case stateDisconnected:
		return nil
	}

	session := c.session
	c.session = nil
	c.state = stateDisconnected

	if err := session.Disconnect(ctx); err != nil {
		c.logger.Warn(ctx, "Redfish disconnect failed",
			adapters.Field{Key: "user", Value: c.user},
			adapters.ErrorField(err),
		)
		return common.Classify(err)
	}
	c.logger.Info(ctx, "Redfish session disconnected", adapters.Field{Key: "user", Value: c.user})
	return nil
}

// Connected reports whether the client holds a live session.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == stateConnected
}

// User returns the user the session was opened for.
func (c *Client) User() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// begin returns the live session after validating paths. Nothing reaches
// the session when either check fails.
func (c *Client) begin(op, target string, paths ...string) (common.Session, error) {
	c.mu.RLock()
	session, connected := c.session, c.state == stateConnected
	c.mu.RUnlock()

	if !connected {
		return nil, &common.PathError{Op: op, Path: target, Err: common.ErrNotConnected}
	}
	for _, p := range paths {
		if err := common.ValidatePath(p); err != nil {
			return nil, &common.PathError{Op: op, Path: target, Err: err}
		}
	}
	return session, nil
}

// fail classifies a session error and records it at debug level.
func (c *Client) fail(ctx context.Context, op, target string, err error) error {
	if err == nil {
		return nil
	}
	c.logger.Debug(ctx, "Redfish operation failed",
		adapters.Field{Key: "op", Value: op},
		adapters.Field{Key: "path", Value: target},
		adapters.ErrorField(err),
	)
	return common.NewPathError(op, target, err)
}

// Create opens a new file for writing.
func (c *Client) Create(ctx context.Context, p string, opts common.CreateOptions) (common.WriteHandle, error) {
	session, err := c.begin("create", p, p)
	if err != nil {
		return nil, err
	}
	h, err := session.Create(ctx, p, opts)
	if err != nil {
		return nil, c.fail(ctx, "create", p, err)
	}
	return h, nil
}

// Open opens an existing file for reading.
func (c *Client) Open(ctx context.Context, p string) (common.ReadHandle, error) {
	session, err := c.begin("open", p, p)
	if err != nil {
		return nil, err
	}
	h, err := session.Open(ctx, p)
	if err != nil {
		return nil, c.fail(ctx, "open", p, err)
	}
	return h, nil
}

// Mkdirs creates p and any missing parents. It reports whether a directory
// was created.
func (c *Client) Mkdirs(ctx context.Context, p string, mode fs.FileMode) (bool, error) {
	session, err := c.begin("mkdirs", p, p)
	if err != nil {
		return false, err
	}
	created, err := session.Mkdirs(ctx, p, mode)
	return created, c.fail(ctx, "mkdirs", p, err)
}

// ListDirectory returns the entries of directory p sorted by name.
func (c *Client) ListDirectory(ctx context.Context, p string) ([]common.FileStatus, error) {
	session, err := c.begin("list", p, p)
	if err != nil {
		return nil, err
	}
	entries, err := session.ListDirectory(ctx, p)
	if err != nil {
		return nil, c.fail(ctx, "list", p, err)
	}
	if entries == nil {
		entries = []common.FileStatus{}
	}
	return entries, nil
}

// GetPathStatus returns the status of p.
func (c *Client) GetPathStatus(ctx context.Context, p string) (common.FileStatus, error) {
	session, err := c.begin("stat", p, p)
	if err != nil {
		return common.FileStatus{}, err
	}
	st, err := session.GetPathStatus(ctx, p)
	if err != nil {
		return common.FileStatus{}, c.fail(ctx, "stat", p, err)
	}
	return st, nil
}

// GetBlockLocations returns the blocks of p overlapping [start, start+length).
func (c *Client) GetBlockLocations(ctx context.Context, p string, start, length int64) ([]common.BlockLocation, error) {
	session, err := c.begin("locate", p, p)
	if err != nil {
		return nil, err
	}
	if start < 0 || length < 0 {
		return nil, &common.PathError{
			Op:   "locate",
			Path: p,
			Err:  fmt.Errorf("%w: negative start %d or length %d", common.ErrInvalidArgument, start, length),
		}
	}
	locs, err := session.GetBlockLocations(ctx, p, start, length)
	if err != nil {
		return nil, c.fail(ctx, "locate", p, err)
	}
	if locs == nil {
		locs = []common.BlockLocation{}
	}
	return locs, nil
}

// Unlink removes a file or an empty directory. A missing path reports
// false without an error.
func (c *Client) Unlink(ctx context.Context, p string) (bool, error) {
	return c.remove(ctx, "unlink", p, false)
}

// UnlinkTree removes p and everything below it.
func (c *Client) UnlinkTree(ctx context.Context, p string) (bool, error) {
	return c.remove(ctx, "unlink_tree", p, true)
}

func (c *Client) remove(ctx context.Context, op, p string, recursive bool) (bool, error) {
	session, err := c.begin(op, p, p)
	if err != nil {
		return false, err
	}
	var removed bool
	if recursive {
		removed, err = session.UnlinkTree(ctx, p)
	} else {
		removed, err = session.Unlink(ctx, p)
	}
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	return removed, c.fail(ctx, op, p, err)
}

// Rename moves src to dst. An existing directory at dst receives src.
func (c *Client) Rename(ctx context.Context, src, dst string) error {
	target := src + " -> " + dst
	session, err := c.begin("rename", target, src, dst)
	if err != nil {
		return err
	}
	return c.fail(ctx, "rename", target, session.Rename(ctx, src, dst))
}

// Chmod sets the permission bits of p.
func (c *Client) Chmod(ctx context.Context, p string, mode fs.FileMode) error {
	session, err := c.begin("chmod", p, p)
	if err != nil {
		return err
	}
	return c.fail(ctx, "chmod", p, session.Chmod(ctx, p, mode.Perm()))
}

// Chown sets the owner and group of p. Empty values are left unchanged.
func (c *Client) Chown(ctx context.Context, p, owner, group string) error {
	session, err := c.begin("chown", p, p)
	if err != nil {
		return err
	}
	if owner != "" {
		if err := common.ValidateUser("owner", owner); err != nil {
			return &common.PathError{Op: "chown", Path: p, Err: err}
		}
	}
	if group != "" {
		if err := common.ValidateUser("group", group); err != nil {
			return &common.PathError{Op: "chown", Path: p, Err: err}
		}
	}
	return c.fail(ctx, "chown", p, session.Chown(ctx, p, owner, group))
}

// SetTimes sets the modification and access times of p. A zero time leaves
// that timestamp unchanged.
func (c *Client) SetTimes(ctx context.Context, p string, mtime, atime time.Time) error {
	session, err := c.begin("set_times", p, p)
	if err != nil {
		return err
	}
	return c.fail(ctx, "set_times", p, session.SetTimes(ctx, p, mtime, atime))
}
