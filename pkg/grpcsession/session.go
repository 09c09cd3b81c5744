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

// Package grpcsession implements a Redfish session backed by a remote
// metadata server.
package grpcsession

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync/atomic"
	"time"

	"github.com/jeremyhahn/go-redfish/pkg/adapters"
	"github.com/jeremyhahn/go-redfish/pkg/common"
	"github.com/jeremyhahn/go-redfish/pkg/protocol"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// Session is a remote Redfish session.
type Session struct {
	client  *protocol.MetadataClient
	conn    io.Closer
	id      string
	user    string
	md      metadata.MD
	timeout time.Duration
	closed  atomic.Bool
}

var _ common.Session = (*Session)(nil)

// Dial connects to the metadata server named by settings and opens a
// session for user. The session owns the connection.
func Dial(ctx context.Context, settings map[string]string, user string) (*Session, error) {
	opts, err := ParseSettings(settings)
	if err != nil {
		return nil, err
	}

	creds := insecure.NewCredentials()
	if opts.TLS != nil {
		tlsConfig, err := opts.TLS.BuildClient()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrConfiguration, err)
		}
		creds = credentials.NewTLS(tlsConfig)
	}

	conn, err := grpc.NewClient(opts.Address, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", common.ErrConnection, opts.Address, err)
	}

	s, err := Connect(ctx, conn, user, opts)
	if err != nil {
		_ = conn.Close() // #nosec G104 -- the connect error is more useful
		return nil, err
	}
	s.conn = conn
	return s, nil
}

// Connect opens a session over an existing connection. The caller keeps
// ownership of cc.
func Connect(ctx context.Context, cc grpc.ClientConnInterface, user string, opts *Options) (*Session, error) {
	if opts == nil {
		opts = &Options{Timeout: DefaultTimeout}
	}
	md := metadata.Pairs(adapters.UserMetadataKey, user)
	if opts.Token != "" {
		md.Set(adapters.AuthorizationMetadataKey, "Bearer "+opts.Token)
	}

	s := &Session{
		client:  protocol.NewMetadataClient(cc),
		user:    user,
		md:      md,
		timeout: opts.Timeout,
	}

	ctx, cancel := s.rpcContext(ctx)
	defer cancel()
	resp, err := s.client.Connect(ctx, &protocol.ConnectRequest{User: user})
	if err != nil {
		if errors.Is(err, common.ErrConnection) {
			return nil, err
		}
		return nil, fmt.Errorf("connect as %s: %w", user, err)
	}
	s.id = resp.SessionID
	s.user = resp.User
	return s, nil
}

// ID returns the server-side session ID.
func (s *Session) ID() string { return s.id }

// User returns the user the server assigned to the session.
func (s *Session) User() string { return s.user }

// rpcContext attaches the session metadata and, when ctx has no deadline,
// the configured timeout.
func (s *Session) rpcContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = metadata.NewOutgoingContext(ctx, s.md)
	if _, ok := ctx.Deadline(); ok || s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// invoke runs one session RPC.
func invoke[Req, Resp any](s *Session, ctx context.Context, rpc func(context.Context, *Req, ...grpc.CallOption) (*Resp, error), req *Req) (*Resp, error) {
	if s.closed.Load() {
		return nil, common.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := s.rpcContext(ctx)
	defer cancel()
	return rpc(ctx, req)
}

func (s *Session) pathRequest(p string) *protocol.PathRequest {
	return &protocol.PathRequest{SessionID: s.id, Path: p}
}

func (s *Session) Create(ctx context.Context, p string, opts common.CreateOptions) (common.WriteHandle, error) {
	resp, err := invoke(s, ctx, s.client.Create, &protocol.CreateRequest{SessionID: s.id, Path: p, Options: opts})
	if err != nil {
		return nil, err
	}
	return &writeHandle{handle: handle{session: s, id: resp.Handle}}, nil
}

func (s *Session) Open(ctx context.Context, p string) (common.ReadHandle, error) {
	resp, err := invoke(s, ctx, s.client.Open, s.pathRequest(p))
	if err != nil {
		return nil, err
	}
	return &readHandle{handle: handle{session: s, id: resp.Handle}}, nil
}

func (s *Session) Mkdirs(ctx context.Context, p string, mode fs.FileMode) (bool, error) {
	resp, err := invoke(s, ctx, s.client.Mkdirs, &protocol.MkdirsRequest{SessionID: s.id, Path: p, Mode: uint32(mode.Perm())})
	if err != nil {
		return false, err
	}
	return resp.Value, nil
}

func (s *Session) ListDirectory(ctx context.Context, p string) ([]common.FileStatus, error) {
	resp, err := invoke(s, ctx, s.client.ListDirectory, s.pathRequest(p))
	if err != nil {
		return nil, err
	}
	if resp.Entries == nil {
		return []common.FileStatus{}, nil
	}
	return resp.Entries, nil
}

func (s *Session) GetPathStatus(ctx context.Context, p string) (common.FileStatus, error) {
	resp, err := invoke(s, ctx, s.client.GetPathStatus, s.pathRequest(p))
	if err != nil {
		return common.FileStatus{}, err
	}
	return resp.Status, nil
}

func (s *Session) GetBlockLocations(ctx context.Context, p string, start, length int64) ([]common.BlockLocation, error) {
	resp, err := invoke(s, ctx, s.client.GetBlockLocations, &protocol.BlockLocationsRequest{SessionID: s.id, Path: p, Start: start, Length: length})
	if err != nil {
		return nil, err
	}
	if resp.Locations == nil {
		return []common.BlockLocation{}, nil
	}
	return resp.Locations, nil
}

func (s *Session) Unlink(ctx context.Context, p string) (bool, error) {
	resp, err := invoke(s, ctx, s.client.Unlink, s.pathRequest(p))
	if err != nil {
		return false, err
	}
	return resp.Value, nil
}

func (s *Session) UnlinkTree(ctx context.Context, p string) (bool, error) {
	resp, err := invoke(s, ctx, s.client.UnlinkTree, s.pathRequest(p))
	if err != nil {
		return false, err
	}
	return resp.Value, nil
}

func (s *Session) Rename(ctx context.Context, src, dst string) error {
	_, err := invoke(s, ctx, s.client.Rename, &protocol.RenameRequest{SessionID: s.id, Src: src, Dst: dst})
	return err
}

func (s *Session) Chmod(ctx context.Context, p string, mode fs.FileMode) error {
	_, err := invoke(s, ctx, s.client.Chmod, &protocol.ChmodRequest{SessionID: s.id, Path: p, Mode: uint32(mode.Perm())})
	return err
}

func (s *Session) Chown(ctx context.Context, p, owner, group string) error {
	_, err := invoke(s, ctx, s.client.Chown, &protocol.ChownRequest{SessionID: s.id, Path: p, Owner: owner, Group: group})
	return err
}

func (s *Session) SetTimes(ctx context.Context, p string, mtime, atime time.Time) error {
	_, err := invoke(s, ctx, s.client.SetTimes, &protocol.SetTimesRequest{SessionID: s.id, Path: p, ModTime: mtime, AccessTime: atime})
	return err
}

// Disconnect ends the server-side session, which closes its open handles,
// and releases the connection when the session owns it. Later calls are
// no-ops.
func (s *Session) Disconnect(ctx context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	rpcCtx, cancel := s.rpcContext(ctx)
	defer cancel()
	_, err := s.client.Disconnect(rpcCtx, &protocol.SessionRequest{SessionID: s.id})
	if s.conn != nil {
		err = errors.Join(err, s.conn.Close())
	}
	return err
}
