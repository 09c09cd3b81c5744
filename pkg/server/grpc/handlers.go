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
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/jeremyhahn/go-redfish/pkg/adapters"
	"github.com/jeremyhahn/go-redfish/pkg/common"
	"github.com/jeremyhahn/go-redfish/pkg/protocol"
	"github.com/jeremyhahn/go-redfish/pkg/server"
)

// metadataService implements protocol.MetadataServer on top of the
// server's session table.
type metadataService struct {
	server *Server
}

var _ protocol.MetadataServer = (*metadataService)(nil)

// callPath runs fn against the caller's session after validating path,
// and converts any error to a gRPC status.
func callPath[Resp any](m *metadataService, ctx context.Context, sessionID, path string, fn func(*remoteSession) (*Resp, error)) (*Resp, error) {
	rs, err := m.server.sessions.lookup(ctx, sessionID)
	if err != nil {
		return nil, protocol.ToStatus(err)
	}
	if err := common.ValidatePath(path); err != nil {
		return nil, protocol.ToStatus(err)
	}
	resp, err := fn(rs)
	if err != nil {
		return nil, protocol.ToStatus(err)
	}
	return resp, nil
}

// callHandle resolves an open handle of type H.
func callHandle[H, Resp any](m *metadataService, ctx context.Context, sessionID, handleID string, fn func(*remoteSession, H) (*Resp, error)) (*Resp, error) {
	rs, err := m.server.sessions.lookup(ctx, sessionID)
	if err != nil {
		return nil, protocol.ToStatus(err)
	}
	h, err := rs.handle(handleID)
	if err != nil {
		return nil, protocol.ToStatus(err)
	}
	typed, ok := h.(H)
	if !ok {
		return nil, protocol.ToStatus(fmt.Errorf("%w: handle does not support this operation", common.ErrInvalidArgument))
	}
	resp, err := fn(rs, typed)
	if err != nil {
		return nil, protocol.ToStatus(err)
	}
	return resp, nil
}

func (m *metadataService) Connect(ctx context.Context, req *protocol.ConnectRequest) (*protocol.ConnectResponse, error) {
	user := req.User
	if p, ok := adapters.PrincipalFromContext(ctx); ok && (!anonymous(p) || user == "") {
		user = p.User
	}
	if err := common.ValidateUser("user", user); err != nil {
		return nil, protocol.ToStatus(err)
	}

	session, err := m.server.connect(ctx, user)
	if err != nil {
		return nil, protocol.ToStatus(err)
	}
	rs, err := m.server.sessions.add(user, session)
	if err != nil {
		_ = session.Disconnect(ctx) // #nosec G104 -- the session was never handed out
		return nil, protocol.ToStatus(err)
	}
	return &protocol.ConnectResponse{SessionID: rs.id, User: user}, nil
}

// Disconnect is idempotent: unknown sessions report success.
func (m *metadataService) Disconnect(ctx context.Context, req *protocol.SessionRequest) (*protocol.Empty, error) {
	if _, err := m.server.sessions.lookup(ctx, req.SessionID); err != nil {
		if errors.Is(err, common.ErrNotConnected) {
			return &protocol.Empty{}, nil
		}
		return nil, protocol.ToStatus(err)
	}
	rs, ok := m.server.sessions.remove(req.SessionID)
	if !ok {
		return &protocol.Empty{}, nil
	}
	if err := rs.close(ctx); err != nil {
		return nil, protocol.ToStatus(err)
	}
	return &protocol.Empty{}, nil
}

func (m *metadataService) Create(ctx context.Context, req *protocol.CreateRequest) (*protocol.HandleResponse, error) {
	return callPath(m, ctx, req.SessionID, req.Path, func(rs *remoteSession) (*protocol.HandleResponse, error) {
		h, err := rs.session.Create(ctx, req.Path, req.Options)
		if err != nil {
			return nil, err
		}
		id, err := rs.addHandle(h, m.server.opts.MaxHandlesPerSession)
		if err != nil {
			_ = h.Close(ctx) // #nosec G104 -- over the handle limit
			return nil, err
		}
		return &protocol.HandleResponse{Handle: id}, nil
	})
}

func (m *metadataService) Open(ctx context.Context, req *protocol.PathRequest) (*protocol.HandleResponse, error) {
	return callPath(m, ctx, req.SessionID, req.Path, func(rs *remoteSession) (*protocol.HandleResponse, error) {
		h, err := rs.session.Open(ctx, req.Path)
		if err != nil {
			return nil, err
		}
		id, err := rs.addHandle(h, m.server.opts.MaxHandlesPerSession)
		if err != nil {
			_ = h.Close(ctx) // #nosec G104 -- over the handle limit
			return nil, err
		}
		return &protocol.HandleResponse{Handle: id}, nil
	})
}

func (m *metadataService) Mkdirs(ctx context.Context, req *protocol.MkdirsRequest) (*protocol.BoolResponse, error) {
	return callPath(m, ctx, req.SessionID, req.Path, func(rs *remoteSession) (*protocol.BoolResponse, error) {
		created, err := rs.session.Mkdirs(ctx, req.Path, fs.FileMode(req.Mode).Perm())
		return &protocol.BoolResponse{Value: created}, err
	})
}

func (m *metadataService) ListDirectory(ctx context.Context, req *protocol.PathRequest) (*protocol.ListResponse, error) {
	return callPath(m, ctx, req.SessionID, req.Path, func(rs *remoteSession) (*protocol.ListResponse, error) {
		entries, err := rs.session.ListDirectory(ctx, req.Path)
		return &protocol.ListResponse{Entries: entries}, err
	})
}

func (m *metadataService) GetPathStatus(ctx context.Context, req *protocol.PathRequest) (*protocol.StatusResponse, error) {
	return callPath(m, ctx, req.SessionID, req.Path, func(rs *remoteSession) (*protocol.StatusResponse, error) {
		st, err := rs.session.GetPathStatus(ctx, req.Path)
		return &protocol.StatusResponse{Status: st}, err
	})
}

func (m *metadataService) GetBlockLocations(ctx context.Context, req *protocol.BlockLocationsRequest) (*protocol.BlockLocationsResponse, error) {
	return callPath(m, ctx, req.SessionID, req.Path, func(rs *remoteSession) (*protocol.BlockLocationsResponse, error) {
		locs, err := rs.session.GetBlockLocations(ctx, req.Path, req.Start, req.Length)
		return &protocol.BlockLocationsResponse{Locations: locs}, err
	})
}

func (m *metadataService) Unlink(ctx context.Context, req *protocol.PathRequest) (*protocol.BoolResponse, error) {
	return callPath(m, ctx, req.SessionID, req.Path, func(rs *remoteSession) (*protocol.BoolResponse, error) {
		removed, err := rs.session.Unlink(ctx, req.Path)
		return &protocol.BoolResponse{Value: removed}, err
	})
}

func (m *metadataService) UnlinkTree(ctx context.Context, req *protocol.PathRequest) (*protocol.BoolResponse, error) {
	return callPath(m, ctx, req.SessionID, req.Path, func(rs *remoteSession) (*protocol.BoolResponse, error) {
		removed, err := rs.session.UnlinkTree(ctx, req.Path)
		return &protocol.BoolResponse{Value: removed}, err
	})
}

func (m *metadataService) Rename(ctx context.Context, req *protocol.RenameRequest) (*protocol.Empty, error) {
	return callPath(m, ctx, req.SessionID, req.Src, func(rs *remoteSession) (*protocol.Empty, error) {
		if err := common.ValidatePath(req.Dst); err != nil {
			return nil, err
		}
		return &protocol.Empty{}, rs.session.Rename(ctx, req.Src, req.Dst)
	})
}

func (m *metadataService) Chmod(ctx context.Context, req *protocol.ChmodRequest) (*protocol.Empty, error) {
	return callPath(m, ctx, req.SessionID, req.Path, func(rs *remoteSession) (*protocol.Empty, error) {
		return &protocol.Empty{}, rs.session.Chmod(ctx, req.Path, fs.FileMode(req.Mode).Perm())
	})
}

func (m *metadataService) Chown(ctx context.Context, req *protocol.ChownRequest) (*protocol.Empty, error) {
	return callPath(m, ctx, req.SessionID, req.Path, func(rs *remoteSession) (*protocol.Empty, error) {
		return &protocol.Empty{}, rs.session.Chown(ctx, req.Path, req.Owner, req.Group)
	})
}

func (m *metadataService) SetTimes(ctx context.Context, req *protocol.SetTimesRequest) (*protocol.Empty, error) {
	return callPath(m, ctx, req.SessionID, req.Path, func(rs *remoteSession) (*protocol.Empty, error) {
		return &protocol.Empty{}, rs.session.SetTimes(ctx, req.Path, req.ModTime, req.AccessTime)
	})
}

func (m *metadataService) Write(ctx context.Context, req *protocol.WriteRequest) (*protocol.CountResponse, error) {
	if len(req.Data) > server.MaxWriteSize {
		return nil, protocol.ToStatus(fmt.Errorf("%w: write of %d bytes exceeds %d", common.ErrInvalidArgument, len(req.Data), server.MaxWriteSize))
	}
	return callHandle(m, ctx, req.SessionID, req.Handle, func(rs *remoteSession, h common.WriteHandle) (*protocol.CountResponse, error) {
		n, err := h.Write(ctx, req.Data)
		m.server.metrics.bytesWritten.Add(uint64(n))
		return &protocol.CountResponse{N: int64(n)}, err
	})
}

func (m *metadataService) Flush(ctx context.Context, req *protocol.HandleRequest) (*protocol.Empty, error) {
	return callHandle(m, ctx, req.SessionID, req.Handle, func(rs *remoteSession, h common.WriteHandle) (*protocol.Empty, error) {
		return &protocol.Empty{}, h.Flush(ctx)
	})
}

// Read serves both cursor and positioned reads. End of file is reported
// in the response rather than as an error.
func (m *metadataService) Read(ctx context.Context, req *protocol.ReadRequest) (*protocol.ReadResponse, error) {
	if req.Length < 0 || req.Offset < 0 {
		return nil, protocol.ToStatus(fmt.Errorf("%w: negative read length or offset", common.ErrInvalidArgument))
	}
	length := min(req.Length, server.MaxReadSize)
	return callHandle(m, ctx, req.SessionID, req.Handle, func(rs *remoteSession, h common.ReadHandle) (*protocol.ReadResponse, error) {
		buf := make([]byte, length)
		var n int
		var err error
		if req.Positioned {
			n, err = h.PRead(ctx, buf, req.Offset)
		} else {
			n, err = h.Read(ctx, buf)
		}
		m.server.metrics.bytesRead.Add(uint64(n))
		if errors.Is(err, io.EOF) {
			return &protocol.ReadResponse{Data: buf[:n], EOF: n == 0}, nil
		}
		if err != nil {
			return nil, err
		}
		return &protocol.ReadResponse{Data: buf[:n]}, nil
	})
}

func (m *metadataService) Seek(ctx context.Context, req *protocol.SeekRequest) (*protocol.Empty, error) {
	return callHandle(m, ctx, req.SessionID, req.Handle, func(rs *remoteSession, h common.ReadHandle) (*protocol.Empty, error) {
		return &protocol.Empty{}, h.Seek(ctx, req.Offset)
	})
}

// tellable is satisfied by both handle kinds.
type tellable interface {
	Tell(ctx context.Context) (int64, error)
}

func (m *metadataService) Tell(ctx context.Context, req *protocol.HandleRequest) (*protocol.CountResponse, error) {
	return callHandle(m, ctx, req.SessionID, req.Handle, func(rs *remoteSession, h tellable) (*protocol.CountResponse, error) {
		pos, err := h.Tell(ctx)
		return &protocol.CountResponse{N: pos}, err
	})
}

func (m *metadataService) Available(ctx context.Context, req *protocol.HandleRequest) (*protocol.CountResponse, error) {
	return callHandle(m, ctx, req.SessionID, req.Handle, func(rs *remoteSession, h common.ReadHandle) (*protocol.CountResponse, error) {
		n, err := h.Available(ctx)
		return &protocol.CountResponse{N: n}, err
	})
}

// CloseHandle is idempotent: closing an unknown handle succeeds.
func (m *metadataService) CloseHandle(ctx context.Context, req *protocol.HandleRequest) (*protocol.Empty, error) {
	rs, err := m.server.sessions.lookup(ctx, req.SessionID)
	if err != nil {
		return nil, protocol.ToStatus(err)
	}
	h, ok := rs.removeHandle(req.Handle)
	if !ok {
		return &protocol.Empty{}, nil
	}
	closer, ok := h.(interface{ Close(context.Context) error })
	if !ok {
		return &protocol.Empty{}, nil
	}
	if err := closer.Close(ctx); err != nil {
		return nil, protocol.ToStatus(err)
	}
	return &protocol.Empty{}, nil
}
