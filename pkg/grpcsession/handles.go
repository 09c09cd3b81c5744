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
	"context"
	"io"
	"sync/atomic"

	"github.com/jeremyhahn/go-redfish/pkg/common"
	"github.com/jeremyhahn/go-redfish/pkg/protocol"
)

// handle is the client side of a server handle ID.
type handle struct {
	session *Session
	id      string
	closed  atomic.Bool
}

func (h *handle) request() *protocol.HandleRequest {
	return &protocol.HandleRequest{SessionID: h.session.id, Handle: h.id}
}

func (h *handle) check() error {
	if h.closed.Load() || h.session.closed.Load() {
		return common.ErrClosedStream
	}
	return nil
}

func (h *handle) Tell(ctx context.Context) (int64, error) {
	if err := h.check(); err != nil {
		return 0, err
	}
	resp, err := invoke(h.session, ctx, h.session.client.Tell, h.request())
	if err != nil {
		return 0, err
	}
	return resp.N, nil
}

// Close is idempotent. Handles of a disconnected session were already
// released by the server.
func (h *handle) Close(ctx context.Context) error {
	if h.closed.Swap(true) || h.session.closed.Load() {
		return nil
	}
	_, err := invoke(h.session, ctx, h.session.client.CloseHandle, h.request())
	return err
}

type writeHandle struct {
	handle
}

// Write sends p in chunks of at most protocol.ChunkSize bytes.
func (w *writeHandle) Write(ctx context.Context, p []byte) (int, error) {
	if err := w.check(); err != nil {
		return 0, err
	}
	written := 0
	for written < len(p) {
		chunk := p[written:min(written+protocol.ChunkSize, len(p))]
		resp, err := invoke(w.session, ctx, w.session.client.Write, &protocol.WriteRequest{
			SessionID: w.session.id,
			Handle:    w.id,
			Data:      chunk,
		})
		if err != nil {
			return written, err
		}
		written += int(resp.N)
		if int(resp.N) < len(chunk) {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

func (w *writeHandle) Flush(ctx context.Context) error {
	if err := w.check(); err != nil {
		return err
	}
	_, err := invoke(w.session, ctx, w.session.client.Flush, w.request())
	return err
}

type readHandle struct {
	handle
}

func (r *readHandle) read(ctx context.Context, p []byte, off int64, positioned bool) (int, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	if positioned && off < 0 {
		return 0, common.ErrInvalidArgument
	}
	if len(p) == 0 {
		return 0, nil
	}
	resp, err := invoke(r.session, ctx, r.session.client.Read, &protocol.ReadRequest{
		SessionID:  r.session.id,
		Handle:     r.id,
		Length:     min(len(p), protocol.ChunkSize),
		Offset:     off,
		Positioned: positioned,
	})
	if err != nil {
		return 0, err
	}
	if resp.EOF {
		return 0, io.EOF
	}
	return copy(p, resp.Data), nil
}

func (r *readHandle) Read(ctx context.Context, p []byte) (int, error) {
	return r.read(ctx, p, 0, false)
}

func (r *readHandle) PRead(ctx context.Context, p []byte, off int64) (int, error) {
	return r.read(ctx, p, off, true)
}

func (r *readHandle) Seek(ctx context.Context, off int64) error {
	if err := r.check(); err != nil {
		return err
	}
	_, err := invoke(r.session, ctx, r.session.client.Seek, &protocol.SeekRequest{
		SessionID: r.session.id,
		Handle:    r.id,
		Offset:    off,
	})
	return err
}

func (r *readHandle) Available(ctx context.Context) (int64, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	resp, err := invoke(r.session, ctx, r.session.client.Available, r.request())
	if err != nil {
		return 0, err
	}
	return resp.N, nil
}
