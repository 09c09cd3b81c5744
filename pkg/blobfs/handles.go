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

package blobfs

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/jeremyhahn/go-redfish/pkg/common"
)

// writeHandle collects a file's bytes and uploads the whole object on Flush
// and Close.
type writeHandle struct {
	session *Session
	key     string
	status  common.FileStatus

	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (h *writeHandle) Write(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, common.ErrClosedStream
	}
	return h.buf.Write(p)
}

func (h *writeHandle) Flush(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return common.ErrClosedStream
	}
	return h.upload(ctx)
}

func (h *writeHandle) Tell(ctx context.Context) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, common.ErrClosedStream
	}
	return int64(h.buf.Len()), nil
}

func (h *writeHandle) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	err := h.upload(ctx)
	h.mu.Unlock()

	h.session.untrack(h)
	return err
}

// upload replaces the object with the bytes written so far. Callers hold
// h.mu.
func (h *writeHandle) upload(ctx context.Context) error {
	h.status.ModTime = h.session.store.now().UTC()
	return h.session.put(ctx, h.key, h.buf.Bytes(), h.status)
}

// readHandle reads an object with ranged reads.
type readHandle struct {
	session *Session
	key     string
	size    int64

	mu     sync.Mutex
	pos    int64
	closed bool
}

func (h *readHandle) Read(ctx context.Context, p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, common.ErrClosedStream
	}
	n, err := h.readAt(ctx, p, h.pos)
	h.pos += int64(n)
	return n, err
}

func (h *readHandle) PRead(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, common.ErrInvalidArgument
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, common.ErrClosedStream
	}
	return h.readAt(ctx, p, off)
}

// readAt fetches at most len(p) bytes starting at off. Callers hold h.mu.
func (h *readHandle) readAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off >= h.size {
		return 0, io.EOF
	}
	want := min(int64(len(p)), h.size-off)

	body, err := h.session.store.bucket.ReadRange(ctx, h.key, off, want)
	if err != nil {
		return 0, err
	}
	defer func() { _ = body.Close() }()

	n, err := io.ReadFull(body, p[:want])
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		// The object shrank after the handle was opened.
		if n == 0 {
			return 0, io.EOF
		}
		err = nil
	}
	return n, err
}

func (h *readHandle) Seek(ctx context.Context, off int64) error {
	if off < 0 {
		return common.ErrInvalidArgument
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return common.ErrClosedStream
	}
	h.pos = off
	return nil
}

func (h *readHandle) Tell(ctx context.Context) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, common.ErrClosedStream
	}
	return h.pos, nil
}

func (h *readHandle) Available(ctx context.Context) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, common.ErrClosedStream
	}
	if h.pos >= h.size {
		return 0, nil
	}
	return h.size - h.pos, nil
}

func (h *readHandle) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.session.untrack(h)
	return nil
}
