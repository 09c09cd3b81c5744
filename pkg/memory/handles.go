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

package memory

import (
	"context"
	"io"
	"sync"

	"github.com/jeremyhahn/go-redfish/pkg/common"
)

// writeHandle buffers appended bytes and publishes them to the node when the
// buffer fills, on Flush, and on Close.
type writeHandle struct {
	session *Session
	node    *node
	bufSize int

	mu      sync.Mutex
	pending []byte
	flushed int64
	closed  bool
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
	h.pending = append(h.pending, p...)
	if len(h.pending) >= h.bufSize {
		h.flushLocked()
	}
	return len(p), nil
}

func (h *writeHandle) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return common.ErrClosedStream
	}
	h.flushLocked()
	return nil
}

func (h *writeHandle) Tell(ctx context.Context) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, common.ErrClosedStream
	}
	return h.flushed + int64(len(h.pending)), nil
}

func (h *writeHandle) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.flushLocked()
	h.closed = true
	h.mu.Unlock()

	h.session.untrack(h)
	return nil
}

// flushLocked moves pending bytes into the node. Callers hold h.mu.
func (h *writeHandle) flushLocked() {
	if len(h.pending) == 0 {
		return
	}
	st := h.session.store
	st.mu.Lock()
	h.node.data = append(h.node.data, h.pending...)
	h.node.mtime = st.now()
	st.mu.Unlock()

	h.flushed += int64(len(h.pending))
	h.pending = h.pending[:0]
}

// readHandle reads a node's bytes through a sequential cursor.
type readHandle struct {
	session *Session
	node    *node

	mu     sync.Mutex
	pos    int64
	closed bool
}

func (h *readHandle) Read(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, common.ErrClosedStream
	}
	n, err := h.readAt(p, h.pos)
	h.pos += int64(n)
	return n, err
}

func (h *readHandle) PRead(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, common.ErrInvalidArgument
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, common.ErrClosedStream
	}
	return h.readAt(p, off)
}

// readAt copies from the node at off. Callers hold h.mu.
func (h *readHandle) readAt(p []byte, off int64) (int, error) {
	st := h.session.store
	st.mu.RLock()
	defer st.mu.RUnlock()

	size := int64(len(h.node.data))
	if off >= size {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	return copy(p, h.node.data[off:]), nil
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
	st := h.session.store
	st.mu.RLock()
	size := int64(len(h.node.data))
	st.mu.RUnlock()

	if h.pos >= size {
		return 0, nil
	}
	return size - h.pos, nil
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
