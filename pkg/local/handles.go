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

package local

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/jeremyhahn/go-redfish/pkg/common"
)

// writeHandle appends to a file through a buffered writer.
type writeHandle struct {
	session *Session
	path    string
	file    *os.File

	mu      sync.Mutex
	buf     *bufio.Writer
	written int64
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
	n, err := h.buf.Write(p)
	h.written += int64(n)
	return n, err
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
	if err := h.buf.Flush(); err != nil {
		return err
	}
	h.touch()
	return nil
}

func (h *writeHandle) Tell(ctx context.Context) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, common.ErrClosedStream
	}
	return h.written, nil
}

func (h *writeHandle) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	err := errors.Join(h.buf.Flush(), h.file.Close())
	h.touch()
	h.mu.Unlock()

	h.session.untrack(h)
	return err
}

// touch records a modification of the file. Callers hold h.mu.
func (h *writeHandle) touch() {
	st := h.session.store
	st.mu.Lock()
	defer st.mu.Unlock()

	if e, ok := st.entries[h.path]; ok {
		e.ModTime = st.now()
		_ = st.saveLocked()
	}
}

// readHandle reads a file through a sequential cursor.
type readHandle struct {
	session *Session
	file    *os.File

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

// readAt reports a short read without error and only returns io.EOF when
// nothing could be read. Callers hold h.mu.
func (h *readHandle) readAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := h.file.ReadAt(p, off)
	if err == io.EOF && n > 0 {
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
	info, err := h.file.Stat()
	if err != nil {
		return 0, err
	}
	if h.pos >= info.Size() {
		return 0, nil
	}
	return info.Size() - h.pos, nil
}

func (h *readHandle) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	err := h.file.Close()
	h.mu.Unlock()

	h.session.untrack(h)
	return err
}
