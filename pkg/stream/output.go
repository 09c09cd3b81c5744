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

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/jeremyhahn/go-redfish/pkg/common"
)

// OutputStream appends to a Redfish file through a WriteHandle. There are
// no positioned writes.
type OutputStream struct {
	ctx     context.Context
	path    string
	handle  common.WriteHandle
	opts    *options
	cleanup runtime.Cleanup
	closed  bool
}

var (
	_ io.Writer     = (*OutputStream)(nil)
	_ io.ByteWriter = (*OutputStream)(nil)
	_ io.Closer     = (*OutputStream)(nil)
)

// NewOutputStream takes ownership of h. As with NewInputStream, ctx
// contributes values but not cancellation.
func NewOutputStream(ctx context.Context, path string, h common.WriteHandle, opts ...Option) *OutputStream {
	s := &OutputStream{
		ctx:    context.WithoutCancel(ctx),
		path:   path,
		handle: h,
		opts:   newOptions(opts),
	}
	s.cleanup = guard(s, "output", path, h, s.opts.logger)
	return s
}

// Path returns the absolute path the stream writes.
func (s *OutputStream) Path() string { return s.path }

func (s *OutputStream) check(op string) error {
	if s.closed {
		return &common.StreamError{Op: op, Path: s.path, Offset: -1, Err: common.ErrClosedStream}
	}
	return nil
}

// Write appends p.
func (s *OutputStream) Write(p []byte) (int, error) {
	if err := s.check("write"); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := s.handle.Write(s.ctx, p)
	s.opts.stats.addWrite(n)
	if err != nil {
		return n, common.NewStreamError("write", s.path, -1, err)
	}
	if n < len(p) {
		return n, common.NewStreamError("write", s.path, -1, io.ErrShortWrite)
	}
	return n, nil
}

// WriteByte appends one byte.
func (s *OutputStream) WriteByte(c byte) error {
	_, err := s.Write([]byte{c})
	return err
}

// WriteRange appends b[off:off+length].
func (s *OutputStream) WriteRange(b []byte, off, length int) (int, error) {
	if err := s.check("write"); err != nil {
		return 0, err
	}
	if err := checkBounds(len(b), off, length); err != nil {
		return 0, common.NewStreamError("write", s.path, -1, err)
	}
	return s.Write(b[off : off+length])
}

// Flush pushes buffered bytes to the session without closing the handle.
func (s *OutputStream) Flush() error {
	if err := s.check("flush"); err != nil {
		return err
	}
	if err := s.handle.Flush(s.ctx); err != nil {
		return common.NewStreamError("flush", s.path, -1, err)
	}
	return nil
}

// Pos returns the number of bytes written so far.
func (s *OutputStream) Pos() (int64, error) {
	if err := s.check("tell"); err != nil {
		return 0, err
	}
	pos, err := s.handle.Tell(s.ctx)
	if err != nil {
		return 0, common.NewStreamError("tell", s.path, -1, err)
	}
	return pos, nil
}

// Close flushes and releases the handle. The handle is released even when
// the flush fails, and that failure is reported as common.ErrIO. Closing
// twice is a no-op.
func (s *OutputStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cleanup.Stop()

	var flushErr error
	if err := s.handle.Flush(s.ctx); err != nil {
		flushErr = fmt.Errorf("%w: flush before close: %w", common.ErrIO, err)
	}
	closeErr := s.handle.Close(s.ctx)
	if err := errors.Join(flushErr, closeErr); err != nil {
		return common.NewStreamError("close", s.path, -1, err)
	}
	return nil
}
