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

// InputStream reads a Redfish file through a ReadHandle. The sequential
// cursor lives in the session; positioned reads leave it untouched.
type InputStream struct {
	ctx     context.Context
	path    string
	handle  common.ReadHandle
	opts    *options
	cleanup runtime.Cleanup
	closed  bool
}

var (
	_ io.Reader     = (*InputStream)(nil)
	_ io.ByteReader = (*InputStream)(nil)
	_ io.ReaderAt   = (*InputStream)(nil)
	_ io.Closer     = (*InputStream)(nil)
)

// NewInputStream takes ownership of h. Calls on the stream carry the values
// of ctx but not its cancellation, because the stream outlives the call
// that opened it.
func NewInputStream(ctx context.Context, path string, h common.ReadHandle, opts ...Option) *InputStream {
	s := &InputStream{
		ctx:    context.WithoutCancel(ctx),
		path:   path,
		handle: h,
		opts:   newOptions(opts),
	}
	s.cleanup = guard(s, "input", path, h, s.opts.logger)
	return s
}

// Path returns the absolute path the stream reads.
func (s *InputStream) Path() string { return s.path }

func (s *InputStream) check(op string) error {
	if s.closed {
		return &common.StreamError{Op: op, Path: s.path, Offset: -1, Err: common.ErrClosedStream}
	}
	return nil
}

func (s *InputStream) fail(op string, offset int64, err error) error {
	return common.NewStreamError(op, s.path, offset, err)
}

// ReadByte reads one byte at the cursor. It reports io.EOF unless exactly
// one byte was read.
func (s *InputStream) ReadByte() (byte, error) {
	var b [1]byte
	n, err := s.Read(b[:])
	if n == 1 {
		return b[0], nil
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	return 0, io.EOF
}

// Read reads up to len(p) bytes at the cursor. Short reads are legal; io.EOF
// marks the end of the file.
func (s *InputStream) Read(p []byte) (int, error) {
	if err := s.check("read"); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := s.handle.Read(s.ctx, p)
	s.opts.stats.addRead(n)
	if errors.Is(err, io.EOF) {
		if n > 0 {
			return n, nil
		}
		return 0, io.EOF
	}
	if err != nil {
		return n, s.fail("read", -1, err)
	}
	return n, nil
}

// ReadRange reads up to length bytes at the cursor into b[off:].
func (s *InputStream) ReadRange(b []byte, off, length int) (int, error) {
	if err := s.check("read"); err != nil {
		return 0, err
	}
	if err := checkBounds(len(b), off, length); err != nil {
		return 0, s.fail("read", -1, err)
	}
	return s.Read(b[off : off+length])
}

// PositionedRead reads up to length bytes at pos into b[off:] without moving
// the cursor. At or past the end of the file it returns 0, io.EOF.
func (s *InputStream) PositionedRead(pos int64, b []byte, off, length int) (int, error) {
	if err := s.check("pread"); err != nil {
		return 0, err
	}
	if err := checkBounds(len(b), off, length); err != nil {
		return 0, s.fail("pread", pos, err)
	}
	if pos < 0 {
		return 0, s.fail("pread", pos, fmt.Errorf("%w: negative position %d", common.ErrInvalidArgument, pos))
	}
	if length == 0 {
		return 0, nil
	}

	n, err := s.handle.PRead(s.ctx, b[off:off+length], pos)
	s.opts.stats.addRead(n)
	if errors.Is(err, io.EOF) {
		if n > 0 {
			return n, nil
		}
		return 0, io.EOF
	}
	if err != nil {
		return n, s.fail("pread", pos, err)
	}
	return n, nil
}

// readFull repeats positioned reads until length bytes arrived or the file
// ended, in which case it returns io.EOF with the bytes read so far.
func (s *InputStream) readFull(pos int64, b []byte, off, length int) (int, error) {
	if err := s.check("pread"); err != nil {
		return 0, err
	}
	if err := checkBounds(len(b), off, length); err != nil {
		return 0, s.fail("pread", pos, err)
	}
	read := 0
	for read < length {
		n, err := s.PositionedRead(pos+int64(read), b, off+read, length-read)
		read += n
		if errors.Is(err, io.EOF) {
			return read, io.EOF
		}
		if err != nil {
			return read, err
		}
		if n == 0 {
			return read, io.EOF
		}
	}
	return read, nil
}

// ReadFully reads exactly length bytes at pos into b[off:]. A file that ends
// first gives common.ErrEndOfFile.
func (s *InputStream) ReadFully(pos int64, b []byte, off, length int) error {
	n, err := s.readFull(pos, b, off, length)
	if errors.Is(err, io.EOF) {
		return s.fail("read_fully", pos, fmt.Errorf("%w: wanted %d bytes, got %d", common.ErrEndOfFile, length, n))
	}
	return err
}

// ReadAt implements io.ReaderAt on top of positioned reads.
func (s *InputStream) ReadAt(p []byte, off int64) (int, error) {
	return s.readFull(off, p, 0, len(p))
}

// Seek implements io.Seeker. io.SeekEnd is relative to the length seen by
// the handle when Seek is called.
func (s *InputStream) Seek(offset int64, whence int) (int64, error) {
	if err := s.check("seek"); err != nil {
		return 0, err
	}
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent, io.SeekEnd:
		pos, err := s.Pos()
		if err != nil {
			return 0, err
		}
		base = pos
		if whence == io.SeekEnd {
			avail, err := s.Available()
			if err != nil {
				return 0, err
			}
			base += avail
		}
	default:
		return 0, s.fail("seek", offset, fmt.Errorf("%w: whence %d", common.ErrInvalidArgument, whence))
	}
	pos := base + offset
	if err := s.SeekTo(pos); err != nil {
		return 0, err
	}
	return pos, nil
}

// SeekTo moves the cursor to the absolute position pos.
func (s *InputStream) SeekTo(pos int64) error {
	if err := s.check("seek"); err != nil {
		return err
	}
	if pos < 0 {
		return s.fail("seek", pos, fmt.Errorf("%w: negative position %d", common.ErrInvalidArgument, pos))
	}
	if err := s.handle.Seek(s.ctx, pos); err != nil {
		return s.fail("seek", pos, err)
	}
	return nil
}

// Pos returns the cursor position.
func (s *InputStream) Pos() (int64, error) {
	if err := s.check("tell"); err != nil {
		return 0, err
	}
	pos, err := s.handle.Tell(s.ctx)
	if err != nil {
		return 0, s.fail("tell", -1, err)
	}
	return pos, nil
}

// Skip advances the cursor by up to n bytes and returns how far it moved,
// which is less than n near the end of the file.
func (s *InputStream) Skip(n int64) (int64, error) {
	if err := s.check("skip"); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, nil
	}
	pos, err := s.Pos()
	if err != nil {
		return 0, err
	}
	avail, err := s.Available()
	if err != nil {
		return 0, err
	}
	skip := min(n, avail)
	if skip <= 0 {
		return 0, nil
	}
	if err := s.SeekTo(pos + skip); err != nil {
		return 0, err
	}
	return skip, nil
}

// Available returns the bytes between the cursor and the end of the file.
func (s *InputStream) Available() (int64, error) {
	if err := s.check("available"); err != nil {
		return 0, err
	}
	n, err := s.handle.Available(s.ctx)
	if err != nil {
		return 0, s.fail("available", -1, err)
	}
	return n, nil
}

// SeekToNewSource always reports false: replica selection belongs to the
// session.
func (s *InputStream) SeekToNewSource(pos int64) bool {
	return false
}

// Close releases the handle. Closing twice is a no-op.
func (s *InputStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cleanup.Stop()
	if err := s.handle.Close(s.ctx); err != nil {
		return s.fail("close", -1, err)
	}
	return nil
}
