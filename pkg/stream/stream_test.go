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
	"bytes"
	"context"
	"errors"
	"io"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-redfish/pkg/common"
	"github.com/jeremyhahn/go-redfish/pkg/memory"
	"github.com/jeremyhahn/go-redfish/pkg/sessiontest"
)

func newSession(t *testing.T) *sessiontest.CountingSession {
	t.Helper()
	s := sessiontest.NewCountingSession(memory.NewStore().Connect("alice"))
	t.Cleanup(func() { _ = s.Disconnect(context.Background()) })
	return s
}

func create(t *testing.T, s common.Session, path string, stats *Statistics) *OutputStream {
	t.Helper()
	h, err := s.Create(context.Background(), path, common.CreateOptions{Overwrite: true})
	require.NoError(t, err)
	return NewOutputStream(context.Background(), path, h, WithStatistics(stats))
}

func open(t *testing.T, s common.Session, path string, stats *Statistics) *InputStream {
	t.Helper()
	h, err := s.Open(context.Background(), path)
	require.NoError(t, err)
	in := NewInputStream(context.Background(), path, h, WithStatistics(stats))
	t.Cleanup(func() { _ = in.Close() })
	return in
}

func writeFile(t *testing.T, s common.Session, path string, data []byte) {
	t.Helper()
	out := create(t, s, path, nil)
	_, err := out.Write(data)
	require.NoError(t, err)
	require.NoError(t, out.Close())
}

func TestSmallFileRoundTrip(t *testing.T) {
	s := newSession(t)
	for _, size := range []int{250, 123, 4096} {
		data := sessiontest.Pattern(size)

		out := create(t, s, "/small", nil)
		for _, b := range data {
			require.NoError(t, out.WriteByte(b))
		}
		pos, err := out.Pos()
		require.NoError(t, err)
		assert.EqualValues(t, size, pos)
		require.NoError(t, out.Close())

		in := open(t, s, "/small", nil)
		got := make([]byte, 0, size)
		for {
			b, err := in.ReadByte()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			got = append(got, b)
		}
		assert.Equal(t, data, got, "size %d", size)
		require.NoError(t, in.Close())
	}
}

func TestCopyThroughIOInterfaces(t *testing.T) {
	s := newSession(t)
	data := sessiontest.Pattern(100_000)

	out := create(t, s, "/copy", nil)
	n, err := io.Copy(out, bytes.NewReader(data))
	require.NoError(t, err)
	assert.EqualValues(t, len(data), n)
	require.NoError(t, out.Close())

	var buf bytes.Buffer
	_, err = io.Copy(&buf, open(t, s, "/copy", nil))
	require.NoError(t, err)
	assert.Equal(t, data, buf.Bytes())
}

func TestPositionedReadLeavesCursor(t *testing.T) {
	s := newSession(t)
	writeFile(t, s, "/f", sessiontest.Pattern(1000))
	in := open(t, s, "/f", nil)

	buf := make([]byte, 10)
	_, err := io.ReadFull(in, buf)
	require.NoError(t, err)

	n, err := in.PositionedRead(500, buf, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, sessiontest.Pattern(510)[500:], buf)

	pos, err := in.Pos()
	require.NoError(t, err)
	assert.EqualValues(t, 10, pos)

	b, err := in.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0), b, "byte 10 of the pattern")
}

func TestPositionedReadAtEOF(t *testing.T) {
	s := newSession(t)
	writeFile(t, s, "/f", sessiontest.Pattern(10))
	in := open(t, s, "/f", nil)
	buf := make([]byte, 8)

	n, err := in.PositionedRead(10, buf, 0, 8)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)

	n, err = in.PositionedRead(100, buf, 0, 8)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)

	n, err = in.PositionedRead(6, buf, 0, 8)
	require.NoError(t, err, "a short positioned read is not an error")
	assert.Equal(t, 4, n)

	_, err = in.PositionedRead(-1, buf, 0, 8)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestBoundsCheckedBeforeIO(t *testing.T) {
	s := newSession(t)
	writeFile(t, s, "/f", sessiontest.Pattern(100))
	in := open(t, s, "/f", nil)
	out := create(t, s, "/g", nil)
	defer out.Close()

	before := s.Total()
	buf := make([]byte, 10)
	tests := []struct {
		name string
		call func() error
	}{
		{"read past end", func() error { _, err := in.ReadRange(buf, 5, 6); return err }},
		{"read negative offset", func() error { _, err := in.ReadRange(buf, -1, 2); return err }},
		{"read negative length", func() error { _, err := in.ReadRange(buf, 0, -2); return err }},
		{"pread past end", func() error { _, err := in.PositionedRead(0, buf, 8, 3); return err }},
		{"pread checks bounds before position", func() error { _, err := in.PositionedRead(-5, buf, 11, 0); return err }},
		{"read fully past end", func() error { return in.ReadFully(0, buf, 0, 11) }},
		{"write past end", func() error { _, err := out.WriteRange(buf, 9, 2); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			assert.ErrorIs(t, err, common.ErrIndexOutOfBounds)
			var streamErr *common.StreamError
			assert.True(t, errors.As(err, &streamErr))
		})
	}
	assert.Equal(t, before, s.Total(), "no call reached the session")
}

func TestReadFully(t *testing.T) {
	s := newSession(t)
	data := sessiontest.Pattern(64)
	writeFile(t, s, "/f", data)
	in := open(t, s, "/f", nil)

	buf := make([]byte, 32)
	require.NoError(t, in.ReadFully(16, buf, 8, 24))
	assert.Equal(t, data[16:40], buf[8:])

	err := in.ReadFully(50, buf, 0, 20)
	assert.ErrorIs(t, err, common.ErrEndOfFile)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "wanted 20 bytes, got 14")

	n, err := in.ReadAt(buf, 50)
	assert.Equal(t, 14, n)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, data[50:], buf[:14])

	n, err = in.ReadAt(buf[:4], 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestSeekSkipAvailable(t *testing.T) {
	s := newSession(t)
	writeFile(t, s, "/f", sessiontest.Pattern(100))
	in := open(t, s, "/f", nil)

	require.NoError(t, in.SeekTo(40))
	pos, err := in.Pos()
	require.NoError(t, err)
	assert.EqualValues(t, 40, pos)

	avail, err := in.Available()
	require.NoError(t, err)
	assert.EqualValues(t, 60, avail)

	skipped, err := in.Skip(50)
	require.NoError(t, err)
	assert.EqualValues(t, 50, skipped)

	skipped, err = in.Skip(50)
	require.NoError(t, err)
	assert.EqualValues(t, 10, skipped, "skip stops at the end of the file")

	skipped, err = in.Skip(1)
	require.NoError(t, err)
	assert.Zero(t, skipped)

	_, err = in.ReadByte()
	assert.Equal(t, io.EOF, err)

	assert.ErrorIs(t, in.SeekTo(-1), common.ErrInvalidArgument)
	assert.False(t, in.SeekToNewSource(0))
}

func TestSeekWhence(t *testing.T) {
	s := newSession(t)
	data := sessiontest.Pattern(100)
	writeFile(t, s, "/f", data)
	in := open(t, s, "/f", nil)
	var seeker io.ReadSeeker = in

	tests := []struct {
		name   string
		offset int64
		whence int
		want   int64
	}{
		{"start", 30, io.SeekStart, 30},
		{"current", 5, io.SeekCurrent, 35},
		{"current backwards", -10, io.SeekCurrent, 25},
		{"end", -4, io.SeekEnd, 96},
		{"end exactly", 0, io.SeekEnd, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, err := seeker.Seek(tt.offset, tt.whence)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pos)
			cur, err := in.Pos()
			require.NoError(t, err)
			assert.Equal(t, tt.want, cur)
		})
	}

	_, err := seeker.Seek(-4, io.SeekEnd)
	require.NoError(t, err)
	rest, err := io.ReadAll(seeker)
	require.NoError(t, err)
	assert.Equal(t, data[96:], rest)

	_, err = seeker.Seek(0, 9)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	_, err = seeker.Seek(-1, io.SeekStart)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestInputClose(t *testing.T) {
	s := newSession(t)
	writeFile(t, s, "/f", sessiontest.Pattern(10))
	in := open(t, s, "/f", nil)
	closes := s.Calls(sessiontest.OpCloseHandle)

	require.NoError(t, in.Close())
	require.NoError(t, in.Close())
	assert.Equal(t, closes+1, s.Calls(sessiontest.OpCloseHandle))

	_, err := in.Read(make([]byte, 1))
	assert.ErrorIs(t, err, common.ErrClosedStream)
	_, err = in.ReadByte()
	assert.ErrorIs(t, err, common.ErrClosedStream)
	_, err = in.PositionedRead(0, make([]byte, 1), 0, 1)
	assert.ErrorIs(t, err, common.ErrClosedStream)
	_, err = in.Pos()
	assert.ErrorIs(t, err, common.ErrClosedStream)
	_, err = in.Available()
	assert.ErrorIs(t, err, common.ErrClosedStream)
	assert.ErrorIs(t, in.SeekTo(0), common.ErrClosedStream)
}

func TestOutputClose(t *testing.T) {
	s := newSession(t)
	out := create(t, s, "/f", nil)
	_, err := out.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, out.Flush())

	require.NoError(t, out.Close())
	require.NoError(t, out.Close())

	_, err = out.Write([]byte("d"))
	assert.ErrorIs(t, err, common.ErrClosedStream)
	assert.ErrorIs(t, out.Flush(), common.ErrClosedStream)
	assert.ErrorIs(t, out.WriteByte('x'), common.ErrClosedStream)
}

func TestOutputCloseAfterFailedFlush(t *testing.T) {
	s := newSession(t)
	out := create(t, s, "/f", nil)
	_, err := out.Write([]byte("abc"))
	require.NoError(t, err)

	s.FailOn(sessiontest.OpFlush, common.ErrPermission)
	closes := s.Calls(sessiontest.OpCloseHandle)

	err = out.Close()
	assert.ErrorIs(t, err, common.ErrIO)
	assert.Equal(t, closes+1, s.Calls(sessiontest.OpCloseHandle), "the handle is released anyway")
	assert.NoError(t, out.Close())
}

func TestRemoteFailureIsStreamError(t *testing.T) {
	s := newSession(t)
	writeFile(t, s, "/f", sessiontest.Pattern(10))
	in := open(t, s, "/f", nil)

	s.FailOn(sessiontest.OpPRead, errors.New("connection reset"))
	_, err := in.PositionedRead(3, make([]byte, 2), 0, 2)
	var streamErr *common.StreamError
	require.True(t, errors.As(err, &streamErr))
	assert.Equal(t, "pread", streamErr.Op)
	assert.Equal(t, "/f", streamErr.Path)
	assert.EqualValues(t, 3, streamErr.Offset)
	assert.ErrorIs(t, err, common.ErrIO)
}

func TestStatistics(t *testing.T) {
	s := newSession(t)
	stats := &Statistics{}

	out := create(t, s, "/f", stats)
	_, err := out.Write([]byte("hello"))
	require.NoError(t, err)
	_, err = out.Write([]byte(" world"))
	require.NoError(t, err)
	require.NoError(t, out.Close())

	in := open(t, s, "/f", stats)
	buf := make([]byte, 5)
	_, err = in.Read(buf)
	require.NoError(t, err)
	_, err = in.PositionedRead(6, buf, 0, 5)
	require.NoError(t, err)

	snap := stats.Snapshot()
	assert.Equal(t, StatisticsSnapshot{BytesRead: 10, ReadOps: 2, BytesWritten: 11, WriteOps: 2}, snap)

	stats.Reset()
	assert.Zero(t, stats.BytesRead())
	assert.Zero(t, stats.WriteOps())
}

// trackedHandle records whether it was closed.
type trackedHandle struct {
	common.ReadHandle
	closed atomic.Bool
}

func (h *trackedHandle) Close(ctx context.Context) error {
	h.closed.Store(true)
	return nil
}

func abandon(h common.ReadHandle) {
	_ = NewInputStream(context.Background(), "/leaked", h)
}

func TestLeakGuardReleasesHandle(t *testing.T) {
	h := &trackedHandle{}
	abandon(h)

	assert.Eventually(t, func() bool {
		runtime.GC()
		return h.closed.Load()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestCloseCancelsLeakGuard(t *testing.T) {
	h := &trackedHandle{}
	in := NewInputStream(context.Background(), "/closed", h)
	require.NoError(t, in.Close())
	h.closed.Store(false)

	runtime.GC()
	runtime.GC()
	time.Sleep(10 * time.Millisecond)
	assert.False(t, h.closed.Load())
}
