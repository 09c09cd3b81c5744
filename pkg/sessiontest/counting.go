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

package sessiontest

import (
	"context"
	"io/fs"
	"sync"
	"time"

	"github.com/jeremyhahn/go-redfish/pkg/common"
)

// Operation names recorded by CountingSession.
const (
	OpCreate      = "create"
	OpOpen        = "open"
	OpMkdirs      = "mkdirs"
	OpList        = "list"
	OpStatus      = "status"
	OpLocations   = "locations"
	OpUnlink      = "unlink"
	OpUnlinkTree  = "unlink_tree"
	OpRename      = "rename"
	OpChmod       = "chmod"
	OpChown       = "chown"
	OpSetTimes    = "set_times"
	OpDisconnect  = "disconnect"
	OpRead        = "read"
	OpPRead       = "pread"
	OpSeek        = "seek"
	OpTell        = "tell"
	OpAvailable   = "available"
	OpWrite       = "write"
	OpFlush       = "flush"
	OpCloseHandle = "close_handle"
)

// CountingSession wraps a session, counting every call that reaches it and
// failing the operations registered with FailOn.
type CountingSession struct {
	common.Session

	mu       sync.Mutex
	calls    map[string]int
	failures map[string]error
}

// NewCountingSession wraps s.
func NewCountingSession(s common.Session) *CountingSession {
	return &CountingSession{
		Session:  s,
		calls:    make(map[string]int),
		failures: make(map[string]error),
	}
}

// Calls returns how many times op reached the session.
func (c *CountingSession) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

// Total returns the number of calls of any kind.
func (c *CountingSession) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

// FailOn makes op fail with err. A nil err clears the failure.
func (c *CountingSession) FailOn(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failures, op)
		return
	}
	c.failures[op] = err
}

func (c *CountingSession) enter(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[op]++
	return c.failures[op]
}

func (c *CountingSession) Create(ctx context.Context, p string, opts common.CreateOptions) (common.WriteHandle, error) {
	if err := c.enter(OpCreate); err != nil {
		return nil, err
	}
	h, err := c.Session.Create(ctx, p, opts)
	if err != nil {
		return nil, err
	}
	return &countingWriter{WriteHandle: h, session: c}, nil
}

func (c *CountingSession) Open(ctx context.Context, p string) (common.ReadHandle, error) {
	if err := c.enter(OpOpen); err != nil {
		return nil, err
	}
	h, err := c.Session.Open(ctx, p)
	if err != nil {
		return nil, err
	}
	return &countingReader{ReadHandle: h, session: c}, nil
}

func (c *CountingSession) Mkdirs(ctx context.Context, p string, mode fs.FileMode) (bool, error) {
	if err := c.enter(OpMkdirs); err != nil {
		return false, err
	}
	return c.Session.Mkdirs(ctx, p, mode)
}

func (c *CountingSession) ListDirectory(ctx context.Context, p string) ([]common.FileStatus, error) {
	if err := c.enter(OpList); err != nil {
		return nil, err
	}
	return c.Session.ListDirectory(ctx, p)
}

func (c *CountingSession) GetPathStatus(ctx context.Context, p string) (common.FileStatus, error) {
	if err := c.enter(OpStatus); err != nil {
		return common.FileStatus{}, err
	}
	return c.Session.GetPathStatus(ctx, p)
}

func (c *CountingSession) GetBlockLocations(ctx context.Context, p string, start, length int64) ([]common.BlockLocation, error) {
	if err := c.enter(OpLocations); err != nil {
		return nil, err
	}
	return c.Session.GetBlockLocations(ctx, p, start, length)
}

func (c *CountingSession) Unlink(ctx context.Context, p string) (bool, error) {
	if err := c.enter(OpUnlink); err != nil {
		return false, err
	}
	return c.Session.Unlink(ctx, p)
}

func (c *CountingSession) UnlinkTree(ctx context.Context, p string) (bool, error) {
	if err := c.enter(OpUnlinkTree); err != nil {
		return false, err
	}
	return c.Session.UnlinkTree(ctx, p)
}

func (c *CountingSession) Rename(ctx context.Context, src, dst string) error {
	if err := c.enter(OpRename); err != nil {
		return err
	}
	return c.Session.Rename(ctx, src, dst)
}

func (c *CountingSession) Chmod(ctx context.Context, p string, mode fs.FileMode) error {
	if err := c.enter(OpChmod); err != nil {
		return err
	}
	return c.Session.Chmod(ctx, p, mode)
}

func (c *CountingSession) Chown(ctx context.Context, p, owner, group string) error {
	if err := c.enter(OpChown); err != nil {
		return err
	}
	return c.Session.Chown(ctx, p, owner, group)
}

func (c *CountingSession) SetTimes(ctx context.Context, p string, mtime, atime time.Time) error {
	if err := c.enter(OpSetTimes); err != nil {
		return err
	}
	return c.Session.SetTimes(ctx, p, mtime, atime)
}

func (c *CountingSession) Disconnect(ctx context.Context) error {
	if err := c.enter(OpDisconnect); err != nil {
		return err
	}
	return c.Session.Disconnect(ctx)
}

type countingReader struct {
	common.ReadHandle
	session *CountingSession
}

func (r *countingReader) Read(ctx context.Context, p []byte) (int, error) {
	if err := r.session.enter(OpRead); err != nil {
		return 0, err
	}
	return r.ReadHandle.Read(ctx, p)
}

func (r *countingReader) PRead(ctx context.Context, p []byte, off int64) (int, error) {
	if err := r.session.enter(OpPRead); err != nil {
		return 0, err
	}
	return r.ReadHandle.PRead(ctx, p, off)
}

func (r *countingReader) Seek(ctx context.Context, off int64) error {
	if err := r.session.enter(OpSeek); err != nil {
		return err
	}
	return r.ReadHandle.Seek(ctx, off)
}

func (r *countingReader) Tell(ctx context.Context) (int64, error) {
	if err := r.session.enter(OpTell); err != nil {
		return 0, err
	}
	return r.ReadHandle.Tell(ctx)
}

func (r *countingReader) Available(ctx context.Context) (int64, error) {
	if err := r.session.enter(OpAvailable); err != nil {
		return 0, err
	}
	return r.ReadHandle.Available(ctx)
}

// Close always releases the wrapped handle, even when a failure is
// injected.
func (r *countingReader) Close(ctx context.Context) error {
	injected := r.session.enter(OpCloseHandle)
	if err := r.ReadHandle.Close(ctx); err != nil {
		return err
	}
	return injected
}

type countingWriter struct {
	common.WriteHandle
	session *CountingSession
}

func (w *countingWriter) Write(ctx context.Context, p []byte) (int, error) {
	if err := w.session.enter(OpWrite); err != nil {
		return 0, err
	}
	return w.WriteHandle.Write(ctx, p)
}

func (w *countingWriter) Flush(ctx context.Context) error {
	if err := w.session.enter(OpFlush); err != nil {
		return err
	}
	return w.WriteHandle.Flush(ctx)
}

func (w *countingWriter) Tell(ctx context.Context) (int64, error) {
	if err := w.session.enter(OpTell); err != nil {
		return 0, err
	}
	return w.WriteHandle.Tell(ctx)
}

func (w *countingWriter) Close(ctx context.Context) error {
	injected := w.session.enter(OpCloseHandle)
	if err := w.WriteHandle.Close(ctx); err != nil {
		return err
	}
	return injected
}
