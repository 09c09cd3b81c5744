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
	"fmt"
	"io/fs"
	"os"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeremyhahn/go-redfish/pkg/common"
	"github.com/jeremyhahn/go-redfish/pkg/pathutil"
)

// handle is an open read or write handle owned by a session.
type handle interface {
	Close(ctx context.Context) error
}

// Session is one user's connection to a Store. It implements common.Session.
type Session struct {
	store  *Store
	user   string
	closed atomic.Bool

	mu      sync.Mutex
	handles map[handle]struct{}
}

var _ common.Session = (*Session)(nil)

func (s *Session) check(ctx context.Context, p string) error {
	if s.closed.Load() {
		return common.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !pathutil.IsAbs(p) || path.Clean(p) != p {
		return common.ErrInvalidArgument
	}
	return nil
}

func (s *Session) track(h handle) {
	s.mu.Lock()
	s.handles[h] = struct{}{}
	s.mu.Unlock()
}

func (s *Session) untrack(h handle) {
	s.mu.Lock()
	delete(s.handles, h)
	s.mu.Unlock()
}

// Create makes a new file. An existing file is truncated only when
// opts.Overwrite is set.
func (s *Session) Create(ctx context.Context, p string, opts common.CreateOptions) (common.WriteHandle, error) {
	if err := s.check(ctx, p); err != nil {
		return nil, err
	}
	if p == common.RootPath {
		return nil, common.ErrIsADirectory
	}
	if p == "/"+IndexName {
		return nil, common.ErrInvalidArgument
	}
	opts = opts.WithDefaults()

	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()

	dir, parent, err := st.parentDir(p)
	if err != nil {
		return nil, err
	}
	if err := st.checkWritable(s.user, dir, parent); err != nil {
		return nil, err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if info, _, err := st.lookup(p); err == nil {
		if info.IsDir() {
			return nil, common.ErrIsADirectory
		}
		if !opts.Overwrite {
			return nil, common.ErrAlreadyExists
		}
		flags = os.O_WRONLY | os.O_TRUNC
	}

	f, err := os.OpenFile(st.osPath(p), flags, 0o600) // #nosec G304 -- path is canonical and rooted at the base directory
	if err != nil {
		return nil, err
	}

	now := st.now()
	e := &entry{
		Mode:        opts.Mode.Perm(),
		Owner:       s.user,
		Group:       s.user,
		ModTime:     now,
		AccessTime:  now,
		Replication: opts.Replication,
		BlockSize:   opts.BlockSize,
	}
	st.entries[p] = e
	parent.ModTime = now
	if err := st.saveLocked(); err != nil {
		_ = f.Close()
		return nil, err
	}

	h := &writeHandle{session: s, path: p, file: f, buf: bufio.NewWriterSize(f, opts.BufferSize)}
	s.track(h)
	return h, nil
}

// Open opens an existing file for reading.
func (s *Session) Open(ctx context.Context, p string) (common.ReadHandle, error) {
	if err := s.check(ctx, p); err != nil {
		return nil, err
	}

	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()

	info, e, err := st.lookup(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, common.ErrIsADirectory
	}
	if err := common.CheckAccess(s.user, st.status(p, info, e), common.AccessRead); err != nil {
		return nil, err
	}

	f, err := os.Open(st.osPath(p)) // #nosec G304 -- path is canonical and rooted at the base directory
	if err != nil {
		return nil, err
	}
	e.AccessTime = st.now()
	st.entries[p] = e
	if err := st.saveLocked(); err != nil {
		_ = f.Close()
		return nil, err
	}

	h := &readHandle{session: s, file: f}
	s.track(h)
	return h, nil
}

// Mkdirs creates p and its missing ancestors.
func (s *Session) Mkdirs(ctx context.Context, p string, mode fs.FileMode) (bool, error) {
	if err := s.check(ctx, p); err != nil {
		return false, err
	}
	if mode.Perm() == 0 {
		mode = common.DefaultDirMode
	}

	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()

	created := false
	cur := common.RootPath
	for _, elem := range pathutil.Split(p) {
		cur = pathutil.Join(cur, elem)

		info, _, err := st.lookup(cur)
		if err == nil {
			if !info.IsDir() {
				return created, common.ErrNotADirectory
			}
			continue
		}
		dir, parent, err := st.parentDir(cur)
		if err != nil {
			return created, err
		}
		if err := st.checkWritable(s.user, dir, parent); err != nil {
			return created, err
		}
		if err := os.Mkdir(st.osPath(cur), 0o750); err != nil {
			return created, err
		}

		now := st.now()
		st.entries[cur] = &entry{
			Mode:        mode.Perm(),
			Owner:       s.user,
			Group:       s.user,
			ModTime:     now,
			AccessTime:  now,
			Replication: common.DefaultReplication,
			BlockSize:   common.DefaultBlockSize,
		}
		parent.ModTime = now
		created = true
	}
	if created {
		return true, st.saveLocked()
	}
	return false, nil
}

// ListDirectory returns the entries of a directory sorted by name.
func (s *Session) ListDirectory(ctx context.Context, p string) ([]common.FileStatus, error) {
	if err := s.check(ctx, p); err != nil {
		return nil, err
	}

	st := s.store
	st.mu.RLock()
	defer st.mu.RUnlock()

	info, e, err := st.lookup(p)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, common.ErrNotADirectory
	}
	if p != common.RootPath {
		if err := common.CheckAccess(s.user, st.status(p, info, e), common.AccessRead); err != nil {
			return nil, err
		}
	}

	names, err := st.children(p)
	if err != nil {
		return nil, err
	}
	out := make([]common.FileStatus, 0, len(names))
	for _, name := range names {
		child := pathutil.Join(p, name)
		cinfo, ce, err := st.lookup(child)
		if err != nil {
			// Removed behind our back; skip it.
			continue
		}
		out = append(out, st.status(child, cinfo, ce))
	}
	return out, nil
}

// GetPathStatus returns the status of p.
func (s *Session) GetPathStatus(ctx context.Context, p string) (common.FileStatus, error) {
	if err := s.check(ctx, p); err != nil {
		return common.FileStatus{}, err
	}

	st := s.store
	st.mu.RLock()
	defer st.mu.RUnlock()

	info, e, err := st.lookup(p)
	if err != nil {
		return common.FileStatus{}, err
	}
	return st.status(p, info, e), nil
}

// GetBlockLocations reports the whole file as one block on the store's host.
func (s *Session) GetBlockLocations(ctx context.Context, p string, start, length int64) ([]common.BlockLocation, error) {
	if err := s.check(ctx, p); err != nil {
		return nil, err
	}
	if start < 0 || length < 0 {
		return nil, common.ErrInvalidArgument
	}

	st := s.store
	st.mu.RLock()
	defer st.mu.RUnlock()

	info, _, err := st.lookup(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return []common.BlockLocation{}, nil
	}
	return common.ClipBlock(info.Size(), start, length, st.host), nil
}

// Unlink removes a file or an empty directory.
func (s *Session) Unlink(ctx context.Context, p string) (bool, error) {
	return s.remove(ctx, p, false)
}

// UnlinkTree removes p and everything below it.
func (s *Session) UnlinkTree(ctx context.Context, p string) (bool, error) {
	return s.remove(ctx, p, true)
}

func (s *Session) remove(ctx context.Context, p string, recursive bool) (bool, error) {
	if err := s.check(ctx, p); err != nil {
		return false, err
	}
	if p == common.RootPath {
		return false, common.ErrInvalidArgument
	}

	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()

	info, _, err := st.lookup(p)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() && !recursive {
		names, err := st.children(p)
		if err != nil {
			return false, err
		}
		if len(names) > 0 {
			return false, common.ErrDirectoryNotEmpty
		}
	}
	dir, parent, err := st.parentDir(p)
	if err != nil {
		return false, err
	}
	if err := st.checkWritable(s.user, dir, parent); err != nil {
		return false, err
	}

	if recursive {
		err = os.RemoveAll(st.osPath(p))
	} else {
		err = os.Remove(st.osPath(p))
	}
	if err != nil {
		return false, err
	}
	st.dropEntries(p)
	parent.ModTime = st.now()
	return true, st.saveLocked()
}

// Rename moves src to dst. An existing directory at dst receives src; an
// existing file at dst is never replaced.
func (s *Session) Rename(ctx context.Context, src, dst string) error {
	if err := s.check(ctx, src); err != nil {
		return err
	}
	if err := s.check(ctx, dst); err != nil {
		return err
	}
	if src == common.RootPath {
		return common.ErrInvalidArgument
	}

	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()

	srcInfo, _, err := st.lookup(src)
	if err != nil {
		return err
	}
	if dstInfo, _, err := st.lookup(dst); err == nil {
		if !dstInfo.IsDir() {
			if srcInfo.IsDir() {
				return common.ErrNotADirectory
			}
			return common.ErrAlreadyExists
		}
		dst = pathutil.Join(dst, pathutil.Base(src))
		if _, _, err := st.lookup(dst); err == nil {
			return common.ErrAlreadyExists
		}
	}
	if dst == src || pathutil.IsDescendant(dst, src) {
		return common.ErrInvalidArgument
	}
	if dst == "/"+IndexName {
		return common.ErrInvalidArgument
	}

	srcDir, srcParent, err := st.parentDir(src)
	if err != nil {
		return err
	}
	dstDir, dstParent, err := st.parentDir(dst)
	if err != nil {
		return err
	}
	if err := st.checkWritable(s.user, srcDir, srcParent); err != nil {
		return err
	}
	if err := st.checkWritable(s.user, dstDir, dstParent); err != nil {
		return err
	}

	if err := os.Rename(st.osPath(src), st.osPath(dst)); err != nil {
		return err
	}
	if _, ok := st.entries[src]; !ok {
		_, e, _ := st.lookup(dst)
		st.entries[src] = e
	}
	st.moveEntries(src, dst)
	now := st.now()
	srcParent.ModTime = now
	dstParent.ModTime = now
	return st.saveLocked()
}

// Chmod replaces the permission bits of p.
func (s *Session) Chmod(ctx context.Context, p string, mode fs.FileMode) error {
	return s.modify(ctx, p, func(e *entry) {
		e.Mode = mode.Perm()
	})
}

// Chown changes owner and group. Empty values are left unchanged.
func (s *Session) Chown(ctx context.Context, p, owner, group string) error {
	return s.modify(ctx, p, func(e *entry) {
		if owner != "" {
			e.Owner = owner
		}
		if group != "" {
			e.Group = group
		}
	})
}

// SetTimes changes modification and access times. Zero values are left
// unchanged.
func (s *Session) SetTimes(ctx context.Context, p string, mtime, atime time.Time) error {
	return s.modify(ctx, p, func(e *entry) {
		if !mtime.IsZero() {
			e.ModTime = mtime
		}
		if !atime.IsZero() {
			e.AccessTime = atime
		}
	})
}

func (s *Session) modify(ctx context.Context, p string, fn func(*entry)) error {
	if err := s.check(ctx, p); err != nil {
		return err
	}

	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()

	info, e, err := st.lookup(p)
	if err != nil {
		return err
	}
	if err := common.CheckOwnership(s.user, st.status(p, info, e)); err != nil {
		return err
	}
	fn(e)
	st.entries[p] = e
	return st.saveLocked()
}

// Disconnect closes every handle still open on the session. Later calls are
// no-ops.
func (s *Session) Disconnect(ctx context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}

	s.mu.Lock()
	open := make([]handle, 0, len(s.handles))
	for h := range s.handles {
		open = append(open, h)
	}
	s.mu.Unlock()

	var firstErr error
	for _, h := range open {
		if err := h.Close(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close handle: %w", err)
		}
	}
	return firstErr
}
