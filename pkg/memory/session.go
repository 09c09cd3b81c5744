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
	"io/fs"
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

// User returns the user the session acts for.
func (s *Session) User() string {
	return s.user
}

func (s *Session) check(ctx context.Context) error {
	if s.closed.Load() {
		return common.ErrNotConnected
	}
	return ctx.Err()
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
func (s *Session) Create(ctx context.Context, path string, opts common.CreateOptions) (common.WriteHandle, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if path == common.RootPath {
		return nil, common.ErrIsADirectory
	}
	opts = opts.WithDefaults()

	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()

	dir, parent, err := st.parentDir(path)
	if err != nil {
		return nil, err
	}
	if err := st.checkWritable(s.user, dir, parent); err != nil {
		return nil, err
	}
	if existing, ok := st.nodes[path]; ok {
		if existing.isDir {
			return nil, common.ErrIsADirectory
		}
		if !opts.Overwrite {
			return nil, common.ErrAlreadyExists
		}
	}

	now := st.now()
	n := &node{
		mode:        opts.Mode.Perm(),
		owner:       s.user,
		group:       s.user,
		mtime:       now,
		atime:       now,
		replication: opts.Replication,
		blockSize:   opts.BlockSize,
	}
	st.nodes[path] = n
	parent.mtime = now

	h := &writeHandle{session: s, node: n, bufSize: opts.BufferSize}
	s.track(h)
	return h, nil
}

// Open opens an existing file for reading.
func (s *Session) Open(ctx context.Context, path string) (common.ReadHandle, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()

	n, ok := st.nodes[path]
	if !ok {
		return nil, common.ErrNotFound
	}
	if n.isDir {
		return nil, common.ErrIsADirectory
	}
	if err := common.CheckAccess(s.user, st.status(path, n), common.AccessRead); err != nil {
		return nil, err
	}
	n.atime = st.now()

	h := &readHandle{session: s, node: n}
	s.track(h)
	return h, nil
}

// Mkdirs creates path and its missing ancestors.
func (s *Session) Mkdirs(ctx context.Context, path string, mode fs.FileMode) (bool, error) {
	if err := s.check(ctx); err != nil {
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
	for _, elem := range pathutil.Split(path) {
		parentPath, parent := cur, st.nodes[cur]
		cur = pathutil.Join(cur, elem)

		if n, ok := st.nodes[cur]; ok {
			if !n.isDir {
				return created, common.ErrNotADirectory
			}
			continue
		}
		if err := st.checkWritable(s.user, parentPath, parent); err != nil {
			return created, err
		}

		now := st.now()
		st.nodes[cur] = &node{
			isDir:       true,
			mode:        mode.Perm(),
			owner:       s.user,
			group:       s.user,
			mtime:       now,
			atime:       now,
			replication: common.DefaultReplication,
			blockSize:   common.DefaultBlockSize,
		}
		parent.mtime = now
		created = true
	}
	return created, nil
}

// ListDirectory returns the entries of a directory sorted by name.
func (s *Session) ListDirectory(ctx context.Context, path string) ([]common.FileStatus, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	st := s.store
	st.mu.RLock()
	defer st.mu.RUnlock()

	n, ok := st.nodes[path]
	if !ok {
		return nil, common.ErrNotFound
	}
	if !n.isDir {
		return nil, common.ErrNotADirectory
	}
	if path != common.RootPath {
		if err := common.CheckAccess(s.user, st.status(path, n), common.AccessRead); err != nil {
			return nil, err
		}
	}

	children := st.children(path)
	out := make([]common.FileStatus, 0, len(children))
	for _, p := range children {
		out = append(out, st.status(p, st.nodes[p]))
	}
	return out, nil
}

// GetPathStatus returns the status of path.
func (s *Session) GetPathStatus(ctx context.Context, path string) (common.FileStatus, error) {
	if err := s.check(ctx); err != nil {
		return common.FileStatus{}, err
	}

	st := s.store
	st.mu.RLock()
	defer st.mu.RUnlock()

	n, ok := st.nodes[path]
	if !ok {
		return common.FileStatus{}, common.ErrNotFound
	}
	return st.status(path, n), nil
}

// GetBlockLocations reports the whole file as one block on the store's host.
func (s *Session) GetBlockLocations(ctx context.Context, path string, start, length int64) ([]common.BlockLocation, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if start < 0 || length < 0 {
		return nil, common.ErrInvalidArgument
	}

	st := s.store
	st.mu.RLock()
	defer st.mu.RUnlock()

	n, ok := st.nodes[path]
	if !ok {
		return nil, common.ErrNotFound
	}
	if n.isDir {
		return []common.BlockLocation{}, nil
	}
	return common.ClipBlock(int64(len(n.data)), start, length, st.host), nil
}

// Unlink removes a file or an empty directory.
func (s *Session) Unlink(ctx context.Context, path string) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}
	if path == common.RootPath {
		return false, common.ErrInvalidArgument
	}

	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()

	n, ok := st.nodes[path]
	if !ok {
		return false, nil
	}
	if n.isDir && len(st.children(path)) > 0 {
		return false, common.ErrDirectoryNotEmpty
	}
	dir, parent, err := st.parentDir(path)
	if err != nil {
		return false, err
	}
	if err := st.checkWritable(s.user, dir, parent); err != nil {
		return false, err
	}

	delete(st.nodes, path)
	parent.mtime = st.now()
	return true, nil
}

// UnlinkTree removes path and everything below it.
func (s *Session) UnlinkTree(ctx context.Context, path string) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}
	if path == common.RootPath {
		return false, common.ErrInvalidArgument
	}

	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.nodes[path]; !ok {
		return false, nil
	}
	dir, parent, err := st.parentDir(path)
	if err != nil {
		return false, err
	}
	if err := st.checkWritable(s.user, dir, parent); err != nil {
		return false, err
	}

	for _, p := range st.subtree(path) {
		delete(st.nodes, p)
	}
	parent.mtime = st.now()
	return true, nil
}

// Rename moves src to dst. An existing directory at dst receives src; an
// existing file at dst is never replaced.
func (s *Session) Rename(ctx context.Context, src, dst string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if src == common.RootPath {
		return common.ErrInvalidArgument
	}

	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()

	srcNode, ok := st.nodes[src]
	if !ok {
		return common.ErrNotFound
	}
	if existing, ok := st.nodes[dst]; ok {
		if !existing.isDir {
			if srcNode.isDir {
				return common.ErrNotADirectory
			}
			return common.ErrAlreadyExists
		}
		dst = pathutil.Join(dst, pathutil.Base(src))
		if _, taken := st.nodes[dst]; taken {
			return common.ErrAlreadyExists
		}
	}
	if dst == src || pathutil.IsDescendant(dst, src) {
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

	for _, p := range st.subtree(src) {
		n := st.nodes[p]
		delete(st.nodes, p)
		st.nodes[pathutil.Rebase(p, src, dst)] = n
	}
	now := st.now()
	srcParent.mtime = now
	dstParent.mtime = now
	return nil
}

// Chmod replaces the permission bits of path.
func (s *Session) Chmod(ctx context.Context, path string, mode fs.FileMode) error {
	return s.modify(ctx, path, func(n *node) {
		n.mode = mode.Perm()
	})
}

// Chown changes owner and group. Empty values are left unchanged.
func (s *Session) Chown(ctx context.Context, path, owner, group string) error {
	return s.modify(ctx, path, func(n *node) {
		if owner != "" {
			n.owner = owner
		}
		if group != "" {
			n.group = group
		}
	})
}

// SetTimes changes modification and access times. Zero values are left
// unchanged.
func (s *Session) SetTimes(ctx context.Context, path string, mtime, atime time.Time) error {
	return s.modify(ctx, path, func(n *node) {
		if !mtime.IsZero() {
			n.mtime = mtime
		}
		if !atime.IsZero() {
			n.atime = atime
		}
	})
}

func (s *Session) modify(ctx context.Context, path string, fn func(*node)) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()

	n, ok := st.nodes[path]
	if !ok {
		return common.ErrNotFound
	}
	if err := common.CheckOwnership(s.user, st.status(path, n)); err != nil {
		return err
	}
	fn(n)
	return nil
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

	for _, h := range open {
		_ = h.Close(ctx)
	}
	return nil
}
