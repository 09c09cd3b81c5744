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
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
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

// Session is one user's connection to a bucket namespace. It implements
// common.Session.
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

// dirStatus returns the status of the directory at p.
func (s *Session) dirStatus(ctx context.Context, p string) (common.FileStatus, error) {
	o, err := s.store.stat(ctx, p)
	if err != nil {
		return common.FileStatus{}, err
	}
	if !o.isDir {
		return common.FileStatus{}, common.ErrNotADirectory
	}
	return s.store.status(p, o), nil
}

// checkWritable applies the enclosing-directory write check to the parent
// of p.
func (s *Session) checkWritable(ctx context.Context, p string) error {
	dir := pathutil.Parent(p)
	st, err := s.dirStatus(ctx, dir)
	if err != nil {
		return err
	}
	if dir == common.RootPath {
		return nil
	}
	return common.CheckAccess(s.user, st, common.AccessWrite)
}

func (s *Session) newStatus(p string, isDir bool, mode fs.FileMode, repl int16, blockSize int64) common.FileStatus {
	now := s.store.now().UTC()
	return common.FileStatus{
		Path:        p,
		IsDir:       isDir,
		Replication: repl,
		BlockSize:   blockSize,
		ModTime:     now,
		AccessTime:  now,
		Mode:        mode.Perm(),
		Owner:       s.user,
		Group:       s.user,
	}
}

func (s *Session) put(ctx context.Context, key string, data []byte, st common.FileStatus) error {
	return s.store.bucket.Put(ctx, key, data, encodeMeta(st))
}

func (s *Session) deleteKey(ctx context.Context, key string) error {
	return s.store.bucket.Delete(ctx, key)
}

func (s *Session) copyKey(ctx context.Context, src, dst string) error {
	return s.store.bucket.Copy(ctx, src, dst)
}

// children returns the sorted child paths of dir.
func (s *Session) children(ctx context.Context, dir string) ([]string, error) {
	prefix := s.store.dirKey(dir)
	seen := make(map[string]struct{})

	err := s.store.bucket.Walk(ctx, prefix, "/", func(key string, isPrefix bool) bool {
		name := strings.TrimPrefix(key, prefix)
		if isPrefix {
			name = strings.TrimSuffix(name, "/")
		}
		if name != "" {
			seen[name] = struct{}{}
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, pathutil.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

// keysBelow returns every key that starts with prefix.
func (s *Session) keysBelow(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.store.bucket.Walk(ctx, prefix, "", func(key string, _ bool) bool {
		keys = append(keys, key)
		return true
	})
	return keys, err
}

// Create makes a new file. An existing file is replaced only when
// opts.Overwrite is set.
func (s *Session) Create(ctx context.Context, p string, opts common.CreateOptions) (common.WriteHandle, error) {
	if err := s.check(ctx, p); err != nil {
		return nil, err
	}
	if p == common.RootPath {
		return nil, common.ErrIsADirectory
	}
	opts = opts.WithDefaults()

	if err := s.checkWritable(ctx, p); err != nil {
		return nil, err
	}
	existing, err := s.store.stat(ctx, p)
	switch {
	case err == nil && existing.isDir:
		return nil, common.ErrIsADirectory
	case err == nil && !opts.Overwrite:
		return nil, common.ErrAlreadyExists
	case err != nil && !isMissing(err):
		return nil, err
	}

	st := s.newStatus(p, false, opts.Mode, opts.Replication, opts.BlockSize)
	if err := s.put(ctx, s.store.fileKey(p), nil, st); err != nil {
		return nil, err
	}

	h := &writeHandle{session: s, key: s.store.fileKey(p), status: st}
	s.track(h)
	return h, nil
}

// Open opens an existing file for reading.
func (s *Session) Open(ctx context.Context, p string) (common.ReadHandle, error) {
	if err := s.check(ctx, p); err != nil {
		return nil, err
	}

	o, err := s.store.stat(ctx, p)
	if err != nil {
		return nil, err
	}
	if o.isDir {
		return nil, common.ErrIsADirectory
	}
	if err := common.CheckAccess(s.user, s.store.status(p, o), common.AccessRead); err != nil {
		return nil, err
	}

	h := &readHandle{session: s, key: s.store.fileKey(p), size: o.size}
	s.track(h)
	return h, nil
}

// Mkdirs creates p and its missing ancestors as marker objects.
func (s *Session) Mkdirs(ctx context.Context, p string, mode fs.FileMode) (bool, error) {
	if err := s.check(ctx, p); err != nil {
		return false, err
	}
	if mode.Perm() == 0 {
		mode = common.DefaultDirMode
	}

	created := false
	cur := common.RootPath
	parent := s.store.status(cur, s.store.rootObject())
	for _, elem := range pathutil.Split(p) {
		cur = pathutil.Join(cur, elem)

		o, err := s.store.stat(ctx, cur)
		if err == nil {
			if !o.isDir {
				return created, common.ErrNotADirectory
			}
			parent = s.store.status(cur, o)
			continue
		}
		if !isMissing(err) {
			return created, err
		}
		if parent.Path != common.RootPath {
			if err := common.CheckAccess(s.user, parent, common.AccessWrite); err != nil {
				return created, err
			}
		}

		st := s.newStatus(cur, true, mode, common.DefaultReplication, common.DefaultBlockSize)
		if err := s.put(ctx, s.store.dirKey(cur), nil, st); err != nil {
			return created, err
		}
		parent = st
		created = true
	}
	return created, nil
}

// ListDirectory returns the entries of a directory sorted by name.
func (s *Session) ListDirectory(ctx context.Context, p string) ([]common.FileStatus, error) {
	if err := s.check(ctx, p); err != nil {
		return nil, err
	}

	st, err := s.dirStatus(ctx, p)
	if err != nil {
		return nil, err
	}
	if p != common.RootPath {
		if err := common.CheckAccess(s.user, st, common.AccessRead); err != nil {
			return nil, err
		}
	}

	paths, err := s.children(ctx, p)
	if err != nil {
		return nil, err
	}
	out := make([]common.FileStatus, 0, len(paths))
	for _, child := range paths {
		o, err := s.store.stat(ctx, child)
		if isMissing(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s.store.status(child, o))
	}
	return out, nil
}

// GetPathStatus returns the status of p.
func (s *Session) GetPathStatus(ctx context.Context, p string) (common.FileStatus, error) {
	if err := s.check(ctx, p); err != nil {
		return common.FileStatus{}, err
	}
	o, err := s.store.stat(ctx, p)
	if err != nil {
		return common.FileStatus{}, err
	}
	return s.store.status(p, o), nil
}

// GetBlockLocations reports the whole object as one block on the store's
// host.
func (s *Session) GetBlockLocations(ctx context.Context, p string, start, length int64) ([]common.BlockLocation, error) {
	if err := s.check(ctx, p); err != nil {
		return nil, err
	}
	if start < 0 || length < 0 {
		return nil, common.ErrInvalidArgument
	}
	o, err := s.store.stat(ctx, p)
	if err != nil {
		return nil, err
	}
	if o.isDir {
		return []common.BlockLocation{}, nil
	}
	return common.ClipBlock(o.size, start, length, s.store.host), nil
}

// Unlink removes a file or an empty directory.
func (s *Session) Unlink(ctx context.Context, p string) (bool, error) {
	return s.remove(ctx, p, false)
}

// UnlinkTree removes p and every object below it.
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

	o, err := s.store.stat(ctx, p)
	if isMissing(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if !o.isDir {
		if err := s.checkWritable(ctx, p); err != nil {
			return false, err
		}
		return true, s.deleteKey(ctx, s.store.fileKey(p))
	}

	if !recursive {
		kids, err := s.children(ctx, p)
		if err != nil {
			return false, err
		}
		if len(kids) > 0 {
			return false, common.ErrDirectoryNotEmpty
		}
	}
	if err := s.checkWritable(ctx, p); err != nil {
		return false, err
	}

	keys, err := s.keysBelow(ctx, s.store.dirKey(p))
	if err != nil {
		return false, err
	}
	for _, key := range keys {
		if err := s.deleteKey(ctx, key); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Rename moves src to dst by copying every affected object. An existing
// directory at dst receives src; an existing file at dst is never replaced.
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

	so, err := s.store.stat(ctx, src)
	if err != nil {
		return err
	}
	do, err := s.store.stat(ctx, dst)
	switch {
	case err == nil && !do.isDir:
		if so.isDir {
			return common.ErrNotADirectory
		}
		return common.ErrAlreadyExists
	case err == nil:
		dst = pathutil.Join(dst, pathutil.Base(src))
		if _, err := s.store.stat(ctx, dst); err == nil {
			return common.ErrAlreadyExists
		}
	case !isMissing(err):
		return err
	}
	if dst == src || pathutil.IsDescendant(dst, src) {
		return common.ErrInvalidArgument
	}

	if err := s.checkWritable(ctx, src); err != nil {
		return err
	}
	if err := s.checkWritable(ctx, dst); err != nil {
		return err
	}

	if !so.isDir {
		if err := s.copyKey(ctx, s.store.fileKey(src), s.store.fileKey(dst)); err != nil {
			return err
		}
		return s.deleteKey(ctx, s.store.fileKey(src))
	}

	oldPrefix, newPrefix := s.store.dirKey(src), s.store.dirKey(dst)
	keys, err := s.keysBelow(ctx, oldPrefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.copyKey(ctx, key, newPrefix+strings.TrimPrefix(key, oldPrefix)); err != nil {
			return err
		}
		if err := s.deleteKey(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Chmod replaces the permission bits of p.
func (s *Session) Chmod(ctx context.Context, p string, mode fs.FileMode) error {
	return s.modify(ctx, p, func(st *common.FileStatus) {
		st.Mode = mode.Perm()
	})
}

// Chown changes owner and group. Empty values are left unchanged.
func (s *Session) Chown(ctx context.Context, p, owner, group string) error {
	return s.modify(ctx, p, func(st *common.FileStatus) {
		if owner != "" {
			st.Owner = owner
		}
		if group != "" {
			st.Group = group
		}
	})
}

// SetTimes changes modification and access times. Zero values are left
// unchanged.
func (s *Session) SetTimes(ctx context.Context, p string, mtime, atime time.Time) error {
	return s.modify(ctx, p, func(st *common.FileStatus) {
		if !mtime.IsZero() {
			st.ModTime = mtime
		}
		if !atime.IsZero() {
			st.AccessTime = atime
		}
	})
}

// modify rewrites the metadata of p. Directory markers are rewritten in
// place, which also materializes implicit directories. The root has fixed
// attributes.
func (s *Session) modify(ctx context.Context, p string, fn func(*common.FileStatus)) error {
	if err := s.check(ctx, p); err != nil {
		return err
	}
	if p == common.RootPath {
		return common.ErrInvalidArgument
	}

	o, err := s.store.stat(ctx, p)
	if err != nil {
		return err
	}
	st := s.store.status(p, o)
	if err := common.CheckOwnership(s.user, st); err != nil {
		return err
	}
	fn(&st)

	if o.isDir {
		return s.put(ctx, s.store.dirKey(p), nil, st)
	}
	return s.store.bucket.SetMetadata(ctx, s.store.fileKey(p), encodeMeta(st))
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

// isMissing reports whether err means the path does not exist.
func isMissing(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
