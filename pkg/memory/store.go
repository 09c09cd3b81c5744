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

// Package memory provides an in-memory Redfish session. A Store holds one
// namespace; any number of sessions, one per user, can connect to it. This is
// useful for testing, development, and single-process tools where
// persistence is not required.
package memory

import (
	"io/fs"
	"sort"
	"sync"
	"time"

	"github.com/jeremyhahn/go-redfish/pkg/common"
	"github.com/jeremyhahn/go-redfish/pkg/pathutil"
)

// node is one file or directory in the namespace.
type node struct {
	isDir       bool
	data        []byte
	mode        fs.FileMode
	owner       string
	group       string
	mtime       time.Time
	atime       time.Time
	replication int16
	blockSize   int64
}

// Store is an in-memory Redfish namespace.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]*node
	now   func() time.Time
	host  common.BlockHost
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock replaces the time source used for timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// WithBlockHost sets the host reported by block location queries.
func WithBlockHost(host common.BlockHost) StoreOption {
	return func(s *Store) {
		s.host = host
	}
}

// NewStore creates an empty namespace holding only the root directory.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		nodes: make(map[string]*node),
		now:   time.Now,
		host:  common.BlockHost{Hostname: "localhost", Port: 0},
	}
	for _, opt := range opts {
		opt(s)
	}

	now := s.now()
	s.nodes[common.RootPath] = &node{
		isDir:       true,
		mode:        common.DefaultDirMode,
		owner:       common.SuperuserName,
		group:       common.SuperuserName,
		mtime:       now,
		atime:       now,
		replication: common.DefaultReplication,
		blockSize:   common.DefaultBlockSize,
	}
	return s
}

var (
	sharedMu sync.Mutex
	shared   = make(map[string]*Store)
)

// Shared returns the process-wide store registered under name, creating it
// on first use.
func Shared(name string) *Store {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	s, ok := shared[name]
	if !ok {
		s = NewStore()
		shared[name] = s
	}
	return s
}

// Connect opens a session on the store for user.
func (s *Store) Connect(user string) *Session {
	return &Session{
		store:   s,
		user:    user,
		handles: make(map[handle]struct{}),
	}
}

// status builds the public snapshot of a node. Callers hold s.mu.
func (s *Store) status(path string, n *node) common.FileStatus {
	st := common.FileStatus{
		Path:        path,
		IsDir:       n.isDir,
		Replication: n.replication,
		BlockSize:   n.blockSize,
		ModTime:     n.mtime,
		AccessTime:  n.atime,
		Mode:        n.mode,
		Owner:       n.owner,
		Group:       n.group,
	}
	if !n.isDir {
		st.Length = int64(len(n.data))
	}
	return st
}

// parentDir returns the directory that would hold path. Callers hold s.mu.
func (s *Store) parentDir(path string) (string, *node, error) {
	parent := pathutil.Parent(path)
	n, ok := s.nodes[parent]
	if !ok {
		return parent, nil, common.ErrNotFound
	}
	if !n.isDir {
		return parent, nil, common.ErrNotADirectory
	}
	return parent, n, nil
}

// checkWritable applies the enclosing-directory write check. The root
// directory is open to everyone. Callers hold s.mu.
func (s *Store) checkWritable(user, dir string, n *node) error {
	if dir == common.RootPath {
		return nil
	}
	return common.CheckAccess(user, s.status(dir, n), common.AccessWrite)
}

// children returns the sorted paths directly below dir. Callers hold s.mu.
func (s *Store) children(dir string) []string {
	var out []string
	for p := range s.nodes {
		if p != common.RootPath && pathutil.Parent(p) == dir {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// subtree returns dir and every path below it. Callers hold s.mu.
func (s *Store) subtree(dir string) []string {
	out := []string{dir}
	for p := range s.nodes {
		if pathutil.IsDescendant(p, dir) {
			out = append(out, p)
		}
	}
	return out
}
