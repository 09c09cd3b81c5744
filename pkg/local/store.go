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

// Package local provides a Redfish session over a directory on the local
// disk. File contents live in ordinary files below the base directory;
// ownership, permission bits and timestamps are kept in a JSON index next
// to them.
package local

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/natefinch/atomic"

	"github.com/jeremyhahn/go-redfish/pkg/common"
	"github.com/jeremyhahn/go-redfish/pkg/pathutil"
)

const (
	// BaseEnv names the environment variable that overrides the base
	// directory when no setting is given.
	BaseEnv = "STUB_BASE"

	// DefaultBase is used when neither a setting nor BaseEnv is present.
	DefaultBase = "/tmp/stub_base"

	// IndexName is the metadata index file kept in the base directory. It
	// is hidden from listings and cannot be created through a session.
	IndexName = ".redfish-meta.json"
)

// entry is the metadata recorded for one path.
type entry struct {
	Mode        fs.FileMode `json:"mode"`
	Owner       string      `json:"owner"`
	Group       string      `json:"group"`
	ModTime     time.Time   `json:"mtime"`
	AccessTime  time.Time   `json:"atime"`
	Replication int16       `json:"replication"`
	BlockSize   int64       `json:"block_size"`
}

// Store is a namespace rooted at a base directory.
type Store struct {
	base  string
	index string
	host  common.BlockHost
	now   func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
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

// BaseFromSettings picks the base directory from settings["base"], then
// BaseEnv, then DefaultBase.
func BaseFromSettings(settings map[string]string) string {
	if base := settings["base"]; base != "" {
		return base
	}
	if base := os.Getenv(BaseEnv); base != "" {
		return base
	}
	return DefaultBase
}

// Format creates the base directory and records the root as owned by the
// superuser. An existing index is replaced.
func Format(base string) error {
	if err := os.MkdirAll(base, 0o750); err != nil {
		return fmt.Errorf("%w: %w", common.ErrConfiguration, err)
	}
	s := &Store{
		base:    base,
		index:   filepath.Join(base, IndexName),
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	s.entries[common.RootPath] = s.rootEntry()
	return s.saveLocked()
}

var (
	storesMu sync.Mutex
	stores   = make(map[string]*Store)
)

// Open returns the store for base, loading its index on first use. Stores
// are shared per process so that every session sees the same locks.
func Open(base string, opts ...StoreOption) (*Store, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrConfiguration, err)
	}

	storesMu.Lock()
	defer storesMu.Unlock()

	if s, ok := stores[abs]; ok {
		return s, nil
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: base directory %s: %w", common.ErrConnection, abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: base %s is not a directory", common.ErrConnection, abs)
	}

	s := &Store{
		base:    abs,
		index:   filepath.Join(abs, IndexName),
		host:    common.BlockHost{Hostname: "localhost", Port: 0},
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	stores[abs] = s
	return s, nil
}

// Base returns the absolute base directory.
func (s *Store) Base() string {
	return s.base
}

// Connect opens a session on the store for user.
func (s *Store) Connect(user string) *Session {
	return &Session{
		store:   s,
		user:    user,
		handles: make(map[handle]struct{}),
	}
}

func (s *Store) rootEntry() *entry {
	now := s.now()
	return &entry{
		Mode:        common.DefaultDirMode,
		Owner:       common.SuperuserName,
		Group:       common.SuperuserName,
		ModTime:     now,
		AccessTime:  now,
		Replication: common.DefaultReplication,
		BlockSize:   common.DefaultBlockSize,
	}
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.index)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.entries[common.RootPath] = s.rootEntry()
		return nil
	case err != nil:
		return fmt.Errorf("%w: read index: %w", common.ErrIO, err)
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return fmt.Errorf("%w: parse index %s: %w", common.ErrIO, s.index, err)
	}
	if _, ok := s.entries[common.RootPath]; !ok {
		s.entries[common.RootPath] = s.rootEntry()
	}
	return nil
}

// saveLocked rewrites the index atomically. Callers hold s.mu.
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode index: %w", common.ErrIO, err)
	}
	if err := atomic.WriteFile(s.index, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: write index: %w", common.ErrIO, err)
	}
	return nil
}

// osPath maps a Redfish path below the base directory.
func (s *Store) osPath(p string) string {
	return filepath.Join(s.base, filepath.FromSlash(p))
}

// lookup returns the disk info and metadata for p. Paths that exist on disk
// without an index entry get one derived from the file itself. Callers hold
// s.mu.
func (s *Store) lookup(p string) (os.FileInfo, *entry, error) {
	if p == "/"+IndexName {
		return nil, nil, common.ErrNotFound
	}
	info, err := os.Lstat(s.osPath(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, common.ErrNotFound
		}
		return nil, nil, err
	}
	e, ok := s.entries[p]
	if !ok {
		e = &entry{
			Mode:        info.Mode().Perm(),
			Owner:       common.SuperuserName,
			Group:       common.SuperuserName,
			ModTime:     info.ModTime(),
			AccessTime:  info.ModTime(),
			Replication: common.DefaultReplication,
			BlockSize:   common.DefaultBlockSize,
		}
	}
	return info, e, nil
}

// status builds the public snapshot of p. Callers hold s.mu.
func (s *Store) status(p string, info os.FileInfo, e *entry) common.FileStatus {
	st := common.FileStatus{
		Path:        p,
		IsDir:       info.IsDir(),
		Replication: e.Replication,
		BlockSize:   e.BlockSize,
		ModTime:     e.ModTime,
		AccessTime:  e.AccessTime,
		Mode:        e.Mode.Perm(),
		Owner:       e.Owner,
		Group:       e.Group,
	}
	if !st.IsDir {
		st.Length = info.Size()
	}
	return st
}

// parentDir returns the metadata of the directory that would hold p.
// Callers hold s.mu.
func (s *Store) parentDir(p string) (string, *entry, error) {
	dir := pathutil.Parent(p)
	info, e, err := s.lookup(dir)
	if err != nil {
		return dir, nil, err
	}
	if !info.IsDir() {
		return dir, nil, common.ErrNotADirectory
	}
	s.entries[dir] = e
	return dir, e, nil
}

// checkWritable applies the enclosing-directory write check. Callers hold
// s.mu.
func (s *Store) checkWritable(user, dir string, e *entry) error {
	if dir == common.RootPath {
		return nil
	}
	st := common.FileStatus{Path: dir, IsDir: true, Mode: e.Mode, Owner: e.Owner, Group: e.Group}
	return common.CheckAccess(user, st, common.AccessWrite)
}

// children returns the sorted names directly below dir. Callers hold s.mu.
func (s *Store) children(dir string) ([]string, error) {
	des, err := os.ReadDir(s.osPath(dir))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(des))
	for _, de := range des {
		if dir == common.RootPath && de.Name() == IndexName {
			continue
		}
		out = append(out, de.Name())
	}
	sort.Strings(out)
	return out, nil
}

// dropEntries forgets the metadata of p and everything below it. Callers
// hold s.mu.
func (s *Store) dropEntries(p string) {
	for k := range s.entries {
		if k == p || pathutil.IsDescendant(k, p) {
			delete(s.entries, k)
		}
	}
}

// moveEntries rebases the metadata of src and everything below it onto dst.
// Callers hold s.mu.
func (s *Store) moveEntries(src, dst string) {
	moved := make(map[string]*entry)
	for k, e := range s.entries {
		if k == src || pathutil.IsDescendant(k, src) {
			moved[pathutil.Rebase(k, src, dst)] = e
			delete(s.entries, k)
		}
	}
	for k, e := range moved {
		s.entries[k] = e
	}
}
