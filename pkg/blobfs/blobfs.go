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

// Package blobfs maps the Redfish namespace onto a flat object bucket.
// Files are objects; directories are zero-length marker objects whose keys
// end in a slash. Ownership, permission bits and timestamps travel as user
// metadata on each object. Cloud backends supply a Bucket and get a full
// common.Session in return.
package blobfs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/jeremyhahn/go-redfish/pkg/common"
)

// ErrBucketNotSet is returned by backends configured without a bucket.
var ErrBucketNotSet = errors.New("bucket not set")

// Attrs describes one stored object.
type Attrs struct {
	Size     int64
	Metadata map[string]string
	Updated  time.Time
}

// Bucket is the flat key space a Store writes to. Implementations return an
// error matching common.ErrNotFound for keys that do not exist.
type Bucket interface {
	// Head returns the attributes of key.
	Head(ctx context.Context, key string) (Attrs, error)

	// Put replaces key with data and metadata.
	Put(ctx context.Context, key string, data []byte, meta map[string]string) error

	// ReadRange streams n bytes of key starting at off.
	ReadRange(ctx context.Context, key string, off, n int64) (io.ReadCloser, error)

	// Copy duplicates src at dst, metadata included.
	Copy(ctx context.Context, src, dst string) error

	// SetMetadata replaces the metadata of key without touching its bytes.
	SetMetadata(ctx context.Context, key string, meta map[string]string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Walk calls fn for every key under prefix. With a delimiter, keys
	// sharing the next path segment are folded into one entry reported
	// with isPrefix set. Walk stops when fn returns false.
	Walk(ctx context.Context, prefix, delimiter string, fn func(key string, isPrefix bool) bool) error
}

// Metadata keys stored on every object.
const (
	metaMode        = "redfish-mode"
	metaOwner       = "redfish-owner"
	metaGroup       = "redfish-group"
	metaModTime     = "redfish-mtime"
	metaAccessTime  = "redfish-atime"
	metaReplication = "redfish-replication"
	metaBlockSize   = "redfish-blocksize"
)

// Store addresses one namespace in a bucket.
type Store struct {
	bucket Bucket
	prefix string
	host   common.BlockHost
	now    func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithPrefix places the namespace below a key prefix.
func WithPrefix(prefix string) StoreOption {
	return func(s *Store) {
		s.prefix = strings.Trim(prefix, "/")
		if s.prefix != "" {
			s.prefix += "/"
		}
	}
}

// WithBlockHost sets the host reported by block location queries.
func WithBlockHost(host common.BlockHost) StoreOption {
	return func(s *Store) {
		s.host = host
	}
}

// WithClock replaces the time source used for timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore wraps a bucket.
func NewStore(bucket Bucket, opts ...StoreOption) *Store {
	s := &Store{
		bucket: bucket,
		host:   common.BlockHost{Hostname: "localhost", Port: 0},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bucket returns the bucket behind the store.
func (s *Store) Bucket() Bucket {
	return s.bucket
}

// Prefix returns the key prefix of the namespace, with a trailing slash
// unless empty.
func (s *Store) Prefix() string {
	return s.prefix
}

// Connect opens a session on the store for user.
func (s *Store) Connect(user string) *Session {
	return &Session{
		store:   s,
		user:    user,
		handles: make(map[handle]struct{}),
	}
}

// fileKey is the object key of a file.
func (s *Store) fileKey(p string) string {
	return s.prefix + strings.TrimPrefix(p, "/")
}

// dirKey is the marker key of a directory and the listing prefix of its
// children.
func (s *Store) dirKey(p string) string {
	if p == common.RootPath {
		return s.prefix
	}
	return s.fileKey(p) + "/"
}

// object is the metadata of one file or directory.
type object struct {
	isDir bool
	size  int64
	meta  map[string]string
	mtime time.Time
}

func (s *Store) rootObject() *object {
	return &object{
		isDir: true,
		meta: map[string]string{
			metaMode:  strconv.FormatUint(uint64(common.DefaultDirMode), 8),
			metaOwner: common.SuperuserName,
			metaGroup: common.SuperuserName,
		},
	}
}

// stat finds the object behind p. A directory may exist only implicitly,
// as the common prefix of other keys.
func (s *Store) stat(ctx context.Context, p string) (*object, error) {
	if p == common.RootPath {
		return s.rootObject(), nil
	}

	a, err := s.bucket.Head(ctx, s.fileKey(p))
	if err == nil {
		return &object{size: a.Size, meta: a.Metadata, mtime: a.Updated}, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	a, err = s.bucket.Head(ctx, s.dirKey(p))
	if err == nil {
		return &object{isDir: true, meta: a.Metadata, mtime: a.Updated}, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	found := false
	err = s.bucket.Walk(ctx, s.dirKey(p), "", func(string, bool) bool {
		found = true
		return false
	})
	if err != nil {
		return nil, err
	}
	if found {
		return &object{isDir: true, meta: map[string]string{}}, nil
	}
	return nil, common.ErrNotFound
}

// status converts an object to a FileStatus.
func (s *Store) status(p string, o *object) common.FileStatus {
	st := common.FileStatus{
		Path:        p,
		IsDir:       o.isDir,
		Replication: common.DefaultReplication,
		BlockSize:   common.DefaultBlockSize,
		ModTime:     o.mtime,
		AccessTime:  o.mtime,
		Mode:        common.DefaultFileMode,
		Owner:       common.SuperuserName,
		Group:       common.SuperuserName,
	}
	if o.isDir {
		st.Mode = common.DefaultDirMode
	} else {
		st.Length = o.size
	}

	m := o.meta
	if v, err := strconv.ParseUint(m[metaMode], 8, 32); err == nil {
		st.Mode = fs.FileMode(v).Perm()
	}
	if v := m[metaOwner]; v != "" {
		st.Owner = v
	}
	if v := m[metaGroup]; v != "" {
		st.Group = v
	}
	if v, err := strconv.ParseInt(m[metaModTime], 10, 64); err == nil {
		st.ModTime = time.Unix(0, v).UTC()
	}
	if v, err := strconv.ParseInt(m[metaAccessTime], 10, 64); err == nil {
		st.AccessTime = time.Unix(0, v).UTC()
	}
	if v, err := strconv.ParseInt(m[metaReplication], 10, 16); err == nil {
		st.Replication = int16(v)
	}
	if v, err := strconv.ParseInt(m[metaBlockSize], 10, 64); err == nil {
		st.BlockSize = v
	}
	return st
}

// encodeMeta renders a status as object metadata.
func encodeMeta(st common.FileStatus) map[string]string {
	return map[string]string{
		metaMode:        strconv.FormatUint(uint64(st.Mode.Perm()), 8),
		metaOwner:       st.Owner,
		metaGroup:       st.Group,
		metaModTime:     strconv.FormatInt(st.ModTime.UnixNano(), 10),
		metaAccessTime:  strconv.FormatInt(st.AccessTime.UnixNano(), 10),
		metaReplication: strconv.FormatInt(int64(st.Replication), 10),
		metaBlockSize:   strconv.FormatInt(st.BlockSize, 10),
	}
}
