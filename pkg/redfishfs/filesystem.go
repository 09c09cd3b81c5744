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

package redfishfs

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"os/user"
	"sync"
	"time"

	"github.com/jeremyhahn/go-redfish/pkg/adapters"
	"github.com/jeremyhahn/go-redfish/pkg/client"
	"github.com/jeremyhahn/go-redfish/pkg/common"
	"github.com/jeremyhahn/go-redfish/pkg/pathutil"
	"github.com/jeremyhahn/go-redfish/pkg/stream"
)

type state int

const (
	stateUninitialized state = iota
	stateInitialized
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateInitialized:
		return "initialized"
	default:
		return "closed"
	}
}

// UserLookup returns the name of the user the filesystem acts for.
type UserLookup func() (string, error)

// CurrentUser names the process owner, falling back to $USER.
func CurrentUser() (string, error) {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username, nil
	}
	if name := os.Getenv("USER"); name != "" {
		return name, nil
	}
	return "", fmt.Errorf("%w: cannot determine the current user", common.ErrConfiguration)
}

// Option configures a RedfishFileSystem.
type Option func(*RedfishFileSystem)

// WithUserLookup replaces CurrentUser.
func WithUserLookup(lookup UserLookup) Option {
	return func(f *RedfishFileSystem) {
		if lookup != nil {
			f.lookupUser = lookup
		}
	}
}

// WithClientOptions passes options to the session client created by
// Initialize.
func WithClientOptions(opts ...client.Option) Option {
	return func(f *RedfishFileSystem) {
		f.clientOpts = append(f.clientOpts, opts...)
	}
}

// WithLogger sets the logger shared with the client and the streams.
func WithLogger(logger adapters.Logger) Option {
	return func(f *RedfishFileSystem) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// RedfishFileSystem implements FileSystem over a client.Client.
type RedfishFileSystem struct {
	lookupUser UserLookup
	clientOpts []client.Option
	logger     adapters.Logger
	stats      *stream.Statistics

	mu     sync.RWMutex
	state  state
	client *client.Client
	uri    *url.URL
	user   string
	cwd    string
}

var _ FileSystem = (*RedfishFileSystem)(nil)

// New creates an uninitialized filesystem.
func New(opts ...Option) *RedfishFileSystem {
	f := &RedfishFileSystem{
		lookupUser: CurrentUser,
		logger:     adapters.NewNoOpLogger(),
		stats:      &stream.Statistics{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Initialize connects to the Redfish deployment named by the configuration
// file under ConfigFileKey. Only the scheme and authority of uri are kept.
func (f *RedfishFileSystem) Initialize(ctx context.Context, uri string, conf Configuration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != stateUninitialized {
		return fmt.Errorf("%w: filesystem is %s", common.ErrIllegalState, f.state)
	}
	if conf == nil {
		return ErrConfigFileNotSet
	}
	configFile := conf.GetString(ConfigFileKey)
	if configFile == "" {
		return ErrConfigFileNotSet
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("%w: invalid filesystem URI %q: %w", common.ErrConfiguration, uri, err)
	}
	scheme := parsed.Scheme
	if scheme == "" {
		scheme = Scheme
	}

	name, err := f.lookupUser()
	if err != nil {
		return err
	}
	if err := common.ValidateUser("user", name); err != nil {
		return err
	}

	c := client.New(append([]client.Option{client.WithLogger(f.logger)}, f.clientOpts...)...)
	if err := c.Connect(ctx, configFile, name); err != nil {
		return err
	}

	f.client = c
	f.uri = &url.URL{Scheme: scheme, Host: parsed.Host}
	f.user = name
	f.cwd = pathutil.Join(HomePrefix, name)
	f.state = stateInitialized

	f.logger.Info(ctx, "Redfish filesystem initialized",
		adapters.Field{Key: "uri", Value: f.uri.String()},
		adapters.Field{Key: "user", Value: name},
	)
	return nil
}

// Close disconnects the session. Every later call fails with
// common.ErrIllegalState.
func (f *RedfishFileSystem) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != stateInitialized {
		return fmt.Errorf("%w: filesystem is %s", common.ErrIllegalState, f.state)
	}
	f.state = stateClosed
	return f.client.Disconnect(ctx)
}

// snapshot returns the client and the working directory as of this call.
func (f *RedfishFileSystem) snapshot() (*client.Client, string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.state != stateInitialized {
		return nil, "", fmt.Errorf("%w: filesystem is %s", common.ErrIllegalState, f.state)
	}
	return f.client, f.cwd, nil
}

func (f *RedfishFileSystem) streamOptions() []stream.Option {
	return []stream.Option{stream.WithStatistics(f.stats), stream.WithLogger(f.logger)}
}

// Open opens p for reading.
func (f *RedfishFileSystem) Open(ctx context.Context, p string) (*stream.InputStream, error) {
	c, cwd, err := f.snapshot()
	if err != nil {
		return nil, err
	}
	abs := pathutil.Resolve(p, cwd)
	h, err := c.Open(ctx, abs)
	if err != nil {
		return nil, err
	}
	return stream.NewInputStream(ctx, abs, h, f.streamOptions()...), nil
}

// Create opens p for writing. An existing file is replaced only when
// opts.Overwrite is set.
func (f *RedfishFileSystem) Create(ctx context.Context, p string, opts common.CreateOptions) (*stream.OutputStream, error) {
	c, cwd, err := f.snapshot()
	if err != nil {
		return nil, err
	}
	abs := pathutil.Resolve(p, cwd)
	h, err := c.Create(ctx, abs, opts)
	if err != nil {
		return nil, err
	}
	return stream.NewOutputStream(ctx, abs, h, f.streamOptions()...), nil
}

// Append is not supported by Redfish.
func (f *RedfishFileSystem) Append(ctx context.Context, p string) (*stream.OutputStream, error) {
	_, cwd, err := f.snapshot()
	if err != nil {
		return nil, err
	}
	return nil, &common.PathError{Op: "append", Path: pathutil.Resolve(p, cwd), Err: common.ErrNotImplemented}
}

// Rename moves src to dst. It never replaces an existing file.
func (f *RedfishFileSystem) Rename(ctx context.Context, src, dst string) error {
	c, cwd, err := f.snapshot()
	if err != nil {
		return err
	}
	return c.Rename(ctx, pathutil.Resolve(src, cwd), pathutil.Resolve(dst, cwd))
}

// Delete removes p, and everything below it when recursive is set. A missing
// path reports false.
func (f *RedfishFileSystem) Delete(ctx context.Context, p string, recursive bool) (bool, error) {
	c, cwd, err := f.snapshot()
	if err != nil {
		return false, err
	}
	abs := pathutil.Resolve(p, cwd)
	if recursive {
		return c.UnlinkTree(ctx, abs)
	}
	return c.Unlink(ctx, abs)
}

// ListStatus returns the entries of directory p sorted by name.
func (f *RedfishFileSystem) ListStatus(ctx context.Context, p string) ([]common.FileStatus, error) {
	c, cwd, err := f.snapshot()
	if err != nil {
		return nil, err
	}
	return c.ListDirectory(ctx, pathutil.Resolve(p, cwd))
}

// Mkdirs creates p and its missing parents. It reports false when p
// already existed.
func (f *RedfishFileSystem) Mkdirs(ctx context.Context, p string, mode fs.FileMode) (bool, error) {
	c, cwd, err := f.snapshot()
	if err != nil {
		return false, err
	}
	return c.Mkdirs(ctx, pathutil.Resolve(p, cwd), mode)
}

// GetFileStatus returns the status of p.
func (f *RedfishFileSystem) GetFileStatus(ctx context.Context, p string) (common.FileStatus, error) {
	c, cwd, err := f.snapshot()
	if err != nil {
		return common.FileStatus{}, err
	}
	return c.GetPathStatus(ctx, pathutil.Resolve(p, cwd))
}

// SetOwner changes the owner and group of p. Empty values are left as is.
func (f *RedfishFileSystem) SetOwner(ctx context.Context, p, owner, group string) error {
	c, cwd, err := f.snapshot()
	if err != nil {
		return err
	}
	return c.Chown(ctx, pathutil.Resolve(p, cwd), owner, group)
}

// SetPermission changes the permission bits of p.
func (f *RedfishFileSystem) SetPermission(ctx context.Context, p string, mode fs.FileMode) error {
	c, cwd, err := f.snapshot()
	if err != nil {
		return err
	}
	return c.Chmod(ctx, pathutil.Resolve(p, cwd), mode)
}

// SetTimes changes the timestamps of p. A zero time is left unchanged.
func (f *RedfishFileSystem) SetTimes(ctx context.Context, p string, mtime, atime time.Time) error {
	c, cwd, err := f.snapshot()
	if err != nil {
		return err
	}
	return c.SetTimes(ctx, pathutil.Resolve(p, cwd), mtime, atime)
}

// GetFileBlockLocations returns the blocks of the file described by st that
// overlap [start, start+length). A nil status or a directory yields nil.
func (f *RedfishFileSystem) GetFileBlockLocations(ctx context.Context, st *common.FileStatus, start, length int64) ([]common.BlockLocation, error) {
	c, _, err := f.snapshot()
	if err != nil {
		return nil, err
	}
	if st == nil || st.IsDir {
		return nil, nil
	}
	if start < 0 || length < 0 {
		return nil, &common.PathError{
			Op:   "locate",
			Path: st.Path,
			Err:  fmt.Errorf("%w: negative start %d or length %d", common.ErrInvalidArgument, start, length),
		}
	}
	if start >= st.Length {
		return []common.BlockLocation{}, nil
	}
	return c.GetBlockLocations(ctx, st.Path, start, length)
}

// SetWorkingDirectory makes p, resolved against the current working
// directory, the new working directory.
func (f *RedfishFileSystem) SetWorkingDirectory(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != stateInitialized {
		return fmt.Errorf("%w: filesystem is %s", common.ErrIllegalState, f.state)
	}
	f.cwd = pathutil.Resolve(p, f.cwd)
	return nil
}

// GetWorkingDirectory returns the absolute working directory.
func (f *RedfishFileSystem) GetWorkingDirectory() (string, error) {
	_, cwd, err := f.snapshot()
	return cwd, err
}

// HomeDirectory returns /user/<name>, or "" before Initialize.
func (f *RedfishFileSystem) HomeDirectory() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.user == "" {
		return ""
	}
	return pathutil.Join(HomePrefix, f.user)
}

// URI returns the scheme and authority the filesystem was initialized
// with, or nil before Initialize.
func (f *RedfishFileSystem) URI() *url.URL {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.uri == nil {
		return nil
	}
	u := *f.uri
	return &u
}

// Statistics returns the I/O counters of every stream the filesystem opened.
// It is a pure accessor: it works in every lifecycle state, so counters stay
// readable after Close.
func (f *RedfishFileSystem) Statistics() *stream.Statistics {
	return f.stats
}

// DefaultBlockSize is the block size reported for new files. Like
// DefaultReplication it is a constant and needs no session.
func (f *RedfishFileSystem) DefaultBlockSize() int64 {
	return common.DefaultBlockSize
}

// DefaultReplication is the replication reported for new files.
func (f *RedfishFileSystem) DefaultReplication() int16 {
	return common.DefaultReplication
}
