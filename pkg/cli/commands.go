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

// Package cli implements the fishtool commands over a Redfish filesystem.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jeremyhahn/go-redfish/pkg/adapters"
	"github.com/jeremyhahn/go-redfish/pkg/common"
	"github.com/jeremyhahn/go-redfish/pkg/redfishfs"
)

// DefaultURI is the filesystem URI fishtool initializes with.
const DefaultURI = redfishfs.Scheme + "://fishtool"

// CommandContext holds the filesystem the commands run against.
type CommandContext struct {
	FS     redfishfs.FileSystem
	Config *Config
}

// NewCommandContext initializes a filesystem from cfg. Extra options are
// passed to the filesystem after the ones derived from cfg.
func NewCommandContext(ctx context.Context, cfg *Config, opts ...redfishfs.Option) (*CommandContext, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	var fsOpts []redfishfs.Option
	if cfg.LogLevel != "" {
		level, err := adapters.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		fsOpts = append(fsOpts, redfishfs.WithLogger(adapters.NewLogger(os.Stderr, adapters.LogFormatText, level)))
	}
	if cfg.User != "" {
		name := cfg.User
		fsOpts = append(fsOpts, redfishfs.WithUserLookup(func() (string, error) { return name, nil }))
	}

	fsys := redfishfs.New(append(fsOpts, opts...)...)
	conf := redfishfs.MapConfiguration{redfishfs.ConfigFileKey: cfg.ConfigFile}
	if err := fsys.Initialize(ctx, DefaultURI, conf); err != nil {
		return nil, err
	}
	if cfg.Cwd != "" {
		if err := fsys.SetWorkingDirectory(cfg.Cwd); err != nil {
			_ = fsys.Close(ctx)
			return nil, err
		}
	}
	return &CommandContext{FS: fsys, Config: cfg}, nil
}

// Close disconnects the filesystem.
func (c *CommandContext) Close(ctx context.Context) error {
	return c.FS.Close(ctx)
}

// Format returns the configured output format.
func (c *CommandContext) Format() OutputFormat {
	return OutputFormat(c.Config.OutputFormat)
}

// ListCommand lists a directory, or describes a single file.
func (c *CommandContext) ListCommand(ctx context.Context, p string) ([]common.FileStatus, error) {
	st, err := c.FS.GetFileStatus(ctx, p)
	if err != nil {
		return nil, err
	}
	if !st.IsDir {
		return []common.FileStatus{st}, nil
	}
	return c.FS.ListStatus(ctx, p)
}

// MkdirCommand creates p and its parents. It reports whether anything was
// created.
func (c *CommandContext) MkdirCommand(ctx context.Context, p string, mode fs.FileMode) (bool, error) {
	return c.FS.Mkdirs(ctx, p, mode)
}

// PutCommand uploads the local file src to dst. A src of "-" reads stdin.
func (c *CommandContext) PutCommand(ctx context.Context, src, dst string, overwrite bool) (int64, error) {
	opts := common.CreateOptions{Overwrite: overwrite}
	if src == "" || src == "-" {
		return c.PutReader(ctx, os.Stdin, dst, opts)
	}
	return redfishfs.CopyFromLocal(ctx, c.FS, src, dst, opts)
}

// PutReader uploads everything read from r to dst.
func (c *CommandContext) PutReader(ctx context.Context, r io.Reader, dst string, opts common.CreateOptions) (int64, error) {
	out, err := c.FS.Create(ctx, dst, opts)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	n, err := io.Copy(out, r)
	if err != nil {
		return n, err
	}
	return n, out.Close()
}

// GetCommand downloads src to the local file dst. An empty dst or "-"
// writes to w.
func (c *CommandContext) GetCommand(ctx context.Context, src, dst string, w io.Writer) (int64, error) {
	if dst == "" || dst == "-" {
		return c.CatCommand(ctx, src, w)
	}
	return redfishfs.CopyToLocal(ctx, c.FS, src, dst)
}

// CatCommand copies the contents of p to w.
func (c *CommandContext) CatCommand(ctx context.Context, p string, w io.Writer) (int64, error) {
	in, err := c.FS.Open(ctx, p)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	n, err := io.Copy(w, in)
	if err != nil {
		return n, err
	}
	return n, in.Close()
}

// RemoveCommand deletes p. A missing path is an error.
func (c *CommandContext) RemoveCommand(ctx context.Context, p string, recursive bool) error {
	deleted, err := c.FS.Delete(ctx, p, recursive)
	if err != nil {
		return err
	}
	if !deleted {
		return &common.PathError{Op: "rm", Path: p, Err: common.ErrNotFound}
	}
	return nil
}

// MoveCommand renames src to dst.
func (c *CommandContext) MoveCommand(ctx context.Context, src, dst string) error {
	return c.FS.Rename(ctx, src, dst)
}

// StatCommand returns the status of p.
func (c *CommandContext) StatCommand(ctx context.Context, p string) (common.FileStatus, error) {
	return c.FS.GetFileStatus(ctx, p)
}

// ChmodCommand applies an octal mode such as "644" or "0755" to p.
func (c *CommandContext) ChmodCommand(ctx context.Context, p, mode string) error {
	m, err := ParseMode(mode)
	if err != nil {
		return err
	}
	return c.FS.SetPermission(ctx, p, m)
}

// ChownCommand applies "owner", "owner:group" or ":group" to p.
func (c *CommandContext) ChownCommand(ctx context.Context, p, spec string) error {
	owner, group, err := ParseOwner(spec)
	if err != nil {
		return err
	}
	return c.FS.SetOwner(ctx, p, owner, group)
}

// TouchCommand creates p when it is missing, otherwise sets its
// modification and access times to now.
func (c *CommandContext) TouchCommand(ctx context.Context, p string, now time.Time) error {
	_, err := c.FS.GetFileStatus(ctx, p)
	if errors.Is(err, common.ErrNotFound) {
		out, err := c.FS.Create(ctx, p, common.CreateOptions{})
		if err != nil {
			return err
		}
		return out.Close()
	}
	if err != nil {
		return err
	}
	return c.FS.SetTimes(ctx, p, now, now)
}

// LocateCommand returns the blocks of file p overlapping
// [start, start+length). A negative length means to the end of the file.
func (c *CommandContext) LocateCommand(ctx context.Context, p string, start, length int64) ([]common.BlockLocation, error) {
	st, err := c.FS.GetFileStatus(ctx, p)
	if err != nil {
		return nil, err
	}
	if st.IsDir {
		return nil, &common.PathError{Op: "locate", Path: st.Path, Err: common.ErrIsADirectory}
	}
	if length < 0 {
		length = max(st.Length-start, 0)
	}
	return c.FS.GetFileBlockLocations(ctx, &st, start, length)
}

// ParseMode parses octal permission bits.
func ParseMode(s string) (fs.FileMode, error) {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil || v > uint64(fs.ModePerm) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
	return fs.FileMode(v), nil
}

// ParseOwner splits an "owner:group" argument. Either side may be empty,
// but not both.
func ParseOwner(spec string) (owner, group string, err error) {
	owner, group, _ = strings.Cut(spec, ":")
	if owner == "" && group == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidOwner, spec)
	}
	return owner, group, nil
}
