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

// Package storagefs presents a Redfish filesystem through the io/fs
// interfaces, so that fs.WalkDir, http.FS, template.ParseFS and similar
// consumers can read from it. The view is read-only.
package storagefs

import (
	"context"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/jeremyhahn/go-redfish/pkg/common"
	"github.com/jeremyhahn/go-redfish/pkg/redfishfs"
)

// FS is an fs.FS rooted at a directory of a Redfish filesystem.
type FS struct {
	ctx  context.Context
	fsys redfishfs.FileSystem
	root string
}

var (
	_ fs.FS         = (*FS)(nil)
	_ fs.StatFS     = (*FS)(nil)
	_ fs.ReadDirFS  = (*FS)(nil)
	_ fs.ReadFileFS = (*FS)(nil)
	_ fs.SubFS      = (*FS)(nil)
)

// New returns a view of fsys rooted at root, an absolute Redfish path. Every
// call made through the view uses ctx.
func New(ctx context.Context, fsys redfishfs.FileSystem, root string) *FS {
	if root == "" {
		root = common.RootPath
	}
	return &FS{ctx: ctx, fsys: fsys, root: path.Clean("/" + root)}
}

// resolve maps an fs.FS name to a Redfish path.
func (f *FS) resolve(op, name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return f.root, nil
	}
	return path.Join(f.root, name), nil
}

func (f *FS) stat(op, name string) (string, *fileInfo, error) {
	p, err := f.resolve(op, name)
	if err != nil {
		return "", nil, err
	}
	st, err := f.fsys.GetFileStatus(f.ctx, p)
	if err != nil {
		return "", nil, &fs.PathError{Op: op, Path: name, Err: err}
	}
	return p, newFileInfo(path.Base(name), st), nil
}

// Open opens the named file or directory.
func (f *FS) Open(name string) (fs.File, error) {
	p, info, err := f.stat("open", name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		entries, err := f.list("open", name, p)
		if err != nil {
			return nil, err
		}
		return &dir{info: info, entries: entries}, nil
	}

	in, err := f.fsys.Open(f.ctx, p)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &file{name: name, in: in, info: info}, nil
}

// Stat returns the file info of name.
func (f *FS) Stat(name string) (fs.FileInfo, error) {
	_, info, err := f.stat("stat", name)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// ReadDir returns the entries of the named directory sorted by name.
func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	p, err := f.resolve("readdir", name)
	if err != nil {
		return nil, err
	}
	return f.list("readdir", name, p)
}

func (f *FS) list(op, name, p string) ([]fs.DirEntry, error) {
	statuses, err := f.fsys.ListStatus(f.ctx, p)
	if err != nil {
		return nil, &fs.PathError{Op: op, Path: name, Err: err}
	}
	entries := make([]fs.DirEntry, 0, len(statuses))
	for _, st := range statuses {
		entries = append(entries, fs.FileInfoToDirEntry(newFileInfo(st.Name(), st)))
	}
	slices.SortFunc(entries, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return entries, nil
}

// ReadFile reads the whole named file.
func (f *FS) ReadFile(name string) ([]byte, error) {
	p, err := f.resolve("readfile", name)
	if err != nil {
		return nil, err
	}
	data, err := redfishfs.ReadFile(f.ctx, f.fsys, p)
	if err != nil {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: err}
	}
	return data, nil
}

// Sub returns the view rooted at dir.
func (f *FS) Sub(dir string) (fs.FS, error) {
	p, info, err := f.stat("sub", dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "sub", Path: dir, Err: common.ErrNotADirectory}
	}
	return &FS{ctx: f.ctx, fsys: f.fsys, root: p}, nil
}

// fileInfo adapts a FileStatus to fs.FileInfo.
type fileInfo struct {
	name   string
	status common.FileStatus
}

func newFileInfo(name string, st common.FileStatus) *fileInfo {
	return &fileInfo{name: name, status: st}
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.status.Length }
func (fi *fileInfo) ModTime() time.Time { return fi.status.ModTime }
func (fi *fileInfo) IsDir() bool        { return fi.status.IsDir }

// Sys returns the common.FileStatus behind the info.
func (fi *fileInfo) Sys() any { return fi.status }

func (fi *fileInfo) Mode() fs.FileMode {
	if fi.status.IsDir {
		return fs.ModeDir | fi.status.Permission()
	}
	return fi.status.Permission()
}
