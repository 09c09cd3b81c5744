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

package common

import (
	"io/fs"
	"path"
	"strconv"
	"time"
)

const (
	// DefaultReplication is the replication factor reported for files created
	// without an explicit one.
	DefaultReplication int16 = 3

	// DefaultBlockSize is the block size reported for files created without an
	// explicit one (64 MiB).
	DefaultBlockSize int64 = 64 * 1024 * 1024

	// DefaultFileMode is applied when a file is created with a zero mode.
	DefaultFileMode fs.FileMode = 0o644

	// DefaultDirMode is applied when a directory is created with a zero mode.
	DefaultDirMode fs.FileMode = 0o755

	// DefaultBufferSize is the stream buffer hint used when none is given.
	DefaultBufferSize = 4096

	// SuperuserName bypasses permission checks and owns the root directory.
	SuperuserName = "superuser"

	// RootPath is the root of every Redfish namespace.
	RootPath = "/"
)

// FileStatus is an immutable snapshot of a path's metadata.
type FileStatus struct {
	Path        string      `json:"path"`
	Length      int64       `json:"length"`
	IsDir       bool        `json:"is_dir"`
	Replication int16       `json:"replication"`
	BlockSize   int64       `json:"block_size"`
	ModTime     time.Time   `json:"mtime"`
	AccessTime  time.Time   `json:"atime"`
	Mode        fs.FileMode `json:"mode"`
	Owner       string      `json:"owner"`
	Group       string      `json:"group"`
}

// Name returns the final element of the status path.
func (s FileStatus) Name() string {
	return path.Base(s.Path)
}

// Permission returns the permission bits of the status mode.
func (s FileStatus) Permission() fs.FileMode {
	return s.Mode.Perm()
}

// BlockHost identifies one replica holder of a block.
type BlockHost struct {
	Hostname string `json:"hostname"`
	Port     int    `json:"port"`
}

// String returns the host in host:port form.
func (h BlockHost) String() string {
	return h.Hostname + ":" + strconv.Itoa(h.Port)
}

// BlockLocation describes which hosts hold replicas of a byte range. It is a
// locality hint only.
type BlockLocation struct {
	Offset int64       `json:"offset"`
	Length int64       `json:"length"`
	Hosts  []BlockHost `json:"hosts"`
}

// Names returns the replica holders in host:port form.
func (b BlockLocation) Names() []string {
	names := make([]string, len(b.Hosts))
	for i, h := range b.Hosts {
		names[i] = h.String()
	}
	return names
}

// Hostnames returns the replica holders without ports.
func (b BlockLocation) Hostnames() []string {
	names := make([]string, len(b.Hosts))
	for i, h := range b.Hosts {
		names[i] = h.Hostname
	}
	return names
}

// CreateOptions controls how a file is created. Zero values select the
// defaults.
type CreateOptions struct {
	Mode        fs.FileMode `json:"mode"`
	Overwrite   bool        `json:"overwrite"`
	BufferSize  int         `json:"buffer_size"`
	Replication int16       `json:"replication"`
	BlockSize   int64       `json:"block_size"`
}

// WithDefaults returns a copy with zero fields replaced by their defaults.
func (o CreateOptions) WithDefaults() CreateOptions {
	if o.Mode.Perm() == 0 {
		o.Mode = DefaultFileMode
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.Replication <= 0 {
		o.Replication = DefaultReplication
	}
	if o.BlockSize <= 0 {
		o.BlockSize = DefaultBlockSize
	}
	return o
}

// ClipBlock returns the single-block location list used by backends that keep
// a whole file on one host: the range [start, start+length) intersected with
// the file, or nothing when start is at or beyond the end.
func ClipBlock(size, start, length int64, host BlockHost) []BlockLocation {
	if start >= size {
		return []BlockLocation{}
	}
	end := start + length
	if end > size || end < start {
		end = size
	}
	return []BlockLocation{{
		Offset: start,
		Length: end - start,
		Hosts:  []BlockHost{host},
	}}
}
