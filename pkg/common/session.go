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
	"context"
	"io/fs"
	"time"
)

// Session is one live connection to a Redfish metadata service. Every path
// handed to a Session is absolute and canonical. Implementations report
// failures with the sentinels in this package wherever one applies.
type Session interface {
	// Create makes a new file and returns a handle for writing it.
	Create(ctx context.Context, path string, opts CreateOptions) (WriteHandle, error)

	// Open opens an existing file for reading.
	Open(ctx context.Context, path string) (ReadHandle, error)

	// Mkdirs creates path and any missing ancestors. It reports whether a
	// directory was created.
	Mkdirs(ctx context.Context, path string, mode fs.FileMode) (bool, error)

	// ListDirectory returns the status of every entry of a directory.
	ListDirectory(ctx context.Context, path string) ([]FileStatus, error)

	// GetPathStatus returns the status of a single path.
	GetPathStatus(ctx context.Context, path string) (FileStatus, error)

	// GetBlockLocations returns replica locations for a byte range of a file.
	GetBlockLocations(ctx context.Context, path string, start, length int64) ([]BlockLocation, error)

	// Unlink removes a file or an empty directory. It returns false when
	// the path does not exist.
	Unlink(ctx context.Context, path string) (bool, error)

	// UnlinkTree removes a path and all of its descendants. It returns
	// false when the path does not exist.
	UnlinkTree(ctx context.Context, path string) (bool, error)

	// Rename moves src to dst. An existing directory at dst receives src.
	Rename(ctx context.Context, src, dst string) error

	// Chmod replaces the permission bits of a path.
	Chmod(ctx context.Context, path string, mode fs.FileMode) error

	// Chown changes the owner and group of a path. Empty values are left unchanged.
	Chown(ctx context.Context, path, owner, group string) error

	// SetTimes changes the modification and access times of a path. Zero
	// values are left unchanged.
	SetTimes(ctx context.Context, path string, mtime, atime time.Time) error

	// Disconnect releases the session and everything it still owns.
	Disconnect(ctx context.Context) error
}

// ReadHandle is an open file being read. The sequential cursor lives in the
// handle; PRead does not move it.
type ReadHandle interface {
	// Read reads from the cursor and advances it. It returns 0 and io.EOF at
	// the end of the file.
	Read(ctx context.Context, p []byte) (int, error)

	// PRead reads at an absolute offset without moving the cursor. It
	// returns 0 and io.EOF at or beyond the end of the file.
	PRead(ctx context.Context, p []byte, off int64) (int, error)

	// Seek moves the cursor to an absolute offset.
	Seek(ctx context.Context, off int64) error

	// Tell returns the cursor position.
	Tell(ctx context.Context) (int64, error)

	// Available returns the number of bytes readable without blocking.
	Available(ctx context.Context) (int64, error)

	// Close releases the handle.
	Close(ctx context.Context) error
}

// WriteHandle is an open file being written. Data is appended at the end.
type WriteHandle interface {
	// Write appends p to the file.
	Write(ctx context.Context, p []byte) (int, error)

	// Flush pushes buffered data to the session without closing the handle.
	Flush(ctx context.Context) error

	// Tell returns the number of bytes written so far.
	Tell(ctx context.Context) (int64, error)

	// Close flushes and releases the handle.
	Close(ctx context.Context) error
}
