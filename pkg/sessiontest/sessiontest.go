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

// Package sessiontest is a behavioural test suite shared by every
// common.Session implementation.
package sessiontest

import (
	"context"
	"io"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-redfish/pkg/common"
)

// Connector opens a session for user. Sessions returned by one Connector
// share a namespace.
type Connector func(t *testing.T, user string) common.Session

// Run exercises a backend. newBackend is called once per subtest and must
// return a Connector over a fresh, empty namespace.
func Run(t *testing.T, newBackend func(t *testing.T) Connector) {
	tests := []struct {
		name string
		fn   func(t *testing.T, connect Connector)
	}{
		{"RoundTrip", testRoundTrip},
		{"CreateErrors", testCreateErrors},
		{"Overwrite", testOverwrite},
		{"OpenErrors", testOpenErrors},
		{"ReadCursor", testReadCursor},
		{"Mkdirs", testMkdirs},
		{"ListDirectory", testListDirectory},
		{"PathStatus", testPathStatus},
		{"BlockLocations", testBlockLocations},
		{"Unlink", testUnlink},
		{"UnlinkTree", testUnlinkTree},
		{"Rename", testRename},
		{"RenameIntoDirectory", testRenameIntoDirectory},
		{"Attributes", testAttributes},
		{"Permissions", testPermissions},
		{"Disconnect", testDisconnect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newBackend(t))
		})
	}
}

// Pattern returns n bytes cycling through the digits 0-9.
func Pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 10)
	}
	return b
}

// WriteFile creates path and writes data to it in chunk-sized pieces.
func WriteFile(t *testing.T, s common.Session, path string, data []byte, chunk int) {
	t.Helper()
	ctx := context.Background()

	w, err := s.Create(ctx, path, common.CreateOptions{})
	require.NoError(t, err)
	if chunk <= 0 {
		chunk = len(data) + 1
	}
	for off := 0; off < len(data); off += chunk {
		end := min(off+chunk, len(data))
		n, err := w.Write(ctx, data[off:end])
		require.NoError(t, err)
		require.Equal(t, end-off, n)
	}
	require.NoError(t, w.Close(ctx))
}

// ReadFile opens path and reads it to the end.
func ReadFile(t *testing.T, s common.Session, path string) []byte {
	t.Helper()
	ctx := context.Background()

	r, err := s.Open(ctx, path)
	require.NoError(t, err)
	defer r.Close(ctx)

	out := []byte{}
	buf := make([]byte, 1000)
	for {
		n, err := r.Read(ctx, buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
	}
}

func names(list []common.FileStatus) []string {
	out := make([]string, len(list))
	for i, st := range list {
		out[i] = st.Name()
	}
	return out
}

func testRoundTrip(t *testing.T, connect Connector) {
	s := connect(t, "alice")
	for _, size := range []int{0, 123, 250, 4096*3 + 7} {
		data := Pattern(size)
		WriteFile(t, s, "/file", data, 100)
		got := ReadFile(t, s, "/file")
		assert.NotNil(t, got, "size %d", size)
		assert.Equal(t, data, got, "size %d", size)

		ok, err := s.Unlink(context.Background(), "/file")
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func testCreateErrors(t *testing.T, connect Connector) {
	ctx := context.Background()
	s := connect(t, "alice")

	_, err := s.Create(ctx, "/missing/file", common.CreateOptions{})
	assert.ErrorIs(t, err, common.ErrNotFound)

	WriteFile(t, s, "/plain", []byte("x"), 0)
	_, err = s.Create(ctx, "/plain/child", common.CreateOptions{})
	assert.ErrorIs(t, err, common.ErrNotADirectory)

	_, err = s.Create(ctx, "/plain", common.CreateOptions{})
	assert.ErrorIs(t, err, common.ErrAlreadyExists)

	_, err = s.Mkdirs(ctx, "/dir", 0)
	require.NoError(t, err)
	_, err = s.Create(ctx, "/dir", common.CreateOptions{Overwrite: true})
	assert.ErrorIs(t, err, common.ErrIsADirectory)
}

func testOverwrite(t *testing.T, connect Connector) {
	ctx := context.Background()
	s := connect(t, "alice")

	WriteFile(t, s, "/f", Pattern(500), 0)

	w, err := s.Create(ctx, "/f", common.CreateOptions{Overwrite: true})
	require.NoError(t, err)
	_, err = w.Write(ctx, []byte("short"))
	require.NoError(t, err)
	pos, err := w.Tell(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), pos)
	require.NoError(t, w.Close(ctx))
	require.NoError(t, w.Close(ctx))

	_, err = w.Write(ctx, []byte("late"))
	assert.ErrorIs(t, err, common.ErrClosedStream)
	assert.Equal(t, []byte("short"), ReadFile(t, s, "/f"))
}

func testOpenErrors(t *testing.T, connect Connector) {
	ctx := context.Background()
	s := connect(t, "alice")

	_, err := s.Open(ctx, "/nope")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = s.Mkdirs(ctx, "/d", 0)
	require.NoError(t, err)
	_, err = s.Open(ctx, "/d")
	assert.ErrorIs(t, err, common.ErrIsADirectory)
}

func testReadCursor(t *testing.T, connect Connector) {
	ctx := context.Background()
	s := connect(t, "alice")
	WriteFile(t, s, "/f", Pattern(250), 0)

	r, err := s.Open(ctx, "/f")
	require.NoError(t, err)

	buf := make([]byte, 10)
	n, err := r.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	avail, err := r.Available(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(240), avail)

	n, err = r.PRead(ctx, buf, 245)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, Pattern(250)[245:], buf[:n])

	pos, err := r.Tell(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), pos, "positioned read must not move the cursor")

	_, err = r.PRead(ctx, buf, 250)
	assert.ErrorIs(t, err, io.EOF)
	_, err = r.PRead(ctx, buf, -1)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	require.NoError(t, r.Seek(ctx, 248))
	n, err = r.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = r.Read(ctx, buf)
	assert.ErrorIs(t, err, io.EOF)

	assert.ErrorIs(t, r.Seek(ctx, -1), common.ErrInvalidArgument)
	require.NoError(t, r.Seek(ctx, 1000))
	avail, err = r.Available(ctx)
	require.NoError(t, err)
	assert.Zero(t, avail)

	require.NoError(t, r.Close(ctx))
	require.NoError(t, r.Close(ctx))
	_, err = r.Read(ctx, buf)
	assert.ErrorIs(t, err, common.ErrClosedStream)
}

func testMkdirs(t *testing.T, connect Connector) {
	ctx := context.Background()
	s := connect(t, "alice")

	created, err := s.Mkdirs(ctx, "/a/b/c", 0o750)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Mkdirs(ctx, "/a/b/c", 0o750)
	require.NoError(t, err)
	assert.False(t, created)

	st, err := s.GetPathStatus(ctx, "/a/b")
	require.NoError(t, err)
	assert.True(t, st.IsDir)
	assert.Equal(t, fs.FileMode(0o750), st.Permission())

	created, err = s.Mkdirs(ctx, "/", 0)
	require.NoError(t, err)
	assert.False(t, created)

	WriteFile(t, s, "/a/file", nil, 0)
	_, err = s.Mkdirs(ctx, "/a/file/sub", 0)
	assert.ErrorIs(t, err, common.ErrNotADirectory)
}

func testListDirectory(t *testing.T, connect Connector) {
	ctx := context.Background()
	s := connect(t, "alice")

	list, err := s.ListDirectory(ctx, "/")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = s.Mkdirs(ctx, "/d/sub", 0)
	require.NoError(t, err)
	WriteFile(t, s, "/d/b.txt", Pattern(3), 0)
	WriteFile(t, s, "/d/a.txt", Pattern(7), 0)

	list, err = s.ListDirectory(ctx, "/d")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "sub"}, names(list))
	assert.Equal(t, int64(7), list[0].Length)
	assert.Equal(t, "/d/a.txt", list[0].Path)
	assert.True(t, list[2].IsDir)

	_, err = s.ListDirectory(ctx, "/nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = s.ListDirectory(ctx, "/d/a.txt")
	assert.ErrorIs(t, err, common.ErrNotADirectory)
}

func testPathStatus(t *testing.T, connect Connector) {
	ctx := context.Background()
	s := connect(t, "alice")

	root, err := s.GetPathStatus(ctx, "/")
	require.NoError(t, err)
	assert.True(t, root.IsDir)
	assert.Equal(t, "/", root.Path)

	WriteFile(t, s, "/f", Pattern(42), 0)
	st, err := s.GetPathStatus(ctx, "/f")
	require.NoError(t, err)
	assert.False(t, st.IsDir)
	assert.Equal(t, int64(42), st.Length)
	assert.Equal(t, "alice", st.Owner)
	assert.Equal(t, common.DefaultFileMode, st.Permission())
	assert.Equal(t, common.DefaultReplication, st.Replication)
	assert.Equal(t, common.DefaultBlockSize, st.BlockSize)
	assert.False(t, st.ModTime.IsZero())

	_, err = s.GetPathStatus(ctx, "/missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func testBlockLocations(t *testing.T, connect Connector) {
	ctx := context.Background()
	s := connect(t, "alice")
	WriteFile(t, s, "/f", Pattern(100), 0)

	locs, err := s.GetBlockLocations(ctx, "/f", 10, 50)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, int64(10), locs[0].Offset)
	assert.Equal(t, int64(50), locs[0].Length)
	assert.NotEmpty(t, locs[0].Hosts)

	locs, err = s.GetBlockLocations(ctx, "/f", 90, 50)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, int64(10), locs[0].Length)

	for _, start := range []int64{100, 200} {
		locs, err = s.GetBlockLocations(ctx, "/f", start, 10)
		require.NoError(t, err)
		assert.Empty(t, locs, "start %d", start)
	}

	_, err = s.GetBlockLocations(ctx, "/f", -1, 10)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	_, err = s.GetBlockLocations(ctx, "/missing", 0, 10)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func testUnlink(t *testing.T, connect Connector) {
	ctx := context.Background()
	s := connect(t, "alice")

	ok, err := s.Unlink(ctx, "/missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Mkdirs(ctx, "/d", 0)
	require.NoError(t, err)
	WriteFile(t, s, "/d/f", nil, 0)

	_, err = s.Unlink(ctx, "/d")
	assert.ErrorIs(t, err, common.ErrDirectoryNotEmpty)

	ok, err = s.Unlink(ctx, "/d/f")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Unlink(ctx, "/d")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Unlink(ctx, "/")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func testUnlinkTree(t *testing.T, connect Connector) {
	ctx := context.Background()
	s := connect(t, "alice")

	_, err := s.Mkdirs(ctx, "/t/x/y", 0)
	require.NoError(t, err)
	WriteFile(t, s, "/t/x/y/f", Pattern(5), 0)
	WriteFile(t, s, "/t/g", Pattern(5), 0)
	WriteFile(t, s, "/tt", Pattern(5), 0)

	ok, err := s.UnlinkTree(ctx, "/t")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.GetPathStatus(ctx, "/t/x/y/f")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = s.GetPathStatus(ctx, "/tt")
	assert.NoError(t, err, "sibling with a shared prefix must survive")

	ok, err = s.UnlinkTree(ctx, "/t")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.UnlinkTree(ctx, "/")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func testRename(t *testing.T, connect Connector) {
	ctx := context.Background()
	s := connect(t, "alice")

	WriteFile(t, s, "/a", Pattern(12), 0)
	require.NoError(t, s.Rename(ctx, "/a", "/b"))
	_, err := s.GetPathStatus(ctx, "/a")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, Pattern(12), ReadFile(t, s, "/b"))

	WriteFile(t, s, "/c", nil, 0)
	assert.ErrorIs(t, s.Rename(ctx, "/b", "/c"), common.ErrAlreadyExists)

	_, err = s.Mkdirs(ctx, "/dir/inner", 0)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Rename(ctx, "/dir", "/c"), common.ErrNotADirectory)
	assert.ErrorIs(t, s.Rename(ctx, "/dir", "/dir/inner/deeper"), common.ErrInvalidArgument)
	assert.ErrorIs(t, s.Rename(ctx, "/", "/x"), common.ErrInvalidArgument)
	assert.ErrorIs(t, s.Rename(ctx, "/missing", "/x"), common.ErrNotFound)
	assert.ErrorIs(t, s.Rename(ctx, "/b", "/nodir/b"), common.ErrNotFound)

	WriteFile(t, s, "/dir/inner/f", Pattern(3), 0)
	require.NoError(t, s.Rename(ctx, "/dir", "/moved"))
	assert.Equal(t, Pattern(3), ReadFile(t, s, "/moved/inner/f"))
	_, err = s.GetPathStatus(ctx, "/dir")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func testRenameIntoDirectory(t *testing.T, connect Connector) {
	ctx := context.Background()
	s := connect(t, "alice")

	_, err := s.Mkdirs(ctx, "/dst", 0)
	require.NoError(t, err)
	WriteFile(t, s, "/f", Pattern(4), 0)

	require.NoError(t, s.Rename(ctx, "/f", "/dst"))
	assert.Equal(t, Pattern(4), ReadFile(t, s, "/dst/f"))

	WriteFile(t, s, "/f", Pattern(4), 0)
	assert.ErrorIs(t, s.Rename(ctx, "/f", "/dst"), common.ErrAlreadyExists)
}

func testAttributes(t *testing.T, connect Connector) {
	ctx := context.Background()
	s := connect(t, "alice")
	WriteFile(t, s, "/f", nil, 0)

	require.NoError(t, s.Chmod(ctx, "/f", 0o600))
	require.NoError(t, s.Chown(ctx, "/f", "", "staff"))

	mtime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	atime := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetTimes(ctx, "/f", mtime, atime))

	st, err := s.GetPathStatus(ctx, "/f")
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o600), st.Permission())
	assert.Equal(t, "alice", st.Owner)
	assert.Equal(t, "staff", st.Group)
	assert.True(t, mtime.Equal(st.ModTime), "mtime %v", st.ModTime)
	assert.True(t, atime.Equal(st.AccessTime), "atime %v", st.AccessTime)

	require.NoError(t, s.SetTimes(ctx, "/f", time.Time{}, time.Time{}))
	st, err = s.GetPathStatus(ctx, "/f")
	require.NoError(t, err)
	assert.True(t, mtime.Equal(st.ModTime))

	assert.ErrorIs(t, s.Chmod(ctx, "/missing", 0o600), common.ErrNotFound)
}

func testPermissions(t *testing.T, connect Connector) {
	ctx := context.Background()
	alice := connect(t, "alice")
	bob := connect(t, "bob")
	root := connect(t, common.SuperuserName)

	_, err := alice.Mkdirs(ctx, "/home", 0o755)
	require.NoError(t, err)
	WriteFile(t, alice, "/home/notes", Pattern(8), 0)

	assert.Equal(t, Pattern(8), ReadFile(t, bob, "/home/notes"))

	_, err = bob.Create(ctx, "/home/intruder", common.CreateOptions{})
	assert.ErrorIs(t, err, common.ErrPermission)
	_, err = bob.Unlink(ctx, "/home/notes")
	assert.ErrorIs(t, err, common.ErrPermission)
	assert.ErrorIs(t, bob.Chmod(ctx, "/home/notes", 0o777), common.ErrPermission)

	require.NoError(t, alice.Chmod(ctx, "/home/notes", 0o600))
	_, err = bob.Open(ctx, "/home/notes")
	assert.ErrorIs(t, err, common.ErrPermission)

	assert.Equal(t, Pattern(8), ReadFile(t, root, "/home/notes"))
	require.NoError(t, root.Chown(ctx, "/home/notes", "bob", "bob"))
	_, err = bob.Open(ctx, "/home/notes")
	require.NoError(t, err)

	// Anyone may create entries in the root directory.
	WriteFile(t, bob, "/bobs", nil, 0)
}

func testDisconnect(t *testing.T, connect Connector) {
	ctx := context.Background()
	s := connect(t, "alice")

	w, err := s.Create(ctx, "/pending", common.CreateOptions{BufferSize: 1 << 20})
	require.NoError(t, err)
	_, err = w.Write(ctx, Pattern(64))
	require.NoError(t, err)

	require.NoError(t, s.Disconnect(ctx))
	require.NoError(t, s.Disconnect(ctx))

	_, err = s.GetPathStatus(ctx, "/")
	assert.ErrorIs(t, err, common.ErrNotConnected)
	_, err = w.Write(ctx, []byte("x"))
	assert.Error(t, err)

	other := connect(t, "alice")
	assert.Equal(t, Pattern(64), ReadFile(t, other, "/pending"))
}
