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

package client

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-redfish/pkg/common"
	"github.com/jeremyhahn/go-redfish/pkg/config"
	"github.com/jeremyhahn/go-redfish/pkg/memory"
	"github.com/jeremyhahn/go-redfish/pkg/sessiontest"
)

// newConnected returns a client over a fresh memory namespace and the
// counting wrapper around its session.
func newConnected(t *testing.T) (*Client, *sessiontest.CountingSession) {
	t.Helper()
	store := memory.NewStore()
	var counting *sessiontest.CountingSession
	c := New(WithDialer(DialerFunc(func(ctx context.Context, cfg *config.Config, user string) (common.Session, error) {
		counting = sessiontest.NewCountingSession(store.Connect(user))
		return counting, nil
	})))
	require.NoError(t, c.ConnectHost(context.Background(), "localhost", 50051, "alice"))
	t.Cleanup(func() { _ = c.Disconnect(context.Background()) })
	return c, counting
}

func TestConnectWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "redfish.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: memory\nmemory:\n  name: client-config-test\n"), 0o600))

	ctx := context.Background()
	c := New()
	require.NoError(t, c.Connect(ctx, path, "alice"))
	assert.True(t, c.Connected())
	assert.Equal(t, "alice", c.User())

	created, err := c.Mkdirs(ctx, "/user/alice", 0o755)
	require.NoError(t, err)
	assert.True(t, created)
	require.NoError(t, c.Disconnect(ctx))
	assert.False(t, c.Connected())
}

func TestConnectMissingConfigFile(t *testing.T) {
	err := New().Connect(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"), "alice")
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestConnectFailureIsConnectionError(t *testing.T) {
	boom := errors.New("metadata server refused")
	c := New(WithDialer(DialerFunc(func(ctx context.Context, cfg *config.Config, user string) (common.Session, error) {
		return nil, boom
	})))

	err := c.ConnectHost(context.Background(), "mds", 7000, "alice")
	assert.ErrorIs(t, err, common.ErrConnection)
	assert.ErrorIs(t, err, boom)
	assert.False(t, c.Connected())
}

func TestConnectHostValidation(t *testing.T) {
	c := New()
	assert.ErrorIs(t, c.ConnectHost(context.Background(), "", 1, "alice"), common.ErrConfiguration)
	assert.ErrorIs(t, c.ConnectHost(context.Background(), "mds", 0, "alice"), common.ErrConfiguration)
	assert.ErrorIs(t, c.ConnectHost(context.Background(), "mds", 1, ""), common.ErrInvalidArgument)
}

func TestConnectTwice(t *testing.T) {
	c, _ := newConnected(t)
	err := c.ConnectHost(context.Background(), "localhost", 50051, "alice")
	assert.ErrorIs(t, err, common.ErrIllegalState)
}

func TestDisconnectLifecycle(t *testing.T) {
	ctx := context.Background()
	assert.ErrorIs(t, New().Disconnect(ctx), common.ErrNotConnected)

	c, counting := newConnected(t)
	require.NoError(t, c.Disconnect(ctx))
	require.NoError(t, c.Disconnect(ctx))
	assert.Equal(t, 1, counting.Calls(sessiontest.OpDisconnect))

	err := c.ConnectHost(ctx, "localhost", 50051, "alice")
	assert.ErrorIs(t, err, common.ErrIllegalState, "a client connects once")
}

func TestOperationsAfterDisconnect(t *testing.T) {
	ctx := context.Background()
	c, counting := newConnected(t)
	require.NoError(t, c.Disconnect(ctx))
	before := counting.Total()

	_, err := c.Create(ctx, "/f", common.CreateOptions{})
	assert.ErrorIs(t, err, common.ErrNotConnected)
	_, err = c.Open(ctx, "/f")
	assert.ErrorIs(t, err, common.ErrNotConnected)
	_, err = c.Mkdirs(ctx, "/d", 0)
	assert.ErrorIs(t, err, common.ErrNotConnected)
	_, err = c.ListDirectory(ctx, "/")
	assert.ErrorIs(t, err, common.ErrNotConnected)
	_, err = c.GetPathStatus(ctx, "/")
	assert.ErrorIs(t, err, common.ErrNotConnected)
	_, err = c.GetBlockLocations(ctx, "/f", 0, 1)
	assert.ErrorIs(t, err, common.ErrNotConnected)
	_, err = c.Unlink(ctx, "/f")
	assert.ErrorIs(t, err, common.ErrNotConnected)
	_, err = c.UnlinkTree(ctx, "/f")
	assert.ErrorIs(t, err, common.ErrNotConnected)
	assert.ErrorIs(t, c.Rename(ctx, "/a", "/b"), common.ErrNotConnected)
	assert.ErrorIs(t, c.Chmod(ctx, "/f", 0o600), common.ErrNotConnected)
	assert.ErrorIs(t, c.Chown(ctx, "/f", "bob", "bob"), common.ErrNotConnected)
	assert.ErrorIs(t, c.SetTimes(ctx, "/f", time.Now(), time.Time{}), common.ErrNotConnected)

	assert.Equal(t, before, counting.Total(), "no call reaches a disconnected session")
}

func TestOperationsBeforeConnect(t *testing.T) {
	_, err := New().GetPathStatus(context.Background(), "/")
	assert.ErrorIs(t, err, common.ErrNotConnected)
}

func TestInvalidPathNeverReachesSession(t *testing.T) {
	ctx := context.Background()
	c, counting := newConnected(t)
	before := counting.Total()

	for _, p := range []string{"", "relative", "/a/../b", "/trailing/"} {
		_, err := c.GetPathStatus(ctx, p)
		assert.ErrorIs(t, err, common.ErrInvalidArgument, p)
	}
	assert.ErrorIs(t, c.Rename(ctx, "/a", "b"), common.ErrInvalidArgument)
	assert.Equal(t, before, counting.Total())
}

func TestNegativeBlockLocationArguments(t *testing.T) {
	ctx := context.Background()
	c, counting := newConnected(t)

	_, err := c.GetBlockLocations(ctx, "/f", -1, 10)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	_, err = c.GetBlockLocations(ctx, "/f", 0, -10)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	assert.Zero(t, counting.Calls(sessiontest.OpLocations))
}

func TestErrorsAreWrappedWithPath(t *testing.T) {
	ctx := context.Background()
	c, _ := newConnected(t)

	_, err := c.GetPathStatus(ctx, "/missing")
	var pathErr *common.PathError
	require.True(t, errors.As(err, &pathErr))
	assert.Equal(t, "stat", pathErr.Op)
	assert.Equal(t, "/missing", pathErr.Path)
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = c.Rename(ctx, "/missing", "/other")
	require.True(t, errors.As(err, &pathErr))
	assert.Equal(t, "/missing -> /other", pathErr.Path)
}

func TestUnclassifiedErrorsBecomeIOErrors(t *testing.T) {
	ctx := context.Background()
	c, counting := newConnected(t)
	counting.FailOn(sessiontest.OpList, errors.New("wire corrupted"))

	_, err := c.ListDirectory(ctx, "/")
	assert.ErrorIs(t, err, common.ErrIO)
}

func TestUnlinkMissingPath(t *testing.T) {
	ctx := context.Background()
	c, _ := newConnected(t)

	removed, err := c.Unlink(ctx, "/missing")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = c.UnlinkTree(ctx, "/missing")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestUnlinkNonEmptyDirectory(t *testing.T) {
	ctx := context.Background()
	c, _ := newConnected(t)

	_, err := c.Mkdirs(ctx, "/d/e", 0o755)
	require.NoError(t, err)

	_, err = c.Unlink(ctx, "/d")
	assert.ErrorIs(t, err, common.ErrDirectoryNotEmpty)
	assert.ErrorIs(t, err, common.ErrIO)

	removed, err := c.UnlinkTree(ctx, "/d")
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestListDirectoryReflectsMutations(t *testing.T) {
	ctx := context.Background()
	c, _ := newConnected(t)

	_, err := c.Mkdirs(ctx, "/dir", 0o755)
	require.NoError(t, err)
	for _, name := range []string{"/dir/b", "/dir/a"} {
		w, err := c.Create(ctx, name, common.CreateOptions{})
		require.NoError(t, err)
		require.NoError(t, w.Close(ctx))
	}

	list, err := c.ListDirectory(ctx, "/dir")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name())

	_, err = c.Unlink(ctx, "/dir/a")
	require.NoError(t, err)
	list, err = c.ListDirectory(ctx, "/dir")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = c.Unlink(ctx, "/dir/b")
	require.NoError(t, err)
	list, err = c.ListDirectory(ctx, "/dir")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestChownValidatesNames(t *testing.T) {
	ctx := context.Background()
	c, counting := newConnected(t)

	err := c.Chown(ctx, "/", "bad/owner", "")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	assert.Zero(t, counting.Calls(sessiontest.OpChown))
}
