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

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-redfish/pkg/common"
	"github.com/jeremyhahn/go-redfish/pkg/sessiontest"
)

func TestSession(t *testing.T) {
	sessiontest.Run(t, func(t *testing.T) sessiontest.Connector {
		store := NewStore()
		return func(t *testing.T, user string) common.Session {
			return store.Connect(user)
		}
	})
}

func TestNewStoreRoot(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewStore(WithClock(func() time.Time { return fixed }))

	st, err := store.Connect("alice").GetPathStatus(context.Background(), "/")
	require.NoError(t, err)
	assert.True(t, st.IsDir)
	assert.Equal(t, common.SuperuserName, st.Owner)
	assert.Equal(t, common.DefaultDirMode, st.Permission())
	assert.True(t, fixed.Equal(st.ModTime))
}

func TestBlockHost(t *testing.T) {
	ctx := context.Background()
	host := common.BlockHost{Hostname: "node1", Port: 9000}
	s := NewStore(WithBlockHost(host)).Connect("alice")
	sessiontest.WriteFile(t, s, "/f", sessiontest.Pattern(10), 0)

	locs, err := s.GetBlockLocations(ctx, "/f", 0, 10)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, []string{"node1:9000"}, locs[0].Names())
}

func TestShared(t *testing.T) {
	a := Shared("memory-test")
	b := Shared("memory-test")
	assert.Same(t, a, b)
	assert.NotSame(t, a, Shared("memory-test-other"))
}

func TestWriteBuffering(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	s := store.Connect("alice")
	reader := store.Connect("alice")

	w, err := s.Create(ctx, "/buf", common.CreateOptions{BufferSize: 8})
	require.NoError(t, err)

	_, err = w.Write(ctx, []byte("1234"))
	require.NoError(t, err)
	st, err := reader.GetPathStatus(ctx, "/buf")
	require.NoError(t, err)
	assert.Zero(t, st.Length, "data below the buffer size stays pending")

	_, err = w.Write(ctx, []byte("5678"))
	require.NoError(t, err)
	st, err = reader.GetPathStatus(ctx, "/buf")
	require.NoError(t, err)
	assert.Equal(t, int64(8), st.Length)

	_, err = w.Write(ctx, []byte("9"))
	require.NoError(t, err)
	require.NoError(t, w.Flush(ctx))
	st, err = reader.GetPathStatus(ctx, "/buf")
	require.NoError(t, err)
	assert.Equal(t, int64(9), st.Length)

	require.NoError(t, w.Close(ctx))
	assert.ErrorIs(t, w.Flush(ctx), common.ErrClosedStream)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStore().Connect("alice").GetPathStatus(ctx, "/")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDisconnectReleasesHandles(t *testing.T) {
	ctx := context.Background()
	s := NewStore().Connect("alice")
	sessiontest.WriteFile(t, s, "/f", sessiontest.Pattern(4), 0)

	r, err := s.Open(ctx, "/f")
	require.NoError(t, err)
	assert.Len(t, s.handles, 1)

	require.NoError(t, s.Disconnect(ctx))
	assert.Empty(t, s.handles)

	_, err = r.Tell(ctx)
	assert.ErrorIs(t, err, common.ErrClosedStream)
}
