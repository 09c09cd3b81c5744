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

package blobfs

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"maps"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-redfish/pkg/common"
	"github.com/jeremyhahn/go-redfish/pkg/sessiontest"
)

// memBucket is an in-memory Bucket.
type memBucket struct {
	mu      sync.Mutex
	objects map[string]memObject
	calls   map[string]int
}

type memObject struct {
	data    []byte
	meta    map[string]string
	updated time.Time
}

func newMemBucket() *memBucket {
	return &memBucket{
		objects: make(map[string]memObject),
		calls:   make(map[string]int),
	}
}

func (b *memBucket) Head(_ context.Context, key string) (Attrs, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["Head"]++

	obj, ok := b.objects[key]
	if !ok {
		return Attrs{}, common.ErrNotFound
	}
	return Attrs{Size: int64(len(obj.data)), Metadata: maps.Clone(obj.meta), Updated: obj.updated}, nil
}

func (b *memBucket) Put(_ context.Context, key string, data []byte, meta map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["Put"]++

	b.objects[key] = memObject{data: bytes.Clone(data), meta: maps.Clone(meta), updated: time.Now()}
	return nil
}

func (b *memBucket) ReadRange(_ context.Context, key string, off, n int64) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["ReadRange"]++

	obj, ok := b.objects[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	end := min(off+n, int64(len(obj.data)))
	off = min(off, end)
	return io.NopCloser(bytes.NewReader(bytes.Clone(obj.data[off:end]))), nil
}

func (b *memBucket) Copy(_ context.Context, src, dst string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["Copy"]++

	obj, ok := b.objects[src]
	if !ok {
		return common.ErrNotFound
	}
	b.objects[dst] = memObject{data: bytes.Clone(obj.data), meta: maps.Clone(obj.meta), updated: time.Now()}
	return nil
}

func (b *memBucket) SetMetadata(_ context.Context, key string, meta map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["SetMetadata"]++

	obj, ok := b.objects[key]
	if !ok {
		return common.ErrNotFound
	}
	obj.meta = maps.Clone(meta)
	b.objects[key] = obj
	return nil
}

func (b *memBucket) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["Delete"]++

	delete(b.objects, key)
	return nil
}

func (b *memBucket) Walk(_ context.Context, prefix, delimiter string, fn func(string, bool) bool) error {
	b.mu.Lock()
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	b.calls["Walk"]++
	b.mu.Unlock()

	sort.Strings(keys)
	seen := make(map[string]bool)
	for _, k := range keys {
		if delimiter != "" {
			if i := strings.Index(k[len(prefix):], delimiter); i >= 0 {
				cp := k[:len(prefix)+i+len(delimiter)]
				if seen[cp] {
					continue
				}
				seen[cp] = true
				if !fn(cp, true) {
					return nil
				}
				continue
			}
		}
		if !fn(k, false) {
			return nil
		}
	}
	return nil
}

func (b *memBucket) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sortedKeys(b.objects)
}

func sortedKeys(m map[string]memObject) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestSession(t *testing.T) {
	sessiontest.Run(t, func(t *testing.T) sessiontest.Connector {
		store := NewStore(newMemBucket())
		return func(t *testing.T, user string) common.Session {
			return store.Connect(user)
		}
	})
}

func TestSessionWithPrefix(t *testing.T) {
	sessiontest.Run(t, func(t *testing.T) sessiontest.Connector {
		store := NewStore(newMemBucket(), WithPrefix("/tenants/a/"))
		return func(t *testing.T, user string) common.Session {
			return store.Connect(user)
		}
	})
}

func TestStoreAccessors(t *testing.T) {
	b := newMemBucket()
	store := NewStore(b, WithPrefix("ns"))
	assert.Same(t, b, store.Bucket())
	assert.Equal(t, "ns/", store.Prefix())
	assert.Empty(t, NewStore(b, WithPrefix("/")).Prefix())
}

func TestKeyLayout(t *testing.T) {
	ctx := context.Background()
	b := newMemBucket()
	sess := NewStore(b, WithPrefix("root")).Connect("alice")

	_, err := sess.Mkdirs(ctx, "/d/e", 0)
	require.NoError(t, err)
	sessiontest.WriteFile(t, sess, "/d/e/f", sessiontest.Pattern(3), 0)

	assert.Equal(t, []string{"root/d/", "root/d/e/", "root/d/e/f"}, b.keys())
}

func TestPrefixesAreIsolated(t *testing.T) {
	ctx := context.Background()
	b := newMemBucket()
	first := NewStore(b, WithPrefix("a")).Connect("alice")
	second := NewStore(b, WithPrefix("b")).Connect("alice")

	sessiontest.WriteFile(t, first, "/only-a", nil, 0)

	list, err := second.ListDirectory(ctx, "/")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestImplicitDirectory(t *testing.T) {
	ctx := context.Background()
	b := newMemBucket()
	require.NoError(t, b.Put(ctx, "x/y/z.txt", []byte("hi"), nil))

	sess := NewStore(b).Connect("alice")
	st, err := sess.GetPathStatus(ctx, "/x/y")
	require.NoError(t, err)
	assert.True(t, st.IsDir)
	assert.Equal(t, common.SuperuserName, st.Owner)

	list, err := sess.ListDirectory(ctx, "/x")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "y", list[0].Name())

	file, err := sess.GetPathStatus(ctx, "/x/y/z.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(2), file.Length)
	assert.Equal(t, common.DefaultFileMode, file.Mode)
}

func TestRootAttributesFixed(t *testing.T) {
	sess := NewStore(newMemBucket()).Connect(common.SuperuserName)
	assert.ErrorIs(t, sess.Chmod(context.Background(), "/", 0o777), common.ErrInvalidArgument)
}

func TestAttributeChangesKeepData(t *testing.T) {
	ctx := context.Background()
	b := newMemBucket()
	sess := NewStore(b).Connect("alice")
	sessiontest.WriteFile(t, sess, "/f", sessiontest.Pattern(10), 0)

	puts := b.calls["Put"]
	require.NoError(t, sess.Chmod(ctx, "/f", 0o600))
	assert.Equal(t, puts, b.calls["Put"])
	assert.Equal(t, 1, b.calls["SetMetadata"])
	assert.Equal(t, sessiontest.Pattern(10), sessiontest.ReadFile(t, sess, "/f"))

	st, err := sess.GetPathStatus(ctx, "/f")
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o600), st.Mode)
}

func TestClock(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sess := NewStore(newMemBucket(), WithClock(func() time.Time { return at })).Connect("alice")

	_, err := sess.Mkdirs(ctx, "/d", 0)
	require.NoError(t, err)
	st, err := sess.GetPathStatus(ctx, "/d")
	require.NoError(t, err)
	assert.True(t, at.Equal(st.ModTime))
	assert.True(t, at.Equal(st.AccessTime))
}

func TestBlockHost(t *testing.T) {
	ctx := context.Background()
	host := common.BlockHost{Hostname: "storage.example.com", Port: 443}
	sess := NewStore(newMemBucket(), WithBlockHost(host)).Connect("alice")
	sessiontest.WriteFile(t, sess, "/f", sessiontest.Pattern(10), 0)

	blocks, err := sess.GetBlockLocations(ctx, "/f", 0, 10)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, []common.BlockHost{host}, blocks[0].Hosts)
}

func TestRangedReads(t *testing.T) {
	ctx := context.Background()
	b := newMemBucket()
	sess := NewStore(b).Connect("alice")
	sessiontest.WriteFile(t, sess, "/f", sessiontest.Pattern(100), 0)

	r, err := sess.Open(ctx, "/f")
	require.NoError(t, err)
	defer r.Close(ctx)

	buf := make([]byte, 30)
	n, err := r.PRead(ctx, buf, 80)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.Equal(t, sessiontest.Pattern(100)[80:], buf[:n])

	before := b.calls["ReadRange"]
	_, err = r.PRead(ctx, buf, 100)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, before, b.calls["ReadRange"], "reads past the end must not reach the bucket")
}
